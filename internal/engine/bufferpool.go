// Package engine implements the realtime audio graph: the mixer, transport,
// meter bus, command bus, and the decode/IO worker pool that keeps the audio
// thread free of syscalls. Nothing here blocks once the graph is running;
// anything that can block (file decode, device enumeration) happens on the
// control thread or a worker goroutine and hands its result across with an
// atomic pointer swap or a bounded channel.
package engine

import (
	"sync"
	"sync/atomic"

	"github.com/resonantfield/tapedeck/internal/errors"
)

// bufferTier is one size class of pooled audio buffers, generalized from
// the teacher's byte-oriented tiers to interleaved float32 frames.
type bufferTier struct {
	pool      sync.Pool
	frames    int
	allocated int64
	reused    int64
}

// BufferPool hands out reusable interleaved float32 buffers to the mixer so
// the audio callback never calls make([]float32, ...) on the hot path.
// Modeled on the teacher's tiered sync.Pool buffer pool, generalized from
// []byte to interleaved audio frames and from a fixed byte-size ladder to a
// frame-count ladder keyed off the engine's configured block size.
type BufferPool struct {
	small  *bufferTier // <= 1x block size
	medium *bufferTier // <= 4x block size
	large  *bufferTier // <= 16x block size

	channels  int
	blockSize int

	custom int64 // buffers allocated outside any tier (oversized requests)
}

// NewBufferPool returns a pool sized for channels-per-buffer interleaved
// frames, with tiers at 1x, 4x, and 16x blockSize frames.
func NewBufferPool(channels, blockSize int) *BufferPool {
	bp := &BufferPool{
		channels:  channels,
		blockSize: blockSize,
		small:     &bufferTier{frames: blockSize},
		medium:    &bufferTier{frames: blockSize * 4},
		large:     &bufferTier{frames: blockSize * 16},
	}
	bp.small.pool.New = func() any { return make([]float32, bp.small.frames*channels) }
	bp.medium.pool.New = func() any { return make([]float32, bp.medium.frames*channels) }
	bp.large.pool.New = func() any { return make([]float32, bp.large.frames*channels) }
	return bp
}

func (bp *BufferPool) tierFor(frames int) *bufferTier {
	switch {
	case frames <= bp.small.frames:
		return bp.small
	case frames <= bp.medium.frames:
		return bp.medium
	case frames <= bp.large.frames:
		return bp.large
	default:
		return nil
	}
}

// Get returns an interleaved float32 buffer with capacity for at least
// frames*channels samples, zeroed, sliced to the requested length.
func (bp *BufferPool) Get(frames int) []float32 {
	if frames <= 0 {
		panic(invalidBlockSize(frames))
	}
	need := frames * bp.channels
	tier := bp.tierFor(frames)
	if tier == nil {
		atomic.AddInt64(&bp.custom, 1)
		return make([]float32, need)
	}

	buf := tier.pool.Get().([]float32)
	atomic.AddInt64(&tier.reused, 1)
	if cap(buf) < need {
		atomic.AddInt64(&tier.allocated, 1)
		buf = make([]float32, tier.frames*bp.channels)
	}
	buf = buf[:need]
	for i := range buf {
		buf[i] = 0
	}
	return buf
}

// Put returns buf to the tier matching its capacity. Buffers that don't
// match any tier's capacity exactly (e.g. a custom oversized allocation)
// are discarded rather than forced into a tier they'd waste.
func (bp *BufferPool) Put(buf []float32) {
	frames := cap(buf) / bp.channels
	switch frames {
	case bp.small.frames:
		bp.small.pool.Put(buf[:cap(buf)])
	case bp.medium.frames:
		bp.medium.pool.Put(buf[:cap(buf)])
	case bp.large.frames:
		bp.large.pool.Put(buf[:cap(buf)])
	}
}

// BufferPoolStats reports allocation pressure per tier, surfaced on the
// command surface's diagnostics endpoint.
type BufferPoolStats struct {
	SmallAllocated, SmallReused   int64
	MediumAllocated, MediumReused int64
	LargeAllocated, LargeReused   int64
	Custom                        int64
}

// Stats returns a snapshot of pool pressure across all tiers.
func (bp *BufferPool) Stats() BufferPoolStats {
	return BufferPoolStats{
		SmallAllocated:  atomic.LoadInt64(&bp.small.allocated),
		SmallReused:     atomic.LoadInt64(&bp.small.reused),
		MediumAllocated: atomic.LoadInt64(&bp.medium.allocated),
		MediumReused:    atomic.LoadInt64(&bp.medium.reused),
		LargeAllocated:  atomic.LoadInt64(&bp.large.allocated),
		LargeReused:     atomic.LoadInt64(&bp.large.reused),
		Custom:          atomic.LoadInt64(&bp.custom),
	}
}

func invalidBlockSize(frames int) error {
	return errors.New(errors.NewStd("buffer frame count must be > 0")).
		Category(errors.CategoryBuffer).
		Component("engine").
		Context("frames", frames).
		Build()
}
