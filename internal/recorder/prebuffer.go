package recorder

import (
	"math"
	"sync"

	"github.com/smallnest/ringbuffer"
)

// PreRoll is a small byte-oriented ring buffer holding the last few hundred
// milliseconds of captured audio, so arming record doesn't clip the first
// transient. Grounded on the teacher's myaudio package, which keeps its
// rolling analysis window in a smallnest/ringbuffer.RingBuffer rather than
// a hand-rolled buffer; used here for the same reason — a short, constantly
// overwritten lookback window, not the multi-second addressable-by-time
// window CircularBuffer provides.
type PreRoll struct {
	mu       sync.Mutex
	rb       *ringbuffer.RingBuffer
	channels int
}

// NewPreRoll allocates a pre-roll window of the given duration at the given
// sample rate/channel count.
func NewPreRoll(seconds float64, sampleRate, channels int) *PreRoll {
	frameBytes := 4 * channels // float32 interleaved
	capacity := int(seconds*float64(sampleRate)) * frameBytes
	if capacity < frameBytes {
		capacity = frameBytes
	}
	return &PreRoll{
		rb:       ringbuffer.New(capacity),
		channels: channels,
	}
}

// Write pushes newly captured samples in, silently dropping the oldest
// bytes once the ring is full (ringbuffer.Write never blocks).
func (p *PreRoll) Write(samples []float32) {
	p.mu.Lock()
	defer p.mu.Unlock()

	buf := make([]byte, len(samples)*4)
	for i, v := range samples {
		bits := math.Float32bits(v)
		buf[4*i] = byte(bits)
		buf[4*i+1] = byte(bits >> 8)
		buf[4*i+2] = byte(bits >> 16)
		buf[4*i+3] = byte(bits >> 24)
	}
	if p.rb.Free() < len(buf) {
		discard := len(buf) - p.rb.Free()
		drain := make([]byte, discard)
		_, _ = p.rb.Read(drain)
	}
	_, _ = p.rb.Write(buf)
}

// Drain removes and returns everything currently buffered as interleaved
// float32 samples, emptying the pre-roll window.
func (p *PreRoll) Drain() []float32 {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := p.rb.Length()
	if n == 0 {
		return nil
	}
	raw := make([]byte, n)
	read, _ := p.rb.Read(raw)
	raw = raw[:read]

	count := len(raw) / 4
	out := make([]float32, count)
	for i := 0; i < count; i++ {
		bits := uint32(raw[4*i]) | uint32(raw[4*i+1])<<8 | uint32(raw[4*i+2])<<16 | uint32(raw[4*i+3])<<24
		out[i] = math.Float32frombits(bits)
	}
	return out
}
