package engine

import (
	"github.com/resonantfield/tapedeck/internal/errors"
	"github.com/resonantfield/tapedeck/internal/project"
)

// CommandBusCapacity bounds how many pending commands the audio thread
// will buffer before the control thread starts dropping the oldest. A
// command queue that could grow unbounded would let a slow consumer (a
// stalled audio callback under CPU pressure) turn into unbounded memory
// growth; dropping is safe here because every command is a full
// project.Command replay-capable of being resubmitted by the control
// thread that issued it.
const CommandBusCapacity = 256

// CommandBus is a single-producer/single-consumer bounded queue carrying
// project.Command values from the control thread to the audio thread's
// command-draining step, which runs once per render block before the
// mixer reads the Graph. Structural commands (anything that changes track
// count, clip list, or DSP chain shape) additionally trigger a Graph
// rebuild and atomic swap through the owning Engine; cheap per-sample
// commands (gain/pan nudges) can be applied to the live Graph's trackNode
// in place without a rebuild, since gain/pan live behind their own
// GainPan.SetGain/SetPan rather than being rebuilt per command.
type CommandBus struct {
	ch chan project.Command
}

// NewCommandBus returns a bus with CommandBusCapacity buffering.
func NewCommandBus() *CommandBus {
	return &CommandBus{ch: make(chan project.Command, CommandBusCapacity)}
}

// Submit enqueues cmd for the audio thread to apply. If the queue is full,
// the oldest pending command is dropped to make room, per the backpressure
// policy above.
func (b *CommandBus) Submit(cmd project.Command) {
	select {
	case b.ch <- cmd:
	default:
		select {
		case <-b.ch:
		default:
		}
		select {
		case b.ch <- cmd:
		default:
		}
	}
}

// DrainInto applies every currently-queued command to p via history.Apply,
// returning the commands that were applied (already recorded in history by
// the time this returns). Called once per render block from the audio
// thread's control-rate step, never from inside the mixer's sample loop.
func (b *CommandBus) DrainInto(h *project.History, p *project.Project) ([]project.Command, error) {
	var applied []project.Command
	for {
		select {
		case cmd := <-b.ch:
			if err := h.Apply(p, cmd); err != nil {
				return applied, commandFailed(cmd, err)
			}
			applied = append(applied, cmd)
		default:
			return applied, nil
		}
	}
}

// Pending reports how many commands are currently queued, for diagnostics.
func (b *CommandBus) Pending() int {
	return len(b.ch)
}

func commandFailed(cmd project.Command, err error) error {
	return errors.Wrap(err).
		Category(errors.CategoryCommandBus).
		Component("engine").
		Context("command", cmd.Description()).
		Build()
}
