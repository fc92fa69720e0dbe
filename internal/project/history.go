package project

import "sync"

// History is the linear undo/redo stack described in §4.9. All commands
// acquire a serialized order through mu; this is the single mutex that
// command producers (UI, planner, recorder finalization) contend on, and
// it never touches the audio path.
type History struct {
	mu        sync.Mutex
	undoStack []Command
	redoStack []Command
}

// NewHistory returns an empty History.
func NewHistory() *History {
	return &History{}
}

// Apply runs cmd against p, pushes it onto the undo stack, and clears the
// redo stack. If Apply fails, the project is left unmodified (by
// convention, every Command's Apply either fully succeeds or makes no
// partial change).
func (h *History) Apply(p *Project, cmd Command) error {
	p.lock()
	defer p.unlock()

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := cmd.Apply(p); err != nil {
		return err
	}

	h.undoStack = append(h.undoStack, cmd)
	h.redoStack = h.redoStack[:0]
	return nil
}

// Undo pops the most recent command, applies its inverse, and pushes the
// inverse onto the redo stack. Returns false if there is nothing to undo.
func (h *History) Undo(p *Project) (bool, error) {
	p.lock()
	defer p.unlock()

	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.undoStack) == 0 {
		return false, nil
	}

	last := h.undoStack[len(h.undoStack)-1]
	h.undoStack = h.undoStack[:len(h.undoStack)-1]

	inverse := last.Inverse()
	if err := inverse.Apply(p); err != nil {
		// Put the command back; the project state is unchanged since
		// Apply failed before mutating anything per convention.
		h.undoStack = append(h.undoStack, last)
		return false, err
	}

	h.redoStack = append(h.redoStack, inverse)
	return true, nil
}

// Redo pops the most recently undone command, re-applies it, and pushes it
// back onto the undo stack. Returns false if there is nothing to redo.
func (h *History) Redo(p *Project) (bool, error) {
	p.lock()
	defer p.unlock()

	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.redoStack) == 0 {
		return false, nil
	}

	last := h.redoStack[len(h.redoStack)-1]
	h.redoStack = h.redoStack[:len(h.redoStack)-1]

	inverse := last.Inverse()
	if err := inverse.Apply(p); err != nil {
		h.redoStack = append(h.redoStack, last)
		return false, err
	}

	h.undoStack = append(h.undoStack, inverse)
	return true, nil
}

// CanUndo reports whether there is a command available to undo.
func (h *History) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.undoStack) > 0
}

// CanRedo reports whether there is a command available to redo.
func (h *History) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.redoStack) > 0
}
