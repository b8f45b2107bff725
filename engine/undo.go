package engine

import reelforge "github.com/Bojan20/reelforge-standalone-sub003"

// Undo restores the project to the state before the most recent committed
// mutation, moving the current state to the redo side. Transport run state
// (play state, record flag, position) is not edit history and survives the
// restore; tempo and loop edits do get rolled back.
func (e *Engine) Undo() bool {
	if len(e.undoStack) == 0 {
		return false
	}
	if len(e.redoStack) >= e.cfg.UndoDepth {
		copy(e.redoStack, e.redoStack[len(e.redoStack)-e.cfg.UndoDepth+1:])
		e.redoStack = e.redoStack[:e.cfg.UndoDepth-1]
	}
	e.redoStack = append(e.redoStack, e.d.Project.Copy())
	e.restore(e.undoStack[len(e.undoStack)-1])
	e.undoStack = e.undoStack[:len(e.undoStack)-1]
	e.completeChange("Undo")
	return true
}

// Redo reapplies the most recently undone mutation.
func (e *Engine) Redo() bool {
	if len(e.redoStack) == 0 {
		return false
	}
	if len(e.undoStack) >= e.cfg.UndoDepth {
		copy(e.undoStack, e.undoStack[len(e.undoStack)-e.cfg.UndoDepth+1:])
		e.undoStack = e.undoStack[:e.cfg.UndoDepth-1]
	}
	e.undoStack = append(e.undoStack, e.d.Project.Copy())
	e.restore(e.redoStack[len(e.redoStack)-1])
	e.redoStack = e.redoStack[:len(e.redoStack)-1]
	e.completeChange("Redo")
	return true
}

// CanUndo reports whether the undo stack is non-empty.
func (e *Engine) CanUndo() bool { return len(e.undoStack) > 0 }

// CanRedo reports whether the redo stack is non-empty.
func (e *Engine) CanRedo() bool { return len(e.redoStack) > 0 }

func (e *Engine) restore(snapshot reelforge.Project) {
	state := e.d.Project.Transport.State
	recording := e.d.Project.Transport.Recording
	pos := e.d.Project.Transport.PosSamples
	e.d.Project = snapshot.Copy()
	e.d.Project.Transport.State = state
	e.d.Project.Transport.Recording = recording
	e.d.Project.Transport.PosSamples = pos
}
