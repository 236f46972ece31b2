package savedsearch

import (
	"context"
	"sync"

	"github.com/0xPuncker/job-watcher/internal/errors"
	"github.com/0xPuncker/job-watcher/internal/validation"
	"github.com/0xPuncker/job-watcher/pkg/types"
)

// Mode is the state of the create/edit form. At most one form is open.
type Mode string

const (
	ModeClosed   Mode = "closed"
	ModeCreating Mode = "creating"
	ModeEditing  Mode = "editing"
)

// ErrSubmitting is returned, marked as a validation failure, while a submit is in flight.
var ErrSubmitting = errors.New("A submission is already in progress")

func errSubmitting() error {
	return errors.Mark(ErrSubmitting, errors.ErrValidation)
}

// Mutator is what the editor submits to. *Store implements it.
type Mutator interface {
	Create(ctx context.Context, draft types.Draft) error
	Update(ctx context.Context, id int64, patch types.Patch) error
}

type EditorState struct {
	Mode       Mode        `json:"mode"`
	EditingID  int64       `json:"editing_id,omitempty"`
	Draft      types.Draft `json:"draft"`
	Submitting bool        `json:"submitting"`
	Error      string      `json:"error,omitempty"`
}

type Editor struct {
	target Mutator

	mu         sync.Mutex
	mode       Mode
	editingID  int64
	draft      types.Draft
	submitting bool
	lastError  string
	generation uint64
}

func NewEditor(target Mutator) *Editor {
	return &Editor{
		target: target,
		mode:   ModeClosed,
		draft:  types.DefaultDraft(),
	}
}

// OpenCreate opens a blank form, replacing any open one.
func (e *Editor) OpenCreate() error {
	return e.open(ModeCreating, 0, types.DefaultDraft())
}

// OpenEdit opens the form bound to search, replacing any open one.
func (e *Editor) OpenEdit(search types.SavedSearch) error {
	return e.open(ModeEditing, search.ID, types.DraftFrom(search))
}

func (e *Editor) open(mode Mode, id int64, draft types.Draft) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.submitting {
		return errSubmitting()
	}
	e.generation++
	e.mode = mode
	e.editingID = id
	e.draft = draft
	e.lastError = ""
	return nil
}

// SetDraft replaces the form fields of the open form.
func (e *Editor) SetDraft(draft types.Draft) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mode == ModeClosed {
		return errors.Validation("No form is open")
	}
	if e.submitting {
		return errSubmitting()
	}
	e.draft = draft
	return nil
}

func (e *Editor) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reset()
}

// Submit validates the draft then creates or updates. The form closes on
// success and stays open with the error otherwise.
func (e *Editor) Submit(ctx context.Context) error {
	e.mu.Lock()
	if e.mode == ModeClosed {
		e.mu.Unlock()
		return errors.Validation("No form is open")
	}
	if e.submitting {
		e.mu.Unlock()
		return errSubmitting()
	}

	draft := e.draft
	mode, id, generation := e.mode, e.editingID, e.generation
	if err := e.check(draft); err != nil {
		e.lastError = errors.Message(err)
		e.mu.Unlock()
		return err
	}
	e.submitting = true
	e.lastError = ""
	e.mu.Unlock()

	var err error
	if mode == ModeCreating {
		err = e.target.Create(ctx, draft)
	} else {
		err = e.target.Update(ctx, id, types.PatchFromDraft(draft))
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.submitting = false
	if e.generation != generation {
		return err
	}
	if err != nil {
		e.lastError = errors.Message(err)
		return err
	}
	e.reset()
	return nil
}

func (e *Editor) check(draft types.Draft) error {
	return validation.Draft(draft)
}

func (e *Editor) State() EditorState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return EditorState{
		Mode:       e.mode,
		EditingID:  e.editingID,
		Draft:      e.draft,
		Submitting: e.submitting,
		Error:      e.lastError,
	}
}

func (e *Editor) reset() {
	e.generation++
	e.mode = ModeClosed
	e.editingID = 0
	e.draft = types.DefaultDraft()
	e.lastError = ""
}
