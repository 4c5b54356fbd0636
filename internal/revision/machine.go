// Package revision drives prompt and apply revision requests for one stage and
// turns accepted text into new document versions.
package revision

import (
	"github.com/textaudit/layered-audit/internal/issues"
	"github.com/textaudit/layered-audit/internal/types"
)

// State is a revision machine state.
type State string

// States.
const (
	StateIdle           State = "idle"
	StateConfirmPending State = "confirm_pending"
	StateAwaitingAck    State = "awaiting_acknowledgment"
	StateSubmitting     State = "submitting"
	StateResultPrompt   State = "result_prompt"
	StateResultApply    State = "result_apply"
)

// ackPurpose records what an acknowledgment unlocks.
type ackPurpose int

const (
	ackSubmit ackPurpose = iota
	ackAccept
)

// Submission is one revision collaborator call the owner must perform.
// Its result is delivered back through Complete with the same Generation.
type Submission struct {
	Generation uint64
	Mode       types.RevisionMode
	Issues     []types.Issue
	Notes      string
}

// Machine is the revision state machine of one stage instance.
// It performs no I/O and is not safe for concurrent use.
type Machine struct {
	stage        types.StageID
	state        State
	mode         types.RevisionMode
	issues       []types.Issue
	notes        string
	risky        bool
	acknowledged bool
	purpose      ackPurpose
	generation   uint64
	prompt       *types.PromptResult
	apply        *types.ApplyResult
	pending      string
	err          error
}

// NewMachine creates an idle machine for a stage.
func NewMachine(stage types.StageID) *Machine {
	return &Machine{stage: stage, state: StateIdle}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Mode returns the requested mode.
func (m *Machine) Mode() types.RevisionMode { return m.mode }

// Err returns the error of the last failed submission, if any.
func (m *Machine) Err() error { return m.err }

// Pending returns the pending-edit buffer filled by Accept.
func (m *Machine) Pending() string { return m.pending }

// ClearPending empties the pending-edit buffer after a version transition.
func (m *Machine) ClearPending() { m.pending = "" }

// Request opens a revision for the selected issues. The selection is captured
// so that prompt and apply submissions send the same issue list.
func (m *Machine) Request(mode types.RevisionMode, selected []types.Issue) error {
	if !mode.Valid() {
		return m.invalid("unknown revision mode " + string(mode))
	}
	if m.state != StateIdle && m.state != StateResultPrompt {
		return m.invalid("cannot request a revision while " + string(m.state))
	}
	if len(selected) == 0 {
		return types.NewStageError(types.ErrEmptySelection, m.stage, "select at least one issue to revise", nil)
	}

	m.reset()
	m.state = StateConfirmPending
	m.mode = mode
	m.issues = append([]types.Issue(nil), selected...)
	m.risky = issues.AnyFabricationRisk(selected)
	return nil
}

// Confirm submits the pending request with optional notes. A selection with
// fabrication risk is redirected to StateAwaitingAck and no submission is returned.
func (m *Machine) Confirm(notes string) (*Submission, error) {
	if m.state != StateConfirmPending {
		return nil, m.invalid("nothing to confirm while " + string(m.state))
	}
	m.notes = notes
	if m.risky && !m.acknowledged {
		m.state = StateAwaitingAck
		m.purpose = ackSubmit
		return nil, nil
	}
	return m.submit(), nil
}

// Acknowledge records the user's acknowledgment of fabrication risk and
// resumes whatever it was blocking: a submission or an accept.
func (m *Machine) Acknowledge() (*Submission, error) {
	if m.state != StateAwaitingAck {
		return nil, m.invalid("no acknowledgment is pending")
	}
	m.acknowledged = true
	if m.purpose == ackAccept {
		m.accept()
		return nil, nil
	}
	return m.submit(), nil
}

// Complete applies the collaborator's answer for a submission. It returns
// false, leaving the machine untouched, when the submission was superseded.
func (m *Machine) Complete(generation uint64, prompt *types.PromptResult, apply *types.ApplyResult, err error) bool {
	if m.state != StateSubmitting || generation != m.generation {
		return false
	}
	if err != nil {
		m.state = StateIdle
		m.err = types.NewStageError(types.ErrRevisionFailed, m.stage, "revision request failed", err)
		return true
	}

	// Accepting an apply result needs its own acknowledgment.
	m.acknowledged = false
	switch m.mode {
	case types.ModePrompt:
		m.prompt = prompt
		m.state = StateResultPrompt
	default:
		m.apply = apply
		m.state = StateResultApply
	}
	return true
}

// Accept moves the apply result into the pending-edit buffer. A selection with
// fabrication risk is redirected to StateAwaitingAck first.
func (m *Machine) Accept() error {
	if m.state != StateResultApply {
		return m.invalid("no apply result to accept")
	}
	if m.risky && !m.acknowledged {
		m.state = StateAwaitingAck
		m.purpose = ackAccept
		return nil
	}
	m.accept()
	return nil
}

// Regenerate discards the apply result and reopens the request in apply mode.
func (m *Machine) Regenerate() error {
	if m.state != StateResultApply {
		return m.invalid("no apply result to regenerate")
	}
	m.apply = nil
	m.acknowledged = false
	m.mode = types.ModeApply
	m.state = StateConfirmPending
	return nil
}

// Cancel returns to idle without touching the pending-edit buffer. A submission
// in flight is not aborted; its answer is discarded when it arrives.
func (m *Machine) Cancel() error {
	if m.state == StateIdle {
		return m.invalid("no revision in progress")
	}
	m.generation++
	m.reset()
	return nil
}

// Invalidate drops any request or result after the selection changed.
// The pending-edit buffer survives.
func (m *Machine) Invalidate() {
	if m.state == StateSubmitting {
		m.generation++
	}
	m.reset()
}

// View is a read-only snapshot of the machine.
type View struct {
	State          State               `json:"state"`
	Mode           types.RevisionMode  `json:"mode,omitempty"`
	Issues         []types.Issue       `json:"issues,omitempty"`
	Notes          string              `json:"notes,omitempty"`
	NeedsAck       bool                `json:"requires_acknowledgment"`
	Prompt         *types.PromptResult `json:"prompt,omitempty"`
	Apply          *types.ApplyResult  `json:"apply,omitempty"`
	HasPendingEdit bool                `json:"has_pending_edit"`
	Error          string              `json:"error,omitempty"`
}

// View returns a snapshot.
func (m *Machine) View() View {
	v := View{
		State:          m.state,
		Mode:           m.mode,
		Issues:         m.issues,
		Notes:          m.notes,
		NeedsAck:       m.risky && !m.acknowledged,
		Prompt:         m.prompt,
		Apply:          m.apply,
		HasPendingEdit: m.pending != "",
	}
	if m.err != nil {
		v.Error = m.err.Error()
	}
	return v
}

func (m *Machine) submit() *Submission {
	m.generation++
	m.state = StateSubmitting
	m.err = nil
	return &Submission{
		Generation: m.generation,
		Mode:       m.mode,
		Issues:     append([]types.Issue(nil), m.issues...),
		Notes:      m.notes,
	}
}

func (m *Machine) accept() {
	if m.apply != nil {
		m.pending = m.apply.ModifiedText
	}
	m.reset()
}

// reset returns to idle, keeping the generation and the pending-edit buffer.
func (m *Machine) reset() {
	m.state = StateIdle
	m.mode = ""
	m.issues = nil
	m.notes = ""
	m.risky = false
	m.acknowledged = false
	m.prompt = nil
	m.apply = nil
	m.err = nil
}

func (m *Machine) invalid(msg string) error {
	return types.NewStageError(types.ErrInvalidTransition, m.stage, msg, nil)
}
