package pipeline

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/textaudit/layered-audit/internal/document"
	"github.com/textaudit/layered-audit/internal/logging"
	"github.com/textaudit/layered-audit/internal/revision"
	"github.com/textaudit/layered-audit/internal/selection"
	"github.com/textaudit/layered-audit/internal/services"
	"github.com/textaudit/layered-audit/internal/types"
)

// Phase is the analysis lifecycle of a stage instance.
type Phase string

// Phases.
const (
	PhaseUnresolved    Phase = "unresolved"
	PhaseResolveFailed Phase = "resolve_failed"
	PhaseReady         Phase = "ready"
	PhaseAnalyzing     Phase = "analyzing"
	PhaseAnalyzed      Phase = "analyzed"
	PhaseFailed        Phase = "failed"
)

// Deps are the collaborators shared by stage instances.
type Deps struct {
	Resolver    *document.Resolver
	Analysis    services.AnalysisService
	Suggestions *selection.Engine
	Revisions   services.RevisionService
	Versions    *revision.Transitioner
	Metrics     *Metrics
	Logger      *zap.Logger
}

// CompletionFunc is called after every successful analysis of a stage.
type CompletionFunc func(stage types.StageID, analysis *Analysis)

// Stage is one stage instance bound to a session. Every operation is an event
// applied to its state under a mutex; collaborator calls happen outside the
// mutex and their answers are applied as separate events.
type Stage struct {
	def        types.StageDef
	deps       Deps
	bridge     *Bridge
	runner     *Runner
	logger     *zap.Logger
	onComplete CompletionFunc
	guard      Guard

	mu            sync.Mutex
	ref           document.Ref
	binding       uint64 // advanced by Rebind
	phase         Phase
	doc           *types.Document
	err           error
	analysis      *Analysis
	lastInput     *Input
	contextReady  bool
	selection     *selection.Set
	suggestion    *types.Suggestion
	suggestionErr error
	suggestionGen uint64
	revision      *revision.Machine
}

// NewStage creates an unresolved stage instance. onComplete may be nil.
func NewStage(def types.StageDef, ref document.Ref, deps Deps, onComplete CompletionFunc) *Stage {
	logger := logging.OrNop(deps.Logger).With(zap.String("stage", string(def.ID)))
	return &Stage{
		def:        def,
		deps:       deps,
		bridge:     NewBridge(deps.Analysis),
		runner:     NewRunner(deps.Analysis, logger),
		logger:     logger,
		onComplete: onComplete,
		ref:        ref,
		phase:      PhaseUnresolved,
		selection:  selection.NewSet(0),
		revision:   revision.NewMachine(def.ID),
	}
}

// Def returns the stage definition.
func (s *Stage) Def() types.StageDef { return s.def }

// Resolve resolves the stage's document and fetches its text. A document
// fetched for a binding that Rebind replaced meanwhile is dropped and the
// current binding is resolved instead. A failure leaves an already bound
// document, and any analysis of it, in place.
func (s *Stage) Resolve(ctx context.Context) (*types.Document, error) {
	for {
		s.mu.Lock()
		ref, binding := s.ref, s.binding
		s.mu.Unlock()

		doc, err := s.deps.Resolver.Resolve(ctx, s.def.ID, ref)

		s.mu.Lock()
		if binding != s.binding {
			s.mu.Unlock()
			s.logger.Info("discarded document resolved for a replaced binding", zap.String("prop_id", ref.PropID))
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			continue
		}
		if err != nil {
			if s.doc == nil {
				s.phase = PhaseResolveFailed
				s.err = err
			}
			s.mu.Unlock()
			return nil, err
		}
		if s.doc == nil || s.doc.ID != doc.ID {
			s.guard.Supersede()
			s.doc = doc
			s.clearAnalysisLocked()
		}
		if s.phase == PhaseUnresolved || s.phase == PhaseResolveFailed {
			s.phase = PhaseReady
			s.err = nil
		}
		s.mu.Unlock()
		return doc, nil
	}
}

// Run triggers analysis of the current document. A trigger while a run is in
// flight fails with ErrRunInProgress and is not queued. A result for a document
// that was replaced during the run is discarded and the stage runs again
// against the current document.
func (s *Stage) Run(ctx context.Context) (*Analysis, error) {
	for {
		a, stale, err := s.runOnce(ctx, nil)
		if !stale {
			return a, err
		}
		s.logger.Info("discarded stale analysis result")
	}
}

// Retry re-runs a failed stage. An analysis failure replays the exact
// (text, context) pair of the failed run; a missing text re-invokes the
// resolver. An unresolved document has nothing to retry against.
func (s *Stage) Retry(ctx context.Context) (*Analysis, error) {
	s.mu.Lock()
	phase, lastErr, last := s.phase, s.err, s.lastInput
	s.mu.Unlock()

	switch phase {
	case PhaseResolveFailed:
		if types.IsKind(lastErr, types.ErrDocumentUnresolved) {
			return nil, lastErr
		}
		return s.Run(ctx)
	case PhaseFailed:
		if last == nil {
			return s.Run(ctx)
		}
		a, stale, err := s.runOnce(ctx, last)
		if stale {
			return s.Run(ctx)
		}
		return a, err
	default:
		return nil, types.NewStageError(types.ErrInvalidTransition, s.def.ID, "nothing to retry while "+string(phase), nil)
	}
}

func (s *Stage) runOnce(ctx context.Context, replay *Input) (*Analysis, bool, error) {
	if replay == nil {
		s.mu.Lock()
		resolved := s.doc != nil
		s.mu.Unlock()
		if !resolved {
			if _, err := s.Resolve(ctx); err != nil {
				return nil, false, err
			}
		}
	}

	generation, ok := s.guard.TryAcquire()
	if !ok {
		s.deps.Metrics.ObserveRun(s.def.ID, outcomeSuppressed)
		return nil, false, types.NewStageError(types.ErrRunInProgress, s.def.ID, "analysis already running", nil)
	}
	defer s.guard.Release()

	s.mu.Lock()
	var in Input
	contextReady := false
	switch {
	case replay != nil:
		in, contextReady = *replay, s.contextReady
	case s.doc != nil:
		in = Input{Text: s.doc.Text, SessionID: s.ref.SessionID}
	default:
		// Rebound between resolve and acquire.
		s.mu.Unlock()
		return nil, true, nil
	}
	s.phase = PhaseAnalyzing
	s.mu.Unlock()

	start := time.Now()
	if !contextReady {
		upstream, err := s.bridge.Fetch(ctx, s.def, in.Text)
		if err != nil {
			return s.finish(generation, in, false, nil, err, start)
		}
		in.Context = upstream
	}
	a, err := s.runner.Run(ctx, s.def, in)
	return s.finish(generation, in, true, a, err, start)
}

func (s *Stage) finish(generation uint64, in Input, contextReady bool, a *Analysis, err error, start time.Time) (*Analysis, bool, error) {
	s.deps.Metrics.ObserveDuration(s.def.ID, time.Since(start))

	s.mu.Lock()
	if !s.guard.Current(generation) {
		s.mu.Unlock()
		s.deps.Metrics.ObserveRun(s.def.ID, outcomeStale)
		return nil, true, nil
	}

	s.lastInput = &in
	s.contextReady = contextReady
	if err != nil {
		s.clearAnalysisLocked()
		s.phase = PhaseFailed
		s.err = err
		s.mu.Unlock()
		s.deps.Metrics.ObserveRun(s.def.ID, outcomeFailure)
		return nil, false, err
	}

	s.clearAnalysisLocked()
	s.analysis = a
	s.selection.Reset(len(a.Issues))
	s.phase = PhaseAnalyzed
	s.err = nil
	s.mu.Unlock()

	s.deps.Metrics.ObserveRun(s.def.ID, outcomeSuccess)
	s.logger.Debug("analysis completed",
		zap.String("risk_level", string(a.Result.RiskLevel)),
		zap.Int("issues", len(a.Issues)))
	if s.onComplete != nil {
		s.onComplete(s.def.ID, a)
	}
	return a, false, nil
}

// Toggle flips selection of one issue. It drops any loaded suggestion and any
// revision request or result built on the previous selection.
func (s *Stage) Toggle(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseAnalyzed {
		return types.NewStageError(types.ErrInvalidTransition, s.def.ID, "no issues to select while "+string(s.phase), nil)
	}
	if err := s.selection.Toggle(index); err != nil {
		return types.NewStageError(types.ErrInvalidTransition, s.def.ID, "invalid issue selection", err)
	}
	s.invalidateSelectionLocked()
	return nil
}

// LoadSuggestion loads a suggestion for the first selected issue.
func (s *Stage) LoadSuggestion(ctx context.Context) (*types.Suggestion, error) {
	s.mu.Lock()
	if s.phase != PhaseAnalyzed {
		s.mu.Unlock()
		return nil, types.NewStageError(types.ErrInvalidTransition, s.def.ID, "no issues to explain while "+string(s.phase), nil)
	}
	issue, err := selection.Target(s.def.ID, s.analysis.Issues, s.selection)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	documentID := s.doc.ID
	generation := s.suggestionGen
	s.mu.Unlock()

	suggestion, err := s.deps.Suggestions.Load(ctx, s.def.ID, documentID, issue)

	s.mu.Lock()
	defer s.mu.Unlock()
	if generation != s.suggestionGen {
		return nil, types.NewStageError(types.ErrInvalidTransition, s.def.ID, "selection changed while the suggestion was loading", nil)
	}
	if err != nil {
		s.suggestionErr = err
		return nil, err
	}
	s.suggestion = suggestion
	s.suggestionErr = nil
	return suggestion, nil
}

// DismissSuggestion clears the loaded suggestion or its error.
func (s *Stage) DismissSuggestion() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suggestion = nil
	s.suggestionErr = nil
}

// RequestRevision opens a revision of the given mode for the current selection.
func (s *Stage) RequestRevision(mode types.RevisionMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseAnalyzed {
		return types.NewStageError(types.ErrInvalidTransition, s.def.ID, "no issues to revise while "+string(s.phase), nil)
	}
	return s.revision.Request(mode, s.selection.Issues(s.analysis.Issues))
}

// ConfirmRevision confirms the pending request. Without a pending
// acknowledgment it submits and waits for the collaborator.
func (s *Stage) ConfirmRevision(ctx context.Context, notes string) error {
	return s.advanceRevision(ctx, func(m *revision.Machine) (*revision.Submission, error) {
		return m.Confirm(notes)
	})
}

// AcknowledgeRevision acknowledges fabrication risk and resumes the blocked
// submission or accept.
func (s *Stage) AcknowledgeRevision(ctx context.Context) error {
	return s.advanceRevision(ctx, (*revision.Machine).Acknowledge)
}

// AcceptRevision moves the apply result into the pending-edit buffer.
func (s *Stage) AcceptRevision() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision.Accept()
}

// RegenerateRevision reopens the request in apply mode.
func (s *Stage) RegenerateRevision() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision.Regenerate()
}

// CancelRevision abandons the current request or result.
func (s *Stage) CancelRevision() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision.Cancel()
}

func (s *Stage) advanceRevision(ctx context.Context, event func(*revision.Machine) (*revision.Submission, error)) error {
	s.mu.Lock()
	sub, err := event(s.revision)
	if err != nil || sub == nil {
		s.mu.Unlock()
		return err
	}
	documentID := ""
	if s.doc != nil {
		documentID = s.doc.ID
	}
	sessionID := s.ref.SessionID
	s.mu.Unlock()

	prompt, apply, callErr := revision.Submit(ctx, s.deps.Revisions, documentID, sessionID, sub)
	s.deps.Metrics.ObserveRevision(sub.Mode, callErr)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.revision.Complete(sub.Generation, prompt, apply, callErr) {
		s.logger.Info("discarded stale revision result", zap.Uint64("generation", sub.Generation))
		return nil
	}
	if callErr != nil {
		s.logger.Warn("revision failed", zap.String("mode", string(sub.Mode)), zap.Error(callErr))
		return s.revision.Err()
	}
	return nil
}

// CommitVersion persists a new document version from an uploaded file or text.
// With neither given, the pending-edit buffer is used. On success the stage is
// rebound to the new document and its id is returned.
func (s *Stage) CommitVersion(ctx context.Context, file *types.Upload, text, filename string) (string, error) {
	s.mu.Lock()
	if file.Empty() && text == "" {
		text = s.revision.Pending()
	}
	doc := s.doc
	sessionID := s.ref.SessionID
	s.mu.Unlock()

	if doc == nil {
		var err error
		if doc, err = s.Resolve(ctx); err != nil {
			return "", err
		}
	}

	id, err := s.deps.Versions.Commit(ctx, s.def.ID, revision.VersionInput{
		SessionID: sessionID,
		ParentID:  doc.ID,
		File:      file,
		Text:      text,
		Filename:  filename,
	})
	if err != nil {
		return "", err
	}
	s.Rebind(id)
	return id, nil
}

// Rebind makes documentID the stage's document. All analysis state is dropped
// and a run in flight becomes stale.
func (s *Stage) Rebind(documentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.guard.Supersede()
	s.binding++
	s.ref.PropID = documentID
	s.doc = nil
	s.phase = PhaseUnresolved
	s.err = nil
	s.clearAnalysisLocked()
	s.revision.ClearPending()
}

// clearAnalysisLocked drops the result and everything derived from it.
func (s *Stage) clearAnalysisLocked() {
	s.analysis = nil
	s.selection.Reset(0)
	s.invalidateSelectionLocked()
}

func (s *Stage) invalidateSelectionLocked() {
	s.suggestion = nil
	s.suggestionErr = nil
	s.suggestionGen++
	s.revision.Invalidate()
}

// View is a read-only snapshot of a stage instance.
type View struct {
	Stage           types.StageDef        `json:"stage"`
	Phase           Phase                 `json:"phase"`
	Running         bool                  `json:"running"`
	DocumentID      string                `json:"document_id,omitempty"`
	Result          *types.AnalysisResult `json:"result,omitempty"`
	Issues          []types.Issue         `json:"issues"`
	Selected        []int                 `json:"selected"`
	Suggestion      *types.Suggestion     `json:"suggestion,omitempty"`
	SuggestionError string                `json:"suggestion_error,omitempty"`
	Revision        revision.View         `json:"revision"`
	Error           string                `json:"error,omitempty"`
	ErrorKind       types.ErrorKind       `json:"error_kind,omitempty"`
	Retryable       bool                  `json:"retryable"`
}

// Snapshot returns the current view of the stage.
func (s *Stage) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		Stage:    s.def,
		Phase:    s.phase,
		Running:  s.guard.Running(),
		Issues:   []types.Issue{},
		Selected: s.selection.Indices(),
		Revision: s.revision.View(),
	}
	if s.doc != nil {
		v.DocumentID = s.doc.ID
	}
	if s.analysis != nil {
		v.Result = s.analysis.Result
		if s.analysis.Issues != nil {
			v.Issues = s.analysis.Issues
		}
	}
	if s.suggestion != nil {
		v.Suggestion = s.suggestion
	}
	if s.suggestionErr != nil {
		v.SuggestionError = s.suggestionErr.Error()
	}
	if s.err != nil {
		v.Error = s.err.Error()
		v.ErrorKind = types.KindOf(s.err)
		v.Retryable = s.phase == PhaseFailed ||
			(s.phase == PhaseResolveFailed && !types.IsKind(s.err, types.ErrDocumentUnresolved))
	}
	return v
}
