// Package servicetest provides in-memory collaborator fakes for pipeline tests.
package servicetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/textaudit/layered-audit/internal/types"
)

// Documents is a DocumentService backed by a map.
type Documents struct {
	mu      sync.Mutex
	Docs    map[string]*types.Document
	GetErr  error
	Gets    int
	nextID  int
	Uploads []string
	// GetGate, when set, blocks each Get call until a value is received.
	GetGate chan struct{}
	// GetStarted receives the requested id as each Get call begins.
	GetStarted chan string
}

// NewDocuments seeds a Documents fake with id → text pairs.
func NewDocuments(seed map[string]string) *Documents {
	d := &Documents{Docs: make(map[string]*types.Document)}
	for id, text := range seed {
		d.Docs[id] = &types.Document{ID: id, Text: text}
	}
	return d
}

// Get implements services.DocumentService.
func (d *Documents) Get(ctx context.Context, id string) (*types.Document, error) {
	d.mu.Lock()
	gate, started := d.GetGate, d.GetStarted
	d.mu.Unlock()

	if started != nil {
		started <- id
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.Gets++
	if d.GetErr != nil {
		return nil, d.GetErr
	}
	doc, ok := d.Docs[id]
	if !ok {
		return nil, fmt.Errorf("document not found: %s", id)
	}
	copied := *doc
	return &copied, nil
}

// Upload implements services.DocumentService.
func (d *Documents) Upload(ctx context.Context, file *types.Upload, parentID string) (string, error) {
	return d.UploadText(ctx, string(file.Data), file.Filename, parentID)
}

// UploadText implements services.DocumentService.
func (d *Documents) UploadText(_ context.Context, text, filename, parentID string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	id := fmt.Sprintf("doc-v%d", d.nextID+1)
	d.Docs[id] = &types.Document{ID: id, Text: text, Filename: filename, ParentID: parentID}
	d.Uploads = append(d.Uploads, id)
	return id, nil
}

// SetText replaces a document's text in place (tests only).
func (d *Documents) SetText(id, text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Docs[id] = &types.Document{ID: id, Text: text}
}

// Sessions is a SessionService backed by a map.
type Sessions struct {
	mu        sync.Mutex
	Sessions  map[string]*types.Session
	Steps     []types.StageID
	UpdateErr error
	GetErr    error
	// UpdateGate, when set, blocks each UpdateStep call until a value is received.
	UpdateGate chan struct{}
}

// NewSessions creates an empty Sessions fake.
func NewSessions() *Sessions {
	return &Sessions{Sessions: make(map[string]*types.Session)}
}

// Create implements services.SessionService.
func (s *Sessions) Create(_ context.Context, documentID string) (*types.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := fmt.Sprintf("session-%d", len(s.Sessions)+1)
	session := &types.Session{ID: id, DocumentID: documentID}
	s.Sessions[id] = session
	copied := *session
	return &copied, nil
}

// GetCurrent implements services.SessionService.
func (s *Sessions) GetCurrent(_ context.Context, sessionID string) (*types.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	session, ok := s.Sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session not found: %s", sessionID)
	}
	copied := *session
	return &copied, nil
}

// UpdateStep implements services.SessionService.
func (s *Sessions) UpdateStep(ctx context.Context, sessionID string, step types.StageID) error {
	s.mu.Lock()
	gate := s.UpdateGate
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.Steps = append(s.Steps, step)
	if s.UpdateErr != nil {
		return s.UpdateErr
	}
	if session, ok := s.Sessions[sessionID]; ok {
		session.CurrentStep = step
	}
	return nil
}

// PinDocument implements services.SessionService.
func (s *Sessions) PinDocument(_ context.Context, sessionID, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.Sessions[sessionID]
	if !ok {
		return fmt.Errorf("session not found: %s", sessionID)
	}
	session.DocumentID = documentID
	return nil
}

// RecordedSteps returns a copy of the recorded step updates.
func (s *Sessions) RecordedSteps() []types.StageID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.StageID(nil), s.Steps...)
}

// Analysis is an AnalysisService returning canned results.
type Analysis struct {
	mu         sync.Mutex
	Results    map[types.AnalyzerKind]*types.AnalysisResult
	Contexts   map[types.ContextKind]*types.Context
	AnalyzeErr error
	ContextErr error
	AnalyzeLog []AnalyzeCall
	ContextLog []string
	// Gate, when set, blocks each Analyze call until a value is received.
	Gate chan struct{}
	// Started receives one value per Analyze call as it begins.
	Started chan struct{}
}

// AnalyzeCall records one Analyze invocation.
type AnalyzeCall struct {
	Kind      types.AnalyzerKind
	Text      string
	Context   *types.Context
	SessionID string
}

// NewAnalysis creates an Analysis fake with no canned results.
func NewAnalysis() *Analysis {
	return &Analysis{
		Results:  make(map[types.AnalyzerKind]*types.AnalysisResult),
		Contexts: make(map[types.ContextKind]*types.Context),
	}
}

// Analyze implements services.AnalysisService.
func (a *Analysis) Analyze(ctx context.Context, kind types.AnalyzerKind, text string, upstream *types.Context, sessionID string) (*types.AnalysisResult, error) {
	a.mu.Lock()
	a.AnalyzeLog = append(a.AnalyzeLog, AnalyzeCall{Kind: kind, Text: text, Context: upstream, SessionID: sessionID})
	gate, started := a.Gate, a.Started
	a.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.AnalyzeErr != nil {
		return nil, a.AnalyzeErr
	}
	result, ok := a.Results[kind]
	if !ok {
		return &types.AnalysisResult{RiskLevel: types.RiskLow}, nil
	}
	copied := *result
	return &copied, nil
}

// GetContext implements services.AnalysisService.
func (a *Analysis) GetContext(_ context.Context, kind types.ContextKind, text string) (*types.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ContextLog = append(a.ContextLog, text)
	if a.ContextErr != nil {
		return nil, a.ContextErr
	}
	if c, ok := a.Contexts[kind]; ok {
		return c, nil
	}
	return &types.Context{Kind: kind}, nil
}

// Calls returns a copy of the recorded Analyze calls.
func (a *Analysis) Calls() []AnalyzeCall {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]AnalyzeCall(nil), a.AnalyzeLog...)
}

// ContextCalls returns a copy of the texts GetContext was called with.
func (a *Analysis) ContextCalls() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.ContextLog...)
}

// SetAnalyzeErr swaps the Analyze error.
func (a *Analysis) SetAnalyzeErr(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.AnalyzeErr = err
}

// Suggestions is a SuggestionService recording the issues it was asked about.
type Suggestions struct {
	mu     sync.Mutex
	Result *types.Suggestion
	Err    error
	Asked  []types.Issue
}

// GetIssueSuggestion implements services.SuggestionService.
func (s *Suggestions) GetIssueSuggestion(_ context.Context, _ string, issue types.Issue, _ bool) (*types.Suggestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Asked = append(s.Asked, issue)
	if s.Err != nil {
		return nil, s.Err
	}
	if s.Result != nil {
		return s.Result, nil
	}
	return &types.Suggestion{Diagnosis: "diagnosis for " + issue.Kind}, nil
}

// Revisions is a RevisionService recording every request payload.
type Revisions struct {
	mu       sync.Mutex
	Prompt   *types.PromptResult
	Apply    *types.ApplyResult
	Err      error
	Requests []types.RevisionRequest
	// Gate, when set, blocks each call until a value is received.
	Gate chan struct{}
}

// GeneratePrompt implements services.RevisionService.
func (r *Revisions) GeneratePrompt(_ context.Context, documentID string, issues []types.Issue, opts types.RevisionOptions) (*types.PromptResult, error) {
	if err := r.record(documentID, issues, types.ModePrompt, opts); err != nil {
		return nil, err
	}
	if r.Prompt != nil {
		return r.Prompt, nil
	}
	return &types.PromptResult{Prompt: "rewrite the flagged passages", EstimatedChanges: len(issues)}, nil
}

// ApplyModify implements services.RevisionService.
func (r *Revisions) ApplyModify(_ context.Context, documentID string, issues []types.Issue, opts types.RevisionOptions) (*types.ApplyResult, error) {
	if err := r.record(documentID, issues, types.ModeApply, opts); err != nil {
		return nil, err
	}
	if r.Apply != nil {
		return r.Apply, nil
	}
	return &types.ApplyResult{ModifiedText: "revised text", ChangesSummary: []string{"rewrote paragraphs"}, RemainingAttempts: 2}, nil
}

func (r *Revisions) record(documentID string, issues []types.Issue, mode types.RevisionMode, opts types.RevisionOptions) error {
	r.mu.Lock()
	r.Requests = append(r.Requests, types.RevisionRequest{
		DocumentID: documentID,
		Issues:     append([]types.Issue(nil), issues...),
		Mode:       mode,
		Options:    opts,
	})
	gate := r.Gate
	err := r.Err
	r.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return err
}

// Recorded returns a copy of the recorded requests.
func (r *Revisions) Recorded() []types.RevisionRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.RevisionRequest(nil), r.Requests...)
}
