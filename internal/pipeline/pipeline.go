// Package pipeline orchestrates conversation post-processing: extraction,
// artifact storage, summarization, report generation, and notification.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/convo-recap/internal/db"
	"github.com/jonathan/convo-recap/internal/extraction"
	"github.com/jonathan/convo-recap/internal/report"
	"github.com/jonathan/convo-recap/internal/storage"
	"github.com/jonathan/convo-recap/internal/summarize"
	"github.com/jonathan/convo-recap/internal/types"
)

// Ledger is the run bookkeeping surface the orchestrator needs. *db.DB
// satisfies it.
type Ledger interface {
	RecordRun(ctx context.Context, input db.RunInput) (*db.Run, error)
	GetRun(ctx context.Context, processingID uuid.UUID) (*db.Run, error)
	UpdateRunProgress(ctx context.Context, processingID uuid.UUID, status string, progress int, currentStep string) error
	UpdateRunArtifacts(ctx context.Context, processingID uuid.UUID, transcriptURL, audioURL, reportURL *string) error
	UpdateRunSummary(ctx context.Context, processingID uuid.UUID, topic, sentiment string, keyPoints, actionItems []string, narrative string) error
	CompleteRun(ctx context.Context, processingID uuid.UUID) error
	MarkRunFailed(ctx context.Context, processingID uuid.UUID, step, errorMessage string) error
	UpsertArtifact(ctx context.Context, input db.ArtifactInput) (*db.Artifact, error)
	AppendAuditEvent(ctx context.Context, input db.AuditEventInput) error
}

// ConversationFetcher retrieves conversation data from the provider.
type ConversationFetcher interface {
	FetchTranscript(ctx context.Context, conversationID string) (*types.Transcript, error)
	FetchAudio(ctx context.Context, conversationID string) ([]byte, error)
}

// Summarizer produces a structured summary from a transcript.
type Summarizer interface {
	Summarize(ctx context.Context, transcript *types.Transcript) (*types.Summary, error)
}

// ReportRenderer turns a summary into PDF bytes.
type ReportRenderer interface {
	Render(ctx context.Context, summary *types.Summary, meta report.Metadata) ([]byte, error)
}

// ArtifactStore persists artifact bytes under deterministic keys.
type ArtifactStore interface {
	Put(accountID, conversationID string, fileType types.FileType, data []byte) (storage.Locator, error)
}

// TokenIssuer mints single-use download tokens.
type TokenIssuer interface {
	Issue(ctx context.Context, conversationID, accountID string, fileType types.FileType) (string, error)
}

// Notifier sends the completion email.
type Notifier interface {
	Notify(ctx context.Context, emailID, conversationID string, tokensByType map[types.FileType]string) error
}

// ErrNotActive indicates a cancel request for a run this process is not
// currently executing.
var ErrNotActive = errors.New("run is not active")

// retryPolicy bounds per-stage retries of transient failures.
type retryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	callTimeout time.Duration
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{
		maxAttempts: 3,
		baseDelay:   500 * time.Millisecond,
		callTimeout: 2 * time.Minute,
	}
}

// backoff returns the delay before the given retry (1-based).
func (p retryPolicy) backoff(retry int) time.Duration {
	return p.baseDelay * (1 << (retry - 1))
}

// Orchestrator drives runs through the processing stages and records every
// transition in the run ledger and audit trail.
type Orchestrator struct {
	ledger   Ledger
	fetcher  ConversationFetcher
	summer   Summarizer
	renderer ReportRenderer
	store    ArtifactStore
	issuer   TokenIssuer
	notifier Notifier
	policy   retryPolicy
	verbose  bool

	mu     sync.Mutex
	active map[uuid.UUID]context.CancelFunc
}

// New creates an Orchestrator with the default retry policy.
func New(ledger Ledger, fetcher ConversationFetcher, summer Summarizer, renderer ReportRenderer, store ArtifactStore, issuer TokenIssuer, notifier Notifier) *Orchestrator {
	return &Orchestrator{
		ledger:   ledger,
		fetcher:  fetcher,
		summer:   summer,
		renderer: renderer,
		store:    store,
		issuer:   issuer,
		notifier: notifier,
		policy:   defaultRetryPolicy(),
		active:   make(map[uuid.UUID]context.CancelFunc),
	}
}

// SetVerbose enables per-stage logging.
func (o *Orchestrator) SetVerbose(v bool) { o.verbose = v }

// StartRun records a new run and begins processing it in the background.
// Every submission appends a fresh run, even for a conversation that was
// already processed; reads reduce to the latest run per conversation.
func (o *Orchestrator) StartRun(ctx context.Context, input db.RunInput) (*db.Run, error) {
	run, err := o.ledger.RecordRun(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	o.mu.Lock()
	o.active[run.ProcessingID] = cancel
	o.mu.Unlock()

	go func() {
		defer func() {
			cancel()
			o.mu.Lock()
			delete(o.active, run.ProcessingID)
			o.mu.Unlock()
		}()
		if err := o.execute(runCtx, run); err != nil && o.verbose {
			log.Printf("[PIPELINE] run %s failed: %v", run.ProcessingID, err)
		}
	}()

	return run, nil
}

// Execute processes a run synchronously. Used by the one-shot CLI path;
// StartRun uses it under the hood.
func (o *Orchestrator) Execute(ctx context.Context, run *db.Run) error {
	return o.execute(ctx, run)
}

// Cancel requests cooperative cancellation of an in-flight run. The run
// stops at the next stage boundary and is marked failed. Cancelling a run
// this process is not executing returns ErrNotActive.
func (o *Orchestrator) Cancel(processingID uuid.UUID) error {
	o.mu.Lock()
	cancel, ok := o.active[processingID]
	o.mu.Unlock()
	if !ok {
		return ErrNotActive
	}
	cancel()
	return nil
}

// stage is one pipeline step. Progress is the value reported while the
// stage runs; each stage owns a fifth of the bar.
type stage struct {
	status   string
	progress int
	run      func(ctx context.Context, st *runState) error
}

// runState carries intermediate results between stages.
type runState struct {
	run        *db.Run
	transcript *types.Transcript
	audio      []byte // nil when the provider has no recording
	summary    *types.Summary
	pdf        []byte
	tokens     map[types.FileType]string
}

func (o *Orchestrator) stages() []stage {
	return []stage{
		{db.StatusExtracting, 20, o.stageExtract},
		{db.StatusStoring, 40, o.stageStore},
		{db.StatusSummarizing, 60, o.stageSummarize},
		{db.StatusGeneratingReport, 80, o.stageReport},
		{db.StatusSendingEmail, 90, o.stageNotify},
	}
}

func (o *Orchestrator) execute(ctx context.Context, run *db.Run) error {
	st := &runState{run: run}

	for _, stg := range o.stages() {
		if err := ctx.Err(); err != nil {
			return o.fail(ctx, run, stg.status, "processing cancelled", true)
		}

		if err := o.ledger.UpdateRunProgress(ctx, run.ProcessingID, stg.status, stg.progress, stg.status); err != nil {
			return fmt.Errorf("failed to update run progress: %w", err)
		}
		o.audit(ctx, run.ProcessingID, db.EventStageStarted, db.EventStatusOK, stg.status, "", 0)
		if o.verbose {
			log.Printf("[PIPELINE] run %s: %s", run.ProcessingID, stg.status)
		}

		if err := o.runStage(ctx, stg, st); err != nil {
			if errors.Is(err, context.Canceled) {
				return o.fail(ctx, run, stg.status, "processing cancelled", true)
			}
			o.audit(ctx, run.ProcessingID, db.EventStageFailed, failureStatus(err), stg.status, err.Error(), 0)
			return o.fail(ctx, run, stg.status, err.Error(), false)
		}
		o.audit(ctx, run.ProcessingID, db.EventStageCompleted, db.EventStatusOK, stg.status, "", 0)
	}

	if err := o.ledger.CompleteRun(ctx, run.ProcessingID); err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if o.verbose {
		log.Printf("[PIPELINE] run %s: completed", run.ProcessingID)
	}
	return nil
}

// runStage executes a stage with bounded retries on transient failures.
func (o *Orchestrator) runStage(ctx context.Context, stg stage, st *runState) error {
	var lastErr error
	for attempt := 1; attempt <= o.policy.maxAttempts; attempt++ {
		if attempt > 1 {
			o.audit(ctx, st.run.ProcessingID, db.EventStageRetried, db.EventStatusTransient, stg.status, lastErr.Error(), attempt-1)
			select {
			case <-time.After(o.policy.backoff(attempt - 1)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, o.policy.callTimeout)
		lastErr = stg.run(callCtx, st)
		cancel()

		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) || ctx.Err() != nil {
			return lastErr
		}
	}
	return fmt.Errorf("stage failed after %d attempts: %w", o.policy.maxAttempts, lastErr)
}

// retryable reports whether an error is worth another attempt. Permanent
// conditions (unknown conversation, unsummarizable input, malformed report
// input) fail the run immediately.
func retryable(err error) bool {
	if errors.Is(err, extraction.ErrNotFound) || errors.Is(err, summarize.ErrInvalidInput) {
		return false
	}
	var templateErr *report.TemplateError
	if errors.As(err, &templateErr) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

func failureStatus(err error) string {
	if retryable(err) {
		return db.EventStatusTransient
	}
	return db.EventStatusFatal
}

func (o *Orchestrator) fail(ctx context.Context, run *db.Run, step, message string, cancelled bool) error {
	// Keep the audit trail and failure record even when the run context is
	// already cancelled.
	bg := context.WithoutCancel(ctx)
	if cancelled {
		o.audit(bg, run.ProcessingID, db.EventRunCancelled, db.EventStatusOK, step, message, 0)
	}
	if err := o.ledger.MarkRunFailed(bg, run.ProcessingID, step, message); err != nil {
		return fmt.Errorf("failed to mark run failed: %w", err)
	}
	return fmt.Errorf("run failed at %s: %s", step, message)
}

func (o *Orchestrator) audit(ctx context.Context, processingID uuid.UUID, eventType, eventStatus, step, detail string, retryCount int) {
	err := o.ledger.AppendAuditEvent(context.WithoutCancel(ctx), db.AuditEventInput{
		ProcessingID: processingID,
		EventType:    eventType,
		EventStatus:  eventStatus,
		StepName:     step,
		Detail:       detail,
		RetryCount:   retryCount,
	})
	if err != nil && o.verbose {
		log.Printf("[PIPELINE] failed to append audit event: %v", err)
	}
}

// --- stages ---

func (o *Orchestrator) stageExtract(ctx context.Context, st *runState) error {
	transcript, err := o.fetcher.FetchTranscript(ctx, st.run.ConversationID)
	if err != nil {
		return err
	}
	st.transcript = transcript

	// Not every conversation has a recording; a missing one is an absent
	// artifact, not a failure.
	audio, err := o.fetcher.FetchAudio(ctx, st.run.ConversationID)
	if err != nil {
		if errors.Is(err, extraction.ErrNotFound) {
			st.audio = nil
			return nil
		}
		return err
	}
	st.audio = audio
	return nil
}

func (o *Orchestrator) stageStore(ctx context.Context, st *runState) error {
	var transcriptLoc, audioLoc storage.Locator

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		transcriptLoc, err = o.store.Put(st.run.AccountID, st.run.ConversationID, types.FileTypeTranscript, []byte(st.transcript.PlainText()))
		return err
	})
	if st.audio != nil {
		g.Go(func() error {
			var err error
			audioLoc, err = o.store.Put(st.run.AccountID, st.run.ConversationID, types.FileTypeAudio, st.audio)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := o.recordArtifact(ctx, st.run, types.FileTypeTranscript, transcriptLoc); err != nil {
		return err
	}
	var audioPath *string
	if st.audio != nil {
		if err := o.recordArtifact(ctx, st.run, types.FileTypeAudio, audioLoc); err != nil {
			return err
		}
		audioPath = &audioLoc.Path
	}
	return o.ledger.UpdateRunArtifacts(ctx, st.run.ProcessingID, &transcriptLoc.Path, audioPath, nil)
}

func (o *Orchestrator) stageSummarize(ctx context.Context, st *runState) error {
	summary, err := o.summer.Summarize(ctx, st.transcript)
	if err != nil {
		return err
	}
	st.summary = summary
	return o.ledger.UpdateRunSummary(ctx, st.run.ProcessingID,
		summary.Topic, summary.Sentiment, summary.KeyPoints, summary.ActionItems, summary.Narrative)
}

func (o *Orchestrator) stageReport(ctx context.Context, st *runState) error {
	pdf, err := o.renderer.Render(ctx, st.summary, report.Metadata{
		ConversationID: st.run.ConversationID,
		AccountID:      st.run.AccountID,
		GeneratedAt:    time.Now().UTC(),
		TurnCount:      len(st.transcript.Turns),
	})
	if err != nil {
		return err
	}
	st.pdf = pdf

	loc, err := o.store.Put(st.run.AccountID, st.run.ConversationID, types.FileTypeReport, pdf)
	if err != nil {
		return err
	}
	if err := o.recordArtifact(ctx, st.run, types.FileTypeReport, loc); err != nil {
		return err
	}
	return o.ledger.UpdateRunArtifacts(ctx, st.run.ProcessingID, nil, nil, &loc.Path)
}

func (o *Orchestrator) stageNotify(ctx context.Context, st *runState) error {
	tokensByType := make(map[types.FileType]string)
	for _, ft := range []types.FileType{types.FileTypeTranscript, types.FileTypeReport} {
		token, err := o.issuer.Issue(ctx, st.run.ConversationID, st.run.AccountID, ft)
		if err != nil {
			return err
		}
		tokensByType[ft] = token
	}
	if st.audio != nil {
		token, err := o.issuer.Issue(ctx, st.run.ConversationID, st.run.AccountID, types.FileTypeAudio)
		if err != nil {
			return err
		}
		tokensByType[types.FileTypeAudio] = token
	}
	st.tokens = tokensByType

	// A failed email must not discard finished work: audit it and let the
	// run complete. Artifacts stay reachable through the status endpoint.
	if err := o.notifier.Notify(ctx, st.run.EmailID, st.run.ConversationID, tokensByType); err != nil {
		o.audit(ctx, st.run.ProcessingID, db.EventNotificationFailed, db.EventStatusTransient, db.StatusSendingEmail, err.Error(), 0)
		if o.verbose {
			log.Printf("[PIPELINE] run %s: notification failed: %v", st.run.ProcessingID, err)
		}
	}
	return nil
}

func (o *Orchestrator) recordArtifact(ctx context.Context, run *db.Run, fileType types.FileType, loc storage.Locator) error {
	_, err := o.ledger.UpsertArtifact(ctx, db.ArtifactInput{
		ConversationID: run.ConversationID,
		AccountID:      run.AccountID,
		FileType:       fileType,
		StoragePath:    loc.Path,
		SizeBytes:      loc.SizeBytes,
		Checksum:       loc.Checksum,
	})
	return err
}
