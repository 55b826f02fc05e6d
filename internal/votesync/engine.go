// Package votesync moves locally queued votes to a confirmed state on the
// transparency log. Jobs run in supervised background workers, one machine
// at a time, and every vote outcome is written to the audit ledger.
package votesync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"fortis/internal/audit"
	"fortis/internal/votesync/metrics"
	dErrors "fortis/pkg/domain-errors"
	"fortis/pkg/platform/sentinel"
)

// ErrQueueFull is returned by Enqueue when a machine already holds
// QueueCapacity unsynced votes.
var ErrQueueFull = dErrors.New(dErrors.CodeUnavailable, "sync queue is full")

type Config struct {
	ThresholdRequired int
	SignatureTimeout  time.Duration
	MaxRetryAttempts  int
	QueueCapacity     int
	JobDeadline       time.Duration
	StaleAfter        time.Duration
	// EstimatedDuration is reported to callers of StartSync as an ETA.
	EstimatedDuration time.Duration
}

func DefaultConfig() Config {
	return Config{
		ThresholdRequired: 2,
		SignatureTimeout:  30 * time.Second,
		MaxRetryAttempts:  3,
		QueueCapacity:     1024,
		JobDeadline:       10 * time.Minute,
		StaleAfter:        24 * time.Hour,
		EstimatedDuration: 2 * time.Minute,
	}
}

type Engine struct {
	store   Store
	tlog    TransparencyLog
	nodes   []VerificationNode
	cfg     Config
	audit   AuditLogger
	ledger  LedgerState
	metrics *metrics.Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
	now     func() time.Time

	mu         sync.RWMutex
	active     map[uuid.UUID]*jobState
	machines   map[string]chan struct{}
	queueLocks map[string]*sync.Mutex
	closing    bool

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithConfig(cfg Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

func WithAuditLogger(a AuditLogger) Option {
	return func(e *Engine) { e.audit = a }
}

func WithLedgerState(l LedgerState) Option {
	return func(e *Engine) { e.ledger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(store Store, tlog TransparencyLog, nodes []VerificationNode, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, errors.New("vote store is required")
	}
	if tlog == nil {
		return nil, errors.New("transparency log is required")
	}
	e := &Engine{
		store:      store,
		tlog:       tlog,
		nodes:      nodes,
		cfg:        DefaultConfig(),
		logger:     slog.Default(),
		tracer:     otel.Tracer("fortis/votesync"),
		now:        time.Now,
		active:     make(map[uuid.UUID]*jobState),
		machines:   make(map[string]chan struct{}),
		queueLocks: make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cfg.ThresholdRequired < 1 || e.cfg.ThresholdRequired > len(nodes) {
		return nil, fmt.Errorf("threshold %d cannot be met by %d verification nodes", e.cfg.ThresholdRequired, len(nodes))
	}
	e.baseCtx, e.cancel = context.WithCancel(context.Background())
	return e, nil
}

// Enqueue appends vote to its machine's FIFO queue as Pending.
func (e *Engine) Enqueue(ctx context.Context, vote EncryptedVote) error {
	if vote.ID == uuid.Nil || vote.MachineID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "vote id and machine id are required")
	}
	lock := e.queueLock(vote.MachineID)
	lock.Lock()
	defer lock.Unlock()

	queued, err := e.store.CountVotes(ctx, vote.MachineID, VotePending, VoteInFlight)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count queued votes")
	}
	if queued >= e.cfg.QueueCapacity {
		return ErrQueueFull
	}

	vote.SyncStatus = VotePending
	vote.Attempts = 0
	vote.LogHash = ""
	vote.FailureReason = ""
	vote.Retryable = false
	vote.Escalated = false
	vote.UpdatedAt = e.now()
	if err := e.store.SaveVote(ctx, vote); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to queue vote")
	}
	e.logger.DebugContext(ctx, "vote queued for sync", "vote_id", vote.ID, "machine_id", vote.MachineID)
	return nil
}

// StartSync records a Pending job and hands it to a supervised worker. It
// returns before any vote is processed.
func (e *Engine) StartSync(ctx context.Context, machineID string, syncType SyncType, forceFull bool) (StartResult, error) {
	if machineID == "" {
		return StartResult{}, dErrors.New(dErrors.CodeInvalidInput, "machine id is required")
	}
	if syncType == "" {
		syncType = SyncIncremental
	}
	now := e.now()
	st := &jobState{job: SyncJob{
		ID:        uuid.New(),
		MachineID: machineID,
		Type:      syncType,
		ForceFull: forceFull,
		Status:    JobPending,
		StartedAt: now,
		Errors:    []string{},
	}}

	e.mu.Lock()
	if e.closing {
		e.mu.Unlock()
		return StartResult{}, dErrors.New(dErrors.CodeUnavailable, "sync engine is shutting down")
	}
	e.active[st.job.ID] = st
	e.wg.Add(1)
	e.mu.Unlock()

	if err := e.store.SaveJob(ctx, st.job.Clone()); err != nil {
		e.release(st.job.ID)
		e.wg.Done()
		return StartResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record sync job")
	}
	e.metrics.IncJobStarted(string(syncType))
	e.logEvent(ctx, audit.SyncJobStarted{
		SyncID:    st.job.ID.String(),
		MachineID: machineID,
		SyncType:  string(syncType),
		ForceFull: forceFull,
	})

	go e.supervise(st)

	return StartResult{
		SyncID:              st.job.ID,
		Status:              JobPending,
		EstimatedCompletion: now.Add(e.cfg.EstimatedDuration),
	}, nil
}

// Status returns a snapshot of the job.
func (e *Engine) Status(ctx context.Context, syncID uuid.UUID) (SyncJob, error) {
	e.mu.RLock()
	st, ok := e.active[syncID]
	e.mu.RUnlock()
	if ok {
		return st.snapshot(), nil
	}
	job, err := e.store.GetJob(ctx, syncID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return SyncJob{}, dErrors.New(dErrors.CodeNotFound, "sync job not found")
	}
	if err != nil {
		return SyncJob{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load sync job")
	}
	return job, nil
}

// PendingCount returns how many votes of machineID still await a sync.
func (e *Engine) PendingCount(ctx context.Context, machineID string) (int, error) {
	n, err := e.store.CountVotes(ctx, machineID, VotePending)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count pending votes")
	}
	return n, nil
}

// RetryFailedSyncs requeues retryable failed votes and starts a new job per
// affected machine. Votes that already used MaxRetryAttempts retries are
// escalated once and stay Failed.
func (e *Engine) RetryFailedSyncs(ctx context.Context) (RetryReport, error) {
	if e.ledger != nil && e.ledger.Halted() {
		return RetryReport{}, audit.ErrLedgerHalted
	}
	failed, err := e.store.ListVotes(ctx, "", VoteFailed)
	if err != nil {
		return RetryReport{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list failed votes")
	}

	report := RetryReport{Jobs: []uuid.UUID{}}
	var machines []string
	seen := make(map[string]bool)
	now := e.now()

	for _, vote := range failed {
		if !vote.Retryable || vote.Escalated {
			continue
		}
		if vote.Attempts >= e.cfg.MaxRetryAttempts {
			vote.Escalated = true
			vote.UpdatedAt = now
			if err := e.store.UpdateVote(ctx, vote); err != nil {
				return report, dErrors.Wrap(err, dErrors.CodeInternal, "failed to escalate vote")
			}
			if e.audit != nil {
				_, err := e.audit.LogEvent(ctx, audit.SecurityAlert{
					Source:  "votesync",
					Subject: vote.ID.String(),
					Message: fmt.Sprintf("vote from machine %s exceeded %d sync retries: %s", vote.MachineID, e.cfg.MaxRetryAttempts, vote.FailureReason),
				})
				if err != nil {
					return report, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to record escalation")
				}
			}
			e.metrics.IncEscalated()
			e.logger.WarnContext(ctx, "vote escalated after exhausting retries",
				"vote_id", vote.ID,
				"machine_id", vote.MachineID,
				"attempts", vote.Attempts,
			)
			report.Escalated++
			continue
		}

		vote.Attempts++
		vote.SyncStatus = VotePending
		vote.FailureReason = ""
		vote.Retryable = false
		vote.UpdatedAt = now
		if err := e.store.UpdateVote(ctx, vote); err != nil {
			return report, dErrors.Wrap(err, dErrors.CodeInternal, "failed to requeue vote")
		}
		report.Requeued++
		if !seen[vote.MachineID] {
			seen[vote.MachineID] = true
			machines = append(machines, vote.MachineID)
		}
	}

	for _, machineID := range machines {
		res, err := e.StartSync(ctx, machineID, SyncIncremental, false)
		if err != nil {
			return report, err
		}
		report.Jobs = append(report.Jobs, res.SyncID)
	}
	return report, nil
}

// Recover repairs state left behind by a process that stopped mid-sync. Jobs
// that never reached a terminal status are marked Failed and in-flight votes
// go back to Pending so the next sync submits them again. It must run before
// any job is started.
func (e *Engine) Recover(ctx context.Context) (RecoveryReport, error) {
	var report RecoveryReport

	e.mu.RLock()
	busy := make(map[uuid.UUID]bool, len(e.active))
	busyMachines := make(map[string]bool, len(e.active))
	for id, st := range e.active {
		busy[id] = true
		busyMachines[st.snapshot().MachineID] = true
	}
	e.mu.RUnlock()

	jobs, err := e.store.ListJobs(ctx, JobPending, JobInProgress)
	if err != nil {
		return report, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list unfinished sync jobs")
	}
	now := e.now()
	for _, job := range jobs {
		if busy[job.ID] {
			continue
		}
		job.Status = JobFailed
		job.Errors = append(job.Errors, "interrupted by restart")
		completed := now
		job.CompletedAt = &completed
		if err := e.store.SaveJob(ctx, job); err != nil {
			return report, dErrors.Wrap(err, dErrors.CodeInternal, "failed to close interrupted sync job")
		}
		report.Jobs++
		e.logEvent(ctx, audit.SyncJobFinished{
			SyncID:      job.ID.String(),
			MachineID:   job.MachineID,
			Status:      string(job.Status),
			VotesSynced: job.VotesSynced,
			FailedVotes: len(job.Errors),
		})
	}

	votes, err := e.store.ListVotes(ctx, "", VoteInFlight)
	if err != nil {
		return report, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list in-flight votes")
	}
	for _, vote := range votes {
		if busyMachines[vote.MachineID] {
			continue
		}
		vote.SyncStatus = VotePending
		vote.UpdatedAt = now
		if err := e.store.UpdateVote(ctx, vote); err != nil {
			return report, dErrors.Wrap(err, dErrors.CodeInternal, "failed to requeue in-flight vote")
		}
		report.Votes++
	}

	if report.Jobs > 0 || report.Votes > 0 {
		e.logger.WarnContext(ctx, "recovered interrupted sync state",
			"jobs_failed", report.Jobs,
			"votes_requeued", report.Votes,
		)
	}
	return report, nil
}

// CleanupCompletedSyncs purges terminal jobs and confirmed votes last touched
// before now-retention. It returns the number of records removed.
func (e *Engine) CleanupCompletedSyncs(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := e.now().Add(-retention)
	jobs, err := e.store.DeleteTerminalJobs(ctx, cutoff)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to purge sync jobs")
	}
	votes, err := e.store.DeleteConfirmedVotes(ctx, cutoff)
	if err != nil {
		return jobs, dErrors.Wrap(err, dErrors.CodeInternal, "failed to purge confirmed votes")
	}
	e.logger.InfoContext(ctx, "sync records purged", "jobs", jobs, "votes", votes, "cutoff", cutoff)
	return jobs + votes, nil
}

// Shutdown stops accepting jobs and asks running workers to stop after the
// vote they are processing. Votes not reached stay Pending.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.closing = true
	e.mu.Unlock()
	e.cancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) queueLock(machineID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.queueLocks[machineID]
	if !ok {
		l = &sync.Mutex{}
		e.queueLocks[machineID] = l
	}
	return l
}

func (e *Engine) release(id uuid.UUID) {
	e.mu.Lock()
	delete(e.active, id)
	e.mu.Unlock()
}

func (e *Engine) logEvent(ctx context.Context, event audit.Event) {
	if e.audit == nil {
		return
	}
	if _, err := e.audit.LogEvent(ctx, event); err != nil {
		e.logger.ErrorContext(ctx, "failed to record sync audit event",
			"event_type", event.EventType(),
			"error", err,
		)
	}
}
