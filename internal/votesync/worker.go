package votesync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"fortis/internal/audit"
)

// jobState owns the live copy of a job. Every write to the store happens
// under mu so a late worker can never overwrite a terminal status set by
// the supervisor.
type jobState struct {
	mu  sync.Mutex
	job SyncJob
}

func (s *jobState) snapshot() SyncJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.job.Clone()
}

// mutate applies fn and persists the result unless the job is already
// terminal. It reports whether fn ran.
func (e *Engine) mutate(ctx context.Context, st *jobState, fn func(j *SyncJob)) (SyncJob, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.job.Status.Terminal() {
		return st.job.Clone(), false
	}
	prev := st.job.Status
	fn(&st.job)
	if st.job.Status != prev && !prev.CanTransition(st.job.Status) {
		e.logger.ErrorContext(ctx, "illegal sync job transition refused",
			"sync_id", st.job.ID,
			"from", prev,
			"to", st.job.Status,
		)
		st.job.Status = prev
	}
	if err := e.store.SaveJob(ctx, st.job.Clone()); err != nil {
		e.logger.ErrorContext(ctx, "failed to persist sync job", "sync_id", st.job.ID, "error", err)
	}
	return st.job.Clone(), true
}

// finish moves the job to its terminal status exactly once.
func (e *Engine) finish(ctx context.Context, st *jobState, reason string) {
	job, ok := e.mutate(ctx, st, func(j *SyncJob) {
		if reason != "" {
			j.Errors = append(j.Errors, reason)
		}
		j.Status = JobCompleted
		if len(j.Errors) > 0 {
			j.Status = JobFailed
		}
		now := e.now()
		j.CompletedAt = &now
	})
	if !ok {
		return
	}
	e.metrics.IncJobFinished(string(job.Status), job.CompletedAt.Sub(job.StartedAt))
	e.logger.InfoContext(ctx, "sync job finished",
		"sync_id", job.ID,
		"machine_id", job.MachineID,
		"status", job.Status,
		"votes_synced", job.VotesSynced,
		"errors", len(job.Errors),
	)
	e.logEvent(ctx, audit.SyncJobFinished{
		SyncID:      job.ID.String(),
		MachineID:   job.MachineID,
		Status:      string(job.Status),
		VotesSynced: job.VotesSynced,
		FailedVotes: len(job.Errors),
	})
}

// supervise waits for the machine slot, runs the worker and guarantees the
// job reaches a terminal status even if the worker panics or hangs.
func (e *Engine) supervise(st *jobState) {
	defer e.wg.Done()
	defer e.release(st.job.ID)

	parent := e.baseCtx
	persist := context.WithoutCancel(parent)

	sem := e.machineSlot(st.job.MachineID)
	select {
	case sem <- struct{}{}:
	case <-parent.Done():
		e.finish(persist, st, "sync engine shut down before the job started")
		return
	}

	runCtx, cancel := context.WithTimeout(parent, e.cfg.JobDeadline)
	defer cancel()

	done := make(chan error, 1)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() { <-sem }()
		defer func() {
			if r := recover(); r != nil {
				e.requeueInFlight(persist, st.job.MachineID)
				done <- fmt.Errorf("sync worker panicked: %v", r)
			}
		}()
		done <- e.run(runCtx, st)
	}()

	select {
	case err := <-done:
		e.onWorkerExit(persist, st, err)
	case <-runCtx.Done():
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			e.logger.Error("sync job exceeded deadline", "sync_id", st.job.ID, "deadline", e.cfg.JobDeadline)
			e.finish(persist, st, fmt.Sprintf("job exceeded deadline of %s", e.cfg.JobDeadline))
			return
		}
		e.onWorkerExit(persist, st, <-done)
	}
}

func (e *Engine) onWorkerExit(ctx context.Context, st *jobState, err error) {
	if err == nil {
		e.finish(ctx, st, "")
		return
	}
	e.logger.ErrorContext(ctx, "sync worker failed", "sync_id", st.job.ID, "error", err)
	e.finish(ctx, st, err.Error())
}

// requeueInFlight returns votes abandoned mid-submission to Pending. It runs
// while the machine slot is still held.
func (e *Engine) requeueInFlight(ctx context.Context, machineID string) {
	votes, err := e.store.ListVotes(ctx, machineID, VoteInFlight)
	if err != nil {
		e.logger.ErrorContext(ctx, "failed to list in-flight votes", "machine_id", machineID, "error", err)
		return
	}
	for _, v := range votes {
		v.SyncStatus = VotePending
		v.UpdatedAt = e.now()
		if err := e.store.UpdateVote(ctx, v); err != nil {
			e.logger.ErrorContext(ctx, "failed to requeue in-flight vote", "vote_id", v.ID, "error", err)
		}
	}
}

func (e *Engine) machineSlot(machineID string) chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	sem, ok := e.machines[machineID]
	if !ok {
		sem = make(chan struct{}, 1)
		e.machines[machineID] = sem
	}
	return sem
}

// run processes the job's votes sequentially in queue order. ctx is only
// consulted between votes; a vote already being submitted finishes within
// SignatureTimeout.
func (e *Engine) run(ctx context.Context, st *jobState) error {
	persist := context.WithoutCancel(ctx)
	job, ok := e.mutate(persist, st, func(j *SyncJob) { j.Status = JobInProgress })
	if !ok {
		return nil
	}

	ctx, span := e.tracer.Start(ctx, "votesync.job", trace.WithAttributes(
		attribute.String("sync_id", job.ID.String()),
		attribute.String("machine_id", job.MachineID),
		attribute.String("sync_type", string(job.Type)),
	))
	defer span.End()

	statuses := []VoteStatus{VotePending}
	if job.ForceFull || job.Type == SyncFull {
		statuses = append(statuses, VoteConfirmed)
	}
	votes, err := e.store.ListVotes(ctx, job.MachineID, statuses...)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("list queued votes: %w", err)
	}
	span.SetAttributes(attribute.Int("votes", len(votes)))

	for i, vote := range votes {
		if ctx.Err() != nil {
			e.mutate(persist, st, func(j *SyncJob) {
				j.Errors = append(j.Errors, fmt.Sprintf("interrupted: %d votes left pending", len(votes)-i))
			})
			break
		}
		e.syncVote(ctx, st, vote)
	}
	return nil
}

func (e *Engine) syncVote(ctx context.Context, st *jobState, vote EncryptedVote) {
	voteCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.SignatureTimeout)
	defer cancel()
	voteCtx, span := e.tracer.Start(voteCtx, "votesync.vote", trace.WithAttributes(
		attribute.String("vote_id", vote.ID.String()),
		attribute.String("election_id", vote.ElectionID),
	))
	defer span.End()

	syncID := st.job.ID
	resubmission := vote.SyncStatus == VoteConfirmed
	if err := e.validate(vote, resubmission); err != nil {
		span.SetStatus(codes.Error, err.Error())
		e.recordFailure(voteCtx, st, vote, err)
		return
	}

	if !resubmission {
		vote.SyncStatus = VoteInFlight
		vote.UpdatedAt = e.now()
		if err := e.store.UpdateVote(voteCtx, vote); err != nil {
			e.logger.ErrorContext(voteCtx, "failed to mark vote in flight", "vote_id", vote.ID, "error", err)
			e.mutate(voteCtx, st, func(j *SyncJob) {
				j.Errors = append(j.Errors, fmt.Sprintf("vote %s: store: %v", vote.ID, err))
			})
			return
		}
	}

	logHash, acks, syncErr := e.submit(voteCtx, vote)
	if syncErr != nil {
		span.RecordError(syncErr)
		span.SetStatus(codes.Error, syncErr.Error())
		if !resubmission {
			vote.SyncStatus = VoteFailed
			vote.FailureReason = syncErr.Error()
			vote.Retryable = syncErr.Retryable()
			vote.UpdatedAt = e.now()
			if err := e.store.UpdateVote(voteCtx, vote); err != nil {
				e.logger.ErrorContext(voteCtx, "failed to record vote failure", "vote_id", vote.ID, "error", err)
			}
		}
		e.recordFailure(voteCtx, st, vote, syncErr)
		return
	}

	vote.SyncStatus = VoteConfirmed
	vote.LogHash = logHash
	vote.FailureReason = ""
	vote.Retryable = false
	vote.UpdatedAt = e.now()
	if err := e.store.UpdateVote(voteCtx, vote); err != nil {
		e.logger.ErrorContext(voteCtx, "failed to record confirmed vote", "vote_id", vote.ID, "error", err)
		e.mutate(voteCtx, st, func(j *SyncJob) {
			j.Errors = append(j.Errors, fmt.Sprintf("vote %s: store: %v", vote.ID, err))
		})
		return
	}
	e.mutate(voteCtx, st, func(j *SyncJob) { j.VotesSynced++ })
	e.metrics.IncVoteOutcome(string(VoteConfirmed))
	e.logEvent(voteCtx, audit.VoteSynced{
		VoteID:    vote.ID.String(),
		MachineID: vote.MachineID,
		SyncID:    syncID.String(),
		LogHash:   logHash,
		Acks:      acks,
	})
}

func (e *Engine) recordFailure(ctx context.Context, st *jobState, vote EncryptedVote, err *SyncError) {
	e.mutate(ctx, st, func(j *SyncJob) {
		j.Errors = append(j.Errors, fmt.Sprintf("vote %s: %s", vote.ID, err.Error()))
	})
	e.metrics.IncVoteOutcome(string(err.Kind))
	e.logger.WarnContext(ctx, "vote sync failed",
		"vote_id", vote.ID,
		"machine_id", vote.MachineID,
		"kind", err.Kind,
		"retryable", err.Retryable(),
	)
	e.logEvent(ctx, audit.VoteSyncFailed{
		VoteID:    vote.ID.String(),
		MachineID: vote.MachineID,
		SyncID:    st.job.ID.String(),
		Kind:      string(err.Kind),
		Reason:    err.Error(),
		Retryable: err.Retryable(),
	})
}

// validate rejects votes that can never be accepted by the log. Such votes
// are left queued for an operator. Confirmed votes being resubmitted are not
// checked for staleness; their age was accepted when they were confirmed.
func (e *Engine) validate(vote EncryptedVote, resubmission bool) *SyncError {
	switch {
	case len(vote.EncryptedContent) == 0:
		return &SyncError{Kind: KindValidationFailed, Reason: "empty encrypted content"}
	case vote.EncryptionKeyID == "":
		return &SyncError{Kind: KindValidationFailed, Reason: "empty encryption key id"}
	case len(vote.Signature) == 0:
		return &SyncError{Kind: KindValidationFailed, Reason: "empty signature"}
	case len(vote.ZKProof) == 0:
		return &SyncError{Kind: KindValidationFailed, Reason: "empty zk proof"}
	}
	if resubmission {
		return nil
	}
	if age := e.now().Sub(vote.CastAt); age > e.cfg.StaleAfter {
		return &SyncError{Kind: KindStaleVote, Reason: fmt.Sprintf("cast %s ago", age.Truncate(time.Second))}
	}
	return nil
}

// submit appends the vote to the transparency log and collects node
// acknowledgements until the threshold is met or ctx expires.
func (e *Engine) submit(ctx context.Context, vote EncryptedVote) (string, int, *SyncError) {
	sub := NewSubmission(vote)
	logHash, err := e.tlog.Submit(ctx, sub)
	if err != nil {
		return "", 0, &SyncError{Kind: KindNetworkTimeout, Reason: "transparency log submission failed", Err: err}
	}

	start := time.Now()
	tally, waitErr := e.collectAcks(ctx, AckRequest{Submission: sub, LogHash: logHash})
	e.metrics.ObserveAck(time.Since(start))

	if tally.signers >= e.cfg.ThresholdRequired {
		return logHash, tally.signers, nil
	}
	reason := fmt.Sprintf("%d of %d required acknowledgements", tally.signers, e.cfg.ThresholdRequired)
	if tally.responded == 0 {
		return logHash, 0, &SyncError{Kind: KindNetworkTimeout, Reason: "no verification node responded", Err: waitErr}
	}
	return logHash, tally.signers, &SyncError{Kind: KindInsufficientConsensus, Reason: reason}
}

// ackTally counts nodes that answered at all and, among them, distinct
// configured signers with a valid acknowledgement.
type ackTally struct {
	responded int
	signers   int
}

// collectAcks broadcasts to every node concurrently and counts distinct
// signers whose recovered address matches the node's configured address.
// The returned error is the parent context's error, if any.
func (e *Engine) collectAcks(parent context.Context, req AckRequest) (ackTally, error) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	var (
		mu        sync.Mutex
		responded int
		signers   = make(map[common.Address]bool, len(e.nodes))
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, node := range e.nodes {
		g.Go(func() error {
			sig, err := node.Acknowledge(gctx, req)
			if err != nil {
				e.logger.DebugContext(gctx, "verification node did not acknowledge",
					"node", node.Address().Hex(),
					"vote_id", req.Submission.VoteID,
					"error", err,
				)
				return nil
			}
			mu.Lock()
			responded++
			mu.Unlock()
			signer, err := RecoverSigner(req.Submission.VoteID, req.LogHash, sig)
			if err != nil || signer != node.Address() {
				e.logger.WarnContext(gctx, "verification node returned an invalid acknowledgement",
					"node", node.Address().Hex(),
					"vote_id", req.Submission.VoteID,
				)
				return nil
			}
			mu.Lock()
			signers[signer] = true
			reached := len(signers) >= e.cfg.ThresholdRequired
			mu.Unlock()
			if reached {
				cancel()
			}
			return nil
		})
	}
	_ = g.Wait()

	mu.Lock()
	defer mu.Unlock()
	return ackTally{responded: responded, signers: len(signers)}, parent.Err()
}
