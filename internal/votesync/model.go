package votesync

import (
	"time"

	"github.com/google/uuid"
)

// VoteStatus tracks a vote through synchronization. Failed returns to
// Pending only through RetryFailedSyncs.
type VoteStatus string

const (
	VotePending   VoteStatus = "pending"
	VoteInFlight  VoteStatus = "in_flight"
	VoteConfirmed VoteStatus = "confirmed"
	VoteFailed    VoteStatus = "failed"
)

// EncryptedVote is created once per successful cast. Only the sync fields
// change afterwards.
type EncryptedVote struct {
	ID               uuid.UUID  `json:"id"`
	MachineID        string     `json:"machine_id"`
	ElectionID       string     `json:"election_id"`
	CandidateID      string     `json:"candidate_id"`
	EncryptedContent []byte     `json:"encrypted_content"`
	EncryptionKeyID  string     `json:"encryption_key_id"`
	Signature        []byte     `json:"signature"`
	ZKProof          []byte     `json:"zk_proof"`
	CastAt           time.Time  `json:"cast_at"`
	SyncStatus       VoteStatus `json:"sync_status"`
	Attempts         int        `json:"attempts"`
	LogHash          string     `json:"log_hash,omitempty"`
	FailureReason    string     `json:"failure_reason,omitempty"`
	Retryable        bool       `json:"retryable"`
	Escalated        bool       `json:"escalated"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

type SyncType string

const (
	SyncFull        SyncType = "full"
	SyncIncremental SyncType = "incremental"
	SyncEmergency   SyncType = "emergency"
	SyncOffline     SyncType = "offline"
)

// ParseSyncType accepts the wire names; empty means incremental.
func ParseSyncType(s string) (SyncType, bool) {
	switch SyncType(s) {
	case "":
		return SyncIncremental, true
	case SyncFull, SyncIncremental, SyncEmergency, SyncOffline:
		return SyncType(s), true
	default:
		return "", false
	}
}

// JobStatus only moves forward: Pending, InProgress, then Completed or Failed.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobInProgress JobStatus = "in_progress"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

func (s JobStatus) rank() int {
	switch s {
	case JobPending:
		return 0
	case JobInProgress:
		return 1
	default:
		return 2
	}
}

// CanTransition reports whether next is a legal successor of s.
func (s JobStatus) CanTransition(next JobStatus) bool {
	return next.rank() > s.rank()
}

type SyncJob struct {
	ID          uuid.UUID  `json:"sync_id"`
	MachineID   string     `json:"machine_id"`
	Type        SyncType   `json:"sync_type"`
	ForceFull   bool       `json:"force_full"`
	Status      JobStatus  `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	VotesSynced int        `json:"votes_synced"`
	Errors      []string   `json:"errors"`
}

// Clone returns a copy that shares no slices with j.
func (j SyncJob) Clone() SyncJob {
	out := j
	out.Errors = append([]string(nil), j.Errors...)
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

// StartResult is returned by StartSync before any work happens.
type StartResult struct {
	SyncID              uuid.UUID `json:"sync_id"`
	Status              JobStatus `json:"status"`
	EstimatedCompletion time.Time `json:"estimated_completion"`
}

type RetryReport struct {
	Requeued  int         `json:"requeued"`
	Escalated int         `json:"escalated"`
	Jobs      []uuid.UUID `json:"jobs"`
}

// RecoveryReport counts what Recover repaired.
type RecoveryReport struct {
	Jobs  int `json:"jobs_failed"`
	Votes int `json:"votes_requeued"`
}
