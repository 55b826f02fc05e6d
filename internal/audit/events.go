package audit

import (
	"encoding/json"
	"fmt"
)

// EventType names an audit event variant on the wire and in the hash input.
type EventType string

const (
	TypeVoterAuthentication EventType = "voter_authentication"
	TypeNullifierRegistered EventType = "nullifier_registered"
	TypeNullifierRejected   EventType = "nullifier_rejected"
	TypeVoteCast            EventType = "vote_cast"
	TypeVoteSynced          EventType = "vote_synced"
	TypeVoteSyncFailed      EventType = "vote_sync_failed"
	TypeSyncJobStarted      EventType = "sync_job_started"
	TypeSyncJobFinished     EventType = "sync_job_finished"
	TypeSecurityAlert       EventType = "security_alert"
	TypeIntegrityCheck      EventType = "integrity_check"
	TypeLedgerPruned        EventType = "ledger_pruned"
)

// criticalTypes are persisted before LogEvent returns. Everything else is
// buffered until the next flush.
var criticalTypes = map[EventType]bool{
	TypeVoterAuthentication: true,
	TypeNullifierRejected:   true,
	TypeVoteSyncFailed:      true,
	TypeSecurityAlert:       true,
	TypeIntegrityCheck:      true,
	TypeLedgerPruned:        true,
}

// IsCritical reports whether events of type t are written synchronously.
func (t EventType) IsCritical() bool {
	return criticalTypes[t]
}

// Event is the closed set of payloads the ledger accepts. The canonical
// payload is the JSON encoding of the variant struct; field order follows
// the struct declaration so the encoding is deterministic.
type Event interface {
	EventType() EventType
	isEvent()
}

type VoterAuthentication struct {
	MachineID  string  `json:"machine_id"`
	VoterID    string  `json:"voter_id"`
	Method     string  `json:"method"`
	Outcome    string  `json:"outcome"`
	Confidence float64 `json:"confidence"`
}

type NullifierRegistered struct {
	ElectionID string `json:"election_id"`
	Nullifier  string `json:"nullifier"`
}

type NullifierRejected struct {
	ElectionID string `json:"election_id"`
	Nullifier  string `json:"nullifier"`
	MachineID  string `json:"machine_id,omitempty"`
	Reason     string `json:"reason"`
}

type VoteCast struct {
	VoteID     string `json:"vote_id"`
	MachineID  string `json:"machine_id"`
	ElectionID string `json:"election_id"`
}

type VoteSynced struct {
	VoteID    string `json:"vote_id"`
	MachineID string `json:"machine_id"`
	SyncID    string `json:"sync_id"`
	LogHash   string `json:"log_hash"`
	Acks      int    `json:"acks"`
}

type VoteSyncFailed struct {
	VoteID    string `json:"vote_id"`
	MachineID string `json:"machine_id"`
	SyncID    string `json:"sync_id"`
	Kind      string `json:"kind"`
	Reason    string `json:"reason"`
	Retryable bool   `json:"retryable"`
}

type SyncJobStarted struct {
	SyncID    string `json:"sync_id"`
	MachineID string `json:"machine_id"`
	SyncType  string `json:"sync_type"`
	ForceFull bool   `json:"force_full"`
}

type SyncJobFinished struct {
	SyncID      string `json:"sync_id"`
	MachineID   string `json:"machine_id"`
	Status      string `json:"status"`
	VotesSynced int    `json:"votes_synced"`
	FailedVotes int    `json:"failed_votes"`
}

type SecurityAlert struct {
	Source  string `json:"source"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

type IntegrityCheck struct {
	Valid    bool   `json:"valid"`
	Checked  int    `json:"checked"`
	BrokenAt uint64 `json:"broken_at,omitempty"`
	Result   string `json:"result"`
}

type LedgerPruned struct {
	Removed   int    `json:"removed"`
	Through   uint64 `json:"through_index"`
	NewAnchor string `json:"new_anchor"`
}

func (VoterAuthentication) EventType() EventType { return TypeVoterAuthentication }
func (NullifierRegistered) EventType() EventType { return TypeNullifierRegistered }
func (NullifierRejected) EventType() EventType   { return TypeNullifierRejected }
func (VoteCast) EventType() EventType            { return TypeVoteCast }
func (VoteSynced) EventType() EventType          { return TypeVoteSynced }
func (VoteSyncFailed) EventType() EventType      { return TypeVoteSyncFailed }
func (SyncJobStarted) EventType() EventType      { return TypeSyncJobStarted }
func (SyncJobFinished) EventType() EventType     { return TypeSyncJobFinished }
func (SecurityAlert) EventType() EventType       { return TypeSecurityAlert }
func (IntegrityCheck) EventType() EventType      { return TypeIntegrityCheck }
func (LedgerPruned) EventType() EventType        { return TypeLedgerPruned }

func (VoterAuthentication) isEvent() {}
func (NullifierRegistered) isEvent() {}
func (NullifierRejected) isEvent()   {}
func (VoteCast) isEvent()            {}
func (VoteSynced) isEvent()          {}
func (VoteSyncFailed) isEvent()      {}
func (SyncJobStarted) isEvent()      {}
func (SyncJobFinished) isEvent()     {}
func (SecurityAlert) isEvent()       {}
func (IntegrityCheck) isEvent()      {}
func (LedgerPruned) isEvent()        {}

// canonicalPayload encodes an event for hashing and storage.
func canonicalPayload(e Event) ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEvent rebuilds the typed variant from a stored payload.
func DecodeEvent(t EventType, payload []byte) (Event, error) {
	var e Event
	switch t {
	case TypeVoterAuthentication:
		e = &VoterAuthentication{}
	case TypeNullifierRegistered:
		e = &NullifierRegistered{}
	case TypeNullifierRejected:
		e = &NullifierRejected{}
	case TypeVoteCast:
		e = &VoteCast{}
	case TypeVoteSynced:
		e = &VoteSynced{}
	case TypeVoteSyncFailed:
		e = &VoteSyncFailed{}
	case TypeSyncJobStarted:
		e = &SyncJobStarted{}
	case TypeSyncJobFinished:
		e = &SyncJobFinished{}
	case TypeSecurityAlert:
		e = &SecurityAlert{}
	case TypeIntegrityCheck:
		e = &IntegrityCheck{}
	case TypeLedgerPruned:
		e = &LedgerPruned{}
	default:
		return nil, fmt.Errorf("unknown audit event type %q", t)
	}
	if err := json.Unmarshal(payload, e); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", t, err)
	}
	return e, nil
}
