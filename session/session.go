// Package session keeps per-user conversation history: which questions were
// asked and what kind of result each one got. Records are serializable
// snapshots; storage backends are injectable (in-memory, Redis, Mongo).
package session

import "time"

// State represents the state of a session.
type State string

const (
	StateActive State = "active"
	StateClosed State = "closed"
)

// Turn is one exchange: the question and the kind of result it produced.
// Answer text is not stored here; the session is an index, not a transcript.
type Turn struct {
	Query   string    `json:"query"`
	Kind    string    `json:"kind"`
	Reason  string    `json:"reason,omitempty"`
	AskedAt time.Time `json:"askedAt"`
}

// Record is the serializable session snapshot stores operate on.
type Record struct {
	ID        string         `json:"id"`
	State     State          `json:"state"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	Turns     []Turn         `json:"turns,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewRecord creates an active record with the supplied identifier.
func NewRecord(id string) *Record {
	now := time.Now()
	return &Record{
		ID:        id,
		State:     StateActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy so callers and stores never share slices.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Turns = append([]Turn(nil), r.Turns...)
	if r.Metadata != nil {
		clone.Metadata = make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			clone.Metadata[k] = v
		}
	}
	return &clone
}
