package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// Admission outcomes.
const (
	StatusAdmitted = "admitted"
	StatusRejected = "rejected"
)

// Admission is one journal entry for a connection processed by the
// admission pipeline.
type Admission struct {
	ConnectionID   string
	RemoteAddr     string
	RoomKey        string
	Status         string
	Errors         []FieldError
	ConnectedAt    time.Time
	DisconnectedAt *time.Time
}

// FieldError mirrors a validation failure recorded at admission.
type FieldError struct {
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

// Store defines persistence operations used by the server.
type Store interface {
	Close() error
	Migrate(ctx context.Context) error

	RecordAdmission(ctx context.Context, admission *Admission) error
	RecordDisconnect(ctx context.Context, connectionID string, at time.Time) error
	GetAdmission(ctx context.Context, connectionID string) (*Admission, error)
	ListAdmissions(ctx context.Context, limit int) ([]Admission, error)
}
