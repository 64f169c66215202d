package database

import (
	"errors"
	"strings"
	"time"
)

// Agent status values.
const (
	StatusPending  = "pending"
	StatusActive   = "active"
	StatusDisabled = "disabled"
)

var (
	// ErrAgentExists is returned when an agent with the same employee ID is already enrolled.
	ErrAgentExists = errors.New("agent already enrolled")
	// ErrAgentNotFound is returned when no agent matches the employee ID.
	ErrAgentNotFound = errors.New("agent not found")
)

// Agent represents an enrolled agent with its reference signature.
type Agent struct {
	ID         string
	LastName   string
	FirstName  string
	EmployeeID string
	Department string
	Phone      string
	Photos     []string // public URLs of the source photos
	FaceCrops  []string // public URLs of the annotated face crops
	Status     string
	Embedding  []float32
	Model      string // engine model the embedding was produced with
	CreatedAt  time.Time
}

// DisplayName returns "First Last" with empty parts omitted.
func (a *Agent) DisplayName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// RosterRow is one agent as read for login matching. Signature holds the
// stored embedding in its textual form so corrupt rows can be skipped by the
// matcher instead of failing the whole read.
type RosterRow struct {
	Agent     Agent
	Signature string
}

// ValidStatus reports whether s is a known agent status.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusActive, StatusDisabled:
		return true
	}
	return false
}
