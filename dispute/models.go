package dispute

import "time"

// Status represents the lifecycle of a dispute record.
type Status string

const (
	StatusOpen      Status = "Open"
	StatusMediating Status = "Mediating"
	StatusResolved  Status = "Resolved"
	StatusClosed    Status = "Closed"
)

// Record mirrors the disputes table. Parties is the display label, e.g. "Rohan vs Priya".
type Record struct {
	ID        string
	EscrowID  string
	Status    Status
	Parties   string
	CreatedAt time.Time
}
