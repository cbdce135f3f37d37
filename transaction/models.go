package transaction

import "time"

// Status is the settlement state of a ledger entry.
type Status string

const (
	StatusCompleted Status = "Completed"
	StatusPending   Status = "Pending"
	StatusFailed    Status = "Failed"
)

// Type is what the ledger entry did to the escrowed funds.
type Type string

const (
	TypeDeposit Type = "Deposit"
	TypeRelease Type = "Release"
	TypeRefund  Type = "Refund"
)

// Record mirrors the transactions table.
type Record struct {
	ID        string
	EscrowID  string
	Amount    float64
	Status    Status
	Type      Type
	Timestamp time.Time
}
