package escrow

import "time"

// Party identifies one side of an escrow as entered in the wizard.
type Party struct {
	Name          string `json:"name"`
	UPIID         string `json:"upiId"`
	WalletAddress string `json:"walletAddress"`
}

// Draft is a fully coerced escrow agreement ready to hand to a Deployer.
// It only exists after every field has passed its validator.
type Draft struct {
	Payer  Party   `json:"payer"`
	Payee  Party   `json:"payee"`
	Amount float64 `json:"amount"`
	Terms  string  `json:"terms"`
}

// Status is the lifecycle label shown for an escrow record.
type Status string

const (
	StatusActive    Status = "Active"
	StatusCompleted Status = "Completed"
	StatusDisputed  Status = "Disputed"
	StatusCancelled Status = "Cancelled"
)

// Counterparty is the display subset of a party shown in the escrow table.
type Counterparty struct {
	Name string
	UPI  string
}

// Record mirrors the escrows table. The application only reads these rows.
type Record struct {
	ID        string
	Payer     Counterparty
	Payee     Counterparty
	Amount    float64
	Status    Status
	CreatedAt time.Time
}
