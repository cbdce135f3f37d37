package mediation

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// Request is what the disputing parties submit for mediation.
type Request struct {
	ContractTerms string `json:"contractTerms"`
	Evidence      string `json:"evidence"`
}

// Result is the structured completion rendered back to the user.
type Result struct {
	Summary             string `json:"summary"`
	SuggestedResolution string `json:"suggestedResolution"`
}

const (
	FieldContractTerms = "contractTerms"
	FieldEvidence      = "evidence"

	minContractTermsLength = 20
	minEvidenceLength      = 50

	msgContractTerms = "Please provide the contract terms."
	msgEvidence      = "Please provide detailed evidence from both parties."
)

var (
	// ErrMediationFailed covers every downstream failure: call errors, timeouts,
	// malformed or incomplete completions. Callers show one generic notice.
	ErrMediationFailed = errors.New("mediation: failed to process dispute mediation")
	// ErrInFlight rejects a second submission while one is pending on a dialog.
	ErrInFlight = errors.New("mediation: a request is already in flight")
	// ErrDialogReset reports that the dialog was reset while the call was pending.
	ErrDialogReset = errors.New("mediation: dialog was reset")
	// ErrDialogNotFound signals an unknown or closed dialog.
	ErrDialogNotFound = errors.New("mediation: dialog not found")
)

// FailureNotice is the message shown for any ErrMediationFailed.
const FailureNotice = "Failed to mediate dispute. Please try again."

// ValidationError maps field names to violations.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for _, f := range []string{FieldContractTerms, FieldEvidence} {
		if _, ok := e.Fields[f]; ok {
			names = append(names, f)
		}
	}
	return "mediation: invalid fields: " + strings.Join(names, ", ")
}

// Validate enforces the length preconditions. An invalid request must never
// reach the completion service.
func (r Request) Validate() error {
	fields := map[string]string{}
	if utf8.RuneCountInString(r.ContractTerms) < minContractTermsLength {
		fields[FieldContractTerms] = msgContractTerms
	}
	if utf8.RuneCountInString(r.Evidence) < minEvidenceLength {
		fields[FieldEvidence] = msgEvidence
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
