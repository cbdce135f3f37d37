package escrow

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Field names a single wizard input.
type Field string

const (
	FieldPayerName   Field = "payerName"
	FieldPayerUPI    Field = "payerUpi"
	FieldPayerWallet Field = "payerWallet"
	FieldPayeeName   Field = "payeeName"
	FieldPayeeUPI    Field = "payeeUpi"
	FieldPayeeWallet Field = "payeeWallet"
	FieldAmount      Field = "amount"
	FieldTerms       Field = "terms"
)

// Step is a position in the wizard.
type Step int

const (
	StepParties Step = iota
	StepTerms
	StepReview
)

const (
	msgNameTooShort   = "Name must be at least 2 characters."
	msgInvalidUPI     = "Invalid UPI ID format."
	msgWalletRequired = "Aptos wallet address is required."
	msgAmountNaN      = "Amount must be a number."
	msgAmountPositive = "Amount must be positive."
	msgTermsTooShort  = "Please provide detailed terms for the agreement."
	minNameLength     = 2
	minWalletLength   = 10
	minTermsLength    = 20
)

var upiPattern = regexp.MustCompile(`^[\w.-]+@[\w.-]+$`)

// validator returns an empty string for a valid value or a human readable violation.
type validator func(raw string) string

var validators = map[Field]validator{
	FieldPayerName:   minChars(minNameLength, msgNameTooShort),
	FieldPayerUPI:    validateUPI,
	FieldPayerWallet: minChars(minWalletLength, msgWalletRequired),
	FieldPayeeName:   minChars(minNameLength, msgNameTooShort),
	FieldPayeeUPI:    validateUPI,
	FieldPayeeWallet: minChars(minWalletLength, msgWalletRequired),
	FieldAmount:      validateAmount,
	FieldTerms:       minChars(minTermsLength, msgTermsTooShort),
}

type stepSpec struct {
	name   string
	fields []Field
}

// steps declares which validators gate each step. Review owns no fields; reaching it
// means every earlier step has passed.
var steps = []stepSpec{
	{
		name: "Parties",
		fields: []Field{
			FieldPayerName, FieldPayerUPI, FieldPayerWallet,
			FieldPayeeName, FieldPayeeUPI, FieldPayeeWallet,
		},
	},
	{
		name:   "Amount & Terms",
		fields: []Field{FieldAmount, FieldTerms},
	},
	{
		name: "Review & Deploy",
	},
}

// Name returns the label shown for the step.
func (s Step) Name() string {
	if s < 0 || int(s) >= len(steps) {
		return fmt.Sprintf("Step(%d)", int(s))
	}
	return steps[s].name
}

// Fields returns the fields validated when leaving the step.
func (s Step) Fields() []Field {
	if s < 0 || int(s) >= len(steps) {
		return nil
	}
	out := make([]Field, len(steps[s].fields))
	copy(out, steps[s].fields)
	return out
}

// Steps lists every wizard step in order.
func Steps() []Step {
	out := make([]Step, len(steps))
	for i := range steps {
		out[i] = Step(i)
	}
	return out
}

// AllFields lists every wizard field in step order.
func AllFields() []Field {
	out := make([]Field, 0, len(validators))
	for _, spec := range steps {
		out = append(out, spec.fields...)
	}
	return out
}

// ParseField maps a raw field name onto a known Field.
func ParseField(name string) (Field, error) {
	f := Field(name)
	if _, ok := validators[f]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	return f, nil
}

// FieldError is a single violated field validator.
type FieldError struct {
	Field   Field
	Message string
}

// ValidationError lists violations in step order.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	names := make([]string, len(e.Fields))
	for i, fe := range e.Fields {
		names[i] = string(fe.Field)
	}
	return "escrow: invalid fields: " + strings.Join(names, ", ")
}

// FirstInvalid is the field the client should focus.
func (e *ValidationError) FirstInvalid() Field {
	if len(e.Fields) == 0 {
		return ""
	}
	return e.Fields[0].Field
}

// Messages returns the violations keyed by field name.
func (e *ValidationError) Messages() map[string]string {
	out := make(map[string]string, len(e.Fields))
	for _, fe := range e.Fields {
		out[string(fe.Field)] = fe.Message
	}
	return out
}

// validateFields runs exactly the validators for fields, in order.
func validateFields(values map[Field]string, fields []Field) *ValidationError {
	var verr *ValidationError
	for _, f := range fields {
		if msg := validators[f](values[f]); msg != "" {
			if verr == nil {
				verr = &ValidationError{}
			}
			verr.Fields = append(verr.Fields, FieldError{Field: f, Message: msg})
		}
	}
	return verr
}

func minChars(n int, msg string) validator {
	return func(raw string) string {
		if utf8.RuneCountInString(raw) < n {
			return msg
		}
		return ""
	}
}

func validateUPI(raw string) string {
	if !upiPattern.MatchString(raw) {
		return msgInvalidUPI
	}
	return ""
}

func validateAmount(raw string) string {
	if _, msg := coerceAmount(raw); msg != "" {
		return msg
	}
	return ""
}

// coerceAmount converts typed text into a positive amount. Blank input coerces to
// zero and is therefore not positive.
func coerceAmount(raw string) (float64, string) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, msgAmountPositive
	}
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, msgAmountNaN
	}
	if v <= 0 {
		return 0, msgAmountPositive
	}
	return v, ""
}
