package mediation

import (
	"bytes"
	"fmt"
	"text/template"
)

const promptText = `You are an expert mediator specializing in disputes over escrow contracts.

Read the contract terms and the evidence submitted by both parties. Then:
1. Summarize the evidence neutrally, without taking either side.
2. Suggest a fair resolution that follows from the contract terms.

Respond with exactly two fields: "summary" and "suggestedResolution".

Contract Terms: {{.ContractTerms}}
Evidence: {{.Evidence}}`

var promptTemplate = template.Must(template.New("mediate-dispute").Parse(promptText))

// OutputField declares one named text field the completion must return.
type OutputField struct {
	Name        string
	Description string
}

// outputShape is the fixed response contract sent with every prompt.
var outputShape = []OutputField{
	{Name: FieldSummary, Description: "A summary of the evidence presented."},
	{Name: FieldSuggestedResolution, Description: "A suggested resolution to the dispute."},
}

const (
	FieldSummary             = "summary"
	FieldSuggestedResolution = "suggestedResolution"
)

func renderPrompt(req Request) (string, error) {
	var buf bytes.Buffer
	if err := promptTemplate.Execute(&buf, req); err != nil {
		return "", fmt.Errorf("mediation: render prompt: %w", err)
	}
	return buf.String(), nil
}
