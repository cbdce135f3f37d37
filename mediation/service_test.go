package mediation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCompleter struct {
	response string
	err      error
	calls    int
	prompt   string
	output   []OutputField
	deadline bool
}

func (s *stubCompleter) Complete(ctx context.Context, prompt string, output []OutputField) (string, error) {
	s.calls++
	s.prompt = prompt
	s.output = output
	_, s.deadline = ctx.Deadline()
	return s.response, s.err
}

type recordingObserver struct {
	outcomes []string
}

func (r *recordingObserver) ObserveMediation(outcome string, _ time.Duration) {
	r.outcomes = append(r.outcomes, outcome)
}

func validRequest() Request {
	return Request{
		ContractTerms: "Deliver 100 widgets by June 1 for ₹5,000.",
		Evidence:      "Payer: only 60 widgets arrived on June 3. Payee: courier delayed the rest, invoice attached.",
	}
}

func TestMediateReturnsBothFields(t *testing.T) {
	stub := &stubCompleter{response: `{"summary":"Partial late delivery.","suggestedResolution":"Release 60% of the funds."}`}
	obs := &recordingObserver{}
	svc := NewService(stub, 0, nil).WithObserver(obs)

	res, err := svc.Mediate(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, Result{Summary: "Partial late delivery.", SuggestedResolution: "Release 60% of the funds."}, res)
	assert.Equal(t, 1, stub.calls)
	assert.True(t, stub.deadline, "completion call must carry a deadline")
	assert.Contains(t, stub.prompt, "Contract Terms: "+validRequest().ContractTerms)
	assert.Contains(t, stub.prompt, "Evidence: "+validRequest().Evidence)
	require.Len(t, stub.output, 2)
	assert.Equal(t, FieldSummary, stub.output[0].Name)
	assert.Equal(t, FieldSuggestedResolution, stub.output[1].Name)
	assert.Equal(t, []string{"ok"}, obs.outcomes)
}

func TestMediateLengthBoundaries(t *testing.T) {
	cases := []struct {
		name      string
		terms     int
		evidence  int
		wantField string
	}{
		{name: "terms 19 chars", terms: 19, evidence: 50, wantField: FieldContractTerms},
		{name: "evidence 49 chars", terms: 20, evidence: 49, wantField: FieldEvidence},
		{name: "both at minimum", terms: 20, evidence: 50},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stub := &stubCompleter{response: `{"summary":"s","suggestedResolution":"r"}`}
			svc := NewService(stub, time.Second, nil)

			_, err := svc.Mediate(context.Background(), Request{
				ContractTerms: strings.Repeat("t", tc.terms),
				Evidence:      strings.Repeat("e", tc.evidence),
			})
			if tc.wantField == "" {
				require.NoError(t, err)
				assert.Equal(t, 1, stub.calls)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Len(t, verr.Fields, 1)
			assert.Contains(t, verr.Fields, tc.wantField)
			assert.Zero(t, stub.calls, "invalid request reached the completer")
		})
	}
}

func TestMediateCountsCharactersNotBytes(t *testing.T) {
	stub := &stubCompleter{response: `{"summary":"s","suggestedResolution":"r"}`}
	svc := NewService(stub, time.Second, nil)

	// 19 runes, well over 20 bytes.
	_, err := svc.Mediate(context.Background(), Request{
		ContractTerms: strings.Repeat("₹", 19),
		Evidence:      strings.Repeat("e", 50),
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, msgContractTerms, verr.Fields[FieldContractTerms])
}

func TestMediateRejectsIncompleteResponses(t *testing.T) {
	cases := map[string]string{
		"missing resolution": `{"summary":"Late delivery."}`,
		"blank summary":      `{"summary":"  ","suggestedResolution":"Refund."}`,
		"not json":           `Here is my analysis: refund the payer.`,
		"empty":              ``,
		"array":              `["summary","suggestedResolution"]`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			obs := &recordingObserver{}
			svc := NewService(&stubCompleter{response: body}, time.Second, nil).WithObserver(obs)

			res, err := svc.Mediate(context.Background(), validRequest())
			require.ErrorIs(t, err, ErrMediationFailed)
			assert.Equal(t, Result{}, res)
			assert.Equal(t, []string{"malformed"}, obs.outcomes)
		})
	}
}

func TestMediateWrapsCompleterFailure(t *testing.T) {
	boom := errors.New("upstream 503")
	stub := &stubCompleter{err: boom}
	svc := NewService(stub, time.Second, nil)

	_, err := svc.Mediate(context.Background(), validRequest())
	require.ErrorIs(t, err, ErrMediationFailed)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, stub.calls, "no retry expected")
}

type blockingCompleter struct{}

func (blockingCompleter) Complete(ctx context.Context, _ string, _ []OutputField) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestMediateTimesOut(t *testing.T) {
	svc := NewService(blockingCompleter{}, 20*time.Millisecond, nil)

	_, err := svc.Mediate(context.Background(), validRequest())
	require.ErrorIs(t, err, ErrMediationFailed)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMediateWithoutCompleterFails(t *testing.T) {
	svc := NewService(nil, 0, nil)

	_, err := svc.Mediate(context.Background(), validRequest())
	require.ErrorIs(t, err, ErrMediationFailed)
	assert.ErrorIs(t, err, errNoCompleter)
}
