package mediation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds a single completion call.
const DefaultTimeout = 60 * time.Second

// Observer receives mediation outcomes, typically for metrics.
type Observer interface {
	ObserveMediation(outcome string, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveMediation(string, time.Duration) {}

// Service validates a request, issues exactly one completion call and checks the
// response shape. There is no retry and no partial result.
type Service struct {
	completer Completer
	timeout   time.Duration
	logger    *zap.Logger
	observer  Observer
}

// NewService builds a mediation service. A nil completer is allowed so the rest
// of the server can run without an API key; every mediation then fails.
func NewService(completer Completer, timeout time.Duration, logger *zap.Logger) *Service {
	if completer == nil {
		completer = unconfiguredCompleter{}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		completer: completer,
		timeout:   timeout,
		logger:    logger,
		observer:  nopObserver{},
	}
}

func (s *Service) WithObserver(o Observer) *Service {
	if o != nil {
		s.observer = o
	}
	return s
}

// Mediate returns a *ValidationError for bad input (no call is made) or an error
// wrapping ErrMediationFailed for any downstream problem.
func (s *Service) Mediate(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	if err := req.Validate(); err != nil {
		s.observer.ObserveMediation("invalid", time.Since(start))
		return Result{}, err
	}

	prompt, err := renderPrompt(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrMediationFailed, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := s.completer.Complete(callCtx, prompt, outputShape)
	if err != nil {
		s.logger.Error("mediation completion failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		s.observer.ObserveMediation("call_failed", time.Since(start))
		return Result{}, fmt.Errorf("%w: %w", ErrMediationFailed, err)
	}

	res, err := decodeResult(raw)
	if err != nil {
		s.logger.Error("mediation response rejected", zap.Error(err), zap.Int("response_len", len(raw)))
		s.observer.ObserveMediation("malformed", time.Since(start))
		return Result{}, fmt.Errorf("%w: %w", ErrMediationFailed, err)
	}

	s.observer.ObserveMediation("ok", time.Since(start))
	return res, nil
}

var errNoCompleter = errors.New("mediation: no completion service configured")

type unconfiguredCompleter struct{}

func (unconfiguredCompleter) Complete(context.Context, string, []OutputField) (string, error) {
	return "", errNoCompleter
}

// decodeResult accepts only a JSON object carrying both fields with non-blank text.
func decodeResult(raw string) (Result, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Result{}, errEmptyCompletion
	}

	var res Result
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return Result{}, fmt.Errorf("mediation: decode completion: %w", err)
	}

	var missing []string
	if strings.TrimSpace(res.Summary) == "" {
		missing = append(missing, FieldSummary)
	}
	if strings.TrimSpace(res.SuggestedResolution) == "" {
		missing = append(missing, FieldSuggestedResolution)
	}
	if len(missing) > 0 {
		return Result{}, fmt.Errorf("mediation: completion missing %s", strings.Join(missing, ", "))
	}
	return res, nil
}
