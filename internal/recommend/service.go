package recommend

import (
	"context"
	"errors"
	"fmt"

	"github.com/KaramelBytes/parish-explorer/internal/ai"
)

// ErrRemoteUnavailable matches every failure of the text-generation service.
var ErrRemoteUnavailable = errors.New("recommendation service unavailable")

// RemoteUnavailableError wraps the runtime error of a failed call. It matches
// ErrRemoteUnavailable with errors.Is and unwraps to the typed ai error.
type RemoteUnavailableError struct {
	Err error
}

func (e *RemoteUnavailableError) Error() string {
	return fmt.Sprintf("%v: %v", ErrRemoteUnavailable, e.Err)
}

func (e *RemoteUnavailableError) Unwrap() error { return e.Err }

func (e *RemoteUnavailableError) Is(target error) bool { return target == ErrRemoteUnavailable }

// Request is the selection a recommendation is asked for.
type Request struct {
	Metrics   []string
	Parishes  []string
	AnyBottom bool
}

// Response is one recommendation round trip.
type Response struct {
	Kind      PromptKind
	Prompt    string
	Raw       string
	Result    Result
	RequestID string
}

// Service sends one prompt per call and parses the reply. It does not retry,
// cache or deduplicate.
type Service struct {
	runtime     ai.Runtime
	model       string
	maxTokens   int
	temperature float64
}

// Option tweaks a Service.
type Option func(*Service)

func WithMaxTokens(n int) Option { return func(s *Service) { s.maxTokens = n } }

func WithTemperature(t float64) Option { return func(s *Service) { s.temperature = t } }

func NewService(rt ai.Runtime, model string, opts ...Option) *Service {
	s := &Service{runtime: rt, model: model}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Prompt builds the prompt without calling the service.
func (s *Service) Prompt(req Request) (string, PromptKind, error) {
	p, err := BuildPrompt(req.Metrics, req.Parishes, req.AnyBottom)
	if err != nil {
		return "", "", err
	}
	return p, KindFor(len(req.Metrics), req.AnyBottom), nil
}

// Recommend issues exactly one Generate call. Transport and API failures come
// back as *RemoteUnavailableError; malformed replies are not errors and yield
// a RawTextFallback result.
func (s *Service) Recommend(ctx context.Context, req Request) (*Response, error) {
	prompt, kind, err := s.Prompt(req)
	if err != nil {
		return nil, err
	}
	gr := ai.UserPrompt(s.model, prompt)
	gr.MaxTokens = s.maxTokens
	gr.Temperature = s.temperature

	resp, err := s.runtime.Generate(ctx, gr)
	if err != nil {
		return nil, &RemoteUnavailableError{Err: err}
	}
	text := resp.Text()
	return &Response{
		Kind:      kind,
		Prompt:    prompt,
		Raw:       text,
		Result:    Parse(text),
		RequestID: resp.RequestID,
	}, nil
}
