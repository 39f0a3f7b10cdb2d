package gateway

import (
	"context"
	"encoding/json"
	"fmt"
)

// EmptyGuard lets a structured-output schema declare that it carries a
// required non-empty list; an empty list counts as a parse failure and
// triggers a retry (§4.1 "empty-response guard").
type EmptyGuard interface {
	IsEmptyResult() bool
}

// StructuredOptions configures CallStructured.
type StructuredOptions[T any] struct {
	Temperature    float64
	Retries        int // default 3
	DefaultFactory func() T
}

// CallStructured attempts JSON mode, extracts the first JSON object found
// in the body (accepting fenced code blocks), validates it by unmarshalling
// into T, and on failure retries with exponential backoff (1s, 2s, 4s). On
// final failure it invokes DefaultFactory (if given) or returns the zero
// value of T. This implements §4.1 and §9's "isolate as a single parser"
// design note.
func CallStructured[T any](ctx context.Context, client Client, modelID, provider string, messages []Message, opts StructuredOptions[T]) (T, error) {
	retries := opts.Retries
	if retries <= 0 {
		retries = 3
	}

	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		resp, err := client.Call(ctx, modelID, provider, messages, opts.Temperature, ResponseFormatJSONObject)
		if err != nil {
			lastErr = err
			recordRetry(client, provider)
			if attempt < retries-1 {
				Sleep(retrySchedule(attempt))
			}
			continue
		}

		raw, extractErr := ExtractJSONObject(resp.Content)
		if extractErr != nil {
			lastErr = &Error{Kind: FailureStructural, Err: extractErr}
			recordRetry(client, provider)
			if attempt < retries-1 {
				Sleep(retrySchedule(attempt))
			}
			continue
		}

		var value T
		if err := json.Unmarshal(raw, &value); err != nil {
			lastErr = &Error{Kind: FailureStructural, Err: err}
			recordRetry(client, provider)
			if attempt < retries-1 {
				Sleep(retrySchedule(attempt))
			}
			continue
		}

		if guard, ok := any(value).(EmptyGuard); ok && guard.IsEmptyResult() {
			lastErr = &Error{Kind: FailureStructural, Err: fmt.Errorf("empty required list in structured response")}
			recordRetry(client, provider)
			if attempt < retries-1 {
				Sleep(retrySchedule(attempt))
			}
			continue
		}

		return value, nil
	}

	// Final failure: default_factory or zero value. Never a partially
	// populated schema instance (P7).
	var zero T
	if opts.DefaultFactory != nil {
		return opts.DefaultFactory(), lastErr
	}
	return zero, lastErr
}

func recordRetry(client Client, provider string) {
	if mr, ok := client.(MetricsRecorder); ok {
		mr.recordRetryPublic(provider)
	}
}

// ExtractJSONObject finds the first '{' and matches braces while ignoring
// braces inside string literals (handling escaped quotes), then returns the
// substring spanning the balanced object. It also strips ```json fenced
// code blocks before searching.
func ExtractJSONObject(body string) (json.RawMessage, error) {
	s := stripFence(body)

	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]

		if start == -1 {
			if c == '{' {
				start = i
				depth = 1
			}
			continue
		}

		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return json.RawMessage(s[start : i+1]), nil
				}
			}
		}
	}

	return nil, fmt.Errorf("no balanced JSON object found in response")
}

func stripFence(body string) string {
	s := body
	if idx := indexOf(s, "```json"); idx >= 0 {
		s = s[idx+len("```json"):]
		if end := indexOf(s, "```"); end >= 0 {
			s = s[:end]
		}
		return s
	}
	if idx := indexOf(s, "```"); idx >= 0 {
		s = s[idx+3:]
		if end := indexOf(s, "```"); end >= 0 {
			s = s[:end]
		}
		return s
	}
	return s
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
