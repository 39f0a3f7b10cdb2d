// Package gateway implements the Model Gateway (C1): a uniform
// call-and-parse interface over multiple LLM providers, with a
// structured-output helper that retries on transport and parse failures.
//
// It is grounded on the teacher's use of github.com/cloudwego/eino's
// schema.Message type and the eino-ext openai/deepseek chat-model
// bindings (internal/agents/agent_utils.go, internal/agents/analysts/
// market_analyst.go in the teacher repo).
package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/dyike/CortexGo/internal/config"
	"github.com/dyike/CortexGo/internal/obslog"
)

// Role mirrors schema.RoleType so callers outside this package don't need
// to import eino directly.
type Role = schema.RoleType

const (
	RoleSystem    = schema.System
	RoleUser      = schema.User
	RoleAssistant = schema.Assistant
)

// Message is the gateway's wire shape, per §4.1.
type Message struct {
	Role    Role
	Content string
}

// ResponseFormat selects whether the provider should be asked for JSON mode.
type ResponseFormat string

const (
	ResponseFormatText       ResponseFormat = ""
	ResponseFormatJSONObject ResponseFormat = "json_object"
)

// Response is what a raw call() returns.
type Response struct {
	Content  string
	Role     Role
	Metadata map[string]string
}

// FailureKind classifies a gateway failure per §7's taxonomy.
type FailureKind int

const (
	FailureTransient FailureKind = iota
	FailureStructural
	FailureFinal
)

func (k FailureKind) String() string {
	switch k {
	case FailureTransient:
		return "transient"
	case FailureStructural:
		return "structural"
	default:
		return "final"
	}
}

// Error wraps an underlying error with its classification.
type Error struct {
	Kind FailureKind
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %v", e.Kind, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// chatModel is the minimal surface the gateway needs from an eino chat
// model binding (satisfied by both *openai.ChatModel and *deepseek.ChatModel).
type chatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// Client is the interface every consumer of the Model Gateway depends on.
// *Gateway satisfies it; tests substitute a stub that never makes network
// calls, which is how S1-S6 are exercised deterministically.
type Client interface {
	Call(ctx context.Context, modelID, provider string, messages []Message, temperature float64, format ResponseFormat) (*Response, error)
}

// MetricsRecorder is optionally implemented by a Client to expose the
// retry counters S4 checks ("retry count observable via gateway metrics").
// CallStructured type-asserts for it rather than requiring it, so minimal
// test stubs don't need to implement it.
type MetricsRecorder interface {
	recordRetryPublic(provider string)
}

func (g *Gateway) recordRetryPublic(provider string) { g.recordRetry(provider) }

// Gateway is a process-wide registry of provider bindings, one ChatModel
// per (provider, model) pair, created lazily and cached.
type Gateway struct {
	cfg *config.Config
	log fmtLogger

	mu     sync.Mutex
	models map[string]chatModel

	// Metrics exposed for tests (S4): total retries observed across all
	// calls, keyed by provider.
	metricsMu sync.Mutex
	retries   map[string]int
}

type fmtLogger = LoggerAdapter

// LoggerAdapter is the logger shape the gateway writes to; obslog.New
// satisfies it.
type LoggerAdapter interface {
	Printf(format string, v ...any)
}

func New(cfg *config.Config) *Gateway {
	return &Gateway{
		cfg:     cfg,
		log:     obslog.New("gateway"),
		models:  map[string]chatModel{},
		retries: map[string]int{},
	}
}

func key(provider, model string) string { return provider + "::" + model }

func (g *Gateway) modelFor(ctx context.Context, provider, model string) (chatModel, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	k := key(provider, model)
	if cm, ok := g.models[k]; ok {
		return cm, nil
	}

	var cm chatModel
	var err error
	maxTokens := 4096

	switch provider {
	case "deepseek":
		cm, err = deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
			APIKey:    g.cfg.DeepSeekAPIKey,
			Model:     model,
			MaxTokens: maxTokens,
		})
	case "openai", "":
		cm, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			APIKey:    g.cfg.OpenAIAPIKey,
			Model:     model,
			MaxTokens: &maxTokens,
		})
	default:
		return nil, &Error{Kind: FailureFinal, Err: fmt.Errorf("unknown provider %q", provider)}
	}
	if err != nil {
		return nil, &Error{Kind: FailureTransient, Err: err}
	}

	g.models[k] = cm
	return cm, nil
}

func toEinoMessages(msgs []Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, &schema.Message{Role: m.Role, Content: m.Content})
	}
	return out
}

// Call performs a single synchronous round trip. temperature and format are
// not passed on to the provider: every call is a plain-text chat completion,
// and JSON mode is never requested, so structured callers rely on
// ExtractJSONObject to pull the JSON object out of the reply text.
func (g *Gateway) Call(ctx context.Context, modelID, provider string, messages []Message, temperature float64, format ResponseFormat) (*Response, error) {
	cm, err := g.modelFor(ctx, provider, modelID)
	if err != nil {
		return nil, err
	}

	out, err := cm.Generate(ctx, toEinoMessages(messages))
	if err != nil {
		return nil, &Error{Kind: FailureTransient, Err: err}
	}

	return &Response{
		Content: out.Content,
		Role:    out.Role,
		Metadata: map[string]string{
			"provider": provider,
			"model":    modelID,
		},
	}, nil
}

// retrySchedule is the exponential backoff named throughout §4: 1s, 2s, 4s.
func retrySchedule(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}

func (g *Gateway) recordRetry(provider string) {
	g.metricsMu.Lock()
	defer g.metricsMu.Unlock()
	g.retries[provider]++
}

// RetryCount returns the number of retries observed for provider so far,
// exposed for S4's "retry count observable via gateway metrics" property.
func (g *Gateway) RetryCount(provider string) int {
	g.metricsMu.Lock()
	defer g.metricsMu.Unlock()
	return g.retries[provider]
}

// Sleep is overridable in tests to avoid real backoff delays.
var Sleep = time.Sleep
