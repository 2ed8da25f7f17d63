package generate

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/spectree/spectree/internal/telemetry"
)

const (
	DefaultModel     = "claude-3-5-haiku-latest"
	defaultMaxTokens = 2048
	maxRetries       = 3
	initialBackoff   = 1 * time.Second
)

// ErrAPIKeyRequired is returned when no API key is configured.
var ErrAPIKeyRequired = errors.New("API key required")

// Completer sends one prompt to a language model and returns its text reply.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// AnthropicCompleter implements Completer with the Anthropic Messages API.
type AnthropicCompleter struct {
	client     anthropic.Client
	model      anthropic.Model
	maxTokens  int64
	newBackOff func() backoff.BackOff
}

// NewAnthropicCompleter creates a client. ANTHROPIC_API_KEY takes precedence
// over apiKey. Extra request options (e.g. option.WithBaseURL) are passed to
// the SDK.
func NewAnthropicCompleter(apiKey, model string, opts ...option.RequestOption) (*AnthropicCompleter, error) {
	if envKey := os.Getenv("ANTHROPIC_API_KEY"); envKey != "" {
		apiKey = envKey
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: set ANTHROPIC_API_KEY or ai.api-key", ErrAPIKeyRequired)
	}
	if model == "" {
		model = DefaultModel
	}

	// Retries are ours, not the SDK's.
	all := append([]option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}, opts...)

	aiMetricsOnce.Do(initAIMetrics)

	return &AnthropicCompleter{
		client:    anthropic.NewClient(all...),
		model:     anthropic.Model(model),
		maxTokens: defaultMaxTokens,
		newBackOff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.InitialInterval = initialBackoff
			return backoff.WithMaxRetries(bo, maxRetries)
		},
	}, nil
}

// aiMetrics holds lazily-initialized OTel instruments for Anthropic API calls.
var aiMetrics struct {
	inputTokens  metric.Int64Counter
	outputTokens metric.Int64Counter
	duration     metric.Float64Histogram
}

var aiMetricsOnce sync.Once

func initAIMetrics() {
	m := telemetry.Meter("github.com/spectree/spectree/ai")
	aiMetrics.inputTokens, _ = m.Int64Counter("spectree.ai.input_tokens",
		metric.WithDescription("Anthropic API input tokens consumed"),
		metric.WithUnit("{token}"),
	)
	aiMetrics.outputTokens, _ = m.Int64Counter("spectree.ai.output_tokens",
		metric.WithDescription("Anthropic API output tokens generated"),
		metric.WithUnit("{token}"),
	)
	aiMetrics.duration, _ = m.Float64Histogram("spectree.ai.request.duration",
		metric.WithDescription("Anthropic API request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
}

// Complete implements Completer.
func (a *AnthropicCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	tracer := telemetry.Tracer("github.com/spectree/spectree/ai")
	ctx, span := tracer.Start(ctx, "anthropic.messages.new")
	defer span.End()
	modelAttr := attribute.String("spectree.ai.model", string(a.model))
	span.SetAttributes(modelAttr)

	params := anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	var text string
	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		t0 := time.Now()
		message, err := a.client.Messages.New(ctx, params)
		if err != nil {
			if ctx.Err() != nil || !isRetryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}

		if aiMetrics.inputTokens != nil {
			ms := float64(time.Since(t0).Milliseconds())
			aiMetrics.inputTokens.Add(ctx, message.Usage.InputTokens, metric.WithAttributes(modelAttr))
			aiMetrics.outputTokens.Add(ctx, message.Usage.OutputTokens, metric.WithAttributes(modelAttr))
			aiMetrics.duration.Record(ctx, ms, metric.WithAttributes(modelAttr))
		}
		span.SetAttributes(
			attribute.Int64("spectree.ai.input_tokens", message.Usage.InputTokens),
			attribute.Int64("spectree.ai.output_tokens", message.Usage.OutputTokens),
		)

		for _, block := range message.Content {
			if block.Type == "text" {
				text += block.Text
			}
		}
		if text == "" {
			return backoff.Permanent(fmt.Errorf("%w: no text content", ErrInvalidResponse))
		}
		return nil
	}, backoff.WithContext(a.newBackOff(), ctx))

	span.SetAttributes(attribute.Int("spectree.ai.attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("anthropic request failed after %d attempt(s): %w", attempts, err)
	}
	return text, nil
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return false
}
