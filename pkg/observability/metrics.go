package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

var (
	globalMetrics Metrics = &noopMetrics{}
	metricsMu     sync.RWMutex
)

// Metrics records the service-level signals. All implementations must be
// safe for concurrent use and tolerate nil receivers so call sites never
// guard.
type Metrics interface {
	// RecordChatTurn records one completed chat turn with the number of
	// LLM/tool iterations it took.
	RecordChatTurn(ctx context.Context, duration time.Duration, iterations int, err error)

	// RecordStreamEvent counts one emitted SSE event by type.
	RecordStreamEvent(ctx context.Context, eventType string)

	// RecordToolExecution records one tool call.
	RecordToolExecution(ctx context.Context, tool string, duration time.Duration, err error)

	// RecordLLMCall records one completion request with token usage.
	RecordLLMCall(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error)

	// RecordRAGQuery records one RAG pipeline run.
	RecordRAGQuery(ctx context.Context, strategy string, duration time.Duration, cacheHit bool, err error)

	// RecordRetrievalStage records one retrieval-service stage (embed,
	// search, dedup, rerank, llm_filter).
	RecordRetrievalStage(ctx context.Context, pipeline, stage string, duration time.Duration, err error)
}

// InitMetrics builds the otel→prometheus bridge. Disabled metrics return a
// no-op implementation.
func InitMetrics(_ context.Context, cfg MetricsConfig) (Metrics, error) {
	if !cfg.Enabled {
		return &noopMetrics{}, nil
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter("travel-agent")

	m := &prometheusMetrics{}

	if m.chatDuration, err = meter.Float64Histogram(
		"agent_chat_turn_duration_seconds",
		metric.WithDescription("Chat turn duration in seconds"),
	); err != nil {
		return nil, err
	}
	if m.chatTurns, err = meter.Int64Counter(
		"agent_chat_turns_total",
		metric.WithDescription("Total chat turns"),
	); err != nil {
		return nil, err
	}
	if m.chatIterations, err = meter.Int64Counter(
		"agent_chat_iterations_total",
		metric.WithDescription("Total LLM/tool iterations across chat turns"),
	); err != nil {
		return nil, err
	}
	if m.chatErrors, err = meter.Int64Counter(
		"agent_chat_errors_total",
		metric.WithDescription("Total chat turn errors"),
	); err != nil {
		return nil, err
	}
	if m.streamEvents, err = meter.Int64Counter(
		"agent_stream_events_total",
		metric.WithDescription("Total stream events emitted, by type"),
	); err != nil {
		return nil, err
	}
	if m.toolDuration, err = meter.Float64Histogram(
		"agent_tool_execution_duration_seconds",
		metric.WithDescription("Tool execution duration in seconds"),
	); err != nil {
		return nil, err
	}
	if m.toolCalls, err = meter.Int64Counter(
		"agent_tool_calls_total",
		metric.WithDescription("Total tool calls"),
	); err != nil {
		return nil, err
	}
	if m.toolErrors, err = meter.Int64Counter(
		"agent_tool_errors_total",
		metric.WithDescription("Total tool call errors"),
	); err != nil {
		return nil, err
	}
	if m.llmDuration, err = meter.Float64Histogram(
		"agent_llm_request_duration_seconds",
		metric.WithDescription("LLM request duration in seconds"),
	); err != nil {
		return nil, err
	}
	if m.llmInputTokens, err = meter.Int64Counter(
		"agent_llm_tokens_input_total",
		metric.WithDescription("Total input tokens sent to the LLM"),
	); err != nil {
		return nil, err
	}
	if m.llmOutputTokens, err = meter.Int64Counter(
		"agent_llm_tokens_output_total",
		metric.WithDescription("Total output tokens from the LLM"),
	); err != nil {
		return nil, err
	}
	if m.llmErrors, err = meter.Int64Counter(
		"agent_llm_errors_total",
		metric.WithDescription("Total LLM request errors"),
	); err != nil {
		return nil, err
	}
	if m.ragDuration, err = meter.Float64Histogram(
		"rag_query_duration_seconds",
		metric.WithDescription("RAG pipeline duration in seconds"),
	); err != nil {
		return nil, err
	}
	if m.ragQueries, err = meter.Int64Counter(
		"rag_queries_total",
		metric.WithDescription("Total RAG pipeline runs"),
	); err != nil {
		return nil, err
	}
	if m.ragCacheHits, err = meter.Int64Counter(
		"rag_cache_hits_total",
		metric.WithDescription("Total RAG cache hits"),
	); err != nil {
		return nil, err
	}
	if m.ragErrors, err = meter.Int64Counter(
		"rag_errors_total",
		metric.WithDescription("Total RAG pipeline errors"),
	); err != nil {
		return nil, err
	}
	if m.retrievalStageDuration, err = meter.Float64Histogram(
		"retrieval_stage_duration_seconds",
		metric.WithDescription("Retrieval-service stage duration in seconds"),
	); err != nil {
		return nil, err
	}
	if m.retrievalStageErrors, err = meter.Int64Counter(
		"retrieval_stage_errors_total",
		metric.WithDescription("Total retrieval-service stage errors"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

type prometheusMetrics struct {
	chatDuration   metric.Float64Histogram
	chatTurns      metric.Int64Counter
	chatIterations metric.Int64Counter
	chatErrors     metric.Int64Counter
	streamEvents   metric.Int64Counter

	toolDuration metric.Float64Histogram
	toolCalls    metric.Int64Counter
	toolErrors   metric.Int64Counter

	llmDuration     metric.Float64Histogram
	llmInputTokens  metric.Int64Counter
	llmOutputTokens metric.Int64Counter
	llmErrors       metric.Int64Counter

	ragDuration  metric.Float64Histogram
	ragQueries   metric.Int64Counter
	ragCacheHits metric.Int64Counter
	ragErrors    metric.Int64Counter

	retrievalStageDuration metric.Float64Histogram
	retrievalStageErrors   metric.Int64Counter
}

func (m *prometheusMetrics) RecordChatTurn(ctx context.Context, duration time.Duration, iterations int, err error) {
	if m == nil {
		return
	}
	m.chatDuration.Record(ctx, duration.Seconds())
	m.chatTurns.Add(ctx, 1)
	m.chatIterations.Add(ctx, int64(iterations))
	if err != nil {
		m.chatErrors.Add(ctx, 1)
	}
}

func (m *prometheusMetrics) RecordStreamEvent(ctx context.Context, eventType string) {
	if m == nil {
		return
	}
	m.streamEvents.Add(ctx, 1, metric.WithAttributes(attribute.String("type", eventType)))
}

func (m *prometheusMetrics) RecordToolExecution(ctx context.Context, tool string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("tool", tool))
	m.toolDuration.Record(ctx, duration.Seconds(), attrs)
	m.toolCalls.Add(ctx, 1, attrs)
	if err != nil {
		m.toolErrors.Add(ctx, 1, attrs)
	}
}

func (m *prometheusMetrics) RecordLLMCall(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("model", model))
	m.llmDuration.Record(ctx, duration.Seconds(), attrs)
	if inputTokens > 0 {
		m.llmInputTokens.Add(ctx, int64(inputTokens), attrs)
	}
	if outputTokens > 0 {
		m.llmOutputTokens.Add(ctx, int64(outputTokens), attrs)
	}
	if err != nil {
		m.llmErrors.Add(ctx, 1, attrs)
	}
}

func (m *prometheusMetrics) RecordRAGQuery(ctx context.Context, strategy string, duration time.Duration, cacheHit bool, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("strategy", strategy))
	m.ragDuration.Record(ctx, duration.Seconds(), attrs)
	m.ragQueries.Add(ctx, 1, attrs)
	if cacheHit {
		m.ragCacheHits.Add(ctx, 1, attrs)
	}
	if err != nil {
		m.ragErrors.Add(ctx, 1, attrs)
	}
}

func (m *prometheusMetrics) RecordRetrievalStage(ctx context.Context, pipeline, stage string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("pipeline", pipeline),
		attribute.String("stage", stage),
	)
	m.retrievalStageDuration.Record(ctx, duration.Seconds(), attrs)
	if err != nil {
		m.retrievalStageErrors.Add(ctx, 1, attrs)
	}
}

type noopMetrics struct{}

func (*noopMetrics) RecordChatTurn(context.Context, time.Duration, int, error)                  {}
func (*noopMetrics) RecordStreamEvent(context.Context, string)                                  {}
func (*noopMetrics) RecordToolExecution(context.Context, string, time.Duration, error)          {}
func (*noopMetrics) RecordLLMCall(context.Context, string, time.Duration, int, int, error)      {}
func (*noopMetrics) RecordRAGQuery(context.Context, string, time.Duration, bool, error)         {}
func (*noopMetrics) RecordRetrievalStage(context.Context, string, string, time.Duration, error) {}

// SetGlobalMetrics installs the process-wide metrics sink.
func SetGlobalMetrics(m Metrics) {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	globalMetrics = m
}

// GetGlobalMetrics returns the process-wide metrics sink. Never nil.
func GetGlobalMetrics() Metrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return globalMetrics
}
