package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StreamsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "t3chat_streams_active",
		Help: "Number of currently open response streams",
	})

	StreamEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "t3chat_stream_events_total",
		Help: "Stream events received, by event kind",
	}, []string{"kind"})

	StreamChunkBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "t3chat_stream_chunk_bytes_total",
		Help: "Bytes of streamed content and reasoning text received",
	})

	StreamFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "t3chat_stream_failures_total",
		Help: "Streams that ended in an error, by failure kind",
	}, []string{"kind"})

	AccumulatorFlushesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "t3chat_accumulator_flushes_total",
		Help: "Chunk accumulator flushes to observable state",
	})

	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "t3chat_api_request_duration_seconds",
		Help:    "REST API request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "t3chat_api_requests_total",
		Help: "REST API requests, by operation and status",
	}, []string{"operation", "status"})

	DocumentUploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "t3chat_document_uploads_total",
		Help: "Document uploads, by outcome",
	}, []string{"outcome"})

	MessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "t3chat_messages_total",
		Help: "Messages reconciled into conversation state, by role",
	}, []string{"role"})

	ToolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "t3chat_tool_calls_total",
		Help: "Tool calls observed on streams, by final status",
	}, []string{"status"})
)
