package observers

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	toolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "analyzer_agent_tool_calls_total",
		Help: "Analyzer tool executions by tool and result.",
	}, []string{"tool", "result"})

	toolDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "analyzer_agent_tool_duration_seconds",
		Help:    "Analyzer tool latency.",
		Buckets: prometheus.ExponentialBuckets(0.005, 3, 9),
	}, []string{"tool"})

	modelTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "analyzer_agent_model_tokens_total",
		Help: "Tokens reported by the chat models, by kind.",
	}, []string{"kind"})
)
