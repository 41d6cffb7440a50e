package main

import (
	"log"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reasonerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "werewolf_reasoner_requests_total",
			Help: "Reasoning requests, partitioned by call kind and status.",
		},
		[]string{"kind", "status"},
	)
	reasonerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "werewolf_reasoner_request_duration_seconds",
			Help:    "Duration of reasoning requests.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
		},
		[]string{"kind"},
	)
	reasonerPromptTokens = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "werewolf_reasoner_prompt_tokens",
			Help:    "Estimated prompt tokens per reasoning request.",
			Buckets: prometheus.ExponentialBuckets(128, 2, 8),
		},
	)
	reasonerRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "werewolf_reasoner_retries_total",
			Help: "Retried reasoning requests, partitioned by operation.",
		},
		[]string{"op"},
	)
	interruptsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "werewolf_interrupts_published_total",
			Help: "Human decisions requested, partitioned by kind.",
		},
		[]string{"kind"},
	)
	gamesFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "werewolf_games_finished_total",
			Help: "Finished games, partitioned by outcome (wolf, village, restart, error).",
		},
		[]string{"outcome"},
	)
)

var (
	encodingsMu sync.Mutex
	encodings   = map[string]*tiktoken.Tiktoken{}
)

// tokenCounter returns a function estimating the token count of texts for model.
// Unknown models fall back to cl100k_base.
func tokenCounter(model string) func(texts ...string) int {
	return func(texts ...string) int {
		enc := encodingFor(model)
		if enc == nil {
			return 0
		}
		n := 0
		for _, t := range texts {
			n += len(enc.Encode(t, nil, nil))
		}
		return n
	}
}

func encodingFor(model string) *tiktoken.Tiktoken {
	encodingsMu.Lock()
	defer encodingsMu.Unlock()
	if enc, ok := encodings[model]; ok {
		return enc
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
	}
	if err != nil {
		log.Printf("Metrics: no tokenizer for %q: %v", model, err)
		enc = nil
	}
	encodings[model] = enc
	return enc
}
