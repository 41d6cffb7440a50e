package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

type MessageRole string

const (
	MessageSystem    MessageRole = "system"
	MessageUser      MessageRole = "user"
	MessageAssistant MessageRole = "assistant"
)

type ChatMessage struct {
	Role    MessageRole
	Content string
}

// Reasoner is the language model capability the AI players run on.
// Transient failures are reported as *RequestFailure.
type Reasoner interface {
	// SubmitStructured decodes a reply conforming to schema into out.
	SubmitStructured(ctx context.Context, messages []ChatMessage, schema *jsonschema.Schema, out any) error
	// SubmitStreaming streams free text to onChunk and returns the full reply.
	SubmitStreaming(ctx context.Context, messages []ChatMessage, onChunk func(string)) (string, error)
}

type llmReasoner struct {
	llm      llms.Model
	callOpts []llms.CallOption
	tokens   func(texts ...string) int
}

func (r *llmReasoner) SubmitStructured(ctx context.Context, messages []ChatMessage, schema *jsonschema.Schema, out any) error {
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	messages = withSchemaInstruction(messages, string(schemaJSON))

	opts := append(slices.Clone(r.callOpts), llms.WithJSONMode())
	start := time.Now()
	resp, err := r.llm.GenerateContent(ctx, toMessageContent(messages), opts...)
	r.observe("structured", start, err, messages)
	if err != nil {
		return &RequestFailure{Op: "structured", Err: err}
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
		return &RequestFailure{Op: "structured", Err: errors.New("empty response")}
	}

	raw := extractJSON(resp.Choices[0].Content)
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return &RequestFailure{Op: "structured", Err: fmt.Errorf("parse %q: %w", raw, err)}
	}
	if v, ok := out.(validator); ok {
		if err := v.validate(); err != nil {
			return &RequestFailure{Op: "structured", Err: err}
		}
	}
	return nil
}

func (r *llmReasoner) SubmitStreaming(ctx context.Context, messages []ChatMessage, onChunk func(string)) (string, error) {
	var fullText strings.Builder
	opts := append(slices.Clone(r.callOpts), llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
		text := string(chunk)
		fullText.WriteString(text)
		if onChunk != nil {
			onChunk(text)
		}
		return nil
	}))

	start := time.Now()
	_, err := r.llm.GenerateContent(ctx, toMessageContent(messages), opts...)
	r.observe("streaming", start, err, messages)
	if err != nil {
		return strings.TrimSpace(fullText.String()), &RequestFailure{Op: "streaming", Err: err}
	}
	return strings.TrimSpace(fullText.String()), nil
}

func (r *llmReasoner) observe(kind string, start time.Time, err error, messages []ChatMessage) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	reasonerRequests.WithLabelValues(kind, status).Inc()
	reasonerDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if r.tokens != nil {
		texts := make([]string, len(messages))
		for i, m := range messages {
			texts[i] = m.Content
		}
		reasonerPromptTokens.Observe(float64(r.tokens(texts...)))
	}
}

func toMessageContent(messages []ChatMessage) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		role := llms.ChatMessageTypeHuman
		switch m.Role {
		case MessageSystem:
			role = llms.ChatMessageTypeSystem
		case MessageAssistant:
			role = llms.ChatMessageTypeAI
		}
		out = append(out, llms.TextParts(role, m.Content))
	}
	return out
}

// withSchemaInstruction appends the output contract to the first system message.
func withSchemaInstruction(messages []ChatMessage, schema string) []ChatMessage {
	instruction := "Reply with a single JSON object that matches this JSON schema, and nothing else:\n" + schema
	out := slices.Clone(messages)
	for i, m := range out {
		if m.Role == MessageSystem {
			out[i].Content = m.Content + "\n\n" + instruction
			return out
		}
	}
	return append([]ChatMessage{{Role: MessageSystem, Content: instruction}}, out...)
}

// extractJSON strips markdown fences and any prose around the outermost object.
func extractJSON(text string) string {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	first := strings.Index(s, "{")
	last := strings.LastIndex(s, "}")
	if first >= 0 && last > first {
		return s[first : last+1]
	}
	return strings.TrimSpace(s)
}

// buildCallOpts builds LLM call options from the config.
func buildCallOpts(cfg AppConfig) []llms.CallOption {
	var opts []llms.CallOption

	if cfg.LLMTemperature != "" {
		if f, err := strconv.ParseFloat(cfg.LLMTemperature, 64); err == nil {
			opts = append(opts, llms.WithTemperature(f))
			log.Printf("Reasoner: temperature=%.2f", f)
		} else {
			log.Printf("Reasoner: invalid temperature %q: %v", cfg.LLMTemperature, err)
		}
	}

	if cfg.LLMThinking != "" {
		mode := llms.ThinkingMode(cfg.LLMThinking)
		switch mode {
		case llms.ThinkingModeNone, llms.ThinkingModeLow, llms.ThinkingModeMedium, llms.ThinkingModeHigh, llms.ThinkingModeAuto:
			opts = append(opts, llms.WithThinkingMode(mode))
			log.Printf("Reasoner: thinking=%s", mode)
		default:
			log.Printf("Reasoner: invalid thinking %q (valid: none, low, medium, high, auto)", cfg.LLMThinking)
		}
	}

	return opts
}

// newReasoner builds the language model client selected by cfg.LLMProvider.
func newReasoner(ctx context.Context, cfg AppConfig) (Reasoner, error) {
	model := cfg.LLMModel
	httpClient := http.DefaultClient
	if appLogger != nil && appLogger.logRequests {
		httpClient = &http.Client{Transport: &LoggingRoundTripper{Transport: http.DefaultTransport, Logger: appLogger}}
	}

	var llm llms.Model
	var err error
	switch cfg.LLMProvider {
	case "ollama":
		llm, err = ollama.New(ollama.WithModel(model), ollama.WithServerURL(cfg.LLMOllamaURL), ollama.WithHTTPClient(httpClient))
	case "openai":
		llm, err = openai.New(openai.WithModel(model), openai.WithHTTPClient(httpClient))
	case "claude":
		llm, err = anthropic.New(anthropic.WithModel(model), anthropic.WithHTTPClient(httpClient))
	case "gemini":
		llm, err = googleai.New(ctx, googleai.WithDefaultModel(model))
	case "groq":
		llm, err = openai.New(
			openai.WithModel(model),
			openai.WithBaseURL("https://api.groq.com/openai/v1"),
			openai.WithToken(cfg.GroqAPIKey),
			openai.WithHTTPClient(httpClient),
		)
	case "openai-compatible":
		if cfg.LLMURL == "" {
			return nil, errors.New("llm_url is required for the openai-compatible provider")
		}
		opts := []openai.Option{
			openai.WithModel(model),
			openai.WithBaseURL(cfg.LLMURL),
			openai.WithHTTPClient(httpClient),
		}
		if cfg.LLMAPIKey != "" {
			opts = append(opts, openai.WithToken(cfg.LLMAPIKey))
		}
		llm, err = openai.New(opts...)
	case "":
		return nil, errors.New("no llm provider configured (set llm_provider)")
	default:
		return nil, fmt.Errorf("unknown llm provider %q (ollama|openai|claude|gemini|groq|openai-compatible)", cfg.LLMProvider)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s (%s): %w", cfg.LLMProvider, model, err)
	}

	log.Printf("Reasoner: %s model=%s", cfg.LLMProvider, model)
	return &llmReasoner{
		llm:      llm,
		callOpts: buildCallOpts(cfg),
		tokens:   tokenCounter(model),
	}, nil
}
