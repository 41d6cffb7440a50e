package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all server configuration.
// Priority (lowest → highest): defaults < .env file < env vars < JSON config file < CLI flags.
type AppConfig struct {
	// Server
	DB   string `json:"db"`   // database connection string
	Dev  bool   `json:"dev"`  // dev mode: debug logging
	Addr string `json:"addr"` // HTTP listen address

	// Logging (extended diagnostics, off by default)
	LogOutputDir string `json:"log_output_dir"`
	LogRequests  bool   `json:"log_requests"`
	LogDB        bool   `json:"log_db"`
	LogWS        bool   `json:"log_ws"`
	LogDebug     bool   `json:"log_debug"`

	// Language model
	LLMProvider    string `json:"llm_provider"`    // ollama | openai | claude | gemini | groq | openai-compatible
	LLMModel       string `json:"llm_model"`       // model name
	LLMOllamaURL   string `json:"llm_ollama_url"`  // Ollama server URL
	LLMURL         string `json:"llm_url"`         // base URL for openai-compatible
	LLMAPIKey      string `json:"llm_api_key"`     // API key for openai-compatible
	LLMTemperature string `json:"llm_temperature"` // float 0-1 as string
	LLMThinking    string `json:"llm_thinking"`    // none | low | medium | high | auto
	GroqAPIKey     string `json:"groq_api_key"`    // API key for groq provider

	// Game
	Players      int    `json:"players"`        // seats at the table, at least 6
	HumanPlayers int    `json:"human_players"`  // seats played by humans, 0 or 1
	HumanName    string `json:"human_name"`     // display name of the human seat
	RetryBaseMS  int    `json:"retry_base_ms"`  // retry delay is attempt × base
	PhaseDelayMS int    `json:"phase_delay_ms"` // pause between phases
	LastWords    bool   `json:"last_words"`     // voted-out players give a final statement
	AutoStart    bool   `json:"auto_start"`     // start a game when the server boots
}

func (cfg AppConfig) toLogConfig() LogConfig {
	return LogConfig{
		OutputDir:   cfg.LogOutputDir,
		LogRequests: cfg.LogRequests,
		LogDB:       cfg.LogDB,
		LogWS:       cfg.LogWS,
		Debug:       cfg.LogDebug || cfg.Dev,
	}
}

func (cfg AppConfig) gameSettings() gameSettings {
	return gameSettings{
		Players:    cfg.Players,
		Humans:     cfg.HumanPlayers,
		HumanName:  cfg.HumanName,
		RetryBase:  time.Duration(cfg.RetryBaseMS) * time.Millisecond,
		PhaseDelay: time.Duration(cfg.PhaseDelayMS) * time.Millisecond,
		LastWords:  cfg.LastWords,
	}
}

func defaultConfig() AppConfig {
	return AppConfig{
		DB:           "file::memory:?cache=shared",
		Addr:         ":8080",
		LLMOllamaURL: "http://localhost:11434",
		Players:      9,
		HumanPlayers: 1,
		HumanName:    "You",
		RetryBaseMS:  1000,
	}
}

// loadConfig builds a config by layering: defaults → .env file → env vars → JSON config file.
// CLI flag overrides are applied separately by flagValues.applyTo after flag.Parse.
func loadConfig(configPath, dotenvPath string) AppConfig {
	cfg := defaultConfig()

	// Layer 1: .env never overrides variables already set in the environment
	if dotenvPath != "" {
		if err := godotenv.Load(dotenvPath); err == nil {
			log.Printf("Config: loaded env from %s", dotenvPath)
		} else if !os.IsNotExist(err) {
			log.Printf("Config: failed to read %s: %v", dotenvPath, err)
		}
	}

	// Layer 2: env vars
	envStr := os.Getenv
	envBool := func(key string) (val bool, set bool) {
		v := os.Getenv(key)
		if v == "" {
			return false, false
		}
		return v == "1" || v == "true" || v == "yes", true
	}
	envInt := func(key string, dst *int) {
		v := os.Getenv(key)
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			log.Printf("Config: ignoring %s=%q: %v", key, v, err)
			return
		}
		*dst = n
	}

	if v := envStr("DB"); v != "" {
		cfg.DB = v
	}
	if v, ok := envBool("DEV"); ok {
		cfg.Dev = v
	}
	if v := envStr("ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := envStr("LOG_OUTPUT_DIR"); v != "" {
		cfg.LogOutputDir = v
	}
	if v, ok := envBool("LOG_REQUESTS"); ok {
		cfg.LogRequests = v
	}
	if v, ok := envBool("LOG_DB"); ok {
		cfg.LogDB = v
	}
	if v, ok := envBool("LOG_WS"); ok {
		cfg.LogWS = v
	}
	if v, ok := envBool("LOG_DEBUG"); ok {
		cfg.LogDebug = v
	}
	if v := envStr("LLM_PROVIDER"); v != "" {
		cfg.LLMProvider = v
	}
	if v := envStr("LLM_MODEL"); v != "" {
		cfg.LLMModel = v
	}
	if v := envStr("LLM_OLLAMA_URL"); v != "" {
		cfg.LLMOllamaURL = v
	}
	if v := envStr("LLM_URL"); v != "" {
		cfg.LLMURL = v
	}
	if v := envStr("LLM_API_KEY"); v != "" {
		cfg.LLMAPIKey = v
	}
	if v := envStr("LLM_TEMPERATURE"); v != "" {
		cfg.LLMTemperature = v
	}
	if v := envStr("LLM_THINKING"); v != "" {
		cfg.LLMThinking = v
	}
	if v := envStr("GROQ_API_KEY"); v != "" {
		cfg.GroqAPIKey = v
	}
	envInt("PLAYERS", &cfg.Players)
	envInt("HUMAN_PLAYERS", &cfg.HumanPlayers)
	if v := envStr("HUMAN_NAME"); v != "" {
		cfg.HumanName = v
	}
	envInt("RETRY_BASE_MS", &cfg.RetryBaseMS)
	envInt("PHASE_DELAY_MS", &cfg.PhaseDelayMS)
	if v, ok := envBool("LAST_WORDS"); ok {
		cfg.LastWords = v
	}
	if v, ok := envBool("AUTO_START"); ok {
		cfg.AutoStart = v
	}

	// Layer 3: JSON config file, only fields present in the file override env vars
	if data, err := os.ReadFile(configPath); err == nil {
		var overlay map[string]json.RawMessage
		if err := json.Unmarshal(data, &overlay); err != nil {
			log.Printf("Config: failed to parse %s: %v", configPath, err)
		} else {
			applyJSONOverlay(&cfg, overlay)
			log.Printf("Config: loaded from %s", configPath)
		}
	} else if !os.IsNotExist(err) {
		log.Printf("Config: failed to read %s: %v", configPath, err)
	}

	return cfg
}

// applyJSONOverlay only sets fields that are explicitly present in the JSON map.
func applyJSONOverlay(cfg *AppConfig, m map[string]json.RawMessage) {
	set := func(key string, dst any) {
		if v, ok := m[key]; ok {
			if err := json.Unmarshal(v, dst); err != nil {
				log.Printf("Config: ignoring %s: %v", key, err)
			}
		}
	}
	set("db", &cfg.DB)
	set("dev", &cfg.Dev)
	set("addr", &cfg.Addr)
	set("log_output_dir", &cfg.LogOutputDir)
	set("log_requests", &cfg.LogRequests)
	set("log_db", &cfg.LogDB)
	set("log_ws", &cfg.LogWS)
	set("log_debug", &cfg.LogDebug)
	set("llm_provider", &cfg.LLMProvider)
	set("llm_model", &cfg.LLMModel)
	set("llm_ollama_url", &cfg.LLMOllamaURL)
	set("llm_url", &cfg.LLMURL)
	set("llm_api_key", &cfg.LLMAPIKey)
	set("llm_temperature", &cfg.LLMTemperature)
	set("llm_thinking", &cfg.LLMThinking)
	set("groq_api_key", &cfg.GroqAPIKey)
	set("players", &cfg.Players)
	set("human_players", &cfg.HumanPlayers)
	set("human_name", &cfg.HumanName)
	set("retry_base_ms", &cfg.RetryBaseMS)
	set("phase_delay_ms", &cfg.PhaseDelayMS)
	set("last_words", &cfg.LastWords)
	set("auto_start", &cfg.AutoStart)
}

// flagValues holds pointers to all registered CLI flags.
type flagValues struct {
	configPath     *string
	envPath        *string
	db             *string
	dev            *bool
	addr           *string
	logOutputDir   *string
	logRequests    *bool
	logDB          *bool
	logWS          *bool
	logDebug       *bool
	llmProvider    *string
	llmModel       *string
	llmOllamaURL   *string
	llmURL         *string
	llmAPIKey      *string
	llmTemperature *string
	llmThinking    *string
	groqAPIKey     *string
	players        *int
	humanPlayers   *int
	humanName      *string
	retryBaseMS    *int
	phaseDelayMS   *int
	lastWords      *bool
	autoStart      *bool
}

// registerFlags registers all CLI flags on fs and returns pointers to their values.
// Parse fs after this, then applyTo to layer them over the loaded config.
func registerFlags(fs *flag.FlagSet) flagValues {
	return flagValues{
		configPath:     fs.String("config", "config.json", "path to JSON config file"),
		envPath:        fs.String("env", ".env", "path to .env file"),
		db:             fs.String("db", "", "database connection string"),
		dev:            fs.Bool("dev", false, "enable development mode (debug logging)"),
		addr:           fs.String("addr", "", "HTTP listen address (e.g. :8080)"),
		logOutputDir:   fs.String("log-output-dir", "", "directory for extended log files"),
		logRequests:    fs.Bool("log-requests", false, "log HTTP and model requests"),
		logDB:          fs.Bool("log-db", false, "log database dumps"),
		logWS:          fs.Bool("log-ws", false, "log WebSocket messages"),
		logDebug:       fs.Bool("log-debug", false, "enable debug logging"),
		llmProvider:    fs.String("llm-provider", "", "language model provider (ollama|openai|claude|gemini|groq|openai-compatible)"),
		llmModel:       fs.String("llm-model", "", "language model name"),
		llmOllamaURL:   fs.String("llm-ollama-url", "", "Ollama server URL"),
		llmURL:         fs.String("llm-url", "", "base URL for openai-compatible provider"),
		llmAPIKey:      fs.String("llm-api-key", "", "API key for openai-compatible provider"),
		llmTemperature: fs.String("llm-temperature", "", "sampling temperature 0-1"),
		llmThinking:    fs.String("llm-thinking", "", "thinking mode: none|low|medium|high|auto"),
		groqAPIKey:     fs.String("groq-api-key", "", "Groq API key"),
		players:        fs.Int("players", 0, "number of seats (at least 6)"),
		humanPlayers:   fs.Int("human-players", 0, "number of human seats (0 or 1)"),
		humanName:      fs.String("human-name", "", "display name of the human seat"),
		retryBaseMS:    fs.Int("retry-base-ms", 0, "base retry delay in milliseconds"),
		phaseDelayMS:   fs.Int("phase-delay-ms", 0, "pause between phases in milliseconds"),
		lastWords:      fs.Bool("last-words", false, "let voted-out players give last words"),
		autoStart:      fs.Bool("auto-start", false, "start a game when the server boots"),
	}
}

// applyTo overlays any CLI flags that were explicitly set onto cfg.
// Flags that were not passed on the command line are ignored (env/JSON values win).
func (fv flagValues) applyTo(fs *flag.FlagSet, cfg *AppConfig) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "db":
			cfg.DB = *fv.db
		case "dev":
			cfg.Dev = *fv.dev
		case "addr":
			cfg.Addr = *fv.addr
		case "log-output-dir":
			cfg.LogOutputDir = *fv.logOutputDir
		case "log-requests":
			cfg.LogRequests = *fv.logRequests
		case "log-db":
			cfg.LogDB = *fv.logDB
		case "log-ws":
			cfg.LogWS = *fv.logWS
		case "log-debug":
			cfg.LogDebug = *fv.logDebug
		case "llm-provider":
			cfg.LLMProvider = *fv.llmProvider
		case "llm-model":
			cfg.LLMModel = *fv.llmModel
		case "llm-ollama-url":
			cfg.LLMOllamaURL = *fv.llmOllamaURL
		case "llm-url":
			cfg.LLMURL = *fv.llmURL
		case "llm-api-key":
			cfg.LLMAPIKey = *fv.llmAPIKey
		case "llm-temperature":
			cfg.LLMTemperature = *fv.llmTemperature
		case "llm-thinking":
			cfg.LLMThinking = *fv.llmThinking
		case "groq-api-key":
			cfg.GroqAPIKey = *fv.groqAPIKey
		case "players":
			cfg.Players = *fv.players
		case "human-players":
			cfg.HumanPlayers = *fv.humanPlayers
		case "human-name":
			cfg.HumanName = *fv.humanName
		case "retry-base-ms":
			cfg.RetryBaseMS = *fv.retryBaseMS
		case "phase-delay-ms":
			cfg.PhaseDelayMS = *fv.phaseDelayMS
		case "last-words":
			cfg.LastWords = *fv.lastWords
		case "auto-start":
			cfg.AutoStart = *fv.autoStart
		}
	})
}
