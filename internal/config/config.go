package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	AppName    = "Cross-Culture Humor Mapper"
	AppVersion = "1.0.0"
	AppRepo    = "https://github.com/humormapper/humormapper"
)

// DefaultBaseURL is the OpenRouter chat completions endpoint root.
const DefaultBaseURL = "https://openrouter.ai/api/v1"

// DefaultModels is the priority order used when HUMOR_MODELS is unset.
var DefaultModels = []string{
	"mistralai/mistral-small-3.2-24b-instruct:free",
	"meta-llama/llama-3-8b-instruct:free",
	"google/gemma-7b-it:free",
	"nousresearch/nous-hermes-2-mixtral-8x7b-dpo:free",
	"google/gemma-2b-it:free",
	"meta-llama/llama-2-13b-chat:free",
	"microsoft/wizardlm-2-8x22b:free",
	"undi95/toppy-m-7b:free",
}

// Defaults for the inference client.
const (
	defaultAttemptTimeout = 30 * time.Second
	defaultAttemptDelay   = 2 * time.Second
	defaultMaxTokens      = 500
	defaultTemperature    = 0.7
)

type Config struct {
	Addr      string
	DBPath    string
	DataDir   string
	StaticDir string
	LogLevel  string
	NodeID    int64
	Inference InferenceConfig
}

// InferenceConfig describes how the service reaches the hosted models.
type InferenceConfig struct {
	Provider       string // compatible, openai, anthropic
	APIKey         string
	BaseURL        string
	ProxyURL       string
	Models         []string
	AttemptTimeout time.Duration
	AttemptDelay   time.Duration
	MaxTokens      int
	Temperature    float64
}

// Load reads configuration from the environment. A .env file in the working
// directory or the data directory is loaded first when present; variables
// already set in the environment win.
func Load() Config {
	for _, path := range envPaths() {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			break
		}
	}

	dataDir := getEnvString("HUMOR_DATA_DIR", "./data")
	dbPath := getEnvString("HUMOR_DB_PATH", filepath.Join(dataDir, "humor.db"))
	staticDir := os.Getenv("HUMOR_STATIC_DIR")
	if staticDir == "" {
		staticDir = detectStaticDir()
	}

	return Config{
		Addr:      getEnvString("HUMOR_ADDR", ":8080"),
		DBPath:    filepath.Clean(dbPath),
		DataDir:   filepath.Clean(dataDir),
		StaticDir: filepath.Clean(staticDir),
		LogLevel:  getEnvString("HUMOR_LOG_LEVEL", "info"),
		NodeID:    int64(getEnvInt("HUMOR_NODE_ID", 1)),
		Inference: InferenceConfig{
			Provider:       getEnvString("HUMOR_INFERENCE_PROVIDER", "compatible"),
			APIKey:         firstNonEmpty(os.Getenv("HUMOR_API_KEY"), os.Getenv("OPENROUTER_API_KEY")),
			BaseURL:        getEnvString("HUMOR_BASE_URL", DefaultBaseURL),
			ProxyURL:       os.Getenv("HUMOR_PROXY_URL"),
			Models:         parseModels(os.Getenv("HUMOR_MODELS")),
			AttemptTimeout: getEnvDuration("HUMOR_ATTEMPT_TIMEOUT", defaultAttemptTimeout),
			AttemptDelay:   getEnvDuration("HUMOR_ATTEMPT_DELAY", defaultAttemptDelay),
			MaxTokens:      getEnvInt("HUMOR_MAX_TOKENS", defaultMaxTokens),
			Temperature:    getEnvFloat("HUMOR_TEMPERATURE", defaultTemperature),
		},
	}
}

func envPaths() []string {
	paths := []string{".env"}
	if dir := os.Getenv("HUMOR_DATA_DIR"); dir != "" {
		paths = append(paths, filepath.Join(dir, ".env"))
	}
	return paths
}

// parseModels splits a comma separated model list, dropping blanks and
// duplicates while keeping the first occurrence's position.
func parseModels(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return append([]string(nil), DefaultModels...)
	}
	seen := make(map[string]struct{})
	var models []string
	for _, part := range strings.Split(raw, ",") {
		m := strings.TrimSpace(part)
		if m == "" {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		models = append(models, m)
	}
	if len(models) == 0 {
		return append([]string(nil), DefaultModels...)
	}
	return models
}

func detectStaticDir() string {
	candidates := []string{
		"./web",
		"../web",
	}
	for _, candidate := range candidates {
		indexPath := filepath.Join(candidate, "index.html")
		if info, err := os.Stat(indexPath); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return "./web"
}

func getEnvString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("30s") or plain seconds ("30").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
