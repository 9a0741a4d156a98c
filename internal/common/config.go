package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Logging     LoggingConfig   `toml:"logging"`
	WebSocket   WebSocketConfig `toml:"websocket"`
	Jobs        JobsConfig      `toml:"jobs"`
	Storage     StorageConfig   `toml:"storage"`
	Sessions    SessionsConfig  `toml:"sessions"`
	Gemini      GeminiConfig    `toml:"gemini"`
	Claude      ClaudeConfig    `toml:"claude"`
	LLM         LLMConfig       `toml:"llm"`
	Patents     PatentsConfig   `toml:"patents"`
	WebSearch   WebSearchConfig `toml:"websearch"`
	PDF         PDFConfig       `toml:"pdf"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Format     string   `toml:"format"`      // "json" or "text"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05.000")
}

// JobsConfig controls the job store, queue and worker behavior
type JobsConfig struct {
	MaxJobs                       int            `toml:"max_jobs"`                         // Store cap before forced eviction (default: 1000)
	JobTTLSeconds                 int            `toml:"job_ttl_seconds"`                  // Max age of any terminal job (default: 3600)
	TerminalJobTTLSeconds         int            `toml:"terminal_job_ttl_seconds"`         // Max age of completed/failed/cancelled jobs (default: 600)
	CleanupIntervalSeconds        int            `toml:"cleanup_interval_seconds"`         // Minimum gap between eviction passes (default: 300)
	MaxAttempts                   int            `toml:"max_attempts"`                     // Retry count for job execution (default: 3)
	ProgressUpdateIntervalSeconds int            `toml:"progress_update_interval_seconds"` // Throttle for progress writes (default: 2)
	TimeoutBufferSeconds          int            `toml:"timeout_buffer_seconds"`           // Added to the job type estimate for the overall timeout (default: 60)
	QueueSize                     int            `toml:"queue_size"`                       // Bounded submission queue capacity (default: 256)
	WorkerCount                   int            `toml:"worker_count"`                     // Number of job workers (default: 1)
	PollInterval                  string         `toml:"poll_interval"`                    // Dequeue wait per loop iteration, e.g. "1s"
	Estimates                     map[string]int `toml:"estimates"`                        // job_type -> estimated duration in seconds
}

// JobTTL returns the configured job TTL as a duration
func (j JobsConfig) JobTTL() time.Duration {
	return time.Duration(j.JobTTLSeconds) * time.Second
}

// TerminalJobTTL returns the configured terminal job TTL as a duration
func (j JobsConfig) TerminalJobTTL() time.Duration {
	return time.Duration(j.TerminalJobTTLSeconds) * time.Second
}

// CleanupInterval returns the configured cleanup interval as a duration
func (j JobsConfig) CleanupInterval() time.Duration {
	return time.Duration(j.CleanupIntervalSeconds) * time.Second
}

// ProgressUpdateInterval returns the configured progress throttle as a duration
func (j JobsConfig) ProgressUpdateInterval() time.Duration {
	return time.Duration(j.ProgressUpdateIntervalSeconds) * time.Second
}

// TimeoutBuffer returns the configured timeout buffer as a duration
func (j JobsConfig) TimeoutBuffer() time.Duration {
	return time.Duration(j.TimeoutBufferSeconds) * time.Second
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path            string `toml:"path"`              // Database directory path
	InMemory        bool   `toml:"in_memory"`         // Run without persistence (sessions and cache lost on restart)
	ResetOnStartup  bool   `toml:"reset_on_startup"`  // Delete database on startup for clean test runs
	CacheTTLSeconds int    `toml:"cache_ttl_seconds"` // TTL for tool result cache entries (default: 900, 0 disables caching)
}

// CacheTTL returns the tool cache TTL as a duration
func (b BadgerConfig) CacheTTL() time.Duration {
	return time.Duration(b.CacheTTLSeconds) * time.Second
}

// SessionsConfig controls conversation history retention
type SessionsConfig struct {
	Enabled  bool `toml:"enabled"`   // Persist conversation turns per session_id (default: true)
	MaxTurns int  `toml:"max_turns"` // Turns kept per session before pruning oldest (default: 40)
}

// WebSocketConfig contains configuration for WebSocket event and log streaming
type WebSocketConfig struct {
	MinLevel        string   `toml:"min_level"`        // Minimum log level to broadcast ("debug", "info", "warn", "error")
	ExcludePatterns []string `toml:"exclude_patterns"` // Log message patterns to exclude from broadcasting
	// Whitelist of event types to broadcast. Empty list allows all events.
	// Example: ["job_submitted", "job_completed", "job_progress"]
	AllowedEvents []string `toml:"allowed_events"`
	// Throttle intervals for high-frequency events. Map of event type to duration string.
	// Example: {"job_progress": "1s"}
	ThrottleIntervals map[string]string `toml:"throttle_intervals"`
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`     // Google Gemini API key
	Model       string  `toml:"model"`       // Model for completions (default: "gemini-3-flash-preview")
	Timeout     string  `toml:"timeout"`     // Operation timeout as duration string (default: "2m")
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0.2)
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`     // Anthropic API key
	Model       string  `toml:"model"`       // Model for completions (default: "claude-3-5-haiku-20241022")
	MaxTokens   int     `toml:"max_tokens"`  // Maximum tokens in response (default: 4096)
	Timeout     string  `toml:"timeout"`     // Operation timeout as duration string (default: "2m")
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0.2)
}

// LLMConfig contains unified configuration for all AI providers
type LLMConfig struct {
	DefaultProvider string `toml:"default_provider"` // "claude" or "gemini" (default: "claude")
}

// PatentsConfig contains patent search API configuration.
// The client follows the EPO Open Patent Services contract: OAuth2
// client-credentials against TokenURL, then rate-limited REST queries.
type PatentsConfig struct {
	BaseURL        string `toml:"base_url"`        // API base URL (default: EPO OPS)
	TokenURL       string `toml:"token_url"`       // OAuth2 token endpoint
	ConsumerKey    string `toml:"consumer_key"`    // OAuth2 client id
	ConsumerSecret string `toml:"consumer_secret"` // OAuth2 client secret
	RateLimit      int    `toml:"rate_limit"`      // Requests per second (default: 2)
	Timeout        string `toml:"timeout"`         // HTTP timeout as duration string (default: "30s")
	MaxResults     int    `toml:"max_results"`     // Results per search (default: 5)
}

// Configured reports whether the patent API credentials are present
func (p PatentsConfig) Configured() bool {
	return p.ConsumerKey != "" && p.ConsumerSecret != ""
}

// WebSearchConfig contains web search tool configuration
type WebSearchConfig struct {
	Endpoint     string `toml:"endpoint"`      // HTML search endpoint, {query} is replaced (default: DuckDuckGo HTML)
	UserAgent    string `toml:"user_agent"`    // User agent for fetches
	Timeout      string `toml:"timeout"`       // HTTP timeout as duration string (default: "20s")
	MaxResults   int    `toml:"max_results"`   // Search results included in tool output (default: 5)
	FetchContent bool   `toml:"fetch_content"` // Fetch and convert the top result page to markdown (default: false)
	MaxBodySize  int    `toml:"max_body_size"` // Maximum response body size in bytes (default: 2MB)
}

// PDFConfig contains result export configuration
type PDFConfig struct {
	Title  string `toml:"title"`  // Document title line on exported PDFs
	Footer string `toml:"footer"` // Footer text on exported PDFs
}

// SchedulerConfig controls background maintenance
type SchedulerConfig struct {
	Enabled             bool   `toml:"enabled"`              // Run the maintenance scheduler (default: true)
	MaintenanceSchedule string `toml:"maintenance_schedule"` // Cron expression for eviction + stale-job sweep (default: "*/5 * * * *")
	StaleGraceSeconds   int    `toml:"stale_grace_seconds"`  // Grace beyond the job deadline before a processing job is failed (default: 120)
}

// StaleGrace returns the stale-job grace period as a duration
func (s SchedulerConfig) StaleGrace() time.Duration {
	return time.Duration(s.StaleGraceSeconds) * time.Second
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability.
// Only user-facing settings should be exposed in assero.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05.000",
		},
		WebSocket: WebSocketConfig{
			MinLevel: "info",
			ExcludePatterns: []string{
				"WebSocket client connected",
				"WebSocket client disconnected",
				"HTTP request",
				"Publishing event",
			},
			AllowedEvents: []string{},
			ThrottleIntervals: map[string]string{
				"job_progress": "1s",
			},
		},
		Jobs: JobsConfig{
			MaxJobs:                       1000,
			JobTTLSeconds:                 3600,
			TerminalJobTTLSeconds:         600,
			CleanupIntervalSeconds:        300,
			MaxAttempts:                   3,
			ProgressUpdateIntervalSeconds: 2,
			TimeoutBufferSeconds:          60,
			QueueSize:                     256,
			WorkerCount:                   1,
			PollInterval:                  "1s",
			Estimates: map[string]int{
				"prior_art":      240,
				"claim_drafting": 120,
				"claim_analysis": 60,
				"web_search":     30,
				"general_chat":   30,
			},
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path:            "./data",
				CacheTTLSeconds: 900,
			},
		},
		Sessions: SessionsConfig{
			Enabled:  true,
			MaxTurns: 40,
		},
		Gemini: GeminiConfig{
			APIKey:      "", // User must provide API key (no fallback)
			Model:       "gemini-3-flash-preview",
			Timeout:     "2m",
			Temperature: 0.2,
		},
		Claude: ClaudeConfig{
			APIKey:      "", // User must provide API key (ANTHROPIC_API_KEY or config)
			Model:       "claude-3-5-haiku-20241022",
			MaxTokens:   4096,
			Timeout:     "2m",
			Temperature: 0.2,
		},
		LLM: LLMConfig{
			DefaultProvider: "claude",
		},
		Patents: PatentsConfig{
			BaseURL:    "https://ops.epo.org/3.2/rest-services",
			TokenURL:   "https://ops.epo.org/3.2/auth/accesstoken",
			RateLimit:  2,
			Timeout:    "30s",
			MaxResults: 5,
		},
		WebSearch: WebSearchConfig{
			Endpoint:     "https://html.duckduckgo.com/html/?q={query}",
			UserAgent:    "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			Timeout:      "20s",
			MaxResults:   5,
			FetchContent: false,
			MaxBodySize:  2 * 1024 * 1024,
		},
		PDF: PDFConfig{
			Title:  "Assero Patent Assistant",
			Footer: "Generated by Assero",
		},
		Scheduler: SchedulerConfig{
			Enabled:             true,
			MaintenanceSchedule: "*/5 * * * *",
			StaleGraceSeconds:   120,
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env -> CLI
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files. Later files override
// earlier files. Priority: CLI flags > environment > last file > ... > defaults.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("ASSERO_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("ASSERO_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("ASSERO_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Logging configuration
	if level := os.Getenv("ASSERO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("ASSERO_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := os.Getenv("ASSERO_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Jobs configuration
	if maxJobs := os.Getenv("ASSERO_JOBS_MAX_JOBS"); maxJobs != "" {
		if mj, err := strconv.Atoi(maxJobs); err == nil {
			config.Jobs.MaxJobs = mj
		}
	}
	if ttl := os.Getenv("ASSERO_JOBS_TTL_SECONDS"); ttl != "" {
		if t, err := strconv.Atoi(ttl); err == nil {
			config.Jobs.JobTTLSeconds = t
		}
	}
	if ttl := os.Getenv("ASSERO_JOBS_TERMINAL_TTL_SECONDS"); ttl != "" {
		if t, err := strconv.Atoi(ttl); err == nil {
			config.Jobs.TerminalJobTTLSeconds = t
		}
	}
	if attempts := os.Getenv("ASSERO_JOBS_MAX_ATTEMPTS"); attempts != "" {
		if a, err := strconv.Atoi(attempts); err == nil {
			config.Jobs.MaxAttempts = a
		}
	}
	if workers := os.Getenv("ASSERO_JOBS_WORKER_COUNT"); workers != "" {
		if w, err := strconv.Atoi(workers); err == nil {
			config.Jobs.WorkerCount = w
		}
	}

	// Storage configuration
	if badgerPath := os.Getenv("ASSERO_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}
	if inMemory := os.Getenv("ASSERO_BADGER_IN_MEMORY"); inMemory != "" {
		if im, err := strconv.ParseBool(inMemory); err == nil {
			config.Storage.Badger.InMemory = im
		}
	}

	// Gemini configuration
	if apiKey := os.Getenv("ASSERO_GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	} else if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if model := os.Getenv("ASSERO_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}
	if timeout := os.Getenv("ASSERO_GEMINI_TIMEOUT"); timeout != "" {
		config.Gemini.Timeout = timeout
	}
	if temperature := os.Getenv("ASSERO_GEMINI_TEMPERATURE"); temperature != "" {
		if t, err := strconv.ParseFloat(temperature, 32); err == nil {
			config.Gemini.Temperature = float32(t)
		}
	}

	// Claude configuration
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if apiKey := os.Getenv("ASSERO_CLAUDE_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey // ASSERO_ prefix takes priority
	}
	if model := os.Getenv("ASSERO_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}
	if maxTokens := os.Getenv("ASSERO_CLAUDE_MAX_TOKENS"); maxTokens != "" {
		if mt, err := strconv.Atoi(maxTokens); err == nil {
			config.Claude.MaxTokens = mt
		}
	}
	if timeout := os.Getenv("ASSERO_CLAUDE_TIMEOUT"); timeout != "" {
		config.Claude.Timeout = timeout
	}
	if temperature := os.Getenv("ASSERO_CLAUDE_TEMPERATURE"); temperature != "" {
		if t, err := strconv.ParseFloat(temperature, 32); err == nil {
			config.Claude.Temperature = float32(t)
		}
	}

	// LLM provider configuration
	if provider := os.Getenv("ASSERO_LLM_DEFAULT_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = provider
	}

	// Patents configuration
	if key := os.Getenv("ASSERO_PATENTS_CONSUMER_KEY"); key != "" {
		config.Patents.ConsumerKey = key
	}
	if secret := os.Getenv("ASSERO_PATENTS_CONSUMER_SECRET"); secret != "" {
		config.Patents.ConsumerSecret = secret
	}
	if baseURL := os.Getenv("ASSERO_PATENTS_BASE_URL"); baseURL != "" {
		config.Patents.BaseURL = baseURL
	}

	// WebSearch configuration
	if endpoint := os.Getenv("ASSERO_WEBSEARCH_ENDPOINT"); endpoint != "" {
		config.WebSearch.Endpoint = endpoint
	}
	if userAgent := os.Getenv("ASSERO_WEBSEARCH_USER_AGENT"); userAgent != "" {
		config.WebSearch.UserAgent = userAgent
	}

	// WebSocket configuration
	if minLevel := os.Getenv("ASSERO_WEBSOCKET_MIN_LEVEL"); minLevel != "" {
		config.WebSocket.MinLevel = minLevel
	}
	if allowedEvents := os.Getenv("ASSERO_WEBSOCKET_ALLOWED_EVENTS"); allowedEvents != "" {
		events := []string{}
		for _, e := range strings.Split(allowedEvents, ",") {
			if trimmed := strings.TrimSpace(e); trimmed != "" {
				events = append(events, trimmed)
			}
		}
		if len(events) > 0 {
			config.WebSocket.AllowedEvents = events
		}
	}

	// Scheduler configuration
	if schedule := os.Getenv("ASSERO_SCHEDULER_MAINTENANCE_SCHEDULE"); schedule != "" {
		config.Scheduler.MaintenanceSchedule = schedule
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	// Command-line flags have highest priority
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// ValidateSchedule validates a cron schedule expression and enforces a
// minimum 5-minute interval for maintenance sweeps.
func ValidateSchedule(schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	parts := strings.Fields(schedule)
	if len(parts) < 5 {
		return fmt.Errorf("invalid cron format: expected 5 fields")
	}

	minuteField := parts[0]
	if minuteField == "*" {
		return fmt.Errorf("schedule must have minimum 5-minute interval (every minute is not allowed)")
	}
	if strings.HasPrefix(minuteField, "*/") {
		interval, err := strconv.Atoi(strings.TrimPrefix(minuteField, "*/"))
		if err == nil && interval < 5 {
			return fmt.Errorf("schedule interval must be at least 5 minutes, got %d", interval)
		}
	}

	return nil
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
