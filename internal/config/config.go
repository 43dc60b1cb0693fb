package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"curestat/internal/analysis"
	"curestat/internal/logger"
	"curestat/internal/ocr"
	"curestat/internal/server"
	"curestat/internal/trends"
)

type Config struct {
	// OCR Configuration
	OCRProvider           string
	GoogleCloudProject    string
	GoogleCloudLocation   string
	DocumentAIProcessorID string

	// Trend Source Configuration
	TrendsAPIURL          string
	TrendsAPIKey          string
	TrendsLimit           int
	TrendsKeyField        string
	TrendsValueField      string
	TrendsTieBreak        string
	TrendsRefreshInterval time.Duration
	HTTPTimeout           time.Duration

	// Analysis Configuration
	VocabularyFile string

	// HTTP Server Configuration
	ServerAddress      string
	ServerPort         int
	CORSAllowOrigins   []string
	RateLimitPerSecond float64
	RateLimitBurst     int64

	// Google Sheets Configuration
	GoogleSheetURL       string
	GoogleSheetWorksheet string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	config := &Config{
		OCRProvider:           getEnv("OCR_PROVIDER", ocr.ProviderVision),
		GoogleCloudProject:    getEnv("GOOGLE_CLOUD_PROJECT", ""),
		GoogleCloudLocation:   getEnv("GOOGLE_CLOUD_LOCATION", "us"),
		DocumentAIProcessorID: getEnv("DOCUMENT_AI_PROCESSOR_ID", ""),
		TrendsAPIURL:          getEnv("TRENDS_API_URL", trends.DefaultSourceURL),
		TrendsAPIKey:          getEnv("TRENDS_API_KEY", ""),
		TrendsKeyField:        getEnv("TRENDS_KEY_FIELD", trends.DefaultKeyField),
		TrendsValueField:      getEnv("TRENDS_VALUE_FIELD", trends.DefaultValueField),
		TrendsTieBreak:        getEnv("TRENDS_TIE_BREAK", trends.TieBreakKey.String()),
		VocabularyFile:        getEnv("VOCABULARY_FILE", ""),
		ServerAddress:         getEnv("SERVER_ADDRESS", "127.0.0.1"),
		CORSAllowOrigins:      splitList(getEnv("CORS_ALLOW_ORIGINS", "*")),
		GoogleSheetURL:        getEnv("GOOGLE_SHEET_URL", ""),
		GoogleSheetWorksheet:  getEnv("GOOGLE_SHEET_WORKSHEET", "Trends"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFormat:             getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:         getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:             getEnv("LOG_OUTPUT", "stdout"),
	}

	var err error
	if config.TrendsLimit, err = getEnvInt("TRENDS_LIMIT", trends.DefaultLimit); err != nil {
		return nil, err
	}
	if config.ServerPort, err = getEnvInt("SERVER_PORT", 5001); err != nil {
		return nil, err
	}
	if config.TrendsRefreshInterval, err = getEnvDuration("TRENDS_REFRESH_INTERVAL", 30*time.Minute); err != nil {
		return nil, err
	}
	if config.HTTPTimeout, err = getEnvDuration("HTTP_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if config.RateLimitPerSecond, err = getEnvFloat("RATE_LIMIT_PER_SECOND", 3); err != nil {
		return nil, err
	}
	burst, err := getEnvInt("RATE_LIMIT_BURST", 60)
	if err != nil {
		return nil, err
	}
	config.RateLimitBurst = int64(burst)

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	switch strings.ToLower(c.OCRProvider) {
	case ocr.ProviderVision:
	case ocr.ProviderDocumentAI:
		if c.GoogleCloudProject == "" {
			return fmt.Errorf("GOOGLE_CLOUD_PROJECT is required for OCR_PROVIDER=%s", ocr.ProviderDocumentAI)
		}
		if c.DocumentAIProcessorID == "" {
			return fmt.Errorf("DOCUMENT_AI_PROCESSOR_ID is required for OCR_PROVIDER=%s", ocr.ProviderDocumentAI)
		}
	default:
		return fmt.Errorf("OCR_PROVIDER must be %q or %q, got %q", ocr.ProviderVision, ocr.ProviderDocumentAI, c.OCRProvider)
	}
	if c.TrendsAPIURL == "" {
		return fmt.Errorf("TRENDS_API_URL is required")
	}
	if c.TrendsLimit < 0 {
		return fmt.Errorf("TRENDS_LIMIT must not be negative")
	}
	if strings.TrimSpace(c.TrendsKeyField) == "" || strings.TrimSpace(c.TrendsValueField) == "" {
		return fmt.Errorf("TRENDS_KEY_FIELD and TRENDS_VALUE_FIELD must not be blank")
	}
	if _, err := trends.ParseTieBreak(c.TrendsTieBreak); err != nil {
		return fmt.Errorf("TRENDS_TIE_BREAK: %w", err)
	}
	if c.TrendsRefreshInterval < 0 {
		return fmt.Errorf("TRENDS_REFRESH_INTERVAL must not be negative")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535")
	}
	if c.RateLimitPerSecond <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_SECOND and RATE_LIMIT_BURST must be positive")
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

// Vocabulary returns the configured analysis vocabulary, or the default one
// when VOCABULARY_FILE is unset.
func (c *Config) Vocabulary() (analysis.Vocabulary, error) {
	if c.VocabularyFile == "" {
		return analysis.DefaultVocabulary(), nil
	}
	return analysis.LoadVocabulary(c.VocabularyFile)
}

// Aggregator returns the trend aggregator for the configured dataset fields.
func (c *Config) Aggregator() (trends.Aggregator, error) {
	tieBreak, err := trends.ParseTieBreak(c.TrendsTieBreak)
	if err != nil {
		return trends.Aggregator{}, err
	}
	return trends.Aggregator{
		KeyField:   c.TrendsKeyField,
		ValueField: c.TrendsValueField,
		TieBreak:   tieBreak,
	}, nil
}

// DocumentAI returns the Document AI processor settings.
func (c *Config) DocumentAI() ocr.DocumentAIConfig {
	return ocr.DocumentAIConfig{
		ProjectID:   c.GoogleCloudProject,
		Location:    c.GoogleCloudLocation,
		ProcessorID: c.DocumentAIProcessorID,
	}
}

// Server returns the HTTP server settings.
func (c *Config) Server() server.Config {
	cfg := server.DefaultConfig()
	cfg.Address = c.ServerAddress
	cfg.Port = c.ServerPort
	cfg.AllowOrigins = c.CORSAllowOrigins
	cfg.RateLimit = server.RateLimitConfig{
		RequestsPerSecond: c.RateLimitPerSecond,
		BurstSize:         c.RateLimitBurst,
	}
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return f, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like 30s or 5m: %w", key, err)
	}
	return d, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
