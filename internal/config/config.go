package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"medparse/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Log        LogConfig
	Deployment DeploymentConfig
	Storage    StorageConfig
	S3         S3Config
	Vision     VisionConfig
	Ollama     OllamaConfig
	OpenAI     OpenAIConfig
	Docling    DoclingConfig
	Extractor  ExtractorConfig
	Pipeline   PipelineConfig
	Rasterizer RasterizerConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	CORSOrigins  []string      `mapstructure:"cors_origins"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DeploymentConfig selects the deployment environment and local upload paths.
type DeploymentConfig struct {
	Environment domain.DeploymentEnv `mapstructure:"environment"`
	UploadDir   string               `mapstructure:"upload_dir"`
	StaticPath  string               `mapstructure:"static_path"`

	// SourceHosts limits the hosts remote documents may be fetched
	// from when the reference comes from an API caller.
	SourceHosts []string `mapstructure:"source_hosts"`
}

// IsLocal reports whether the process runs in the local deployment.
func (d *DeploymentConfig) IsLocal() bool {
	return d.Environment == domain.DeploymentLocal
}

// StorageConfig selects where rasterized page images are written.
type StorageConfig struct {
	Provider      string `mapstructure:"provider"`
	Bucket        string `mapstructure:"bucket"`
	KeyPrefix     string `mapstructure:"key_prefix"`
	PresignExpiry int64  `mapstructure:"presign_expiry"`
}

// S3Config holds AWS S3 settings.
type S3Config struct {
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

// VisionConfig holds the default vision parser used when a request names none.
type VisionConfig struct {
	Parser string `mapstructure:"parser"`
	Model  string `mapstructure:"model"`
	APIKey string `mapstructure:"api_key"`
	APIURL string `mapstructure:"api_url"`
}

// OllamaConfig holds settings for the local Ollama server.
type OllamaConfig struct {
	URL string `mapstructure:"url"`
}

// OpenAIConfig holds settings for OpenAI-compatible chat completion backends.
type OpenAIConfig struct {
	BaseURL           string  `mapstructure:"base_url"`
	APIKey            string  `mapstructure:"api_key"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
	TimeoutSecs       int     `mapstructure:"timeout_secs"`
}

// DoclingConfig holds settings for the docling-serve document converter.
type DoclingConfig struct {
	URL         string `mapstructure:"url"`
	TimeoutSecs int    `mapstructure:"timeout_secs"`
}

// ExtractorConfig holds retry, timeout and concurrency settings for inference.
type ExtractorConfig struct {
	MaxAttempts       int           `mapstructure:"max_attempts"`
	Backoff           time.Duration `mapstructure:"backoff"`
	InferenceTimeout  time.Duration `mapstructure:"inference_timeout"`
	HealthTimeout     time.Duration `mapstructure:"health_timeout"`
	LocalConcurrency  int           `mapstructure:"local_concurrency"`
	RemoteConcurrency int           `mapstructure:"remote_concurrency"`
}

// PipelineConfig holds per-stage fan-out limits.
type PipelineConfig struct {
	TextConcurrency  int `mapstructure:"text_concurrency"`
	ImageConcurrency int `mapstructure:"image_concurrency"`
}

// RasterizerConfig holds settings for PDF page rendering.
type RasterizerConfig struct {
	PdftoppmPath string `mapstructure:"pdftoppm_path"`
	DPI          int    `mapstructure:"dpi"`
	TempDir      string `mapstructure:"temp_dir"`
}

// Load reads configuration from environment variables with the MEDPARSE_ prefix.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MEDPARSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30m")
	v.SetDefault("server.cors_origins", "http://localhost:3000,http://127.0.0.1:3000")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Deployment defaults
	v.SetDefault("deployment.environment", string(domain.DeploymentLocal))
	v.SetDefault("deployment.upload_dir", "./public/uploads")
	v.SetDefault("deployment.static_path", "/api/static/uploads/")

	// Storage defaults
	v.SetDefault("storage.provider", "local")
	v.SetDefault("storage.bucket", "medparse-uploads")
	v.SetDefault("storage.key_prefix", "uploads")
	v.SetDefault("storage.presign_expiry", 3600)

	// S3 defaults
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.endpoint", "")

	// Vision defaults
	v.SetDefault("vision.parser", "OpenAI")
	v.SetDefault("vision.model", "gpt-4o")
	v.SetDefault("vision.api_key", "")
	v.SetDefault("vision.api_url", "")

	// Backend defaults
	v.SetDefault("ollama.url", "http://ollama:11434")
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.requests_per_second", 2.0)
	v.SetDefault("openai.burst", 4)
	v.SetDefault("openai.timeout_secs", 300)
	v.SetDefault("docling.url", "http://docling-serve:5001")
	v.SetDefault("docling.timeout_secs", 600)

	// Extractor defaults
	v.SetDefault("extractor.max_attempts", 3)
	v.SetDefault("extractor.backoff", "2s")
	v.SetDefault("extractor.inference_timeout", "5m")
	v.SetDefault("extractor.health_timeout", "10s")
	v.SetDefault("extractor.local_concurrency", 1)
	v.SetDefault("extractor.remote_concurrency", 4)

	// Pipeline defaults
	v.SetDefault("pipeline.text_concurrency", 2)
	v.SetDefault("pipeline.image_concurrency", 4)

	// Rasterizer defaults
	v.SetDefault("rasterizer.pdftoppm_path", "pdftoppm")
	v.SetDefault("rasterizer.dpi", 300)
	v.SetDefault("rasterizer.temp_dir", os.TempDir())

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":                  "MEDPARSE_SERVER_PORT",
		"server.read_timeout":          "MEDPARSE_SERVER_READ_TIMEOUT",
		"server.write_timeout":         "MEDPARSE_SERVER_WRITE_TIMEOUT",
		"server.cors_origins":          "MEDPARSE_SERVER_CORS_ORIGINS",
		"log.level":                    "MEDPARSE_LOG_LEVEL",
		"log.format":                   "MEDPARSE_LOG_FORMAT",
		"deployment.environment":       "MEDPARSE_DEPLOYMENT_ENVIRONMENT",
		"deployment.upload_dir":        "MEDPARSE_DEPLOYMENT_UPLOAD_DIR",
		"deployment.static_path":       "MEDPARSE_DEPLOYMENT_STATIC_PATH",
		"deployment.source_hosts":      "MEDPARSE_DEPLOYMENT_SOURCE_HOSTS",
		"storage.provider":             "MEDPARSE_STORAGE_PROVIDER",
		"storage.bucket":               "MEDPARSE_STORAGE_BUCKET",
		"storage.key_prefix":           "MEDPARSE_STORAGE_KEY_PREFIX",
		"storage.presign_expiry":       "MEDPARSE_STORAGE_PRESIGN_EXPIRY",
		"s3.region":                    "MEDPARSE_S3_REGION",
		"s3.endpoint":                  "MEDPARSE_S3_ENDPOINT",
		"s3.access_key":                "MEDPARSE_S3_ACCESS_KEY",
		"s3.secret_key":                "MEDPARSE_S3_SECRET_KEY",
		"vision.parser":                "MEDPARSE_VISION_PARSER",
		"vision.model":                 "MEDPARSE_VISION_MODEL",
		"vision.api_key":               "MEDPARSE_VISION_API_KEY",
		"vision.api_url":               "MEDPARSE_VISION_API_URL",
		"ollama.url":                   "MEDPARSE_OLLAMA_URL",
		"openai.base_url":              "MEDPARSE_OPENAI_BASE_URL",
		"openai.api_key":               "MEDPARSE_OPENAI_API_KEY",
		"openai.requests_per_second":   "MEDPARSE_OPENAI_REQUESTS_PER_SECOND",
		"openai.burst":                 "MEDPARSE_OPENAI_BURST",
		"openai.timeout_secs":          "MEDPARSE_OPENAI_TIMEOUT_SECS",
		"docling.url":                  "MEDPARSE_DOCLING_URL",
		"docling.timeout_secs":         "MEDPARSE_DOCLING_TIMEOUT_SECS",
		"extractor.max_attempts":       "MEDPARSE_EXTRACTOR_MAX_ATTEMPTS",
		"extractor.backoff":            "MEDPARSE_EXTRACTOR_BACKOFF",
		"extractor.inference_timeout":  "MEDPARSE_EXTRACTOR_INFERENCE_TIMEOUT",
		"extractor.health_timeout":     "MEDPARSE_EXTRACTOR_HEALTH_TIMEOUT",
		"extractor.local_concurrency":  "MEDPARSE_EXTRACTOR_LOCAL_CONCURRENCY",
		"extractor.remote_concurrency": "MEDPARSE_EXTRACTOR_REMOTE_CONCURRENCY",
		"pipeline.text_concurrency":    "MEDPARSE_PIPELINE_TEXT_CONCURRENCY",
		"pipeline.image_concurrency":   "MEDPARSE_PIPELINE_IMAGE_CONCURRENCY",
		"rasterizer.pdftoppm_path":     "MEDPARSE_RASTERIZER_PDFTOPPM_PATH",
		"rasterizer.dpi":               "MEDPARSE_RASTERIZER_DPI",
		"rasterizer.temp_dir":          "MEDPARSE_RASTERIZER_TEMP_DIR",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}

	// Container platforms set PORT. Use it if MEDPARSE_SERVER_PORT is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("MEDPARSE_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:         serverPort,
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
		CORSOrigins:  splitList(v.GetString("server.cors_origins")),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}
	cfg.Deployment = DeploymentConfig{
		Environment: domain.DeploymentEnv(strings.ToLower(v.GetString("deployment.environment"))),
		UploadDir:   v.GetString("deployment.upload_dir"),
		StaticPath:  v.GetString("deployment.static_path"),
		SourceHosts: splitList(v.GetString("deployment.source_hosts")),
	}
	cfg.Storage = StorageConfig{
		Provider:      v.GetString("storage.provider"),
		Bucket:        v.GetString("storage.bucket"),
		KeyPrefix:     v.GetString("storage.key_prefix"),
		PresignExpiry: v.GetInt64("storage.presign_expiry"),
	}
	cfg.S3 = S3Config{
		Region:    v.GetString("s3.region"),
		Endpoint:  v.GetString("s3.endpoint"),
		AccessKey: v.GetString("s3.access_key"),
		SecretKey: v.GetString("s3.secret_key"),
	}
	cfg.Vision = VisionConfig{
		Parser: v.GetString("vision.parser"),
		Model:  v.GetString("vision.model"),
		APIKey: v.GetString("vision.api_key"),
		APIURL: v.GetString("vision.api_url"),
	}
	cfg.Ollama = OllamaConfig{
		URL: v.GetString("ollama.url"),
	}
	cfg.OpenAI = OpenAIConfig{
		BaseURL:           v.GetString("openai.base_url"),
		APIKey:            v.GetString("openai.api_key"),
		RequestsPerSecond: v.GetFloat64("openai.requests_per_second"),
		Burst:             v.GetInt("openai.burst"),
		TimeoutSecs:       v.GetInt("openai.timeout_secs"),
	}
	cfg.Docling = DoclingConfig{
		URL:         v.GetString("docling.url"),
		TimeoutSecs: v.GetInt("docling.timeout_secs"),
	}
	cfg.Extractor = ExtractorConfig{
		MaxAttempts:       v.GetInt("extractor.max_attempts"),
		Backoff:           v.GetDuration("extractor.backoff"),
		InferenceTimeout:  v.GetDuration("extractor.inference_timeout"),
		HealthTimeout:     v.GetDuration("extractor.health_timeout"),
		LocalConcurrency:  v.GetInt("extractor.local_concurrency"),
		RemoteConcurrency: v.GetInt("extractor.remote_concurrency"),
	}
	cfg.Pipeline = PipelineConfig{
		TextConcurrency:  v.GetInt("pipeline.text_concurrency"),
		ImageConcurrency: v.GetInt("pipeline.image_concurrency"),
	}
	cfg.Rasterizer = RasterizerConfig{
		PdftoppmPath: v.GetString("rasterizer.pdftoppm_path"),
		DPI:          v.GetInt("rasterizer.dpi"),
		TempDir:      v.GetString("rasterizer.temp_dir"),
	}

	// The default vision parser follows the deployment unless set explicitly.
	if cfg.Deployment.IsLocal() && os.Getenv("MEDPARSE_VISION_PARSER") == "" {
		cfg.Vision.Parser = "Ollama"
		if os.Getenv("MEDPARSE_VISION_MODEL") == "" {
			cfg.Vision.Model = "llama3.2-vision"
		}
	}
	if cfg.Vision.APIKey == "" {
		cfg.Vision.APIKey = cfg.OpenAI.APIKey
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
