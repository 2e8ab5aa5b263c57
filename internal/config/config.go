package config

import (
	"flag"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port      string
	Env       string
	LogLevel  string
	LogFormat string

	Model   ModelConfig
	Assets  AssetConfig
	Session SessionConfig
	Publish PublishConfig
}

type ModelConfig struct {
	Provider      string
	APIKey        string
	DefaultPreset string
	FastModel     string
	StrongModel   string
	RPS           float64
	// LayoutCheck adds a validation-role pass over each planned layout.
	LayoutCheck bool
}

type AssetConfig struct {
	Enabled       bool
	Endpoint      string
	Region        string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	PublicBaseURL string
}

type SessionConfig struct {
	RedisAddr string
}

type PublishConfig struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	// StaticToken bypasses the token exchange, for environments that
	// issue long-lived service tokens out of band.
	StaticToken string
	SiteSection string
	PGDSN       string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	port := flag.String("port", ":8080", "server port")
	flag.Parse()

	if envPort := os.Getenv("PORT"); envPort != "" {
		if strings.HasPrefix(envPort, ":") {
			*port = envPort
		} else {
			*port = ":" + envPort
		}
	}

	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = "local"
	}

	return &Config{
		Port:      *port,
		Env:       env,
		LogLevel:  firstNonEmpty(strings.TrimSpace(os.Getenv("LOG_LEVEL")), "info"),
		LogFormat: firstNonEmpty(strings.TrimSpace(os.Getenv("LOG_FORMAT")), "json"),
		Model:     loadModelConfig(),
		Assets:    loadAssetConfig(env),
		Session:   SessionConfig{RedisAddr: strings.TrimSpace(os.Getenv("SESSION_REDIS_ADDR"))},
		Publish:   loadPublishConfig(),
	}, nil
}

func loadModelConfig() ModelConfig {
	rps := 1.5
	if raw := strings.TrimSpace(os.Getenv("MODEL_RPS")); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil && v > 0 {
			rps = v
		}
	}
	return ModelConfig{
		Provider:      firstNonEmpty(strings.TrimSpace(os.Getenv("MODEL_PROVIDER")), "gemini"),
		APIKey:        firstNonEmpty(strings.TrimSpace(os.Getenv("GEMINI_API_KEY")), strings.TrimSpace(os.Getenv("GOOGLE_API_KEY"))),
		DefaultPreset: firstNonEmpty(strings.TrimSpace(os.Getenv("MODEL_PRESET")), "standard"),
		FastModel:     firstNonEmpty(strings.TrimSpace(os.Getenv("MODEL_FAST")), "gemini-2.5-flash-lite"),
		StrongModel:   firstNonEmpty(strings.TrimSpace(os.Getenv("MODEL_STRONG")), "gemini-2.5-flash"),
		RPS:           rps,
		LayoutCheck:   parseBoolEnv("MODEL_LAYOUT_CHECK"),
	}
}

func parseBoolEnv(key string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	return err == nil && v
}

func loadAssetConfig(env string) AssetConfig {
	endpoint := resolveAssetEndpoint(env)
	return AssetConfig{
		Enabled:       endpoint != "",
		Endpoint:      endpoint,
		Region:        firstNonEmpty(strings.TrimSpace(os.Getenv("ASSET_S3_REGION")), "us-east-1"),
		AccessKey:     firstNonEmpty(strings.TrimSpace(os.Getenv("ASSET_S3_ACCESS_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_USER"))),
		SecretKey:     firstNonEmpty(strings.TrimSpace(os.Getenv("ASSET_S3_SECRET_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_PASSWORD"))),
		Bucket:        firstNonEmpty(strings.TrimSpace(os.Getenv("ASSET_S3_BUCKET")), "pageforge-images"),
		UseSSL:        resolveAssetUseSSL(env),
		PublicBaseURL: strings.TrimSpace(os.Getenv("ASSET_PUBLIC_BASE_URL")),
	}
}

func resolveAssetEndpoint(env string) string {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return strings.TrimSpace(os.Getenv("ASSET_MINIO_ENDPOINT"))
	}
	return strings.TrimSpace(os.Getenv("ASSET_S3_ENDPOINT"))
}

func resolveAssetUseSSL(env string) bool {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return false
	}
	raw := strings.TrimSpace(os.Getenv("ASSET_S3_USE_SSL"))
	if raw == "" {
		return true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return true
	}
	return v
}

func loadPublishConfig() PublishConfig {
	return PublishConfig{
		BaseURL:      strings.TrimRight(strings.TrimSpace(os.Getenv("PUBLISH_BASE_URL")), "/"),
		TokenURL:     strings.TrimSpace(os.Getenv("PUBLISH_TOKEN_URL")),
		ClientID:     strings.TrimSpace(os.Getenv("PUBLISH_CLIENT_ID")),
		ClientSecret: strings.TrimSpace(os.Getenv("PUBLISH_CLIENT_SECRET")),
		StaticToken:  strings.TrimSpace(os.Getenv("PUBLISH_STATIC_TOKEN")),
		SiteSection:  firstNonEmpty(strings.TrimSpace(os.Getenv("PUBLISH_SITE_SECTION")), "generated"),
		PGDSN:        strings.TrimSpace(os.Getenv("PUBLISH_PG_DSN")),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
