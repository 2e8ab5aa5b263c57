package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"pageforge/internal/config"
	"pageforge/internal/images"
	"pageforge/internal/llm"
	"pageforge/internal/logging"
	"pageforge/internal/orchestrator"
	"pageforge/internal/publish"
	"pageforge/internal/server"
	"pageforge/internal/session"
	"pageforge/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	defer logger.Sync()

	st, err := store.Load()
	if err != nil {
		logger.Fatal("content store failed to load", zap.Error(err))
	}
	logger.Info("content store loaded", zap.Any("counts", st.Counts()))

	registry := buildRegistry(cfg, logger)
	defer registry.Close()

	resolver := buildResolver(cfg, logger)
	sessions := session.NewFor(cfg.Session.RedisAddr, logger)
	orch := orchestrator.New(registry, st, resolver, sessions, cfg.Model.DefaultPreset, logger)
	orch.SetLayoutCheck(cfg.Model.LayoutCheck)

	archive := publish.NewArchiveFromEnv(cfg.Publish.PGDSN, logger)
	defer archive.Close()

	srv := server.New(cfg.Port, orch, buildPersister(cfg, logger), archive, sessions, st, logger)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
}

func buildRegistry(cfg *config.Config, logger *zap.Logger) *llm.Registry {
	presets := llm.NewPresetTable(cfg.Model.DefaultPreset,
		llm.DefaultPresets(cfg.Model.Provider, cfg.Model.FastModel, cfg.Model.StrongModel)...)
	registry := llm.NewRegistry(presets)

	apiKey := cfg.Model.APIKey
	rps := cfg.Model.RPS
	if err := registry.RegisterProvider("gemini", func(ctx context.Context, model string) (llm.Client, error) {
		return llm.NewGeminiClient(ctx, llm.GeminiOptions{APIKey: apiKey, Model: model, RPS: rps})
	}); err != nil {
		logger.Fatal("provider registration failed", zap.Error(err))
	}
	return registry
}

func buildResolver(cfg *config.Config, logger *zap.Logger) *images.Resolver {
	var assets images.Uploader
	if cfg.Assets.Enabled {
		store, err := images.NewAssetStore(images.AssetConfig{
			Endpoint:      cfg.Assets.Endpoint,
			Region:        cfg.Assets.Region,
			AccessKey:     cfg.Assets.AccessKey,
			SecretKey:     cfg.Assets.SecretKey,
			Bucket:        cfg.Assets.Bucket,
			UseSSL:        cfg.Assets.UseSSL,
			PublicBaseURL: cfg.Assets.PublicBaseURL,
		})
		if err != nil {
			logger.Warn("image asset store unavailable, passing source URLs through", zap.Error(err))
		} else {
			assets = store
		}
	}
	return images.NewResolver(assets, nil, logger)
}

func buildPersister(cfg *config.Config, logger *zap.Logger) server.Persister {
	if cfg.Publish.BaseURL == "" {
		logger.Info("publishing disabled, PUBLISH_BASE_URL is not set")
		return nil
	}

	var tokens publish.TokenSource
	switch {
	case cfg.Publish.TokenURL != "" && cfg.Publish.ClientID != "":
		tokens = publish.NewCachedTokenSource(cfg.Publish.TokenURL,
			cfg.Publish.ClientID, cfg.Publish.ClientSecret, publish.DefaultFreshness, nil)
	case cfg.Publish.StaticToken != "":
		tokens = publish.NewStaticTokenSource(cfg.Publish.StaticToken)
	default:
		logger.Warn("publishing disabled, no publish credentials configured")
		return nil
	}

	return publish.NewClient(cfg.Publish.BaseURL, cfg.Publish.SiteSection, tokens, &http.Client{Timeout: 30 * time.Second}, logger)
}
