package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"captionkit/ai"
	"captionkit/config"
	"captionkit/gemini"
	"captionkit/logger"
	"captionkit/quota"
	"captionkit/server"
)

// runServe runs the caption service until interrupted and returns the exit code.
func runServe(cfg *config.Config, log *logger.Logger) int {
	if err := cfg.CheckServer(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		fmt.Fprintln(os.Stderr, config.Help())
		return 1
	}

	writer, err := buildWriter(cfg, log)
	if err != nil {
		log.Error("failed to set up caption writer", "error", err)
		return 1
	}

	counter, closeCounter, err := buildCounter(cfg, log)
	if err != nil {
		log.Error("failed to set up quota store", "error", err)
		return 1
	}
	defer closeCounter()

	if err := server.New(cfg, writer, counter, log).Run(context.Background()); err != nil {
		log.Error("caption service stopped with an error", "error", err)
		return 1
	}
	return 0
}

// buildWriter returns the configured provider first, followed by every other
// provider that has credentials.
func buildWriter(cfg *config.Config, log *logger.Logger) (ai.Writer, error) {
	order := []string{cfg.Provider}
	for _, p := range []string{config.ProviderAzure, config.ProviderAnthropic, config.ProviderGemini} {
		if p != cfg.Provider {
			order = append(order, p)
		}
	}

	var writers []ai.Writer
	for i, p := range order {
		w, err := newWriter(cfg, p, log)
		if err != nil {
			if i == 0 {
				return nil, err
			}
			continue
		}
		writers = append(writers, w)
	}

	if len(writers) == 1 {
		return writers[0], nil
	}
	chain := ai.NewFallback(log, writers...)
	log.Info("caption writers configured with fallback", "chain", chain.Name())
	return chain, nil
}

func newWriter(cfg *config.Config, provider string, log *logger.Logger) (ai.Writer, error) {
	switch provider {
	case config.ProviderAzure:
		return ai.NewAzureWriter(ai.AzureConfig{
			Endpoint:   cfg.AzureEndpoint,
			APIKey:     cfg.AzureAPIKey,
			Model:      cfg.AzureModel,
			APIVersion: cfg.AzureAPIVersion,
		})
	case config.ProviderAnthropic:
		return ai.NewClaudeWriter(cfg.AnthropicAPIKey, cfg.AnthropicModel)
	case config.ProviderGemini:
		return gemini.NewClient(cfg.GeminiAPIKey,
			gemini.WithModel(cfg.GeminiModel),
			gemini.WithLogger(log),
		)
	}
	return nil, fmt.Errorf("unknown LLM_PROVIDER %q", provider)
}

// buildCounter uses Redis when an address is configured so replicas share usage.
func buildCounter(cfg *config.Config, log *logger.Logger) (quota.Counter, func(), error) {
	if cfg.RedisAddress == "" {
		log.Warn("REDIS_ADDRESS not set, quota is kept in memory and resets on restart")
		return quota.NewMemory(cfg.DailyLimit), func() {}, nil
	}

	client, err := quota.NewRedisClient(quota.RedisConfig{
		Address:  cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, nil, err
	}
	return quota.NewRedis(client, cfg.DailyLimit), func() { _ = client.Close() }, nil
}

// runToken prints a bearer token for args[0], valid for args[1] (default 30 days).
func runToken(cfg *config.Config, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: captionkit token <user> [ttl]")
		return 2
	}
	if cfg.JWTSecret == "" {
		fmt.Fprintln(os.Stderr, "Error: JWT_SECRET not set")
		return 1
	}

	ttl := 30 * 24 * time.Hour
	if len(args) > 1 {
		d, err := time.ParseDuration(args[1])
		if err != nil || d <= 0 {
			fmt.Fprintf(os.Stderr, "Error: invalid ttl %q\n", args[1])
			return 2
		}
		ttl = d
	}

	token, err := server.SignToken(cfg.JWTSecret, args[0], ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	fmt.Println(token)
	return 0
}
