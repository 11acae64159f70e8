package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/bastion/pkg/adapter/counter"
	"github.com/secmon-lab/bastion/pkg/cli/config"
	"github.com/secmon-lab/bastion/pkg/domain/model/errs"
	"github.com/secmon-lab/bastion/pkg/repository"
	"github.com/urfave/cli/v3"
)

// parse runs a throwaway command so that flag defaults and args land in the
// config structs.
func parse(t *testing.T, flags []cli.Flag, args ...string) {
	t.Helper()
	cmd := &cli.Command{
		Name:   "test",
		Flags:  flags,
		Action: func(ctx context.Context, c *cli.Command) error { return nil },
	}
	gt.NoError(t, cmd.Run(t.Context(), append([]string{"test"}, args...)))
}

func TestLoggerConfigure(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		var cfg config.Logger
		parse(t, cfg.Flags(), "--log-level", "debug", "--log-format", "json", "--log-output", filepath.Join(t.TempDir(), "out.log"))
		closer, err := cfg.Configure()
		gt.NoError(t, err)
		closer()
	})

	t.Run("invalid level", func(t *testing.T) {
		var cfg config.Logger
		parse(t, cfg.Flags(), "--log-level", "verbose")
		closer, err := cfg.Configure()
		gt.Error(t, err)
		closer()
	})
}

func TestSentryConfigure(t *testing.T) {
	t.Run("disabled without dsn", func(t *testing.T) {
		var cfg config.Sentry
		parse(t, cfg.Flags())
		flush, err := cfg.Configure()
		gt.NoError(t, err)
		flush()
	})

	t.Run("sample rate out of range", func(t *testing.T) {
		var cfg config.Sentry
		parse(t, cfg.Flags(), "--sentry-dsn", "https://public@sentry.example.com/1", "--sentry-sample-rate", "1.5")
		_, err := cfg.Configure()
		gt.True(t, goerr.HasTag(err, errs.TagValidation))
	})

	t.Run("invalid dsn", func(t *testing.T) {
		var cfg config.Sentry
		parse(t, cfg.Flags(), "--sentry-dsn", "not a dsn")
		_, err := cfg.Configure()
		gt.Error(t, err)
	})
}

func TestRedisConfigure(t *testing.T) {
	t.Run("memory store without address", func(t *testing.T) {
		var cfg config.Redis
		parse(t, cfg.Flags())
		store, closer, err := cfg.Configure(t.Context())
		gt.NoError(t, err)
		defer closer()
		_, ok := store.(*counter.Memory)
		gt.True(t, ok)
	})

	t.Run("redis store", func(t *testing.T) {
		mr := miniredis.RunT(t)
		var cfg config.Redis
		parse(t, cfg.Flags(), "--redis-addr", mr.Addr())
		store, closer, err := cfg.Configure(t.Context())
		gt.NoError(t, err)
		defer closer()
		_, ok := store.(*counter.Redis)
		gt.True(t, ok)
	})

	t.Run("unreachable redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()

		var cfg config.Redis
		parse(t, cfg.Flags(), "--redis-addr", addr)
		_, closer, err := cfg.Configure(t.Context())
		gt.Error(t, err)
		closer()
	})
}

func TestFirestoreFallsBackToMemory(t *testing.T) {
	var cfg config.Firestore
	parse(t, cfg.Flags())
	gt.False(t, cfg.IsConfigured())

	repo, err := cfg.Configure(t.Context())
	gt.NoError(t, err)
	_, ok := repo.(*repository.Memory)
	gt.True(t, ok)
}

func TestResiliencePolicy(t *testing.T) {
	var cfg config.Resilience
	parse(t, cfg.Flags(), "--retry-max-attempts", "4", "--rate-per-minute", "0", "--call-timeout", "2s")

	policy := cfg.Policy("safebrowsing")
	gt.Equal(t, policy.Name, "safebrowsing")
	gt.Equal(t, policy.Retry.MaxAttempts, 4)
	gt.Equal(t, policy.Timeout, 2*time.Second)
	gt.True(t, policy.Limiter == nil)
	gt.NotNil(t, policy.Breaker)

	t.Run("rate limit enabled by default", func(t *testing.T) {
		var cfg config.Resilience
		parse(t, cfg.Flags())
		gt.NotNil(t, cfg.Policy("otx").Limiter)
	})
}

func TestScoringPatterns(t *testing.T) {
	var cfg config.Scoring
	parse(t, cfg.Flags())
	patterns, err := cfg.Patterns()
	gt.NoError(t, err)
	gt.True(t, len(patterns.Keywords) > 0)

	path := filepath.Join(t.TempDir(), "patterns.yaml")
	gt.NoError(t, os.WriteFile(path, []byte("keywords:\n  - free nitro\nshorteners:\n  - bit.ly\n"), 0600))

	var custom config.Scoring
	parse(t, custom.Flags(), "--scoring-patterns", path, "--auto-delete")
	patterns, err = custom.Patterns()
	gt.NoError(t, err)
	gt.Equal(t, patterns.Keywords, []string{"free nitro"})
	gt.True(t, custom.AutoDelete())
}

func TestOptionalServices(t *testing.T) {
	var res config.Resilience
	parse(t, res.Flags())

	var intelCfg config.Intel
	parse(t, intelCfg.Flags())
	gt.True(t, intelCfg.Configure(&res, nil) == nil)

	var repCfg config.Reputation
	parse(t, repCfg.Flags())
	gt.A(t, repCfg.EngineOptions(&res, nil)).Length(0)

	var slackCfg config.Slack
	parse(t, slackCfg.Flags())
	gt.True(t, slackCfg.Configure() == nil)
	gt.True(t, slackCfg.Verifier() == nil)

	var gemini config.GeminiCfg
	parse(t, gemini.Flags())
	client, err := gemini.Configure(t.Context())
	gt.NoError(t, err)
	gt.True(t, client == nil)
}

func TestDiscordConfigure(t *testing.T) {
	var cfg config.Discord
	parse(t, cfg.Flags())
	_, err := cfg.Configure(0)
	gt.Error(t, err)

	var withToken config.Discord
	parse(t, withToken.Flags(), "--discord-token", "token", "--discord-ban-delete-days", "3")
	session, err := withToken.Configure(0)
	gt.NoError(t, err)
	gt.Equal(t, session.Token, "Bot token")
	gt.Equal(t, withToken.BanDeleteDays(), 3)
	gt.Equal(t, withToken.TimeoutDuration(), time.Hour)
}
