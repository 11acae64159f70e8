package cli

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	discord_adapter "github.com/secmon-lab/bastion/pkg/adapter/discord"
	"github.com/secmon-lab/bastion/pkg/cli/config"
	discord_controller "github.com/secmon-lab/bastion/pkg/controller/discord"
	server "github.com/secmon-lab/bastion/pkg/controller/http"
	"github.com/secmon-lab/bastion/pkg/domain/interfaces"
	"github.com/secmon-lab/bastion/pkg/domain/model/errs"
	"github.com/secmon-lab/bastion/pkg/service/assist"
	"github.com/secmon-lab/bastion/pkg/service/auditwatch"
	"github.com/secmon-lab/bastion/pkg/service/incident"
	"github.com/secmon-lab/bastion/pkg/service/notify"
	"github.com/secmon-lab/bastion/pkg/service/raid"
	"github.com/secmon-lab/bastion/pkg/service/resilience"
	"github.com/secmon-lab/bastion/pkg/service/scoring"
	"github.com/secmon-lab/bastion/pkg/usecase"
	"github.com/secmon-lab/bastion/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

const externalHTTPTimeout = 30 * time.Second

func cmdServe() *cli.Command {
	var (
		addr          string
		sentryCfg     config.Sentry
		firestoreCfg  config.Firestore
		redisCfg      config.Redis
		discordCfg    config.Discord
		slackCfg      config.Slack
		reputationCfg config.Reputation
		intelCfg      config.Intel
		resilienceCfg config.Resilience
		scoringCfg    config.Scoring
		raidCfg       config.Raid
		geminiCfg     config.GeminiCfg
	)

	flags := joinFlags(
		[]cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Aliases:     []string{"a"},
				Sources:     cli.EnvVars("BASTION_ADDR"),
				Usage:       "Listen address of the interaction hook and metrics server",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
		},
		sentryCfg.Flags(),
		firestoreCfg.Flags(),
		redisCfg.Flags(),
		discordCfg.Flags(),
		slackCfg.Flags(),
		reputationCfg.Flags(),
		intelCfg.Flags(),
		resilienceCfg.Flags(),
		scoringCfg.Flags(),
		raidCfg.Flags(),
		geminiCfg.Flags(),
	)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Connect to the Discord gateway and serve the interaction hook",
		Flags:   flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			logging.Default().Info("starting server",
				"addr", addr,
				"sentry", sentryCfg,
				"firestore", firestoreCfg,
				"redis", redisCfg,
				"discord", discordCfg,
				"slack", slackCfg,
				"reputation", reputationCfg,
				"intel", intelCfg,
				"resilience", resilienceCfg,
				"scoring", scoringCfg,
				"raid", raidCfg,
				"gemini", geminiCfg,
			)

			flushSentry, err := sentryCfg.Configure()
			if err != nil {
				return err
			}
			defer flushSentry()

			httpClient := &http.Client{Timeout: externalHTTPTimeout}

			store, closeStore, err := redisCfg.Configure(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			repo, err := firestoreCfg.Configure(ctx)
			if err != nil {
				return err
			}

			session, err := discordCfg.Configure(discord_controller.Intents)
			if err != nil {
				return err
			}
			platform := discord_adapter.NewPlatform(session)

			var notifiers []interfaces.AlertNotifier
			if ch := discordCfg.AlertChannelID(); ch != "" {
				notifiers = append(notifiers, discord_adapter.NewNotifier(session, ch))
			}
			if slackSvc := slackCfg.Configure(); slackSvc != nil {
				notifiers = append(notifiers, slackSvc)
			}
			sinks := notify.New(notifiers...)
			if sinks.Len() == 0 {
				logging.From(ctx).Warn("no alert channel configured, alerts are only logged and stored")
			}

			patterns, err := scoringCfg.Patterns()
			if err != nil {
				return err
			}
			engine := scoring.New(append(
				reputationCfg.EngineOptions(&resilienceCfg, httpClient),
				scoring.WithPatterns(patterns),
			)...)

			dispatcher := incident.New(platform,
				incident.WithRepository(repo),
				incident.WithCounterStore(store),
				incident.WithNotifiers(sinks.Notifiers()...),
				incident.WithTimeoutDuration(discordCfg.TimeoutDuration()),
				incident.WithBanDeleteDays(discordCfg.BanDeleteDays()),
				incident.WithRetention(discordCfg.AlertRetention()),
			)

			ucOptions := []usecase.Option{
				usecase.WithPlatform(platform),
				usecase.WithRepository(repo),
				usecase.WithScoringEngine(engine),
				usecase.WithDispatcher(dispatcher),
				usecase.WithRaidDetector(raid.New(store, platform, sinks, raidCfg.Config())),
				usecase.WithAuditWatcher(auditwatch.New(store, dispatcher, raidCfg.AuditConfig())),
				usecase.WithAutoDelete(scoringCfg.AutoDelete()),
				usecase.WithMinAccountAgeDays(raidCfg.MinAccountAgeDays()),
			}
			if intelSvc := intelCfg.Configure(&resilienceCfg, httpClient); intelSvc != nil {
				ucOptions = append(ucOptions, usecase.WithIntel(intelSvc))
			}

			llmClient, err := geminiCfg.Configure(ctx)
			if err != nil {
				return err
			}
			if llmClient != nil {
				assistant := assist.New(llmClient,
					assist.WithBudget(resilienceCfg.AssistBudget(store)),
					assist.WithPolicy(resilience.NewPolicy("assist", assist.DefaultPolicyConfig())),
				)
				ucOptions = append(ucOptions, usecase.WithAssistant(assistant))
			}

			uc := usecase.New(ucOptions...)

			discordCtrl := discord_controller.New(uc, session)
			discordCtrl.Register(ctx, session)
			if err := session.Open(); err != nil {
				return goerr.Wrap(err, "failed to open discord gateway", goerr.T(errs.TagDiscordError))
			}
			defer func() {
				if err := session.Close(); err != nil {
					logging.From(ctx).Warn("failed to close discord gateway", logging.ErrAttr(err))
				}
			}()

			httpServer := http.Server{
				Addr:              addr,
				Handler:           server.New(uc, server.WithSlackVerifier(slackCfg.Verifier())),
				ReadTimeout:       30 * time.Second,
				ReadHeaderTimeout: 10 * time.Second,
				BaseContext: func(l net.Listener) context.Context {
					return ctx
				},
			}

			errCh := make(chan error, 1)
			go func() {
				defer close(errCh)
				if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- err
				}
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				if err != nil {
					return goerr.Wrap(err, "http server stopped")
				}
				return nil
			case <-sigCh:
				logging.From(ctx).Info("shutting down")
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return httpServer.Shutdown(ctx)
			}
		},
	}
}
