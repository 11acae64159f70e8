package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/redis/go-redis/v9"
	"github.com/secmon-lab/bastion/pkg/adapter/counter"
	"github.com/secmon-lab/bastion/pkg/domain/interfaces"
	"github.com/secmon-lab/bastion/pkg/domain/model/errs"
	"github.com/secmon-lab/bastion/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// Redis configures the shared counter store. Without an address the store
// is process-local, which is only correct for a single instance.
type Redis struct {
	addr     string
	password string
	db       int
}

func (x *Redis) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "redis-addr",
			Usage:       "Redis address (host:port) for shared counters",
			Category:    "Redis",
			Sources:     cli.EnvVars("BASTION_REDIS_ADDR"),
			Destination: &x.addr,
		},
		&cli.StringFlag{
			Name:        "redis-password",
			Usage:       "Redis password",
			Category:    "Redis",
			Sources:     cli.EnvVars("BASTION_REDIS_PASSWORD"),
			Destination: &x.password,
		},
		&cli.IntFlag{
			Name:        "redis-db",
			Usage:       "Redis database number",
			Category:    "Redis",
			Sources:     cli.EnvVars("BASTION_REDIS_DB"),
			Destination: &x.db,
		},
	}
}

func (x Redis) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("addr", x.addr),
		slog.Int("password.len", len(x.password)),
		slog.Int("db", x.db),
	)
}

func (x *Redis) Configure(ctx context.Context) (interfaces.CounterStore, func(), error) {
	if x.addr == "" {
		logging.From(ctx).Warn("Redis is not configured, counters are process-local")
		return counter.NewMemory(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     x.addr,
		Password: x.password,
		DB:       x.db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, func() {}, goerr.Wrap(err, "failed to connect to redis",
			goerr.V("addr", x.addr),
			goerr.T(errs.TagDatabase))
	}

	closer := func() {
		if err := client.Close(); err != nil {
			logging.Default().Warn("failed to close redis client", logging.ErrAttr(err))
		}
	}
	return counter.NewRedis(client), closer, nil
}
