package config

import (
	"log/slog"
	"time"

	"github.com/secmon-lab/bastion/pkg/service/auditwatch"
	"github.com/secmon-lab/bastion/pkg/service/raid"
	"github.com/urfave/cli/v3"
)

// Raid covers the join-based raid detector, the new-account check and the
// audit-log watcher.
type Raid struct {
	joinThreshold     int
	window            time.Duration
	recentJoins       time.Duration
	cooldown          time.Duration
	minAccountAgeDays int

	auditThreshold int
	auditWindow    time.Duration
}

func (x *Raid) Flags() []cli.Flag {
	def := raid.DefaultConfig()
	auditDef := auditwatch.DefaultConfig()
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "raid-join-threshold",
			Usage:       "Joins within the window that count as a raid",
			Category:    "Raid",
			Sources:     cli.EnvVars("BASTION_RAID_JOIN_THRESHOLD"),
			Value:       def.JoinThreshold,
			Destination: &x.joinThreshold,
		},
		&cli.DurationFlag{
			Name:        "raid-window",
			Usage:       "Sliding window for counting joins",
			Category:    "Raid",
			Sources:     cli.EnvVars("BASTION_RAID_WINDOW"),
			Value:       def.Window,
			Destination: &x.window,
		},
		&cli.DurationFlag{
			Name:        "raid-recent-joins",
			Usage:       "How far back mitigation removes joined members",
			Category:    "Raid",
			Sources:     cli.EnvVars("BASTION_RAID_RECENT_JOINS"),
			Value:       def.RecentJoins,
			Destination: &x.recentJoins,
		},
		&cli.DurationFlag{
			Name:        "raid-cooldown",
			Usage:       "Minimum time between two mitigations of the same community",
			Category:    "Raid",
			Sources:     cli.EnvVars("BASTION_RAID_COOLDOWN"),
			Value:       def.Cooldown,
			Destination: &x.cooldown,
		},
		&cli.IntFlag{
			Name:        "raid-min-account-age-days",
			Usage:       "Joining accounts younger than this raise an alert (0: disabled)",
			Category:    "Raid",
			Sources:     cli.EnvVars("BASTION_RAID_MIN_ACCOUNT_AGE_DAYS"),
			Value:       7,
			Destination: &x.minAccountAgeDays,
		},
		&cli.IntFlag{
			Name:        "audit-threshold",
			Usage:       "Destructive moderation actions by one actor within the window that raise an alert",
			Category:    "Raid",
			Sources:     cli.EnvVars("BASTION_AUDIT_THRESHOLD"),
			Value:       auditDef.Threshold,
			Destination: &x.auditThreshold,
		},
		&cli.DurationFlag{
			Name:        "audit-window",
			Usage:       "Sliding window for counting moderation actions",
			Category:    "Raid",
			Sources:     cli.EnvVars("BASTION_AUDIT_WINDOW"),
			Value:       auditDef.Window,
			Destination: &x.auditWindow,
		},
	}
}

func (x Raid) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("join_threshold", x.joinThreshold),
		slog.Duration("window", x.window),
		slog.Duration("recent_joins", x.recentJoins),
		slog.Duration("cooldown", x.cooldown),
		slog.Int("min_account_age_days", x.minAccountAgeDays),
		slog.Int("audit_threshold", x.auditThreshold),
		slog.Duration("audit_window", x.auditWindow),
	)
}

func (x *Raid) Config() raid.Config {
	return raid.Config{
		JoinThreshold: x.joinThreshold,
		Window:        x.window,
		RecentJoins:   x.recentJoins,
		Cooldown:      x.cooldown,
	}
}

func (x *Raid) AuditConfig() auditwatch.Config {
	return auditwatch.Config{Threshold: x.auditThreshold, Window: x.auditWindow}
}

func (x *Raid) MinAccountAgeDays() int { return x.minAccountAgeDays }
