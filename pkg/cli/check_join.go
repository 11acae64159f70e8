package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/bastion/pkg/cli/config"
	"github.com/secmon-lab/bastion/pkg/domain/types"
	"github.com/secmon-lab/bastion/pkg/service/raid"
	"github.com/urfave/cli/v3"
)

type checkJoinResult struct {
	CommunityID  types.CommunityID `json:"community_id"`
	Joins        int               `json:"joins"`
	Threshold    int               `json:"threshold"`
	DetectedAt   int               `json:"detected_at,omitempty"`
	RaidDetected bool              `json:"raid_detected"`
}

func cmdCheckJoin() *cli.Command {
	var (
		community string
		count     int
		redisCfg  config.Redis
		raidCfg   config.Raid
	)

	flags := joinFlags(
		[]cli.Flag{
			&cli.StringFlag{
				Name:        "community",
				Aliases:     []string{"c"},
				Usage:       "Community (guild) ID to record joins for",
				Required:    true,
				Destination: &community,
			},
			&cli.IntFlag{
				Name:        "count",
				Aliases:     []string{"n"},
				Usage:       "Number of synthetic joins to record",
				Value:       1,
				Destination: &count,
			},
		},
		redisCfg.Flags(),
		raidCfg.Flags(),
	)

	return &cli.Command{
		Name:  "check-join",
		Usage: "Record synthetic joins in the counter store and report whether the raid threshold trips. No mitigation is run",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			store, closer, err := redisCfg.Configure(ctx)
			if err != nil {
				return err
			}
			defer closer()

			detector := raid.New(store, nil, nil, raidCfg.Config())
			return runCheckJoin(ctx, c.Root().Writer, detector, raidCfg.Config().JoinThreshold, types.CommunityID(community), count)
		},
	}
}

func runCheckJoin(ctx context.Context, w io.Writer, detector *raid.Detector, threshold int, communityID types.CommunityID, count int) error {
	if count <= 0 {
		return goerr.New("--count must be positive", goerr.V("count", count))
	}

	result := checkJoinResult{CommunityID: communityID, Threshold: threshold}
	for i := range count {
		userID := types.UserID(fmt.Sprintf("check-join-%d", i))
		result.Joins++
		if detector.RecordJoinAndCheck(ctx, communityID, userID) && !result.RaidDetected {
			result.RaidDetected = true
			result.DetectedAt = result.Joins
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return goerr.Wrap(err, "failed to write result")
	}
	return nil
}
