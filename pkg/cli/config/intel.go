package config

import (
	"log/slog"
	"net/http"

	"github.com/secmon-lab/bastion/pkg/adapter/misp"
	"github.com/secmon-lab/bastion/pkg/adapter/otx"
	"github.com/secmon-lab/bastion/pkg/service/intel"
	"github.com/urfave/cli/v3"
)

type Intel struct {
	otxKey     string
	mispURL    string
	mispKey    string
	maxLookups int
}

func (x *Intel) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "otx-api-key",
			Usage:       "AlienVault OTX API key for indicator lookups",
			Category:    "Threat Intel",
			Sources:     cli.EnvVars("BASTION_OTX_API_KEY"),
			Destination: &x.otxKey,
		},
		&cli.StringFlag{
			Name:        "misp-url",
			Usage:       "MISP base URL for sightings and draft events",
			Category:    "Threat Intel",
			Sources:     cli.EnvVars("BASTION_MISP_URL"),
			Destination: &x.mispURL,
		},
		&cli.StringFlag{
			Name:        "misp-api-key",
			Usage:       "MISP API key",
			Category:    "Threat Intel",
			Sources:     cli.EnvVars("BASTION_MISP_API_KEY"),
			Destination: &x.mispKey,
		},
		&cli.IntFlag{
			Name:        "intel-max-lookups",
			Usage:       "Indicators looked up per alert",
			Category:    "Threat Intel",
			Sources:     cli.EnvVars("BASTION_INTEL_MAX_LOOKUPS"),
			Value:       3,
			Destination: &x.maxLookups,
		},
	}
}

func (x Intel) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("otx-api-key.len", len(x.otxKey)),
		slog.String("misp-url", x.mispURL),
		slog.Int("misp-api-key.len", len(x.mispKey)),
		slog.Int("max_lookups", x.maxLookups),
	)
}

// Configure returns nil when neither source is configured. OTX is
// preferred for lookups; MISP answers lookups only without OTX.
func (x *Intel) Configure(res *Resilience, httpClient *http.Client) *intel.Service {
	var opts []intel.Option
	var mispClient *misp.Client
	if x.mispURL != "" && x.mispKey != "" {
		mispClient = misp.New(x.mispURL, x.mispKey, misp.WithHTTPClient(httpClient))
		opts = append(opts, intel.WithReporter(mispClient, res.Policy("misp")))
	}

	switch {
	case x.otxKey != "":
		opts = append(opts, intel.WithLookup(otx.New(x.otxKey, otx.WithHTTPClient(httpClient)), res.Policy("otx")))
	case mispClient != nil:
		opts = append(opts, intel.WithLookup(mispClient, res.Policy("misp-lookup")))
	}

	if len(opts) == 0 {
		return nil
	}
	opts = append(opts, intel.WithMaxLookups(x.maxLookups))
	return intel.New(opts...)
}
