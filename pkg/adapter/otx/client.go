// Package otx queries AlienVault OTX for indicator context.
package otx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"net/url"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/bastion/pkg/domain/interfaces"
	"github.com/secmon-lab/bastion/pkg/domain/model/errs"
	"github.com/secmon-lab/bastion/pkg/domain/model/intel"
	"github.com/secmon-lab/bastion/pkg/domain/model/ioc"
	"github.com/secmon-lab/bastion/pkg/domain/types"
	"github.com/secmon-lab/bastion/pkg/utils/safe"
)

const (
	DefaultBaseURL = "https://otx.alienvault.com/api/v1"
	webURL         = "https://otx.alienvault.com/indicator"
	maxTags        = 10
)

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

var _ interfaces.IntelLookup = &Client{}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type generalResponse struct {
	PulseInfo struct {
		Count  int `json:"count"`
		Pulses []struct {
			ID   string   `json:"id"`
			Name string   `json:"name"`
			Tags []string `json:"tags"`
		} `json:"pulses"`
	} `json:"pulse_info"`
}

func section(indicator ioc.Indicator) (string, bool) {
	switch indicator.Type {
	case types.IndicatorURL:
		return "url", true
	case types.IndicatorDomain:
		return "domain", true
	case types.IndicatorHash:
		return "file", true
	case types.IndicatorIP:
		addr, err := netip.ParseAddr(indicator.Value)
		if err != nil {
			return "", false
		}
		if addr.Is6() {
			return "IPv6", true
		}
		return "IPv4", true
	}
	return "", false
}

// Lookup returns pulse context for indicator. Indicators without pulses, and
// indicator types OTX does not index, are reported with errs.TagNotFound.
func (x *Client) Lookup(ctx context.Context, indicator ioc.Indicator) (*intel.Record, error) {
	sec, ok := section(indicator)
	if !ok {
		return nil, goerr.New("indicator type is not supported by OTX",
			goerr.T(errs.TagNotFound), goerr.V("type", indicator.Type))
	}

	endpoint := fmt.Sprintf("%s/indicators/%s/%s/general", x.baseURL, sec, url.PathEscape(indicator.Value))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create request")
	}
	req.Header.Set("X-OTX-API-KEY", x.apiKey)

	resp, err := x.httpClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to send request", goerr.T(errs.TagExternal))
	}
	defer safe.Close(ctx, resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, goerr.New("indicator is not known to OTX", goerr.T(errs.TagNotFound))
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, goerr.New("OTX rate limit exceeded", goerr.T(errs.TagRateLimit))
	case resp.StatusCode >= 500:
		return nil, goerr.New("OTX is unavailable", goerr.T(errs.TagExternal), goerr.TV(errs.HTTPStatusKey, resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, goerr.New("failed to query OTX",
			goerr.TV(errs.HTTPStatusKey, resp.StatusCode),
			goerr.V("body", string(body)))
	}

	var result generalResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, goerr.Wrap(err, "failed to decode OTX response", goerr.T(errs.TagExternal))
	}

	count := result.PulseInfo.Count
	if count == 0 {
		return nil, goerr.New("indicator has no pulses", goerr.T(errs.TagNotFound))
	}

	record := &intel.Record{
		Indicator:      indicator.Value,
		Type:           indicator.Type,
		Source:         "otx",
		Classification: classify(count),
		Confidence:     confidence(count),
		Reference:      fmt.Sprintf("%s/%s/%s", webURL, sec, url.PathEscape(indicator.Value)),
	}

	seen := map[string]struct{}{}
	for _, p := range result.PulseInfo.Pulses {
		for _, tag := range p.Tags {
			if _, dup := seen[tag]; dup || len(record.Tags) >= maxTags {
				continue
			}
			seen[tag] = struct{}{}
			record.Tags = append(record.Tags, tag)
		}
	}
	return record, nil
}

// confidence grows with the number of community pulses referencing the
// indicator.
func confidence(pulses int) int {
	return min(100, 40+10*pulses)
}

func classify(pulses int) string {
	if pulses >= 3 {
		return "known_malicious"
	}
	return "suspicious"
}
