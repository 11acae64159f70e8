// Package virustotal looks up file hashes with the VirusTotal v3 API.
package virustotal

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/bastion/pkg/domain/interfaces"
	"github.com/secmon-lab/bastion/pkg/domain/model/errs"
	"github.com/secmon-lab/bastion/pkg/domain/model/threat"
	"github.com/secmon-lab/bastion/pkg/utils/safe"
)

const DefaultBaseURL = "https://www.virustotal.com/api/v3"

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

var _ interfaces.FileReputation = &Client{}

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

type fileResponse struct {
	Data struct {
		Attributes struct {
			MeaningfulName    string `json:"meaningful_name"`
			LastAnalysisStats struct {
				Malicious  int `json:"malicious"`
				Suspicious int `json:"suspicious"`
				Undetected int `json:"undetected"`
				Harmless   int `json:"harmless"`
			} `json:"last_analysis_stats"`
		} `json:"attributes"`
	} `json:"data"`
}

// LookupHash returns the latest analysis stats for a file. Unknown files are
// reported with errs.TagNotFound.
func (x *Client) LookupHash(ctx context.Context, sha256 string) (*threat.FileReport, error) {
	endpoint := x.baseURL + "/files/" + url.PathEscape(sha256)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create request")
	}
	req.Header.Set("x-apikey", x.apiKey)

	resp, err := x.httpClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to send request", goerr.T(errs.TagExternal))
	}
	defer safe.Close(ctx, resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		safe.Drain(ctx, resp.Body)
		return nil, goerr.New("file is not known to VirusTotal", goerr.T(errs.TagNotFound), goerr.V("sha256", sha256))
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, goerr.New("VirusTotal quota exceeded", goerr.T(errs.TagRateLimit))
	case resp.StatusCode >= 500:
		return nil, goerr.New("VirusTotal is unavailable", goerr.T(errs.TagExternal), goerr.TV(errs.HTTPStatusKey, resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, goerr.New("failed to query VirusTotal",
			goerr.TV(errs.HTTPStatusKey, resp.StatusCode),
			goerr.V("body", string(body)))
	}

	var result fileResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, goerr.Wrap(err, "failed to decode VirusTotal response", goerr.T(errs.TagExternal))
	}

	stats := result.Data.Attributes.LastAnalysisStats
	return &threat.FileReport{
		SHA256:     sha256,
		Name:       result.Data.Attributes.MeaningfulName,
		Malicious:  stats.Malicious,
		Suspicious: stats.Suspicious,
		Undetected: stats.Undetected,
		Harmless:   stats.Harmless,
	}, nil
}
