// Package safebrowsing is a URL reputation client for the Google Safe
// Browsing v4 Lookup API.
package safebrowsing

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/bastion/pkg/domain/interfaces"
	"github.com/secmon-lab/bastion/pkg/domain/model/errs"
	"github.com/secmon-lab/bastion/pkg/domain/model/threat"
	"github.com/secmon-lab/bastion/pkg/utils/safe"
)

const DefaultBaseURL = "https://safebrowsing.googleapis.com/v4"

var threatTypes = []string{
	"MALWARE",
	"SOCIAL_ENGINEERING",
	"UNWANTED_SOFTWARE",
	"POTENTIALLY_HARMFUL_APPLICATION",
}

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

var _ interfaces.URLReputation = &Client{}

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

type threatEntry struct {
	URL string `json:"url"`
}

type findRequest struct {
	Client struct {
		ClientID      string `json:"clientId"`
		ClientVersion string `json:"clientVersion"`
	} `json:"client"`
	ThreatInfo struct {
		ThreatTypes      []string      `json:"threatTypes"`
		PlatformTypes    []string      `json:"platformTypes"`
		ThreatEntryTypes []string      `json:"threatEntryTypes"`
		ThreatEntries    []threatEntry `json:"threatEntries"`
	} `json:"threatInfo"`
}

type findResponse struct {
	Matches []struct {
		ThreatType   string      `json:"threatType"`
		PlatformType string      `json:"platformType"`
		Threat       threatEntry `json:"threat"`
	} `json:"matches"`
}

// CheckURLs returns the URLs listed by Safe Browsing. A URL may appear more
// than once when it is listed under several threat types.
func (x *Client) CheckURLs(ctx context.Context, urls []string) ([]threat.URLMatch, error) {
	if len(urls) == 0 {
		return nil, nil
	}

	var body findRequest
	body.Client.ClientID = "bastion"
	body.Client.ClientVersion = "1.0.0"
	body.ThreatInfo.ThreatTypes = threatTypes
	body.ThreatInfo.PlatformTypes = []string{"ANY_PLATFORM"}
	body.ThreatInfo.ThreatEntryTypes = []string{"URL"}
	for _, u := range urls {
		body.ThreatInfo.ThreatEntries = append(body.ThreatInfo.ThreatEntries, threatEntry{URL: u})
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal safe browsing request")
	}

	endpoint := x.baseURL + "/threatMatches:find?key=" + x.apiKey
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := x.httpClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to send safe browsing request", goerr.T(errs.TagExternal))
	}
	defer safe.Close(ctx, resp.Body)

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, goerr.New("safe browsing returned error",
			statusTag(resp.StatusCode),
			goerr.TV(errs.HTTPStatusKey, resp.StatusCode),
			goerr.V("body", string(data)))
	}

	var result findResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, goerr.Wrap(err, "failed to decode safe browsing response", goerr.T(errs.TagExternal))
	}

	matches := make([]threat.URLMatch, 0, len(result.Matches))
	for _, m := range result.Matches {
		matches = append(matches, threat.URLMatch{
			URL:          m.Threat.URL,
			ThreatType:   m.ThreatType,
			PlatformType: m.PlatformType,
		})
	}
	return matches, nil
}

func statusTag(code int) goerr.Option {
	switch {
	case code == http.StatusTooManyRequests:
		return goerr.T(errs.TagRateLimit)
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return goerr.T(errs.TagForbidden)
	case code >= 500:
		return goerr.T(errs.TagExternal)
	default:
		return goerr.T(errs.TagInvalidRequest)
	}
}
