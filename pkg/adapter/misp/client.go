// Package misp talks to a MISP instance: attribute search, sightings and
// draft events.
package misp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/bastion/pkg/domain/interfaces"
	"github.com/secmon-lab/bastion/pkg/domain/model/errs"
	"github.com/secmon-lab/bastion/pkg/domain/model/intel"
	"github.com/secmon-lab/bastion/pkg/domain/model/ioc"
	"github.com/secmon-lab/bastion/pkg/domain/model/threat"
	"github.com/secmon-lab/bastion/pkg/domain/types"
	"github.com/secmon-lab/bastion/pkg/utils/safe"
)

const sightingSource = "bastion"

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

var (
	_ interfaces.IntelLookup   = &Client{}
	_ interfaces.IntelReporter = &Client{}
)

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (x *Client) do(ctx context.Context, path string, payload any, out any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal MISP request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, x.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return goerr.Wrap(err, "failed to create request")
	}
	req.Header.Set("Authorization", x.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := x.httpClient.Do(req)
	if err != nil {
		return goerr.Wrap(err, "failed to send request", goerr.T(errs.TagExternal))
	}
	defer safe.Close(ctx, resp.Body)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return goerr.New("MISP request failed",
			statusTag(resp.StatusCode),
			goerr.TV(errs.HTTPStatusKey, resp.StatusCode),
			goerr.V("path", path),
			goerr.V("body", string(body)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return goerr.Wrap(err, "failed to decode MISP response", goerr.T(errs.TagExternal))
	}
	return nil
}

func statusTag(code int) goerr.Option {
	switch {
	case code == http.StatusNotFound:
		return goerr.T(errs.TagNotFound)
	case code == http.StatusTooManyRequests:
		return goerr.T(errs.TagRateLimit)
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return goerr.T(errs.TagForbidden)
	case code >= 500:
		return goerr.T(errs.TagExternal)
	}
	return goerr.T(errs.TagInvalidRequest)
}

type attribute struct {
	ID       string `json:"id,omitempty"`
	EventID  string `json:"event_id,omitempty"`
	Type     string `json:"type"`
	Category string `json:"category"`
	Value    string `json:"value"`
	ToIDS    bool   `json:"to_ids"`
	Comment  string `json:"comment,omitempty"`
	Tag      []struct {
		Name string `json:"name"`
	} `json:"Tag,omitempty"`
}

type searchResponse struct {
	Response struct {
		Attribute []attribute `json:"Attribute"`
	} `json:"response"`
}

// Lookup searches MISP attributes for the exact indicator value.
func (x *Client) Lookup(ctx context.Context, indicator ioc.Indicator) (*intel.Record, error) {
	query := map[string]any{
		"returnFormat":     "json",
		"value":            indicator.Value,
		"limit":            10,
		"includeEventTags": true,
	}

	var resp searchResponse
	if err := x.do(ctx, "/attributes/restSearch", query, &resp); err != nil {
		return nil, err
	}
	if len(resp.Response.Attribute) == 0 {
		return nil, goerr.New("indicator is not known to MISP", goerr.T(errs.TagNotFound))
	}

	record := &intel.Record{
		Indicator:  indicator.Value,
		Type:       indicator.Type,
		Source:     "misp",
		Confidence: 60,
	}
	seen := map[string]struct{}{}
	for _, attr := range resp.Response.Attribute {
		if attr.ToIDS {
			record.Confidence = 80
			record.Classification = "known_malicious"
		}
		if record.Reference == "" && attr.EventID != "" {
			record.Reference = x.eventURL(attr.EventID)
		}
		for _, t := range attr.Tag {
			if _, dup := seen[t.Name]; dup {
				continue
			}
			seen[t.Name] = struct{}{}
			record.Tags = append(record.Tags, t.Name)
		}
	}
	if record.Classification == "" {
		record.Classification = resp.Response.Attribute[0].Category
	}
	return record, nil
}

// ReportSighting adds a sighting (type 0) for value.
func (x *Client) ReportSighting(ctx context.Context, value string, contextID string) error {
	payload := map[string]any{
		"value":  value,
		"source": sightingSource,
		"type":   "0",
	}
	if err := x.do(ctx, "/sightings/add", payload, nil); err != nil {
		return goerr.Wrap(err, "failed to report sighting", goerr.V("context_id", contextID))
	}
	return nil
}

type eventPayload struct {
	Event struct {
		Info          string      `json:"info"`
		Distribution  int         `json:"distribution"`
		ThreatLevelID int         `json:"threat_level_id"`
		Analysis      int         `json:"analysis"`
		Published     bool        `json:"published"`
		Attribute     []attribute `json:"Attribute"`
	} `json:"Event"`
}

type eventResponse struct {
	Event struct {
		ID string `json:"id"`
	} `json:"Event"`
}

// CreateRecord creates an unpublished, organisation-only event holding the
// signal's indicator so that an analyst can review it.
func (x *Client) CreateRecord(ctx context.Context, signal threat.Signal, contextID string) (*intel.Record, error) {
	if signal.Indicator == "" {
		return nil, goerr.New("signal has no indicator", goerr.T(errs.TagValidation))
	}

	attrType, category := attributeType(signal.IndicatorType, signal.Indicator)

	var payload eventPayload
	payload.Event.Info = fmt.Sprintf("[bastion] %s: %s", signal.Kind, signal.Description)
	payload.Event.ThreatLevelID = threatLevel(signal.Score)
	payload.Event.Attribute = []attribute{{
		Type:     attrType,
		Category: category,
		Value:    signal.Indicator,
		Comment:  contextID,
	}}

	var resp eventResponse
	if err := x.do(ctx, "/events/add", payload, &resp); err != nil {
		return nil, goerr.Wrap(err, "failed to create draft event", goerr.V("context_id", contextID))
	}

	return &intel.Record{
		Indicator:      signal.Indicator,
		Type:           signal.IndicatorType,
		Source:         "misp",
		Classification: signal.Kind.String(),
		Confidence:     signal.Score,
		Reference:      x.eventURL(resp.Event.ID),
		Draft:          true,
	}, nil
}

func (x *Client) eventURL(id string) string {
	return x.baseURL + "/events/view/" + id
}

func attributeType(t types.IndicatorType, value string) (string, string) {
	switch t {
	case types.IndicatorURL:
		return "url", "Network activity"
	case types.IndicatorDomain:
		return "domain", "Network activity"
	case types.IndicatorIP:
		return "ip-dst", "Network activity"
	case types.IndicatorEmail:
		return "email-src", "Payload delivery"
	case types.IndicatorHash:
		switch len(value) {
		case 64:
			return "sha256", "Payload delivery"
		case 40:
			return "sha1", "Payload delivery"
		default:
			return "md5", "Payload delivery"
		}
	}
	return "text", "Other"
}

// threatLevel maps a score to MISP's 1 (high) .. 3 (low) scale.
func threatLevel(score int) int {
	switch {
	case score >= threat.BanThreshold:
		return 1
	case score >= threat.BlockThreshold:
		return 2
	}
	return 3
}
