package safebrowsing_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/bastion/pkg/adapter/safebrowsing"
	"github.com/secmon-lab/bastion/pkg/domain/model/errs"
	"github.com/secmon-lab/bastion/pkg/utils/test"
)

func TestCheckURLs(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gt.Equal(t, r.Method, http.MethodPost)
		gt.Equal(t, r.URL.Path, "/threatMatches:find")
		gt.Equal(t, r.URL.Query().Get("key"), "test-key")

		var req map[string]any
		gt.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		entries := req["threatInfo"].(map[string]any)["threatEntries"].([]any)
		gt.A(t, entries).Length(2)

		_, _ = w.Write([]byte(`{"matches":[{"threatType":"MALWARE","platformType":"ANY_PLATFORM","threat":{"url":"https://evil.example/"}}]}`))
	}))
	defer ts.Close()

	client := safebrowsing.New("test-key", safebrowsing.WithBaseURL(ts.URL))
	matches, err := client.CheckURLs(t.Context(), []string{"https://evil.example/", "https://ok.example/"})
	gt.NoError(t, err)
	gt.A(t, matches).Length(1)
	gt.Equal(t, matches[0].ThreatType, "MALWARE")
	gt.Equal(t, matches[0].URL, "https://evil.example/")
}

func TestCheckURLsNoMatch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	client := safebrowsing.New("test-key", safebrowsing.WithBaseURL(ts.URL))
	matches, err := client.CheckURLs(t.Context(), []string{"https://ok.example/"})
	gt.NoError(t, err)
	gt.A(t, matches).Length(0)
}

func TestCheckURLsErrors(t *testing.T) {
	testCases := []struct {
		name   string
		status int
		tag    string
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, tag: errs.TagRateLimit.String()},
		{name: "server error", status: http.StatusServiceUnavailable, tag: errs.TagExternal.String()},
		{name: "bad key", status: http.StatusForbidden, tag: errs.TagForbidden.String()},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer ts.Close()

			client := safebrowsing.New("test-key", safebrowsing.WithBaseURL(ts.URL))
			_, err := client.CheckURLs(t.Context(), []string{"https://x.example/"})
			gt.Error(t, err)
			gt.A(t, goerr.Tags(err)).Has(tc.tag)
		})
	}
}

func TestCheckURLsLive(t *testing.T) {
	vars := test.NewEnvVars(t, "TEST_SAFE_BROWSING_API_KEY")
	client := safebrowsing.New(vars.Get("TEST_SAFE_BROWSING_API_KEY"))
	_, err := client.CheckURLs(t.Context(), []string{"https://example.com/"})
	gt.NoError(t, err)
}
