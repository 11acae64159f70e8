package discord_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/bastion/pkg/adapter/discord"
	"github.com/secmon-lab/bastion/pkg/domain/model/errs"
)

func TestDownloader(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/small":
			_, _ = w.Write([]byte("hello"))
		case "/large":
			_, _ = w.Write([]byte(strings.Repeat("x", 1024)))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	d := discord.NewDownloader(nil)

	data, err := d.Download(t.Context(), ts.URL+"/small", 16)
	gt.NoError(t, err)
	gt.Equal(t, string(data), "hello")

	_, err = d.Download(t.Context(), ts.URL+"/large", 16)
	gt.True(t, goerr.HasTag(err, errs.TagValidation))

	_, err = d.Download(t.Context(), ts.URL+"/missing", 16)
	gt.True(t, goerr.HasTag(err, errs.TagExternal))
}
