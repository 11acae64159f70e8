package discord

import (
	"context"
	"io"
	"net/http"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/bastion/pkg/domain/interfaces"
	"github.com/secmon-lab/bastion/pkg/domain/model/errs"
	"github.com/secmon-lab/bastion/pkg/utils/safe"
)

// Downloader fetches attachments from the Discord CDN.
type Downloader struct {
	httpClient *http.Client
}

var _ interfaces.Downloader = &Downloader{}

func NewDownloader(httpClient *http.Client) *Downloader {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Downloader{httpClient: httpClient}
}

func (x *Downloader) Download(ctx context.Context, url string, maxBytes int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create request", goerr.TV(errs.URLKey, url))
	}

	resp, err := x.httpClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to download attachment", goerr.T(errs.TagExternal), goerr.TV(errs.URLKey, url))
	}
	defer safe.Close(ctx, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, goerr.New("unexpected status downloading attachment",
			goerr.T(errs.TagExternal),
			goerr.TV(errs.HTTPStatusKey, resp.StatusCode),
			goerr.TV(errs.URLKey, url))
	}
	if resp.ContentLength > maxBytes {
		return nil, goerr.New("attachment too large",
			goerr.T(errs.TagValidation),
			goerr.V("content_length", resp.ContentLength),
			goerr.V("max_bytes", maxBytes))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read attachment", goerr.T(errs.TagExternal), goerr.TV(errs.URLKey, url))
	}
	if int64(len(data)) > maxBytes {
		return nil, goerr.New("attachment too large", goerr.T(errs.TagValidation), goerr.V("max_bytes", maxBytes))
	}
	return data, nil
}
