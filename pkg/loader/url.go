package loader

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/slipwayhq/slipway-go/pkg/component"
	"github.com/slipwayhq/slipway-go/pkg/reference"
	"github.com/slipwayhq/slipway-go/pkg/slerr"
)

// URLLoader fetches reference.KindURL references (and, via
// NewRegistryLoader, registry-resolved URLs) over HTTPS.
type URLLoader struct {
	client *http.Client
}

// NewURLLoader builds a URLLoader with a bounded request timeout; the
// engine never blocks indefinitely on a misbehaving registry.
func NewURLLoader(timeout time.Duration) *URLLoader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &URLLoader{client: &http.Client{Timeout: timeout}}
}

func (l *URLLoader) Identifier() string { return "url" }

func (l *URLLoader) Load(ctx context.Context, ref reference.Reference) (*component.Loaded, error) {
	if ref.Kind != reference.KindURL {
		return nil, nil
	}
	raw, err := l.fetch(ctx, ref.URL)
	if err != nil {
		return nil, err
	}
	return component.FromArchive(ref, raw)
}

func (l *URLLoader) fetch(ctx context.Context, url string) ([]byte, error) {
	if !strings.HasPrefix(url, "https://") && !strings.HasPrefix(url, "http://") {
		return nil, slerr.ValidationFailed("url loader only supports http/https").WithDetail("url", url)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, slerr.New(slerr.CodeComponentLoadFailed, "unexpected status fetching component archive").
			WithDetail("url", url).WithDetail("status", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
