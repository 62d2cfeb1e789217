package boot

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Fetcher retrieves a named resource.
type Fetcher interface {
	Fetch(ctx context.Context, name string) (io.ReadCloser, error)
}

// NewFetcher returns a Fetcher for base, which is either an http(s) URL
// or a local directory.
func NewFetcher(base string) (Fetcher, error) {
	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return Dir(base), nil
	}
	u.RawQuery = ""
	u.Fragment = ""
	return &HTTP{Base: u}, nil
}

// Dir fetches files from a local directory.
type Dir string

func (d Dir) Fetch(ctx context.Context, name string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(string(d), filepath.FromSlash(name)))
	if err != nil {
		return nil, errors.Wrap(err, "fetch")
	}
	return f, nil
}

func (d Dir) String() string { return string(d) }

// HTTP fetches resources relative to a base URL. The base path names a
// directory whether or not it ends in a slash, so http://h/os and
// http://h/os/ both fetch http://h/os/kernel.wasm.
type HTTP struct {
	Base   *url.URL
	Client *http.Client // nil means http.DefaultClient
}

func (h *HTTP) Fetch(ctx context.Context, name string) (io.ReadCloser, error) {
	u := h.Base.JoinPath(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "fetch")
	}
	c := h.Client
	if c == nil {
		c = http.DefaultClient
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch")
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, errors.Errorf("fetch %s: %s", u, resp.Status)
	}
	return resp.Body, nil
}

func (h *HTTP) String() string { return h.Base.String() }
