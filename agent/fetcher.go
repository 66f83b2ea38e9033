package agent

import (
	"net/http"
	"net/url"
	"path"

	"github.com/pkg/errors"
)

// NewOriginFetcher returns a Fetcher that resolves request URLs against the
// given origin base URL before performing them. Requests keep their
// client-relative URL for cache keying, only the outbound copy is rewritten.
func NewOriginFetcher(origin string, client *http.Client) (Fetcher, error) {
	base, err := url.Parse(origin)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse origin URL")
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, errors.Errorf("origin URL %q must be absolute", origin)
	}
	if client == nil {
		client = &http.Client{}
	}

	return &originFetcher{
		base:   base,
		client: client,
	}, nil
}

type originFetcher struct {
	base   *url.URL
	client *http.Client
}

func (f *originFetcher) Do(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.URL = &url.URL{
		Scheme:   f.base.Scheme,
		Host:     f.base.Host,
		Path:     path.Join(f.base.Path, req.URL.Path),
		RawQuery: req.URL.RawQuery,
	}
	out.Host = ""
	out.RequestURI = ""

	return f.client.Do(out)
}
