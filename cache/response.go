package cache

import (
	"io"
	"net/http"

	"github.com/pkg/errors"
)

// StoredResponse is an immutable snapshot of a response that passed through
// the agent. Once written to a bucket it is never mutated, only replaced.
type StoredResponse struct {
	Status int
	Header http.Header
	Body   []byte
}

// Snapshot drains the body of a live response into a StoredResponse.
// The response body is closed afterwards.
func Snapshot(resp *http.Response) (StoredResponse, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return StoredResponse{}, errors.Wrap(err, "failed to read response body")
	}

	return StoredResponse{
		Status: resp.StatusCode,
		Header: resp.Header.Clone(),
		Body:   body,
	}, nil
}

// OK reports whether the snapshot carries a success status
func (r StoredResponse) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Clone returns an independent copy so callers never alias bucket-owned
// header maps or body slices.
func (r StoredResponse) Clone() StoredResponse {
	body := make([]byte, len(r.Body))
	copy(body, r.Body)

	return StoredResponse{
		Status: r.Status,
		Header: r.Header.Clone(),
		Body:   body,
	}
}

// Write replays the snapshot onto a response writer
func (r StoredResponse) Write(res http.ResponseWriter) error {
	for name, values := range r.Header {
		for _, v := range values {
			res.Header().Add(name, v)
		}
	}
	res.WriteHeader(r.Status)
	_, err := res.Write(r.Body)
	if err != nil {
		return errors.Wrap(err, "failed to write stored response body")
	}

	return nil
}
