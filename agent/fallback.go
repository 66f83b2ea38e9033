package agent

import (
	"net/http"
	"strings"

	"github.com/chrisvdg/offlineagent/cache"
)

// OfflineMessage is the error message carried by synthesized API responses
const OfflineMessage = "offline, cannot reach server"

const offlineJSONBody = `{"success": false, "error": "` + OfflineMessage + `"}`

const offlinePageBody = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Offline</title></head>
<body>
<h1>Offline</h1>
<p>The server cannot be reached right now. Please check your connection and retry.</p>
</body>
</html>
`

// Fallback synthesizes a response for a request that neither the cache nor
// the network could serve. Content is negotiated on the Accept header:
// requests accepting JSON get a structured error, everything else gets a
// minimal offline page. Never fails, this is the terminal fallback for both
// strategies.
func Fallback(req *http.Request) cache.StoredResponse {
	if acceptsJSON(req) {
		return cache.StoredResponse{
			Status: http.StatusServiceUnavailable,
			Header: http.Header{"Content-Type": []string{"application/json; charset=utf-8"}},
			Body:   []byte(offlineJSONBody),
		}
	}

	return cache.StoredResponse{
		Status: http.StatusServiceUnavailable,
		Header: http.Header{"Content-Type": []string{"text/html; charset=utf-8"}},
		Body:   []byte(offlinePageBody),
	}
}

func acceptsJSON(req *http.Request) bool {
	return strings.Contains(req.Header.Get("Accept"), "json")
}
