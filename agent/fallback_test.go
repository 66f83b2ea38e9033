package agent

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFallbackJSON(t *testing.T) {
	assert := assert.New(t)
	req := httptest.NewRequest("GET", "/api/customers", nil)
	req.Header.Set("Accept", "application/json")

	resp := Fallback(req)
	assert.Equal(http.StatusServiceUnavailable, resp.Status)
	assert.Contains(resp.Header.Get("Content-Type"), "application/json")

	var body struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	assert.NoError(json.Unmarshal(resp.Body, &body))
	assert.False(body.Success)
	assert.Equal(OfflineMessage, body.Error)
}

func TestFallbackHTML(t *testing.T) {
	assert := assert.New(t)
	req := httptest.NewRequest("GET", "/app", nil)
	req.Header.Set("Accept", "text/html")

	resp := Fallback(req)
	assert.Equal(http.StatusServiceUnavailable, resp.Status)
	assert.Contains(resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(string(resp.Body), "Offline")
}

func TestFallbackNoAcceptHeader(t *testing.T) {
	assert := assert.New(t)
	req := httptest.NewRequest("GET", "/app", nil)

	resp := Fallback(req)
	assert.Contains(resp.Header.Get("Content-Type"), "text/html")
}
