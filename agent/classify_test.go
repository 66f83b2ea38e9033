package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	assert := assert.New(t)
	c := NewClassifier(nil)

	cases := map[string]RouteClass{
		"/api/customers":    RouteAPI,
		"/api/vehicles/42":  RouteAPI,
		"/api/deals?page=2": RouteAPI,
		"/":                 RouteStatic,
		"/app.css":          RouteStatic,
		"/app.js":           RouteStatic,
		"/icons/192.png":    RouteStatic,
		"/apidocs":          RouteStatic,
	}
	for path, expected := range cases {
		assert.Equal(expected, c.Classify(path), path)
	}
}

func TestClassifyCustomRules(t *testing.T) {
	assert := assert.New(t)
	c := NewClassifier([]string{"/v2/", "/api/"})

	assert.Equal(RouteAPI, c.Classify("/v2/customers"))
	assert.Equal(RouteAPI, c.Classify("/api/customers"))
	assert.Equal(RouteStatic, c.Classify("/v3/customers"))
}

func TestClassifyIdempotent(t *testing.T) {
	assert := assert.New(t)
	c := NewClassifier(nil)

	first := c.Classify("/api/customers")
	second := c.Classify("/api/customers")
	assert.Equal(first, second)
}
