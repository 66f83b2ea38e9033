package agent

import "strings"

// RouteClass represents the strategy class derived from a request path
type RouteClass string

const (
	// RouteAPI represents requests served network-first
	RouteAPI RouteClass = "api"
	// RouteStatic represents requests served cache-first
	RouteStatic RouteClass = "static"
)

// DefaultAPIPrefixes are the path prefixes classified as API traffic when the
// config does not provide its own rules.
var DefaultAPIPrefixes = []string{"/api/"}

// NewClassifier returns a classifier with the given ordered API prefix rules
func NewClassifier(apiPrefixes []string) *Classifier {
	if len(apiPrefixes) == 0 {
		apiPrefixes = DefaultAPIPrefixes
	}

	return &Classifier{apiPrefixes: apiPrefixes}
}

// Classifier decides which strategy applies to a request path
type Classifier struct {
	apiPrefixes []string
}

// Classify maps a request path onto a route class. Rules are checked in
// order, first match wins, everything else is static. Pure function of the
// path, re-derived per request.
func (c *Classifier) Classify(path string) RouteClass {
	for _, prefix := range c.apiPrefixes {
		if strings.HasPrefix(path, prefix) {
			return RouteAPI
		}
	}

	return RouteStatic
}
