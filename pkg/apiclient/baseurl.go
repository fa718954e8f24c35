package apiclient

import "strings"

const (
	DevProductAPI = "http://localhost:5001"
	DevAdminAPI   = "http://localhost:3000"
)

// Sources are the places a base URL may come from, highest priority first.
type Sources struct {
	Override string // API_BASE_URL style explicit setting
	Meta     string // <meta name="api-base-url"> content
	Hostname string // host the page was served from
	Origin   string // scheme://host[:port] of the page
}

// ResolveBaseURL picks override, then meta, then devDefault when served from
// localhost, then the page origin. The result has no trailing slash.
func ResolveBaseURL(src Sources, devDefault string) string {
	var base string
	switch {
	case strings.TrimSpace(src.Override) != "":
		base = src.Override
	case strings.TrimSpace(src.Meta) != "":
		base = src.Meta
	case isLocalhost(src.Hostname):
		base = devDefault
	default:
		base = src.Origin
	}
	return strings.TrimRight(strings.TrimSpace(base), "/")
}

func isLocalhost(host string) bool {
	switch strings.ToLower(host) {
	case "localhost", "127.0.0.1":
		return true
	}
	return false
}
