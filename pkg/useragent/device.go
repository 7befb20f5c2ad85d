package useragent

import (
	"net/http"
	"strings"
)

var browsers = []struct{ key, name string }{
	{"Edg/", "Edge"},
	{"Firefox/", "Firefox"},
	{"Chrome/", "Chrome"},
	{"Safari/", "Safari"},
}

var systems = []struct{ key, name string }{
	{"Windows", "Windows"},
	{"Mac OS X", "macOS"},
	{"Android", "Android"},
	{"iPhone", "iOS"},
	{"iPad", "iOS"},
	{"Linux", "Linux"},
}

// DescribeRenderer labels the program behind a bridge connection, e.g.
// "Firefox on Linux". Non-browser clients are labelled by their product token.
func DescribeRenderer(r *http.Request) string {
	ua := r.Header.Get("User-Agent")
	if ua == "" {
		return "unknown renderer"
	}

	browser := ""
	for _, b := range browsers {
		if strings.Contains(ua, b.key) {
			browser = b.name
			break
		}
	}
	if browser == "" {
		// e.g. "Go-http-client/1.1" or "curl/8.5.0"
		product, _, _ := strings.Cut(ua, " ")
		return product
	}

	system := "unknown OS"
	for _, s := range systems {
		if strings.Contains(ua, s.key) {
			system = s.name
			break
		}
	}
	return browser + " on " + system
}
