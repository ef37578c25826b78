package sessions

import (
	"strings"

	"github.com/hazyhaar/tabkeeper/platform"
)

// privilegedSchemes are URL prefixes the browser will not open a new tab to
// directly. Tabs on these pages are both unrestorable and uninteresting.
var privilegedSchemes = []string{
	"chrome://",
	"chrome-extension://",
	"edge://",
	"about:",
	"devtools://",
}

// ShouldFilter reports whether a tab is excluded from snapshots and from the
// observation cache. One shared predicate for every capture path, so a
// snapshot never contains a tab that could not be restored anyway.
func ShouldFilter(url, title string) bool {
	if url == "" {
		return true
	}
	if url == "about:blank" {
		return true
	}
	if strings.Contains(url, "chrome://newtab") {
		return true
	}
	for _, scheme := range privilegedSchemes {
		if strings.HasPrefix(url, scheme) {
			return true
		}
	}
	if strings.TrimSpace(title) == "" || title == "New Tab" {
		return true
	}
	return false
}

// shouldFilterTab applies ShouldFilter to a live tab.
func shouldFilterTab(t platform.Tab) bool {
	return ShouldFilter(t.URL, t.Title)
}

// shouldFilterRecord applies ShouldFilter to a snapshot record.
func shouldFilterRecord(rec TabRecord) bool {
	return ShouldFilter(rec.URL, rec.Title)
}

// RestrictedURL reports whether a stored URL cannot be reopened by the
// platform. Restore drops these silently; they are not an error.
func RestrictedURL(url string) bool {
	for _, scheme := range privilegedSchemes {
		if strings.HasPrefix(url, scheme) {
			return true
		}
	}
	return false
}
