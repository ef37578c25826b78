package sessions

import "testing"

func TestShouldFilter(t *testing.T) {
	cases := []struct {
		url, title string
		want       bool
	}{
		{"", "anything", true},
		{"about:blank", "blank", true},
		{"chrome://newtab/", "New Tab", true},
		{"https://example.com/chrome://newtab", "odd", true},
		{"chrome://settings/", "Settings", true},
		{"chrome-extension://abc/popup.html", "Popup", true},
		{"edge://flags", "Flags", true},
		{"about:config", "Config", true},
		{"devtools://devtools/inspector.html", "DevTools", true},
		{"https://example.com/", "", true},
		{"https://example.com/", "   ", true},
		{"https://example.com/", "New Tab", true},
		{"https://example.com/", "Example", false},
		{"http://localhost:3000/", "Dev server", false},
	}
	for _, c := range cases {
		if got := ShouldFilter(c.url, c.title); got != c.want {
			t.Errorf("ShouldFilter(%q, %q) = %v, want %v", c.url, c.title, got, c.want)
		}
	}
}

// Applying the predicate twice yields the same result as once, and an
// accepted tab never has an empty URL or placeholder title.
func TestShouldFilterIdempotent(t *testing.T) {
	urls := []string{"", "about:blank", "chrome://newtab/", "https://a.example/", "chrome://x"}
	titles := []string{"", "New Tab", "A", "  "}
	for _, u := range urls {
		for _, ti := range titles {
			first := ShouldFilter(u, ti)
			second := ShouldFilter(u, ti)
			if first != second {
				t.Fatalf("predicate not stable for (%q, %q)", u, ti)
			}
			if !first && (u == "" || ti == "New Tab" || ti == "") {
				t.Fatalf("accepted noise tab (%q, %q)", u, ti)
			}
		}
	}
}

func TestRestrictedURL(t *testing.T) {
	if !RestrictedURL("chrome://history/") {
		t.Fatal("chrome:// should be restricted")
	}
	if !RestrictedURL("about:blank") {
		t.Fatal("about: should be restricted")
	}
	if RestrictedURL("https://example.com/") {
		t.Fatal("https should not be restricted")
	}
	// Restore-side predicate ignores titles: a real page with a placeholder
	// title is still restorable.
	if RestrictedURL("https://example.com/new-tab") {
		t.Fatal("path containing new-tab is not restricted")
	}
}
