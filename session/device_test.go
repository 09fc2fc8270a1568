package session

import "testing"

func TestClassify(t *testing.T) {
	cases := []struct {
		name    string
		ua      string
		browser string
		os      string
		typ     string
	}{
		{
			name:    "edge on windows",
			ua:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36 Edg/120.0",
			browser: "Edge", os: "Windows", typ: DeviceDesktop,
		},
		{
			name:    "chrome on mac",
			ua:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
			browser: "Chrome", os: "macOS", typ: DeviceDesktop,
		},
		{
			name:    "firefox on linux",
			ua:      "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
			browser: "Firefox", os: "Linux", typ: DeviceDesktop,
		},
		{
			name:    "safari on iphone matches mac first",
			ua:      "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
			browser: "Safari", os: "macOS", typ: DeviceMobile,
		},
		{
			name:    "chrome on android matches linux first",
			ua:      "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Mobile Safari/537.36",
			browser: "Chrome", os: "Linux", typ: DeviceMobile,
		},
		{
			name:    "tablet keyword",
			ua:      "SomeReader/1.0 (Android; Tablet)",
			browser: "Unknown", os: "Android", typ: DeviceTablet,
		},
		{
			name:    "presto opera",
			ua:      "Opera/9.80 (Windows NT 6.1) Presto/2.12.388 Version/12.16",
			browser: "Opera", os: "Windows", typ: DeviceDesktop,
		},
		{
			name:    "empty",
			ua:      "",
			browser: "Unknown", os: "Unknown", typ: DeviceUnknown,
		},
		{
			name:    "api client",
			ua:      "curl/8.4.0",
			browser: "Unknown", os: "Unknown", typ: DeviceUnknown,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Classify(tc.ua)
			if d.Browser != tc.browser || d.OS != tc.os || d.Type != tc.typ {
				t.Fatalf("got browser=%s os=%s type=%s, want %s/%s/%s", d.Browser, d.OS, d.Type, tc.browser, tc.os, tc.typ)
			}
			if d.Name != tc.browser+" on "+tc.os {
				t.Fatalf("unexpected device name %q", d.Name)
			}
		})
	}
}
