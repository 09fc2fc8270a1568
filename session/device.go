package session

import "strings"

// Device type values.
const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
	DeviceUnknown = "unknown"
)

const unknownName = "Unknown"

// Device is the coarse classification of a user-agent string.
type Device struct {
	Type    string
	Name    string
	Browser string
	OS      string
}

type uaRule struct {
	needle string
	label  string
}

// First match wins, in this order.
var browserRules = []uaRule{
	{"edg", "Edge"},
	{"chrome", "Chrome"},
	{"firefox", "Firefox"},
	{"safari", "Safari"},
	{"opera", "Opera"},
}

var osRules = []uaRule{
	{"windows", "Windows"},
	{"mac", "macOS"},
	{"linux", "Linux"},
	{"android", "Android"},
	{"iphone", "iOS"},
	{"ipad", "iOS"},
	{"ios", "iOS"},
}

// Classify derives browser, OS and device type from a user-agent by
// case-insensitive substring matching. It is a display heuristic, not a
// security signal: Android agents contain "linux" and match Linux first.
func Classify(userAgent string) Device {
	ua := strings.ToLower(userAgent)

	d := Device{
		Browser: match(ua, browserRules),
		OS:      match(ua, osRules),
	}

	switch {
	case strings.Contains(ua, "mobile"):
		d.Type = DeviceMobile
	case strings.Contains(ua, "tablet"):
		d.Type = DeviceTablet
	case strings.Contains(ua, "windows"), strings.Contains(ua, "mac"), strings.Contains(ua, "linux"):
		d.Type = DeviceDesktop
	default:
		d.Type = DeviceUnknown
	}

	d.Name = d.Browser + " on " + d.OS
	return d
}

func match(ua string, rules []uaRule) string {
	for _, r := range rules {
		if strings.Contains(ua, r.needle) {
			return r.label
		}
	}
	return unknownName
}
