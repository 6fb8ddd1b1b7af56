package filter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Browser is the name and version detected from a user agent.
type Browser struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Unknown is returned when no pattern matches.
var Unknown = Browser{Name: "unknown", Version: "unknown"}

const version = `(\d+(?:\.\d+)*)`

type pattern struct {
	re   *regexp.Regexp
	name string
}

// Most specific first: Chromium derivatives also advertise Chrome and Safari.
var patterns = []pattern{
	{re: regexp.MustCompile(`SamsungBrowser/` + version), name: "SamsungBrowser"},
	{re: regexp.MustCompile(`(?:EdgiOS|EdgA|Edge?)/` + version), name: "Edge"},
	{re: regexp.MustCompile(`OPR/` + version), name: "Opera"},
	{re: regexp.MustCompile(`Vivaldi/` + version), name: "Vivaldi"},
	{re: regexp.MustCompile(`Brave/` + version), name: "Brave"},
	{re: regexp.MustCompile(`CriOS/` + version), name: "Chrome"},
	{re: regexp.MustCompile(`(Chromium|Chrome)/` + version)},
	{re: regexp.MustCompile(`FxiOS/` + version), name: "Firefox"},
	{re: regexp.MustCompile(`(Firefox|Waterfox|IceCat)/` + version)},
	{re: regexp.MustCompile(`Version/` + version + `.*Safari/`), name: "Safari"},
	{re: regexp.MustCompile(`Safari/` + version), name: "Safari"},
	{re: regexp.MustCompile(`(?:MSIE |Trident/.*rv:)` + version), name: "IE"},
	{re: regexp.MustCompile(`(?i)samsung.*Version/` + version), name: "SamsungBrowser"},
	{re: regexp.MustCompile(`([A-Za-z]+)/` + version)},
}

// Detect parses the browser out of a user agent string.
func Detect(userAgent string) Browser {
	for _, p := range patterns {
		m := p.re.FindStringSubmatch(userAgent)
		if m == nil {
			continue
		}
		if p.name != "" {
			return Browser{Name: p.name, Version: m[len(m)-1]}
		}
		return Browser{Name: m[1], Version: m[2]}
	}
	return Unknown
}

// Major returns the leading version number, or -1 when there is none.
func (b Browser) Major() int {
	head, _, _ := strings.Cut(b.Version, ".")
	n, err := strconv.Atoi(head)
	if err != nil {
		return -1
	}
	return n
}

// Matches reports whether b satisfies a rule pattern: either a bare name or
// "name>=N". Names compare case-insensitively.
func (b Browser) Matches(pattern string) bool {
	name, minimum, versioned := strings.Cut(pattern, ">=")
	if !strings.EqualFold(strings.TrimSpace(name), b.Name) {
		return false
	}
	if !versioned {
		return true
	}
	n, err := strconv.Atoi(strings.TrimSpace(minimum))
	if err != nil {
		return false
	}
	major := b.Major()
	return major >= 0 && major >= n
}

func (b Browser) String() string {
	return fmt.Sprintf("%s/%s", b.Name, b.Version)
}
