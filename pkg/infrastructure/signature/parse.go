package signature

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// The patterns below follow the provider's minified bundle as currently
// published. They break silently when the bundle layout changes.
var (
	bundleSrcRe = regexp.MustCompile(`(?i)^https://d-assets\.2gis\.ru/app\.[a-z0-9]+\.js$`)
	bundleRawRe = regexp.MustCompile(`(?i)src="(https://d-assets\.2gis\.ru/app\.[a-z0-9]+\.js)"`)
	arrayRe     = regexp.MustCompile(`const\s+m\s*=\s*\[([^\]]+)\]`)
	saltRe      = regexp.MustCompile(`class\s+\w+\s*\{[\s\S]*?constructor\s*\(([^)]*)\)\s*\{([\s\S]*?)this\.KEY\s*=\s*t\.webApiKey\s*,\s*this\.a\s*=\s*["'` + "`" + `]([^"'` + "`" + `]+)["'` + "`" + `]`)
	leadingInt  = regexp.MustCompile(`^[+-]?\d+`)
)

// FindBundleURL returns the versioned application script referenced by the landing page
func FindBundleURL(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err == nil {
		var found string
		doc.Find("script[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			src, _ := s.Attr("src")
			if bundleSrcRe.MatchString(src) {
				found = src
				return false
			}
			return true
		})
		if found != "" {
			return found
		}
	}

	// preload links and inline loaders still carry the src attribute text
	if m := bundleRawRe.FindStringSubmatch(html); m != nil {
		return m[1]
	}
	return ""
}

// ParseMultipliers extracts the hash multiplier and increment from the
// "const m = [a, b, c, d]" declaration: multiplier = a + d, increment = b + c.
func ParseMultipliers(script string) (multiplier, increment uint32, ok bool) {
	m := arrayRe.FindStringSubmatch(script)
	if m == nil {
		return 0, 0, false
	}

	var values []int64
	for _, part := range strings.Split(m[1], ",") {
		digits := leadingInt.FindString(strings.TrimSpace(part))
		if digits == "" {
			return 0, 0, false
		}
		v, err := strconv.ParseInt(digits, 10, 64)
		if err != nil {
			return 0, 0, false
		}
		values = append(values, v)
	}
	if len(values) < 4 {
		return 0, 0, false
	}

	return uint32(values[0] + values[3]), uint32(values[1] + values[2]), true
}

// ParseSalt extracts the salt assigned next to the web API key in the client class constructor
func ParseSalt(script string) (string, bool) {
	m := saltRe.FindStringSubmatch(script)
	if m == nil {
		return "", false
	}
	return m[3], true
}
