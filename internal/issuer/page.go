package issuer

import (
	"strings"

	"golang.org/x/net/html"
)

// Verdict is the classification of the page shown after submitting the form.
type Verdict int

const (
	VerdictUnknown Verdict = iota
	VerdictIssued
	VerdictRefused
)

// String returns the string representation of Verdict
func (v Verdict) String() string {
	switch v {
	case VerdictIssued:
		return "ISSUED"
	case VerdictRefused:
		return "REFUSED"
	default:
		return "UNKNOWN"
	}
}

// SiteKey returns the value of the first data-sitekey attribute in the
// document, or "" when the page has no captcha widget.
func SiteKey(document string) string {
	root, err := html.Parse(strings.NewReader(document))
	if err != nil {
		return ""
	}

	var key string
	var walk func(n *html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode {
			for _, attr := range n.Attr {
				if attr.Key == "data-sitekey" && strings.TrimSpace(attr.Val) != "" {
					key = strings.TrimSpace(attr.Val)
					return true
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(root)
	return key
}

// VisibleText returns the text content of the document with scripts and
// styles removed and whitespace collapsed.
func VisibleText(document string) string {
	root, err := html.Parse(strings.NewReader(document))
	if err != nil {
		return ""
	}

	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "head":
				return
			}
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				parts = append(parts, text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

// Classify looks for refusal markers first, then success markers, in the
// visible text. It returns the verdict and the marker that matched.
func Classify(document string, successMarkers, failureMarkers []string) (Verdict, string) {
	text := strings.ToLower(VisibleText(document))

	for _, marker := range failureMarkers {
		if marker != "" && strings.Contains(text, strings.ToLower(marker)) {
			return VerdictRefused, marker
		}
	}
	for _, marker := range successMarkers {
		if marker != "" && strings.Contains(text, strings.ToLower(marker)) {
			return VerdictIssued, marker
		}
	}
	return VerdictUnknown, ""
}
