package websearch

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/blueberrycongee/recall/pkg/types"
)

// parseHTMLResults reads the html.duckduckgo.com result page: each hit is
// an a.result__a followed by an .result__snippet.
func parseHTMLResults(r io.Reader, max int) ([]types.WebSearchResult, error) {
	return collect(r, max, func(n *html.Node) role {
		switch {
		case n.DataAtom == atom.A && hasClass(n, "result__a"):
			return roleTitle
		case hasClass(n, "result__snippet"):
			return roleSnippet
		}
		return roleNone
	})
}

// parseLiteResults reads lite.duckduckgo.com: a.result-link rows followed
// by td.result-snippet rows.
func parseLiteResults(r io.Reader, max int) ([]types.WebSearchResult, error) {
	return collect(r, max, func(n *html.Node) role {
		switch {
		case n.DataAtom == atom.A && hasClass(n, "result-link"):
			return roleTitle
		case n.DataAtom == atom.Td && hasClass(n, "result-snippet"):
			return roleSnippet
		}
		return roleNone
	})
}

type role int

const (
	roleNone role = iota
	roleTitle
	roleSnippet
)

func collect(r io.Reader, max int, classify func(*html.Node) role) ([]types.WebSearchResult, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var results []types.WebSearchResult
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode {
			switch classify(n) {
			case roleTitle:
				href := resolveHref(attr(n, "href"))
				if href == "" || isAd(href) {
					break
				}
				if len(results) == max {
					return false
				}
				results = append(results, types.WebSearchResult{Title: text(n), Href: href})
				return true
			case roleSnippet:
				if len(results) > 0 && results[len(results)-1].Body == "" {
					results[len(results)-1].Body = text(n)
				}
				return true
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if !walk(c) {
				return false
			}
		}
		return true
	}
	walk(doc)
	return results, nil
}

// resolveHref unwraps DuckDuckGo redirect links (/l/?uddg=<target>).
func resolveHref(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme == "" {
		return ""
	}
	return href
}

func isAd(href string) bool {
	return strings.Contains(href, "duckduckgo.com/y.js") || strings.Contains(href, "ad_provider=")
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
