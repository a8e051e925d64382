package loaders

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	. "github.com/stevegt/goadapt"
	"golang.org/x/net/html"
)

// DefaultUserAgent is sent by Site.  Some sites answer a bare Go
// client with a challenge page.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// Site fetches a web page and returns its visible text.
type Site struct {
	HTTPClient *http.Client
	UserAgent  string
}

// skipped elements never contribute text.
var skipped = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
}

// Extract fetches url and returns the page text, one non-empty line
// per text run.  A non-2xx response is an error unless its body is a
// challenge page, which is returned as text.
func (s *Site) Extract(ctx context.Context, url string) (text string, err error) {
	defer Return(&err)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	Ck(err)
	ua := s.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	hc := s.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	Ck(err)
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// anti-bot challenges come back as 403/503; their text is
		// kept so the model can ask for a reload
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		txt, _ := htmlText(strings.NewReader(string(body)))
		if IsChallengePage(txt) {
			Debug("site %s returned %d with a challenge page", url, resp.StatusCode)
			return txt, nil
		}
		err = fmt.Errorf("fetching %s: %s", url, resp.Status)
		return
	}
	text, err = htmlText(resp.Body)
	Ck(err)
	return
}

// htmlText parses an HTML document and returns its text nodes.
func htmlText(r io.Reader) (text string, err error) {
	defer Return(&err)
	doc, err := html.Parse(r)
	Ck(err)
	var lines []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skipped[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			line := strings.Join(strings.Fields(n.Data), " ")
			if line != "" {
				lines = append(lines, line)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	text = strings.Join(lines, "\n")
	return
}
