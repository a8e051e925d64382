package loaders

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	. "github.com/stevegt/goadapt"
	"golang.org/x/net/html"
)

// DefaultWatchURL is the page Youtube fetches to discover caption
// tracks.
const DefaultWatchURL = "https://www.youtube.com/watch"

// Youtube fetches the caption transcript of a video given its id,
// e.g. "OWBT5EEikj8".
type Youtube struct {
	HTTPClient *http.Client
	// WatchURL is the watch page endpoint; the id is passed as ?v=.
	WatchURL string
	// Languages lists preferred caption languages in order.
	Languages []string
}

// captionTrack is one entry of the watch page's captionTracks list.
type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"`
}

// timedText is the XML caption document.
type timedText struct {
	Texts []struct {
		Body string `xml:",chardata"`
	} `xml:"text"`
}

// Extract returns the transcript of video id as one line of text.
func (y *Youtube) Extract(ctx context.Context, id string) (text string, err error) {
	defer Return(&err)
	id = strings.TrimSpace(id)
	Assert(id != "", "video id is required")

	watch := y.WatchURL
	if watch == "" {
		watch = DefaultWatchURL
	}
	page, err := y.get(ctx, Spf("%s?v=%s", watch, url.QueryEscape(id)))
	Ck(err)

	tracks, err := captionTracks(page)
	Ck(err)
	track := y.pick(tracks)
	Debug("youtube %s: using %s captions", id, track.LanguageCode)

	buf, err := y.get(ctx, track.BaseURL)
	Ck(err)
	var tt timedText
	err = xml.Unmarshal([]byte(buf), &tt)
	Ck(err)
	var parts []string
	for _, t := range tt.Texts {
		line := strings.Join(strings.Fields(html.UnescapeString(t.Body)), " ")
		if line != "" {
			parts = append(parts, line)
		}
	}
	if len(parts) == 0 {
		err = fmt.Errorf("video %s: transcript is empty", id)
		return
	}
	text = strings.Join(parts, " ")
	return
}

// captionTracks finds and decodes the captionTracks array embedded in
// a watch page.
func captionTracks(page string) (tracks []captionTrack, err error) {
	defer Return(&err)
	marker := `"captionTracks":`
	i := strings.Index(page, marker)
	if i < 0 {
		err = fmt.Errorf("no captions available for this video")
		return
	}
	// the decoder stops at the end of the array
	dec := json.NewDecoder(strings.NewReader(page[i+len(marker):]))
	err = dec.Decode(&tracks)
	Ck(err)
	if len(tracks) == 0 {
		err = fmt.Errorf("no captions available for this video")
	}
	return
}

// pick returns the first track in a preferred language, else the
// first track.
func (y *Youtube) pick(tracks []captionTrack) captionTrack {
	for _, lang := range y.Languages {
		for _, t := range tracks {
			if t.LanguageCode == lang {
				return t
			}
		}
	}
	return tracks[0]
}

func (y *Youtube) get(ctx context.Context, u string) (body string, err error) {
	defer Return(&err)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	Ck(err)
	req.Header.Set("User-Agent", DefaultUserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	hc := y.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	Ck(err)
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err = fmt.Errorf("GET %s: %s", u, resp.Status)
		return
	}
	buf, err := io.ReadAll(resp.Body)
	Ck(err)
	body = string(buf)
	return
}
