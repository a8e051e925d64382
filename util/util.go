package util

import (
	"net/url"
	"strings"
)

// StringInSlice returns true if str is in list.
func StringInSlice(str string, list []string) bool {
	for _, v := range list {
		if v == str {
			return true
		}
	}
	return false
}

// VideoID returns the video id from a Youtube watch or share URL, or
// s itself if it is not such a URL.
func VideoID(s string) string {
	s = strings.TrimSpace(s)
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return s
	}
	host := strings.TrimPrefix(u.Host, "www.")
	switch host {
	case "youtu.be":
		return strings.Trim(u.Path, "/")
	case "youtube.com", "m.youtube.com":
		if v := u.Query().Get("v"); v != "" {
			return v
		}
		// /shorts/<id>, /embed/<id>, /live/<id>
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) == 2 {
			return parts[1]
		}
	}
	return s
}
