package discover

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// NormalizeURL standardizes a URL so the same page is only queued once.
// It lowercases the scheme and host, drops default ports and the fragment,
// and sorts query parameters.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.Scheme == "http" && strings.HasSuffix(u.Host, ":80") {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" && strings.HasSuffix(u.Host, ":443") {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}
	if u.Path == "" {
		u.Path = "/"
	}
	u.Fragment = ""
	u.RawFragment = ""
	u.RawQuery = u.Query().Encode()

	return u.String(), nil
}

// resolve turns href into a normalized absolute http(s) URL relative to base.
func resolve(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	normalized, err := NormalizeURL(abs.String())
	if err != nil {
		return "", false
	}
	return normalized, true
}

// siteHost strips a leading "www." so www and apex hosts count as one site.
func siteHost(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}

// SameSite reports whether rawURL lives on the site rooted at rootHost.
func SameSite(rootHost, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return siteHost(u.Host) == siteHost(rootHost)
}

var skippedExtensions = map[string]struct{}{
	".pdf": {}, ".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".svg": {}, ".webp": {},
	".css": {}, ".js": {}, ".zip": {}, ".mp4": {}, ".mp3": {}, ".xml": {}, ".ico": {},
}

// isAsset reports whether the URL path names a non-HTML resource.
func isAsset(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	_, skip := skippedExtensions[strings.ToLower(path.Ext(u.Path))]
	return skip
}

var articleMarkers = []string{"/blog/", "/post/", "/article/", "/news/", "/guide/", "/page/", "/category/"}

// IsArticle reports whether the URL path looks like editorial content.
func IsArticle(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, m := range articleMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
