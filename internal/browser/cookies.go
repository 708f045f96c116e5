// Package browser reads cookies from locally installed browser profiles so
// authenticated pages can be crawled with the user's session.
package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/browserutils/kooky"
	_ "github.com/browserutils/kooky/browser/all"
)

type Profile string

const (
	ProfileNone    Profile = ""
	ProfileAuto    Profile = "auto"
	ProfileChrome  Profile = "chrome"
	ProfileFirefox Profile = "firefox"
	ProfileSafari  Profile = "safari"
	ProfileZen     Profile = "zen"
)

// ParseProfile accepts the names used in configuration. "none" and "" both
// disable cookie import.
func ParseProfile(s string) (Profile, error) {
	switch p := Profile(strings.ToLower(strings.TrimSpace(s))); p {
	case ProfileNone, "none":
		return ProfileNone, nil
	case ProfileAuto, ProfileChrome, ProfileFirefox, ProfileSafari, ProfileZen:
		return p, nil
	default:
		return ProfileNone, fmt.Errorf("unknown browser profile %q", s)
	}
}

type CookieExtractor struct {
	profile Profile
	now     func() time.Time
}

func NewCookieExtractor(profile Profile) *CookieExtractor {
	return &CookieExtractor{profile: profile, now: time.Now}
}

// Cookies returns the unexpired cookies the profile holds for targetURL's
// host. In auto mode the first browser that has any wins.
func (ce *CookieExtractor) Cookies(ctx context.Context, targetURL string) ([]*http.Cookie, error) {
	if ce.profile == ProfileNone {
		return nil, nil
	}
	parsedURL, err := url.Parse(targetURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	host := parsedURL.Hostname()

	byBrowser := map[Profile][]*http.Cookie{}
	for cookie, err := range kooky.TraverseCookies(ctx) {
		if err != nil || cookie == nil {
			continue
		}
		if !matchesDomain(cookie.Domain, host) {
			continue
		}
		if !cookie.Expires.IsZero() && cookie.Expires.Before(ce.now()) {
			continue
		}
		p := profileOf(cookie.Browser)
		if p == ProfileNone {
			continue
		}
		byBrowser[p] = append(byBrowser[p], &http.Cookie{
			Name:     cookie.Name,
			Value:    cookie.Value,
			Path:     cookie.Path,
			Domain:   cookie.Domain,
			Expires:  cookie.Expires,
			Secure:   cookie.Secure,
			HttpOnly: cookie.HttpOnly,
		})
	}

	if ce.profile != ProfileAuto {
		return byBrowser[ce.profile], nil
	}
	for _, p := range []Profile{ProfileChrome, ProfileFirefox, ProfileZen, ProfileSafari} {
		if len(byBrowser[p]) > 0 {
			return byBrowser[p], nil
		}
	}
	return nil, nil
}

func profileOf(info kooky.BrowserInfo) Profile {
	if info == nil {
		return ProfileNone
	}
	name := strings.ToLower(info.Browser())
	switch {
	case strings.Contains(name, "zen") || strings.Contains(strings.ToLower(info.FilePath()), "zen"):
		return ProfileZen
	case strings.Contains(name, "chrome") || strings.Contains(name, "chromium"):
		return ProfileChrome
	case strings.Contains(name, "firefox"):
		return ProfileFirefox
	case strings.Contains(name, "safari"):
		return ProfileSafari
	}
	return ProfileNone
}

func matchesDomain(cookieDomain, targetDomain string) bool {
	if cookieDomain == "" || targetDomain == "" {
		return false
	}
	cookieDomain = strings.TrimPrefix(cookieDomain, ".")
	return cookieDomain == targetDomain || strings.HasSuffix(targetDomain, "."+cookieDomain)
}
