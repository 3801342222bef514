package dispatch

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var hrefPattern = regexp.MustCompile(`href="([^"]*)"`)

// TrackingInjector rewrites rendered HTML so opens and clicks flow back
// through the tracking endpoints. Injection is idempotent: running it twice
// over the same body changes nothing the second time.
type TrackingInjector struct {
	baseURL string
}

// NewTrackingInjector creates an injector rooted at the public tracking
// origin, e.g. "https://track.example.com".
func NewTrackingInjector(baseURL string) *TrackingInjector {
	return &TrackingInjector{baseURL: strings.TrimRight(baseURL, "/")}
}

// Inject tags every outbound link with UTM parameters, wraps it in a click
// redirect keyed by the send id, and appends an open pixel before </body>.
// Links that are already tracking redirects, unsubscribe links, or
// mailto:/tel: links are left alone.
func (ti *TrackingInjector) Inject(html string, campaignID, sendID uuid.UUID) string {
	out := hrefPattern.ReplaceAllStringFunc(html, func(match string) string {
		raw := match[len(`href="`) : len(match)-1]
		rewritten := ti.rewriteLink(raw, campaignID, sendID)
		return `href="` + rewritten + `"`
	})
	return ti.appendPixel(out, sendID)
}

func (ti *TrackingInjector) rewriteLink(raw string, campaignID, sendID uuid.UUID) string {
	if raw == "" {
		return raw
	}
	lower := strings.ToLower(raw)
	switch {
	case strings.HasPrefix(lower, "mailto:"), strings.HasPrefix(lower, "tel:"):
		return raw
	case strings.HasPrefix(raw, ti.baseURL+"/track/"):
		return raw
	case !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://"):
		// anchors, relative paths, template leftovers
		return raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if strings.Contains(strings.ToLower(u.Path), "unsubscribe") {
		return raw
	}

	q := u.Query()
	q.Set("utm_source", "email-provider")
	q.Set("utm_medium", "email")
	q.Set("utm_campaign", campaignID.String())
	u.RawQuery = q.Encode()

	return fmt.Sprintf("%s/track/click?eid=%s&url=%s", ti.baseURL, sendID, url.QueryEscape(u.String()))
}

// UnsubscribeURL returns the per-send unsubscribe link exposed to templates
// as {{ unsubscribe_url }}.
func (ti *TrackingInjector) UnsubscribeURL(sendID uuid.UUID) string {
	return fmt.Sprintf("%s/track/unsubscribe?eid=%s", ti.baseURL, sendID)
}

func (ti *TrackingInjector) appendPixel(html string, sendID uuid.UUID) string {
	pixelURL := fmt.Sprintf("%s/track/open?eid=%s", ti.baseURL, sendID)
	if strings.Contains(html, pixelURL) {
		return html
	}
	pixel := fmt.Sprintf(`<img src="%s" width="1" height="1" alt="" style="display:none;">`, pixelURL)
	if idx := strings.LastIndex(strings.ToLower(html), "</body>"); idx >= 0 {
		return html[:idx] + pixel + html[idx:]
	}
	return html + pixel
}
