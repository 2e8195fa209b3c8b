package tracking

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var hrefPattern = regexp.MustCompile(`href="([^"]+)"`)

// Instrumenter rewrites outgoing HTML so opens and clicks route through the
// public tracking endpoints.
type Instrumenter struct {
	codec   *Codec
	baseURL string
}

// NewInstrumenter builds an Instrumenter. baseURL is the public origin of the
// tracking endpoints, e.g. https://api.example.com.
func NewInstrumenter(codec *Codec, baseURL string) (*Instrumenter, error) {
	if codec == nil {
		return nil, fmt.Errorf("token codec is required")
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("tracking base url is required")
	}
	return &Instrumenter{codec: codec, baseURL: baseURL}, nil
}

// Instrument wraps every href in html with the click redirect and appends the
// open pixel. mailto: links and fragment anchors are left alone.
func (i *Instrumenter) Instrument(html, recipientID, campaignID string) (string, error) {
	token, err := i.codec.Sign(recipientID, campaignID)
	if err != nil {
		return "", err
	}

	clickBase := fmt.Sprintf("%s/track/click?r=%s&url=", i.baseURL, url.QueryEscape(token))
	wrapped := hrefPattern.ReplaceAllStringFunc(html, func(match string) string {
		target := hrefPattern.FindStringSubmatch(match)[1]
		if strings.HasPrefix(target, "mailto:") || strings.HasPrefix(target, "#") {
			return match
		}
		return `href="` + clickBase + url.QueryEscape(target) + `"`
	})

	pixel := fmt.Sprintf(`<img src="%s/track/open?r=%s" width="1" height="1" alt="" />`, i.baseURL, url.QueryEscape(token))
	return wrapped + pixel, nil
}
