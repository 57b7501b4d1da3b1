package bypass

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/FranksOps/serpent/pkg/httpclient"
)

// Detector examines a response and reports whether a bot protection
// mechanism challenged or blocked the request, and by whom.
type Detector func(res *httpclient.Response) (detected bool, source string)

// DefaultDetectors returns the standard list of challenge detectors. The
// search engine's own interstitial is checked first.
func DefaultDetectors() []Detector {
	return []Detector{
		detectGoogleSorry,
		detectCloudflare,
		detectAkamai,
		detectDataDome,
		detectPerimeterX,
	}
}

// Analyze runs res through detectors and returns the first matching source,
// or "" when the page looks like an ordinary response.
func Analyze(res *httpclient.Response, detectors []Detector) string {
	if res == nil {
		return ""
	}
	for _, d := range detectors {
		if detected, source := d(res); detected {
			return source
		}
	}
	return ""
}

func getHeader(headers http.Header, key string) string {
	if headers == nil {
		return ""
	}
	return headers.Get(key)
}

// detectGoogleSorry matches the "unusual traffic" interstitial served from
// /sorry/, usually with 429 but sometimes with 200 after a redirect.
func detectGoogleSorry(res *httpclient.Response) (bool, string) {
	if strings.Contains(res.URL, "/sorry/") {
		return true, "GoogleSorry"
	}
	if bytes.Contains(res.Body, []byte("unusual traffic from your computer network")) ||
		bytes.Contains(res.Body, []byte("/sorry/index")) {
		return true, "GoogleSorry"
	}
	if res.StatusCode == http.StatusTooManyRequests && bytes.Contains(res.Body, []byte("g-recaptcha")) {
		return true, "GoogleSorry"
	}
	return false, ""
}

// detectCloudflare looks for common Cloudflare challenge/block signatures.
func detectCloudflare(res *httpclient.Response) (bool, string) {
	if res.StatusCode == http.StatusForbidden || res.StatusCode == http.StatusServiceUnavailable {
		server := strings.ToLower(getHeader(res.Header, "Server"))
		if strings.Contains(server, "cloudflare") {
			return true, "Cloudflare"
		}

		if bytes.Contains(res.Body, []byte("cf-browser-verification")) ||
			bytes.Contains(res.Body, []byte("cloudflare-nginx")) ||
			bytes.Contains(res.Body, []byte("cf-turnstile")) ||
			bytes.Contains(res.Body, []byte("Attention Required! | Cloudflare")) {
			return true, "Cloudflare"
		}
	}
	return false, ""
}

// detectAkamai looks for Akamai Bot Manager signatures.
func detectAkamai(res *httpclient.Response) (bool, string) {
	if res.StatusCode == http.StatusForbidden {
		server := strings.ToLower(getHeader(res.Header, "Server"))
		if strings.Contains(server, "akamai") {
			return true, "Akamai"
		}
		if bytes.Contains(res.Body, []byte("Reference #")) && bytes.Contains(res.Body, []byte("Access Denied")) {
			return true, "Akamai"
		}
	}
	return false, ""
}

// detectDataDome looks for DataDome challenge/block signatures.
func detectDataDome(res *httpclient.Response) (bool, string) {
	if res.StatusCode == http.StatusForbidden {
		server := strings.ToLower(getHeader(res.Header, "Server"))
		if strings.Contains(server, "datadome") {
			return true, "DataDome"
		}
		if getHeader(res.Header, "X-DataDome") != "" || getHeader(res.Header, "X-DataDome-Response") != "" {
			return true, "DataDome"
		}
		if bytes.Contains(res.Body, []byte("geo.captcha-delivery.com")) || bytes.Contains(res.Body, []byte("datadome")) {
			return true, "DataDome"
		}
	}
	return false, ""
}

// detectPerimeterX looks for PerimeterX (HUMAN) signatures.
func detectPerimeterX(res *httpclient.Response) (bool, string) {
	if res.StatusCode == http.StatusForbidden {
		if getHeader(res.Header, "X-Px-Captcha") != "" {
			return true, "PerimeterX"
		}
		if bytes.Contains(res.Body, []byte("client.perimeterx.net")) ||
			bytes.Contains(res.Body, []byte("px-captcha")) ||
			bytes.Contains(res.Body, []byte("_pxBlock")) {
			return true, "PerimeterX"
		}
	}
	return false, ""
}
