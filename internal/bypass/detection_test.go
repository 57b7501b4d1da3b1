package bypass

import (
	"net/http"
	"testing"

	"github.com/FranksOps/serpent/pkg/httpclient"
)

func resp(status int, header http.Header, body string) *httpclient.Response {
	return &httpclient.Response{
		URL:        "https://www.google.com/search?q=test",
		StatusCode: status,
		Header:     header,
		Body:       []byte(body),
	}
}

func TestDetectGoogleSorry(t *testing.T) {
	if detected, _ := detectGoogleSorry(resp(200, nil, `<div class="g">ok</div>`)); detected {
		t.Errorf("expected ordinary SERP not to be detected")
	}

	redirected := resp(200, nil, "")
	redirected.URL = "https://www.google.com/sorry/index?continue=https://www.google.com/search"
	if detected, src := detectGoogleSorry(redirected); !detected || src != "GoogleSorry" {
		t.Errorf("expected detection by /sorry/ URL")
	}

	body := "Our systems have detected unusual traffic from your computer network."
	if detected, src := detectGoogleSorry(resp(429, nil, body)); !detected || src != "GoogleSorry" {
		t.Errorf("expected detection by body text")
	}

	if detected, _ := detectGoogleSorry(resp(429, nil, `<div class="g-recaptcha"></div>`)); !detected {
		t.Errorf("expected detection of recaptcha on 429")
	}
}

func TestDetectCloudflare(t *testing.T) {
	if detected, _ := detectCloudflare(resp(200, http.Header{"Server": {"nginx"}}, "OK")); detected {
		t.Errorf("expected not detected")
	}
	if detected, src := detectCloudflare(resp(403, http.Header{"Server": {"cloudflare"}}, "")); !detected || src != "Cloudflare" {
		t.Errorf("expected Cloudflare detection by header")
	}
	if detected, src := detectCloudflare(resp(503, nil, "<html>cf-turnstile</html>")); !detected || src != "Cloudflare" {
		t.Errorf("expected Cloudflare detection by body")
	}
}

func TestDetectAkamai(t *testing.T) {
	if detected, src := detectAkamai(resp(403, http.Header{"Server": {"AkamaiGHost"}}, "")); !detected || src != "Akamai" {
		t.Errorf("expected Akamai detection by header")
	}
	if detected, src := detectAkamai(resp(403, nil, "Access Denied... Reference #123.456")); !detected || src != "Akamai" {
		t.Errorf("expected Akamai detection by body")
	}
}

func TestDetectDataDome(t *testing.T) {
	if detected, src := detectDataDome(resp(403, http.Header{"X-Datadome": {"protected"}}, "")); !detected || src != "DataDome" {
		t.Errorf("expected DataDome detection by header")
	}
	if detected, src := detectDataDome(resp(403, nil, "geo.captcha-delivery.com")); !detected || src != "DataDome" {
		t.Errorf("expected DataDome detection by body")
	}
}

func TestDetectPerimeterX(t *testing.T) {
	if detected, src := detectPerimeterX(resp(403, http.Header{"X-Px-Captcha": {"1"}}, "")); !detected || src != "PerimeterX" {
		t.Errorf("expected PerimeterX detection by header")
	}
	if detected, src := detectPerimeterX(resp(403, nil, "<div id=\"px-captcha\"></div>")); !detected || src != "PerimeterX" {
		t.Errorf("expected PerimeterX detection by body")
	}
}

func TestAnalyze(t *testing.T) {
	if src := Analyze(nil, DefaultDetectors()); src != "" {
		t.Errorf("expected empty source for nil response, got %q", src)
	}
	if src := Analyze(resp(200, nil, "fine"), DefaultDetectors()); src != "" {
		t.Errorf("expected no detection, got %q", src)
	}
	if src := Analyze(resp(403, http.Header{"Server": {"cloudflare"}}, ""), DefaultDetectors()); src != "Cloudflare" {
		t.Errorf("expected Cloudflare, got %q", src)
	}
}
