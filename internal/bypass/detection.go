package bypass

import (
	"bytes"
	"net/http"
	"strings"
)

// Response is the part of a fetched page the detectors look at.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Detector reports whether a response is a bot challenge or block page, and
// which vendor served it.
type Detector func(res *Response) (detected bool, source string)

// DefaultDetectors returns the detectors for the walls the search engine and
// the Q&A host are known to put up.
func DefaultDetectors() []Detector {
	return []Detector{
		detectGoogleSorry,
		detectCloudflare,
		detectAkamai,
		detectDataDome,
	}
}

// Analyze runs res through detectors and returns the first vendor that
// matched, or "" when none did.
func Analyze(res *Response, detectors []Detector) string {
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

// detectGoogleSorry matches the "unusual traffic" interstitial Google serves
// to clients it suspects of automation.
func detectGoogleSorry(res *Response) (bool, string) {
	if res.StatusCode != http.StatusTooManyRequests && res.StatusCode != http.StatusServiceUnavailable {
		return false, ""
	}
	if bytes.Contains(res.Body, []byte("/sorry/index")) ||
		bytes.Contains(res.Body, []byte("detected unusual traffic")) ||
		bytes.Contains(res.Body, []byte("g-recaptcha")) {
		return true, "Google"
	}
	return false, ""
}

func detectCloudflare(res *Response) (bool, string) {
	if res.StatusCode != http.StatusForbidden && res.StatusCode != http.StatusServiceUnavailable {
		return false, ""
	}
	if strings.Contains(strings.ToLower(res.Header.Get("Server")), "cloudflare") {
		return true, "Cloudflare"
	}
	if bytes.Contains(res.Body, []byte("cf-browser-verification")) ||
		bytes.Contains(res.Body, []byte("cf-turnstile")) ||
		bytes.Contains(res.Body, []byte("Just a moment...")) ||
		bytes.Contains(res.Body, []byte("Attention Required! | Cloudflare")) {
		return true, "Cloudflare"
	}
	return false, ""
}

func detectAkamai(res *Response) (bool, string) {
	if res.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if strings.Contains(strings.ToLower(res.Header.Get("Server")), "akamai") {
		return true, "Akamai"
	}
	// Akamai's generic block page
	if bytes.Contains(res.Body, []byte("Reference #")) && bytes.Contains(res.Body, []byte("Access Denied")) {
		return true, "Akamai"
	}
	return false, ""
}

func detectDataDome(res *Response) (bool, string) {
	if res.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if res.Header.Get("X-DataDome") != "" || res.Header.Get("X-DataDome-Response") != "" {
		return true, "DataDome"
	}
	if bytes.Contains(res.Body, []byte("geo.captcha-delivery.com")) {
		return true, "DataDome"
	}
	return false, ""
}
