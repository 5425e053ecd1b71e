package fetcher

import "strings"

// ChallengeKind identifies a bot-protection interstitial.
type ChallengeKind string

const (
	ChallengeNone       ChallengeKind = ""
	ChallengeCloudflare ChallengeKind = "cloudflare"
	ChallengeTurnstile  ChallengeKind = "turnstile"
	ChallengeReCaptcha  ChallengeKind = "recaptcha"
	ChallengeHCaptcha   ChallengeKind = "hcaptcha"
)

var cloudflareMarkers = []string{
	"<title>just a moment",
	"checking your browser",
	"cf-browser-verification",
	"cf_chl_opt",
	"challenge-platform",
	"attention required! | cloudflare",
}

// DetectChallenge checks a page for common bot-challenge indicators.
// Only small pages are inspected; real articles that merely embed a
// captcha widget in a comment form are not challenge pages.
func DetectChallenge(html string) ChallengeKind {
	if len(html) > 64*1024 {
		return ChallengeNone
	}
	lower := strings.ToLower(html)

	for _, m := range cloudflareMarkers {
		if strings.Contains(lower, m) {
			return ChallengeCloudflare
		}
	}
	if strings.Contains(lower, "cf-turnstile") {
		return ChallengeTurnstile
	}
	if strings.Contains(lower, "g-recaptcha") && strings.Contains(lower, "data-sitekey") {
		return ChallengeReCaptcha
	}
	if strings.Contains(lower, "h-captcha") && strings.Contains(lower, "data-sitekey") {
		return ChallengeHCaptcha
	}
	return ChallengeNone
}
