// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"net/http"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrBlocked signals that the remote site served a bot challenge or
// rate-limited the session. Traversals stop on it and keep what they have.
var ErrBlocked = eris.New("blocked by remote site")

// BlockType describes the kind of block detected.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockRateLimit  BlockType = "rate_limit"
	BlockCaptcha    BlockType = "captcha"
	BlockCloudflare BlockType = "cloudflare"
)

// BlockKeywords are lowercased page fragments that indicate a bot
// challenge. They are deliberately broad.
var BlockKeywords = []string{
	"unusual traffic",
	"captcha",
	"robot",
	"automated",
	"verify you're not a robot",
}

// DetectBlock checks a response for signs of anti-bot protection.
func DetectBlock(status int, header http.Header, body []byte) (bool, BlockType) {
	if status == http.StatusTooManyRequests {
		return true, BlockRateLimit
	}

	if status == http.StatusForbidden || status == http.StatusServiceUnavailable {
		if header.Get("cf-ray") != "" || strings.EqualFold(header.Get("server"), "cloudflare") {
			return true, BlockCloudflare
		}
	}

	lower := strings.ToLower(string(body))
	if strings.Contains(lower, "checking your browser") || strings.Contains(lower, "cf-browser-verification") {
		return true, BlockCloudflare
	}
	for _, kw := range BlockKeywords {
		if strings.Contains(lower, kw) {
			return true, BlockCaptcha
		}
	}
	return false, BlockNone
}
