package referral

import (
	"net/url"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Start-parameter grammar: "ref" plus optional code and campaign segments,
// joined by "__", campaign prefixed with "cmp-". Example:
// "ref__Ab3dEf9hIj2LmN4p__cmp-summer".
const (
	payloadMarker    = "ref"
	payloadSeparator = "__"
	campaignPrefix   = "cmp-"

	maxSegmentLength = 32
	maxPayloadLength = 64
)

// Payload is a decoded start parameter.
type Payload struct {
	Raw        string
	Code       string
	Campaign   string
	IsReferral bool
}

// EncodePayload builds the start-parameter string for a code and an optional
// campaign tag. Returns "" when nothing survives sanitization.
func EncodePayload(code, campaign string) string {
	code = sanitizeSegment(code)
	campaign = sanitizeSegment(campaign)
	if code == "" && campaign == "" {
		return ""
	}

	parts := []string{payloadMarker}
	if code != "" {
		parts = append(parts, code)
	}
	if campaign != "" {
		parts = append(parts, campaignPrefix+campaign)
	}

	payload := strings.Join(parts, payloadSeparator)
	if len(payload) > maxPayloadLength {
		payload = payload[:maxPayloadLength]
	}
	return payload
}

// DecodePayload parses a start parameter. Anything that does not begin with
// the "ref" marker, or carries neither code nor campaign, is not a referral.
func DecodePayload(raw string) Payload {
	p := Payload{Raw: raw}
	if raw == "" {
		return p
	}

	segments := strings.Split(raw, payloadSeparator)
	if segments[0] != payloadMarker {
		return p
	}

	for _, segment := range segments[1:] {
		if strings.HasPrefix(segment, campaignPrefix) {
			if p.Campaign == "" {
				p.Campaign = strings.TrimPrefix(segment, campaignPrefix)
			}
			continue
		}
		if segment != "" && p.Code == "" {
			p.Code = segment
		}
	}

	p.IsReferral = p.Code != "" || p.Campaign != ""
	return p
}

// sanitizeSegment NFKC-normalizes, drops whitespace, keeps [a-zA-Z0-9_-] and
// caps the result at 32 characters.
func sanitizeSegment(s string) string {
	s = norm.NFKC.String(s)

	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
	}

	out := b.String()
	if len(out) > maxSegmentLength {
		out = out[:maxSegmentLength]
	}
	return out
}

// Links are the shareable URL variants for a referral payload.
type Links struct {
	Bot       string `json:"bot"`
	MiniApp   string `json:"miniApp"`
	Deep      string `json:"deep"`
	Universal string `json:"universal"`
}

// BuildLinks derives the share links for an encoded payload. With an empty
// payload the base links are returned unmodified.
func BuildLinks(botUsername, appName, payload string) Links {
	botLink := "https://t.me/" + botUsername
	appLink := botLink + "/" + appName
	deepLink := "tg://resolve?domain=" + botUsername

	if payload == "" {
		return Links{
			Bot:       botLink,
			MiniApp:   appLink,
			Deep:      deepLink,
			Universal: botLink,
		}
	}

	escaped := url.QueryEscape(payload)
	return Links{
		Bot:       botLink + "?start=" + escaped,
		MiniApp:   appLink + "?startapp=" + escaped,
		Deep:      deepLink + "&startapp=" + escaped,
		Universal: appLink + "?startapp=" + escaped,
	}
}
