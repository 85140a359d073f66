package referral

import (
	"strings"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payload := EncodePayload("Ab3dEf9hIj2LmN4p", "summer")
	if payload != "ref__Ab3dEf9hIj2LmN4p__cmp-summer" {
		t.Fatalf("unexpected payload: %s", payload)
	}

	decoded := DecodePayload(payload)
	if !decoded.IsReferral {
		t.Fatalf("expected referral payload, got %+v", decoded)
	}
	if decoded.Code != "Ab3dEf9hIj2LmN4p" {
		t.Fatalf("expected code to round-trip, got %q", decoded.Code)
	}
	if decoded.Campaign != "summer" {
		t.Fatalf("expected campaign to round-trip, got %q", decoded.Campaign)
	}
}

func TestEncodeSanitizesSegments(t *testing.T) {
	payload := EncodePayload(" my code! ", "sum mer?")
	if payload != "ref__mycode__cmp-summer" {
		t.Fatalf("unexpected sanitized payload: %s", payload)
	}

	// Only forbidden characters in both segments leaves nothing to encode.
	if got := EncodePayload("!!!", "???"); got != "" {
		t.Fatalf("expected empty payload, got %q", got)
	}
	if got := EncodePayload("", ""); got != "" {
		t.Fatalf("expected empty payload for empty inputs, got %q", got)
	}
}

func TestEncodeTruncates(t *testing.T) {
	long := strings.Repeat("x", 40)
	payload := EncodePayload(long, long)
	if len(payload) > 64 {
		t.Fatalf("payload exceeds 64 chars: %d", len(payload))
	}
	// Each segment is capped at 32 before the final payload cap applies.
	if !strings.HasPrefix(payload, "ref__"+strings.Repeat("x", 32)) {
		t.Fatalf("unexpected truncated payload: %s", payload)
	}
}

func TestEncodeCampaignOnly(t *testing.T) {
	payload := EncodePayload("", "launch")
	if payload != "ref__cmp-launch" {
		t.Fatalf("unexpected payload: %s", payload)
	}

	decoded := DecodePayload(payload)
	if !decoded.IsReferral || decoded.Code != "" || decoded.Campaign != "launch" {
		t.Fatalf("unexpected decode: %+v", decoded)
	}
}

func TestDecodeRejectsNonReferrals(t *testing.T) {
	for _, raw := range []string{"", "not_a_referral_string", "promo__abc", "ref", "ref__", "ref__cmp-"} {
		decoded := DecodePayload(raw)
		if decoded.IsReferral {
			t.Fatalf("%q should not decode as referral: %+v", raw, decoded)
		}
	}
}

func TestDecodeIgnoresExtraSegments(t *testing.T) {
	decoded := DecodePayload("ref__first__second__cmp-tag")
	if decoded.Code != "first" {
		t.Fatalf("expected first non-campaign segment as code, got %q", decoded.Code)
	}
	if decoded.Campaign != "tag" {
		t.Fatalf("expected campaign tag, got %q", decoded.Campaign)
	}
}

func TestBuildLinks(t *testing.T) {
	links := BuildLinks("goldvein_bot", "mine", "ref__abc")
	if links.Bot != "https://t.me/goldvein_bot?start=ref__abc" {
		t.Fatalf("unexpected bot link: %s", links.Bot)
	}
	if links.MiniApp != "https://t.me/goldvein_bot/mine?startapp=ref__abc" {
		t.Fatalf("unexpected mini app link: %s", links.MiniApp)
	}
	if links.Deep != "tg://resolve?domain=goldvein_bot&startapp=ref__abc" {
		t.Fatalf("unexpected deep link: %s", links.Deep)
	}
	if links.Universal != links.MiniApp {
		t.Fatalf("universal link should prefer the mini app form, got %s", links.Universal)
	}
}

func TestBuildLinksWithoutPayload(t *testing.T) {
	links := BuildLinks("goldvein_bot", "mine", "")
	if links.Bot != "https://t.me/goldvein_bot" {
		t.Fatalf("unexpected bot link: %s", links.Bot)
	}
	if links.Universal != "https://t.me/goldvein_bot" {
		t.Fatalf("universal link should fall back to the base bot link, got %s", links.Universal)
	}
}
