// Package telegram validates Mini App init data: the signed query string the
// Telegram client hands to a Mini App, proving which user launched it.
package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMissingInitData  = errors.New("init data is missing")
	ErrMissingHash      = errors.New("init data has no hash")
	ErrInvalidSignature = errors.New("init data signature is invalid")
	ErrStaleInitData    = errors.New("init data is too old")
	ErrMissingUser      = errors.New("init data has no user")
	ErrNotConfigured    = errors.New("bot token is not configured")
)

// User is the profile Telegram embeds in init data.
type User struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
	IsPremium    bool   `json:"is_premium,omitempty"`
}

// Key returns the user id as the opaque string the stores key on.
func (u User) Key() string {
	return strconv.FormatInt(u.ID, 10)
}

// InitData is a parsed, trusted init data payload.
type InitData struct {
	User       User
	AuthDate   time.Time
	QueryID    string
	StartParam string
	Raw        string
}

// Verifier checks init data signatures. The secret key is SHA256 of the bot
// token; the signature is HMAC-SHA256 over the sorted data-check string.
type Verifier struct {
	secret []byte
	maxAge time.Duration
}

func NewVerifier(botToken string) *Verifier {
	v := &Verifier{maxAge: 24 * time.Hour}
	if botToken != "" {
		sum := sha256.Sum256([]byte(botToken))
		v.secret = sum[:]
	}
	return v
}

// Configured reports whether a bot token was provided. An unconfigured
// verifier cannot verify anything; callers decide whether that is fatal.
func (v *Verifier) Configured() bool {
	return v.secret != nil
}

// Verify authenticates raw init data and returns the parsed identity.
func (v *Verifier) Verify(raw string, now time.Time) (*InitData, error) {
	if !v.Configured() {
		return nil, ErrNotConfigured
	}
	if raw == "" {
		return nil, ErrMissingInitData
	}

	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingInitData, err)
	}

	providedHash := values.Get("hash")
	if providedHash == "" {
		return nil, ErrMissingHash
	}

	// Data-check string: every key=value pair except hash, sorted, joined
	// with newlines. Values are the decoded forms.
	pairs := make([]string, 0, len(values))
	for key, vals := range values {
		if key == "hash" {
			continue
		}
		for _, val := range vals {
			pairs = append(pairs, key+"="+val)
		}
	}
	sort.Strings(pairs)

	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(strings.Join(pairs, "\n")))
	want := mac.Sum(nil)

	got, err := hex.DecodeString(providedHash)
	if err != nil || !hmac.Equal(want, got) {
		return nil, ErrInvalidSignature
	}

	data, err := parseInitData(values, raw)
	if err != nil {
		return nil, err
	}

	if v.maxAge > 0 {
		if data.AuthDate.IsZero() || now.Sub(data.AuthDate) > v.maxAge {
			return nil, ErrStaleInitData
		}
	}

	return data, nil
}

// ParseUnverified parses init data without checking the signature. Only for
// development setups without a bot token.
func ParseUnverified(raw string) (*InitData, error) {
	if raw == "" {
		return nil, ErrMissingInitData
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingInitData, err)
	}
	return parseInitData(values, raw)
}

func parseInitData(values url.Values, raw string) (*InitData, error) {
	userJSON := values.Get("user")
	if userJSON == "" {
		return nil, ErrMissingUser
	}

	var user User
	if err := json.Unmarshal([]byte(userJSON), &user); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingUser, err)
	}
	if user.ID == 0 {
		return nil, ErrMissingUser
	}

	data := &InitData{
		User:       user,
		QueryID:    values.Get("query_id"),
		StartParam: values.Get("start_param"),
		Raw:        raw,
	}

	if authDate := values.Get("auth_date"); authDate != "" {
		if unix, err := strconv.ParseInt(authDate, 10, 64); err == nil {
			data.AuthDate = time.Unix(unix, 0)
		}
	}

	return data, nil
}
