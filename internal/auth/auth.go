// Package auth interprets the stored ArcGIS credential.
//
// Signing in happens outside arcsync; the credential is the JSON object the
// identity SDK serializes (userId, token, expires in epoch milliseconds) and
// is kept verbatim in the config file.
package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// State classifies a stored credential.
type State string

const (
	StateSignedOut  State = "signed_out"
	StateSignedIn   State = "signed_in"
	StateExpired    State = "expired"
	StateUnreadable State = "unreadable"
)

// Credential is the subset of the serialized identity credential arcsync reads.
type Credential struct {
	UserID  string `json:"userId"`
	Token   string `json:"token"`
	Server  string `json:"server,omitempty"`
	Expires int64  `json:"expires,omitempty"`
}

// ExpiresAt returns the expiry time, or the zero time if none is recorded.
func (c Credential) ExpiresAt() time.Time {
	if c.Expires <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(c.Expires)
}

// Parse decodes a serialized credential. Blank input is an error.
func Parse(raw string) (*Credential, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty credential")
	}
	var c Credential
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, fmt.Errorf("decode credential: %w", err)
	}
	if c.Token == "" {
		return nil, fmt.Errorf("credential has no token")
	}
	return &c, nil
}

// DisplayStatus is what a settings surface shows about the credential.
type DisplayStatus struct {
	State     State     `json:"state"`
	UserID    string    `json:"user_id,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	Message   string    `json:"message"`
}

// Status maps the stored credential to its display status at time now.
func Status(raw string, now time.Time) DisplayStatus {
	if strings.TrimSpace(raw) == "" {
		return DisplayStatus{State: StateSignedOut, Message: "not signed in"}
	}
	c, err := Parse(raw)
	if err != nil {
		return DisplayStatus{State: StateUnreadable, Message: "not signed in (stored credential is unreadable)"}
	}

	st := DisplayStatus{UserID: c.UserID, ExpiresAt: c.ExpiresAt()}
	user := c.UserID
	if user == "" {
		user = "unknown user"
	}
	switch {
	case st.ExpiresAt.IsZero():
		st.State = StateSignedIn
		st.Message = fmt.Sprintf("%s signed in", user)
	case !now.Before(st.ExpiresAt):
		st.State = StateExpired
		st.Message = fmt.Sprintf("%s's sign-in expired %s", user, st.ExpiresAt.Local().Format(time.DateTime))
	default:
		st.State = StateSignedIn
		st.Message = fmt.Sprintf("%s signed in. Expires %s", user, st.ExpiresAt.Local().Format(time.DateTime))
	}
	return st
}

// Token picks the request token: a live credential's token, else the API key.
// An expired credential falls back to the API key.
func Token(rawCredential, apiKey string, now time.Time) string {
	if c, err := Parse(rawCredential); err == nil {
		exp := c.ExpiresAt()
		if exp.IsZero() || now.Before(exp) {
			return c.Token
		}
	}
	return strings.TrimSpace(apiKey)
}
