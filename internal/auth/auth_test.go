package auth

import (
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestStatus(t *testing.T) {
	t.Parallel()
	now := time.UnixMilli(1_700_000_000_000)
	later := now.Add(time.Hour).UnixMilli()
	earlier := now.Add(-time.Hour).UnixMilli()

	tests := []struct {
		name     string
		raw      string
		state    State
		contains string
	}{
		{"empty", "", StateSignedOut, "not signed in"},
		{"blank", "  \n", StateSignedOut, "not signed in"},
		{"garbage", "{not json", StateUnreadable, "unreadable"},
		{"no token", `{"userId":"ada"}`, StateUnreadable, "unreadable"},
		{"valid", `{"userId":"ada","token":"t","expires":` + itoa(later) + `}`, StateSignedIn, "ada signed in. Expires"},
		{"no expiry", `{"userId":"ada","token":"t"}`, StateSignedIn, "ada signed in"},
		{"expired", `{"userId":"ada","token":"t","expires":` + itoa(earlier) + `}`, StateExpired, "expired"},
		{"anonymous", `{"token":"t"}`, StateSignedIn, "unknown user"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Status(tt.raw, now)
			if got.State != tt.state {
				t.Errorf("State = %q, want %q", got.State, tt.state)
			}
			if !strings.Contains(got.Message, tt.contains) {
				t.Errorf("Message = %q, want it to contain %q", got.Message, tt.contains)
			}
		})
	}
}

func TestStatusExpiryBoundary(t *testing.T) {
	t.Parallel()
	now := time.UnixMilli(1_700_000_000_000)
	got := Status(`{"userId":"ada","token":"t","expires":1700000000000}`, now)
	if got.State != StateExpired {
		t.Fatalf("credential expiring exactly now: State = %q, want expired", got.State)
	}
}

func TestToken(t *testing.T) {
	t.Parallel()
	now := time.UnixMilli(1_700_000_000_000)
	live := `{"userId":"ada","token":"cred-token","expires":` + itoa(now.Add(time.Hour).UnixMilli()) + `}`
	stale := `{"userId":"ada","token":"cred-token","expires":` + itoa(now.Add(-time.Hour).UnixMilli()) + `}`

	tests := []struct {
		name, raw, apiKey, want string
	}{
		{"credential wins", live, "key", "cred-token"},
		{"expired falls back", stale, "key", "key"},
		{"unreadable falls back", "nope", " key ", "key"},
		{"nothing", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Token(tt.raw, tt.apiKey, now); got != tt.want {
				t.Errorf("Token = %q, want %q", got, tt.want)
			}
		})
	}
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }
