package identity

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const secret = "test-secret-with-enough-length"

func TestVerify(t *testing.T) {
	v := NewVerifier(secret)
	good, err := NewIssuer(secret).Issue("user-1", time.Hour)
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	expired := NewIssuer(secret)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _ := expired.Issue("user-1", time.Hour)
	wrongKey, _ := NewIssuer("another-secret-entirely-123").Issue("user-1", time.Hour)
	noSub, _ := NewIssuer(secret).Issue("", time.Hour)
	noExp, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "user-1"}).SignedString([]byte(secret))
	hs512, _ := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Subject: "user-1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(secret))

	tests := []struct {
		name  string
		token string
		ok    bool
	}{
		{"valid", good, true},
		{"expired", old, false},
		{"wrong key", wrongKey, false},
		{"no subject", noSub, false},
		{"no expiry", noExp, false},
		{"other algorithm", hs512, false},
		{"garbage", "not.a.token", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actor, err := v.Verify(tt.token)
			if (err == nil) != tt.ok {
				t.Fatalf("Verify() error = %v, want ok=%v", err, tt.ok)
			}
			if tt.ok && actor.UserID != "user-1" {
				t.Errorf("Verify().UserID = %q, want user-1", actor.UserID)
			}
		})
	}
}

func TestFromRequest(t *testing.T) {
	v := NewVerifier(secret)
	token, _ := NewIssuer(secret).Issue("user-2", time.Hour)

	tests := []struct {
		name   string
		header string
		err    error
		ok     bool
	}{
		{"bearer", "Bearer " + token, nil, true},
		{"lowercase scheme", "bearer " + token, nil, true},
		{"missing", "", ErrNoToken, false},
		{"basic", "Basic dXNlcjpwYXNz", ErrNoToken, false},
		{"empty token", "Bearer ", ErrNoToken, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			actor, err := v.FromRequest(r)
			if (err == nil) != tt.ok {
				t.Fatalf("FromRequest() error = %v, want ok=%v", err, tt.ok)
			}
			if tt.err != nil && !errors.Is(err, tt.err) {
				t.Errorf("FromRequest() error = %v, want %v", err, tt.err)
			}
			if tt.ok && actor.UserID != "user-2" {
				t.Errorf("UserID = %q, want user-2", actor.UserID)
			}
		})
	}
}

func TestContext(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Error("FromContext(empty) ok = true")
	}
	ctx := WithActor(context.Background(), Actor{UserID: "u"})
	if a, ok := FromContext(ctx); !ok || a.UserID != "u" {
		t.Errorf("FromContext() = %+v, %v", a, ok)
	}
}
