package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tileboardhq/tileboard/pkg/auth"
)

const (
	testJWTSecret    = "jwt-test-secret-minimum-32-characters!!"
	testCookieSecret = "cookie-test-secret-minimum-32-chars!!!!"
)

func newTestResolver() *Resolver {
	return NewResolver(testJWTSecret, testCookieSecret, nil, 30*24*time.Hour, false)
}

func TestResolve_MemberToken(t *testing.T) {
	r := newTestResolver()

	token, err := auth.GenerateJWT("user-123", "m@example.com", "member", testJWTSecret, 1)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	id := r.Resolve(context.Background(), req, "203.0.113.9")

	assert.Equal(t, KindMember, id.Kind)
	assert.True(t, id.IsMember())
	assert.Equal(t, "user-123", id.MemberID)
	assert.Equal(t, "user-123", id.SubjectID())
	assert.Equal(t, "member", id.Plan)
	assert.False(t, id.SetCookie)
}

func TestResolve_InvalidTokenFallsThroughToGuest(t *testing.T) {
	r := newTestResolver()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not.a.jwt")

	id := r.Resolve(context.Background(), req, "203.0.113.9")

	assert.Equal(t, KindGuest, id.Kind)
	assert.NotEmpty(t, id.GuestID)
	assert.True(t, id.SetCookie)
}

func TestResolve_ValidGuestCookie(t *testing.T) {
	r := newTestResolver()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: r.CookieValue("abcdef0123456789")})

	id := r.Resolve(context.Background(), req, "203.0.113.9")

	assert.Equal(t, KindGuest, id.Kind)
	assert.Equal(t, "abcdef0123456789", id.GuestID)
	assert.Equal(t, "203.0.113.9", id.IP)
	assert.False(t, id.SetCookie, "existing valid cookie must not be replaced")
}

func TestResolve_TamperedSignatureMintsFreshID(t *testing.T) {
	r := newTestResolver()
	valid := r.CookieValue("abcdef0123456789")

	// Flip the last character of the signature portion
	last := valid[len(valid)-1]
	flipped := byte('0')
	if last == '0' {
		flipped = '1'
	}
	tampered := valid[:len(valid)-1] + string(flipped)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: tampered})

	id := r.Resolve(context.Background(), req, "203.0.113.9")

	assert.Equal(t, KindGuest, id.Kind)
	assert.NotEqual(t, "abcdef0123456789", id.GuestID, "tampered cookie must not keep the old identity")
	assert.True(t, id.SetCookie)
}

func TestResolve_MalformedCookieNeverErrors(t *testing.T) {
	r := newTestResolver()

	for _, value := range []string{"", "no-separator", ".leading", "trailing.", "a.b.c"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if value != "" {
			req.AddCookie(&http.Cookie{Name: CookieName, Value: value})
		}

		id := r.Resolve(context.Background(), req, "203.0.113.9")
		assert.Equal(t, KindGuest, id.Kind, "value %q", value)
		assert.NotEmpty(t, id.GuestID)
		assert.True(t, id.SetCookie)
	}
}

func TestResolve_MintedIDsAreUnique(t *testing.T) {
	r := newTestResolver()

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		id := r.Resolve(context.Background(), req, "203.0.113.9")
		assert.False(t, seen[id.GuestID])
		seen[id.GuestID] = true
	}
}

func TestNewCookieAttributes(t *testing.T) {
	r := NewResolver(testJWTSecret, testCookieSecret, nil, 30*24*time.Hour, true)

	c := r.NewCookie("abcdef0123456789")

	assert.Equal(t, CookieName, c.Name)
	assert.Equal(t, "/", c.Path)
	assert.Equal(t, 30*24*3600, c.MaxAge)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
}
