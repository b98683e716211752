// Package identity resolves the caller of a request to either an
// authenticated member or an anonymous guest carried by a signed cookie.
package identity

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/tileboardhq/tileboard/pkg/auth"
)

// Kind discriminates member and guest identities
type Kind string

const (
	KindMember Kind = "member"
	KindGuest  Kind = "guest"
)

// CookieName is the guest identity cookie
const CookieName = "guest_token"

// guestIDBytes is the entropy of a minted guest id
const guestIDBytes = 16

// Identity is the resolved caller of a request
type Identity struct {
	Kind     Kind
	MemberID string
	Email    string
	Plan     string
	GuestID  string
	IP       string

	// SetCookie signals that a fresh guest id was minted and the caller
	// must attach the Set-Cookie side effect to its own response
	SetCookie bool
}

// IsMember reports whether the identity is an authenticated member
func (i Identity) IsMember() bool {
	return i.Kind == KindMember
}

// SubjectID returns the stable id for quota accounting
func (i Identity) SubjectID() string {
	if i.Kind == KindMember {
		return i.MemberID
	}
	return i.GuestID
}

// Resolver resolves request identities
type Resolver struct {
	jwtSecret    string
	cookieSecret []byte
	blacklist    *auth.TokenBlacklist
	retention    time.Duration
	secure       bool
}

// NewResolver creates a resolver. retention bounds the guest cookie
// lifetime; secure controls the cookie Secure attribute.
func NewResolver(jwtSecret, cookieSecret string, blacklist *auth.TokenBlacklist, retention time.Duration, secure bool) *Resolver {
	return &Resolver{
		jwtSecret:    jwtSecret,
		cookieSecret: []byte(cookieSecret),
		blacklist:    blacklist,
		retention:    retention,
		secure:       secure,
	}
}

// Resolve determines the caller's identity. A valid bearer token wins;
// anything else falls through to the guest cookie path. Malformed or
// tampered cookies are treated as absent identity, never as an error.
func (r *Resolver) Resolve(ctx context.Context, req *http.Request, ip string) Identity {
	if claims := r.memberClaims(ctx, req); claims != nil {
		return Identity{
			Kind:     KindMember,
			MemberID: claims.UserID,
			Email:    claims.Email,
			Plan:     claims.Plan,
			IP:       ip,
		}
	}

	if guestID, ok := r.verifyCookie(req); ok {
		return Identity{
			Kind:    KindGuest,
			GuestID: guestID,
			IP:      ip,
		}
	}

	return Identity{
		Kind:      KindGuest,
		GuestID:   mintGuestID(),
		IP:        ip,
		SetCookie: true,
	}
}

// memberClaims validates the Authorization header, returning nil when
// the request carries no usable member session
func (r *Resolver) memberClaims(ctx context.Context, req *http.Request) *auth.Claims {
	header := req.Header.Get("Authorization")
	if header == "" {
		return nil
	}

	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil
	}

	claims, err := auth.ValidateJWTWithBlacklist(ctx, parts[1], r.jwtSecret, r.blacklist)
	if err != nil {
		return nil
	}
	return claims
}

// verifyCookie checks the guest_token cookie signature. The comparison
// is constant-time; a mismatch reads as "no cookie".
func (r *Resolver) verifyCookie(req *http.Request) (string, bool) {
	cookie, err := req.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}

	value, signature, found := strings.Cut(cookie.Value, ".")
	if !found || value == "" || signature == "" {
		return "", false
	}

	expected := r.Sign(value)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return "", false
	}

	return value, true
}

// Sign computes the hex HMAC-SHA256 signature for a guest id
func (r *Resolver) Sign(value string) string {
	mac := hmac.New(sha256.New, r.cookieSecret)
	mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))
}

// CookieValue builds the value.signature cookie payload for a guest id
func (r *Resolver) CookieValue(guestID string) string {
	return guestID + "." + r.Sign(guestID)
}

// NewCookie builds the Set-Cookie for a freshly minted guest id
func (r *Resolver) NewCookie(guestID string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    r.CookieValue(guestID),
		Path:     "/",
		MaxAge:   int(r.retention / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.secure,
	}
}

// mintGuestID generates a random guest id
func mintGuestID() string {
	buf := make([]byte, guestIDBytes)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	return hex.EncodeToString(buf)
}
