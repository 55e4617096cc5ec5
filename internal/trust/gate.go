package trust

import (
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
)

const (
	HeaderGatewaySecret = "X-Gateway-Secret"
	HeaderUserID        = "X-User-ID"
	HeaderUsername      = "X-Username"
	HeaderForwardedFor  = "X-Forwarded-For"
)

var ErrEmptyGatewaySecret = errors.New("trust: gateway secret is required")

// Gate never looks at the caller's address.
type Gate struct {
	secret []byte
}

func NewGate(secret string) (*Gate, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrEmptyGatewaySecret
	}

	return &Gate{secret: []byte(secret)}, nil
}

func (g *Gate) AuthorizeInternal(received string) bool {
	if received == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(received), g.secret) == 1
}

func (g *Gate) AuthorizeRequest(r *http.Request) bool {
	return g.AuthorizeInternal(r.Header.Get(HeaderGatewaySecret))
}

// Stamp drops the bearer token and any client-supplied trusted headers
// before setting the secret and principal.
func (g *Gate) Stamp(h http.Header, p *Principal) {
	h.Del("Authorization")
	h.Del(HeaderUserID)
	h.Del(HeaderUsername)

	h.Set(HeaderGatewaySecret, string(g.secret))
	if p == nil {
		return
	}

	h.Set(HeaderUserID, strconv.FormatInt(p.UserID, 10))
	if p.Username != "" {
		h.Set(HeaderUsername, p.Username)
	}
}

func ForwardedPrincipal(h http.Header) (Principal, bool) {
	raw := strings.TrimSpace(h.Get(HeaderUserID))
	if raw == "" {
		return Principal{}, false
	}

	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return Principal{}, false
	}

	return NewPrincipal(userID, strings.TrimSpace(h.Get(HeaderUsername))), true
}

func ClientIP(r *http.Request) string {
	if forwarded := strings.TrimSpace(r.Header.Get(HeaderForwardedFor)); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}

	remote := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(remote); err == nil && host != "" {
		return host
	}
	if remote == "" {
		return "unknown"
	}

	return remote
}
