package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"go-messenger/internal/token"
	"go-messenger/internal/trust"
)

type Outcome uint8

const (
	OutcomeSkipped Outcome = iota
	OutcomeNoCredentials
	OutcomeAuthenticated
	OutcomeRejected
	// OutcomeFailed means authentication crashed and was contained.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeNoCredentials:
		return "no_credentials"
	case OutcomeAuthenticated:
		return "authenticated"
	case OutcomeRejected:
		return "rejected"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", uint8(o))
	}
}

// Entries ending in "/" match as prefixes.
var DefaultPublicPaths = []string{
	"/api/v1/auth/login",
	"/api/v1/auth/refresh",
	"/api/v1/users/register",
	"/api/v1/health",
	"/health",
}

type tokenParser interface {
	Parse(tokenString string) (*token.Claims, error)
}

// Authenticator never writes a response; RequireAuth decides.
type Authenticator struct {
	parser tokenParser
	exact  map[string]struct{}
	prefix []string
}

func NewAuthenticator(parser tokenParser, publicPaths ...string) *Authenticator {
	if len(publicPaths) == 0 {
		publicPaths = DefaultPublicPaths
	}

	a := &Authenticator{parser: parser, exact: map[string]struct{}{}}
	for _, p := range publicPaths {
		if strings.HasSuffix(p, "/") {
			a.prefix = append(a.prefix, p)
			continue
		}
		a.exact[p] = struct{}{}
	}

	return a
}

func (a *Authenticator) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var (
			outcome   = OutcomeSkipped
			principal trust.Principal
		)
		if !a.IsPublic(r.URL.Path) {
			outcome, principal = a.Authenticate(r)
		}

		ctx := context.WithValue(r.Context(), outcomeContextKey{}, outcome)
		if outcome == OutcomeAuthenticated {
			ctx = trust.WithPrincipal(ctx, principal)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) IsPublic(path string) bool {
	if _, ok := a.exact[path]; ok {
		return true
	}
	for _, p := range a.prefix {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func (a *Authenticator) Authenticate(r *http.Request) (outcome Outcome, principal trust.Principal) {
	defer func() {
		if recovered := recover(); recovered != nil {
			slog.Error("authentication panicked", "path", r.URL.Path, "error", fmt.Sprintf("%v", recovered))
			outcome, principal = OutcomeFailed, trust.Principal{}
		}
	}()

	raw, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		return OutcomeNoCredentials, trust.Principal{}
	}

	claims, err := a.parser.Parse(raw)
	if err != nil {
		slog.Warn("bearer token rejected", "path", r.URL.Path, "client_ip", trust.ClientIP(r), "error", err)
		return OutcomeRejected, trust.Principal{}
	}

	if claims.Type != token.Access {
		slog.Warn("non-access token presented", "path", r.URL.Path, "type", claims.Type)
		return OutcomeRejected, trust.Principal{}
	}
	if claims.Subject == "" || !claims.HasUserID() {
		slog.Warn("token lacks username or user id", "path", r.URL.Path)
		return OutcomeRejected, trust.Principal{}
	}

	slog.Debug("request authenticated", "user_id", claims.UserID, "username", claims.Subject)
	return OutcomeAuthenticated, trust.NewPrincipal(claims.UserID, claims.Subject)
}

func bearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if len(header) < len("Bearer ") || !strings.EqualFold(header[:len("Bearer ")], "Bearer ") {
		return "", false
	}

	raw := strings.TrimSpace(header[len("Bearer "):])
	return raw, raw != ""
}

type outcomeContextKey struct{}

func OutcomeFromContext(ctx context.Context) (Outcome, bool) {
	o, ok := ctx.Value(outcomeContextKey{}).(Outcome)
	return o, ok
}

func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := trust.PrincipalFromContext(r.Context()); !ok {
			writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
			return
		}

		next.ServeHTTP(w, r)
	})
}
