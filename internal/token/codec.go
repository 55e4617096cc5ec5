package token

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const minSecretLength = 32

var (
	ErrEmptySecret = errors.New("token: signing secret is required")
	ErrWeakSecret  = fmt.Errorf("token: signing secret must be at least %d bytes", minSecretLength)

	ErrEmptyToken = errors.New("token: empty token")
	ErrMalformed  = errors.New("token: malformed")
	ErrSignature  = errors.New("token: signature mismatch")
	ErrAlgorithm  = errors.New("token: unsupported signing algorithm")
	ErrExpired    = errors.New("token: expired")
	ErrClaims     = errors.New("token: invalid claims")
)

type Codec struct {
	key        []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

type Option func(*Codec)

func WithTTLs(access time.Duration, refresh time.Duration) Option {
	return func(c *Codec) {
		if access > 0 {
			c.accessTTL = access
		}
		if refresh > 0 {
			c.refreshTTL = refresh
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

func NewCodec(secret string, opts ...Option) (*Codec, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrEmptySecret
	}
	if len(secret) < minSecretLength {
		return nil, ErrWeakSecret
	}

	codec := &Codec{
		key:        []byte(secret),
		accessTTL:  24 * time.Hour,
		refreshTTL: 24 * time.Hour,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(codec)
	}

	slog.Debug("token codec initialized", "access_ttl", codec.accessTTL, "refresh_ttl", codec.refreshTTL)
	return codec, nil
}

// Issue rejects ttl under a second: iat and exp are whole seconds.
func (c *Codec) Issue(subject string, userID int64, typ Type, ttl time.Duration) (string, error) {
	if !typ.Valid() {
		return "", fmt.Errorf("issue token: unknown type %q", typ)
	}
	if ttl < time.Second {
		return "", fmt.Errorf("issue token: ttl must be at least 1s, got %s", ttl)
	}

	now := c.now().UTC()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		ClaimSubject:   subject,
		ClaimUserID:    userID,
		ClaimType:      string(typ),
		ClaimIssuedAt:  now.Unix(),
		ClaimExpiresAt: now.Add(ttl).Unix(),
	}).SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

type Pair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

func (c *Codec) IssuePair(subject string, userID int64) (Pair, error) {
	access, err := c.Issue(subject, userID, Access, c.accessTTL)
	if err != nil {
		return Pair{}, err
	}

	refresh, err := c.Issue(subject, userID, Refresh, c.refreshTTL)
	if err != nil {
		return Pair{}, err
	}

	return Pair{AccessToken: access, RefreshToken: refresh, ExpiresIn: c.accessTTL}, nil
}

// Parse failures wrap one of the Err* sentinels above.
func (c *Codec) Parse(tokenString string) (*Claims, error) {
	return c.parse(tokenString, true)
}

// Validate is the fail-closed form of Parse.
func (c *Codec) Validate(tokenString string) bool {
	_, err := c.Parse(tokenString)
	if err == nil {
		return true
	}

	if errors.Is(err, ErrEmptyToken) {
		slog.Debug("token is empty")
		return false
	}

	slog.Warn("token validation failed", "reason", reason(err), "error", err)
	return false
}

func (c *Codec) ValidateFor(tokenString string, userID int64) bool {
	if !c.Validate(tokenString) {
		return false
	}

	got, ok := c.UserID(tokenString)
	if !ok || got != userID {
		slog.Warn("token user id does not match", "token_user_id", got, "expected_user_id", userID)
		return false
	}

	return true
}

func (c *Codec) ValidateSubject(tokenString string, username string) bool {
	if !c.Validate(tokenString) {
		return false
	}

	got, ok := c.Username(tokenString)
	if !ok || got != username {
		slog.Warn("token subject does not match", "token_subject", got, "expected_subject", username)
		return false
	}

	return true
}

func (c *Codec) Username(tokenString string) (string, bool) {
	claims, ok := c.extract(tokenString, "username")
	if !ok || claims.Subject == "" {
		return "", false
	}
	return claims.Subject, true
}

func (c *Codec) UserID(tokenString string) (int64, bool) {
	claims, ok := c.extract(tokenString, "user id")
	if !ok {
		return 0, false
	}
	if !claims.HasUserID() {
		slog.Warn("token has no usable userId claim")
		return 0, false
	}
	return claims.UserID, true
}

func (c *Codec) TokenType(tokenString string) (Type, bool) {
	claims, ok := c.extract(tokenString, "type")
	if !ok {
		return "", false
	}
	return claims.Type, true
}

func (c *Codec) IsRefresh(tokenString string) bool {
	typ, ok := c.TokenType(tokenString)
	return ok && typ == Refresh
}

func (c *Codec) Expiry(tokenString string) (time.Time, bool) {
	claims, ok := c.extract(tokenString, "expiry")
	if !ok || claims.ExpiresAt.IsZero() {
		return time.Time{}, false
	}
	return claims.ExpiresAt, true
}

// Remaining still verifies the signature but skips the time checks.
func (c *Codec) Remaining(tokenString string) (time.Duration, bool) {
	claims, err := c.parse(tokenString, false)
	if err != nil || claims.ExpiresAt.IsZero() {
		return 0, false
	}
	return claims.ExpiresAt.Sub(c.now()), true
}

func (c *Codec) Age(tokenString string) (time.Duration, bool) {
	claims, err := c.parse(tokenString, false)
	if err != nil || claims.IssuedAt.IsZero() {
		return 0, false
	}
	return c.now().Sub(claims.IssuedAt), true
}

func (c *Codec) extract(tokenString string, what string) (*Claims, bool) {
	claims, err := c.Parse(tokenString)
	if err != nil {
		slog.Warn("failed to extract "+what+" from token", "reason", reason(err))
		return nil, false
	}
	return claims, true
}

func (c *Codec) parse(tokenString string, validateTimes bool) (*Claims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, ErrEmptyToken
	}

	opts := []jwt.ParserOption{
		jwt.WithJSONNumber(),
		jwt.WithTimeFunc(c.now),
	}
	if validateTimes {
		opts = append(opts, jwt.WithExpirationRequired())
	} else {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	parsed, err := jwt.NewParser(opts...).Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: %v", ErrAlgorithm, t.Header["alg"])
		}
		return c.key, nil
	})
	if err != nil {
		return nil, classify(err)
	}
	if !parsed.Valid {
		return nil, ErrSignature
	}

	raw, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrClaims
	}

	claims := claimsFromMap(raw)
	if validateTimes && !claims.IssuedAt.IsZero() && !claims.ExpiresAt.After(claims.IssuedAt) {
		return nil, fmt.Errorf("%w: exp is not after iat", ErrClaims)
	}

	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, ErrAlgorithm), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrAlgorithm, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpired, err)
	default:
		return fmt.Errorf("%w: %v", ErrClaims, err)
	}
}

func reason(err error) string {
	switch {
	case errors.Is(err, ErrEmptyToken):
		return "empty"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	case errors.Is(err, ErrSignature):
		return "signature"
	case errors.Is(err, ErrAlgorithm):
		return "algorithm"
	case errors.Is(err, ErrExpired):
		return "expired"
	default:
		return "claims"
	}
}
