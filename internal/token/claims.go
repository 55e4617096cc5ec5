package token

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Claim names shared with every service that reads our tokens.
const (
	ClaimSubject   = "sub"
	ClaimUserID    = "userId"
	ClaimType      = "type"
	ClaimIssuedAt  = "iat"
	ClaimExpiresAt = "exp"
)

type Type string

const (
	Access  Type = "access"
	Refresh Type = "refresh"
)

func (t Type) Valid() bool {
	return t == Access || t == Refresh
}

type Claims struct {
	Subject   string
	UserID    int64
	Type      Type
	IssuedAt  time.Time
	ExpiresAt time.Time

	hasUserID bool
}

// Without HasUserID a zero UserID means unknown, not user 0.
func (c *Claims) HasUserID() bool {
	return c != nil && c.hasUserID
}

func claimsFromMap(raw map[string]any) *Claims {
	claims := &Claims{Type: Access}

	claims.Subject, _ = raw[ClaimSubject].(string)
	claims.UserID, claims.hasUserID = CoerceUserID(raw[ClaimUserID])

	if typ, ok := raw[ClaimType]; ok && typ != nil {
		claims.Type = Type(fmt.Sprint(typ))
	}

	if at, ok := numericTime(raw[ClaimIssuedAt]); ok {
		claims.IssuedAt = at
	}
	if at, ok := numericTime(raw[ClaimExpiresAt]); ok {
		claims.ExpiresAt = at
	}

	return claims
}

// CoerceUserID rejects fractional, non-finite or out-of-range values
// instead of truncating them.
func CoerceUserID(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case string:
		return parseNumericString(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return integral(f)
	case float64:
		return integral(n)
	case float32:
		return integral(float64(n))
	default:
		return 0, false
	}
}

func parseNumericString(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, true
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}

	return integral(f)
}

func integral(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	// float64(math.MaxInt64) rounds up to 2^63, which is already out of range.
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}

	return int64(f), true
}

func numericTime(v any) (time.Time, bool) {
	var seconds float64

	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return time.Time{}, false
		}
		seconds = f
	case float64:
		seconds = n
	case int64:
		seconds = float64(n)
	case int:
		seconds = float64(n)
	default:
		return time.Time{}, false
	}

	whole, frac := math.Modf(seconds)
	return time.Unix(int64(whole), int64(frac*1e9)).UTC(), true
}
