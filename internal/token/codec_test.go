package token

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-that-is-at-least-32-bytes-long"

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func newTestCodec(t *testing.T) (*Codec, *fakeClock) {
	t.Helper()

	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	codec, err := NewCodec(testSecret, WithClock(clock.Now), WithTTLs(24*time.Hour, 48*time.Hour))
	require.NoError(t, err)

	return codec, clock
}

func signRaw(t *testing.T, key string, claims jwt.MapClaims) string {
	t.Helper()

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return signed
}

func TestNewCodec(t *testing.T) {
	t.Parallel()

	_, err := NewCodec("")
	require.ErrorIs(t, err, ErrEmptySecret)

	_, err = NewCodec("   ")
	require.ErrorIs(t, err, ErrEmptySecret)

	_, err = NewCodec("short")
	require.ErrorIs(t, err, ErrWeakSecret)

	codec, err := NewCodec(testSecret)
	require.NoError(t, err)
	require.NotNil(t, codec)
}

func TestIssueAndValidate(t *testing.T) {
	t.Parallel()

	codec, clock := newTestCodec(t)

	signed, err := codec.Issue("alice", 42, Access, 24*time.Hour)
	require.NoError(t, err)
	require.True(t, codec.Validate(signed))

	username, ok := codec.Username(signed)
	require.True(t, ok)
	require.Equal(t, "alice", username)

	userID, ok := codec.UserID(signed)
	require.True(t, ok)
	require.Equal(t, int64(42), userID)

	typ, ok := codec.TokenType(signed)
	require.True(t, ok)
	require.Equal(t, Access, typ)

	expiry, ok := codec.Expiry(signed)
	require.True(t, ok)
	require.Equal(t, clock.now.Add(24*time.Hour), expiry)

	clock.now = clock.now.Add(24*time.Hour + time.Second)
	require.False(t, codec.Validate(signed))

	_, err = codec.Parse(signed)
	require.ErrorIs(t, err, ErrExpired)

	_, ok = codec.Username(signed)
	require.False(t, ok)
}

func TestIssueRejectsBadInput(t *testing.T) {
	t.Parallel()

	codec, _ := newTestCodec(t)

	_, err := codec.Issue("alice", 1, Type("session"), time.Hour)
	require.Error(t, err)

	_, err = codec.Issue("alice", 1, Access, 0)
	require.Error(t, err)

	_, err = codec.Issue("alice", 1, Access, -time.Minute)
	require.Error(t, err)
}

func TestIssueSubSecondTTL(t *testing.T) {
	t.Parallel()

	codec, clock := newTestCodec(t)
	clock.now = time.Date(2026, 3, 1, 12, 0, 0, int(100*time.Millisecond), time.UTC)

	_, err := codec.Issue("alice", 42, Access, 500*time.Millisecond)
	require.Error(t, err)

	_, err = codec.Issue("alice", 42, Access, 999*time.Millisecond)
	require.Error(t, err)

	signed, err := codec.Issue("alice", 42, Access, time.Second)
	require.NoError(t, err)
	require.True(t, codec.Validate(signed))

	expiry, ok := codec.Expiry(signed)
	require.True(t, ok)
	require.True(t, expiry.After(clock.now.Truncate(time.Second)))
}

func TestIssuePair(t *testing.T) {
	t.Parallel()

	codec, _ := newTestCodec(t)

	pair, err := codec.IssuePair("bob", 7)
	require.NoError(t, err)
	require.Equal(t, 24*time.Hour, pair.ExpiresIn)

	require.False(t, codec.IsRefresh(pair.AccessToken))
	require.True(t, codec.IsRefresh(pair.RefreshToken))

	remaining, ok := codec.Remaining(pair.RefreshToken)
	require.True(t, ok)
	require.Equal(t, 48*time.Hour, remaining)
}

func TestValidateRejects(t *testing.T) {
	t.Parallel()

	codec, clock := newTestCodec(t)
	valid, err := codec.Issue("alice", 42, Access, time.Hour)
	require.NoError(t, err)

	otherKey := signRaw(t, "a-completely-different-secret-of-32-bytes", jwt.MapClaims{
		"sub": "alice", "userId": 42, "exp": clock.now.Add(time.Hour).Unix(),
	})

	noneSigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "alice", "userId": 42, "exp": clock.now.Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"sub": "alice", "userId": 42, "exp": clock.now.Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	noExpiry := signRaw(t, testSecret, jwt.MapClaims{"sub": "alice", "userId": 42})

	parts := strings.Split(valid, ".")
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	cases := []struct {
		name  string
		token string
		want  error
	}{
		{name: "empty", token: "", want: ErrEmptyToken},
		{name: "whitespace", token: "   ", want: ErrEmptyToken},
		{name: "garbage", token: "not-a-token", want: ErrMalformed},
		{name: "three garbage segments", token: "a.b.c", want: ErrMalformed},
		{name: "other key", token: otherKey, want: ErrSignature},
		{name: "tampered signature", token: tampered, want: ErrSignature},
		{name: "alg none", token: noneSigned, want: ErrAlgorithm},
		{name: "missing exp", token: noExpiry, want: ErrClaims},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.NotPanics(t, func() {
				require.False(t, codec.Validate(tc.token))
			})

			_, err := codec.Parse(tc.token)
			require.ErrorIs(t, err, tc.want)
		})
	}

	t.Run("other hmac size under same key is accepted", func(t *testing.T) {
		require.True(t, codec.Validate(hs512))
	})
}

func TestUserIDCoercion(t *testing.T) {
	t.Parallel()

	codec, clock := newTestCodec(t)
	exp := clock.now.Add(time.Hour).Unix()

	cases := []struct {
		name  string
		value any
		want  int64
		ok    bool
	}{
		{name: "integer", value: 42, want: 42, ok: true},
		{name: "numeric string", value: "42", want: 42, ok: true},
		{name: "padded numeric string", value: " 42 ", want: 42, ok: true},
		{name: "float", value: 42.0, want: 42, ok: true},
		{name: "float string", value: "42.0", want: 42, ok: true},
		{name: "large integer", value: int64(9007199254740993), want: 9007199254740993, ok: true},
		{name: "fractional float", value: 42.5, ok: false},
		{name: "word", value: "forty-two", ok: false},
		{name: "empty string", value: "", ok: false},
		{name: "bool", value: true, ok: false},
		{name: "missing", value: nil, ok: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			claims := jwt.MapClaims{"sub": "alice", "exp": exp}
			if tc.value != nil {
				claims["userId"] = tc.value
			}
			signed := signRaw(t, testSecret, claims)

			require.True(t, codec.Validate(signed))

			got, ok := codec.UserID(signed)
			require.Equal(t, tc.ok, ok)
			if tc.ok {
				require.Equal(t, tc.want, got)
			}
		})
	}
}

func TestCoerceUserIDNative(t *testing.T) {
	t.Parallel()

	for _, v := range []any{42, int32(42), int64(42), float32(42), 42.0, "42"} {
		got, ok := CoerceUserID(v)
		require.True(t, ok, "%T", v)
		require.Equal(t, int64(42), got)
	}

	_, ok := CoerceUserID(1e19)
	require.False(t, ok)
}

func TestTypeDefaultsToAccess(t *testing.T) {
	t.Parallel()

	codec, clock := newTestCodec(t)
	signed := signRaw(t, testSecret, jwt.MapClaims{
		"sub": "alice", "userId": 1, "exp": clock.now.Add(time.Hour).Unix(),
	})

	typ, ok := codec.TokenType(signed)
	require.True(t, ok)
	require.Equal(t, Access, typ)
	require.False(t, codec.IsRefresh(signed))

	_, ok = codec.TokenType("garbage")
	require.False(t, ok)
}

func TestValidateForAndSubject(t *testing.T) {
	t.Parallel()

	codec, _ := newTestCodec(t)
	signed, err := codec.Issue("alice", 42, Access, time.Hour)
	require.NoError(t, err)

	require.True(t, codec.ValidateFor(signed, 42))
	require.False(t, codec.ValidateFor(signed, 43))
	require.True(t, codec.ValidateSubject(signed, "alice"))
	require.False(t, codec.ValidateSubject(signed, "mallory"))
	require.False(t, codec.ValidateFor("garbage", 42))
}

func TestRemainingAndAge(t *testing.T) {
	t.Parallel()

	codec, clock := newTestCodec(t)
	signed, err := codec.Issue("alice", 42, Access, time.Hour)
	require.NoError(t, err)

	clock.now = clock.now.Add(90 * time.Minute)

	remaining, ok := codec.Remaining(signed)
	require.True(t, ok)
	require.Equal(t, -30*time.Minute, remaining)

	age, ok := codec.Age(signed)
	require.True(t, ok)
	require.Equal(t, 90*time.Minute, age)

	_, ok = codec.Remaining("garbage")
	require.False(t, ok)
}
