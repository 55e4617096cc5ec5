package trust

import "context"

// RoleUser is the only role this system grants.
const RoleUser = "USER"

type Principal struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username,omitempty"`
	Role     string `json:"role"`
}

func NewPrincipal(userID int64, username string) Principal {
	return Principal{UserID: userID, Username: username, Role: RoleUser}
}

type principalContextKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}
