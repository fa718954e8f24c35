package auth

import "context"

type adminKey struct{}

// Admin identifies the authenticated operator of a request.
type Admin struct {
	Username string
	Token    string // empty when authenticated by session cookie
	Claims   *Claims
}

func WithAdmin(ctx context.Context, a *Admin) context.Context {
	return context.WithValue(ctx, adminKey{}, a)
}

// AdminFromCtx returns the admin stored by the auth middleware, or nil.
func AdminFromCtx(ctx context.Context) *Admin {
	a, _ := ctx.Value(adminKey{}).(*Admin)
	return a
}
