package shared

import "context"

// Role names understood by the permission boundary. The core trusts them.
const (
	RoleSeller      = "SELLER"
	RoleStoreKeeper = "STORE_KEEPER"
	RoleCashier     = "CASHIER"
	RoleManager     = "MANAGER"
	RoleAdmin       = "ADMIN"
	RoleOwner       = "OWNER"
)

// Principal identifies the acting user on every call. It is supplied by the
// identity provider at the boundary; the core does not re-authenticate.
type Principal struct {
	ID         int64  `json:"id"`
	Role       string `json:"role"`
	LocationID int64  `json:"location_id"`
}

// CanSeeCostPrice reports whether the role may read purchase prices.
func (p Principal) CanSeeCostPrice() bool {
	switch p.Role {
	case RoleManager, RoleAdmin, RoleOwner:
		return true
	}
	return false
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}
