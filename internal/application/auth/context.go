package auth

import "context"

type principalKey struct{}

// ContextWithPrincipal adjunta el principal autenticado al contexto de la petición.
func ContextWithPrincipal(ctx context.Context, principal string) context.Context {
	return context.WithValue(ctx, principalKey{}, principal)
}

// PrincipalFromContext devuelve el principal autenticado, si lo hay.
func PrincipalFromContext(ctx context.Context) (string, bool) {
	p, ok := ctx.Value(principalKey{}).(string)
	return p, ok && p != ""
}
