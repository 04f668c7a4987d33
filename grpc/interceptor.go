package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	auth "github.com/srijanm/authbase"
)

// InterceptorConfig configures the auth interceptor behavior.
type InterceptorConfig struct {
	// Issuer verifies incoming session tokens.
	Issuer *auth.TokenIssuer

	// Store re-fetches the token's user at verification time, so a
	// token for a since-deleted account stops authenticating here just
	// as it does at the HTTP edge.
	Store auth.UserStore

	// RequireAuth when true rejects unauthenticated requests. When
	// false, requests proceed but UserIDFromContext returns "".
	RequireAuth bool

	// PublicMethods is a set of method names that don't require auth.
	// Only consulted when RequireAuth is true. Keys are full method
	// names like "/package.Service/Method".
	PublicMethods map[string]bool
}

// NewInterceptorConfig returns a config that requires auth for every
// method except the listed public ones.
func NewInterceptorConfig(issuer *auth.TokenIssuer, store auth.UserStore, publicMethods ...string) *InterceptorConfig {
	config := &InterceptorConfig{
		Issuer:        issuer,
		Store:         store,
		RequireAuth:   true,
		PublicMethods: make(map[string]bool),
	}
	for _, method := range publicMethods {
		config.PublicMethods[method] = true
	}
	return config
}

// OptionalAuthConfig returns a config that verifies tokens when present
// but lets unauthenticated requests through.
func OptionalAuthConfig(issuer *auth.TokenIssuer, store auth.UserStore) *InterceptorConfig {
	return &InterceptorConfig{
		Issuer:        issuer,
		Store:         store,
		PublicMethods: make(map[string]bool),
	}
}

// authenticate verifies the incoming token and returns a context with
// the user ID installed. The bool reports whether a valid token was
// present. The token is only a pointer to an identity: the user is
// re-fetched from the store, never taken on the token's word.
func (c *InterceptorConfig) authenticate(ctx context.Context) (context.Context, bool) {
	token := TokenFromIncomingContext(ctx)
	if token == "" {
		return ctx, false
	}
	userID, err := c.Issuer.Verify(token)
	if err != nil {
		return ctx, false
	}
	if c.Store != nil {
		if _, err := c.Store.GetUserByID(ctx, userID); err != nil {
			return ctx, false
		}
	}
	return auth.SetUserIDInContext(ctx, userID), true
}

// UnaryAuthInterceptor returns a gRPC unary interceptor that verifies
// the session token and installs the user ID into the handler context.
func UnaryAuthInterceptor(config *InterceptorConfig) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, ok := config.authenticate(ctx)
		if config.RequireAuth && !config.PublicMethods[info.FullMethod] && !ok {
			return nil, status.Error(codes.Unauthenticated, "authentication required")
		}
		return handler(ctx, req)
	}
}

// StreamAuthInterceptor returns the streaming counterpart of
// UnaryAuthInterceptor.
func StreamAuthInterceptor(config *InterceptorConfig) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, ok := config.authenticate(ss.Context())
		if config.RequireAuth && !config.PublicMethods[info.FullMethod] && !ok {
			return status.Error(codes.Unauthenticated, "authentication required")
		}
		return handler(srv, &wrappedStream{ServerStream: ss, ctx: ctx})
	}
}

// wrappedStream overrides the stream context with the authenticated one.
type wrappedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedStream) Context() context.Context {
	return w.ctx
}
