// Package grpc carries authbase sessions across gRPC hops: clients put
// the session token into outgoing metadata, and the server interceptors
// verify it and install the user ID into the handler context.
package grpc

import (
	"context"
	"strings"

	"google.golang.org/grpc/metadata"

	auth "github.com/srijanm/authbase"
)

// MetadataKeyAuthorization is the gRPC metadata key the session token
// travels in, using the conventional "Bearer <token>" form.
const MetadataKeyAuthorization = "authorization"

// TokenFromIncomingContext extracts the bearer token from incoming gRPC
// metadata. Returns "" when no token is present.
func TokenFromIncomingContext(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get(MetadataKeyAuthorization)
	if len(values) == 0 {
		return ""
	}
	value := values[0]
	if strings.HasPrefix(value, "Bearer ") {
		return strings.TrimPrefix(value, "Bearer ")
	}
	return value
}

// TokenToOutgoingContext attaches a session token to outgoing gRPC
// metadata so the server side can authenticate the call.
func TokenToOutgoingContext(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, MetadataKeyAuthorization, "Bearer "+token)
}

// UserIDFromContext returns the authenticated user ID installed by the
// interceptors, or "" for unauthenticated calls.
func UserIDFromContext(ctx context.Context) string {
	return auth.UserIDFromContext(ctx)
}

// IsAuthenticated reports whether the context carries an authenticated
// user.
func IsAuthenticated(ctx context.Context) bool {
	return UserIDFromContext(ctx) != ""
}
