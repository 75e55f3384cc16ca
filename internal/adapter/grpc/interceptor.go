package grpc

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/edoardo-nicoli03/stock-market-project/internal/domain"
	"github.com/edoardo-nicoli03/stock-market-project/internal/usecase/auth"
)

type contextKey string

const (
	accountIDKey contextKey = "account_id"
	tierKey      contextKey = "tier"
)

// publicMethods are callable without a token.
var publicMethods = map[string]bool{
	"/grpc.health.v1.Health/Check": true,
	"/grpc.health.v1.Health/Watch": true,
}

// TokenVerifier verifies an access token and returns the identity it
// carries.
type TokenVerifier interface {
	Verify(token string, kind auth.TokenKind) (uuid.UUID, domain.Tier, error)
}

// AuthInterceptor returns a gRPC unary server interceptor that validates
// the bearer token from request metadata and injects the account ID and
// tier into the handler context.
// If the token is missing or invalid, it returns status.Unauthenticated.
func AuthInterceptor(verifier TokenVerifier) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if publicMethods[info.FullMethod] {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		authHeaders := md.Get("authorization")
		if len(authHeaders) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing authorization header")
		}

		token := strings.TrimPrefix(authHeaders[0], "Bearer ")
		accountID, tier, err := verifier.Verify(token, auth.TokenAccess)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}

		ctx = context.WithValue(ctx, accountIDKey, accountID)
		ctx = context.WithValue(ctx, tierKey, tier)
		return handler(ctx, req)
	}
}

// AccountFromContext extracts the authenticated account ID set by the
// interceptor. The second return is false on unauthenticated contexts.
func AccountFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(accountIDKey).(uuid.UUID)
	return id, ok
}

// TierFromContext extracts the authenticated account's tier. Contexts
// without one fall back to the basic tier.
func TierFromContext(ctx context.Context) domain.Tier {
	if tier, ok := ctx.Value(tierKey).(domain.Tier); ok {
		return tier
	}
	return domain.TierBasic
}
