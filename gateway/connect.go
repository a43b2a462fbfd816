package gateway

import (
	"context"

	"connectrpc.com/connect"
)

// ConnectInterceptor applies the Gateway policy to Connect RPC clients: the
// bearer token is attached to every unary call, and a CodeUnauthenticated
// failure triggers one recovery and one resubmission. Streaming calls only
// get the header.
func ConnectInterceptor(auth Authenticator) connect.Interceptor {
	return &connectInterceptor{auth: auth}
}

type connectInterceptor struct {
	auth Authenticator
}

func (i *connectInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if !req.Spec().IsClient {
			return next(ctx, req)
		}

		token, ok := currentToken(ctx, i.auth)
		if !ok {
			return next(ctx, req)
		}
		req.Header().Set("Authorization", "Bearer "+token)

		resp, err := next(ctx, req)
		if connect.CodeOf(err) != connect.CodeUnauthenticated {
			return resp, err
		}

		if rerr := i.auth.Recover(ctx); rerr != nil {
			return nil, err
		}
		token, ok = i.auth.Token()
		if !ok {
			return nil, err
		}
		req.Header().Set("Authorization", "Bearer "+token)
		return next(ctx, req)
	}
}

func (i *connectInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return func(ctx context.Context, spec connect.Spec) connect.StreamingClientConn {
		conn := next(ctx, spec)
		if token, ok := i.auth.Token(); ok {
			conn.RequestHeader().Set("Authorization", "Bearer "+token)
		}
		return conn
	}
}

func (i *connectInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return next
}
