package gateway_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/stadtwache/opsclient/gateway"
)

const feedProcedure = "/stadtwache.map.v1.FeedService/Latest"

func feedServer(t *testing.T, accepted string, calls *atomic.Int32) *httptest.Server {
	t.Helper()

	handler := connect.NewUnaryHandler(feedProcedure,
		func(_ context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
			calls.Add(1)
			if req.Header().Get("Authorization") != "Bearer "+accepted {
				return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("invalid token"))
			}
			out, _ := structpb.NewStruct(map[string]any{"incidents": 2})
			return connect.NewResponse(out), nil
		},
	)

	mux := http.NewServeMux()
	mux.Handle(feedProcedure, handler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func feedClient(srv *httptest.Server, auth gateway.Authenticator) *connect.Client[structpb.Struct, structpb.Struct] {
	return connect.NewClient[structpb.Struct, structpb.Struct](
		srv.Client(),
		srv.URL+feedProcedure,
		connect.WithInterceptors(gateway.ConnectInterceptor(auth)),
	)
}

func TestConnectInterceptor_AttachesToken(t *testing.T) {
	var calls atomic.Int32
	srv := feedServer(t, "tok", &calls)
	auth := &fakeAuth{token: "tok", active: true}

	resp, err := feedClient(srv, auth).CallUnary(context.Background(), connect.NewRequest(&structpb.Struct{}))
	if err != nil {
		t.Fatalf("CallUnary() error = %v", err)
	}
	if got := resp.Msg.GetFields()["incidents"].GetNumberValue(); got != 2 {
		t.Errorf("incidents = %v, want 2", got)
	}
	if auth.recovers() != 0 {
		t.Error("unexpected recovery")
	}
}

func TestConnectInterceptor_RecoversOnce(t *testing.T) {
	var calls atomic.Int32
	srv := feedServer(t, "fresh", &calls)
	auth := &fakeAuth{token: "expired", active: true, recoverTo: "fresh"}

	if _, err := feedClient(srv, auth).CallUnary(context.Background(), connect.NewRequest(&structpb.Struct{})); err != nil {
		t.Fatalf("CallUnary() error = %v", err)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("handler calls = %d, want 2", n)
	}
	if n := auth.recovers(); n != 1 {
		t.Errorf("recover calls = %d, want 1", n)
	}
}

func TestConnectInterceptor_RecoverFails(t *testing.T) {
	var calls atomic.Int32
	srv := feedServer(t, "never", &calls)
	auth := &fakeAuth{token: "expired", active: true, recoverErr: errors.New("rejected")}

	_, err := feedClient(srv, auth).CallUnary(context.Background(), connect.NewRequest(&structpb.Struct{}))
	if connect.CodeOf(err) != connect.CodeUnauthenticated {
		t.Fatalf("CallUnary() error = %v, want unauthenticated", err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("handler calls = %d, want 1", n)
	}
	if n := auth.recovers(); n != 1 {
		t.Errorf("recover calls = %d, want 1", n)
	}
}
