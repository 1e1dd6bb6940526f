package grpc

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/groupledger/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func newTestServer() *HealthServer {
	return NewHealthServer("", logging.Nop{}, okPinger)
}

var testInfo = &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

func TestLoggingInterceptor_PassesThrough(t *testing.T) {
	s := newTestServer()
	handlerCalled := false

	h := func(ctx context.Context, req interface{}) (interface{}, error) {
		handlerCalled = true
		return "ok", nil
	}

	resp, err := s.loggingInterceptor(context.Background(), nil, testInfo, h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !handlerCalled {
		t.Fatal("handler was not called")
	}
	if resp != "ok" {
		t.Fatalf("unexpected handler resp: %v", resp)
	}
}

func TestLoggingInterceptor_KeepsError(t *testing.T) {
	s := newTestServer()
	want := status.Error(codes.NotFound, "unknown service")

	h := func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, want
	}

	_, err := s.loggingInterceptor(context.Background(), nil, testInfo, h)
	if !errors.Is(err, want) {
		t.Fatalf("expected handler error, got %v", err)
	}
}

func TestRecoveryInterceptor_ConvertsPanic(t *testing.T) {
	s := newTestServer()

	h := func(ctx context.Context, req interface{}) (interface{}, error) {
		panic("boom")
	}

	resp, err := s.recoveryInterceptor(context.Background(), nil, testInfo, h)
	if resp != nil {
		t.Fatalf("expected nil response, got %v", resp)
	}
	if status.Code(err) != codes.Internal {
		t.Fatalf("expected Internal, got %v", status.Code(err))
	}
	if status.Convert(err).Message() != "internal error" {
		t.Fatalf("unexpected message %q", status.Convert(err).Message())
	}
}
