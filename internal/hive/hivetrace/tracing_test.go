package hivetrace

import (
	"context"
	"testing"
)

func TestSetupWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{ServiceID: "run-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if shutdown == nil {
		t.Fatal("expected a non-nil shutdown func even when tracing is disabled")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("expected no-op shutdown to succeed, got %v", err)
	}
}

func TestSetupWithEndpointInstallsProvider(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{
		Endpoint:  "127.0.0.1:0",
		Insecure:  true,
		ServiceID: "run-2",
	})
	if err != nil {
		t.Fatalf("unexpected error building exporter: %v", err)
	}
	if shutdown == nil {
		t.Fatal("expected a shutdown func")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown returned error: %v", err)
	}
}
