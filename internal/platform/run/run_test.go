package run

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"go.uber.org/zap"
)

func TestWait_CleanExit(t *testing.T) {
	r := New(zap.NewNop())
	code := r.wait(context.Background(), func(context.Context) error { return http.ErrServerClosed })
	if code != 0 {
		t.Fatalf("expected 0, got %d", code)
	}
}

func TestWait_Error(t *testing.T) {
	r := New(zap.NewNop())
	code := r.wait(context.Background(), func(context.Context) error { return errors.New("boom") })
	if code != 1 {
		t.Fatalf("expected 1, got %d", code)
	}
}

func TestWait_CancelledContextWaitsForStart(t *testing.T) {
	r := New(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	drained := false
	code := r.wait(ctx, func(ctx context.Context) error {
		cancel()
		<-ctx.Done()
		drained = true
		return ctx.Err()
	})
	if code != 0 {
		t.Fatalf("expected 0, got %d", code)
	}
	if !drained {
		t.Fatal("expected start to finish before wait returns")
	}
}
