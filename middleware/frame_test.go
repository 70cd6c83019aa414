package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestChainOrdering(t *testing.T) {
	var order []string
	mk := func(name string) FrameMiddleware {
		return func(next FrameHandler) FrameHandler {
			return func(ctx context.Context, frame []byte) error {
				order = append(order, name+":enter")
				err := next(ctx, frame)
				order = append(order, name+":exit")
				return err
			}
		}
	}

	chain := Chain(mk("outer"), mk("inner"))
	handler := chain(func(ctx context.Context, frame []byte) error { return nil })

	if err := handler(context.Background(), nil); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}

	want := []string{"outer:enter", "inner:enter", "inner:exit", "outer:exit"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestLoggingNilLoggerIsNoop(t *testing.T) {
	called := false
	handler := Logging(nil)(func(ctx context.Context, frame []byte) error {
		called = true
		return nil
	})
	if err := handler(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("inner handler should still be invoked")
	}
}

func TestLoggingPropagatesError(t *testing.T) {
	nop := zerolog.Nop()
	handler := Logging(&nop)(func(ctx context.Context, frame []byte) error {
		return errors.New("boom")
	})
	if err := handler(context.Background(), []byte("x")); err == nil {
		t.Fatal("expected error to propagate through the logging layer")
	}
}

type testSink struct {
	frames int
	bytes  int
	errs   int
}

func (s *testSink) RecordFrameReceived(bytes int, latency time.Duration) {
	s.frames++
	s.bytes += bytes
}
func (s *testSink) RecordError() { s.errs++ }

func TestMetricsRecordsFramesAndErrors(t *testing.T) {
	sink := &testSink{}
	handler := Metrics(sink)(func(ctx context.Context, frame []byte) error {
		return errors.New("fail")
	})
	_ = handler(context.Background(), []byte("abcd"))

	if sink.frames != 1 || sink.bytes != 4 || sink.errs != 1 {
		t.Fatalf("sink = %+v, want frames=1 bytes=4 errs=1", sink)
	}
}

func TestMetricsNilSinkIsNoop(t *testing.T) {
	handler := Metrics(nil)(func(ctx context.Context, frame []byte) error { return nil })
	if err := handler(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRecoveryCatchesPanic(t *testing.T) {
	nop := zerolog.Nop()
	handler := Recovery(&nop)(func(ctx context.Context, frame []byte) error {
		panic("kaboom")
	})
	if err := handler(context.Background(), nil); err == nil {
		t.Fatal("expected recovered panic to surface as an error")
	}
}

func TestTimeoutExpires(t *testing.T) {
	handler := Timeout(10 * time.Millisecond)(func(ctx context.Context, frame []byte) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if err := handler(context.Background(), nil); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestTimeoutCompletesInTime(t *testing.T) {
	handler := Timeout(time.Second)(func(ctx context.Context, frame []byte) error {
		return nil
	})
	if err := handler(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
