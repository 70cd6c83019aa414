package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBroadcastSendRecv(t *testing.T) {
	b := NewBroadcast[int](4)
	rx := b.Subscribe()

	b.Send(1)
	b.Send(2)

	ctx := context.Background()
	v, err := rx.Recv(ctx)
	if err != nil || v != 1 {
		t.Fatalf("Recv() = (%d, %v), want (1, nil)", v, err)
	}
	v, err = rx.Recv(ctx)
	if err != nil || v != 2 {
		t.Fatalf("Recv() = (%d, %v), want (2, nil)", v, err)
	}
}

// TestBroadcastLateSubscriberSeesNoHistory verifies a receiver added
// after Send calls have occurred sees nothing sent before it.
func TestBroadcastLateSubscriberSeesNoHistory(t *testing.T) {
	b := NewBroadcast[int](4)
	b.Send(1)
	b.Send(2)

	rx := b.Subscribe()
	b.Send(3)

	ctx := context.Background()
	v, err := rx.Recv(ctx)
	if err != nil || v != 3 {
		t.Fatalf("Recv() = (%d, %v), want (3, nil)", v, err)
	}
}

// TestBroadcastLaggedReceiver verifies a slow receiver is notified with
// a LaggedError and fast-forwarded rather than disconnected.
func TestBroadcastLaggedReceiver(t *testing.T) {
	b := NewBroadcast[int](2)
	rx := b.Subscribe()

	b.Send(1)
	b.Send(2)
	b.Send(3) // ring capacity 2: message 1 is now overwritten

	ctx := context.Background()
	_, err := rx.Recv(ctx)
	lagged, ok := err.(*LaggedError)
	if !ok {
		t.Fatalf("Recv() error = %v (%T), want *LaggedError", err, err)
	}
	if lagged.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", lagged.Skipped)
	}

	// Receiver resumes from the oldest message still buffered.
	v, err := rx.Recv(ctx)
	if err != nil || v != 2 {
		t.Fatalf("Recv() = (%d, %v), want (2, nil)", v, err)
	}
	v, err = rx.Recv(ctx)
	if err != nil || v != 3 {
		t.Fatalf("Recv() = (%d, %v), want (3, nil)", v, err)
	}
}

func TestBroadcastCloseDrainsThenErrClosed(t *testing.T) {
	b := NewBroadcast[int](4)
	rx := b.Subscribe()
	b.Send(42)
	b.Close()

	ctx := context.Background()
	v, err := rx.Recv(ctx)
	if err != nil || v != 42 {
		t.Fatalf("Recv() = (%d, %v), want (42, nil) before drain completes", v, err)
	}
	_, err = rx.Recv(ctx)
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("Recv() error = %v, want ErrClosed", err)
	}
}

func TestBroadcastRecvBlocksUntilSend(t *testing.T) {
	b := NewBroadcast[int](4)
	rx := b.Subscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		ctx := context.Background()
		v, err := rx.Recv(ctx)
		if err != nil || v != 7 {
			t.Errorf("Recv() = (%d, %v), want (7, nil)", v, err)
		}
	}()

	time.Sleep(20 * time.Millisecond)
	b.Send(7)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Recv did not unblock after Send")
	}
}

func TestBroadcastRecvRespectsContextCancellation(t *testing.T) {
	b := NewBroadcast[int](4)
	rx := b.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := rx.Recv(ctx)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Recv() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Recv did not return after context cancellation")
	}
}

func TestMultipleReceiversIndependentCursors(t *testing.T) {
	b := NewBroadcast[int](4)
	rx1 := b.Subscribe()
	b.Send(1)
	rx2 := b.Subscribe()
	b.Send(2)

	ctx := context.Background()
	v, _ := rx1.Recv(ctx)
	if v != 1 {
		t.Fatalf("rx1 first Recv = %d, want 1", v)
	}
	v, _ = rx1.Recv(ctx)
	if v != 2 {
		t.Fatalf("rx1 second Recv = %d, want 2", v)
	}
	v, _ = rx2.Recv(ctx)
	if v != 2 {
		t.Fatalf("rx2 first Recv = %d, want 2 (joined after message 1)", v)
	}
}
