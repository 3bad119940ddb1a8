package bus

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestBusGlobalSubscribeReceivesPublished(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := NewBus[string, int](zap.NewNop())
	if err := b.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-b.Ready()

	sub := b.Subscribe(ctx)
	pub := b.CreatePublisher("k")
	go pub(ctx, 42)

	select {
	case msg := <-sub:
		if msg.Message != 42 {
			t.Fatalf("Message = %d, want 42", msg.Message)
		}
		if msg.Key != "k" {
			t.Fatalf("Key = %q, want %q", msg.Key, "k")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published message")
	}
}

func TestBusKeyedSubscribeIgnoresOtherKeys(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := NewBus[string, int](zap.NewNop())
	if err := b.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-b.Ready()

	sub := b.Subscribe(ctx, "wanted")
	go b.Publish(ctx, "other", 1)
	go b.Publish(ctx, "wanted", 2)

	select {
	case msg := <-sub:
		if msg.Message != 2 {
			t.Fatalf("Message = %d, want 2 (the keyed publish)", msg.Message)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for keyed message")
	}
}

func TestBusSubscribeClosesOnContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := NewBus[string, int](zap.NewNop())
	if err := b.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-b.Ready()

	sub := b.Subscribe(ctx)
	cancel()

	select {
	case _, ok := <-sub:
		if ok {
			t.Fatal("Subscribe channel: want closed after context cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for subscribe channel to close")
	}
}
