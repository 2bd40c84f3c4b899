package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tagvault/tagvault/internal/cache"
)

func TestPaymentConfirmationsLocalFallback(t *testing.T) {
	cache.SetClient(nil, "")
	payments := NewPaymentConfirmations(time.Hour)
	ctx := context.Background()

	confirmed, err := payments.Confirmed(ctx, "ORD-1001")
	if err != nil {
		t.Fatalf("confirmed check failed: %v", err)
	}
	if confirmed {
		t.Fatalf("unknown order must not be confirmed")
	}

	if err := payments.Record(ctx, "ORD-1001"); err != nil {
		t.Fatalf("record failed: %v", err)
	}
	confirmed, err = payments.Confirmed(ctx, "ORD-1001")
	if err != nil {
		t.Fatalf("confirmed check failed: %v", err)
	}
	if !confirmed {
		t.Fatalf("recorded order must be confirmed")
	}
}

func TestPaymentConfirmationsLocalExpiry(t *testing.T) {
	cache.SetClient(nil, "")
	payments := NewPaymentConfirmations(time.Millisecond)
	ctx := context.Background()

	if err := payments.Record(ctx, "ORD-1002"); err != nil {
		t.Fatalf("record failed: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	confirmed, err := payments.Confirmed(ctx, "ORD-1002")
	if err != nil {
		t.Fatalf("confirmed check failed: %v", err)
	}
	if confirmed {
		t.Fatalf("confirmation must lapse after ttl")
	}
}

func TestPaymentConfirmationsSharedStore(t *testing.T) {
	mr := useMiniredis(t)
	payments := NewPaymentConfirmations(time.Minute)
	ctx := context.Background()

	if err := payments.Record(ctx, "ORD-1003"); err != nil {
		t.Fatalf("record failed: %v", err)
	}
	// 同一 Redis 的另一个实例也能读到确认
	sibling := NewPaymentConfirmations(time.Minute)
	confirmed, err := sibling.Confirmed(ctx, "ORD-1003")
	if err != nil {
		t.Fatalf("confirmed check failed: %v", err)
	}
	if !confirmed {
		t.Fatalf("confirmation must be visible across instances")
	}

	mr.FastForward(2 * time.Minute)
	confirmed, err = sibling.Confirmed(ctx, "ORD-1003")
	if err != nil {
		t.Fatalf("confirmed check failed: %v", err)
	}
	if confirmed {
		t.Fatalf("confirmation must expire in shared store")
	}
}

func TestPaymentConfirmationsRejectsEmptyOrder(t *testing.T) {
	cache.SetClient(nil, "")
	payments := NewPaymentConfirmations(time.Hour)

	if err := payments.Record(context.Background(), "  "); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got: %v", err)
	}
	confirmed, err := payments.Confirmed(context.Background(), "")
	if err != nil || confirmed {
		t.Fatalf("empty order must resolve to unconfirmed, got %v %v", confirmed, err)
	}
}
