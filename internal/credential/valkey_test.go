package credential

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func newValkeyRegistry(t *testing.T) (*Valkey, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewValkey(rdb), mr
}

func TestValkey_InviteLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	v, _ := newValkeyRegistry(t)
	roomID := uuid.New()

	code, err := v.MintInvite(ctx, roomID)
	if err != nil {
		t.Fatalf("MintInvite() error = %v", err)
	}

	got, err := v.PeekInvite(ctx, code)
	if err != nil || got != roomID {
		t.Fatalf("PeekInvite() = %v, %v, want %v, nil", got, err, roomID)
	}
	// Peeking does not consume.
	if _, err := v.PeekInvite(ctx, code); err != nil {
		t.Fatalf("second PeekInvite() error = %v", err)
	}

	got, err = v.ConsumeInvite(ctx, code)
	if err != nil || got != roomID {
		t.Fatalf("ConsumeInvite() = %v, %v, want %v, nil", got, err, roomID)
	}
	if _, err := v.ConsumeInvite(ctx, code); !errors.Is(err, ErrInviteInvalid) {
		t.Fatalf("second ConsumeInvite() error = %v, want ErrInviteInvalid", err)
	}
}

func TestValkey_InviteExpiry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	v, mr := newValkeyRegistry(t)

	code, err := v.MintInvite(ctx, uuid.New())
	if err != nil {
		t.Fatalf("MintInvite() error = %v", err)
	}

	mr.FastForward(InviteTTL + time.Second)
	if _, err := v.PeekInvite(ctx, code); !errors.Is(err, ErrInviteInvalid) {
		t.Errorf("PeekInvite() after TTL error = %v, want ErrInviteInvalid", err)
	}
	if _, err := v.ConsumeInvite(ctx, code); !errors.Is(err, ErrInviteInvalid) {
		t.Errorf("ConsumeInvite() after TTL error = %v, want ErrInviteInvalid", err)
	}
}

func TestValkey_TransferLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	v, _ := newValkeyRegistry(t)
	ids := []uuid.UUID{uuid.New(), uuid.New()}

	code, err := v.MintTransfer(ctx, ids)
	if err != nil {
		t.Fatalf("MintTransfer() error = %v", err)
	}

	got, err := v.ConsumeTransfer(ctx, code)
	if err != nil {
		t.Fatalf("ConsumeTransfer() error = %v", err)
	}
	if len(got) != 2 || got[0] != ids[0] || got[1] != ids[1] {
		t.Errorf("ConsumeTransfer() = %v, want %v", got, ids)
	}
	if _, err := v.ConsumeTransfer(ctx, code); !errors.Is(err, ErrTransferInvalid) {
		t.Errorf("second ConsumeTransfer() error = %v, want ErrTransferInvalid", err)
	}
}

func TestValkey_TransferExpiry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	v, mr := newValkeyRegistry(t)

	code, err := v.MintTransfer(ctx, []uuid.UUID{uuid.New()})
	if err != nil {
		t.Fatalf("MintTransfer() error = %v", err)
	}

	mr.FastForward(TransferTTL + time.Second)
	if _, err := v.ConsumeTransfer(ctx, code); !errors.Is(err, ErrTransferInvalid) {
		t.Errorf("ConsumeTransfer() after TTL error = %v, want ErrTransferInvalid", err)
	}
}

func TestValkey_SweepIsNoOp(t *testing.T) {
	t.Parallel()
	v, _ := newValkeyRegistry(t)
	if err := v.Sweep(context.Background()); err != nil {
		t.Errorf("Sweep() error = %v", err)
	}
}
