package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Valkey key patterns:
//
//	chitter:invite:{code}   -> room id        (STRING with TTL)
//	chitter:transfer:{code} -> JSON user ids  (STRING with TTL)

func inviteKey(code string) string   { return "chitter:invite:" + code }
func transferKey(code string) string { return "chitter:transfer:" + code }

// Valkey is the registry implementation backed by a Valkey/Redis instance.
// One-shot consumption uses GETDEL, so check-and-remove is atomic on the
// server; TTLs make expired entries vanish without a sweeper.
type Valkey struct {
	rdb *redis.Client
}

// NewValkey creates a Valkey-backed registry.
func NewValkey(rdb *redis.Client) *Valkey {
	return &Valkey{rdb: rdb}
}

// MintInvite registers a new invite code for roomID with a 24 h TTL.
func (v *Valkey) MintInvite(ctx context.Context, roomID uuid.UUID) (string, error) {
	code := NewCode()
	if err := v.rdb.Set(ctx, inviteKey(code), roomID.String(), InviteTTL).Err(); err != nil {
		return "", fmt.Errorf("store invite code: %w", err)
	}
	return code, nil
}

// PeekInvite resolves an invite code without removing it.
func (v *Valkey) PeekInvite(ctx context.Context, code string) (uuid.UUID, error) {
	val, err := v.rdb.Get(ctx, inviteKey(code)).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, ErrInviteInvalid
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("peek invite code: %w", err)
	}
	roomID, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, ErrInviteInvalid
	}
	return roomID, nil
}

// ConsumeInvite atomically resolves and removes an invite code.
func (v *Valkey) ConsumeInvite(ctx context.Context, code string) (uuid.UUID, error) {
	val, err := v.rdb.GetDel(ctx, inviteKey(code)).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, ErrInviteInvalid
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("consume invite code: %w", err)
	}
	roomID, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, ErrInviteInvalid
	}
	return roomID, nil
}

// MintTransfer registers a new transfer code for the given user ids with a
// 1 h TTL.
func (v *Valkey) MintTransfer(ctx context.Context, userIDs []uuid.UUID) (string, error) {
	payload, err := json.Marshal(userIDs)
	if err != nil {
		return "", fmt.Errorf("encode transfer bundle: %w", err)
	}
	code := NewCode()
	if err := v.rdb.Set(ctx, transferKey(code), payload, TransferTTL).Err(); err != nil {
		return "", fmt.Errorf("store transfer code: %w", err)
	}
	return code, nil
}

// ConsumeTransfer atomically resolves and removes a transfer code.
func (v *Valkey) ConsumeTransfer(ctx context.Context, code string) ([]uuid.UUID, error) {
	val, err := v.rdb.GetDel(ctx, transferKey(code)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrTransferInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("consume transfer code: %w", err)
	}
	var userIDs []uuid.UUID
	if err := json.Unmarshal([]byte(val), &userIDs); err != nil {
		return nil, ErrTransferInvalid
	}
	return userIDs, nil
}

// Sweep is a no-op: Valkey expires keys by TTL on its own.
func (v *Valkey) Sweep(context.Context) error { return nil }
