// Package credential manages short-lived one-shot codes: room-scoped invite
// codes (24 h) and transfer codes bundling user ids (1 h). Consumption is an
// atomic check-and-remove; two concurrent consumers of the same code see at
// most one success. Entries past expiry behave as invalid whether or not a
// sweep has reclaimed them.
package credential

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Code lifetimes.
const (
	InviteTTL   = 24 * time.Hour
	TransferTTL = time.Hour
)

// Sentinel errors for the credential package. Callers map both to a single
// "invalid or expired" outcome at the API surface.
var (
	ErrInviteInvalid   = errors.New("invite code is invalid or expired")
	ErrTransferInvalid = errors.New("transfer code is invalid or expired")
)

// Registry is the contract shared by the in-process and Valkey-backed
// implementations. Codes are opaque 128-bit random identifiers.
type Registry interface {
	// MintInvite registers a new invite code scoped to the given room.
	MintInvite(ctx context.Context, roomID uuid.UUID) (string, error)

	// ConsumeInvite atomically resolves and removes an invite code, returning
	// the room it was minted for. Unknown, already-consumed, and expired
	// codes return ErrInviteInvalid.
	ConsumeInvite(ctx context.Context, code string) (uuid.UUID, error)

	// PeekInvite resolves an invite code without consuming it, so callers can
	// run pre-checks that must not burn the code on failure.
	PeekInvite(ctx context.Context, code string) (uuid.UUID, error)

	// MintTransfer registers a new transfer code carrying the given user ids.
	MintTransfer(ctx context.Context, userIDs []uuid.UUID) (string, error)

	// ConsumeTransfer atomically resolves and removes a transfer code.
	// Unknown, already-consumed, and expired codes return ErrTransferInvalid.
	ConsumeTransfer(ctx context.Context, code string) ([]uuid.UUID, error)

	// Sweep reclaims expired entries. Expiry is enforced on read regardless;
	// sweeping only frees memory.
	Sweep(ctx context.Context) error
}

// NewCode generates an opaque 128-bit code. Collisions are not possible in
// practice.
func NewCode() string {
	return uuid.NewString()
}
