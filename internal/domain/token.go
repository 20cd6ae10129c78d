package domain

import (
	"time"

	"github.com/google/uuid"
)

// EIN is the numeric identity handle an address resolves to via the identity
// registry. Ownership and whitelisting are tracked by EIN, not by address, so
// a holder can rotate addresses without losing standing.
type EIN uint64

// Address is a ledger account address. The engine treats it as opaque.
type Address string

// Token is the security token instance. Identity fields and the owner EIN are
// fixed at construction; registry references may be swapped once pre-launch.
type Token struct {
	ID          uuid.UUID
	Symbol      string
	Name        string
	Description string
	Decimals    uint8
	OwnerEIN    EIN
	CreatedAt   time.Time
}
