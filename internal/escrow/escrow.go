// Package escrow holds the payment-token port and the ledger the engine
// escrows buy-in value on. Claims are paid out of the escrow account in the
// same payment token buys were denominated in.
package escrow

import (
	"context"
	"errors"

	"sto-gateway/internal/domain"
	"sto-gateway/pkg/fixedpoint"
)

var (
	// ErrInsufficientFunds indicates the sender balance does not cover the move.
	ErrInsufficientFunds = errors.New("escrow: insufficient funds")

	// ErrInsufficientAllowance indicates the spender's approved budget is too small.
	ErrInsufficientAllowance = errors.New("escrow: insufficient allowance")
)

// PaymentToken is the external value-transfer interface the engine consumes.
// Buys pull approved funds into escrow; claims push escrow funds to holders.
type PaymentToken interface {
	BalanceOf(ctx context.Context, addr domain.Address) (fixedpoint.Amount, error)
	// Transfer moves amount from one account to another on the engine's
	// authority. Used for escrow payouts.
	Transfer(ctx context.Context, from, to domain.Address, amount fixedpoint.Amount) error
	// TransferFrom moves amount from owner to dest consuming spender's
	// allowance. Used to fund escrow from a buyer's approved budget.
	TransferFrom(ctx context.Context, owner, spender, to domain.Address, amount fixedpoint.Amount) error
}
