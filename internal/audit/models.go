package audit

import (
	"time"

	"github.com/google/uuid"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID        uuid.UUID `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`
	ActorEIN  uint64    `json:"actor_ein,omitempty"`
	Action    string    `json:"action"`
	TokenID   string    `json:"token_id"`
	Amount    string    `json:"amount,omitempty"`
	Details   string    `json:"details,omitempty"`
}

// Action names for the token engine's audit trail.
const (
	ActionParamsSet        = "params_set"
	ActionStageAdvanced    = "stage_advanced"
	ActionWhitelistAdded   = "whitelist_added"
	ActionWhitelistRemoved = "whitelist_removed"
	ActionBlacklistAdded   = "blacklist_added"
	ActionBlacklistRemoved = "blacklist_removed"
	ActionTokensBought     = "tokens_bought"
	ActionTransfer         = "transfer"
	ActionBoundariesAdded  = "boundaries_added"
	ActionOracleSet        = "oracle_set"
	ActionResultsNotified  = "period_results_notified"
	ActionPaymentClaimed   = "payment_claimed"
)
