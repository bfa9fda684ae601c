package models

import "time"

// SystemState mirrors the single on-chain system state account for one
// network. The pause flag here is cross-cutting: it overrides every pool's
// own pause flags. Created lazily on the first successful sync per network.
type SystemState struct {
	Network         string    `json:"network"`
	Address         string    `json:"address"`
	Paused          bool      `json:"paused"`
	PauseReasonCode uint8     `json:"pause_reason_code"`
	PauseReason     string    `json:"pause_reason"`
	PausedAt        time.Time `json:"paused_at"`
	Authority       string    `json:"authority"`

	// Watermark for incremental discovery: the last ledger slot this
	// network was successfully reconciled against.
	LastSyncedSlot uint64    `json:"last_synced_slot"`
	LastSyncedAt   time.Time `json:"last_synced_at"`
}

// PauseReasonText maps the on-chain pause reason codes to display text.
// Code 255 is reserved for reasons documented off-chain.
func PauseReasonText(code uint8) string {
	switch code {
	case 0:
		return "not paused"
	case 1:
		return "fund consolidation in progress"
	case 2:
		return "contract upgrade in progress"
	case 3:
		return "critical security issue"
	case 4:
		return "routine maintenance"
	case 5:
		return "emergency halt"
	case 6:
		return "governance action in progress"
	case 7:
		return "external dependency issue"
	case 8:
		return "compliance requirement"
	case 9:
		return "testing activities"
	case 10:
		return "oracle or price feed issue"
	case 11:
		return "liquidity management"
	case 12:
		return "network congestion"
	case 13:
		return "token economic rebalancing"
	case 14:
		return "external audit in progress"
	case 15:
		return "scheduled maintenance"
	case 255:
		return "custom reason"
	default:
		return "unknown reason"
	}
}
