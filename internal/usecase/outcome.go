package usecase

import (
	"fmt"

	"github.com/riskibarqy/guildhall/internal/domain/guild"
	"github.com/riskibarqy/guildhall/internal/domain/invitation"
)

// Outcome classifies the result of a guild command. Everything except OutcomeApplied
// and OutcomeDeclined is a refusal the caller can show to the user.
type Outcome string

const (
	OutcomeApplied             Outcome = "applied"
	OutcomeDeclined            Outcome = "declined"
	OutcomeNotFound            Outcome = "not_found"
	OutcomeIneligible          Outcome = "ineligible"
	OutcomeAlreadyInOtherGuild Outcome = "already_in_other_guild"
	OutcomeCooldownActive      Outcome = "cooldown_active"
	OutcomeCapacityReached     Outcome = "capacity_reached"
	OutcomeAlreadyHolds        Outcome = "already_holds"
	OutcomeSlotChanged         Outcome = "slot_changed"
	OutcomeStateConflict       Outcome = "state_conflict"
	OutcomeStoreUnavailable    Outcome = "store_unavailable"
	OutcomeStale               Outcome = "stale"
)

var outcomeErrors = map[Outcome]error{
	OutcomeNotFound:            ErrNotFound,
	OutcomeIneligible:          ErrIneligible,
	OutcomeAlreadyInOtherGuild: ErrAlreadyInOtherGuild,
	OutcomeCooldownActive:      ErrCooldownActive,
	OutcomeCapacityReached:     ErrCapacityReached,
	OutcomeAlreadyHolds:        ErrAlreadyHolds,
	OutcomeSlotChanged:         ErrSlotChanged,
	OutcomeStateConflict:       ErrStateConflict,
	OutcomeStoreUnavailable:    ErrStoreUnavailable,
	OutcomeStale:               ErrStale,
}

// Result is returned by commands whose refusals are expected. Message is written for
// the end user.
type Result struct {
	Outcome    Outcome
	Message    string
	Guild      guild.Guild
	Invitation *invitation.Invitation
}

func (r Result) OK() bool {
	return r.Outcome == OutcomeApplied || r.Outcome == OutcomeDeclined
}

// Err converts a refusal into the matching sentinel error, or nil on success.
func (r Result) Err() error {
	if r.OK() {
		return nil
	}
	sentinel, ok := outcomeErrors[r.Outcome]
	if !ok {
		sentinel = ErrStateConflict
	}
	return fmt.Errorf("%w: %s", sentinel, r.Message)
}

func applied(g guild.Guild, message string) Result {
	return Result{Outcome: OutcomeApplied, Message: message, Guild: g}
}

func refused(outcome Outcome, format string, args ...any) Result {
	return Result{Outcome: outcome, Message: fmt.Sprintf(format, args...)}
}
