package guild

import (
	"context"
	"errors"
)

var ErrDuplicateName = errors.New("guild name already taken")

type UpdateResult string

const (
	UpdateApplied            UpdateResult = "applied"
	UpdatePreconditionFailed UpdateResult = "precondition_failed"
	UpdateNotFound           UpdateResult = "not_found"
)

// UpdateOutcome reports a conditional write. Guild is the post-write state when
// applied and the observed state when a precondition failed.
type UpdateOutcome struct {
	Result          UpdateResult
	Guild           Guild
	FailedCondition string
}

// Repository persists guilds. There is no unconditional whole-document save: every
// change to an existing guild goes through ConditionalUpdate.
type Repository interface {
	Create(ctx context.Context, g Guild) error
	GetByID(ctx context.Context, guildID string) (Guild, bool, error)
	GetByName(ctx context.Context, tenantID, name string) (Guild, bool, error)
	FindByMember(ctx context.Context, tenantID, userID string) (Guild, bool, error)
	ListByTenant(ctx context.Context, tenantID string) ([]Guild, error)
	ConditionalUpdate(ctx context.Context, guildID string, pre Precondition, mut Mutation) (UpdateOutcome, error)
	Delete(ctx context.Context, guildID string) (bool, error)
	Ping(ctx context.Context) error
}

// Evaluate is the store-independent half of ConditionalUpdate. Stores call it while
// holding whatever exclusion they use for the aggregate.
func Evaluate(current Guild, pre Precondition, mut Mutation) (UpdateOutcome, error) {
	if failed, ok := pre.Check(current); !ok {
		return UpdateOutcome{Result: UpdatePreconditionFailed, Guild: current, FailedCondition: failed.String()}, nil
	}
	next, err := mut.Apply(current)
	if err != nil {
		if errors.Is(err, ErrOpRejected) || errors.Is(err, ErrInvariantViolation) {
			return UpdateOutcome{Result: UpdatePreconditionFailed, Guild: current, FailedCondition: err.Error()}, nil
		}
		return UpdateOutcome{}, err
	}
	next.Version = current.Version + 1
	return UpdateOutcome{Result: UpdateApplied, Guild: next}, nil
}
