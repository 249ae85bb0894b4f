package usecase

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/riskibarqy/guildhall/internal/domain/guild"
	"github.com/riskibarqy/guildhall/internal/platform/logging"
)

// MutationStep is one guarded write: Mut is applied only if every condition in Pre
// holds on the stored guild at write time.
type MutationStep struct {
	Name string
	Pre  guild.Precondition
	Mut  guild.Mutation
}

type EngineOutcome struct {
	guild.UpdateOutcome
	AppliedSteps []string
}

// MutationEngine is the only path by which services change an existing guild.
type MutationEngine struct {
	guilds guild.Repository
	logger *logging.Logger
}

func NewMutationEngine(guilds guild.Repository, logger *logging.Logger) *MutationEngine {
	if logger == nil {
		logger = logging.Default()
	}
	return &MutationEngine{guilds: guilds, logger: logger.Named("mutation_engine")}
}

func (e *MutationEngine) Apply(ctx context.Context, guildID string, step MutationStep) (EngineOutcome, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.MutationEngine.Apply",
		attribute.String("guild.id", guildID),
		attribute.String("mutation.step", step.Name),
	)
	defer span.End()

	out, err := e.guilds.ConditionalUpdate(ctx, guildID, step.Pre, step.Mut)
	if err != nil {
		e.logger.WarnContext(ctx, "conditional update failed",
			"guild_id", guildID,
			"step", step.Name,
			"error", err,
		)
		return EngineOutcome{}, fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, step.Name, err)
	}

	result := EngineOutcome{UpdateOutcome: out}
	switch out.Result {
	case guild.UpdateApplied:
		result.AppliedSteps = []string{step.Name}
	case guild.UpdatePreconditionFailed:
		e.logger.DebugContext(ctx, "precondition failed",
			"guild_id", guildID,
			"step", step.Name,
			"failed_condition", out.FailedCondition,
		)
	}
	span.SetAttributes(attribute.String("mutation.result", string(out.Result)))
	return result, nil
}

// ApplyTwoPhase tries combined first. If its precondition fails, the fallback steps
// run in order, each guarded on its own, stopping at the first that is not applied.
// Between fallback steps another writer may interleave.
func (e *MutationEngine) ApplyTwoPhase(ctx context.Context, guildID string, combined MutationStep, fallback ...MutationStep) (EngineOutcome, error) {
	out, err := e.Apply(ctx, guildID, combined)
	if err != nil || out.Result != guild.UpdatePreconditionFailed || len(fallback) == 0 {
		return out, err
	}

	var appliedSteps []string
	for _, step := range fallback {
		out, err = e.Apply(ctx, guildID, step)
		if err != nil {
			return EngineOutcome{AppliedSteps: appliedSteps}, err
		}
		if out.Result != guild.UpdateApplied {
			out.AppliedSteps = appliedSteps
			return out, nil
		}
		appliedSteps = append(appliedSteps, step.Name)
	}
	out.AppliedSteps = appliedSteps
	return out, nil
}

// Explain re-reads the guild after a refused write and classifies the refusal.
func (e *MutationEngine) Explain(ctx context.Context, guildID string, s slotRef, targetID, expectedHolder string) Result {
	g, ok, err := e.guilds.GetByID(ctx, guildID)
	if err != nil {
		e.logger.WarnContext(ctx, "re-read after refused write failed", "guild_id", guildID, "error", err)
		return refused(OutcomeStoreUnavailable, "guild storage is unreachable, try again shortly")
	}
	if !ok {
		return refused(OutcomeNotFound, "this guild no longer exists")
	}
	return diagnose(g, s, targetID, expectedHolder)
}
