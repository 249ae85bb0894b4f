package httpapi

import (
	"net/http"

	"github.com/riskibarqy/guildhall/internal/usecase"
)

func (h *Handler) AddToRoster(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.AddToRoster")
	defer span.End()

	a, err := requireActor(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	var req rosterRequest
	if err := h.decodeRequest(ctx, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	guildID := r.PathValue("guildID")
	res, err := h.rosterService.AddToRoster(ctx, usecase.RosterInput{
		TenantID:     a.TenantID,
		GuildID:      guildID,
		ActorUserID:  a.UserID,
		ActorIsAdmin: a.IsAdmin,
		UserID:       req.UserID,
		DisplayName:  req.DisplayName,
		Region:       req.Region,
		Roster:       req.Roster,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "add to roster failed", "guild_id", guildID, "user_id", req.UserID, "error", err)
		writeError(ctx, w, err)
		return
	}
	writeResult(ctx, w, res)
}

func (h *Handler) RemoveFromRoster(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RemoveFromRoster")
	defer span.End()

	a, err := requireActor(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	res, err := h.rosterService.RemoveFromRoster(ctx, usecase.RosterInput{
		TenantID:     a.TenantID,
		GuildID:      r.PathValue("guildID"),
		ActorUserID:  a.UserID,
		ActorIsAdmin: a.IsAdmin,
		UserID:       r.PathValue("userID"),
		Region:       r.PathValue("region"),
		Roster:       r.PathValue("roster"),
	})
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeResult(ctx, w, res)
}
