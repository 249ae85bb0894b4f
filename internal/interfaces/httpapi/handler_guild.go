package httpapi

import (
	"context"
	"net/http"

	"github.com/riskibarqy/guildhall/internal/usecase"
)

func (h *Handler) RegisterGuild(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RegisterGuild")
	defer span.End()

	a, err := requireActor(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	var req registerGuildRequest
	if err := h.decodeRequest(ctx, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	g, err := h.guildService.RegisterGuild(ctx, usecase.RegisterGuildInput{
		TenantID:         a.TenantID,
		ActorUserID:      a.UserID,
		ActorDisplayName: a.Name,
		Name:             req.Name,
		Regions:          req.Regions,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "register guild failed", "tenant_id", a.TenantID, "user_id", a.UserID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusCreated, guildToDTO(g))
}

func (h *Handler) ListGuilds(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListGuilds")
	defer span.End()

	a, err := requireActor(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	guilds, err := h.guildService.ListGuilds(ctx, a.TenantID)
	if err != nil {
		h.logger.WarnContext(ctx, "list guilds failed", "tenant_id", a.TenantID, "error", err)
		writeError(ctx, w, err)
		return
	}

	items := make([]guildDTO, 0, len(guilds))
	for _, g := range guilds {
		items = append(items, guildToDTO(g))
	}
	writeSuccess(ctx, w, http.StatusOK, items)
}

func (h *Handler) GetGuild(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetGuild")
	defer span.End()

	a, err := requireActor(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	guildID := r.PathValue("guildID")
	g, err := h.guildService.GetGuild(ctx, a.TenantID, guildID)
	if err != nil {
		h.logger.WarnContext(ctx, "get guild failed", "guild_id", guildID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, guildToDTO(g))
}

func (h *Handler) GetMemberGuild(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetMemberGuild")
	defer span.End()

	a, err := requireActor(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	userID := r.PathValue("userID")
	g, err := h.guildService.FindGuildForUser(ctx, a.TenantID, userID)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, guildToDTO(g))
}

func (h *Handler) DeleteGuild(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.DeleteGuild")
	defer span.End()

	a, err := requireActor(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	guildID := r.PathValue("guildID")
	if err := h.guildService.DeleteGuild(ctx, guildAction(a, guildID, "", "")); err != nil {
		h.logger.WarnContext(ctx, "delete guild failed", "guild_id", guildID, "user_id", a.UserID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, map[string]string{"id": guildID, "status": "deleted"})
}

func (h *Handler) TransferLeadership(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.TransferLeadership")
	defer span.End()

	h.runTargetedAction(w, r.WithContext(ctx), "transfer leadership", h.guildService.TransferLeadership)
}

func (h *Handler) AddManager(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.AddManager")
	defer span.End()

	h.runTargetedAction(w, r.WithContext(ctx), "add manager", h.guildService.AddManager)
}

func (h *Handler) RemoveManager(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RemoveManager")
	defer span.End()

	a, err := requireActor(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	res, err := h.guildService.RemoveManager(ctx, guildAction(a, r.PathValue("guildID"), r.PathValue("userID"), ""))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeResult(ctx, w, res)
}

func (h *Handler) RemoveCoLeader(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RemoveCoLeader")
	defer span.End()

	a, err := requireActor(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	res, err := h.guildService.RemoveCoLeader(ctx, guildAction(a, r.PathValue("guildID"), r.PathValue("userID"), ""))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeResult(ctx, w, res)
}

func (h *Handler) SetRegionStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.SetRegionStatus")
	defer span.End()

	a, err := requireActor(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	var req regionStatusRequest
	if err := h.decodeRequest(ctx, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	res, err := h.guildService.SetRegionStatus(ctx, usecase.RegionStatusInput{
		TenantID:     a.TenantID,
		GuildID:      r.PathValue("guildID"),
		ActorUserID:  a.UserID,
		ActorIsAdmin: a.IsAdmin,
		Region:       r.PathValue("region"),
		Status:       req.Status,
	})
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeResult(ctx, w, res)
}

// runTargetedAction handles the synchronous admin commands that take a target user
// in the body.
func (h *Handler) runTargetedAction(
	w http.ResponseWriter,
	r *http.Request,
	name string,
	run func(ctx context.Context, input usecase.GuildActionInput) (usecase.Result, error),
) {
	ctx := r.Context()
	a, err := requireActor(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	var req targetUserRequest
	if err := h.decodeRequest(ctx, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	guildID := r.PathValue("guildID")
	res, err := run(ctx, guildAction(a, guildID, req.UserID, req.DisplayName))
	if err != nil {
		h.logger.WarnContext(ctx, name+" failed", "guild_id", guildID, "user_id", a.UserID, "error", err)
		writeError(ctx, w, err)
		return
	}
	writeResult(ctx, w, res)
}

func guildAction(a actor, guildID, targetUserID, targetName string) usecase.GuildActionInput {
	return usecase.GuildActionInput{
		TenantID:          a.TenantID,
		GuildID:           guildID,
		ActorUserID:       a.UserID,
		ActorIsAdmin:      a.IsAdmin,
		TargetUserID:      targetUserID,
		TargetDisplayName: targetName,
	}
}
