package httpapi

import (
	"context"
	"net/http"

	"github.com/riskibarqy/guildhall/internal/usecase"
)

func (h *Handler) CreateInvitation(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.CreateInvitation")
	defer span.End()

	a, err := requireActor(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	var req createInvitationRequest
	if err := h.decodeRequest(ctx, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	guildID := r.PathValue("guildID")
	created, err := h.invitationService.CreateInvitation(ctx, usecase.CreateInvitationInput{
		Type:              req.Type,
		TenantID:          a.TenantID,
		GuildID:           guildID,
		InviterUserID:     a.UserID,
		InviterIsAdmin:    a.IsAdmin,
		TargetUserID:      req.TargetUserID,
		TargetDisplayName: req.TargetDisplayName,
		Region:            req.Region,
		Roster:            req.Roster,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "create invitation failed",
			"guild_id", guildID,
			"type", req.Type,
			"inviter_id", a.UserID,
			"target_id", req.TargetUserID,
			"error", err,
		)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusCreated, createdInvitationDTO{
		Invitation:   invitationToDTO(created.Invitation),
		Handle:       string(created.Handle),
		State:        string(created.State),
		DeliveredVia: string(created.DeliveredVia),
	})
}

func (h *Handler) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.AcceptInvitation")
	defer span.End()

	h.respondInvitation(w, r.WithContext(ctx), h.invitationService.Accept)
}

func (h *Handler) DeclineInvitation(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.DeclineInvitation")
	defer span.End()

	h.respondInvitation(w, r.WithContext(ctx), h.invitationService.Decline)
}

func (h *Handler) respondInvitation(
	w http.ResponseWriter,
	r *http.Request,
	respond func(ctx context.Context, input usecase.RespondInvitationInput) (usecase.Result, error),
) {
	ctx := r.Context()
	a, err := requireActor(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	var req respondInvitationRequest
	if err := h.decodeRequest(ctx, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	res, err := respond(ctx, usecase.RespondInvitationInput{Handle: req.Handle, ActingUserID: a.UserID})
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeResult(ctx, w, res)
}
