package httpapi

import (
	"context"
	"fmt"
	"net/http"

	sonic "github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"

	"github.com/riskibarqy/guildhall/internal/platform/logging"
	"github.com/riskibarqy/guildhall/internal/usecase"
)

type Handler struct {
	guildService      *usecase.GuildService
	rosterService     *usecase.RosterService
	invitationService *usecase.InvitationService
	logger            *logging.Logger
	validator         *validator.Validate
}

func NewHandler(
	guildService *usecase.GuildService,
	rosterService *usecase.RosterService,
	invitationService *usecase.InvitationService,
	logger *logging.Logger,
) *Handler {
	if logger == nil {
		logger = logging.Default()
	}

	return &Handler{
		guildService:      guildService,
		rosterService:     rosterService,
		invitationService: invitationService,
		logger:            logger.Named("httpapi"),
		validator:         validator.New(),
	}
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Healthz")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) validateRequest(ctx context.Context, payload any) error {
	ctx, span := startSpan(ctx, "httpapi.Handler.validateRequest")
	defer span.End()

	if err := h.validator.StructCtx(ctx, payload); err != nil {
		return fmt.Errorf("%w: validation failed: %v", usecase.ErrInvalidInput, err)
	}

	return nil
}

// decodeRequest reads a strict JSON body and validates it.
func (h *Handler) decodeRequest(ctx context.Context, r *http.Request, dst any) error {
	decoder := sonic.ConfigDefault.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err)
	}
	return h.validateRequest(ctx, dst)
}

func requireActor(ctx context.Context) (actor, error) {
	a, ok := actorFromContext(ctx)
	if !ok {
		return actor{}, fmt.Errorf("%w: actor is missing from request context", errUnauthenticated)
	}
	annotateActor(ctx, a)
	return a, nil
}
