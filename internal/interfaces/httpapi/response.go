package httpapi

import (
	"context"
	"errors"
	"net/http"

	sonic "github.com/bytedance/sonic"

	"github.com/riskibarqy/guildhall/internal/usecase"
)

const (
	googleAPIVersion = "2.0"
	errorDomain      = "guildhall"
)

type googleResponseEnvelope struct {
	APIVersion string           `json:"apiVersion"`
	Data       any              `json:"data,omitempty"`
	Error      *googleErrorBody `json:"error,omitempty"`
}

type googleErrorBody struct {
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Status  string            `json:"status"`
	Errors  []googleErrorItem `json:"errors,omitempty"`
}

type googleErrorItem struct {
	Domain  string `json:"domain"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

type mappedError struct {
	HTTPStatus int
	Reason     string
	Status     string
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	_, span := startSpan(ctx, "httpapi.writeJSON")
	defer span.End()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = sonic.ConfigDefault.NewEncoder(w).Encode(payload)
}

func writeSuccess(ctx context.Context, w http.ResponseWriter, status int, data any) {
	ctx, span := startSpan(ctx, "httpapi.writeSuccess")
	defer span.End()

	writeJSON(ctx, w, status, googleResponseEnvelope{
		APIVersion: googleAPIVersion,
		Data:       data,
	})
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	ctx, span := startSpan(ctx, "httpapi.writeError")
	defer span.End()

	mapped := mapError(ctx, err)
	writeErrorBody(ctx, w, mapped, err.Error())
}

// writeResult renders a command result. Refusals keep their outcome as the error
// reason so callers can branch on it without parsing messages.
func writeResult(ctx context.Context, w http.ResponseWriter, res usecase.Result) {
	ctx, span := startSpan(ctx, "httpapi.writeResult")
	defer span.End()

	if res.OK() {
		writeSuccess(ctx, w, http.StatusOK, toResultDTO(res))
		return
	}
	mapped := mapError(ctx, res.Err())
	mapped.Reason = string(res.Outcome)
	writeErrorBody(ctx, w, mapped, res.Message)
}

func writeErrorBody(ctx context.Context, w http.ResponseWriter, mapped mappedError, message string) {
	writeJSON(ctx, w, mapped.HTTPStatus, googleResponseEnvelope{
		APIVersion: googleAPIVersion,
		Error: &googleErrorBody{
			Code:    mapped.HTTPStatus,
			Message: message,
			Status:  mapped.Status,
			Errors: []googleErrorItem{
				{
					Domain:  errorDomain,
					Reason:  mapped.Reason,
					Message: message,
				},
			},
		},
	})
}

func writeInternalError(ctx context.Context, w http.ResponseWriter) {
	ctx, span := startSpan(ctx, "httpapi.writeInternalError")
	defer span.End()

	writeErrorBody(ctx, w, mappedError{
		HTTPStatus: http.StatusInternalServerError,
		Reason:     "internalError",
		Status:     "INTERNAL",
	}, "internal server error")
}

func mapError(ctx context.Context, err error) mappedError {
	_, span := startSpan(ctx, "httpapi.mapError")
	defer span.End()

	switch {
	case errors.Is(err, usecase.ErrInvalidInput):
		return mappedError{http.StatusBadRequest, "invalidInput", "INVALID_ARGUMENT"}
	case errors.Is(err, errUnauthenticated):
		return mappedError{http.StatusUnauthorized, "unauthenticated", "UNAUTHENTICATED"}
	case errors.Is(err, usecase.ErrUnauthorized):
		return mappedError{http.StatusForbidden, "unauthorized", "PERMISSION_DENIED"}
	case errors.Is(err, usecase.ErrNotFound):
		return mappedError{http.StatusNotFound, "notFound", "NOT_FOUND"}
	case errors.Is(err, usecase.ErrIneligible):
		return mappedError{http.StatusUnprocessableEntity, "ineligible", "FAILED_PRECONDITION"}
	case errors.Is(err, usecase.ErrAlreadyInOtherGuild):
		return mappedError{http.StatusConflict, "alreadyInOtherGuild", "FAILED_PRECONDITION"}
	case errors.Is(err, usecase.ErrCooldownActive):
		return mappedError{http.StatusConflict, "cooldownActive", "FAILED_PRECONDITION"}
	case errors.Is(err, usecase.ErrCapacityReached):
		return mappedError{http.StatusConflict, "capacityReached", "RESOURCE_EXHAUSTED"}
	case errors.Is(err, usecase.ErrAlreadyHolds):
		return mappedError{http.StatusConflict, "alreadyHolds", "ALREADY_EXISTS"}
	case errors.Is(err, usecase.ErrSlotChanged):
		return mappedError{http.StatusConflict, "slotChanged", "ABORTED"}
	case errors.Is(err, usecase.ErrStateConflict):
		return mappedError{http.StatusConflict, "stateConflict", "ABORTED"}
	case errors.Is(err, usecase.ErrStale):
		return mappedError{http.StatusGone, "stale", "FAILED_PRECONDITION"}
	case errors.Is(err, usecase.ErrStoreUnavailable):
		return mappedError{http.StatusServiceUnavailable, "storeUnavailable", "UNAVAILABLE"}
	case errors.Is(err, usecase.ErrDependencyUnavailable):
		return mappedError{http.StatusServiceUnavailable, "dependencyUnavailable", "UNAVAILABLE"}
	default:
		return mappedError{http.StatusInternalServerError, "internalError", "INTERNAL"}
	}
}
