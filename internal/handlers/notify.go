package handlers

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"teams-notify-api/internal/apperrors"
	"teams-notify-api/internal/models"
	"teams-notify-api/internal/services"
)

// NotifyHandler is the invocation entry point: validate, route, respond.
// It is the only place errors are translated into envelopes and the only
// place panics are recovered; exactly one envelope leaves per invocation.
type NotifyHandler struct {
	messenger services.MessengerService
	log       *logrus.Logger
}

// NewNotifyHandler builds the entry-point handler.
func NewNotifyHandler(messenger services.MessengerService, log *logrus.Logger) *NotifyHandler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &NotifyHandler{messenger: messenger, log: log}
}

// Handle processes one raw invocation body and always returns a
// well-formed envelope. It never panics past this boundary.
func (h *NotifyHandler) Handle(ctx context.Context, requestID string, body []byte) (envelope Envelope) {
	defer func() {
		if r := recover(); r != nil {
			h.log.WithFields(logrus.Fields{
				"panic":      r,
				"request_id": requestID,
			}).Error("SYSTEM_ERROR")
			envelope = ErrorEnvelope(500, "Internal server error")
		}
	}()

	h.log.WithField("request_id", requestID).Info("REQUEST_START")

	req, err := models.ParseRequest(body)
	if err != nil {
		return h.errorEnvelope(requestID, err)
	}

	h.log.WithFields(logrus.Fields{
		"mode":       int(req.Mode),
		"request_id": requestID,
	}).Info("REQUEST_VALIDATED")

	message, err := h.route(ctx, req, requestID)
	if err != nil {
		return h.errorEnvelope(requestID, err)
	}

	h.log.WithFields(logrus.Fields{
		"mode":       int(req.Mode),
		"request_id": requestID,
	}).Info("REQUEST_SUCCESS")

	return SuccessEnvelope(message)
}

// route dispatches to exactly one mode handler. The validator already
// rejected unknown modes, so no re-check happens here.
func (h *NotifyHandler) route(ctx context.Context, req *models.Request, requestID string) (string, error) {
	switch req.Mode {
	case models.ModeDirectMessage:
		return h.messenger.SendDirectMessages(ctx, req.DM, requestID)
	case models.ModeChannelMessage:
		return h.messenger.SendChannelMessage(ctx, req.Channel, requestID)
	default:
		return h.messenger.RotateRefreshToken(ctx, requestID)
	}
}

// errorEnvelope maps a failure to its envelope. Taxonomy errors keep
// their status and message; anything else is logged and sanitized to a
// fixed internal-error message so exception text never reaches callers.
func (h *NotifyHandler) errorEnvelope(requestID string, err error) Envelope {
	var apiErr *apperrors.Error
	if errors.As(err, &apiErr) {
		h.log.WithFields(logrus.Fields{
			"status":     apiErr.Status,
			"message":    apiErr.Message,
			"request_id": requestID,
		}).Error("API_ERROR")
		return ErrorEnvelope(apiErr.Status, apiErr.Message)
	}

	h.log.WithFields(logrus.Fields{
		"error":      err.Error(),
		"request_id": requestID,
	}).Error("SYSTEM_ERROR")
	return ErrorEnvelope(500, "Internal server error")
}
