package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/coaching-core-api/internal/models"
	"github.com/noah-isme/coaching-core-api/internal/payment"
	appErrors "github.com/noah-isme/coaching-core-api/pkg/errors"
	"github.com/noah-isme/coaching-core-api/pkg/response"
)

// SignatureHeader carries the gateway's HMAC over the raw body.
const SignatureHeader = "X-Gateway-Signature"

const maxWebhookBody = 64 << 10

type paymentCallbackService interface {
	HandlePaymentSuccess(ctx context.Context, orderRef string) (*models.Enrollment, error)
	HandlePaymentFailure(ctx context.Context, orderRef, reason string) error
	HandlePaymentCancel(ctx context.Context, orderRef string) error
}

type signatureVerifier interface {
	Verify(header string, body []byte) error
}

// PaymentWebhookHandler receives signed gateway callbacks.
type PaymentWebhookHandler struct {
	service   paymentCallbackService
	verifier  signatureVerifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPaymentWebhookHandler builds a new handler.
func NewPaymentWebhookHandler(service paymentCallbackService, verifier signatureVerifier, validate *validator.Validate, logger *zap.Logger) *PaymentWebhookHandler {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentWebhookHandler{service: service, verifier: verifier, validator: validate, logger: logger}
}

// Receive godoc
// @Summary Receive a payment gateway callback
// @Tags Payments
// @Accept json
// @Produce json
// @Param X-Gateway-Signature header string true "t=<unix>,v1=<hex hmac>"
// @Param payload body payment.Callback true "Callback"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /payments/webhook [post]
func (h *PaymentWebhookHandler) Receive(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable callback body"))
		return
	}
	if err := h.verifier.Verify(c.GetHeader(SignatureHeader), body); err != nil {
		h.logger.Warn("rejected payment callback", zap.Error(err))
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid callback signature"))
		return
	}

	var callback payment.Callback
	if err := json.Unmarshal(body, &callback); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid callback payload"))
		return
	}
	if err := h.validator.Struct(callback); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid callback payload"))
		return
	}

	ctx := c.Request.Context()
	switch callback.Type {
	case payment.CallbackSucceeded:
		enrollment, err := h.service.HandlePaymentSuccess(ctx, callback.OrderRef)
		if err != nil {
			h.fail(c, callback, err)
			return
		}
		response.JSON(c, http.StatusOK, enrollment, nil)
	case payment.CallbackFailed:
		if err := h.service.HandlePaymentFailure(ctx, callback.OrderRef, callback.Reason); err != nil {
			h.fail(c, callback, err)
			return
		}
		response.JSON(c, http.StatusOK, gin.H{"order_ref": callback.OrderRef, "status": models.PaymentOrderFailed}, nil)
	case payment.CallbackCancelled:
		if err := h.service.HandlePaymentCancel(ctx, callback.OrderRef); err != nil {
			h.fail(c, callback, err)
			return
		}
		response.JSON(c, http.StatusOK, gin.H{"order_ref": callback.OrderRef, "status": models.PaymentOrderCancelled}, nil)
	}
}

func (h *PaymentWebhookHandler) fail(c *gin.Context, callback payment.Callback, err error) {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) && appErr.Status < http.StatusInternalServerError {
		h.logger.Info("payment callback not applied",
			zap.String("type", string(callback.Type)),
			zap.String("order_ref", callback.OrderRef),
			zap.String("code", appErr.Code))
	} else {
		h.logger.Error("payment callback failed",
			zap.String("type", string(callback.Type)),
			zap.String("order_ref", callback.OrderRef),
			zap.Error(err))
	}
	response.Error(c, err)
}
