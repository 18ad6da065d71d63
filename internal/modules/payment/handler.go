package payment

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"shortlet/internal/modules/reservation"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

const maxWebhookBody = 64 * 1024

type Handler struct {
	service       *Service
	webhookSecret string
	log           *slog.Logger
}

func NewHandler(service *Service, webhookSecret string, log *slog.Logger) *Handler {
	return &Handler{service: service, webhookSecret: webhookSecret, log: log}
}

// RegisterRoutes mounts the webhook on a public group; the provider signs
// requests instead of carrying a bearer token.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/payments/webhook", h.Webhook)
}

// Webhook godoc
// @Summary      Payment provider event webhook
// @Description  Verifies the event signature and reconciles it against the reservation it references
// @Tags         Payments
// @Accept       json
// @Produce      json
// @Success      200 {object} map[string]any
// @Failure      400 {object} map[string]any "bad signature or payload"
// @Router       /payments/webhook [post]
func (h *Handler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	event, err := webhook.ConstructEventWithOptions(
		payload,
		c.GetHeader("Stripe-Signature"),
		h.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		h.log.Warn("webhook signature verification failed", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		sess, ok := h.decodeSession(c, event)
		if !ok {
			return
		}
		var intentID string
		if sess.PaymentIntent != nil {
			intentID = sess.PaymentIntent.ID
		}
		if err := h.service.HandleCheckoutCompleted(c.Request.Context(), sess.ID, intentID); err != nil {
			if !h.acceptable(c, err) {
				return
			}
		}

	case stripe.EventTypeCheckoutSessionExpired:
		sess, ok := h.decodeSession(c, event)
		if !ok {
			return
		}
		if err := h.service.HandleCheckoutExpired(c.Request.Context(), sess.ID); err != nil {
			if !h.acceptable(c, err) {
				return
			}
		}

	default:
		h.log.Info("ignoring unhandled webhook event", "type", event.Type)
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *Handler) decodeSession(c *gin.Context, event stripe.Event) (*stripe.CheckoutSession, bool) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		h.log.Error("failed to decode checkout session from event", "type", event.Type, "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed event payload"})
		return nil, false
	}
	return &sess, true
}

// acceptable decides whether to acknowledge the event anyway. Application
// conditions like an unknown session are logged and acked so the provider
// stops retrying something a retry cannot fix; transient faults return 500
// and earn a redelivery.
func (h *Handler) acceptable(c *gin.Context, err error) bool {
	if errors.Is(err, ErrSessionUnknown) || errors.Is(err, reservation.ErrNotPending) {
		h.log.Error("reconciliation mismatch", "error", err)
		return true
	}
	h.log.Error("webhook processing failed", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	return false
}
