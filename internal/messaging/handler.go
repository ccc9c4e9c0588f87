package messaging

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wisrod/chat-platform/internal/bot"
	"github.com/wisrod/chat-platform/internal/chat"
	"github.com/wisrod/chat-platform/internal/observability/metrics"
	"github.com/wisrod/chat-platform/internal/users"
	"github.com/wisrod/chat-platform/pkg/logging"
)

var handlerTracer = otel.Tracer("wisrod.internal.messaging.handler")

// processingErrorReply is what the customer sees when a turn fails after
// the webhook payload was accepted.
const processingErrorReply = "I'm having trouble processing your message. Please try again."

// UserDirectory resolves inbound senders to user records.
type UserDirectory interface {
	GetOrCreateByPhone(ctx context.Context, phone string) (*users.User, error)
}

// SessionStore is the chat persistence the webhook needs.
type SessionStore interface {
	GetOrCreateActiveSession(ctx context.Context, platform, externalID string, userID uuid.UUID) (*chat.Session, error)
	StoreMessage(ctx context.Context, msg chat.Message) (uuid.UUID, error)
}

// BotEngine routes an inbound message to a reply.
type BotEngine interface {
	HandleMessage(ctx context.Context, session *chat.Session, text string) (*bot.Reply, error)
}

// Handler handles Twilio messaging webhook requests for WhatsApp and
// Facebook Messenger.
type Handler struct {
	authToken     string
	publicBaseURL string
	userDir       UserDirectory
	sessions      SessionStore
	engine        BotEngine
	metrics       *metrics.ChatMetrics
	logger        *logging.Logger
}

type HandlerDeps struct {
	AuthToken     string
	PublicBaseURL string
	Users         UserDirectory
	Sessions      SessionStore
	Engine        BotEngine
	Metrics       *metrics.ChatMetrics
	Logger        *logging.Logger
}

func NewHandler(deps HandlerDeps) *Handler {
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	if deps.Sessions == nil {
		panic("messaging: session store cannot be nil")
	}
	if deps.Engine == nil {
		panic("messaging: bot engine cannot be nil")
	}
	return &Handler{
		authToken:     deps.AuthToken,
		publicBaseURL: deps.PublicBaseURL,
		userDir:       deps.Users,
		sessions:      deps.Sessions,
		engine:        deps.Engine,
		metrics:       deps.Metrics,
		logger:        deps.Logger,
	}
}

// TwilioWebhook handles POST /messaging/twilio/webhook.
//
// Replies travel back inline as TwiML. Processing failures after the
// payload is accepted still return 200, carrying the generic try-again
// copy, so the provider does not keep re-delivering a message we cannot
// handle.
func (h *Handler) TwilioWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := handlerTracer.Start(r.Context(), "messaging.twilio.webhook")
	defer span.End()

	if h.authToken != "" {
		if !ValidateTwilioSignature(r, h.authToken, h.webhookURL(r)) {
			h.logger.Warn("messaging: invalid twilio signature", "remote", r.RemoteAddr)
			span.RecordError(errors.New("invalid twilio signature"))
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
	}

	inbound, err := ParseInbound(r)
	if err != nil {
		h.logger.Error("messaging: malformed twilio webhook", "error", err)
		span.RecordError(err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if inbound.MessageSid == "" || inbound.From == "" || strings.TrimSpace(inbound.Body) == "" {
		h.logger.Warn("messaging: twilio webhook missing required fields")
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	platform := inbound.Platform()
	span.SetAttributes(
		attribute.String("wisrod.platform", platform),
		attribute.String("wisrod.message_sid", inbound.MessageSid),
	)

	replyText, err := h.process(ctx, platform, inbound)
	h.metrics.ObserveWebhookLatency(platform, time.Since(start).Seconds())
	if err != nil {
		// Acknowledge receipt anyway; the message is logged and the
		// provider must not retry it.
		h.logger.Error("messaging: webhook processing failed", "platform", platform, "sid", inbound.MessageSid, "error", err)
		span.RecordError(err)
		writeTwiML(w, processingErrorReply)
		return
	}
	writeTwiML(w, replyText)
}

func (h *Handler) process(ctx context.Context, platform string, inbound *InboundMessage) (string, error) {
	sender := inbound.SenderID()

	user, err := h.userDir.GetOrCreateByPhone(ctx, sender)
	if err != nil {
		return "", err
	}

	session, err := h.sessions.GetOrCreateActiveSession(ctx, platform, sender, user.ID)
	if err != nil {
		return "", err
	}

	if _, err := h.sessions.StoreMessage(ctx, chat.Message{
		SessionID:  session.ID,
		Direction:  chat.DirectionIn,
		Content:    inbound.Body,
		ExternalID: inbound.MessageSid,
		Metadata:   map[string]any{"media_url": inbound.MediaURL, "sender": sender},
	}); err != nil {
		return "", err
	}

	reply, err := h.engine.HandleMessage(ctx, session, inbound.Body)
	if err != nil {
		return "", err
	}

	if _, err := h.sessions.StoreMessage(ctx, chat.Message{
		SessionID: session.ID,
		Direction: chat.DirectionOut,
		Content:   reply.Text,
		Metadata:  map[string]any{"route": reply.Route},
	}); err != nil {
		// The reply is already composed; losing the outbound record is
		// not worth failing the turn over.
		h.logger.Warn("messaging: could not persist outbound turn", "session_id", session.ID, "error", err)
	}

	return reply.Text, nil
}

func (h *Handler) webhookURL(r *http.Request) string {
	if h.publicBaseURL != "" {
		return strings.TrimRight(h.publicBaseURL, "/") + r.URL.RequestURI()
	}
	scheme := "https"
	if r.TLS == nil {
		scheme = "http"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

func writeTwiML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(TwiMLReply(body)))
}
