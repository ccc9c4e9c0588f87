package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wisrod/chat-platform/internal/accounts"
	"github.com/wisrod/chat-platform/internal/agents"
	"github.com/wisrod/chat-platform/internal/chat"
	"github.com/wisrod/chat-platform/internal/faq"
	"github.com/wisrod/chat-platform/internal/observability/metrics"
	"github.com/wisrod/chat-platform/internal/users"
	"github.com/wisrod/chat-platform/pkg/logging"
)

var tracer = otel.Tracer("wisrod.internal.bot")

// Routing outcomes, used as metric labels and carried on the reply.
const (
	RouteGreeting   = "greeting"
	RouteLookup     = "account_lookup"
	RouteMenu       = "menu"
	RouteFAQ        = "faq"
	RouteFallback   = "fallback"
	RouteEscalation = "escalation"
)

var greetings = map[string]bool{
	"hi":             true,
	"hello":          true,
	"hey":            true,
	"good morning":   true,
	"good afternoon": true,
	"good evening":   true,
	"start":          true,
}

var escalationPhrases = map[string]bool{
	"agent":      true,
	"live agent": true,
}

// Reply is the engine's answer to one inbound message.
type Reply struct {
	Text       string
	Route      string
	EndSession bool
}

// SessionStore is the chat persistence the engine mutates while routing.
type SessionStore interface {
	SetAuthenticated(ctx context.Context, id uuid.UUID, accountID string) error
	AssignAgent(ctx context.Context, id, agentID uuid.UUID) error
	EndSession(ctx context.Context, id uuid.UUID) error
}

// AccountLookup validates account identifiers against the core system.
type AccountLookup interface {
	LookupAccount(ctx context.Context, accountID string) (*accounts.Account, error)
}

// FAQMatcher finds the best knowledge-base answer for free text.
type FAQMatcher interface {
	FindMatch(ctx context.Context, query string) (*faq.Match, error)
}

// AgentPicker claims a human agent for an escalated session.
type AgentPicker interface {
	PickAgent(ctx context.Context, skills []string) (*agents.Availability, error)
}

// NotificationSource backs menu option 4.
type NotificationSource interface {
	ListUnreadNotifications(ctx context.Context, userID uuid.UUID, limit int) ([]users.Notification, error)
	MarkNotificationsRead(ctx context.Context, userID uuid.UUID) error
}

// AccountLinker records a validated core-banking account on the user
// identity.
type AccountLinker interface {
	SetCoreAccountID(ctx context.Context, id uuid.UUID, accountID string) error
}

// Engine routes one inbound message through the ordered handler chain:
// greeting, account identifier, menu selection, FAQ match, fallback.
// Each step short-circuits; the first step that claims the message wins.
type Engine struct {
	sessions      SessionStore
	accounts      AccountLookup
	faqs          FAQMatcher
	agents        AgentPicker
	notifications NotificationSource
	linker        AccountLinker
	state         *StateStore
	metrics       *metrics.ChatMetrics
	logger        *logging.Logger
	maxTurns      int
}

type EngineDeps struct {
	Sessions      SessionStore
	Accounts      AccountLookup
	FAQs          FAQMatcher
	Agents        AgentPicker
	Notifications NotificationSource
	Linker        AccountLinker
	State         *StateStore
	Metrics       *metrics.ChatMetrics
	Logger        *logging.Logger
	MaxTurns      int
}

func NewEngine(deps EngineDeps) *Engine {
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	if deps.MaxTurns <= 0 {
		deps.MaxTurns = 10
	}
	return &Engine{
		sessions:      deps.Sessions,
		accounts:      deps.Accounts,
		faqs:          deps.FAQs,
		agents:        deps.Agents,
		notifications: deps.Notifications,
		linker:        deps.Linker,
		state:         deps.State,
		metrics:       deps.Metrics,
		logger:        deps.Logger,
		maxTurns:      deps.MaxTurns,
	}
}

// HandleMessage routes one inbound message and returns the bot's reply.
func (e *Engine) HandleMessage(ctx context.Context, session *chat.Session, text string) (*Reply, error) {
	ctx, span := tracer.Start(ctx, "bot.handle_message")
	defer span.End()

	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)

	turns := 0
	if e.state != nil {
		n, err := e.state.IncrementTurns(ctx, session.ID)
		if err != nil {
			e.logger.Warn("bot: turn counter unavailable", "session_id", session.ID, "error", err)
		} else {
			turns = n
		}
	}

	reply, err := e.route(ctx, session, trimmed, lower, turns)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("bot.route", reply.Route))
	e.metrics.ObserveInbound(session.Platform, reply.Route)
	return reply, nil
}

func (e *Engine) route(ctx context.Context, session *chat.Session, trimmed, lower string, turns int) (*Reply, error) {
	// 1. Greetings reset the conversation to the top of the flow.
	if greetings[lower] {
		return e.handleGreeting(ctx, session)
	}

	// 2. An all-digit message is an account identifier no matter what
	// state the session is in.
	if isAllDigits(trimmed) {
		return e.handleAccountLookup(ctx, session, trimmed)
	}

	// Explicit requests for a person skip the bot entirely.
	if escalationPhrases[lower] {
		return e.escalate(ctx, session)
	}

	// 3. Authenticated sessions with a live menu get the fixed option
	// set. Once the Redis state expires the menu stops claiming free
	// text, so stale chats fall through to the knowledge base.
	if session.Authenticated() && e.menuActive(ctx, session.ID) {
		return e.handleMenu(ctx, session, lower)
	}

	// 4. Try the knowledge base.
	if reply, err := e.tryFAQ(ctx, trimmed); err != nil {
		return nil, err
	} else if reply != nil {
		return reply, nil
	}

	// 5. Nothing claimed the message. Long conversations that keep
	// falling through get handed to a person instead of looping.
	if turns > e.maxTurns {
		return e.escalate(ctx, session)
	}
	if session.Authenticated() {
		return &Reply{Text: fallbackAuthenticated, Route: RouteFallback}, nil
	}
	return &Reply{Text: fallbackAnonymous, Route: RouteFallback}, nil
}

func (e *Engine) menuActive(ctx context.Context, sessionID uuid.UUID) bool {
	if e.state == nil {
		return true
	}
	state, err := e.state.State(ctx, sessionID)
	if err != nil {
		e.logger.Warn("bot: state lookup failed", "session_id", sessionID, "error", err)
		return true
	}
	return state == StateMenu
}

func (e *Engine) handleGreeting(ctx context.Context, session *chat.Session) (*Reply, error) {
	if e.state != nil {
		if err := e.state.SetState(ctx, session.ID, StateMenu); err != nil {
			e.logger.Warn("bot: could not persist menu state", "session_id", session.ID, "error", err)
		}
	}
	text := welcomeCopy + mainMenu
	if !session.Authenticated() {
		text = welcomeCopy + accountPrompt
	}
	return &Reply{Text: text, Route: RouteGreeting}, nil
}

func (e *Engine) handleAccountLookup(ctx context.Context, session *chat.Session, accountID string) (*Reply, error) {
	account, err := e.accounts.LookupAccount(ctx, accountID)
	if err != nil {
		e.metrics.ObserveAccountLookup("error")
		e.logger.Error("bot: account lookup failed", "session_id", session.ID, "error", err)
		return &Reply{Text: lookupFailedCopy, Route: RouteLookup}, nil
	}
	if account == nil {
		e.metrics.ObserveAccountLookup("not_found")
		return &Reply{Text: invalidAccountCopy, Route: RouteLookup}, nil
	}

	if err := e.sessions.SetAuthenticated(ctx, session.ID, accountID); err != nil {
		return nil, fmt.Errorf("bot: mark session authenticated: %w", err)
	}
	if e.linker != nil {
		// Session metadata is authoritative for auth; the profile link
		// is best-effort.
		if err := e.linker.SetCoreAccountID(ctx, session.UserID, accountID); err != nil {
			e.logger.Warn("bot: could not link account to user", "user_id", session.UserID, "error", err)
		}
	}
	if session.Metadata == nil {
		session.Metadata = map[string]any{}
	}
	session.Metadata[chat.MetaAuthenticated] = true
	session.Metadata[chat.MetaAccountID] = accountID

	if e.state != nil {
		if err := e.state.SetState(ctx, session.ID, StateMenu); err != nil {
			e.logger.Warn("bot: could not persist menu state", "session_id", session.ID, "error", err)
		}
	}
	e.metrics.ObserveAccountLookup("ok")

	name := account.CustomerName
	if name == "" {
		name = "there"
	}
	return &Reply{
		Text:  fmt.Sprintf("Hi %s, your account is now linked.\n\n%s", name, mainMenu),
		Route: RouteLookup,
	}, nil
}

func (e *Engine) handleMenu(ctx context.Context, session *chat.Session, selection string) (*Reply, error) {
	// A menu interaction keeps the flow alive for another TTL window.
	if e.state != nil {
		if err := e.state.SetState(ctx, session.ID, StateMenu); err != nil {
			e.logger.Warn("bot: could not refresh menu state", "session_id", session.ID, "error", err)
		}
	}
	switch selection {
	case "1":
		return e.accountReply(ctx, session, accounts.FormatStatement)
	case "2":
		return e.accountReply(ctx, session, accounts.FormatSchedule)
	case "3":
		return e.accountReply(ctx, session, accounts.FormatSummary)
	case "4":
		return e.notificationsReply(ctx, session)
	case "help":
		return &Reply{Text: mainMenu, Route: RouteMenu}, nil
	case "exit":
		if err := e.sessions.EndSession(ctx, session.ID); err != nil && !errors.Is(err, chat.ErrSessionClosed) {
			return nil, fmt.Errorf("bot: end session: %w", err)
		}
		if e.state != nil {
			if err := e.state.ClearState(ctx, session.ID); err != nil {
				e.logger.Warn("bot: could not clear state", "session_id", session.ID, "error", err)
			}
			if err := e.state.ResetTurns(ctx, session.ID); err != nil {
				e.logger.Warn("bot: could not reset turns", "session_id", session.ID, "error", err)
			}
		}
		return &Reply{Text: goodbyeCopy, Route: RouteMenu, EndSession: true}, nil
	}

	return &Reply{Text: invalidSelectionPrefix + mainMenu, Route: RouteMenu}, nil
}

func (e *Engine) accountReply(ctx context.Context, session *chat.Session, format func(*accounts.Account) string) (*Reply, error) {
	account, err := e.accounts.LookupAccount(ctx, session.AccountID())
	if err != nil {
		e.metrics.ObserveAccountLookup("error")
		e.logger.Error("bot: account fetch failed", "session_id", session.ID, "error", err)
		return &Reply{Text: lookupFailedCopy, Route: RouteMenu}, nil
	}
	if account == nil {
		e.metrics.ObserveAccountLookup("not_found")
		return &Reply{Text: invalidAccountCopy, Route: RouteMenu}, nil
	}
	e.metrics.ObserveAccountLookup("ok")
	return &Reply{Text: format(account), Route: RouteMenu}, nil
}

func (e *Engine) notificationsReply(ctx context.Context, session *chat.Session) (*Reply, error) {
	notes, err := e.notifications.ListUnreadNotifications(ctx, session.UserID, 10)
	if err != nil {
		return nil, fmt.Errorf("bot: list notifications: %w", err)
	}
	if len(notes) == 0 {
		return &Reply{Text: noNotificationsCopy, Route: RouteMenu}, nil
	}
	var b strings.Builder
	b.WriteString("Your notifications:\n")
	for _, n := range notes {
		fmt.Fprintf(&b, "\n• %s\n%s\n", n.Title, n.Body)
	}
	if err := e.notifications.MarkNotificationsRead(ctx, session.UserID); err != nil {
		e.logger.Warn("bot: could not mark notifications read", "user_id", session.UserID, "error", err)
	}
	return &Reply{Text: strings.TrimRight(b.String(), "\n"), Route: RouteMenu}, nil
}

func (e *Engine) tryFAQ(ctx context.Context, query string) (*Reply, error) {
	match, err := e.faqs.FindMatch(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("bot: faq lookup: %w", err)
	}
	e.metrics.ObserveFAQMatch(match != nil)
	if match == nil {
		return nil, nil
	}
	return &Reply{Text: match.FAQ.Answer, Route: RouteFAQ}, nil
}

func (e *Engine) escalate(ctx context.Context, session *chat.Session) (*Reply, error) {
	agent, err := e.agents.PickAgent(ctx, nil)
	if err != nil {
		if errors.Is(err, agents.ErrNoAgents) {
			e.metrics.ObserveAssignment("busy")
			return &Reply{Text: agentsBusyCopy, Route: RouteEscalation}, nil
		}
		e.metrics.ObserveAssignment("error")
		return nil, fmt.Errorf("bot: pick agent: %w", err)
	}
	if err := e.sessions.AssignAgent(ctx, session.ID, agent.ID); err != nil {
		return nil, fmt.Errorf("bot: attach agent to session: %w", err)
	}
	e.metrics.ObserveAssignment("assigned")
	return &Reply{Text: agentConnectedCopy, Route: RouteEscalation}, nil
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
