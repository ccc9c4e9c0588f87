package bot

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/wisrod/chat-platform/internal/accounts"
	"github.com/wisrod/chat-platform/internal/agents"
	"github.com/wisrod/chat-platform/internal/chat"
	"github.com/wisrod/chat-platform/internal/faq"
	"github.com/wisrod/chat-platform/internal/users"
)

type fakeSessions struct {
	authenticated map[uuid.UUID]string
	assigned      map[uuid.UUID]uuid.UUID
	ended         map[uuid.UUID]int
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{
		authenticated: map[uuid.UUID]string{},
		assigned:      map[uuid.UUID]uuid.UUID{},
		ended:         map[uuid.UUID]int{},
	}
}

func (f *fakeSessions) SetAuthenticated(_ context.Context, id uuid.UUID, accountID string) error {
	f.authenticated[id] = accountID
	return nil
}

func (f *fakeSessions) AssignAgent(_ context.Context, id, agentID uuid.UUID) error {
	f.assigned[id] = agentID
	return nil
}

func (f *fakeSessions) EndSession(_ context.Context, id uuid.UUID) error {
	f.ended[id]++
	return nil
}

type fakeAccounts struct {
	accounts map[string]*accounts.Account
	err      error
}

func (f *fakeAccounts) LookupAccount(_ context.Context, accountID string) (*accounts.Account, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.accounts[accountID], nil
}

type fakeFAQs struct {
	matches map[string]*faq.Match
}

func (f *fakeFAQs) FindMatch(_ context.Context, query string) (*faq.Match, error) {
	return f.matches[strings.ToLower(strings.TrimSpace(query))], nil
}

type fakeAgents struct {
	agent *agents.Availability
	err   error
	calls int
}

func (f *fakeAgents) PickAgent(_ context.Context, _ []string) (*agents.Availability, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.agent, nil
}

type fakeNotifications struct {
	notes      []users.Notification
	markedRead int
}

func (f *fakeNotifications) ListUnreadNotifications(_ context.Context, _ uuid.UUID, _ int) ([]users.Notification, error) {
	return f.notes, nil
}

func (f *fakeNotifications) MarkNotificationsRead(_ context.Context, _ uuid.UUID) error {
	f.markedRead++
	return nil
}

type fakeLinker struct {
	linked map[uuid.UUID]string
}

func (f *fakeLinker) SetCoreAccountID(_ context.Context, id uuid.UUID, accountID string) error {
	f.linked[id] = accountID
	return nil
}

type engineFixture struct {
	engine   *Engine
	sessions *fakeSessions
	accounts *fakeAccounts
	faqs     *fakeFAQs
	agents   *fakeAgents
	notes    *fakeNotifications
	linker   *fakeLinker
	redis    *miniredis.Miniredis
	state    *StateStore
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	state := NewStateStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), 5*time.Minute)

	f := &engineFixture{
		sessions: newFakeSessions(),
		accounts: &fakeAccounts{accounts: map[string]*accounts.Account{}},
		faqs:     &fakeFAQs{matches: map[string]*faq.Match{}},
		agents:   &fakeAgents{},
		notes:    &fakeNotifications{},
		linker:   &fakeLinker{linked: map[uuid.UUID]string{}},
		redis:    mr,
		state:    state,
	}
	f.engine = NewEngine(EngineDeps{
		Sessions:      f.sessions,
		Accounts:      f.accounts,
		FAQs:          f.faqs,
		Agents:        f.agents,
		Notifications: f.notes,
		Linker:        f.linker,
		State:         state,
		MaxTurns:      10,
	})
	return f
}

func anonSession() *chat.Session {
	return &chat.Session{ID: uuid.New(), UserID: uuid.New(), Platform: chat.PlatformWhatsApp, Status: chat.StatusActive}
}

func authedSession(accountID string) *chat.Session {
	s := anonSession()
	s.Metadata = map[string]any{chat.MetaAuthenticated: true, chat.MetaAccountID: accountID}
	return s
}

func TestGreetingShowsAccountPromptForAnonymous(t *testing.T) {
	f := newEngineFixture(t)
	reply, err := f.engine.HandleMessage(context.Background(), anonSession(), "  Hello ")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if reply.Route != RouteGreeting {
		t.Fatalf("route = %q, want greeting", reply.Route)
	}
	if !strings.Contains(reply.Text, "Account ID") {
		t.Fatalf("anonymous greeting should ask for an account id:\n%s", reply.Text)
	}
}

func TestGreetingShowsMenuForAuthenticated(t *testing.T) {
	f := newEngineFixture(t)
	reply, err := f.engine.HandleMessage(context.Background(), authedSession("12345"), "good morning")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !strings.Contains(reply.Text, "1. View Loan Statement") {
		t.Fatalf("authenticated greeting should show the menu:\n%s", reply.Text)
	}
}

func TestDigitsAlwaysTriggerLookup(t *testing.T) {
	f := newEngineFixture(t)
	f.accounts.accounts["98765"] = &accounts.Account{ExternalID: "98765", CustomerName: "Amina"}

	// Even an already-authenticated session re-validates digit input.
	sess := authedSession("12345")
	reply, err := f.engine.HandleMessage(context.Background(), sess, "98765")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if reply.Route != RouteLookup {
		t.Fatalf("route = %q, want account_lookup", reply.Route)
	}
	if f.sessions.authenticated[sess.ID] != "98765" {
		t.Fatalf("session not re-linked: %v", f.sessions.authenticated)
	}
	if f.linker.linked[sess.UserID] != "98765" {
		t.Fatalf("account not linked to user row: %v", f.linker.linked)
	}
	if !strings.Contains(reply.Text, "Hi Amina") {
		t.Fatalf("unexpected link reply:\n%s", reply.Text)
	}
}

func TestUnknownAccountGetsRetryPrompt(t *testing.T) {
	f := newEngineFixture(t)
	sess := anonSession()
	reply, err := f.engine.HandleMessage(context.Background(), sess, "00000")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !strings.Contains(reply.Text, "does not match any record") {
		t.Fatalf("expected retry prompt:\n%s", reply.Text)
	}
	if len(f.sessions.authenticated) != 0 {
		t.Fatalf("failed lookup must not authenticate the session")
	}
	if len(f.linker.linked) != 0 {
		t.Fatalf("failed lookup must not link an account to the user")
	}
}

func TestMenuDispatch(t *testing.T) {
	f := newEngineFixture(t)
	f.accounts.accounts["12345"] = &accounts.Account{
		ExternalID:   "12345",
		CustomerName: "Amina",
		Debts:        []accounts.Debt{{ID: "LN-1", Status: "ACTIVE", Principal: 1000, Balance: 400, DueDate: "2025-07-01"}},
	}
	sess := authedSession("12345")
	ctx := context.Background()
	if err := f.state.SetState(ctx, sess.ID, StateMenu); err != nil {
		t.Fatal(err)
	}

	cases := map[string]string{
		"1":    "Loan Statement",
		"2":    "Repayment Schedule",
		"3":    "Account Summary",
		"help": "1. View Loan Statement",
	}
	for input, want := range cases {
		reply, err := f.engine.HandleMessage(ctx, sess, input)
		if err != nil {
			t.Fatalf("handle %q: %v", input, err)
		}
		if reply.Route != RouteMenu {
			t.Fatalf("input %q route = %q, want menu", input, reply.Route)
		}
		if !strings.Contains(reply.Text, want) {
			t.Errorf("input %q: reply missing %q:\n%s", input, want, reply.Text)
		}
	}
}

func TestMenuExitEndsSession(t *testing.T) {
	f := newEngineFixture(t)
	sess := authedSession("12345")
	ctx := context.Background()
	if err := f.state.SetState(ctx, sess.ID, StateMenu); err != nil {
		t.Fatal(err)
	}

	reply, err := f.engine.HandleMessage(ctx, sess, "exit")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !reply.EndSession || reply.Text != goodbyeCopy {
		t.Fatalf("unexpected exit reply %#v", reply)
	}
	if f.sessions.ended[sess.ID] != 1 {
		t.Fatalf("session not ended exactly once: %d", f.sessions.ended[sess.ID])
	}
	state, _ := f.state.State(ctx, sess.ID)
	if state != "" {
		t.Fatalf("state should be cleared on exit, got %q", state)
	}
}

func TestMenuNotifications(t *testing.T) {
	f := newEngineFixture(t)
	f.notes.notes = []users.Notification{{Title: "Payment received", Body: "We received 4,000.00."}}
	sess := authedSession("12345")
	ctx := context.Background()
	if err := f.state.SetState(ctx, sess.ID, StateMenu); err != nil {
		t.Fatal(err)
	}

	reply, err := f.engine.HandleMessage(ctx, sess, "4")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !strings.Contains(reply.Text, "Payment received") {
		t.Fatalf("missing notification:\n%s", reply.Text)
	}
	if f.notes.markedRead != 1 {
		t.Fatalf("notifications not marked read")
	}
}

func TestInvalidMenuSelection(t *testing.T) {
	f := newEngineFixture(t)
	sess := authedSession("12345")
	ctx := context.Background()
	if err := f.state.SetState(ctx, sess.ID, StateMenu); err != nil {
		t.Fatal(err)
	}

	reply, err := f.engine.HandleMessage(ctx, sess, "banana")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !strings.HasPrefix(reply.Text, invalidSelectionPrefix) {
		t.Fatalf("expected invalid-selection reply:\n%s", reply.Text)
	}
}

func TestExpiredMenuFallsThroughToFAQ(t *testing.T) {
	f := newEngineFixture(t)
	f.faqs.matches["what are your rates"] = &faq.Match{
		FAQ:        &faq.FAQ{Answer: "Rates start at 12% p.a."},
		Confidence: 0.95,
	}
	sess := authedSession("12345")
	ctx := context.Background()
	if err := f.state.SetState(ctx, sess.ID, StateMenu); err != nil {
		t.Fatal(err)
	}
	f.redis.FastForward(6 * time.Minute)

	reply, err := f.engine.HandleMessage(ctx, sess, "what are your rates")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if reply.Route != RouteFAQ || reply.Text != "Rates start at 12% p.a." {
		t.Fatalf("expected FAQ answer after menu expiry, got %#v", reply)
	}
}

func TestFallbackCopyDiffersByAuthState(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	anon, err := f.engine.HandleMessage(ctx, anonSession(), "mumble")
	if err != nil {
		t.Fatalf("handle anon: %v", err)
	}
	authed, err := f.engine.HandleMessage(ctx, authedSession("12345"), "mumble")
	if err != nil {
		t.Fatalf("handle authed: %v", err)
	}
	if anon.Route != RouteFallback || authed.Route != RouteFallback {
		t.Fatalf("routes = %q, %q, want fallback", anon.Route, authed.Route)
	}
	if anon.Text == authed.Text {
		t.Fatalf("fallback copy should differ by auth state")
	}
}

func TestAgentKeywordEscalates(t *testing.T) {
	f := newEngineFixture(t)
	agentID := uuid.New()
	f.agents.agent = &agents.Availability{ID: agentID, Status: agents.StatusAvailable}
	sess := anonSession()

	reply, err := f.engine.HandleMessage(context.Background(), sess, "live agent")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if reply.Route != RouteEscalation || reply.Text != agentConnectedCopy {
		t.Fatalf("unexpected escalation reply %#v", reply)
	}
	if f.sessions.assigned[sess.ID] != agentID {
		t.Fatalf("agent not attached to session")
	}
}

func TestEscalationWhenAllAgentsBusy(t *testing.T) {
	f := newEngineFixture(t)
	f.agents.err = agents.ErrNoAgents

	reply, err := f.engine.HandleMessage(context.Background(), anonSession(), "agent")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if reply.Text != agentsBusyCopy {
		t.Fatalf("expected busy copy, got %q", reply.Text)
	}
}

func TestLongConversationEscalates(t *testing.T) {
	f := newEngineFixture(t)
	agentID := uuid.New()
	f.agents.agent = &agents.Availability{ID: agentID, Status: agents.StatusAvailable}
	sess := anonSession()
	ctx := context.Background()

	var last *Reply
	for i := 0; i < 12; i++ {
		var err error
		last, err = f.engine.HandleMessage(ctx, sess, "mumble")
		if err != nil {
			t.Fatalf("turn %d: %v", i, err)
		}
	}
	if last.Route != RouteEscalation {
		t.Fatalf("expected escalation after long fallback streak, got %q", last.Route)
	}
}
