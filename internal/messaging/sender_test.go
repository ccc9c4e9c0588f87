package messaging

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

type recordedHealth struct {
	samples []HealthSample
}

func (r *recordedHealth) RecordHealth(_ context.Context, sample HealthSample) error {
	r.samples = append(r.samples, sample)
	return nil
}

func newTestSender(t *testing.T, handler http.HandlerFunc) (*TwilioSender, *recordedHealth) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	health := &recordedHealth{}
	sender := NewTwilioSender(TwilioSenderConfig{
		AccountSID:          "AC123",
		AuthToken:           "token",
		WhatsAppFrom:        "+14155238886",
		FacebookPageID:      "111222333",
		MessagingServiceSID: "MG456",
		BaseURL:             srv.URL,
	}, health, nil, nil)
	return sender, health
}

func TestSendWhatsAppAddressing(t *testing.T) {
	var gotForm map[string]string
	sender, health := newTestSender(t, func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		gotForm = map[string]string{
			"To":   r.PostFormValue("To"),
			"From": r.PostFormValue("From"),
			"Body": r.PostFormValue("Body"),
		}
		json.NewEncoder(w).Encode(map[string]string{"sid": "SM789", "status": "queued"})
	})

	sid, err := sender.SendWhatsApp(context.Background(), "+254700000001", "Your balance is 1,000.00")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if sid != "SM789" {
		t.Fatalf("sid = %q", sid)
	}
	if gotForm["To"] != "whatsapp:+254700000001" || gotForm["From"] != "whatsapp:+14155238886" {
		t.Fatalf("bad addressing: %v", gotForm)
	}
	if len(health.samples) != 1 || health.samples[0].Status != HealthUp || health.samples[0].MessagesSent != 1 {
		t.Fatalf("expected one up health sample, got %#v", health.samples)
	}
}

func TestSendMessengerUsesMessagingService(t *testing.T) {
	var service, to string
	sender, _ := newTestSender(t, func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		service = r.PostFormValue("MessagingServiceSid")
		to = r.PostFormValue("To")
		json.NewEncoder(w).Encode(map[string]string{"sid": "SM1"})
	})

	if _, err := sender.SendMessenger(context.Background(), "987654321", "hello"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if service != "MG456" {
		t.Fatalf("messaging service sid = %q", service)
	}
	if to != "messenger:987654321" {
		t.Fatalf("to = %q", to)
	}
}

func TestSendRetriesServerErrors(t *testing.T) {
	calls := 0
	sender, _ := newTestSender(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"sid": "SM2"})
	})

	sid, err := sender.SendWhatsApp(context.Background(), "+254700000001", "retry me")
	if err != nil || sid != "SM2" {
		t.Fatalf("got %q, %v after retries", sid, err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestSendDoesNotRetryClientErrors(t *testing.T) {
	calls := 0
	sender, health := newTestSender(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{"code": 21211, "message": "Invalid 'To' number", "status": 400})
	})

	_, err := sender.SendWhatsApp(context.Background(), "not-a-number", "hi")
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("client error retried: %d calls", calls)
	}
	if len(health.samples) != 1 || health.samples[0].Status != HealthDegraded || health.samples[0].MessagesFailed != 1 {
		t.Fatalf("expected one degraded health sample, got %#v", health.samples)
	}
}

func TestVerifyCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, _ := r.BasicAuth()
		if user == "AC123" && pass == "good-token" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)
	verifier := NewCredentialVerifier(srv.URL)

	ok, err := verifier.Verify(context.Background(), "AC123", "good-token")
	if err != nil || !ok {
		t.Fatalf("expected valid credentials, got %v, %v", ok, err)
	}
	ok, err = verifier.Verify(context.Background(), "AC123", "bad-token")
	if err != nil || ok {
		t.Fatalf("expected invalid credentials, got %v, %v", ok, err)
	}
}
