package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func TestGetIntegration(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(mock.Close)
	store := NewStore(mock)

	id := uuid.New()
	rows := pgxmock.NewRows([]string{"id", "platform", "is_active", "api_key", "api_secret", "created_at", "updated_at"}).
		AddRow(id, "whatsapp", true, "AC123", "token", time.Now(), time.Now())
	mock.ExpectQuery("SELECT (.+) FROM platform_integrations").
		WithArgs("whatsapp").
		WillReturnRows(rows)

	in, err := store.GetIntegration(context.Background(), "whatsapp")
	if err != nil {
		t.Fatalf("get integration: %v", err)
	}
	if in.APIKey != "AC123" || !in.IsActive {
		t.Fatalf("unexpected integration %#v", in)
	}
}

func TestGetIntegrationMissingReturnsSentinel(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(mock.Close)
	store := NewStore(mock)

	mock.ExpectQuery("SELECT (.+) FROM platform_integrations").
		WithArgs("facebook").
		WillReturnError(pgx.ErrNoRows)

	if _, err := store.GetIntegration(context.Background(), "facebook"); !errors.Is(err, ErrIntegrationNotFound) {
		t.Fatalf("expected ErrIntegrationNotFound, got %v", err)
	}
}

func TestRecordAndListHealth(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(mock.Close)
	store := NewStore(mock)

	mock.ExpectExec("INSERT INTO platform_health").
		WithArgs("whatsapp", HealthUp, 10, 0, []byte(`{}`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	if err := store.RecordHealth(context.Background(), HealthSample{Platform: "whatsapp", Status: HealthUp, MessagesSent: 10}); err != nil {
		t.Fatalf("record health: %v", err)
	}

	rows := pgxmock.NewRows([]string{"id", "platform", "status", "messages_sent", "messages_failed", "details", "recorded_at"}).
		AddRow(uuid.New(), "whatsapp", HealthDegraded, 5, 2, []byte(`{"last_error":"timeout"}`), time.Now())
	mock.ExpectQuery("SELECT (.+) FROM platform_health").
		WithArgs("whatsapp", 20).
		WillReturnRows(rows)

	samples, err := store.RecentHealth(context.Background(), "whatsapp", 0)
	if err != nil {
		t.Fatalf("recent health: %v", err)
	}
	if len(samples) != 1 || samples[0].Details["last_error"] != "timeout" {
		t.Fatalf("unexpected samples %#v", samples)
	}
}
