package events

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestEventMarshalShape(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	evt := Event{
		Type:      TypeCreate,
		Timestamp: ts,
		Data: UserPayload{
			ID:             "id-1",
			Email:          "ada@example.com",
			EmailVerified:  false,
			Name:           "Ada",
			Surname:        "Lovelace",
			HashedPassword: "hash-a",
			CreatedAt:      ts,
			UpdatedAt:      ts,
		},
	}

	b, err := json.Marshal(evt)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded["type"] != "CREATE" {
		t.Fatalf("unexpected type %v", decoded["type"])
	}
	data, ok := decoded["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data object, got %T", decoded["data"])
	}
	for _, key := range []string{"id", "email", "email_verified", "name", "surname", "hashed_password", "created_at", "updated_at"} {
		if _, ok := data[key]; !ok {
			t.Fatalf("missing snapshot key %q", key)
		}
	}
	for _, key := range []string{"verify_email_token", "verify_email_token_expiration"} {
		if _, ok := data[key]; ok {
			t.Fatalf("snapshot must not carry %q", key)
		}
	}
}

func TestUserDeletedPayloadShape(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(UserDeletedPayload{ID: "id-1"})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(decoded) != 1 || decoded["id"] != "id-1" {
		t.Fatalf("DELETE payload must carry only the id, got %s", b)
	}
}

func TestEmailPayloadShape(t *testing.T) {
	t.Parallel()

	p := EmailPayload{
		To:           "ada@example.com",
		Subject:      "Verify your email address",
		TemplateName: "verify_email",
		Context:      EmailContext{Username: "Ada", Link: "https://x/verify?token=abc"},
	}
	b, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded struct {
		To           string `json:"to"`
		Subject      string `json:"subject"`
		TemplateName string `json:"template_name"`
		Context      struct {
			Username string `json:"username"`
			Link     string `json:"link"`
		} `json:"context"`
	}
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded.TemplateName != "verify_email" || decoded.Context.Link == "" {
		t.Fatalf("unexpected payload %s", b)
	}
}

func TestNotificationError(t *testing.T) {
	t.Parallel()

	inner := errors.New("dial tcp: refused")
	err := &NotificationError{Cause: CauseConnectionUnavailable, Err: inner}
	if got := err.Error(); got != "notification: connection_unavailable: dial tcp: refused" {
		t.Fatalf("unexpected message %q", got)
	}
	if !errors.Is(err, inner) {
		t.Fatalf("expected unwrap to inner error")
	}

	bare := &NotificationError{Cause: CausePublishFailed}
	if got := bare.Error(); got != "notification: publish_failed" {
		t.Fatalf("unexpected message %q", got)
	}
}
