package models

import (
	"errors"
	"strings"
	"testing"

	"teams-notify-api/internal/apperrors"
)

func validationStatus(t *testing.T, err error) int {
	t.Helper()
	var apiErr *apperrors.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("error is not *apperrors.Error: %v", err)
	}
	return apiErr.Status
}

func TestParseRequest_DirectMessage(t *testing.T) {
	body := `{
		"mode": 1,
		"email_addresses": ["user1@example.com", "user2@example.com"],
		"message_text": "テストメッセージ",
		"content_type": "text",
		"mentions": [{"email_address": "mention@example.com"}]
	}`

	req, err := ParseRequest([]byte(body))
	if err != nil {
		t.Fatalf("ParseRequest returned error: %v", err)
	}

	if req.Mode != ModeDirectMessage {
		t.Errorf("Mode = %d, want %d", req.Mode, ModeDirectMessage)
	}
	if req.DM == nil {
		t.Fatal("DM request is nil")
	}
	if len(req.DM.EmailAddresses) != 2 {
		t.Errorf("EmailAddresses length = %d, want 2", len(req.DM.EmailAddresses))
	}
	if req.DM.Mentions[0].MentionType != "user" {
		t.Errorf("mention type default = %q, want %q", req.DM.Mentions[0].MentionType, "user")
	}
}

func TestParseRequest_ChannelMessage(t *testing.T) {
	body := `{
		"mode": 2,
		"team_name": "開発チーム",
		"channel_name": "一般",
		"message_text": "チャンネルメッセージ",
		"content_type": "html",
		"subject": "件名テスト"
	}`

	req, err := ParseRequest([]byte(body))
	if err != nil {
		t.Fatalf("ParseRequest returned error: %v", err)
	}

	if req.Mode != ModeChannelMessage {
		t.Errorf("Mode = %d, want %d", req.Mode, ModeChannelMessage)
	}
	if req.Channel.TeamName != "開発チーム" {
		t.Errorf("TeamName = %q", req.Channel.TeamName)
	}
}

func TestParseRequest_RefreshToken(t *testing.T) {
	req, err := ParseRequest([]byte(`{"mode": 3}`))
	if err != nil {
		t.Fatalf("ParseRequest returned error: %v", err)
	}
	if req.Mode != ModeRefreshToken || req.Refresh == nil {
		t.Errorf("expected refresh-token request, got %+v", req)
	}
}

func TestParseRequest_ContentTypeDefault(t *testing.T) {
	req, err := ParseRequest([]byte(`{"mode": 1, "email_addresses": ["a@b.com"], "message_text": "hi"}`))
	if err != nil {
		t.Fatalf("ParseRequest returned error: %v", err)
	}
	if req.DM.ContentType != "text" {
		t.Errorf("ContentType = %q, want %q", req.DM.ContentType, "text")
	}
}

func TestParseRequest_Failures(t *testing.T) {
	longMessage := strings.Repeat("あ", 28001)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{not json`},
		{"empty body", ``},
		{"missing mode", `{"email_addresses": ["a@b.com"], "message_text": "hi"}`},
		{"unknown mode", `{"mode": 99}`},
		{"extra field", `{"mode": 1, "email_addresses": ["a@b.com"], "message_text": "hi", "extra": "x"}`},
		{"extra field on refresh", `{"mode": 3, "extra": "x"}`},
		{"invalid email", `{"mode": 1, "email_addresses": ["not-an-email"], "message_text": "hi"}`},
		{"no recipients", `{"mode": 1, "email_addresses": [], "message_text": "hi"}`},
		{"empty message", `{"mode": 1, "email_addresses": ["a@b.com"], "message_text": ""}`},
		{"message too long", `{"mode": 1, "email_addresses": ["a@b.com"], "message_text": "` + longMessage + `"}`},
		{"bad content type", `{"mode": 1, "email_addresses": ["a@b.com"], "message_text": "hi", "content_type": "markdown"}`},
		{"channel missing team", `{"mode": 2, "channel_name": "general", "message_text": "hi"}`},
		{"channel name too long", `{"mode": 2, "team_name": "dev", "channel_name": "` + strings.Repeat("x", 51) + `", "message_text": "hi"}`},
		{"bad mention email", `{"mode": 1, "email_addresses": ["a@b.com"], "message_text": "hi", "mentions": [{"email_address": "nope"}]}`},
		{"bad mention type", `{"mode": 1, "email_addresses": ["a@b.com"], "message_text": "hi", "mentions": [{"mention_type": "tag", "email_address": "a@b.com"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRequest([]byte(tt.body))
			if err == nil {
				t.Fatal("expected error, got none")
			}
			if status := validationStatus(t, err); status != 400 {
				t.Errorf("status = %d, want 400", status)
			}
		})
	}
}

func TestParseRequest_MessageAtLengthBound(t *testing.T) {
	body := `{"mode": 1, "email_addresses": ["a@b.com"], "message_text": "` + strings.Repeat("a", 28000) + `"}`
	if _, err := ParseRequest([]byte(body)); err != nil {
		t.Fatalf("message of length 28000 should be valid, got: %v", err)
	}
}

func TestParseRequest_ErrorNamesField(t *testing.T) {
	_, err := ParseRequest([]byte(`{"mode": 2, "team_name": "dev", "channel_name": "general", "message_text": ""}`))
	if err == nil {
		t.Fatal("expected error, got none")
	}
	if !strings.Contains(err.Error(), "message_text") {
		t.Errorf("error %q does not name the offending field", err.Error())
	}
}

func TestParseRequest_Idempotent(t *testing.T) {
	body := []byte(`{"mode": 1, "email_addresses": ["a@b.com"], "message_text": "hi"}`)

	for i := 0; i < 3; i++ {
		if _, err := ParseRequest(body); err != nil {
			t.Fatalf("iteration %d: unexpected error: %v", i, err)
		}
	}

	bad := []byte(`{"mode": 1, "email_addresses": ["a@b.com"], "message_text": "hi", "extra": 1}`)
	for i := 0; i < 3; i++ {
		if _, err := ParseRequest(bad); err == nil {
			t.Fatalf("iteration %d: expected error, got none", i)
		}
	}
}
