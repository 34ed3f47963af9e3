package graph

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

// graphFixture routes fake Graph endpoints for operation tests.
type graphFixture struct {
	mux      *http.ServeMux
	client   *Client
	requests []string
}

func newGraphFixture(t *testing.T) *graphFixture {
	t.Helper()
	f := &graphFixture{mux: http.NewServeMux()}
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		f.requests = append(f.requests, r.Method+" "+r.URL.Path)
		f.mux.ServeHTTP(w, r)
	})
	f.client = client
	return f
}

func (f *graphFixture) respond(pattern string, body string) {
	f.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	})
}

func TestFindUserByEmail(t *testing.T) {
	f := newGraphFixture(t)
	f.respond("/users/", `{"id": "user-1", "displayName": "Test User"}`)

	user, err := f.client.FindUserByEmail(context.Background(), "tok", "a@b.com", "req-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID != "user-1" || user.DisplayName != "Test User" {
		t.Errorf("user = %+v", user)
	}
}

func TestFindUserByEmail_NotFound(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(404)
		w.Write([]byte(`{"error": {"message": "not found"}}`))
	})

	_, err := client.FindUserByEmail(context.Background(), "tok", "missing@b.com", "req-1")
	apiErr := asAPIError(t, err)

	if apiErr.Status != 404 {
		t.Errorf("Status = %d, want 404", apiErr.Status)
	}
	if want := "User not found: missing@b.com"; apiErr.Message != want {
		t.Errorf("Message = %q, want %q", apiErr.Message, want)
	}
}

func TestFindTeamIDByName(t *testing.T) {
	f := newGraphFixture(t)
	f.respond("/me/joinedTeams", `{"value": [
		{"id": "team-1", "displayName": "開発チーム"},
		{"id": "team-2", "displayName": "営業チーム"}
	]}`)

	id, err := f.client.FindTeamIDByName(context.Background(), "tok", "営業チーム", "req-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "team-2" {
		t.Errorf("team id = %q, want team-2", id)
	}

	if _, err := f.client.FindTeamIDByName(context.Background(), "tok", "unknown", "req-1"); err == nil {
		t.Error("expected not-found error for unknown team")
	} else if asAPIError(t, err).Status != 404 {
		t.Errorf("Status = %d, want 404", asAPIError(t, err).Status)
	}
}

func TestFindChannelIDByName(t *testing.T) {
	f := newGraphFixture(t)
	f.respond("/teams/team-1/channels", `{"value": [
		{"id": "ch-1", "displayName": "一般"}
	]}`)

	id, err := f.client.FindChannelIDByName(context.Background(), "tok", "team-1", "一般", "req-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "ch-1" {
		t.Errorf("channel id = %q, want ch-1", id)
	}

	if _, err := f.client.FindChannelIDByName(context.Background(), "tok", "team-1", "missing", "req-1"); err == nil {
		t.Error("expected not-found error for unknown channel")
	}
}

func TestFindOrCreateChat_ExistingChat(t *testing.T) {
	f := newGraphFixture(t)
	f.respond("/me/chats", `{"value": [
		{"id": "chat-1", "chatType": "oneOnOne", "members": [
			{"user": {"id": "me"}},
			{"user": {"id": "target-user"}}
		]}
	]}`)

	id, err := f.client.FindOrCreateChat(context.Background(), "tok", "target-user", "req-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "chat-1" {
		t.Errorf("chat id = %q, want chat-1", id)
	}

	for _, r := range f.requests {
		if strings.HasPrefix(r, "POST") {
			t.Errorf("unexpected chat creation call: %s", r)
		}
	}
}

func TestFindOrCreateChat_CreatesWhenMissing(t *testing.T) {
	f := newGraphFixture(t)
	f.respond("/me/chats", `{"value": []}`)
	f.respond("/me", `{"id": "me"}`)
	f.respond("/chats", `{"id": "chat-new"}`)

	id, err := f.client.FindOrCreateChat(context.Background(), "tok", "target-user", "req-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "chat-new" {
		t.Errorf("chat id = %q, want chat-new", id)
	}
}

func TestPostChatMessage_BuildsMentions(t *testing.T) {
	var received map[string]interface{}
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		json.Unmarshal(data, &received)
		w.WriteHeader(201)
		w.Write([]byte(`{}`))
	})

	mentions := []ResolvedMention{{UserID: "u-1", DisplayName: "User One", EmailAddress: "a@b.com"}}
	err := client.PostChatMessage(context.Background(), "tok", "chat-1", "hello", "text", mentions, "req-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	body := received["body"].(map[string]interface{})
	content := body["content"].(string)
	if !strings.Contains(content, `<at id="0">@User One</at>`) {
		t.Errorf("content = %q, missing mention marker", content)
	}
	if _, ok := received["mentions"]; !ok {
		t.Error("mentions entry missing from payload")
	}
	if _, ok := received["subject"]; ok {
		t.Error("chat messages must not carry a subject")
	}
}

func TestPostChannelMessage_CarriesSubject(t *testing.T) {
	var received map[string]interface{}
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		json.Unmarshal(data, &received)
		w.WriteHeader(201)
		w.Write([]byte(`{}`))
	})

	err := client.PostChannelMessage(context.Background(), "tok", "team-1", "ch-1", "hello", "html", "週報", nil, "req-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if received["subject"] != "週報" {
		t.Errorf("subject = %v, want 週報", received["subject"])
	}
	if _, ok := received["mentions"]; ok {
		t.Error("mentions entry present for mention-free message")
	}
}

func TestDefaultTimeoutIsThirtySeconds(t *testing.T) {
	client := NewClient("", 0, nil)
	if client.http.Timeout != 30*time.Second {
		t.Errorf("timeout = %v, want 30s", client.http.Timeout)
	}
}
