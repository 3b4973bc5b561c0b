package google

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	return New(Config{ClientID: "id", ClientSecret: "secret"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestFetchEmailsMapsHeadersAndSkipsUnreadable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token" {
			t.Errorf("missing bearer header on %s", r.URL.Path)
		}
		switch {
		case strings.HasSuffix(r.URL.Path, "/users/me/messages"):
			io.WriteString(w, `{"messages":[{"id":"m1"},{"id":"m2"},{"id":"m3"}]}`)
		case strings.HasSuffix(r.URL.Path, "/messages/m1"):
			io.WriteString(w, `{"id":"m1","snippet":"hi there","payload":{"headers":[
				{"name":"Subject","value":"Standup notes"},
				{"name":"From","value":"Ana <ana@example.com>"},
				{"name":"Date","value":"Mon, 10 Jun 2024 09:00:00 +0000"}]}}`)
		case strings.HasSuffix(r.URL.Path, "/messages/m2"):
			w.WriteHeader(http.StatusInternalServerError)
		case strings.HasSuffix(r.URL.Path, "/messages/m3"):
			io.WriteString(w, `{"id":"m3","snippet":"no headers","payload":{"headers":[]}}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	client := testClient(t)
	client.gmailBase = srv.URL

	emails, err := client.FetchEmails(context.Background(), "token", 5)
	if err != nil {
		t.Fatalf("FetchEmails: %v", err)
	}
	if len(emails) != 2 {
		t.Fatalf("got %d emails, want 2 (m2 should be skipped)", len(emails))
	}
	first := emails[0]
	if first.Subject != "Standup notes" || first.Sender != "Ana <ana@example.com>" || first.Snippet != "hi there" {
		t.Fatalf("unexpected first email: %+v", first)
	}
	second := emails[1]
	if second.Subject != "No Subject" || second.Sender != "Unknown Sender" {
		t.Fatalf("missing headers should fall back to defaults, got %+v", second)
	}
}

func TestFetchEventsDateFallbackAndTitle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if query.Get("singleEvents") != "true" || query.Get("orderBy") != "startTime" {
			t.Errorf("unexpected query %v", query)
		}
		io.WriteString(w, `{"items":[
			{"id":"e1","summary":"Planning","start":{"dateTime":"2024-06-11T10:00:00Z"},"end":{"dateTime":"2024-06-11T11:00:00Z"}},
			{"id":"e2","summary":"","start":{"date":"2024-06-12"},"end":{"date":"2024-06-13"}}]}`)
	}))
	defer srv.Close()

	client := testClient(t)
	client.calendarBase = srv.URL

	events, err := client.FetchEvents(context.Background(), "token", 7)
	if err != nil {
		t.Fatalf("FetchEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Start != "2024-06-11T10:00:00Z" {
		t.Errorf("timed event start = %q", events[0].Start)
	}
	if events[1].Title != "No Title" {
		t.Errorf("untitled event title = %q, want No Title", events[1].Title)
	}
	if events[1].Start != "2024-06-12" || events[1].End != "2024-06-13" {
		t.Errorf("all-day event should keep date strings, got %+v", events[1])
	}
}

func TestFetchFiles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("orderBy"); got != "modifiedTime desc" {
			t.Errorf("orderBy = %q", got)
		}
		io.WriteString(w, `{"files":[{"id":"f1","name":"notes.md","modifiedTime":"2024-06-09T08:00:00Z","webViewLink":"https://drive.example/f1"}]}`)
	}))
	defer srv.Close()

	client := testClient(t)
	client.driveBase = srv.URL

	files, err := client.FetchFiles(context.Background(), "token", 10)
	if err != nil {
		t.Fatalf("FetchFiles: %v", err)
	}
	if len(files) != 1 || files[0].Name != "notes.md" || files[0].Link != "https://drive.example/f1" {
		t.Fatalf("unexpected files: %+v", files)
	}
}

func TestFetchUserInfoRequiresID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"email":"ana@example.com","name":"Ana"}`)
	}))
	defer srv.Close()

	client := testClient(t)
	client.userinfoBase = srv.URL

	if _, err := client.FetchUserInfo(context.Background(), "token"); err == nil {
		t.Fatal("expected error for userinfo response without id")
	}
}

func TestGetJSONRejectsEmptyToken(t *testing.T) {
	client := testClient(t)
	if _, err := client.FetchEmails(context.Background(), "", 5); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("got %v, want ErrNotConnected", err)
	}
}

func TestGetJSONSurfacesAPIStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":{"message":"Invalid Credentials"}}`)
	}))
	defer srv.Close()

	client := testClient(t)
	client.gmailBase = srv.URL

	_, err := client.FetchEmails(context.Background(), "stale", 5)
	if err == nil || !strings.Contains(err.Error(), "status 401") {
		t.Fatalf("got %v, want status 401 error", err)
	}
}
