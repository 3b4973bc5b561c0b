package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dwizi/copilot-backend/internal/assemble"
	"github.com/dwizi/copilot-backend/internal/chat"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages       []chatMessage `json:"messages"`
	ThreadID       string        `json:"thread_id"`
	IncludeContext *bool         `json:"include_context"`
}

func (r *router) handleChat(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	user, ok := r.currentUser(w, req)
	if !ok {
		return
	}

	var payload chatRequest
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	if len(payload.Messages) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "messages are required"})
		return
	}
	latest := strings.TrimSpace(payload.Messages[len(payload.Messages)-1].Content)
	if latest == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message content is required"})
		return
	}

	ctx := req.Context()
	threadID := strings.TrimSpace(payload.ThreadID)
	if threadID == "" {
		threadID = chat.NewThreadID(user.ID, r.deps.Now())
	}
	if _, err := r.deps.Store.EnsureConversation(ctx, user.ID, threadID, chat.TitleFor(payload.Messages[0].Content)); err != nil {
		r.writeError(w, err)
		return
	}

	// Context defaults to on; clients opt out explicitly.
	bundle := assemble.Bundle{}
	if payload.IncludeContext == nil || *payload.IncludeContext {
		bundle = r.gatherBundle(ctx, user.ID).Bundle
	}

	reply, err := r.deps.Orchestrator.Respond(ctx, threadID, latest, bundle)
	if err != nil {
		r.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (r *router) handleConversations(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	user, ok := r.currentUser(w, req)
	if !ok {
		return
	}

	conversations, err := r.deps.Store.ListConversations(req.Context(), user.ID, 20)
	if err != nil {
		r.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conversations)
}

func (r *router) handleConversationMessages(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	user, ok := r.currentUser(w, req)
	if !ok {
		return
	}

	rest := strings.TrimPrefix(req.URL.Path, "/api/chat/conversations/")
	threadID := strings.TrimSuffix(rest, "/messages")
	if threadID == "" || threadID == rest || strings.Contains(threadID, "/") {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	ctx := req.Context()
	conversation, err := r.deps.Store.LookupConversation(ctx, threadID)
	if err != nil {
		r.writeError(w, err)
		return
	}
	if conversation.UserID != "" && conversation.UserID != user.ID {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "conversation not found"})
		return
	}

	messages, err := r.deps.Store.LoadHistory(ctx, threadID)
	if err != nil {
		r.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}
