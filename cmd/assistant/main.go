package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"chatbot-crm/internal/app"
	"chatbot-crm/internal/cache"
	"chatbot-crm/internal/chat"
	"chatbot-crm/internal/httputil"
	"chatbot-crm/internal/search"
	"chatbot-crm/internal/store"
)

type searchRequest struct {
	Query string `json:"query" validate:"required,min=3,max=500"`
}

type messageRequest struct {
	Message        string `json:"message" validate:"required,max=2000"`
	ConversationID string `json:"conversation_id" validate:"omitempty,uuid"`
	Channel        string `json:"channel" validate:"omitempty,oneof=web whatsapp api"`
	ContactPhone   string `json:"contact_phone" validate:"omitempty,max=20"`
	ContactName    string `json:"contact_name" validate:"omitempty,max=255"`
}

type conversationView struct {
	ID            uuid.UUID      `json:"id"`
	Channel       string         `json:"channel"`
	ContactPhone  string         `json:"contact_phone,omitempty"`
	ContactName   string         `json:"contact_name,omitempty"`
	ContactEmail  string         `json:"contact_email,omitempty"`
	Status        string         `json:"status"`
	Metadata      store.Metadata `json:"metadata,omitempty"`
	LastMessageAt *time.Time     `json:"last_message_at"`
	CreatedAt     time.Time      `json:"created_at"`
}

type messageView struct {
	ID              uuid.UUID      `json:"id"`
	ConversationID  uuid.UUID      `json:"conversation_id"`
	Content         string         `json:"content"`
	Type            string         `json:"type"`
	Sender          string         `json:"sender"`
	Metadata        store.Metadata `json:"metadata,omitempty"`
	ConfidenceScore *float64       `json:"confidence_score"`
	CreatedAt       time.Time      `json:"created_at"`
}

func main() {
	deps, err := app.BuildAssistant()
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	defer deps.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", deps.Config.Port),
		Handler:           newRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}
	deps.Log.Info("assistant service listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil {
		deps.Log.Error("server error", "err", err)
	}
}

func newRouter(deps app.AssistantDeps) http.Handler {
	r := httputil.NewRouter(deps.Log)

	r.Post("/api/documents/search", searchHandler(deps))
	r.Route("/api/chat", func(r chi.Router) {
		r.Post("/messages", sendMessageHandler(deps))
		r.Get("/conversations", listConversationsHandler(deps))
		r.Get("/conversations/{id}", conversationHandler(deps))
	})
	r.Get("/healthz", httputil.HealthHandler(deps.Log))
	return r
}

func searchHandler(deps app.AssistantDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.Fail(deps.Log, w, "invalid payload", err, http.StatusBadRequest)
			return
		}
		if err := httputil.Validator.Struct(&req); err != nil {
			httputil.ValidationError(deps.Log, w, err)
			return
		}

		ctx := r.Context()
		// The generation is read before the snapshot so an invalidation that
		// lands mid-search retires this key.
		gen, err := deps.Cache.SearchGeneration(ctx)
		useCache := err == nil
		if err != nil {
			deps.Log.Warn("search cache generation read failed", "err", err)
		}
		key := cache.SearchKey(gen, req.Query)
		if useCache {
			if cached, err := deps.Cache.GetSearchResult(ctx, key); err != nil {
				deps.Log.Warn("search cache read failed", "err", err)
			} else if cached != nil {
				deps.Log.Info("cache hit", "query", req.Query)
				writeSearch(w, req.Query, cached.Hits, true)
				return
			}
		}

		results, err := deps.Search.Search(ctx, req.Query)
		if errors.Is(err, search.ErrQueryNotEmbeddable) {
			httputil.Fail(deps.Log, w, "cannot process query", err, http.StatusUnprocessableEntity)
			return
		}
		if err != nil {
			httputil.Fail(deps.Log, w, "search failed", err, http.StatusInternalServerError)
			return
		}

		hits := make([]cache.Hit, 0, len(results))
		for _, res := range results {
			hits = append(hits, cache.Hit{
				DocumentID: res.Document.ID.String(),
				Filename:   res.Document.Filename,
				Type:       string(res.Document.Type),
				Similarity: res.Similarity,
				Excerpt:    res.Excerpt,
			})
		}

		if useCache {
			if err := deps.Cache.SetSearchResult(ctx, key, &cache.SearchResult{Query: req.Query, Hits: hits}, deps.Config.CacheTTL); err != nil {
				deps.Log.Warn("failed to cache search result", "err", err)
			}
		}
		writeSearch(w, req.Query, hits, false)
	}
}

func writeSearch(w http.ResponseWriter, query string, hits []cache.Hit, cached bool) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"query":   query,
			"results": hits,
			"total":   len(hits),
			"cached":  cached,
		},
	})
}

func sendMessageHandler(deps app.AssistantDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req messageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.Fail(deps.Log, w, "invalid payload", err, http.StatusBadRequest)
			return
		}
		if err := httputil.Validator.Struct(&req); err != nil {
			httputil.ValidationError(deps.Log, w, err)
			return
		}

		send := chat.SendRequest{
			Message:      req.Message,
			Channel:      req.Channel,
			ContactPhone: req.ContactPhone,
			ContactName:  req.ContactName,
		}
		if send.Channel == "" {
			send.Channel = "web"
		}
		if req.ConversationID != "" {
			id := uuid.MustParse(req.ConversationID)
			send.ConversationID = &id
		}

		res, err := deps.Chat.SendMessage(r.Context(), send)
		if errors.Is(err, chat.ErrConversationNotFound) {
			httputil.Fail(deps.Log, w, "conversation not found", err, http.StatusNotFound)
			return
		}
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to generate reply", err, http.StatusInternalServerError)
			return
		}

		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data": map[string]any{
				"conversation": viewConversation(res.Conversation),
				"user_message": viewMessage(res.UserMessage),
				"ai_message":   viewMessage(res.AIMessage),
			},
		})
	}
}

func listConversationsHandler(deps app.AssistantDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := 1
		if raw := r.URL.Query().Get("page"); raw != "" {
			p, err := strconv.Atoi(raw)
			if err != nil || p < 1 {
				httputil.Fail(deps.Log, w, "page must be a positive integer", err, http.StatusBadRequest)
				return
			}
			page = p
		}

		convs, err := deps.Chat.ListConversations(r.Context(), page)
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to list conversations", err, http.StatusInternalServerError)
			return
		}
		views := make([]conversationView, 0, len(convs))
		for _, c := range convs {
			views = append(views, viewConversation(c))
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data":    views,
			"page":    page,
		})
	}
}

func conversationHandler(deps app.AssistantDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httputil.Fail(deps.Log, w, "invalid conversation id", err, http.StatusBadRequest)
			return
		}

		conv, msgs, err := deps.Chat.History(r.Context(), id)
		if errors.Is(err, chat.ErrConversationNotFound) {
			httputil.Fail(deps.Log, w, "conversation not found", err, http.StatusNotFound)
			return
		}
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to load conversation", err, http.StatusInternalServerError)
			return
		}

		views := make([]messageView, 0, len(msgs))
		for _, m := range msgs {
			views = append(views, viewMessage(m))
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data": map[string]any{
				"conversation": viewConversation(conv),
				"messages":     views,
			},
		})
	}
}

func viewConversation(c store.Conversation) conversationView {
	return conversationView{
		ID:            c.ID,
		Channel:       c.Channel,
		ContactPhone:  c.ContactPhone,
		ContactName:   c.ContactName,
		ContactEmail:  c.ContactEmail,
		Status:        string(c.Status),
		Metadata:      c.Metadata,
		LastMessageAt: c.LastMessageAt,
		CreatedAt:     c.CreatedAt,
	}
}

func viewMessage(m store.Message) messageView {
	return messageView{
		ID:              m.ID,
		ConversationID:  m.ConversationID,
		Content:         m.Content,
		Type:            string(m.Type),
		Sender:          string(m.Sender),
		Metadata:        m.Metadata,
		ConfidenceScore: m.ConfidenceScore,
		CreatedAt:       m.CreatedAt,
	}
}
