package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"chatbot-crm/internal/app"
	"chatbot-crm/internal/blob"
	"chatbot-crm/internal/httputil"
	"chatbot-crm/internal/queue"
	"chatbot-crm/internal/store"
)

const (
	headerUserID   = "X-User-ID"
	headerUserRole = "X-User-Role"
	roleAdmin      = "admin"
	pageSize       = 20
)

// extensionTypes maps accepted upload extensions to document types.
var extensionTypes = map[string]store.DocumentType{
	".pdf":  store.TypePDF,
	".doc":  store.TypeDOCX,
	".docx": store.TypeDOCX,
	".xls":  store.TypeXLSX,
	".xlsx": store.TypeXLSX,
	".txt":  store.TypeText,
	".png":  store.TypeImage,
	".jpg":  store.TypeImage,
	".jpeg": store.TypeImage,
}

func main() {
	deps, err := app.Build()
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	defer deps.Close()

	r := newRouter(deps)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", deps.Config.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	deps.Log.Info("gateway listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil {
		deps.Log.Error("server failed", "err", err)
	}
}

func newRouter(deps app.Deps) http.Handler {
	r := httputil.NewRouter(deps.Log)

	assistant := proxyHandler(deps, deps.Config.AssistantURL)

	r.Route("/api/documents", func(r chi.Router) {
		r.Get("/", listHandler(deps))
		r.Post("/upload", uploadHandler(deps))
		r.Get("/stats", statsHandler(deps))
		r.Post("/process", processAllHandler(deps))
		r.Post("/process/{id}", processHandler(deps))
		r.Get("/content/{id}", contentHandler(deps))
		r.Post("/search", assistant)
		r.Delete("/{id}", deleteHandler(deps))
	})
	r.Handle("/api/chat/*", assistant)
	r.Get("/healthz", httputil.HealthHandler(deps.Log))
	return r
}

type documentView struct {
	ID            uuid.UUID  `json:"id"`
	Filename      string     `json:"filename"`
	Type          string     `json:"type"`
	FilePath      string     `json:"file_path"`
	Processed     bool       `json:"processed"`
	ProcessedAt   *time.Time `json:"processed_at"`
	HasEmbedding  bool       `json:"has_embedding"`
	UploadedBy    string     `json:"uploaded_by,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	Status        string     `json:"status"`
	Size          int64      `json:"size"`
	SizeFormatted string     `json:"size_formatted"`
}

func viewDocument(r *http.Request, deps app.Deps, doc store.Document) documentView {
	v := documentView{
		ID:           doc.ID,
		Filename:     doc.Filename,
		Type:         string(doc.Type),
		FilePath:     doc.FilePath,
		Processed:    doc.Processed,
		ProcessedAt:  doc.ProcessedAt,
		HasEmbedding: !doc.Embedding.Empty(),
		UploadedBy:   doc.UploadedBy,
		CreatedAt:    doc.CreatedAt,
		Status:       string(doc.StatusAfter(time.Now(), failedAfter(deps))),
	}
	if size, err := deps.Blobs.Size(r.Context(), doc.FilePath); err == nil {
		v.Size = size
	} else if !errors.Is(err, blob.ErrNotFound) {
		deps.Log.Warn("failed to stat document file", "document_id", doc.ID, "err", err)
	}
	v.SizeFormatted = humanize.IBytes(uint64(v.Size))
	return v
}

func failedAfter(deps app.Deps) time.Duration {
	if deps.Config.FailedAfter > 0 {
		return deps.Config.FailedAfter
	}
	return store.DefaultFailedAfter
}

func uploadHandler(deps app.Deps) http.HandlerFunc {
	maxFileSize := deps.Config.MaxUploadSize

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if r.ContentLength > maxFileSize {
			httputil.Fail(deps.Log, w, fmt.Sprintf("file too large (max %s)", humanize.IBytes(uint64(maxFileSize))), nil, http.StatusBadRequest)
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			httputil.Fail(deps.Log, w, "file is required", err, http.StatusBadRequest)
			return
		}
		defer file.Close()

		if header.Size > maxFileSize {
			httputil.Fail(deps.Log, w, fmt.Sprintf("file too large (max %s)", humanize.IBytes(uint64(maxFileSize))), nil, http.StatusBadRequest)
			return
		}

		typ, ok := extensionTypes[strings.ToLower(filepath.Ext(header.Filename))]
		if !ok {
			httputil.Fail(deps.Log, w, "unsupported file type (allowed: pdf, doc, docx, xls, xlsx, txt, png, jpg, jpeg)", nil, http.StatusBadRequest)
			return
		}

		id := uuid.New()
		ref := blob.DocumentRef(id, header.Filename)
		log := deps.Log.With("document_id", id, "filename", header.Filename)

		if _, err := deps.Blobs.Save(ctx, ref, file); err != nil {
			httputil.Fail(log, w, "failed to store file", err, http.StatusInternalServerError)
			return
		}

		doc, err := deps.Store.CreateDocument(ctx, store.Document{
			ID:         id,
			Filename:   header.Filename,
			Type:       typ,
			FilePath:   ref,
			UploadedBy: r.Header.Get(headerUserID),
		})
		if err != nil {
			if delErr := deps.Blobs.Delete(ctx, ref); delErr != nil {
				log.Warn("failed to remove orphaned file", "err", delErr)
			}
			httputil.Fail(log, w, "failed to persist document", err, http.StatusInternalServerError)
			return
		}

		log.Info("document uploaded", "type", typ)
		httputil.WriteJSON(w, http.StatusCreated, map[string]any{
			"success": true,
			"message": "document uploaded",
			"data":    viewDocument(r, deps, doc),
		})
	}
}

func listHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := store.DocumentFilter{
			Search:  strings.TrimSpace(q.Get("search")),
			PerPage: pageSize,
		}

		if raw := q.Get("processed"); raw != "" {
			processed, err := strconv.ParseBool(raw)
			if err != nil {
				httputil.Fail(deps.Log, w, "processed must be true or false", err, http.StatusBadRequest)
				return
			}
			filter.Processed = &processed
		}
		for _, raw := range q["type"] {
			for _, t := range strings.Split(raw, ",") {
				typ := store.DocumentType(strings.TrimSpace(t))
				if !typ.Valid() {
					httputil.Fail(deps.Log, w, fmt.Sprintf("unknown document type %q", t), nil, http.StatusBadRequest)
					return
				}
				filter.Types = append(filter.Types, typ)
			}
		}
		if raw := q.Get("page"); raw != "" {
			page, err := strconv.Atoi(raw)
			if err != nil || page < 1 {
				httputil.Fail(deps.Log, w, "page must be a positive integer", err, http.StatusBadRequest)
				return
			}
			filter.Page = page
		}

		result, err := deps.Store.ListDocuments(r.Context(), filter)
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to list documents", err, http.StatusInternalServerError)
			return
		}

		views := make([]documentView, 0, len(result.Documents))
		for _, doc := range result.Documents {
			views = append(views, viewDocument(r, deps, doc))
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data":    views,
			"meta": map[string]int{
				"total":    result.Total,
				"page":     result.Page,
				"per_page": result.PerPage,
			},
		})
	}
}

func deleteHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		doc, ok := loadDocument(deps, w, r)
		if !ok {
			return
		}
		log := deps.Log.With("document_id", doc.ID)

		user := r.Header.Get(headerUserID)
		isAdmin := r.Header.Get(headerUserRole) == roleAdmin
		if !isAdmin && (user == "" || user != doc.UploadedBy) {
			httputil.Fail(log, w, "not allowed to delete this document", nil, http.StatusForbidden)
			return
		}

		if err := deps.Blobs.Delete(ctx, doc.FilePath); err != nil && !errors.Is(err, blob.ErrNotFound) {
			httputil.Fail(log, w, "failed to delete file", err, http.StatusInternalServerError)
			return
		}
		if err := deps.Store.DeleteDocument(ctx, doc.ID); err != nil {
			httputil.Fail(log, w, "failed to delete document", err, http.StatusInternalServerError)
			return
		}
		if err := deps.Cache.InvalidateSearch(ctx); err != nil {
			log.Warn("failed to invalidate search cache", "err", err)
		}

		log.Info("document deleted", "by", user)
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "document deleted",
		})
	}
}

func processAllHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if isAsync(r) {
			if deps.Queue == nil {
				httputil.Fail(deps.Log, w, "asynchronous processing is not configured", nil, http.StatusServiceUnavailable)
				return
			}
			if err := queue.EnqueueWithRetry(ctx, deps.Queue, queue.NewProcessAllTask(), 3, 200*time.Millisecond); err != nil {
				httputil.Fail(deps.Log, w, "failed to enqueue processing; please retry", err, http.StatusInternalServerError)
				return
			}
			httputil.WriteJSON(w, http.StatusAccepted, map[string]any{
				"success": true,
				"message": "processing scheduled",
			})
			return
		}

		summary, err := deps.Pipeline.ProcessAll(ctx)
		if err != nil && summary.Total == 0 {
			httputil.Fail(deps.Log, w, "failed to process documents", err, http.StatusInternalServerError)
			return
		}
		if err != nil {
			deps.Log.Warn("batch processing interrupted", "err", err, "processed", summary.Processed)
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": fmt.Sprintf("processed %d of %d documents", summary.Processed, summary.Total),
			"data":    summary,
		})
	}
}

func processHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		doc, ok := loadDocument(deps, w, r)
		if !ok {
			return
		}
		log := deps.Log.With("document_id", doc.ID)

		if isAsync(r) {
			if deps.Queue == nil {
				httputil.Fail(log, w, "asynchronous processing is not configured", nil, http.StatusServiceUnavailable)
				return
			}
			task, err := queue.NewProcessTask(doc.ID, r.Header.Get(headerUserID))
			if err != nil {
				httputil.Fail(log, w, "failed to build task", err, http.StatusInternalServerError)
				return
			}
			if err := queue.EnqueueWithRetry(ctx, deps.Queue, task, 3, 200*time.Millisecond); err != nil {
				httputil.Fail(log, w, "failed to enqueue document; please retry", err, http.StatusInternalServerError)
				return
			}
			httputil.WriteJSON(w, http.StatusAccepted, map[string]any{
				"success":     true,
				"message":     "processing scheduled",
				"document_id": doc.ID,
			})
			return
		}

		out := deps.Pipeline.ProcessDocument(ctx, doc)
		if !out.OK() {
			httputil.Fail(log, w, out.Message(), out.Err, http.StatusUnprocessableEntity)
			return
		}
		doc, err := deps.Store.GetDocument(ctx, doc.ID)
		if err != nil {
			httputil.Fail(log, w, "failed to reload document", err, http.StatusInternalServerError)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "document processed",
			"data":    viewDocument(r, deps, doc),
		})
	}
}

func contentHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, ok := loadDocument(deps, w, r)
		if !ok {
			return
		}
		if !doc.Processed {
			httputil.Fail(deps.Log, w, "document has not been processed yet", nil, http.StatusUnprocessableEntity)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data": map[string]any{
				"id":       doc.ID,
				"filename": doc.Filename,
				"content":  doc.Text(),
			},
		})
	}
}

func statsHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := deps.Store.Stats(r.Context(), time.Now().Add(-failedAfter(deps)))
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to load statistics", err, http.StatusInternalServerError)
			return
		}
		recent := make([]documentView, 0, len(stats.Recent))
		for _, doc := range stats.Recent {
			recent = append(recent, viewDocument(r, deps, doc))
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data": map[string]any{
				"total":     stats.Total,
				"processed": stats.Processed,
				"pending":   stats.Pending,
				"failed":    stats.Failed,
				"by_type":   stats.ByType,
				"recent":    recent,
			},
		})
	}
}

// proxyHandler forwards the request to the assistant service unchanged.
func proxyHandler(deps app.Deps, baseURL string) http.HandlerFunc {
	client := &http.Client{Timeout: 60 * time.Second}
	base := strings.TrimRight(baseURL, "/")

	return func(w http.ResponseWriter, r *http.Request) {
		target := base + r.URL.Path
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}
		req, err := http.NewRequestWithContext(r.Context(), r.Method, target, r.Body)
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to create request", err, http.StatusInternalServerError)
			return
		}
		for _, h := range []string{"Content-Type", headerUserID, headerUserRole} {
			if v := r.Header.Get(h); v != "" {
				req.Header.Set(h, v)
			}
		}

		resp, err := client.Do(req)
		if err != nil {
			httputil.Fail(deps.Log, w, "assistant service unavailable", err, http.StatusServiceUnavailable)
			return
		}
		defer resp.Body.Close()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.StatusCode)
		if _, err := io.Copy(w, resp.Body); err != nil {
			deps.Log.Error("failed to copy response", "err", err)
		}
	}
}

func loadDocument(deps app.Deps, w http.ResponseWriter, r *http.Request) (store.Document, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.Fail(deps.Log, w, "invalid document id", err, http.StatusBadRequest)
		return store.Document{}, false
	}
	doc, err := deps.Store.GetDocument(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		httputil.Fail(deps.Log, w, "document not found", err, http.StatusNotFound)
		return store.Document{}, false
	}
	if err != nil {
		httputil.Fail(deps.Log, w, "failed to load document", err, http.StatusInternalServerError)
		return store.Document{}, false
	}
	return doc, true
}

func isAsync(r *http.Request) bool {
	async, _ := strconv.ParseBool(r.URL.Query().Get("async"))
	return async
}
