package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/discussion/internal/platform/api"
	"github.com/example/discussion/internal/platform/auth"
	"github.com/example/discussion/internal/platform/httpserver"
	"github.com/example/discussion/services/discussion/internal/service"
	"github.com/example/discussion/services/discussion/internal/tree"
)

const maxBodyBytes = 1 << 20

// Discussion is the set of operations the HTTP layer needs.
type Discussion interface {
	Create(ctx context.Context, in service.CreateInput) (tree.Node, error)
	List(ctx context.Context) ([]tree.Node, error)
	Get(ctx context.Context, id string, depth int) (tree.Node, error)
	Delete(ctx context.Context, id, requesterID string) error
	ToggleLike(ctx context.Context, id, userID string) (bool, error)
}

type uidRequest struct {
	UID string `json:"uid"`
}

type createCommentResponse struct {
	Message string    `json:"message"`
	Comment tree.Node `json:"comment"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type likeResponse struct {
	Message string `json:"message"`
	Liked   bool   `json:"liked"`
}

// Routes mounts the comment endpoints on r.
func Routes(r chi.Router, d Discussion) {
	r.Get("/comments", ListComments(d))
	r.Post("/comments", CreateComment(d))
	r.Get("/comments/{id}", GetComment(d))
	r.Delete("/comments/{id}", DeleteComment(d))
	r.Post("/comments/{id}/like", ToggleLike(d))
}

// CreateComment handles POST /comments
func CreateComment(d Discussion) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqID := httpserver.RequestIDFromContext(r.Context())

		var in service.CreateInput
		if err := decodeBody(w, r, &in); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", reqID, nil)
			return
		}
		uid, ok := resolveUID(w, r, in.UID)
		if !ok {
			return
		}
		in.UID = uid

		created, err := d.Create(r.Context(), in)
		if err != nil {
			writeError(w, reqID, err)
			return
		}
		api.WriteJSON(w, http.StatusCreated, createCommentResponse{
			Message: "Comment created successfully",
			Comment: created,
		})
	}
}

// ListComments handles GET /comments
func ListComments(d Discussion) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		forest, err := d.List(r.Context())
		if err != nil {
			writeError(w, httpserver.RequestIDFromContext(r.Context()), err)
			return
		}
		api.WriteJSON(w, http.StatusOK, forest)
	}
}

// GetComment handles GET /comments/{id}?depth=N
func GetComment(d Discussion) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqID := httpserver.RequestIDFromContext(r.Context())
		id := strings.TrimSpace(chi.URLParam(r, "id"))

		depth := service.DefaultDepth
		if raw := strings.TrimSpace(r.URL.Query().Get("depth")); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 0 {
				api.BadRequest(w, "INVALID_DEPTH", "depth must be a non-negative integer", reqID, nil)
				return
			}
			depth = parsed
		}

		node, err := d.Get(r.Context(), id, depth)
		if err != nil {
			writeError(w, reqID, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, node)
	}
}

// DeleteComment handles DELETE /comments/{id}
func DeleteComment(d Discussion) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqID := httpserver.RequestIDFromContext(r.Context())
		id := strings.TrimSpace(chi.URLParam(r, "id"))

		var req uidRequest
		if err := decodeBody(w, r, &req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", reqID, nil)
			return
		}
		uid, ok := resolveUID(w, r, req.UID)
		if !ok {
			return
		}

		if err := d.Delete(r.Context(), id, uid); err != nil {
			writeError(w, reqID, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, messageResponse{Message: "Comment deleted successfully"})
	}
}

// ToggleLike handles POST /comments/{id}/like
func ToggleLike(d Discussion) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqID := httpserver.RequestIDFromContext(r.Context())
		id := strings.TrimSpace(chi.URLParam(r, "id"))

		var req uidRequest
		if err := decodeBody(w, r, &req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", reqID, nil)
			return
		}
		uid, ok := resolveUID(w, r, req.UID)
		if !ok {
			return
		}

		liked, err := d.ToggleLike(r.Context(), id, uid)
		if err != nil {
			writeError(w, reqID, err)
			return
		}
		msg := "Comment unliked"
		if liked {
			msg = "Comment liked"
		}
		api.WriteJSON(w, http.StatusOK, likeResponse{Message: msg, Liked: liked})
	}
}

// decodeBody decodes a JSON body into v. An empty body leaves v untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// resolveUID writes a 403 and reports false when the asserted uid disagrees
// with the authenticated user.
func resolveUID(w http.ResponseWriter, r *http.Request, asserted string) (string, bool) {
	uid, err := auth.ResolveUID(r.Context(), asserted)
	if err != nil {
		api.Forbidden(w, "UID_MISMATCH", err.Error(), httpserver.RequestIDFromContext(r.Context()))
		return "", false
	}
	return uid, true
}

func writeError(w http.ResponseWriter, reqID string, err error) {
	var se *service.Error
	errors.As(err, &se)

	switch {
	case errors.Is(err, service.ErrValidation):
		var details map[string]any
		if se != nil && len(se.Fields) > 0 {
			details = map[string]any{"fields": se.Fields}
		}
		api.BadRequest(w, "VALIDATION_FAILED", messageOf(se, "invalid request"), reqID, details)
	case errors.Is(err, service.ErrNotFound):
		api.NotFound(w, "NOT_FOUND", messageOf(se, "not found"), reqID)
	case errors.Is(err, service.ErrForbidden):
		api.Forbidden(w, "FORBIDDEN", messageOf(se, "forbidden"), reqID)
	default:
		api.Internal(w, "", reqID)
	}
}

func messageOf(se *service.Error, fallback string) string {
	if se == nil || se.Message == "" {
		return fallback
	}
	return se.Message
}
