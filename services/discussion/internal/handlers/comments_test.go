package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/example/discussion/internal/platform/api"
	"github.com/example/discussion/internal/platform/auth"
	"github.com/example/discussion/services/discussion/internal/service"
	"github.com/example/discussion/services/discussion/internal/store"
	"github.com/example/discussion/services/discussion/internal/tree"
)

// setupReq builds a request with chi URL params and an optional verified user.
func setupReq(method, url string, body string, params map[string]string, userID string) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, url, bytes.NewBufferString(body))
	} else {
		req = httptest.NewRequest(method, url, nil)
	}
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	if userID != "" {
		ctx = auth.WithUserID(ctx, userID)
	}
	return req.WithContext(ctx)
}

func newDiscussion() *service.Service {
	return service.New(store.NewInMemoryStore(), nil, nil)
}

func mustCreate(t *testing.T, d Discussion, in service.CreateInput) tree.Node {
	t.Helper()
	n, err := d.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return n
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) api.ErrorResponse {
	t.Helper()
	var e api.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&e); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return e
}

func TestCreateComment(t *testing.T) {
	handler := CreateComment(newDiscussion())

	req := setupReq(http.MethodPost, "/api/comments",
		`{"text":"hello world","uid":"u1","author":"Ann","email":"a@x.io","photoURL":null}`, nil, "")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Message string         `json:"message"`
		Comment map[string]any `json:"comment"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Message != "Comment created successfully" {
		t.Fatalf("unexpected message %q", resp.Message)
	}
	if resp.Comment["text"] != "hello world" {
		t.Fatalf("expected text 'hello world', got %v", resp.Comment["text"])
	}
	user, _ := resp.Comment["user"].(map[string]any)
	if user["name"] != "Ann" || user["email"] != "a@x.io" {
		t.Fatalf("unexpected user %v", user)
	}
	children, ok := resp.Comment["children"].([]any)
	if !ok || len(children) != 0 {
		t.Fatalf("expected empty children array, got %v", resp.Comment["children"])
	}
}

func TestCreateComment_MissingFields(t *testing.T) {
	handler := CreateComment(newDiscussion())

	req := setupReq(http.MethodPost, "/api/comments", `{"text":"hi"}`, nil, "")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	e := decodeError(t, rr)
	fields, _ := e.Details["fields"].([]any)
	if len(fields) != 2 || fields[0] != "uid" || fields[1] != "author" {
		t.Fatalf("expected missing uid and author, got %v", e.Details)
	}
}

func TestCreateComment_InvalidJSON(t *testing.T) {
	handler := CreateComment(newDiscussion())

	req := setupReq(http.MethodPost, "/api/comments", `{"text":`, nil, "")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if e := decodeError(t, rr); e.Code != "INVALID_JSON" {
		t.Fatalf("expected INVALID_JSON, got %s", e.Code)
	}
}

func TestCreateComment_UnknownParent(t *testing.T) {
	handler := CreateComment(newDiscussion())

	req := setupReq(http.MethodPost, "/api/comments",
		`{"text":"x","uid":"u1","author":"Ann","parentId":"nope"}`, nil, "")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestCreateComment_TokenFillsUID(t *testing.T) {
	handler := CreateComment(newDiscussion())

	req := setupReq(http.MethodPost, "/api/comments", `{"text":"x","author":"Ann"}`, nil, "sub-1")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestCreateComment_TokenMismatch(t *testing.T) {
	handler := CreateComment(newDiscussion())

	req := setupReq(http.MethodPost, "/api/comments", `{"text":"x","uid":"other","author":"Ann"}`, nil, "sub-1")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestListComments(t *testing.T) {
	d := newDiscussion()
	root := mustCreate(t, d, service.CreateInput{Text: "root", UID: "u1", Author: "Ann"})
	mustCreate(t, d, service.CreateInput{Text: "reply", UID: "u2", Author: "Bob", ParentID: &root.ID})

	rr := httptest.NewRecorder()
	ListComments(d).ServeHTTP(rr, setupReq(http.MethodGet, "/api/comments", "", nil, ""))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var forest []tree.Node
	if err := json.NewDecoder(rr.Body).Decode(&forest); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(forest) != 1 || len(forest[0].Children) != 1 {
		t.Fatalf("expected one root with one reply, got %+v", forest)
	}
}

func TestListComments_Empty(t *testing.T) {
	rr := httptest.NewRecorder()
	ListComments(newDiscussion()).ServeHTTP(rr, setupReq(http.MethodGet, "/api/comments", "", nil, ""))

	if got := bytes.TrimSpace(rr.Body.Bytes()); string(got) != "[]" {
		t.Fatalf("expected [], got %s", got)
	}
}

func TestGetComment_Depth(t *testing.T) {
	d := newDiscussion()
	root := mustCreate(t, d, service.CreateInput{Text: "root", UID: "u1", Author: "Ann"})
	parent := root.ID
	for i := 0; i < 3; i++ {
		p := parent
		parent = mustCreate(t, d, service.CreateInput{Text: "r", UID: "u1", Author: "Ann", ParentID: &p}).ID
	}

	cases := []struct {
		query string
		code  int
		depth int
	}{
		{"", http.StatusOK, 2},
		{"?depth=1", http.StatusOK, 1},
		{"?depth=0", http.StatusOK, 3},
		{"?depth=-1", http.StatusBadRequest, 0},
		{"?depth=abc", http.StatusBadRequest, 0},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		req := setupReq(http.MethodGet, "/api/comments/"+root.ID+tc.query, "", map[string]string{"id": root.ID}, "")
		GetComment(d).ServeHTTP(rr, req)
		if rr.Code != tc.code {
			t.Fatalf("%q: expected %d, got %d", tc.query, tc.code, rr.Code)
		}
		if tc.code != http.StatusOK {
			continue
		}
		var n tree.Node
		if err := json.NewDecoder(rr.Body).Decode(&n); err != nil {
			t.Fatalf("decode: %v", err)
		}
		levels := 0
		for len(n.Children) > 0 {
			n = n.Children[0]
			levels++
		}
		if levels != tc.depth {
			t.Fatalf("%q: expected depth %d, got %d", tc.query, tc.depth, levels)
		}
	}
}

func TestGetComment_NotFound(t *testing.T) {
	rr := httptest.NewRecorder()
	req := setupReq(http.MethodGet, "/api/comments/missing", "", map[string]string{"id": "missing"}, "")
	GetComment(newDiscussion()).ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestDeleteComment(t *testing.T) {
	d := newDiscussion()
	c := mustCreate(t, d, service.CreateInput{Text: "x", UID: "owner", Author: "O"})
	params := map[string]string{"id": c.ID}

	rr := httptest.NewRecorder()
	DeleteComment(d).ServeHTTP(rr, setupReq(http.MethodDelete, "/api/comments/"+c.ID, `{"uid":"intruder"}`, params, ""))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	DeleteComment(d).ServeHTTP(rr, setupReq(http.MethodDelete, "/api/comments/"+c.ID, `{"uid":"owner"}`, params, ""))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp messageResponse
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Message != "Comment deleted successfully" {
		t.Fatalf("unexpected message %q", resp.Message)
	}

	rr = httptest.NewRecorder()
	DeleteComment(d).ServeHTTP(rr, setupReq(http.MethodDelete, "/api/comments/"+c.ID, `{"uid":"owner"}`, params, ""))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestToggleLike(t *testing.T) {
	d := newDiscussion()
	c := mustCreate(t, d, service.CreateInput{Text: "x", UID: "owner", Author: "O"})
	params := map[string]string{"id": c.ID}

	for i, want := range []likeResponse{
		{Message: "Comment liked", Liked: true},
		{Message: "Comment unliked", Liked: false},
	} {
		rr := httptest.NewRecorder()
		ToggleLike(d).ServeHTTP(rr, setupReq(http.MethodPost, "/api/comments/"+c.ID+"/like", `{"uid":"fan"}`, params, ""))
		if rr.Code != http.StatusOK {
			t.Fatalf("toggle %d: expected 200, got %d", i, rr.Code)
		}
		var got likeResponse
		if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got != want {
			t.Fatalf("toggle %d: expected %+v, got %+v", i, want, got)
		}
	}
}

func TestToggleLike_MissingUID(t *testing.T) {
	d := newDiscussion()
	c := mustCreate(t, d, service.CreateInput{Text: "x", UID: "owner", Author: "O"})

	rr := httptest.NewRecorder()
	ToggleLike(d).ServeHTTP(rr, setupReq(http.MethodPost, "/api/comments/"+c.ID+"/like", "", map[string]string{"id": c.ID}, ""))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestRoutes(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) { Routes(r, newDiscussion()) })

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/comments", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/comments/abc/like", bytes.NewBufferString(`{"uid":"u"}`)))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown comment, got %d", rr.Code)
	}
}
