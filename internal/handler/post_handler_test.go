package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/minigram/internal/middleware"
	"github.com/hitoshi/minigram/internal/model"
)

// --- モック ---

type mockPostService struct {
	createPostFn    func(ctx context.Context, userID, imageURL, caption string) (*model.Post, error)
	getPostFn       func(ctx context.Context, viewerID, postID string) (*model.Post, []model.Comment, error)
	deletePostFn    func(ctx context.Context, userID, postID string) error
	listUserPostsFn func(ctx context.Context, userID, viewerID string, page, limit int) (*model.PostPage, error)
	getFeedFn       func(ctx context.Context, viewerID string, page, limit int) (*model.PostPage, error)
	likeFn          func(ctx context.Context, userID, postID string) (int, error)
	unlikeFn        func(ctx context.Context, userID, postID string) (int, error)
	addCommentFn    func(ctx context.Context, userID, postID, text string) (*model.Comment, error)
	listCommentsFn  func(ctx context.Context, postID string) ([]model.Comment, error)
	deleteCommentFn func(ctx context.Context, userID, commentID string) error
}

func (m *mockPostService) CreatePost(ctx context.Context, userID, imageURL, caption string) (*model.Post, error) {
	return m.createPostFn(ctx, userID, imageURL, caption)
}

func (m *mockPostService) GetPost(ctx context.Context, viewerID, postID string) (*model.Post, []model.Comment, error) {
	return m.getPostFn(ctx, viewerID, postID)
}

func (m *mockPostService) DeletePost(ctx context.Context, userID, postID string) error {
	return m.deletePostFn(ctx, userID, postID)
}

func (m *mockPostService) ListUserPosts(ctx context.Context, userID, viewerID string, page, limit int) (*model.PostPage, error) {
	return m.listUserPostsFn(ctx, userID, viewerID, page, limit)
}

func (m *mockPostService) GetFeed(ctx context.Context, viewerID string, page, limit int) (*model.PostPage, error) {
	return m.getFeedFn(ctx, viewerID, page, limit)
}

func (m *mockPostService) Like(ctx context.Context, userID, postID string) (int, error) {
	return m.likeFn(ctx, userID, postID)
}

func (m *mockPostService) Unlike(ctx context.Context, userID, postID string) (int, error) {
	return m.unlikeFn(ctx, userID, postID)
}

func (m *mockPostService) AddComment(ctx context.Context, userID, postID, text string) (*model.Comment, error) {
	return m.addCommentFn(ctx, userID, postID, text)
}

func (m *mockPostService) ListComments(ctx context.Context, postID string) ([]model.Comment, error) {
	return m.listCommentsFn(ctx, postID)
}

func (m *mockPostService) DeleteComment(ctx context.Context, userID, commentID string) error {
	return m.deleteCommentFn(ctx, userID, commentID)
}

// newRequestWithParams はchiのURLパラメータと認証コンテキストを付与したリクエストを作る。
// userIDが空文字列の場合は未認証リクエストになる。
func newRequestWithParams(method, target, userID, body string, params map[string]string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))

	ctx := req.Context()
	if userID != "" {
		ctx = middleware.ContextWithUserID(ctx, userID)
	}

	routeCtx := chi.NewRouteContext()
	for key, value := range params {
		routeCtx.URLParams.Add(key, value)
	}
	ctx = context.WithValue(ctx, chi.RouteCtxKey, routeCtx)

	return req.WithContext(ctx)
}

// --- テスト ---

func TestCreatePost_Returns201(t *testing.T) {
	svc := &mockPostService{
		createPostFn: func(ctx context.Context, userID, imageURL, caption string) (*model.Post, error) {
			return &model.Post{ID: "p1", UserID: userID, ImageURL: imageURL, Caption: caption, Username: "alice"}, nil
		},
	}
	h := NewPostHandler(svc, nil)

	body := `{"image_url":"https://example.com/a.jpg","caption":"lunch"}`
	req := newRequestWithParams(http.MethodPost, "/api/posts", "user-1", body, nil)
	rec := httptest.NewRecorder()

	h.CreatePost(rec, req)

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rec.Code)
	}

	var resp postResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if resp.ID != "p1" || resp.Username != "alice" {
		t.Errorf("response = %+v", resp)
	}
}

func TestCreatePost_Unauthenticated(t *testing.T) {
	h := NewPostHandler(&mockPostService{}, nil)

	body := `{"image_url":"https://example.com/a.jpg"}`
	req := newRequestWithParams(http.MethodPost, "/api/posts", "", body, nil)
	rec := httptest.NewRecorder()

	h.CreatePost(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestCreatePost_RequiresImageURL(t *testing.T) {
	h := NewPostHandler(&mockPostService{}, nil)

	req := newRequestWithParams(http.MethodPost, "/api/posts", "user-1", `{"caption":"no image"}`, nil)
	rec := httptest.NewRecorder()

	h.CreatePost(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestGetPost_IncludesComments(t *testing.T) {
	svc := &mockPostService{
		getPostFn: func(ctx context.Context, viewerID, postID string) (*model.Post, []model.Comment, error) {
			return &model.Post{ID: postID, CommentCount: 2},
				[]model.Comment{{ID: "c1", Text: "nice"}, {ID: "c2", Text: "cool"}}, nil
		},
	}
	h := NewPostHandler(svc, nil)

	req := newRequestWithParams(http.MethodGet, "/api/posts/p1", "", "", map[string]string{"id": "p1"})
	rec := httptest.NewRecorder()

	h.GetPost(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}

	var resp postDetailResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if len(resp.Comments) != 2 || resp.Comments[0].Text != "nice" {
		t.Errorf("comments = %+v", resp.Comments)
	}
}

func TestGetPost_NotFound(t *testing.T) {
	svc := &mockPostService{
		getPostFn: func(ctx context.Context, viewerID, postID string) (*model.Post, []model.Comment, error) {
			return nil, nil, model.NewPostNotFoundError(postID)
		},
	}
	h := NewPostHandler(svc, nil)

	req := newRequestWithParams(http.MethodGet, "/api/posts/missing", "", "", map[string]string{"id": "missing"})
	rec := httptest.NewRecorder()

	h.GetPost(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestDeletePost_Returns204(t *testing.T) {
	var gotUserID, gotPostID string
	svc := &mockPostService{
		deletePostFn: func(ctx context.Context, userID, postID string) error {
			gotUserID, gotPostID = userID, postID
			return nil
		},
	}
	metrics := &countingPostMetrics{}
	h := NewPostHandler(svc, metrics)

	req := newRequestWithParams(http.MethodDelete, "/api/posts/p1", "user-1", "", map[string]string{"id": "p1"})
	rec := httptest.NewRecorder()

	h.DeletePost(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if gotUserID != "user-1" || gotPostID != "p1" {
		t.Errorf("service called with (%q, %q)", gotUserID, gotPostID)
	}
	if metrics.deleted != 1 {
		t.Errorf("deleted metric = %d, want 1", metrics.deleted)
	}
}

func TestDeletePost_ForbiddenFor403(t *testing.T) {
	svc := &mockPostService{
		deletePostFn: func(ctx context.Context, userID, postID string) error {
			return model.NewForbiddenError("他のユーザーの投稿は削除できません")
		},
	}
	h := NewPostHandler(svc, nil)

	req := newRequestWithParams(http.MethodDelete, "/api/posts/p1", "intruder", "", map[string]string{"id": "p1"})
	rec := httptest.NewRecorder()

	h.DeletePost(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestGetFeed_PassesPagingAndRequiresAuth(t *testing.T) {
	var gotPage, gotLimit int
	svc := &mockPostService{
		getFeedFn: func(ctx context.Context, viewerID string, page, limit int) (*model.PostPage, error) {
			gotPage, gotLimit = page, limit
			return &model.PostPage{Page: page, Limit: limit, HasNext: true}, nil
		},
	}
	h := NewPostHandler(svc, nil)

	req := newRequestWithParams(http.MethodGet, "/api/posts/feed?page=2&limit=10", "user-1", "", nil)
	rec := httptest.NewRecorder()

	h.GetFeed(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if gotPage != 2 || gotLimit != 10 {
		t.Errorf("paging = (%d, %d), want (2, 10)", gotPage, gotLimit)
	}

	var resp postPageResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if !resp.HasNext {
		t.Error("has_next = false, want true")
	}

	// 未認証は401
	unauthReq := newRequestWithParams(http.MethodGet, "/api/posts/feed", "", "", nil)
	unauthRec := httptest.NewRecorder()
	h.GetFeed(unauthRec, unauthReq)
	if unauthRec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want 401", unauthRec.Code)
	}
}

func TestLike_ReturnsCountAndLikedState(t *testing.T) {
	svc := &mockPostService{
		likeFn: func(ctx context.Context, userID, postID string) (int, error) {
			return 6, nil
		},
	}
	metrics := &countingPostMetrics{}
	h := NewPostHandler(svc, metrics)

	req := newRequestWithParams(http.MethodPost, "/api/posts/p1/like", "user-1", "", map[string]string{"id": "p1"})
	rec := httptest.NewRecorder()

	h.Like(rec, req)

	var resp likeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if resp.LikeCount != 6 || !resp.IsLiked {
		t.Errorf("response = %+v", resp)
	}
	if metrics.likeActions["like"] != 1 {
		t.Errorf("like metric = %d, want 1", metrics.likeActions["like"])
	}
}

func TestLike_AlreadyLikedIs400(t *testing.T) {
	svc := &mockPostService{
		likeFn: func(ctx context.Context, userID, postID string) (int, error) {
			return 0, model.NewAlreadyLikedError()
		},
	}
	h := NewPostHandler(svc, nil)

	req := newRequestWithParams(http.MethodPost, "/api/posts/p1/like", "user-1", "", map[string]string{"id": "p1"})
	rec := httptest.NewRecorder()

	h.Like(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestUnlike_ReturnsUnlikedState(t *testing.T) {
	svc := &mockPostService{
		unlikeFn: func(ctx context.Context, userID, postID string) (int, error) {
			return 5, nil
		},
	}
	h := NewPostHandler(svc, nil)

	req := newRequestWithParams(http.MethodDelete, "/api/posts/p1/like", "user-1", "", map[string]string{"id": "p1"})
	rec := httptest.NewRecorder()

	h.Unlike(rec, req)

	var resp likeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if resp.LikeCount != 5 || resp.IsLiked {
		t.Errorf("response = %+v", resp)
	}
}

func TestAddComment_Returns201(t *testing.T) {
	svc := &mockPostService{
		addCommentFn: func(ctx context.Context, userID, postID, text string) (*model.Comment, error) {
			return &model.Comment{ID: "c1", PostID: postID, UserID: userID, Text: text}, nil
		},
	}
	h := NewPostHandler(svc, nil)

	req := newRequestWithParams(http.MethodPost, "/api/posts/p1/comments", "user-1", `{"text":"nice!"}`, map[string]string{"id": "p1"})
	rec := httptest.NewRecorder()

	h.AddComment(rec, req)

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rec.Code)
	}

	var resp commentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if resp.Text != "nice!" || resp.PostID != "p1" {
		t.Errorf("response = %+v", resp)
	}
}

func TestDeleteComment_Returns204(t *testing.T) {
	svc := &mockPostService{
		deleteCommentFn: func(ctx context.Context, userID, commentID string) error {
			return nil
		},
	}
	h := NewPostHandler(svc, nil)

	req := newRequestWithParams(http.MethodDelete, "/api/comments/c1", "user-1", "", map[string]string{"id": "c1"})
	rec := httptest.NewRecorder()

	h.DeleteComment(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
}

// countingPostMetrics はPostMetricsのテスト実装。
type countingPostMetrics struct {
	created     int
	deleted     int
	comments    int
	likeActions map[string]int
}

func (m *countingPostMetrics) RecordPostCreated() { m.created++ }
func (m *countingPostMetrics) RecordPostDeleted() { m.deleted++ }
func (m *countingPostMetrics) RecordLikeToggled(action string) {
	if m.likeActions == nil {
		m.likeActions = make(map[string]int)
	}
	m.likeActions[action]++
}
func (m *countingPostMetrics) RecordCommentAdded() { m.comments++ }
