package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/minigram/internal/middleware"
	"github.com/hitoshi/minigram/internal/model"
)

// PostServiceInterface は投稿ハンドラーが必要とするサービスインターフェース。
type PostServiceInterface interface {
	// CreatePost は画像URLとキャプションから投稿を作成する。
	CreatePost(ctx context.Context, userID, imageURL, caption string) (*model.Post, error)
	// GetPost は投稿詳細とコメント一覧を返す。viewerIDは未認証の場合空文字列。
	GetPost(ctx context.Context, viewerID, postID string) (*model.Post, []model.Comment, error)
	// DeletePost は投稿を削除する。所有者のみ実行できる。
	DeletePost(ctx context.Context, userID, postID string) error
	// ListUserPosts は指定ユーザーの投稿一覧を新しい順で返す。
	ListUserPosts(ctx context.Context, userID, viewerID string, page, limit int) (*model.PostPage, error)
	// GetFeed はフォロー中ユーザーと自分の投稿を新しい順で返す。
	GetFeed(ctx context.Context, viewerID string, page, limit int) (*model.PostPage, error)
	// Like はいいねを登録し、最新のいいね数を返す。
	Like(ctx context.Context, userID, postID string) (int, error)
	// Unlike はいいねを解除し、最新のいいね数を返す。
	Unlike(ctx context.Context, userID, postID string) (int, error)
	// AddComment はコメントを追加する。
	AddComment(ctx context.Context, userID, postID, text string) (*model.Comment, error)
	// ListComments は投稿のコメント一覧を古い順で返す。
	ListComments(ctx context.Context, postID string) ([]model.Comment, error)
	// DeleteComment はコメントを削除する。所有者のみ実行できる。
	DeleteComment(ctx context.Context, userID, commentID string) error
}

// PostMetrics は投稿関連のメトリクス記録インターフェース。
type PostMetrics interface {
	RecordPostCreated()
	RecordPostDeleted()
	RecordLikeToggled(action string)
	RecordCommentAdded()
}

// PostHandler は投稿・いいね・コメント管理のHTTPハンドラー。
type PostHandler struct {
	service PostServiceInterface
	metrics PostMetrics
}

// NewPostHandler はPostHandlerを生成する。metricsはnil可。
func NewPostHandler(service PostServiceInterface, metrics PostMetrics) *PostHandler {
	return &PostHandler{
		service: service,
		metrics: metrics,
	}
}

// --- リクエスト・レスポンス型 ---

// createPostRequest は投稿作成リクエストのボディ。
type createPostRequest struct {
	ImageURL string `json:"image_url"`
	Caption  string `json:"caption"`
}

// addCommentRequest はコメント追加リクエストのボディ。
type addCommentRequest struct {
	Text string `json:"text"`
}

// postResponse は投稿のAPIレスポンス。
// 投稿者のusername・profile_pic_urlを非正規化して含む。
type postResponse struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Username      string    `json:"username"`
	ProfilePicURL string    `json:"profile_pic_url"`
	ImageURL      string    `json:"image_url"`
	Caption       string    `json:"caption"`
	LikeCount     int       `json:"like_count"`
	IsLiked       bool      `json:"is_liked"`
	CommentCount  int       `json:"comment_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// commentResponse はコメントのAPIレスポンス。
type commentResponse struct {
	ID            string    `json:"id"`
	PostID        string    `json:"post_id"`
	UserID        string    `json:"user_id"`
	Username      string    `json:"username"`
	ProfilePicURL string    `json:"profile_pic_url"`
	Text          string    `json:"text"`
	CreatedAt     time.Time `json:"created_at"`
}

// postDetailResponse は投稿詳細のAPIレスポンス。コメント一覧を含む。
type postDetailResponse struct {
	postResponse
	Comments []commentResponse `json:"comments"`
}

// postPageResponse は投稿一覧の1ページ分のAPIレスポンス。
// has_nextはサーバーが計算した次ページの有無。
type postPageResponse struct {
	Posts   []postResponse `json:"posts"`
	Page    int            `json:"page"`
	Limit   int            `json:"limit"`
	Total   int            `json:"total"`
	HasNext bool           `json:"has_next"`
}

// likeResponse はいいね・いいね解除のAPIレスポンス。
type likeResponse struct {
	LikeCount int  `json:"like_count"`
	IsLiked   bool `json:"is_liked"`
}

// toPostResponse はmodel.PostからAPIレスポンスに変換する。
func toPostResponse(p *model.Post) postResponse {
	return postResponse{
		ID:            p.ID,
		UserID:        p.UserID,
		Username:      p.Username,
		ProfilePicURL: p.ProfilePicURL,
		ImageURL:      p.ImageURL,
		Caption:       p.Caption,
		LikeCount:     p.LikeCount,
		IsLiked:       p.IsLiked,
		CommentCount:  p.CommentCount,
		CreatedAt:     p.CreatedAt,
	}
}

// toCommentResponse はmodel.CommentからAPIレスポンスに変換する。
func toCommentResponse(c *model.Comment) commentResponse {
	return commentResponse{
		ID:            c.ID,
		PostID:        c.PostID,
		UserID:        c.UserID,
		Username:      c.Username,
		ProfilePicURL: c.ProfilePicURL,
		Text:          c.Text,
		CreatedAt:     c.CreatedAt,
	}
}

// toPostPageResponse はmodel.PostPageからAPIレスポンスに変換する。
func toPostPageResponse(page *model.PostPage) postPageResponse {
	posts := make([]postResponse, len(page.Posts))
	for i := range page.Posts {
		posts[i] = toPostResponse(&page.Posts[i])
	}
	return postPageResponse{
		Posts:   posts,
		Page:    page.Page,
		Limit:   page.Limit,
		Total:   page.Total,
		HasNext: page.HasNext,
	}
}

// parsePaging はクエリパラメータからpage・limitを取り出す。
// 未指定・不正な値は0を返し、サービス層のデフォルト値に委ねる。
func parsePaging(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return page, limit
}

// --- ハンドラー ---

// CreatePost は投稿作成を処理する。
// POST /api/posts
func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthenticated(w)
		return
	}

	var req createPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidJSON(w)
		return
	}

	if req.ImageURL == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("image_urlは必須です"))
		return
	}

	post, err := h.service.CreatePost(r.Context(), userID, req.ImageURL, req.Caption)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordPostCreated()
	}

	writeJSON(w, http.StatusCreated, toPostResponse(post))
}

// GetPost は投稿詳細を取得する。
// GET /api/posts/:id
// 未認証でも閲覧できる。is_likedは閲覧者視点で計算される。
func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	viewerID := middleware.OptionalUserIDFromContext(r.Context())
	postID := chi.URLParam(r, "id")

	post, comments, err := h.service.GetPost(r.Context(), viewerID, postID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := postDetailResponse{
		postResponse: toPostResponse(post),
		Comments:     make([]commentResponse, len(comments)),
	}
	for i := range comments {
		resp.Comments[i] = toCommentResponse(&comments[i])
	}

	writeJSON(w, http.StatusOK, resp)
}

// DeletePost は投稿削除を処理する。所有者のみ削除できる。
// DELETE /api/posts/:id
func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthenticated(w)
		return
	}

	postID := chi.URLParam(r, "id")

	if err := h.service.DeletePost(r.Context(), userID, postID); err != nil {
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordPostDeleted()
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListUserPosts は指定ユーザーの投稿一覧を取得する。
// GET /api/posts/user/:userID?page=&limit=
func (h *PostHandler) ListUserPosts(w http.ResponseWriter, r *http.Request) {
	viewerID := middleware.OptionalUserIDFromContext(r.Context())
	targetUserID := chi.URLParam(r, "userID")
	page, limit := parsePaging(r)

	result, err := h.service.ListUserPosts(r.Context(), targetUserID, viewerID, page, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPostPageResponse(result))
}

// GetFeed はフォロー中ユーザーと自分の投稿を取得する。
// GET /api/posts/feed?page=&limit=
func (h *PostHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	viewerID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthenticated(w)
		return
	}

	page, limit := parsePaging(r)

	result, err := h.service.GetFeed(r.Context(), viewerID, page, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPostPageResponse(result))
}

// Like はいいね登録を処理する。
// POST /api/posts/:id/like
func (h *PostHandler) Like(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthenticated(w)
		return
	}

	postID := chi.URLParam(r, "id")

	likeCount, err := h.service.Like(r.Context(), userID, postID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordLikeToggled("like")
	}

	writeJSON(w, http.StatusOK, likeResponse{LikeCount: likeCount, IsLiked: true})
}

// Unlike はいいね解除を処理する。
// DELETE /api/posts/:id/like
func (h *PostHandler) Unlike(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthenticated(w)
		return
	}

	postID := chi.URLParam(r, "id")

	likeCount, err := h.service.Unlike(r.Context(), userID, postID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordLikeToggled("unlike")
	}

	writeJSON(w, http.StatusOK, likeResponse{LikeCount: likeCount, IsLiked: false})
}

// AddComment はコメント追加を処理する。
// POST /api/posts/:id/comments
func (h *PostHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthenticated(w)
		return
	}

	postID := chi.URLParam(r, "id")

	var req addCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidJSON(w)
		return
	}

	comment, err := h.service.AddComment(r.Context(), userID, postID, req.Text)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordCommentAdded()
	}

	writeJSON(w, http.StatusCreated, toCommentResponse(comment))
}

// ListComments は投稿のコメント一覧を取得する。
// GET /api/posts/:id/comments
func (h *PostHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "id")

	comments, err := h.service.ListComments(r.Context(), postID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]commentResponse, len(comments))
	for i := range comments {
		resp[i] = toCommentResponse(&comments[i])
	}

	writeJSON(w, http.StatusOK, resp)
}

// DeleteComment はコメント削除を処理する。所有者のみ削除できる。
// DELETE /api/comments/:id
func (h *PostHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthenticated(w)
		return
	}

	commentID := chi.URLParam(r, "id")

	if err := h.service.DeleteComment(r.Context(), userID, commentID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
