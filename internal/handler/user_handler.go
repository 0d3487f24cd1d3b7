package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/minigram/internal/middleware"
	"github.com/hitoshi/minigram/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// GetProfile はユーザープロフィールと最近の投稿を返す。viewerIDは未認証の場合空文字列。
	GetProfile(ctx context.Context, viewerID, username string) (*model.Profile, []model.Post, error)
	// Follow はフォローを登録し、最新のフォロワー数を返す。
	Follow(ctx context.Context, followerID, targetID string) (int, error)
	// Unfollow はフォローを解除し、最新のフォロワー数を返す。
	Unfollow(ctx context.Context, followerID, targetID string) (int, error)
	// ListFollowers はユーザーのフォロワー一覧を返す。
	ListFollowers(ctx context.Context, userID string) ([]model.User, error)
	// ListFollowing はユーザーのフォロー中一覧を返す。
	ListFollowing(ctx context.Context, userID string) ([]model.User, error)
	// UpdateProfilePic はプロフィール画像URLを更新する。
	UpdateProfilePic(ctx context.Context, userID, profilePicURL string) (*model.User, error)
}

// UserMetrics はユーザー関連のメトリクス記録インターフェース。
type UserMetrics interface {
	RecordFollowToggled(action string)
}

// UserHandler はプロフィール・フォロー管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
	metrics UserMetrics
}

// NewUserHandler はUserHandlerを生成する。metricsはnil可。
func NewUserHandler(service UserServiceInterface, metrics UserMetrics) *UserHandler {
	return &UserHandler{
		service: service,
		metrics: metrics,
	}
}

// --- リクエスト・レスポンス型 ---

// profileResponse はプロフィールのAPIレスポンス。
type profileResponse struct {
	userResponse
	FollowersCount int            `json:"followers_count"`
	FollowingCount int            `json:"following_count"`
	IsFollowing    bool           `json:"is_following"`
	IsOwnProfile   bool           `json:"is_own_profile"`
	Posts          []postResponse `json:"posts"`
}

// followResponse はフォロー・フォロー解除のAPIレスポンス。
type followResponse struct {
	FollowersCount int  `json:"followers_count"`
	IsFollowing    bool `json:"is_following"`
}

// updateProfilePicRequest はプロフィール画像更新リクエストのボディ。
type updateProfilePicRequest struct {
	ProfilePicURL string `json:"profile_pic_url"`
}

// GetProfile はユーザープロフィールを取得する。
// GET /api/users/:username
// 未認証でも閲覧できる。is_followingは閲覧者視点で計算される。
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	viewerID := middleware.OptionalUserIDFromContext(r.Context())
	username := chi.URLParam(r, "username")

	profile, posts, err := h.service.GetProfile(r.Context(), viewerID, username)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := profileResponse{
		userResponse:   toUserResponse(&profile.User),
		FollowersCount: profile.FollowersCount,
		FollowingCount: profile.FollowingCount,
		IsFollowing:    profile.IsFollowing,
		IsOwnProfile:   profile.IsOwnProfile,
		Posts:          make([]postResponse, len(posts)),
	}
	for i := range posts {
		resp.Posts[i] = toPostResponse(&posts[i])
	}

	writeJSON(w, http.StatusOK, resp)
}

// Follow はフォロー登録を処理する。
// POST /api/users/follow/:userID
func (h *UserHandler) Follow(w http.ResponseWriter, r *http.Request) {
	followerID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthenticated(w)
		return
	}

	targetID := chi.URLParam(r, "userID")

	count, err := h.service.Follow(r.Context(), followerID, targetID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordFollowToggled("follow")
	}

	writeJSON(w, http.StatusOK, followResponse{FollowersCount: count, IsFollowing: true})
}

// Unfollow はフォロー解除を処理する。
// DELETE /api/users/unfollow/:userID
func (h *UserHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	followerID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthenticated(w)
		return
	}

	targetID := chi.URLParam(r, "userID")

	count, err := h.service.Unfollow(r.Context(), followerID, targetID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordFollowToggled("unfollow")
	}

	writeJSON(w, http.StatusOK, followResponse{FollowersCount: count, IsFollowing: false})
}

// ListFollowers はユーザーのフォロワー一覧を取得する。
// GET /api/users/:userID/followers
func (h *UserHandler) ListFollowers(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	users, err := h.service.ListFollowers(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponses(users))
}

// ListFollowing はユーザーのフォロー中一覧を取得する。
// GET /api/users/:userID/following
func (h *UserHandler) ListFollowing(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	users, err := h.service.ListFollowing(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponses(users))
}

// UpdateProfilePic はプロフィール画像URLを更新する。
// PUT /api/users/me/profile-pic
func (h *UserHandler) UpdateProfilePic(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthenticated(w)
		return
	}

	var req updateProfilePicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidJSON(w)
		return
	}

	user, err := h.service.UpdateProfilePic(r.Context(), userID, req.ProfilePicURL)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// toUserResponses はmodel.UserのスライスをAPIレスポンスに変換する。
func toUserResponses(users []model.User) []userResponse {
	resp := make([]userResponse, len(users))
	for i := range users {
		resp[i] = toUserResponse(&users[i])
	}
	return resp
}
