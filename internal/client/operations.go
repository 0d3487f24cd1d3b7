package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hitoshi/minigram/internal/model"
)

// --- ワイヤ型 ---

// userPayload はユーザー情報のレスポンスボディ。
type userPayload struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	ProfilePicURL string    `json:"profile_pic_url"`
	CreatedAt     time.Time `json:"created_at"`
}

// postPayload は投稿のレスポンスボディ。
type postPayload struct {
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

// commentPayload はコメントのレスポンスボディ。
type commentPayload struct {
	ID            string    `json:"id"`
	PostID        string    `json:"post_id"`
	UserID        string    `json:"user_id"`
	Username      string    `json:"username"`
	ProfilePicURL string    `json:"profile_pic_url"`
	Text          string    `json:"text"`
	CreatedAt     time.Time `json:"created_at"`
}

// postPagePayload は投稿一覧の1ページ分のレスポンスボディ。
type postPagePayload struct {
	Posts   []postPayload `json:"posts"`
	Page    int           `json:"page"`
	Limit   int           `json:"limit"`
	Total   int           `json:"total"`
	HasNext bool          `json:"has_next"`
}

// postDetailPayload は投稿詳細のレスポンスボディ。
type postDetailPayload struct {
	postPayload
	Comments []commentPayload `json:"comments"`
}

// profilePayload はプロフィールのレスポンスボディ。
type profilePayload struct {
	userPayload
	FollowersCount int           `json:"followers_count"`
	FollowingCount int           `json:"following_count"`
	IsFollowing    bool          `json:"is_following"`
	IsOwnProfile   bool          `json:"is_own_profile"`
	Posts          []postPayload `json:"posts"`
}

// LikeResult はいいね・いいね解除の結果。
type LikeResult struct {
	LikeCount int  `json:"like_count"`
	IsLiked   bool `json:"is_liked"`
}

// FollowResult はフォロー・フォロー解除の結果。
type FollowResult struct {
	FollowersCount int  `json:"followers_count"`
	IsFollowing    bool `json:"is_following"`
}

// LoginResult はログイン成功時の結果。
type LoginResult struct {
	Token string
	User  model.User
}

// SignupParams はユーザー登録の入力。
type SignupParams struct {
	Username      string `json:"username"`
	Email         string `json:"email"`
	Password      string `json:"password"`
	ProfilePicURL string `json:"profile_pic_url,omitempty"`
}

// --- 変換ヘルパー ---

func toUser(p *userPayload) model.User {
	return model.User{
		ID:            p.ID,
		Username:      p.Username,
		Email:         p.Email,
		ProfilePicURL: p.ProfilePicURL,
		CreatedAt:     p.CreatedAt,
	}
}

func toPost(p *postPayload) model.Post {
	return model.Post{
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

func toComment(p *commentPayload) model.Comment {
	return model.Comment{
		ID:            p.ID,
		PostID:        p.PostID,
		UserID:        p.UserID,
		Username:      p.Username,
		ProfilePicURL: p.ProfilePicURL,
		Text:          p.Text,
		CreatedAt:     p.CreatedAt,
	}
}

func toPosts(payloads []postPayload) []model.Post {
	posts := make([]model.Post, len(payloads))
	for i := range payloads {
		posts[i] = toPost(&payloads[i])
	}
	return posts
}

func toComments(payloads []commentPayload) []model.Comment {
	comments := make([]model.Comment, len(payloads))
	for i := range payloads {
		comments[i] = toComment(&payloads[i])
	}
	return comments
}

func toPostPage(p *postPagePayload) *model.PostPage {
	return &model.PostPage{
		Posts:   toPosts(p.Posts),
		Page:    p.Page,
		Limit:   p.Limit,
		Total:   p.Total,
		HasNext: p.HasNext,
	}
}

// pagingQuery はページネーションのクエリ文字列を構築する。
func pagingQuery(page, limit int) string {
	q := url.Values{}
	q.Set("page", fmt.Sprintf("%d", page))
	q.Set("limit", fmt.Sprintf("%d", limit))
	return "?" + q.Encode()
}

// --- 認証 ---

// Login はユーザー名またはメールアドレスとパスワードで認証する。
// 成功時は取得したトークンをクライアントに設定しない（呼び出し元が管理する）。
func (c *Client) Login(ctx context.Context, login, password string) (*LoginResult, error) {
	req := map[string]string{"username": login, "password": password}
	var resp struct {
		Token string      `json:"token"`
		User  userPayload `json:"user"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", req, &resp); err != nil {
		return nil, err
	}
	return &LoginResult{Token: resp.Token, User: toUser(&resp.User)}, nil
}

// Signup は新規ユーザーを登録する。認証済みセッションは作成されない。
func (c *Client) Signup(ctx context.Context, params SignupParams) (*model.User, error) {
	var resp userPayload
	if err := c.do(ctx, http.MethodPost, "/api/auth/signup", params, &resp); err != nil {
		return nil, err
	}
	user := toUser(&resp)
	return &user, nil
}

// --- 投稿 ---

// GetFeed はフォロー中ユーザーと自分の投稿の1ページ分を取得する。
func (c *Client) GetFeed(ctx context.Context, page, limit int) (*model.PostPage, error) {
	var resp postPagePayload
	if err := c.do(ctx, http.MethodGet, "/api/posts/feed"+pagingQuery(page, limit), nil, &resp); err != nil {
		return nil, err
	}
	return toPostPage(&resp), nil
}

// GetUserPosts は指定ユーザーの投稿の1ページ分を取得する。
func (c *Client) GetUserPosts(ctx context.Context, userID string, page, limit int) (*model.PostPage, error) {
	var resp postPagePayload
	if err := c.do(ctx, http.MethodGet, "/api/posts/user/"+url.PathEscape(userID)+pagingQuery(page, limit), nil, &resp); err != nil {
		return nil, err
	}
	return toPostPage(&resp), nil
}

// GetPost は投稿詳細をコメント一覧付きで取得する。
func (c *Client) GetPost(ctx context.Context, postID string) (*model.Post, []model.Comment, error) {
	var resp postDetailPayload
	if err := c.do(ctx, http.MethodGet, "/api/posts/"+url.PathEscape(postID), nil, &resp); err != nil {
		return nil, nil, err
	}
	post := toPost(&resp.postPayload)
	return &post, toComments(resp.Comments), nil
}

// CreatePost は新規投稿を作成する。
func (c *Client) CreatePost(ctx context.Context, imageURL, caption string) (*model.Post, error) {
	req := map[string]string{"image_url": imageURL, "caption": caption}
	var resp postPayload
	if err := c.do(ctx, http.MethodPost, "/api/posts", req, &resp); err != nil {
		return nil, err
	}
	post := toPost(&resp)
	return &post, nil
}

// DeletePost は投稿を削除する。所有者のみ実行できる。
func (c *Client) DeletePost(ctx context.Context, postID string) error {
	return c.do(ctx, http.MethodDelete, "/api/posts/"+url.PathEscape(postID), nil, nil)
}

// --- いいね ---

// Like は投稿にいいねを登録する。
func (c *Client) Like(ctx context.Context, postID string) (*LikeResult, error) {
	var resp LikeResult
	if err := c.do(ctx, http.MethodPost, "/api/posts/"+url.PathEscape(postID)+"/like", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Unlike は投稿のいいねを解除する。
func (c *Client) Unlike(ctx context.Context, postID string) (*LikeResult, error) {
	var resp LikeResult
	if err := c.do(ctx, http.MethodDelete, "/api/posts/"+url.PathEscape(postID)+"/like", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- コメント ---

// AddComment は投稿にコメントを追加する。
func (c *Client) AddComment(ctx context.Context, postID, text string) (*model.Comment, error) {
	req := map[string]string{"text": text}
	var resp commentPayload
	if err := c.do(ctx, http.MethodPost, "/api/posts/"+url.PathEscape(postID)+"/comments", req, &resp); err != nil {
		return nil, err
	}
	comment := toComment(&resp)
	return &comment, nil
}

// GetComments は投稿のコメント一覧を古い順で取得する。
func (c *Client) GetComments(ctx context.Context, postID string) ([]model.Comment, error) {
	var resp []commentPayload
	if err := c.do(ctx, http.MethodGet, "/api/posts/"+url.PathEscape(postID)+"/comments", nil, &resp); err != nil {
		return nil, err
	}
	return toComments(resp), nil
}

// DeleteComment はコメントを削除する。所有者のみ実行できる。
func (c *Client) DeleteComment(ctx context.Context, commentID string) error {
	return c.do(ctx, http.MethodDelete, "/api/comments/"+url.PathEscape(commentID), nil, nil)
}

// --- フォロー ---

// Follow は指定ユーザーをフォローする。
func (c *Client) Follow(ctx context.Context, userID string) (*FollowResult, error) {
	var resp FollowResult
	if err := c.do(ctx, http.MethodPost, "/api/users/follow/"+url.PathEscape(userID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Unfollow は指定ユーザーのフォローを解除する。
func (c *Client) Unfollow(ctx context.Context, userID string) (*FollowResult, error) {
	var resp FollowResult
	if err := c.do(ctx, http.MethodDelete, "/api/users/unfollow/"+url.PathEscape(userID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- プロフィール ---

// GetProfile はユーザープロフィールと直近の投稿を取得する。
func (c *Client) GetProfile(ctx context.Context, username string) (*model.Profile, []model.Post, error) {
	var resp profilePayload
	if err := c.do(ctx, http.MethodGet, "/api/users/"+url.PathEscape(username), nil, &resp); err != nil {
		return nil, nil, err
	}
	profile := &model.Profile{
		User:           toUser(&resp.userPayload),
		FollowersCount: resp.FollowersCount,
		FollowingCount: resp.FollowingCount,
		IsFollowing:    resp.IsFollowing,
		IsOwnProfile:   resp.IsOwnProfile,
	}
	return profile, toPosts(resp.Posts), nil
}

// UpdateProfilePic はログイン中ユーザーのプロフィール画像URLを更新する。
func (c *Client) UpdateProfilePic(ctx context.Context, profilePicURL string) (*model.User, error) {
	req := map[string]string{"profile_pic_url": profilePicURL}
	var resp userPayload
	if err := c.do(ctx, http.MethodPut, "/api/users/me/profile-pic", req, &resp); err != nil {
		return nil, err
	}
	user := toUser(&resp)
	return &user, nil
}
