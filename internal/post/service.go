// Package post は投稿・いいね・コメントのドメインサービスを提供する。
package post

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/minigram/internal/model"
	"github.com/hitoshi/minigram/internal/repository"
	"github.com/hitoshi/minigram/internal/security"
)

// ServiceConfig は投稿サービスの設定。
type ServiceConfig struct {
	DefaultPageSize   int  // page/limit未指定時の1ページ件数
	MaxPageSize       int  // limitの上限（これを超える指定は切り詰める）
	ImageProbeEnabled bool // 投稿作成時に画像URLの到達性チェックを行うか
}

// Service は投稿に関するビジネスロジックを提供する。
type Service struct {
	postRepo    repository.PostRepository
	commentRepo repository.CommentRepository
	likeRepo    repository.LikeRepository
	sanitizer   security.TextSanitizerService
	imageGuard  security.ImageURLGuardService
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	postRepo repository.PostRepository,
	commentRepo repository.CommentRepository,
	likeRepo repository.LikeRepository,
	sanitizer security.TextSanitizerService,
	imageGuard security.ImageURLGuardService,
	config ServiceConfig,
) *Service {
	return &Service{
		postRepo:    postRepo,
		commentRepo: commentRepo,
		likeRepo:    likeRepo,
		sanitizer:   sanitizer,
		imageGuard:  imageGuard,
		config:      config,
	}
}

// CreatePost は新規投稿を作成する。
// 画像URLを検証し、キャプションをサニタイズしてから保存する。
// 戻り値は投稿者情報を非正規化した状態の投稿。
func (s *Service) CreatePost(ctx context.Context, userID, imageURL, caption string) (*model.Post, error) {
	if imageURL == "" {
		return nil, model.NewInvalidRequestError("画像URLは必須です")
	}

	// 1. 画像URLの静的検証
	if err := s.imageGuard.ValidateURL(imageURL); err != nil {
		return nil, model.NewInvalidImageURLError(err.Error())
	}

	// 2. 到達性チェック（設定で無効化可能）
	if s.config.ImageProbeEnabled {
		if err := s.imageGuard.Probe(ctx, imageURL); err != nil {
			return nil, model.NewInvalidImageURLError(err.Error())
		}
	}

	post := &model.Post{
		ID:        uuid.New().String(),
		UserID:    userID,
		ImageURL:  imageURL,
		Caption:   s.sanitizer.Sanitize(caption),
		CreatedAt: time.Now(),
	}

	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}

	slog.Info("post created",
		slog.String("post_id", post.ID),
		slog.String("user_id", userID),
	)

	// 非正規化フィールド（username等）を含む状態で返す
	return s.postRepo.FindByID(ctx, post.ID, userID)
}

// GetPost は投稿詳細をコメント一覧付きで返す。
// viewerIDが空の場合、is_likedは常にfalseになる。
// 投稿が見つからない場合はPOST_NOT_FOUNDエラーを返す。
func (s *Service) GetPost(ctx context.Context, viewerID, postID string) (*model.Post, []model.Comment, error) {
	post, err := s.postRepo.FindByID(ctx, postID, viewerID)
	if err != nil {
		return nil, nil, err
	}
	if post == nil {
		return nil, nil, model.NewPostNotFoundError(postID)
	}

	comments, err := s.commentRepo.ListByPost(ctx, postID)
	if err != nil {
		return nil, nil, err
	}

	return post, comments, nil
}

// DeletePost は投稿を削除する。投稿者本人のみ削除できる。
func (s *Service) DeletePost(ctx context.Context, userID, postID string) error {
	post, err := s.postRepo.FindByID(ctx, postID, userID)
	if err != nil {
		return err
	}
	if post == nil {
		return model.NewPostNotFoundError(postID)
	}
	if post.UserID != userID {
		return model.NewForbiddenError("他のユーザーの投稿は削除できません")
	}

	if err := s.postRepo.DeleteByID(ctx, postID); err != nil {
		return err
	}

	slog.Info("post deleted",
		slog.String("post_id", postID),
		slog.String("user_id", userID),
	)
	return nil
}

// ListUserPosts は指定ユーザーの投稿一覧をページネーション付きで返す。
// HasNextはサーバー側で総件数から計算する。
func (s *Service) ListUserPosts(ctx context.Context, userID, viewerID string, page, limit int) (*model.PostPage, error) {
	page, limit = s.normalizePaging(page, limit)

	posts, total, err := s.postRepo.ListByUser(ctx, userID, viewerID, page, limit)
	if err != nil {
		return nil, err
	}

	return s.buildPage(posts, page, limit, total), nil
}

// GetFeed は閲覧者のフィード（フォロー中ユーザー + 自分の投稿）を
// ページネーション付きで返す。認証必須。
func (s *Service) GetFeed(ctx context.Context, viewerID string, page, limit int) (*model.PostPage, error) {
	page, limit = s.normalizePaging(page, limit)

	posts, total, err := s.postRepo.ListFeed(ctx, viewerID, page, limit)
	if err != nil {
		return nil, err
	}

	return s.buildPage(posts, page, limit, total), nil
}

// Like は投稿にいいねを付ける。
// いいね済みの場合はALREADY_LIKEDエラーを返す。
// 成功時は最新のいいね数を返す。
func (s *Service) Like(ctx context.Context, userID, postID string) (int, error) {
	post, err := s.postRepo.FindByID(ctx, postID, userID)
	if err != nil {
		return 0, err
	}
	if post == nil {
		return 0, model.NewPostNotFoundError(postID)
	}

	liked, err := s.likeRepo.Exists(ctx, userID, postID)
	if err != nil {
		return 0, err
	}
	if liked {
		return 0, model.NewAlreadyLikedError()
	}

	if err := s.likeRepo.Create(ctx, userID, postID); err != nil {
		return 0, err
	}

	return s.likeRepo.CountByPost(ctx, postID)
}

// Unlike は投稿のいいねを取り消す。
// いいねしていない場合はNOT_LIKEDエラーを返す。
// 成功時は最新のいいね数を返す。
func (s *Service) Unlike(ctx context.Context, userID, postID string) (int, error) {
	post, err := s.postRepo.FindByID(ctx, postID, userID)
	if err != nil {
		return 0, err
	}
	if post == nil {
		return 0, model.NewPostNotFoundError(postID)
	}

	liked, err := s.likeRepo.Exists(ctx, userID, postID)
	if err != nil {
		return 0, err
	}
	if !liked {
		return 0, model.NewNotLikedError()
	}

	if err := s.likeRepo.Delete(ctx, userID, postID); err != nil {
		return 0, err
	}

	return s.likeRepo.CountByPost(ctx, postID)
}

// AddComment は投稿にコメントを追加する。
// 本文はサニタイズされ、空になった場合はエラーを返す。
func (s *Service) AddComment(ctx context.Context, userID, postID, text string) (*model.Comment, error) {
	body := s.sanitizer.Sanitize(text)
	if body == "" {
		return nil, model.NewInvalidRequestError("コメント本文は必須です")
	}

	post, err := s.postRepo.FindByID(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, model.NewPostNotFoundError(postID)
	}

	comment := &model.Comment{
		ID:        uuid.New().String(),
		PostID:    postID,
		UserID:    userID,
		Text:      body,
		CreatedAt: time.Now(),
	}

	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}

	// 非正規化フィールド（username等）を含む状態で返す
	return s.commentRepo.FindByID(ctx, comment.ID)
}

// ListComments は投稿のコメント一覧をcreated_at昇順で返す。
func (s *Service) ListComments(ctx context.Context, postID string) ([]model.Comment, error) {
	post, err := s.postRepo.FindByID(ctx, postID, "")
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, model.NewPostNotFoundError(postID)
	}

	return s.commentRepo.ListByPost(ctx, postID)
}

// DeleteComment はコメントを削除する。コメントの投稿者本人のみ削除できる。
func (s *Service) DeleteComment(ctx context.Context, userID, commentID string) error {
	comment, err := s.commentRepo.FindByID(ctx, commentID)
	if err != nil {
		return err
	}
	if comment == nil {
		return model.NewCommentNotFoundError(commentID)
	}
	if comment.UserID != userID {
		return model.NewForbiddenError("他のユーザーのコメントは削除できません")
	}

	return s.commentRepo.DeleteByID(ctx, commentID)
}

// normalizePaging はページ番号とページサイズを正規化する。
// pageは1以上、limitはデフォルト値と上限の範囲に収める。
func (s *Service) normalizePaging(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = s.config.DefaultPageSize
	}
	if limit > s.config.MaxPageSize {
		limit = s.config.MaxPageSize
	}
	return page, limit
}

// buildPage は取得結果からPostPageを組み立てる。
// HasNextは総件数に対する消化位置から計算する。
func (s *Service) buildPage(posts []model.Post, page, limit, total int) *model.PostPage {
	return &model.PostPage{
		Posts:   posts,
		Page:    page,
		Limit:   limit,
		Total:   total,
		HasNext: page*limit < total,
	}
}
