// Package user はプロフィールとフォロー関係のドメインサービスを提供する。
package user

import (
	"context"
	"log/slog"

	"github.com/hitoshi/minigram/internal/model"
	"github.com/hitoshi/minigram/internal/repository"
	"github.com/hitoshi/minigram/internal/security"
)

// profilePostsLimit はプロフィール表示に含める直近投稿の最大件数。
const profilePostsLimit = 50

// Service はユーザーに関するビジネスロジックを提供する。
type Service struct {
	userRepo   repository.UserRepository
	followRepo repository.FollowRepository
	postRepo   repository.PostRepository
	imageGuard security.ImageURLGuardService
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	followRepo repository.FollowRepository,
	postRepo repository.PostRepository,
	imageGuard security.ImageURLGuardService,
) *Service {
	return &Service{
		userRepo:   userRepo,
		followRepo: followRepo,
		postRepo:   postRepo,
		imageGuard: imageGuard,
	}
}

// GetProfile はユーザープロフィールを直近投稿付きで返す。
// viewerIDが空の場合（未認証）、IsFollowing・IsOwnProfileは常にfalseになる。
func (s *Service) GetProfile(ctx context.Context, viewerID, username string) (*model.Profile, []model.Post, error) {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, model.NewUserNotFoundError()
	}

	followersCount, err := s.followRepo.CountFollowers(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	followingCount, err := s.followRepo.CountFollowing(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	isFollowing := false
	if viewerID != "" && viewerID != user.ID {
		isFollowing, err = s.followRepo.Exists(ctx, viewerID, user.ID)
		if err != nil {
			return nil, nil, err
		}
	}

	posts, _, err := s.postRepo.ListByUser(ctx, user.ID, viewerID, 1, profilePostsLimit)
	if err != nil {
		return nil, nil, err
	}

	profile := &model.Profile{
		User:           *user,
		FollowersCount: followersCount,
		FollowingCount: followingCount,
		IsFollowing:    isFollowing,
		IsOwnProfile:   viewerID == user.ID,
	}
	// パスワードハッシュはプロフィールには含めない
	profile.PasswordHash = ""

	return profile, posts, nil
}

// Follow はfollowerIDがtargetIDをフォローする。
// 自己フォローと重複フォローはエラーになる。
// 成功時は対象ユーザーの最新フォロワー数を返す。
func (s *Service) Follow(ctx context.Context, followerID, targetID string) (int, error) {
	target, err := s.userRepo.FindByID(ctx, targetID)
	if err != nil {
		return 0, err
	}
	if target == nil {
		return 0, model.NewUserNotFoundError()
	}

	if followerID == targetID {
		return 0, model.NewSelfFollowError()
	}

	following, err := s.followRepo.Exists(ctx, followerID, targetID)
	if err != nil {
		return 0, err
	}
	if following {
		return 0, model.NewAlreadyFollowingError()
	}

	if err := s.followRepo.Create(ctx, followerID, targetID); err != nil {
		return 0, err
	}

	slog.Info("user followed",
		slog.String("follower_id", followerID),
		slog.String("followed_id", targetID),
	)

	return s.followRepo.CountFollowers(ctx, targetID)
}

// Unfollow はfollowerIDがtargetIDのフォローを解除する。
// フォローしていない場合はエラーになる。
// 成功時は対象ユーザーの最新フォロワー数を返す。
func (s *Service) Unfollow(ctx context.Context, followerID, targetID string) (int, error) {
	target, err := s.userRepo.FindByID(ctx, targetID)
	if err != nil {
		return 0, err
	}
	if target == nil {
		return 0, model.NewUserNotFoundError()
	}

	following, err := s.followRepo.Exists(ctx, followerID, targetID)
	if err != nil {
		return 0, err
	}
	if !following {
		return 0, model.NewNotFollowingError()
	}

	if err := s.followRepo.Delete(ctx, followerID, targetID); err != nil {
		return 0, err
	}

	return s.followRepo.CountFollowers(ctx, targetID)
}

// ListFollowers は指定ユーザーのフォロワー一覧を返す。
func (s *Service) ListFollowers(ctx context.Context, userID string) ([]model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return s.followRepo.ListFollowers(ctx, userID)
}

// ListFollowing は指定ユーザーがフォローしているユーザー一覧を返す。
func (s *Service) ListFollowing(ctx context.Context, userID string) ([]model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return s.followRepo.ListFollowing(ctx, userID)
}

// UpdateProfilePic はユーザーのプロフィール画像URLを更新し、更新後のユーザーを返す。
func (s *Service) UpdateProfilePic(ctx context.Context, userID, profilePicURL string) (*model.User, error) {
	if err := s.imageGuard.ValidateURL(profilePicURL); err != nil {
		return nil, model.NewInvalidImageURLError(err.Error())
	}

	if err := s.userRepo.UpdateProfilePic(ctx, userID, profilePicURL); err != nil {
		return nil, err
	}

	return s.userRepo.FindByID(ctx, userID)
}
