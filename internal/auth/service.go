// Package auth はユーザー登録・ログイン・トークン管理を提供する。
package auth

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/minigram/internal/model"
	"github.com/hitoshi/minigram/internal/repository"
)

// minPasswordLength はパスワードの最低文字数。
const minPasswordLength = 6

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo repository.UserRepository
	tokens   *TokenManager
}

// NewService はServiceを生成する。
func NewService(userRepo repository.UserRepository, tokens *TokenManager) *Service {
	return &Service{
		userRepo: userRepo,
		tokens:   tokens,
	}
}

// SignupInput はユーザー登録の入力。
type SignupInput struct {
	Username      string
	Email         string
	Password      string
	ProfilePicURL string
}

// LoginResult はログイン成功時の結果。
type LoginResult struct {
	Token string
	User  *model.User
}

// Signup は新規ユーザーを登録する。
// ユーザー名・メールアドレスの重複とパスワード長を検証し、
// bcryptでハッシュ化したパスワードを保存する。
// 登録のみを行い、セッション（トークン）は発行しない。ログインは別途必要。
func (s *Service) Signup(ctx context.Context, input SignupInput) (*model.User, error) {
	username := strings.TrimSpace(input.Username)
	email := strings.ToLower(strings.TrimSpace(input.Email))

	if username == "" || email == "" || input.Password == "" {
		return nil, model.NewInvalidRequestError("ユーザー名・メールアドレス・パスワードは必須です")
	}
	if len(input.Password) < minPasswordLength {
		return nil, model.NewWeakPasswordError()
	}

	// 重複チェック
	existing, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, model.NewDuplicateUsernameError(username)
	}

	existing, err = s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, model.NewDuplicateEmailError()
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	profilePicURL := input.ProfilePicURL
	if profilePicURL == "" {
		profilePicURL = model.DefaultProfilePicURL
	}

	user := &model.User{
		ID:            uuid.New().String(),
		Username:      username,
		Email:         email,
		PasswordHash:  string(hashed),
		ProfilePicURL: profilePicURL,
		CreatedAt:     time.Now(),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	slog.Info("user signed up",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)

	return user, nil
}

// Login はユーザー名またはメールアドレスとパスワードで認証し、トークンを発行する。
// 識別子が未登録の場合とパスワード不一致の場合は同じエラーを返す
// （どちらが誤っているかを漏らさない）。
func (s *Service) Login(ctx context.Context, login, password string) (*LoginResult, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, model.NewInvalidRequestError("ユーザー名とパスワードは必須です")
	}

	user, err := s.userRepo.FindByLogin(ctx, login)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, model.NewInvalidCredentialsError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, model.NewInvalidCredentialsError()
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}

	slog.Info("user logged in", slog.String("user_id", user.ID))

	return &LoginResult{Token: token, User: user}, nil
}

// VerifyToken はベアラートークンを検証し、対応するユーザーIDを返す。
// 認証ミドルウェアから使用する。
func (s *Service) VerifyToken(tokenStr string) (string, error) {
	return s.tokens.Verify(tokenStr)
}
