package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/minigram/internal/auth"
	"github.com/hitoshi/minigram/internal/client"
	"github.com/hitoshi/minigram/internal/model"
)

// --- モック ---

type mockAuthAPI struct {
	loginFn            func(ctx context.Context, login, password string) (*client.LoginResult, error)
	signupFn           func(ctx context.Context, params client.SignupParams) (*model.User, error)
	updateProfilePicFn func(ctx context.Context, profilePicURL string) (*model.User, error)

	token       string
	tokenSets   int
	tokenClears int
}

func (m *mockAuthAPI) Login(ctx context.Context, login, password string) (*client.LoginResult, error) {
	return m.loginFn(ctx, login, password)
}

func (m *mockAuthAPI) Signup(ctx context.Context, params client.SignupParams) (*model.User, error) {
	return m.signupFn(ctx, params)
}

func (m *mockAuthAPI) UpdateProfilePic(ctx context.Context, profilePicURL string) (*model.User, error) {
	return m.updateProfilePicFn(ctx, profilePicURL)
}

func (m *mockAuthAPI) SetToken(token string) {
	m.token = token
	m.tokenSets++
}

func (m *mockAuthAPI) ClearToken() {
	m.token = ""
	m.tokenClears++
}

// issueToken はテスト用のJWTを発行する。expiryが負の場合は期限切れトークンになる。
func issueToken(t *testing.T, userID string, expiry time.Duration) string {
	t.Helper()
	token, err := auth.NewTokenManager("test-secret", expiry).Issue(userID)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	return token
}

// --- テスト ---

func TestSessionStore_Restore_ValidToken_RestoresSession(t *testing.T) {
	storage := NewMemoryStorage()
	storage.Save(&StoredSession{
		Token:    issueToken(t, "user-1", 1*time.Hour),
		UserID:   "user-1",
		Username: "alice",
	})

	api := &mockAuthAPI{}
	sessions := NewSessionStore(api, storage)

	restored, err := sessions.Restore()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !restored {
		t.Fatal("expected session to be restored")
	}

	sess, ok := sessions.Current()
	if !ok {
		t.Fatal("expected current session")
	}
	if sess.User.ID != "user-1" || sess.User.Username != "alice" {
		t.Errorf("user = %+v", sess.User)
	}
	if api.tokenSets != 1 {
		t.Errorf("token should be set on API client, sets = %d", api.tokenSets)
	}
}

func TestSessionStore_Restore_ExpiredToken_NeverRestored(t *testing.T) {
	storage := NewMemoryStorage()
	storage.Save(&StoredSession{
		Token:  issueToken(t, "user-1", -1*time.Hour),
		UserID: "user-1",
	})

	sessions := NewSessionStore(&mockAuthAPI{}, storage)

	restored, err := sessions.Restore()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if restored {
		t.Fatal("expired session must never be restored")
	}
	if sessions.Authenticated() {
		t.Error("expected unauthenticated state")
	}

	// 期限切れの保存データは破棄される
	stored, _ := storage.Load()
	if stored != nil {
		t.Error("expired stored session should be cleared")
	}
}

func TestSessionStore_Restore_MalformedToken_NeverRestored(t *testing.T) {
	storage := NewMemoryStorage()
	storage.Save(&StoredSession{Token: "not-a-jwt", UserID: "user-1"})

	sessions := NewSessionStore(&mockAuthAPI{}, storage)

	restored, err := sessions.Restore()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if restored {
		t.Fatal("malformed token must never be restored")
	}
}

func TestSessionStore_Restore_NoStoredSession_ReturnsFalse(t *testing.T) {
	sessions := NewSessionStore(&mockAuthAPI{}, NewMemoryStorage())

	restored, err := sessions.Restore()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if restored {
		t.Error("expected no restoration without stored session")
	}
}

func TestSessionStore_Login_CreatesAndPersistsSession(t *testing.T) {
	token := issueToken(t, "user-1", 1*time.Hour)
	api := &mockAuthAPI{
		loginFn: func(ctx context.Context, login, password string) (*client.LoginResult, error) {
			return &client.LoginResult{
				Token: token,
				User:  model.User{ID: "user-1", Username: "alice"},
			}, nil
		},
	}
	storage := NewMemoryStorage()
	sessions := NewSessionStore(api, storage)

	sess, err := sessions.Login(context.Background(), "alice", "password")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.User.Username != "alice" {
		t.Errorf("username = %q", sess.User.Username)
	}
	if api.token != token {
		t.Error("token should be set on API client")
	}

	stored, _ := storage.Load()
	if stored == nil || stored.Token != token {
		t.Error("session should be persisted")
	}
}

func TestSessionStore_Login_Failure_NoSessionCreated(t *testing.T) {
	api := &mockAuthAPI{
		loginFn: func(ctx context.Context, login, password string) (*client.LoginResult, error) {
			return nil, model.NewInvalidCredentialsError()
		},
	}
	sessions := NewSessionStore(api, NewMemoryStorage())

	_, err := sessions.Login(context.Background(), "alice", "wrong")
	if err == nil {
		t.Fatal("expected error")
	}
	if sessions.Authenticated() {
		t.Error("failed login must not create a session")
	}
}

func TestSessionStore_Signup_DoesNotCreateSession(t *testing.T) {
	api := &mockAuthAPI{
		signupFn: func(ctx context.Context, params client.SignupParams) (*model.User, error) {
			return &model.User{ID: "user-1", Username: params.Username}, nil
		},
	}
	sessions := NewSessionStore(api, NewMemoryStorage())

	user, err := sessions.Signup(context.Background(), client.SignupParams{
		Username: "alice", Email: "alice@example.com", Password: "secret1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Username != "alice" {
		t.Errorf("username = %q", user.Username)
	}
	// 登録は認証済みセッションを作成しない
	if sessions.Authenticated() {
		t.Error("signup must not imply an authenticated session")
	}
	if api.tokenSets != 0 {
		t.Error("signup must not set a token")
	}
}

func TestSessionStore_Logout_ClearsEverything(t *testing.T) {
	token := issueToken(t, "user-1", 1*time.Hour)
	api := &mockAuthAPI{
		loginFn: func(ctx context.Context, login, password string) (*client.LoginResult, error) {
			return &client.LoginResult{Token: token, User: model.User{ID: "user-1"}}, nil
		},
	}
	storage := NewMemoryStorage()
	sessions := NewSessionStore(api, storage)
	sessions.Login(context.Background(), "alice", "password")

	if err := sessions.Logout(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if sessions.Authenticated() {
		t.Error("expected unauthenticated after logout")
	}
	if api.tokenClears != 1 {
		t.Error("token should be cleared on API client")
	}
	if stored, _ := storage.Load(); stored != nil {
		t.Error("stored session should be cleared")
	}
}

func TestSessionStore_Teardown_ClearsSessionAndStorage(t *testing.T) {
	token := issueToken(t, "user-1", 1*time.Hour)
	api := &mockAuthAPI{
		loginFn: func(ctx context.Context, login, password string) (*client.LoginResult, error) {
			return &client.LoginResult{Token: token, User: model.User{ID: "user-1"}}, nil
		},
	}
	storage := NewMemoryStorage()
	sessions := NewSessionStore(api, storage)
	sessions.Login(context.Background(), "alice", "password")

	sessions.Teardown()

	if sessions.Authenticated() {
		t.Error("expected unauthenticated after teardown")
	}
	if stored, _ := storage.Load(); stored != nil {
		t.Error("stored session should be cleared")
	}
}

func TestSessionStore_UpdateProfilePic_RefreshesSnapshot(t *testing.T) {
	token := issueToken(t, "user-1", 1*time.Hour)
	api := &mockAuthAPI{
		loginFn: func(ctx context.Context, login, password string) (*client.LoginResult, error) {
			return &client.LoginResult{
				Token: token,
				User:  model.User{ID: "user-1", Username: "alice", ProfilePicURL: "https://example.com/old.jpg"},
			}, nil
		},
		updateProfilePicFn: func(ctx context.Context, profilePicURL string) (*model.User, error) {
			return &model.User{ID: "user-1", Username: "alice", ProfilePicURL: profilePicURL}, nil
		},
	}
	storage := NewMemoryStorage()
	sessions := NewSessionStore(api, storage)
	sessions.Login(context.Background(), "alice", "password")

	_, err := sessions.UpdateProfilePic(context.Background(), "https://example.com/new.jpg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sess, _ := sessions.Current()
	if sess.User.ProfilePicURL != "https://example.com/new.jpg" {
		t.Errorf("snapshot not refreshed: %q", sess.User.ProfilePicURL)
	}

	stored, _ := storage.Load()
	if stored.ProfilePicURL != "https://example.com/new.jpg" {
		t.Error("refreshed snapshot should be persisted")
	}
}

func TestSessionStore_UpdateProfilePic_Unauthenticated_Refused(t *testing.T) {
	sessions := NewSessionStore(&mockAuthAPI{}, NewMemoryStorage())

	_, err := sessions.UpdateProfilePic(context.Background(), "https://example.com/new.jpg")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeUnauthenticated {
		t.Errorf("expected UNAUTHENTICATED, got %v", err)
	}
}

func TestSessionStore_AdjustFollowingCount_ClampsAtZero(t *testing.T) {
	token := issueToken(t, "user-1", 1*time.Hour)
	api := &mockAuthAPI{
		loginFn: func(ctx context.Context, login, password string) (*client.LoginResult, error) {
			return &client.LoginResult{Token: token, User: model.User{ID: "user-1"}}, nil
		},
	}
	sessions := NewSessionStore(api, NewMemoryStorage())
	sessions.Login(context.Background(), "alice", "password")

	prev := sessions.AdjustFollowingCount(-1)
	if prev != 0 {
		t.Errorf("prev = %d, want 0", prev)
	}

	sess, _ := sessions.Current()
	if sess.FollowingCount != 0 {
		t.Errorf("FollowingCount = %d, want 0 (clamped)", sess.FollowingCount)
	}
}
