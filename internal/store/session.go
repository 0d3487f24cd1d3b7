package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hitoshi/minigram/internal/auth"
	"github.com/hitoshi/minigram/internal/client"
	"github.com/hitoshi/minigram/internal/model"
)

// Session は認証済みセッションを表す。
// ユーザープロフィールのスナップショットとベアラートークンを保持する。
type Session struct {
	User           model.User
	Token          string
	FollowingCount int
}

// StoredSession は永続化されるセッションのシリアライズ表現。
type StoredSession struct {
	Token          string    `json:"token"`
	UserID         string    `json:"user_id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	ProfilePicURL  string    `json:"profile_pic_url"`
	CreatedAt      time.Time `json:"created_at"`
	FollowingCount int       `json:"following_count"`
}

// CredentialStorage はセッションの永続化インターフェース。
// プロセス再起動をまたいでセッションを復元するために使用する。
type CredentialStorage interface {
	// Load は保存済みセッションを読み込む。未保存の場合は(nil, nil)を返す。
	Load() (*StoredSession, error)
	// Save はセッションを保存する。
	Save(sess *StoredSession) error
	// Clear は保存済みセッションを破棄する。未保存でもエラーにしない。
	Clear() error
}

// FileStorage はファイルベースのCredentialStorage実装。
type FileStorage struct {
	path string
}

// NewFileStorage は指定パスに保存するFileStorageを生成する。
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

// Load は保存済みセッションをファイルから読み込む。
func (s *FileStorage) Load() (*StoredSession, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("セッションファイルの読み込みに失敗しました: %w", err)
	}

	var sess StoredSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("セッションファイルのパースに失敗しました: %w", err)
	}
	return &sess, nil
}

// Save はセッションをファイルに保存する。親ディレクトリは必要に応じて作成する。
func (s *FileStorage) Save(sess *StoredSession) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("セッションのエンコードに失敗しました: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("セッションディレクトリの作成に失敗しました: %w", err)
		}
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("セッションファイルの書き込みに失敗しました: %w", err)
	}
	return nil
}

// Clear は保存済みセッションファイルを削除する。
func (s *FileStorage) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("セッションファイルの削除に失敗しました: %w", err)
	}
	return nil
}

// MemoryStorage はインメモリのCredentialStorage実装。テスト用。
type MemoryStorage struct {
	mu   sync.Mutex
	sess *StoredSession
}

// NewMemoryStorage は空のMemoryStorageを生成する。
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// Load は保存済みセッションを返す。
func (s *MemoryStorage) Load() (*StoredSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess == nil {
		return nil, nil
	}
	sess := *s.sess
	return &sess, nil
}

// Save はセッションを保存する。
func (s *MemoryStorage) Save(sess *StoredSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *sess
	s.sess = &copied
	return nil
}

// Clear は保存済みセッションを破棄する。
func (s *MemoryStorage) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sess = nil
	return nil
}

var _ CredentialStorage = (*FileStorage)(nil)
var _ CredentialStorage = (*MemoryStorage)(nil)

// authAPI はセッションストアが必要とするAPIクライアントのインターフェース。
type authAPI interface {
	Login(ctx context.Context, login, password string) (*client.LoginResult, error)
	Signup(ctx context.Context, params client.SignupParams) (*model.User, error)
	UpdateProfilePic(ctx context.Context, profilePicURL string) (*model.User, error)
	SetToken(token string)
	ClearToken()
}

// SessionStore は現在の認証済みアイデンティティを管理する。
// ログイン・登録・ログアウト・プロフィール更新の操作を公開し、
// CredentialStorage経由でプロセス再起動をまたいだ復元を行う。
type SessionStore struct {
	mu      sync.RWMutex
	current *Session
	storage CredentialStorage
	api     authAPI
	now     func() time.Time // テスト用に差し替え可能
}

// NewSessionStore はSessionStoreを生成する。
func NewSessionStore(api authAPI, storage CredentialStorage) *SessionStore {
	return &SessionStore{
		storage: storage,
		api:     api,
		now:     time.Now,
	}
}

// Current は現在のセッションのコピーを返す。未認証の場合は(nil, false)。
func (s *SessionStore) Current() (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, false
	}
	sess := *s.current
	return &sess, true
}

// Authenticated は認証済みセッションが存在するかを返す。
func (s *SessionStore) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current != nil
}

// Restore は保存済みセッションを復元する。
// トークンのexpクレームを署名検証なしでデコードし（クライアントは鍵を持たない）、
// 現在時刻と比較する。期限切れのセッションは決して復元せず、保存データを破棄する。
// 復元に成功した場合はtrueを返す。
func (s *SessionStore) Restore() (bool, error) {
	stored, err := s.storage.Load()
	if err != nil {
		return false, err
	}
	if stored == nil || stored.Token == "" {
		return false, nil
	}

	expiry, err := auth.DecodeExpiry(stored.Token)
	if err != nil || !expiry.After(s.now()) {
		// 不正または期限切れのトークンは破棄する
		if clearErr := s.storage.Clear(); clearErr != nil {
			return false, clearErr
		}
		return false, nil
	}

	sess := &Session{
		User: model.User{
			ID:            stored.UserID,
			Username:      stored.Username,
			Email:         stored.Email,
			ProfilePicURL: stored.ProfilePicURL,
			CreatedAt:     stored.CreatedAt,
		},
		Token:          stored.Token,
		FollowingCount: stored.FollowingCount,
	}

	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()

	s.api.SetToken(stored.Token)
	return true, nil
}

// Login は認証を行い、セッションを作成して永続化する。
func (s *SessionStore) Login(ctx context.Context, login, password string) (*Session, error) {
	result, err := s.api.Login(ctx, login, password)
	if err != nil {
		return nil, err
	}

	sess := &Session{
		User:  result.User,
		Token: result.Token,
	}

	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()

	s.api.SetToken(result.Token)

	if err := s.persist(sess); err != nil {
		return nil, err
	}

	out := *sess
	return &out, nil
}

// Signup は新規ユーザーを登録する。
// 登録は認証済みセッションを作成しない。クライアントは別途ログインする必要がある。
func (s *SessionStore) Signup(ctx context.Context, params client.SignupParams) (*model.User, error) {
	return s.api.Signup(ctx, params)
}

// UpdateProfilePic はプロフィール画像URLを更新し、セッションのスナップショットを更新する。
func (s *SessionStore) UpdateProfilePic(ctx context.Context, profilePicURL string) (*model.User, error) {
	if !s.Authenticated() {
		return nil, model.NewUnauthenticatedError()
	}

	user, err := s.api.UpdateProfilePic(ctx, profilePicURL)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	var snapshot *Session
	if s.current != nil {
		s.current.User = *user
		copied := *s.current
		snapshot = &copied
	}
	s.mu.Unlock()

	if snapshot != nil {
		if err := s.persist(snapshot); err != nil {
			return nil, err
		}
	}
	return user, nil
}

// AdjustFollowingCount はセッションのフォロー中カウントを増減する。
// 楽観的ミューテーション層のフォロー・フォロー解除で使用する。
// 調整前の値を返す（ロールバック用）。
func (s *SessionStore) AdjustFollowingCount(delta int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return 0
	}
	prev := s.current.FollowingCount
	next := prev + delta
	if next < 0 {
		next = 0
	}
	s.current.FollowingCount = next
	return prev
}

// SetFollowingCount はセッションのフォロー中カウントを設定する。ロールバック用。
func (s *SessionStore) SetFollowingCount(count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.current.FollowingCount = count
	}
}

// Logout はセッションを破棄する。
// 保存済みの認証情報を削除し、APIクライアントのトークンを破棄する。
func (s *SessionStore) Logout() error {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()

	s.api.ClearToken()
	return s.storage.Clear()
}

// Teardown はサーバーからの401応答によるセッション破棄を行う。
// 呼び出し元コンポーネントとは独立に、いずれのAPI呼び出しの401でも実行される。
func (s *SessionStore) Teardown() {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()

	// トークンは401を検出したクライアント側で破棄済み。
	// 保存データの削除失敗は致命的ではない（次回Restore時に期限切れとして弾かれる）。
	_ = s.storage.Clear()
}

// persist はセッションをCredentialStorageに保存する。
func (s *SessionStore) persist(sess *Session) error {
	return s.storage.Save(&StoredSession{
		Token:          sess.Token,
		UserID:         sess.User.ID,
		Username:       sess.User.Username,
		Email:          sess.User.Email,
		ProfilePicURL:  sess.User.ProfilePicURL,
		CreatedAt:      sess.User.CreatedAt,
		FollowingCount: sess.FollowingCount,
	})
}
