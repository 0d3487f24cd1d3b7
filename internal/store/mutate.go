package store

import (
	"context"
	"sync"

	"github.com/hitoshi/minigram/internal/client"
	"github.com/hitoshi/minigram/internal/model"
)

// MutationState は1つのミューテーションの状態機械の状態を表す。
//
//	idle → applied → committed | rolledBack
//
// appliedは楽観的変更がローカルに適用済みでネットワーク確認待ちの状態。
// committedはサーバーが成功を返し楽観的値が最終値として確定した状態。
// rolledBackは失敗によりスナップショットへ復元された状態。
type MutationState int

const (
	// MutationIdle はミューテーション未適用の初期状態。
	MutationIdle MutationState = iota
	// MutationApplied は楽観的変更がローカルに適用された状態。
	MutationApplied
	// MutationCommitted はサーバー確認により確定した状態。
	MutationCommitted
	// MutationRolledBack は失敗によりスナップショットへ復元された状態。
	MutationRolledBack
)

// String はMutationStateの文字列表現を返す。
func (s MutationState) String() string {
	switch s {
	case MutationIdle:
		return "idle"
	case MutationApplied:
		return "applied"
	case MutationCommitted:
		return "committed"
	case MutationRolledBack:
		return "rolledBack"
	default:
		return "unknown"
	}
}

// Mutation は1つのミューテーションの実行記録。
// スナップショットからの復元処理を保持し、状態遷移を明示的に管理する。
type Mutation struct {
	mu       sync.Mutex
	state    MutationState
	rollback func()
}

// State は現在の状態を返す。
func (m *Mutation) State() MutationState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// applied は楽観的変更の適用と復元処理を記録する。
func (m *Mutation) applied(rollback func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = MutationApplied
	m.rollback = rollback
}

// commit はサーバー確認による確定を記録する。
// 楽観的値はサーバーが計算する値と同一に計算されているため、
// レスポンスボディでローカル状態を上書きする必要はない。
func (m *Mutation) commit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == MutationApplied {
		m.state = MutationCommitted
	}
}

// rollBack はスナップショットへの復元を実行する。
// applied状態でのみ復元を行う。復元自体はユーザーに通知しない
// （失敗メッセージのみが表示される）。
func (m *Mutation) rollBack() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == MutationApplied && m.rollback != nil {
		m.rollback()
	}
	m.state = MutationRolledBack
}

// mutationAPI は楽観的ミューテーション層が必要とするAPIクライアントのインターフェース。
type mutationAPI interface {
	GetPost(ctx context.Context, postID string) (*model.Post, []model.Comment, error)
	CreatePost(ctx context.Context, imageURL, caption string) (*model.Post, error)
	DeletePost(ctx context.Context, postID string) error
	Like(ctx context.Context, postID string) (*client.LikeResult, error)
	Unlike(ctx context.Context, postID string) (*client.LikeResult, error)
	AddComment(ctx context.Context, postID, text string) (*model.Comment, error)
	DeleteComment(ctx context.Context, commentID string) error
	Follow(ctx context.Context, userID string) (*client.FollowResult, error)
	Unfollow(ctx context.Context, userID string) (*client.FollowResult, error)
}

// Mutator は楽観的ミューテーション層。
// サーバー変更系のアクションを、ネットワーク応答前の同期的なローカル変更と、
// 失敗時の補償的ロールバックでラップする。
//
// すべてのアクションは認証済みセッションを前提とし、セッションが無い場合は
// ローカル変更もネットワーク呼び出しも行わずにUNAUTHENTICATEDで失敗する。
//
// 同一エンティティに対する重複ミューテーションはエンティティごとのロックで
// 直列化される。ロックはapply+send+reconcileの全区間で保持される。
type Mutator struct {
	cache   *EntityCache
	lists   *ListCoordinator
	session *SessionStore
	api     mutationAPI

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewMutator はMutatorを生成する。
func NewMutator(cache *EntityCache, lists *ListCoordinator, session *SessionStore, api mutationAPI) *Mutator {
	return &Mutator{
		cache:   cache,
		lists:   lists,
		session: session,
		api:     api,
		locks:   make(map[string]*sync.Mutex),
	}
}

// entityLock は指定エンティティのロックを取得または作成する。
func (m *Mutator) entityLock(id string) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	lock, ok := m.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[id] = lock
	}
	return lock
}

// requireSession は認証済みセッションを要求する。
func (m *Mutator) requireSession() error {
	if !m.session.Authenticated() {
		return model.NewUnauthenticatedError()
	}
	return nil
}

// intPtr はintのポインタを返すヘルパー。
func intPtr(v int) *int { return &v }

// boolPtr はboolのポインタを返すヘルパー。
func boolPtr(v bool) *bool { return &v }

// ToggleLike はいいね状態をトグルする。
// エンティティがキャッシュに無い場合は同期的に取得してから楽観的トグルを計算する
// （不明な事前状態に対してトグルは計算できない）。
// いいね解除時のカウントは0未満にならないようクランプする。
func (m *Mutator) ToggleLike(ctx context.Context, postID string) (*Mutation, error) {
	mut := &Mutation{}

	if err := m.requireSession(); err != nil {
		return mut, err
	}

	lock := m.entityLock(postID)
	lock.Lock()
	defer lock.Unlock()

	// 1. エンティティが無ければ同期的に取得
	post, ok := m.cache.Get(postID)
	if !ok {
		fetched, _, err := m.api.GetPost(ctx, postID)
		if err != nil {
			return mut, err
		}
		m.cache.Put(*fetched)
		post = *fetched
	}

	// 2. スナップショット
	prevLiked := post.IsLiked
	prevCount := post.LikeCount

	// 3. 楽観的適用
	nextLiked := !prevLiked
	nextCount := prevCount + 1
	if prevLiked {
		nextCount = prevCount - 1
		if nextCount < 0 {
			nextCount = 0
		}
	}

	m.cache.Patch(postID, model.PostPatch{
		IsLiked:   boolPtr(nextLiked),
		LikeCount: intPtr(nextCount),
	})
	mut.applied(func() {
		m.cache.Patch(postID, model.PostPatch{
			IsLiked:   boolPtr(prevLiked),
			LikeCount: intPtr(prevCount),
		})
	})

	// 4. 送信
	var err error
	if nextLiked {
		_, err = m.api.Like(ctx, postID)
	} else {
		_, err = m.api.Unlike(ctx, postID)
	}

	// 5. リコンサイル
	if err != nil {
		mut.rollBack()
		return mut, err
	}
	mut.commit()
	return mut, nil
}

// AddComment はコメントを追加する。
// 楽観的変更はコメント数のインクリメントのみで、コメント本文は
// どのコメント一覧にも投機的に挿入しない（一覧は数の変化を契機に再取得される）。
func (m *Mutator) AddComment(ctx context.Context, postID, text string) (*Mutation, *model.Comment, error) {
	mut := &Mutation{}

	if err := m.requireSession(); err != nil {
		return mut, nil, err
	}

	lock := m.entityLock(postID)
	lock.Lock()
	defer lock.Unlock()

	post, ok := m.cache.Get(postID)
	if ok {
		prevCount := post.CommentCount
		m.cache.Patch(postID, model.PostPatch{CommentCount: intPtr(prevCount + 1)})
		mut.applied(func() {
			m.cache.Patch(postID, model.PostPatch{CommentCount: intPtr(prevCount)})
		})
	} else {
		// キャッシュに無い投稿へのコメントは楽観的変更なしで送信のみ行う
		mut.applied(func() {})
	}

	comment, err := m.api.AddComment(ctx, postID, text)
	if err != nil {
		mut.rollBack()
		return mut, nil, err
	}

	mut.commit()
	return mut, comment, nil
}

// DeleteComment はコメントを削除する。
// 楽観的変更はコメント数のデクリメント（0でクランプ）で、
// 失敗時はスナップショットの数に復元する。
func (m *Mutator) DeleteComment(ctx context.Context, postID, commentID string) (*Mutation, error) {
	mut := &Mutation{}

	if err := m.requireSession(); err != nil {
		return mut, err
	}

	lock := m.entityLock(postID)
	lock.Lock()
	defer lock.Unlock()

	post, ok := m.cache.Get(postID)
	if ok {
		prevCount := post.CommentCount
		nextCount := prevCount - 1
		if nextCount < 0 {
			nextCount = 0
		}
		m.cache.Patch(postID, model.PostPatch{CommentCount: intPtr(nextCount)})
		mut.applied(func() {
			m.cache.Patch(postID, model.PostPatch{CommentCount: intPtr(prevCount)})
		})
	} else {
		mut.applied(func() {})
	}

	if err := m.api.DeleteComment(ctx, commentID); err != nil {
		mut.rollBack()
		return mut, err
	}

	mut.commit()
	return mut, nil
}

// DeletePost は投稿を削除する。
// 楽観的変更としてエンティティをキャッシュから、IDを参照するすべてのリストから
// 取り除く。失敗時はエンティティと元のリスト位置をすべて復元する。
func (m *Mutator) DeletePost(ctx context.Context, postID string) (*Mutation, error) {
	mut := &Mutation{}

	if err := m.requireSession(); err != nil {
		return mut, err
	}

	lock := m.entityLock(postID)
	lock.Lock()
	defer lock.Unlock()

	// スナップショット: エンティティ本体とすべてのリスト位置
	snapshot, existed := m.cache.Get(postID)
	positions := m.lists.Remove(postID)
	m.cache.Remove(postID)

	mut.applied(func() {
		if existed {
			m.cache.Put(snapshot)
		}
		m.lists.Restore(postID, positions)
	})

	if err := m.api.DeletePost(ctx, postID); err != nil {
		mut.rollBack()
		return mut, err
	}

	mut.commit()
	return mut, nil
}

// CreatePost は新規投稿を作成する。
// 作成はサーバー確認後にコミットする（楽観的適用なし）。
// 成功時は返されたエンティティをキャッシュに入れ、フィードの先頭に配置する。
func (m *Mutator) CreatePost(ctx context.Context, imageURL, caption string) (*model.Post, error) {
	if err := m.requireSession(); err != nil {
		return nil, err
	}

	post, err := m.api.CreatePost(ctx, imageURL, caption)
	if err != nil {
		return nil, err
	}

	m.cache.Put(*post)
	m.lists.Prepend(FeedList, post.ID)
	m.lists.Prepend(UserPostsList(post.UserID), post.ID)
	return post, nil
}

// Follow は指定ユーザーをフォローする。
// 楽観的変更としてセッションのフォロー中カウントをインクリメントし、
// 失敗時はスナップショットの値に復元する。
func (m *Mutator) Follow(ctx context.Context, userID string) (*Mutation, error) {
	return m.toggleFollow(ctx, userID, true)
}

// Unfollow は指定ユーザーのフォローを解除する。
func (m *Mutator) Unfollow(ctx context.Context, userID string) (*Mutation, error) {
	return m.toggleFollow(ctx, userID, false)
}

func (m *Mutator) toggleFollow(ctx context.Context, userID string, follow bool) (*Mutation, error) {
	mut := &Mutation{}

	if err := m.requireSession(); err != nil {
		return mut, err
	}

	lock := m.entityLock("follow:" + userID)
	lock.Lock()
	defer lock.Unlock()

	delta := 1
	if !follow {
		delta = -1
	}
	prev := m.session.AdjustFollowingCount(delta)
	mut.applied(func() {
		m.session.SetFollowingCount(prev)
	})

	var err error
	if follow {
		_, err = m.api.Follow(ctx, userID)
	} else {
		_, err = m.api.Unfollow(ctx, userID)
	}

	if err != nil {
		mut.rollBack()
		return mut, err
	}

	mut.commit()
	return mut, nil
}
