package store

import (
	"sync"

	"github.com/hitoshi/minigram/internal/model"
)

// FeedList はグローバルフィードのリスト名。
const FeedList = "feed"

// UserPostsList は指定ユーザーの投稿リストのリスト名を返す。
// ユーザーごとのリストはグローバルフィードとは独立した順序列。
func UserPostsList(userID string) string {
	return "user:" + userID
}

// ListCoordinator は名前付きのID順序列を管理する。
// リストはエンティティの参照（ID）のみを保持し、コピーは保持しない。
// 重複排除のため、各リストは集合オーバーレイを併せ持つ。
type ListCoordinator struct {
	mu      sync.RWMutex
	lists   map[string][]string
	members map[string]map[string]struct{}
}

// NewListCoordinator は空のListCoordinatorを生成する。
func NewListCoordinator() *ListCoordinator {
	return &ListCoordinator{
		lists:   make(map[string][]string),
		members: make(map[string]map[string]struct{}),
	}
}

// Replace はリストを指定されたIDの並びで完全に置き換える。
// 既存内容は新旧の重複に関わらずすべて破棄される。
// ページネーションの1ページ目の取得結果に使用する。
func (l *ListCoordinator) Replace(name string, ids []string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	seq := make([]string, 0, len(ids))
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := set[id]; dup {
			continue
		}
		seq = append(seq, id)
		set[id] = struct{}{}
	}
	l.lists[name] = seq
	l.members[name] = set
}

// Append はリストの末尾にIDを追加する。
// 既存メンバーシップに対して重複排除し、最初に出現した位置が優先される。
// 後のページが重複を返しても移動・再挿入は行わない。
func (l *ListCoordinator) Append(name string, ids []string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	seq := l.lists[name]
	set := l.members[name]
	if set == nil {
		set = make(map[string]struct{})
		l.members[name] = set
	}

	for _, id := range ids {
		if _, dup := set[id]; dup {
			continue
		}
		seq = append(seq, id)
		set[id] = struct{}{}
	}
	l.lists[name] = seq
}

// Prepend はリストの先頭にIDを追加する。
// 新規作成されたエンティティを再取得なしでフィード先頭に配置するために使用する。
// 既にメンバーの場合は何もしない。
func (l *ListCoordinator) Prepend(name string, id string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	set := l.members[name]
	if set == nil {
		set = make(map[string]struct{})
		l.members[name] = set
	}
	if _, dup := set[id]; dup {
		return
	}

	l.lists[name] = append([]string{id}, l.lists[name]...)
	set[id] = struct{}{}
}

// Remove は指定IDをすべてのリストから削除する。
// 削除されたリスト名と元の位置のマップを返す（ロールバック用）。
func (l *ListCoordinator) Remove(id string) map[string]int {
	l.mu.Lock()
	defer l.mu.Unlock()

	positions := make(map[string]int)
	for name, seq := range l.lists {
		if _, ok := l.members[name][id]; !ok {
			continue
		}
		for i, member := range seq {
			if member == id {
				positions[name] = i
				l.lists[name] = append(seq[:i:i], seq[i+1:]...)
				break
			}
		}
		delete(l.members[name], id)
	}
	return positions
}

// Restore は削除されたIDをRemoveが返した位置情報に従って復元する。
// 位置がリスト長を超える場合は末尾に挿入する。
func (l *ListCoordinator) Restore(id string, positions map[string]int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for name, pos := range positions {
		seq := l.lists[name]
		set := l.members[name]
		if set == nil {
			set = make(map[string]struct{})
			l.members[name] = set
		}
		if _, dup := set[id]; dup {
			continue
		}

		if pos > len(seq) {
			pos = len(seq)
		}
		seq = append(seq, "")
		copy(seq[pos+1:], seq[pos:])
		seq[pos] = id
		l.lists[name] = seq
		set[id] = struct{}{}
	}
}

// IDs はリストのID順序列のコピーを返す。
func (l *ListCoordinator) IDs(name string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	seq := l.lists[name]
	out := make([]string, len(seq))
	copy(out, seq)
	return out
}

// Contains は指定IDがリストのメンバーかどうかを返す。
func (l *ListCoordinator) Contains(name, id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.members[name][id]
	return ok
}

// Resolve はリストのIDをキャッシュのエンティティに解決して返す。
// キャッシュに存在しないID（宙吊り参照）は結果から除外される。クラッシュはしない。
func (l *ListCoordinator) Resolve(name string, cache *EntityCache) []model.Post {
	ids := l.IDs(name)
	posts := make([]model.Post, 0, len(ids))
	for _, id := range ids {
		if post, ok := cache.Get(id); ok {
			posts = append(posts, post)
		}
	}
	return posts
}

// Clear はすべてのリストを破棄する。ログアウト時の破棄処理で使用する。
func (l *ListCoordinator) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lists = make(map[string][]string)
	l.members = make(map[string]map[string]struct{})
}
