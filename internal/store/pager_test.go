package store

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/hitoshi/minigram/internal/model"
)

// makePosts はid[offset]からid[offset+n-1]までの連番投稿を生成する。
func makePosts(offset, n int) []model.Post {
	posts := make([]model.Post, n)
	for i := range posts {
		posts[i] = model.Post{ID: fmt.Sprintf("p%d", offset+i)}
	}
	return posts
}

// --- テスト ---

// 全13件・ページサイズ10のフィードを2回のフェッチで読み切るシナリオ。
func TestPager_TwoPageScenario(t *testing.T) {
	fetchCount := 0
	fetch := func(ctx context.Context, page, limit int) (*model.PostPage, error) {
		fetchCount++
		if limit != 10 {
			t.Errorf("limit = %d, want 10", limit)
		}
		switch page {
		case 1:
			return &model.PostPage{Posts: makePosts(0, 10), Page: 1, Limit: 10, Total: 13, HasNext: true}, nil
		case 2:
			return &model.PostPage{Posts: makePosts(10, 3), Page: 2, Limit: 10, Total: 13, HasNext: false}, nil
		default:
			t.Fatalf("unexpected page %d", page)
			return nil, nil
		}
	}

	cache := NewEntityCache()
	lists := NewListCoordinator()
	pager := NewPager(FeedList, 10, fetch, cache, lists)

	if err := pager.LoadFirst(context.Background()); err != nil {
		t.Fatalf("LoadFirst failed: %v", err)
	}
	if pager.Page() != 1 || !pager.HasNext() {
		t.Errorf("after page 1: page=%d hasNext=%v", pager.Page(), pager.HasNext())
	}
	if len(lists.IDs(FeedList)) != 10 {
		t.Fatalf("feed length = %d, want 10", len(lists.IDs(FeedList)))
	}

	if err := pager.LoadMore(context.Background()); err != nil {
		t.Fatalf("LoadMore failed: %v", err)
	}
	if pager.Page() != 2 || pager.HasNext() {
		t.Errorf("after page 2: page=%d hasNext=%v", pager.Page(), pager.HasNext())
	}

	ids := lists.IDs(FeedList)
	if len(ids) != 13 {
		t.Fatalf("feed length = %d, want 13", len(ids))
	}
	for i, id := range ids {
		if want := fmt.Sprintf("p%d", i); id != want {
			t.Errorf("ids[%d] = %q, want %q", i, id, want)
		}
	}
	if cache.Len() != 13 {
		t.Errorf("cache length = %d, want 13", cache.Len())
	}

	// 末尾到達後のLoadMoreはフェッチを発行しない
	if err := pager.LoadMore(context.Background()); err != nil {
		t.Fatalf("LoadMore after exhaustion failed: %v", err)
	}
	if err := pager.LoadMore(context.Background()); err != nil {
		t.Fatalf("LoadMore after exhaustion failed: %v", err)
	}
	if fetchCount != 2 {
		t.Errorf("fetch count = %d, want 2", fetchCount)
	}
}

func TestPager_LoadFirstReplacesExistingList(t *testing.T) {
	fetch := func(ctx context.Context, page, limit int) (*model.PostPage, error) {
		return &model.PostPage{Posts: makePosts(100, 2), Page: 1, Limit: 10, HasNext: false}, nil
	}

	cache := NewEntityCache()
	lists := NewListCoordinator()
	lists.Replace(FeedList, []string{"stale-1", "stale-2", "stale-3"})
	pager := NewPager(FeedList, 10, fetch, cache, lists)

	if err := pager.LoadFirst(context.Background()); err != nil {
		t.Fatalf("LoadFirst failed: %v", err)
	}

	ids := lists.IDs(FeedList)
	if len(ids) != 2 || ids[0] != "p100" || ids[1] != "p101" {
		t.Errorf("feed = %v, want [p100 p101]", ids)
	}
}

func TestPager_LoadMoreBeforeLoadFirstIsNoOp(t *testing.T) {
	fetchCount := 0
	fetch := func(ctx context.Context, page, limit int) (*model.PostPage, error) {
		fetchCount++
		return &model.PostPage{}, nil
	}

	pager := NewPager(FeedList, 10, fetch, NewEntityCache(), NewListCoordinator())

	// 初回ロード前はhasNext=falseのため何も起きない
	if err := pager.LoadMore(context.Background()); err != nil {
		t.Fatalf("LoadMore failed: %v", err)
	}
	if fetchCount != 0 {
		t.Errorf("fetch count = %d, want 0", fetchCount)
	}
}

// 追加ロードの進行中に繰り返し呼ばれても新たなフェッチは発行されない。
func TestPager_LoadMoreWhileInFlightIsNoOp(t *testing.T) {
	fetchCount := 0
	release := make(chan struct{})
	fetch := func(ctx context.Context, page, limit int) (*model.PostPage, error) {
		fetchCount++
		switch page {
		case 1:
			return &model.PostPage{Posts: makePosts(0, 10), Page: 1, Limit: 10, HasNext: true}, nil
		default:
			// 2ページ目の取得を保留し、その間のLoadMoreの挙動を観察する
			<-release
			return &model.PostPage{Posts: makePosts(10, 3), Page: 2, Limit: 10, HasNext: false}, nil
		}
	}

	lists := NewListCoordinator()
	pager := NewPager(FeedList, 10, fetch, NewEntityCache(), lists)

	if err := pager.LoadFirst(context.Background()); err != nil {
		t.Fatalf("LoadFirst failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- pager.LoadMore(context.Background())
	}()

	// 2ページ目のフェッチが始まるまで待つ
	deadline := time.Now().Add(2 * time.Second)
	for !pager.LoadingMore() {
		if time.Now().After(deadline) {
			t.Fatal("LoadMore never started fetching")
		}
		time.Sleep(time.Millisecond)
	}

	// 進行中はすべてno-op
	for i := 0; i < 5; i++ {
		if err := pager.LoadMore(context.Background()); err != nil {
			t.Fatalf("LoadMore during in-flight fetch failed: %v", err)
		}
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("blocked LoadMore failed: %v", err)
	}

	if fetchCount != 2 {
		t.Errorf("fetch count = %d, want 2", fetchCount)
	}
	if pager.Page() != 2 || pager.HasNext() {
		t.Errorf("after settle: page=%d hasNext=%v", pager.Page(), pager.HasNext())
	}
	if len(lists.IDs(FeedList)) != 13 {
		t.Errorf("feed length = %d, want 13", len(lists.IDs(FeedList)))
	}
}

func TestPager_FetchErrorLeavesStateUntouched(t *testing.T) {
	fetch := func(ctx context.Context, page, limit int) (*model.PostPage, error) {
		return nil, model.NewNetworkFailureError(errors.New("connection refused"))
	}

	lists := NewListCoordinator()
	lists.Replace(FeedList, []string{"p1"})
	pager := NewPager(FeedList, 10, fetch, NewEntityCache(), lists)

	if err := pager.LoadFirst(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if pager.Page() != 0 {
		t.Errorf("page = %d, want 0", pager.Page())
	}
	if !reflect.DeepEqual(lists.IDs(FeedList), []string{"p1"}) {
		t.Errorf("feed = %v, want [p1]", lists.IDs(FeedList))
	}
	if pager.Loading() {
		t.Error("loading flag should be reset after failure")
	}
}

func TestPager_LoadMoreErrorKeepsPageNumber(t *testing.T) {
	failNext := false
	fetch := func(ctx context.Context, page, limit int) (*model.PostPage, error) {
		if failNext {
			return nil, model.NewNetworkFailureError(errors.New("timeout"))
		}
		return &model.PostPage{Posts: makePosts(0, 10), Page: page, Limit: 10, HasNext: true}, nil
	}

	lists := NewListCoordinator()
	pager := NewPager(FeedList, 10, fetch, NewEntityCache(), lists)

	if err := pager.LoadFirst(context.Background()); err != nil {
		t.Fatalf("LoadFirst failed: %v", err)
	}

	failNext = true
	if err := pager.LoadMore(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	// ページ番号は進まず、次のLoadMoreは同じページを再要求できる
	if pager.Page() != 1 {
		t.Errorf("page = %d, want 1", pager.Page())
	}
	if pager.LoadingMore() {
		t.Error("loadingMore flag should be reset after failure")
	}
}

func TestPager_OverlappingPagesDeduplicated(t *testing.T) {
	fetch := func(ctx context.Context, page, limit int) (*model.PostPage, error) {
		switch page {
		case 1:
			// p0..p2
			return &model.PostPage{Posts: makePosts(0, 3), Page: 1, HasNext: true}, nil
		default:
			// 取得の合間に新規投稿が挿入されp2が2ページ目にもずれ込んだ場合
			return &model.PostPage{Posts: makePosts(2, 3), Page: 2, HasNext: false}, nil
		}
	}

	lists := NewListCoordinator()
	pager := NewPager(FeedList, 3, fetch, NewEntityCache(), lists)

	if err := pager.LoadFirst(context.Background()); err != nil {
		t.Fatalf("LoadFirst failed: %v", err)
	}
	if err := pager.LoadMore(context.Background()); err != nil {
		t.Fatalf("LoadMore failed: %v", err)
	}

	want := []string{"p0", "p1", "p2", "p3", "p4"}
	if !reflect.DeepEqual(lists.IDs(FeedList), want) {
		t.Errorf("feed = %v, want %v", lists.IDs(FeedList), want)
	}
}
