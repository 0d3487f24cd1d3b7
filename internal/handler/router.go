package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/minigram/internal/middleware"
)

// DBPinger はヘルスチェックに必要なデータベース接続確認のインターフェース。
type DBPinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler はヘルスチェックのHTTPハンドラー。
type HealthHandler struct {
	db DBPinger
}

// NewHealthHandler はHealthHandlerを生成する。
func NewHealthHandler(db DBPinger) *HealthHandler {
	return &HealthHandler{db: db}
}

// Check はデータベース接続を確認し、稼働状態を返す。
// GET /health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenVerifier     middleware.TokenVerifier
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	MetricsRecorder   middleware.HTTPMetricsRecorder
	Logger            *slog.Logger

	// ハンドラー依存
	AuthService AuthServiceInterface
	PostService PostServiceInterface
	UserService UserServiceInterface
	DB          DBPinger

	// ドメインメトリクス（nil可）
	AuthMetrics AuthMetrics
	PostMetrics PostMetrics
	UserMetrics UserMetrics

	// /metrics エンドポイント（nil可）
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → SecurityHeaders → Recovery → Logging → Metrics
//
// 公開GETルートにはOptionalAuthMiddlewareを適用し、
// 認証必須ルートにはAuthMiddleware → RateLimit(General)を適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewRecoveryMiddleware())

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthMetrics)
	postHandler := NewPostHandler(deps.PostService, deps.PostMetrics)
	userHandler := NewUserHandler(deps.UserService, deps.UserMetrics)
	healthHandler := NewHealthHandler(deps.DB)

	// ヘルスチェックと/metricsはログ・メトリクス記録の対象外
	r.Get("/health", healthHandler.Check)
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Group(func(r chi.Router) {
		if deps.Logger != nil {
			r.Use(middleware.NewLoggingMiddleware(deps.Logger))
		}
		if deps.MetricsRecorder != nil {
			r.Use(middleware.NewMetricsMiddleware(deps.MetricsRecorder))
		}

		// --- 認証不要のルート ---
		r.Route("/api/auth", func(r chi.Router) {
			r.Post("/signup", authHandler.Signup)
			r.Post("/login", authHandler.Login)
		})

		// --- 未認証でも閲覧できるルート ---
		// トークンがあれば閲覧者視点（is_liked、is_following）を計算する
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewOptionalAuthMiddleware(deps.TokenVerifier))

			r.Get("/api/users/{username}", userHandler.GetProfile)
			r.Get("/api/users/{userID}/followers", userHandler.ListFollowers)
			r.Get("/api/users/{userID}/following", userHandler.ListFollowing)

			r.Get("/api/posts/user/{userID}", postHandler.ListUserPosts)
			r.Get("/api/posts/{id}", postHandler.GetPost)
			r.Get("/api/posts/{id}/comments", postHandler.ListComments)
		})

		// --- 認証が必要なルート ---
		// ミドルウェアスタック: Auth → RateLimit(General)
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewAuthMiddleware(deps.TokenVerifier))
			r.Use(deps.RateLimiter.GeneralMiddleware())

			// 投稿管理
			r.Route("/api/posts", func(r chi.Router) {
				// POST /api/posts - 投稿作成（作成専用レート制限を追加）
				r.With(deps.RateLimiter.PostCreationMiddleware()).Post("/", postHandler.CreatePost)

				r.Get("/feed", postHandler.GetFeed)

				r.Route("/{id}", func(r chi.Router) {
					r.Delete("/", postHandler.DeletePost)
					r.Post("/like", postHandler.Like)
					r.Delete("/like", postHandler.Unlike)
					r.Post("/comments", postHandler.AddComment)
				})
			})

			// コメント管理
			r.Delete("/api/comments/{id}", postHandler.DeleteComment)

			// ユーザー管理
			r.Route("/api/users", func(r chi.Router) {
				r.Post("/follow/{userID}", userHandler.Follow)
				r.Delete("/unfollow/{userID}", userHandler.Unfollow)
				r.Put("/me/profile-pic", userHandler.UpdateProfilePic)
			})
		})
	})

	return r
}
