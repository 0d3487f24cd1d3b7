// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラーやサービス層から利用する。
type MetricsCollector interface {
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordSignup()
	RecordLogin()
	RecordPostCreated()
	RecordPostDeleted()
	RecordLikeToggled(action string)
	RecordCommentAdded()
	RecordFollowToggled(action string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpStatus     *prometheus.CounterVec
	requestLatency prometheus.Histogram
	signups        prometheus.Counter
	logins         prometheus.Counter
	postsCreated   prometheus.Counter
	postsDeleted   prometheus.Counter
	likesToggled   *prometheus.CounterVec
	commentsAdded  prometheus.Counter
	followsToggled *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "minigram_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "minigram_request_latency_seconds",
			Help:    "リクエスト処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		signups: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "minigram_signups_total",
			Help: "ユーザー登録の合計数",
		}),
		logins: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "minigram_logins_total",
			Help: "ログイン成功の合計数",
		}),
		postsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "minigram_posts_created_total",
			Help: "作成された投稿の合計数",
		}),
		postsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "minigram_posts_deleted_total",
			Help: "削除された投稿の合計数",
		}),
		likesToggled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "minigram_likes_toggled_total",
			Help: "いいね操作の合計数（like/unlike別）",
		}, []string{"action"}),
		commentsAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "minigram_comments_added_total",
			Help: "追加されたコメントの合計数",
		}),
		followsToggled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "minigram_follows_toggled_total",
			Help: "フォロー操作の合計数（follow/unfollow別）",
		}, []string{"action"}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.requestLatency,
		c.signups,
		c.logins,
		c.postsCreated,
		c.postsDeleted,
		c.likesToggled,
		c.commentsAdded,
		c.followsToggled,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエスト処理のレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordSignup はユーザー登録を記録する。
func (c *Collector) RecordSignup() {
	c.signups.Inc()
}

// RecordLogin はログイン成功を記録する。
func (c *Collector) RecordLogin() {
	c.logins.Inc()
}

// RecordPostCreated は投稿作成を記録する。
func (c *Collector) RecordPostCreated() {
	c.postsCreated.Inc()
}

// RecordPostDeleted は投稿削除を記録する。
func (c *Collector) RecordPostDeleted() {
	c.postsDeleted.Inc()
}

// RecordLikeToggled はいいね操作を記録する。actionは"like"または"unlike"。
func (c *Collector) RecordLikeToggled(action string) {
	c.likesToggled.WithLabelValues(action).Inc()
}

// RecordCommentAdded はコメント追加を記録する。
func (c *Collector) RecordCommentAdded() {
	c.commentsAdded.Inc()
}

// RecordFollowToggled はフォロー操作を記録する。actionは"follow"または"unfollow"。
func (c *Collector) RecordFollowToggled(action string) {
	c.followsToggled.WithLabelValues(action).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
