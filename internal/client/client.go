// Package client はminigram REST APIの型付きクライアントを提供する。
// 各操作を1メソッドとして公開し、失敗をmodel.APIErrorのエラー分類
// （ネットワーク障害・サーバー拒否・未検出・未認証）にマッピングする。
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/hitoshi/minigram/internal/model"
)

// Client はminigram REST APIのHTTPクライアント。
// 認証トークンを保持し、全リクエストのAuthorizationヘッダーに注入する。
// いずれかの呼び出しが401を返した場合、OnUnauthorizedフックを発火する
// （呼び出し元コンポーネントとは独立したプロセス全体のセッション破棄用）。
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger

	mu             sync.RWMutex
	token          string
	onUnauthorized func()
}

// New はClientの新しいインスタンスを生成する。
func New(httpClient *http.Client, baseURL string, logger *slog.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		logger:     logger,
	}
}

// SetToken は以降のリクエストに使用するベアラートークンを設定する。
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// ClearToken は保持中のベアラートークンを破棄する。
func (c *Client) ClearToken() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
}

// Token は現在のベアラートークンを返す。未設定の場合は空文字列。
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetOnUnauthorized は401レスポンス受信時に発火するフックを設定する。
// フックはトークン破棄後に呼び出される。
func (c *Client) SetOnUnauthorized(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = fn
}

// apiErrorBody はサーバーの統一エラーフォーマット。
type apiErrorBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// do はHTTPリクエストを実行し、成功時はoutへJSONデコードする。
// outがnilの場合はレスポンスボディを読み捨てる。
// エラー分類:
//   - レスポンスを受信できなかった場合はNETWORK_FAILURE
//   - 401はUNAUTHENTICATEDとしてOnUnauthorizedフックを発火
//     （ただし認証情報誤りのINVALID_CREDENTIALSはそのまま伝搬し、フックは発火しない）
//   - サーバーがAPIErrorボディを返した場合はそのまま伝搬
//   - それ以外の失敗ステータスはSERVER_REJECTED
func (c *Client) do(ctx context.Context, method, path string, reqBody, out any) error {
	var bodyReader io.Reader
	if reqBody != nil {
		buf, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("リクエストボディのエンコードに失敗しました: %w", err)
		}
		bodyReader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("APIリクエストに失敗しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return model.NewNetworkFailureError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		// ログイン失敗（INVALID_CREDENTIALS）はトークン拒否ではないため、
		// サーバーのエラーメッセージをそのまま返しセッション破棄は行わない。
		err := c.decodeError(resp)
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeInvalidCredentials {
			return apiErr
		}
		c.fireUnauthorized()
		return model.NewUnauthenticatedError()
	}

	if resp.StatusCode >= 400 {
		return c.decodeError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
		}
	}

	return nil
}

// decodeError は失敗レスポンスのボディをAPIErrorに変換する。
// 統一エラーフォーマットで解析できない場合はSERVER_REJECTEDにフォールバックする。
func (c *Client) decodeError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err == nil {
		var apiErr apiErrorBody
		if jsonErr := json.Unmarshal(body, &apiErr); jsonErr == nil && apiErr.Code != "" {
			return &model.APIError{
				Code:     apiErr.Code,
				Message:  apiErr.Message,
				Category: apiErr.Category,
				Action:   apiErr.Action,
			}
		}
	}
	return model.NewServerRejectedError(resp.StatusCode, "")
}

// fireUnauthorized はトークンを破棄し、OnUnauthorizedフックを発火する。
func (c *Client) fireUnauthorized() {
	c.mu.Lock()
	fn := c.onUnauthorized
	c.token = ""
	c.mu.Unlock()

	if fn != nil {
		fn()
	}
}
