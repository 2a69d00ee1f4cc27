package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/hitoshi/nekomap/internal/metrics"
)

const (
	// defaultTimeout はJSONリクエストのデフォルトデッドライン。
	defaultTimeout = 10 * time.Second
	// uploadTimeoutMultiplier はファイルアップロード時のタイムアウト倍率。
	// 大きなペイロードに対応するためJSONリクエストの2倍とする。
	uploadTimeoutMultiplier = 2
	// maxResponseBody はレスポンスボディの最大読み取りサイズ。
	maxResponseBody = 1 << 20 // 1MB
	// userAgent は全リクエストに付与するUser-Agentヘッダー。
	userAgent = "Nekomap/1.0 Cat Tracker Client"
)

// TokenSource は永続化された認証トークンの読み取りインターフェース。
// アクセス層からは読み取り専用で、書き込みはログインフローのみが行う。
type TokenSource interface {
	// Token は保存済みトークンを返す。未保存の場合は空文字列を返す。
	Token() (string, error)
}

// Sanitizer はコミュニティ投稿のHTMLコンテンツをサニタイズする。
type Sanitizer interface {
	Sanitize(rawHTML string) string
}

// Config はクライアントの設定を保持する。
type Config struct {
	// BaseURL は全リクエストのオリジン+パスプレフィックス。
	BaseURL string
	// Timeout はリクエスト1回あたりのデッドライン。0の場合は10秒。
	Timeout time.Duration
	// Retry はリトライ設定。ゼロ値の場合はデフォルト（3回試行、基準遅延1秒）。
	Retry RetryPolicy
	// RatePerMinute は送信レート上限（req/min）。0の場合は制限しない。
	RatePerMinute int
	// Tokens は認証トークンの供給元。nilの場合は認証ヘッダーを付与しない。
	Tokens TokenSource
	// Sanitizer はコミュニティコンテンツのサニタイザー。nilの場合は素通しする。
	Sanitizer Sanitizer
	// Logger は構造化ログの出力先。nilの場合はslog.Default()。
	Logger *slog.Logger
	// Metrics はメトリクス記録先。nilの場合は記録しない。
	Metrics metrics.Recorder
	// HTTPClient は下層のHTTPクライアント。テスト用に差し替え可能。
	HTTPClient *http.Client
}

// Client は猫追跡APIのHTTPクライアント。
// 全ての呼び出しはタイムアウト付きコンテキストで実行され、
// 一時的な失敗は指数バックオフでリトライされる。
// リソース別の操作はCats / Auth / Communityから行う。
type Client struct {
	httpClient *http.Client
	baseURL    string
	timeout    time.Duration
	retry      RetryPolicy
	tokens     TokenSource
	limiter    *rate.Limiter
	logger     *slog.Logger
	metrics    metrics.Recorder

	// リソース別API
	Cats      *CatAPI
	Auth      *AuthAPI
	Community *CommunityAPI
}

// New はClientの新しいインスタンスを生成する。
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	retry := cfg.Retry
	if retry.MaxAttempts <= 0 {
		retry = DefaultRetryPolicy()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.Noop{}
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	var limiter *rate.Limiter
	if cfg.RatePerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RatePerMinute)/60.0), cfg.RatePerMinute)
	}

	c := &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		timeout:    timeout,
		retry:      retry,
		tokens:     cfg.Tokens,
		limiter:    limiter,
		logger:     logger,
		metrics:    recorder,
	}
	c.retry.OnRetry = func(attempt int) { c.metrics.RecordRetry() }

	sanitizer := cfg.Sanitizer
	if sanitizer == nil {
		sanitizer = passthroughSanitizer{}
	}

	c.Cats = &CatAPI{client: c}
	c.Auth = &AuthAPI{client: c}
	c.Community = &CommunityAPI{client: c, sanitizer: sanitizer}

	return c
}

// passthroughSanitizer はサニタイザー未設定時に使用される素通し実装。
type passthroughSanitizer struct{}

func (passthroughSanitizer) Sanitize(rawHTML string) string { return rawHTML }

// Get はGETリクエストを実行し、エンベロープのdataをoutにデコードする。
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.retry.Do(ctx, func(ctx context.Context) error {
		return c.do(ctx, http.MethodGet, path, query, nil, "", c.timeout, out)
	})
}

// Post はJSONボディ付きのPOSTリクエストを実行する。
func (c *Client) Post(ctx context.Context, path string, in, out any) error {
	return c.doJSON(ctx, http.MethodPost, path, in, out)
}

// Put はJSONボディ付きのPUTリクエストを実行する。
func (c *Client) Put(ctx context.Context, path string, in, out any) error {
	return c.doJSON(ctx, http.MethodPut, path, in, out)
}

// Patch はJSONボディ付きのPATCHリクエストを実行する。
func (c *Client) Patch(ctx context.Context, path string, in, out any) error {
	return c.doJSON(ctx, http.MethodPatch, path, in, out)
}

// Delete はDELETEリクエストを実行する。
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.retry.Do(ctx, func(ctx context.Context) error {
		return c.do(ctx, http.MethodDelete, path, nil, nil, "", c.timeout, out)
	})
}

// doJSON はJSONボディをシリアライズしてリクエストを実行する。
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	contentType := ""
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("リクエストボディのシリアライズに失敗しました: %w", err)
		}
		body = b
		contentType = "application/json"
	}

	return c.retry.Do(ctx, func(ctx context.Context) error {
		return c.do(ctx, method, path, nil, body, contentType, c.timeout, out)
	})
}

// UploadFile はmultipart/form-dataでファイルをアップロードする。
// Content-Typeはmultipartライターがバウンダリ付きで設定するため明示指定しない。
// タイムアウトは大きなペイロードに対応するため通常の2倍を適用する。
func (c *Client) UploadFile(ctx context.Context, path, fieldName, fileName string, content []byte, out any) error {
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	part, err := writer.CreateFormFile(fieldName, fileName)
	if err != nil {
		return fmt.Errorf("multipartボディの構築に失敗しました: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return fmt.Errorf("multipartボディの書き込みに失敗しました: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("multipartボディのクローズに失敗しました: %w", err)
	}

	body := buf.Bytes()
	contentType := writer.FormDataContentType()
	timeout := c.timeout * uploadTimeoutMultiplier

	return c.retry.Do(ctx, func(ctx context.Context) error {
		return c.do(ctx, http.MethodPost, path, nil, body, contentType, timeout, out)
	})
}

// do は1回分のリクエストを実行する。リトライは呼び出し元のラッパーが行う。
// タイムアウトはコンテキストのキャンセルで強制され、
// その他のネットワーク失敗とは区別されたエラーとして返される。
func (c *Client) do(
	ctx context.Context,
	method, path string,
	query url.Values,
	body []byte,
	contentType string,
	timeout time.Duration,
	out any,
) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return fmt.Errorf("リクエストの作成に失敗しました: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Request-ID", uuid.NewString())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.tokens != nil {
		token, err := c.tokens.Token()
		if err != nil {
			return fmt.Errorf("認証トークンの読み取りに失敗しました: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			c.metrics.RecordTimeout()
			c.logger.Warn("リクエストがタイムアウトしました",
				slog.String("method", method),
				slog.String("path", path),
				slog.Duration("timeout", timeout),
			)
			return newTimeoutError(err)
		}
		if errors.Is(err, context.Canceled) {
			return err
		}
		c.logger.Warn("リクエストに失敗しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return newNetworkError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return newNetworkError(fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err))
	}

	duration := time.Since(start)
	c.metrics.RecordRequest(method, resp.StatusCode)
	c.metrics.RecordLatency(duration)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("サーバーがエラーステータスを返しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("http_status", resp.StatusCode),
		)
		return newHTTPError(resp.StatusCode, respBody)
	}

	c.logger.Debug("リクエストが完了しました",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("http_status", resp.StatusCode),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return decodeEnvelope(respBody, out)
}

// envelope は全レスポンスが従うことを期待される統一フォーマット。
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Errors  []string        `json:"errors"`
}

// decodeEnvelope は成功レスポンスのエンベロープを検証し、dataをoutにデコードする。
func decodeEnvelope(body []byte, out any) error {
	if len(body) == 0 {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	if !env.Success {
		msg := env.Message
		if msg == "" {
			msg = "サーバーが失敗を返しました"
		}
		return &Error{Kind: ErrorKindHTTP, Status: http.StatusOK, Message: msg}
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("レスポンスdataのデコードに失敗しました: %w", err)
	}
	return nil
}
