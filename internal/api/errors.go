// Package api は猫追跡バックエンドへのHTTPアクセス層を提供する。
// 認証付き・タイムアウト付き・リトライ付きのリクエスト実行と、
// エンベロープ形式 {success, data, message?, errors?} のレスポンス正規化を行う。
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrorKind はAPIエラーの分類を表す。
// リトライ可否の判定（Retryable / Terminal）に使用される。
type ErrorKind int

const (
	// ErrorKindHTTP は2xx以外のHTTPレスポンスによるエラー。
	ErrorKindHTTP ErrorKind = iota
	// ErrorKindValidation はサーバーが返したフィールド単位の検証エラー。
	// HTTPエラーの特殊形で、リプレイしても成功しないため常にTerminal。
	ErrorKindValidation
	// ErrorKindTimeout は設定されたデッドラインの超過によるエラー。
	ErrorKindTimeout
	// ErrorKindNetwork はレスポンス到達前の通信失敗（DNS、接続拒否、オフライン等）。
	ErrorKindNetwork
)

// Error はアクセス層が呼び出し元に返す統一エラー。
// タイムアウトはその他のネットワーク失敗と常に区別できる。
type Error struct {
	Kind    ErrorKind
	Status  int      // HTTPおよびValidationのみ設定される
	Message string   // 表示用メッセージ
	Details []string // 検証エラーのフィールド別メッセージ
	cause   error
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	switch e.Kind {
	case ErrorKindTimeout:
		return "リクエストがタイムアウトしました"
	case ErrorKindNetwork:
		return fmt.Sprintf("通信に失敗しました: %s", e.Message)
	default:
		return e.Message
	}
}

// Unwrap はラップされた元のエラーを返す。
func (e *Error) Unwrap() error {
	return e.cause
}

// Retryable はこのエラーが一時的な失敗でありリトライに意味があるかを返す。
// タイムアウト、ネットワーク失敗、429、5xxのみリトライ対象とする。
// 4xxの検証エラーはリプレイしても成功しないためリトライしない。
func (e *Error) Retryable() bool {
	switch e.Kind {
	case ErrorKindTimeout, ErrorKindNetwork:
		return true
	case ErrorKindHTTP:
		return e.Status == 429 || e.Status >= 500
	default:
		return false
	}
}

// IsRetryable はエラーがリトライ対象かを判定する。
// アクセス層のError以外のエラー（デコード失敗等）はリトライしない。
func IsRetryable(err error) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return false
}

// IsTimeout はエラーがタイムアウト分類かを判定する。
func IsTimeout(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == ErrorKindTimeout
}

// newTimeoutError はタイムアウトエラーを生成する。
func newTimeoutError(cause error) *Error {
	return &Error{Kind: ErrorKindTimeout, Message: "リクエストがタイムアウトしました", cause: cause}
}

// newNetworkError はネットワークエラーを生成する。
func newNetworkError(cause error) *Error {
	return &Error{Kind: ErrorKindNetwork, Message: cause.Error(), cause: cause}
}

// errorBody はエラーレスポンスのJSONエンベロープを表す。
type errorBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   struct {
		Message string `json:"message"`
		Details []struct {
			Field   string `json:"field"`
			Message string `json:"message"`
		} `json:"details"`
	} `json:"error"`
	Errors []string `json:"errors"`
}

// newHTTPError は2xx以外のレスポンスからエラーを合成する。
// ボディがJSONとしてパースできる場合はerror.details[]のメッセージを改行で連結し、
// なければerror.message、トップレベルのmessageの順で採用する。
// パースできない場合は生のテキストをそのまま使用し、再パースは行わない。
func newHTTPError(status int, body []byte) *Error {
	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		raw := strings.TrimSpace(string(body))
		return &Error{
			Kind:    ErrorKindHTTP,
			Status:  status,
			Message: fmt.Sprintf("サーバーエラー (%d): %s", status, raw),
		}
	}

	if len(parsed.Error.Details) > 0 {
		details := make([]string, 0, len(parsed.Error.Details))
		for _, d := range parsed.Error.Details {
			details = append(details, d.Message)
		}
		return &Error{
			Kind:    ErrorKindValidation,
			Status:  status,
			Message: strings.Join(details, "\n"),
			Details: details,
		}
	}

	msg := parsed.Error.Message
	if msg == "" {
		msg = parsed.Message
	}
	if msg == "" && len(parsed.Errors) > 0 {
		msg = strings.Join(parsed.Errors, "\n")
	}
	if msg == "" {
		msg = fmt.Sprintf("サーバーエラー (%d): %s", status, strings.TrimSpace(string(body)))
	}

	return &Error{Kind: ErrorKindHTTP, Status: status, Message: msg}
}
