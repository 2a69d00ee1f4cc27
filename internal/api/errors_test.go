package api

import (
	"errors"
	"testing"
)

func TestNewHTTPError_ValidationDetails(t *testing.T) {
	body := []byte(`{"success":false,"error":{"message":"validation failed","details":[{"field":"name","message":"name required"},{"field":"location","message":"location required"}]}}`)

	err := newHTTPError(422, body)

	if err.Kind != ErrorKindValidation {
		t.Errorf("Kind = %v, want ErrorKindValidation", err.Kind)
	}
	if err.Status != 422 {
		t.Errorf("Status = %d, want 422", err.Status)
	}
	// details[]のメッセージが改行で連結される
	want := "name required\nlocation required"
	if err.Message != want {
		t.Errorf("Message = %q, want %q", err.Message, want)
	}
	if len(err.Details) != 2 {
		t.Errorf("Details = %d件, want 2件", len(err.Details))
	}
}

func TestNewHTTPError_ErrorMessage(t *testing.T) {
	body := []byte(`{"success":false,"error":{"message":"猫が見つかりません"}}`)

	err := newHTTPError(404, body)

	if err.Kind != ErrorKindHTTP {
		t.Errorf("Kind = %v, want ErrorKindHTTP", err.Kind)
	}
	if err.Message != "猫が見つかりません" {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestNewHTTPError_TopLevelMessage(t *testing.T) {
	body := []byte(`{"success":false,"message":"not found"}`)

	err := newHTTPError(404, body)
	if err.Message != "not found" {
		t.Errorf("Message = %q, want not found", err.Message)
	}
}

func TestNewHTTPError_UnparseableBody(t *testing.T) {
	// パースできないボディは生のテキストをそのまま使用し、再パースしない
	body := []byte(`<html>502 Bad Gateway</html>`)

	err := newHTTPError(502, body)

	if err.Kind != ErrorKindHTTP {
		t.Errorf("Kind = %v, want ErrorKindHTTP", err.Kind)
	}
	want := "サーバーエラー (502): <html>502 Bad Gateway</html>"
	if err.Message != want {
		t.Errorf("Message = %q, want %q", err.Message, want)
	}
}

func TestNewHTTPError_EmptyJSONBody(t *testing.T) {
	err := newHTTPError(500, []byte(`{}`))
	if err.Message == "" {
		t.Error("空のJSONボディでもフォールバックメッセージが設定されるべき")
	}
}

func TestRetryable_Classification(t *testing.T) {
	cases := []struct {
		name string
		err  *Error
		want bool
	}{
		{"タイムアウト", newTimeoutError(nil), true},
		{"ネットワーク失敗", newNetworkError(errors.New("refused")), true},
		{"500", &Error{Kind: ErrorKindHTTP, Status: 500}, true},
		{"503", &Error{Kind: ErrorKindHTTP, Status: 503}, true},
		{"429", &Error{Kind: ErrorKindHTTP, Status: 429}, true},
		{"404", &Error{Kind: ErrorKindHTTP, Status: 404}, false},
		{"422検証エラー", &Error{Kind: ErrorKindValidation, Status: 422}, false},
		{"401", &Error{Kind: ErrorKindHTTP, Status: 401}, false},
	}

	for _, tc := range cases {
		if got := tc.err.Retryable(); got != tc.want {
			t.Errorf("%s: Retryable() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestIsRetryable_NonAPIError(t *testing.T) {
	if IsRetryable(errors.New("plain error")) {
		t.Error("分類されないエラーはリトライ対象外であるべき")
	}
	if IsRetryable(nil) {
		t.Error("nilはリトライ対象外であるべき")
	}
}

func TestIsTimeout(t *testing.T) {
	if !IsTimeout(newTimeoutError(nil)) {
		t.Error("タイムアウトエラーを判定できるべき")
	}
	// タイムアウトはその他のネットワーク失敗と常に区別できる
	if IsTimeout(newNetworkError(errors.New("dns failure"))) {
		t.Error("ネットワークエラーはタイムアウトではない")
	}
	if IsTimeout(&Error{Kind: ErrorKindHTTP, Status: 500}) {
		t.Error("500エラーはタイムアウトではない")
	}
}
