package api

import (
	"context"
	"errors"
)

// AuthAPI は認証関連の操作を提供する。
// トークンの永続化はこの層では行わず、呼び出し元（CLIのログインフロー）が担う。
type AuthAPI struct {
	client *Client
}

// User はサービス利用ユーザーを表す。
type User struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// Session はログイン/登録成功時にサーバーが返す認証情報。
type Session struct {
	Token     string `json:"token"`
	TokenType string `json:"tokenType"`
	User      User   `json:"user"`
}

// Login はメールアドレスとパスワードでログインする。POST /auth/login
func (a *AuthAPI) Login(ctx context.Context, email, password string) (Session, error) {
	if email == "" || password == "" {
		return Session{}, errors.New("メールアドレスとパスワードは必須です")
	}

	body := map[string]string{"email": email, "password": password}
	var session Session
	if err := a.client.Post(ctx, "/auth/login", body, &session); err != nil {
		return Session{}, err
	}
	return session, nil
}

// Register は新規ユーザーを登録する。POST /auth/register
func (a *AuthAPI) Register(ctx context.Context, email, password, name string) (Session, error) {
	if email == "" || password == "" {
		return Session{}, errors.New("メールアドレスとパスワードは必須です")
	}

	body := map[string]string{"email": email, "password": password, "name": name}
	var session Session
	if err := a.client.Post(ctx, "/auth/register", body, &session); err != nil {
		return Session{}, err
	}
	return session, nil
}

// Logout はサーバー側のセッションを無効化する。POST /auth/logout
// ローカルのトークン破棄は呼び出し元が行う。
func (a *AuthAPI) Logout(ctx context.Context) error {
	return a.client.Post(ctx, "/auth/logout", nil, nil)
}

// Check は現在のトークンの有効性を確認し、ユーザー情報を返す。GET /auth/check
func (a *AuthAPI) Check(ctx context.Context) (User, error) {
	var payload struct {
		User User `json:"user"`
	}
	if err := a.client.Get(ctx, "/auth/check", nil, &payload); err != nil {
		return User{}, err
	}
	return payload.User, nil
}
