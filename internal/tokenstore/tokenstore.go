// Package tokenstore は認証トークンのローカル永続化を提供する。
//
// ログインで取得したベアラートークンをユーザー設定ディレクトリ配下に
// 保存し、次回以降のコマンド実行で再利用する。トークンはコマンドの
// プロセスをまたいで有効であるため、メモリ保持ではなくファイル保存とする。
package tokenstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// defaultFileName はトークンファイルのファイル名。
const defaultFileName = "token"

// appDirName は設定ディレクトリ配下のアプリケーション名。
const appDirName = "nekomap"

// Store はトークンをファイルに保存・読み込みする。
// api.TokenSourceインターフェースを満たす。
type Store struct {
	path string
}

// New は指定パスを使用するStoreを生成する。
// pathが空の場合はDefaultPathで解決したパスを使用する。
func New(path string) (*Store, error) {
	if path == "" {
		resolved, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = resolved
	}
	return &Store{path: path}, nil
}

// DefaultPath はトークンファイルの既定パスを返す。
// ユーザー設定ディレクトリ配下のアプリケーション専用ディレクトリを使用する。
func DefaultPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("設定ディレクトリの解決に失敗: %w", err)
	}
	return filepath.Join(base, appDirName, defaultFileName), nil
}

// Path はトークンファイルのパスを返す。
func (s *Store) Path() string {
	return s.path
}

// Token は保存済みトークンを返す。
// 未保存の場合は空文字列を返し、エラーにはしない。
// 未ログイン状態でも公開エンドポイントへのアクセスは可能であるため。
func (s *Store) Token() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("トークンの読み込みに失敗: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Save はトークンをファイルに保存する。
// トークンは認証情報であるため、ファイル権限は所有者のみ読み書き可能とする。
func (s *Store) Save(token string) error {
	if token == "" {
		return fmt.Errorf("空のトークンは保存できない")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("トークンディレクトリの作成に失敗: %w", err)
	}

	if err := os.WriteFile(s.path, []byte(token), 0o600); err != nil {
		return fmt.Errorf("トークンの保存に失敗: %w", err)
	}
	return nil
}

// Clear は保存済みトークンを削除する。
// 未保存の場合は何もせず成功として扱う。
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("トークンの削除に失敗: %w", err)
	}
	return nil
}
