package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/nekomap/internal/model"
)

// newFakeBackend は猫追跡APIを模したchiルーターを返す。
// 実サーバーと同じエンベロープ形式でレスポンスを返す。
func newFakeBackend(t *testing.T) *httptest.Server {
	t.Helper()

	writeData := func(w http.ResponseWriter, data any) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
	}

	r := chi.NewRouter()

	r.Route("/cats", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			// gender条件が指定された場合は絞り込んだ結果を返す
			cats := []map[string]any{
				{
					"id": "cat-1", "name": "나비", "gender": "female",
					"location": "서울 마포구", "characteristics": []string{"삼색"},
					"likes": 3, "comments": 1, "reportCount": 2,
					"lat": 37.5665, "lng": 126.9780,
					"lastSeen": time.Now().Format(time.RFC3339),
				},
			}
			if req.URL.Query().Get("gender") == "male" {
				cats = nil
			}
			writeData(w, map[string]any{
				"cats": cats, "page": 1, "size": 20, "total": len(cats), "totalPages": 1,
			})
		})
		r.Post("/", func(w http.ResponseWriter, req *http.Request) {
			var draft map[string]any
			json.NewDecoder(req.Body).Decode(&draft)
			if draft["name"] == "금지어" {
				w.WriteHeader(422)
				json.NewEncoder(w).Encode(map[string]any{
					"success": false,
					"error": map[string]any{
						"details": []map[string]string{{"field": "name", "message": "name required"}},
					},
				})
				return
			}
			writeData(w, map[string]any{
				"id": "cat-new", "name": draft["name"], "gender": draft["gender"],
				"likes": 0, "comments": 0,
			})
		})
		r.Get("/nearby", func(w http.ResponseWriter, req *http.Request) {
			writeData(w, map[string]any{"cats": []map[string]any{
				{"id": "cat-1", "name": "나비", "lat": 37.5665, "lng": 126.9780},
			}})
		})
		r.Get("/search", func(w http.ResponseWriter, req *http.Request) {
			if req.URL.Query().Get("q") != "나비" {
				writeData(w, map[string]any{"cats": []map[string]any{}})
				return
			}
			writeData(w, map[string]any{"cats": []map[string]any{{"id": "cat-1", "name": "나비"}}})
		})
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, req *http.Request) {
				// 旧サーバーのバリアント: imageBase64エイリアス、負のカウンター、性別欠損
				writeData(w, map[string]any{
					"id":          chi.URLParam(req, "id"),
					"name":        "치즈",
					"imageBase64": "data:image/png;base64,AAAA",
					"likes":       -2,
					"comments":    5,
				})
			})
			r.Post("/like", func(w http.ResponseWriter, req *http.Request) {
				writeData(w, map[string]any{"isLiked": true, "likeCount": 4})
			})
		})
	})

	r.Post("/auth/login", func(w http.ResponseWriter, req *http.Request) {
		var creds map[string]string
		json.NewDecoder(req.Body).Decode(&creds)
		if creds["password"] != "correct" {
			w.WriteHeader(401)
			json.NewEncoder(w).Encode(map[string]any{
				"success": false,
				"error":   map[string]any{"message": "認証に失敗しました"},
			})
			return
		}
		writeData(w, map[string]any{
			"token": "issued-token", "tokenType": "Bearer",
			"user": map[string]string{"id": "u1", "email": creds["email"], "name": "hitoshi"},
		})
	})
	r.Get("/auth/check", func(w http.ResponseWriter, req *http.Request) {
		if req.Header.Get("Authorization") != "Bearer issued-token" {
			w.WriteHeader(401)
			json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "unauthorized"})
			return
		}
		writeData(w, map[string]any{"user": map[string]string{"id": "u1", "name": "hitoshi"}})
	})

	r.Route("/community/posts", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			writeData(w, map[string]any{"posts": []map[string]any{
				{
					"id":      "post-1",
					"author":  map[string]string{"name": "hitoshi"},
					"content": `<p>公園で新しい猫を見つけました</p><script>alert(1)</script>`,
					"likes":   2, "comments": 0,
				},
			}})
		})
		r.Get("/{id}/comments", func(w http.ResponseWriter, req *http.Request) {
			writeData(w, map[string]any{"comments": []map[string]any{
				{
					"id": "c1", "content": "かわいい！",
					"replies": []map[string]any{{"id": "r1", "content": "ほんとに"}},
				},
			}})
		})
	})

	return httptest.NewServer(r)
}

// scriptStripper はテスト用の簡易サニタイザー。
type scriptStripper struct{}

func (scriptStripper) Sanitize(raw string) string {
	// 実装はsecurityパッケージが担う。ここでは呼び出されたことだけ確認できればよい。
	return "sanitized:" + raw
}

func TestIntegration_ListCats(t *testing.T) {
	srv := newFakeBackend(t)
	defer srv.Close()

	c := newTestClient(t, srv, Config{})

	page, err := c.Cats.List(context.Background(), ListCatsParams{Page: 1, Size: 20})
	if err != nil {
		t.Fatalf("一覧取得に失敗: %v", err)
	}
	if len(page.Cats) != 1 || page.Cats[0].Name != "나비" {
		t.Errorf("猫一覧 = %+v", page.Cats)
	}
	if page.Total != 1 || page.TotalPages != 1 {
		t.Errorf("ページネーション = %+v", page)
	}
	if page.Cats[0].Gender != model.GenderFemale {
		t.Errorf("Gender = %q", page.Cats[0].Gender)
	}
}

func TestIntegration_ListCatsWithGenderFilter(t *testing.T) {
	srv := newFakeBackend(t)
	defer srv.Close()

	c := newTestClient(t, srv, Config{})
	male := model.GenderMale

	page, err := c.Cats.List(context.Background(), ListCatsParams{
		Filters: model.SearchFilters{Gender: &male},
	})
	if err != nil {
		t.Fatalf("エラー: %v", err)
	}
	if len(page.Cats) != 0 {
		t.Errorf("genderクエリパラメータが送信されるべき: %d匹", len(page.Cats))
	}
}

func TestIntegration_GetCat_NormalizesVariants(t *testing.T) {
	srv := newFakeBackend(t)
	defer srv.Close()

	c := newTestClient(t, srv, Config{})

	cat, err := c.Cats.Get(context.Background(), "cat-2")
	if err != nil {
		t.Fatalf("取得に失敗: %v", err)
	}

	// imageBase64エイリアスは正規のImageフィールドへ正規化される
	if cat.Image != "data:image/png;base64,AAAA" {
		t.Errorf("Image = %q, エイリアスが正規化されるべき", cat.Image)
	}
	// 負のカウンターは0にクランプされる
	if cat.Likes != 0 {
		t.Errorf("Likes = %d, 負値は0にクランプされるべき", cat.Likes)
	}
	// 性別の欠損はunknownとして表現される
	if cat.Gender != model.GenderUnknown {
		t.Errorf("Gender = %q, want unknown", cat.Gender)
	}
}

func TestIntegration_CreateCat_ValidationFailsLocally(t *testing.T) {
	srv := newFakeBackend(t)
	defer srv.Close()

	c := newTestClient(t, srv, Config{})

	// 特徴タグなしのドラフトはHTTPリクエスト前に拒否される
	_, err := c.Cats.Create(context.Background(), CatDraft{Name: "치즈", Location: "서울"})
	if err == nil {
		t.Fatal("特徴タグなしのドラフトは拒否されるべき")
	}
}

func TestIntegration_CreateCat_ServerValidationSurfaced(t *testing.T) {
	srv := newFakeBackend(t)
	defer srv.Close()

	c := newTestClient(t, srv, Config{Retry: RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}})

	// ローカル検証は通るがサーバーが422で拒否するケース。
	// details[]のメッセージがそのまま表面化し、リトライで成功することはない。
	draft := CatDraft{Name: "금지어", Location: "서울", Characteristics: []string{"삼색"}}

	_, err := c.Cats.Create(context.Background(), draft)
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("api.Errorが返るべき: %v", err)
	}
	if apiErr.Kind != ErrorKindValidation || apiErr.Message != "name required" {
		t.Errorf("検証エラーのメッセージが表面化するべき: %+v", apiErr)
	}
}

func TestIntegration_ToggleLike(t *testing.T) {
	srv := newFakeBackend(t)
	defer srv.Close()

	c := newTestClient(t, srv, Config{})

	result, err := c.Cats.ToggleLike(context.Background(), "cat-1")
	if err != nil {
		t.Fatalf("エラー: %v", err)
	}
	if !result.IsLiked || result.LikeCount != 4 {
		t.Errorf("LikeResult = %+v", result)
	}
}

func TestIntegration_NearbyAndSearch(t *testing.T) {
	srv := newFakeBackend(t)
	defer srv.Close()

	c := newTestClient(t, srv, Config{})
	ctx := context.Background()

	nearby, err := c.Cats.Nearby(ctx, 37.5665, 126.9780, 1000, 10)
	if err != nil || len(nearby) != 1 {
		t.Errorf("Nearby = %v, %v", nearby, err)
	}

	found, err := c.Cats.Search(ctx, "나비")
	if err != nil || len(found) != 1 {
		t.Errorf("Search = %v, %v", found, err)
	}

	none, err := c.Cats.Search(ctx, "없는고양이")
	if err != nil || len(none) != 0 {
		t.Errorf("該当なしは空を返すべき: %v, %v", none, err)
	}
}

func TestIntegration_LoginAndCheck(t *testing.T) {
	srv := newFakeBackend(t)
	defer srv.Close()

	c := newTestClient(t, srv, Config{})
	ctx := context.Background()

	session, err := c.Auth.Login(ctx, "hitoshi@example.com", "correct")
	if err != nil {
		t.Fatalf("ログインに失敗: %v", err)
	}
	if session.Token != "issued-token" || session.TokenType != "Bearer" {
		t.Errorf("Session = %+v", session)
	}

	// 取得したトークンで認証チェック
	authed := newTestClient(t, srv, Config{Tokens: staticToken(session.Token)})
	user, err := authed.Auth.Check(ctx)
	if err != nil {
		t.Fatalf("認証チェックに失敗: %v", err)
	}
	if user.Name != "hitoshi" {
		t.Errorf("User = %+v", user)
	}
}

func TestIntegration_LoginFailure(t *testing.T) {
	srv := newFakeBackend(t)
	defer srv.Close()

	c := newTestClient(t, srv, Config{})

	_, err := c.Auth.Login(context.Background(), "hitoshi@example.com", "wrong")
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Status != 401 {
		t.Errorf("401エラーが返るべき: %v", err)
	}
}

func TestIntegration_CommunityContentSanitized(t *testing.T) {
	srv := newFakeBackend(t)
	defer srv.Close()

	c := newTestClient(t, srv, Config{Sanitizer: scriptStripper{}})
	ctx := context.Background()

	posts, err := c.Community.ListPosts(ctx, 1, 20)
	if err != nil {
		t.Fatalf("エラー: %v", err)
	}
	if len(posts) != 1 {
		t.Fatalf("投稿数 = %d", len(posts))
	}
	// コンテンツはデコード境界でサニタイザーを通過する
	if posts[0].Content[:10] != "sanitized:" {
		t.Errorf("Content = %q, サニタイズされるべき", posts[0].Content)
	}

	comments, err := c.Community.ListComments(ctx, "post-1")
	if err != nil {
		t.Fatalf("エラー: %v", err)
	}
	if len(comments) != 1 || len(comments[0].Replies) != 1 {
		t.Fatalf("コメントと1階層の返信がデコードされるべき: %+v", comments)
	}
	if comments[0].Replies[0].Content[:10] != "sanitized:" {
		t.Error("返信のコンテンツもサニタイズされるべき")
	}
}
