package media

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// TestNewImageFetcher はImageFetcherの生成をテストする。
func TestNewImageFetcher(t *testing.T) {
	f := NewImageFetcher(10*time.Second, 5*1024*1024)
	if f == nil {
		t.Fatal("NewImageFetcher() returned nil")
	}
	if f.client == nil {
		t.Fatal("expected HTTP client to be set, got nil")
	}
}

// TestNewImageFetcherTimeout はタイムアウト設定が反映されることをテストする。
func TestNewImageFetcherTimeout(t *testing.T) {
	timeout := 5 * time.Second
	f := NewImageFetcher(timeout, 5*1024*1024)
	if f.client.Timeout != timeout {
		t.Errorf("expected timeout %v, got %v", timeout, f.client.Timeout)
	}
}

// TestNewImageFetcherHasTransport はカスタムTransportが設定されていることをテストする。
// safeurlはnet.DialerのControlフックでIPアドレス検証を行うため、
// Transportが標準のhttp.DefaultTransportではないことを確認する。
func TestNewImageFetcherHasTransport(t *testing.T) {
	f := NewImageFetcher(5*time.Second, 5*1024*1024)

	if f.client.Transport == nil {
		t.Fatal("expected custom Transport to be set, got nil")
	}
	if f.client.Transport == http.DefaultTransport {
		t.Fatal("expected custom Transport, got http.DefaultTransport")
	}
}

// TestFetchBlocksLoopback はループバックへのリクエストがブロックされることをテストする。
// httptestサーバーは127.0.0.1で起動されるため、ValidateURLの段階でブロックされる。
func TestFetchBlocksLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("fake-image"))
	}))
	defer ts.Close()

	f := NewImageFetcher(5*time.Second, 1024)

	_, _, err := f.Fetch(ts.URL)
	if err == nil {
		t.Fatal("expected error for loopback address request, got nil")
	}
}

// TestValidateURL_PublicURL は公開URLの検証が成功することをテストする。
func TestValidateURL_PublicURL(t *testing.T) {
	publicURLs := []string{
		"https://example.com/cat.jpg",
		"https://cdn.example.com/images/nabi.png",
		"http://photos.example.org/cheese.webp",
	}

	for _, u := range publicURLs {
		t.Run(u, func(t *testing.T) {
			if err := ValidateURL(u); err != nil {
				t.Errorf("ValidateURL(%q) = %v, want nil", u, err)
			}
		})
	}
}

// TestValidateURL_BlockedURL は危険なURLの検証が失敗することをテストする。
func TestValidateURL_BlockedURL(t *testing.T) {
	blockedURLs := []string{
		"",
		"ftp://example.com/cat.jpg",
		"file:///etc/passwd",
		"https://localhost/cat.jpg",
		"http://127.0.0.1/cat.jpg",
		"http://10.0.0.5/cat.jpg",
		"http://172.16.1.1/cat.jpg",
		"http://192.168.1.10/cat.jpg",
		"http://169.254.169.254/latest/meta-data/",
		"http://[::1]/cat.jpg",
		"https://",
	}

	for _, u := range blockedURLs {
		t.Run(u, func(t *testing.T) {
			if err := ValidateURL(u); err == nil {
				t.Errorf("ValidateURL(%q) = nil, want error", u)
			}
		})
	}
}

// TestValidateURL_SchemeCaseInsensitive はスキームの大文字小文字が無視されることをテストする。
func TestValidateURL_SchemeCaseInsensitive(t *testing.T) {
	if err := ValidateURL("HTTPS://example.com/cat.jpg"); err != nil {
		t.Errorf("大文字スキームも許可されるべき: %v", err)
	}
}

// TestIsAllowedContentType はContent-Type検証をテストする。
func TestIsAllowedContentType(t *testing.T) {
	cases := []struct {
		contentType string
		want        bool
	}{
		{"image/jpeg", true},
		{"image/png", true},
		{"image/gif", true},
		{"image/webp", true},
		{"IMAGE/JPEG", true},
		{"image/jpeg; charset=binary", true},
		{"text/html", false},
		{"application/json", false},
		{"image/svg+xml", false},
		{"", false},
	}

	for _, tc := range cases {
		if got := isAllowedContentType(tc.contentType); got != tc.want {
			t.Errorf("isAllowedContentType(%q) = %v, want %v", tc.contentType, got, tc.want)
		}
	}
}
