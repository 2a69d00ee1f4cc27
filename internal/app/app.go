// Package app はCLIのエントリーポイントとサブコマンドの実行を提供する。
package app

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/nekomap/internal/api"
	"github.com/hitoshi/nekomap/internal/config"
	"github.com/hitoshi/nekomap/internal/logger"
	"github.com/hitoshi/nekomap/internal/media"
	"github.com/hitoshi/nekomap/internal/metrics"
	"github.com/hitoshi/nekomap/internal/model"
	"github.com/hitoshi/nekomap/internal/security"
	"github.com/hitoshi/nekomap/internal/tokenstore"
	"github.com/hitoshi/nekomap/internal/watcher"
)

// recentSearchCapacity はアプリが保持する検索履歴の最大件数。
const recentSearchCapacity = 10

// App はサブコマンド実行に必要な依存関係を保持する。
type App struct {
	cfg    *config.Config
	client *api.Client
	store  *tokenstore.Store
	recent *model.RecentSearches
	out    io.Writer
}

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、環境変数からConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) *config.Config {
	// 1. ログの初期化（標準出力はコマンド結果用のため、ログは標準エラーへ）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	return config.Load()
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応する処理を実行する。
// argsにはos.Args[1:]を渡す。結果はwに出力する。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// help は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHelp {
		printUsage(w)
		return nil
	}

	cfg := Init(nil)

	a, err := newApp(w, cfg, metrics.Noop{})
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	ctx := context.Background()
	rest := args[1:]

	switch cmd {
	case CommandCats:
		return a.runCats(ctx, rest)
	case CommandCat:
		return a.runCat(ctx, rest)
	case CommandReport:
		return a.runReport(ctx, rest)
	case CommandLike:
		return a.runLike(ctx, rest)
	case CommandNearby:
		return a.runNearby(ctx, rest)
	case CommandSearch:
		return a.runSearch(ctx, rest)
	case CommandUpload:
		return a.runUpload(ctx, rest)
	case CommandLogin:
		return a.runLogin(ctx, rest)
	case CommandRegister:
		return a.runRegister(ctx, rest)
	case CommandLogout:
		return a.runLogout(ctx)
	case CommandWhoami:
		return a.runWhoami(ctx)
	case CommandCommunity:
		return a.runCommunity(ctx, rest)
	case CommandWatch:
		return runWatch(cfg, rest)
	default:
		printUsage(w)
		return nil
	}
}

// newApp は依存関係をワイヤリングしてAppを生成する。
func newApp(w io.Writer, cfg *config.Config, recorder metrics.Recorder) (*App, error) {
	store, err := tokenstore.New(cfg.TokenPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open token store: %w", err)
	}

	client := api.New(api.Config{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.Timeout,
		Retry: api.RetryPolicy{
			MaxAttempts: cfg.RetryAttempts,
			BaseDelay:   cfg.RetryDelay,
		},
		RatePerMinute: cfg.RateLimitPerMinute,
		Tokens:        store,
		Sanitizer:     security.NewContentSanitizer(),
		Metrics:       recorder,
	})

	return &App{
		cfg:    cfg,
		client: client,
		store:  store,
		recent: model.NewRecentSearches(recentSearchCapacity),
		out:    w,
	}, nil
}

// runCats は猫一覧を取得して表示する。
// 絞り込みはサーバー側、並び替えはクライアント側で行う。
func (a *App) runCats(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("cats", flag.ContinueOnError)
	fs.SetOutput(a.out)
	page := fs.Int("page", 1, "ページ番号")
	size := fs.Int("size", 20, "1ページの件数")
	location := fs.String("location", "", "場所で絞り込み（部分一致）")
	gender := fs.String("gender", "", "性別で絞り込み (male/female/unknown)")
	neutered := fs.String("neutered", "", "去勢状態で絞り込み (true/false)")
	characteristics := fs.String("characteristics", "", "特徴で絞り込み（カンマ区切り）")
	sortKey := fs.String("sort", "lastSeen", "並び替えキー (name/lastSeen/likes/activity/distance)")
	order := fs.String("order", "desc", "並び順 (asc/desc)")
	lat := fs.Float64("lat", 0, "distance並び替えの基準緯度")
	lng := fs.Float64("lng", 0, "distance並び替えの基準経度")
	if err := fs.Parse(args); err != nil {
		return err
	}

	params := api.ListCatsParams{Page: *page, Size: *size}
	params.Filters.Location = *location
	if *gender != "" {
		g := model.Gender(*gender)
		params.Filters.Gender = &g
	}
	if *neutered != "" {
		v := *neutered == "true"
		params.Filters.IsNeutered = &v
	}
	if *characteristics != "" {
		params.Filters.Characteristics = splitComma(*characteristics)
	}

	result, err := a.client.Cats.List(ctx, params)
	if err != nil {
		return err
	}

	var ref *model.Coordinates
	if *lat != 0 || *lng != 0 {
		ref = &model.Coordinates{Lat: *lat, Lng: *lng}
	}
	cats := model.SortCats(result.Cats, model.SortKey(*sortKey), model.SortOrder(*order), ref)

	a.printCatTable(cats)
	fmt.Fprintf(a.out, "%d件中 %d件を表示 (ページ %d/%d)\n", result.Total, len(cats), result.Page, result.TotalPages)
	return nil
}

// runCat は猫の詳細を表示する。
func (a *App) runCat(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("使い方: nekomap cat <猫ID>")
	}

	cat, err := a.client.Cats.Get(ctx, args[0])
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", cat.ID)
	fmt.Fprintf(tw, "名前:\t%s\n", cat.Name)
	fmt.Fprintf(tw, "場所:\t%s\n", cat.Location)
	fmt.Fprintf(tw, "説明:\t%s\n", cat.Description)
	fmt.Fprintf(tw, "推定年齢:\t%s\n", cat.EstimatedAge)
	fmt.Fprintf(tw, "性別:\t%s\n", cat.GenderLabel())
	fmt.Fprintf(tw, "去勢状態:\t%s\n", cat.NeuteredLabel())
	fmt.Fprintf(tw, "特徴:\t%s\n", strings.Join(cat.Characteristics, ", "))
	fmt.Fprintf(tw, "いいね:\t%d\n", cat.Likes)
	fmt.Fprintf(tw, "コメント:\t%d\n", cat.Comments)
	fmt.Fprintf(tw, "報告数:\t%d\n", cat.ReportCount)
	fmt.Fprintf(tw, "活動スコア:\t%d\n", cat.ActivityScore())
	fmt.Fprintf(tw, "最終目撃:\t%s\n", cat.LastSeen.Format(time.RFC3339))
	fmt.Fprintf(tw, "報告者:\t%s\n", cat.ReportedBy.Name)
	return tw.Flush()
}

// runReport は新しい猫を報告する。
func (a *App) runReport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.SetOutput(a.out)
	name := fs.String("name", "", "猫の名前（必須）")
	location := fs.String("location", "", "目撃場所（必須）")
	description := fs.String("description", "", "説明")
	characteristics := fs.String("characteristics", "", "特徴（カンマ区切り、必須）")
	age := fs.String("age", "", "推定年齢")
	gender := fs.String("gender", "", "性別 (male/female/unknown)")
	neutered := fs.Bool("neutered", false, "去勢済みかどうか")
	lat := fs.Float64("lat", 0, "緯度")
	lng := fs.Float64("lng", 0, "経度")
	if err := fs.Parse(args); err != nil {
		return err
	}

	draft := api.CatDraft{
		Name:            *name,
		Location:        *location,
		Description:     *description,
		Characteristics: splitComma(*characteristics),
		EstimatedAge:    *age,
		Gender:          model.Gender(*gender),
		IsNeutered:      *neutered,
		Coordinates:     model.Coordinates{Lat: *lat, Lng: *lng},
	}

	cat, err := a.client.Cats.Create(ctx, draft)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "猫を報告しました: %s (ID: %s)\n", cat.Name, cat.ID)
	return nil
}

// runLike はいいねをトグルする。
func (a *App) runLike(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("使い方: nekomap like <猫ID>")
	}

	result, err := a.client.Cats.ToggleLike(ctx, args[0])
	if err != nil {
		return err
	}

	if result.IsLiked {
		fmt.Fprintf(a.out, "いいねしました (合計: %d)\n", result.LikeCount)
	} else {
		fmt.Fprintf(a.out, "いいねを取り消しました (合計: %d)\n", result.LikeCount)
	}
	return nil
}

// runNearby は周辺の猫を検索して距離順に表示する。
func (a *App) runNearby(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("nearby", flag.ContinueOnError)
	fs.SetOutput(a.out)
	lat := fs.Float64("lat", 0, "緯度（必須）")
	lng := fs.Float64("lng", 0, "経度（必須）")
	radius := fs.Float64("radius", 1000, "半径（メートル）")
	limit := fs.Int("limit", 20, "最大件数")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *lat == 0 && *lng == 0 {
		return fmt.Errorf("-lat と -lng を指定してください")
	}

	cats, err := a.client.Cats.Nearby(ctx, *lat, *lng, *radius, *limit)
	if err != nil {
		return err
	}

	ref := model.Coordinates{Lat: *lat, Lng: *lng}
	sorted := model.SortCats(cats, model.SortByDistance, model.OrderAsc, &ref)

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\t名前\t場所\t距離(m)\tスコア")
	for _, cat := range sorted {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.0f\t%d\n",
			cat.ID, cat.Name, cat.Location, cat.DistanceFrom(ref.Lat, ref.Lng), cat.ActivityScore())
	}
	return tw.Flush()
}

// runSearch はキーワード検索を実行し、検索履歴に追加する。
func (a *App) runSearch(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("使い方: nekomap search <キーワード>")
	}
	query := strings.Join(args, " ")

	cats, err := a.client.Cats.Search(ctx, query)
	if err != nil {
		return err
	}

	a.recent.Add(query)

	a.printCatTable(cats)
	fmt.Fprintf(a.out, "%d件が見つかりました\n", len(cats))
	if recent := a.recent.List(); len(recent) > 1 {
		fmt.Fprintf(a.out, "最近の検索: %s\n", strings.Join(recent, ", "))
	}
	return nil
}

// runUpload は猫の写真をアップロードする。
// ローカルファイルパスとリモートURLの両方を受け付ける。
func (a *App) runUpload(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("使い方: nekomap upload <猫ID> <ファイルパスまたはURL>")
	}
	catID, source := args[0], args[1]

	var content []byte
	var fileName string

	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		fetcher := media.NewImageFetcher(a.cfg.Timeout, a.cfg.UploadMaxSize)
		data, _, err := fetcher.Fetch(source)
		if err != nil {
			return err
		}
		content = data
		fileName = fileNameFromURL(source)
	} else {
		data, err := os.ReadFile(source)
		if err != nil {
			return fmt.Errorf("画像ファイルの読み込みに失敗: %w", err)
		}
		if int64(len(data)) > a.cfg.UploadMaxSize {
			return fmt.Errorf("画像がサイズ上限を超えています (%dバイト)", a.cfg.UploadMaxSize)
		}
		content = data
		fileName = fileNameFromURL(source)
	}

	urls, err := a.client.Cats.UploadImage(ctx, catID, fileName, content)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "アップロードが完了しました:\n")
	for _, u := range urls {
		fmt.Fprintf(a.out, "  %s\n", u)
	}
	return nil
}

// runLogin はログインしてトークンを保存する。
func (a *App) runLogin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(a.out)
	email := fs.String("email", "", "メールアドレス")
	password := fs.String("password", "", "パスワード")
	if err := fs.Parse(args); err != nil {
		return err
	}

	session, err := a.client.Auth.Login(ctx, *email, *password)
	if err != nil {
		return err
	}

	if err := a.store.Save(session.Token); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "ログインしました: %s\n", session.User.Name)
	return nil
}

// runRegister はアカウントを登録してトークンを保存する。
func (a *App) runRegister(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	fs.SetOutput(a.out)
	email := fs.String("email", "", "メールアドレス")
	password := fs.String("password", "", "パスワード")
	name := fs.String("name", "", "表示名")
	if err := fs.Parse(args); err != nil {
		return err
	}

	session, err := a.client.Auth.Register(ctx, *email, *password, *name)
	if err != nil {
		return err
	}

	if err := a.store.Save(session.Token); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "登録が完了しました: %s\n", session.User.Name)
	return nil
}

// runLogout はログアウトしてローカルのトークンを削除する。
// サーバー側のログアウトが失敗してもローカルのトークンは削除する。
func (a *App) runLogout(ctx context.Context) error {
	if err := a.client.Auth.Logout(ctx); err != nil {
		slog.Warn("サーバー側のログアウトに失敗しました",
			slog.String("error", err.Error()),
		)
	}

	if err := a.store.Clear(); err != nil {
		return err
	}

	fmt.Fprintln(a.out, "ログアウトしました")
	return nil
}

// runWhoami はログイン中のユーザー情報を表示する。
func (a *App) runWhoami(ctx context.Context) error {
	user, err := a.client.Auth.Check(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "%s <%s>\n", user.Name, user.Email)
	return nil
}

// runCommunity はコミュニティ投稿の表示・作成を行う。
func (a *App) runCommunity(ctx context.Context, args []string) error {
	sub := "list"
	if len(args) > 0 {
		sub = args[0]
		args = args[1:]
	}

	switch sub {
	case "list":
		fs := flag.NewFlagSet("community list", flag.ContinueOnError)
		fs.SetOutput(a.out)
		page := fs.Int("page", 1, "ページ番号")
		size := fs.Int("size", 20, "1ページの件数")
		if err := fs.Parse(args); err != nil {
			return err
		}
		posts, err := a.client.Community.ListPosts(ctx, *page, *size)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\t投稿者\tいいね\tコメント\t内容")
		for _, p := range posts {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n",
				p.ID, p.Author.Name, p.Likes, p.Comments, truncate(p.Content, 40))
		}
		return tw.Flush()

	case "post":
		fs := flag.NewFlagSet("community post", flag.ContinueOnError)
		fs.SetOutput(a.out)
		content := fs.String("content", "", "投稿内容")
		if err := fs.Parse(args); err != nil {
			return err
		}
		post, err := a.client.Community.CreatePost(ctx, *content)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "投稿しました (ID: %s)\n", post.ID)
		return nil

	case "comments":
		if len(args) == 0 {
			return fmt.Errorf("使い方: nekomap community comments <投稿ID>")
		}
		comments, err := a.client.Community.ListComments(ctx, args[0])
		if err != nil {
			return err
		}
		for _, c := range comments {
			fmt.Fprintf(a.out, "%s: %s\n", c.Author.Name, c.Content)
			for _, r := range c.Replies {
				fmt.Fprintf(a.out, "  └ %s: %s\n", r.Author.Name, r.Content)
			}
		}
		return nil

	case "comment":
		if len(args) == 0 {
			return fmt.Errorf("使い方: nekomap community comment <投稿ID> -content <内容>")
		}
		postID := args[0]
		fs := flag.NewFlagSet("community comment", flag.ContinueOnError)
		fs.SetOutput(a.out)
		content := fs.String("content", "", "コメント内容")
		replyTo := fs.String("reply-to", "", "返信先コメントID")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		comment, err := a.client.Community.CreateComment(ctx, postID, *content, *replyTo)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "コメントしました (ID: %s)\n", comment.ID)
		return nil

	case "like":
		if len(args) == 0 {
			return fmt.Errorf("使い方: nekomap community like <投稿ID>")
		}
		result, err := a.client.Community.ToggleLike(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "いいね: %v (合計: %d)\n", result.IsLiked, result.LikeCount)
		return nil

	default:
		return fmt.Errorf("不明なサブコマンド: community %s", sub)
	}
}

// runWatch は周辺監視モードで起動する。
// Prometheusメトリクスのエンドポイントを起動し、
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWatch(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	lat := fs.Float64("lat", 0, "監視地点の緯度（必須）")
	lng := fs.Float64("lng", 0, "監視地点の経度（必須）")
	radius := fs.Float64("radius", 1000, "監視半径（メートル）")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *lat == 0 && *lng == 0 {
		return fmt.Errorf("-lat と -lng を指定してください")
	}

	// 監視モードではメトリクスを収集してHTTPで公開する
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	a, err := newApp(os.Stdout, cfg, collector)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	center := model.Coordinates{Lat: *lat, Lng: *lng}
	w := watcher.New(a.client.Cats, slog.Default(), center, *radius, cfg.WatchInterval)

	metricsServer := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: metrics.SetupMetricsRoute(registry),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down watcher...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.String("error", err.Error()))
		}
	}()

	go func() {
		slog.Info("metrics server starting", slog.String("addr", metricsServer.Addr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server listen error", slog.String("error", err.Error()))
		}
	}()

	// 監視をメインgoroutineで実行（ブロッキング）
	w.Start(ctx)

	slog.Info("watcher stopped gracefully")
	return nil
}

// printCatTable は猫一覧をタブ区切りテーブルで出力する。
func (a *App) printCatTable(cats []model.Cat) {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\t名前\t場所\t性別\tいいね\tスコア\t最終目撃")
	for _, cat := range cats {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			cat.ID, cat.Name, cat.Location, cat.GenderLabel(),
			cat.Likes, cat.ActivityScore(), cat.LastSeen.Format("2006-01-02 15:04"))
	}
	tw.Flush()
}

// printUsage は使い方を出力する。
func printUsage(w io.Writer) {
	fmt.Fprint(w, `nekomap - 地域の野良猫マップクライアント

使い方:
  nekomap <コマンド> [オプション]

コマンド:
  cats       猫一覧を表示する
  cat        猫の詳細を表示する
  report     新しい猫を報告する
  like       いいねをトグルする
  nearby     周辺の猫を検索する
  search     キーワードで検索する
  upload     猫の写真をアップロードする
  login      ログインする
  register   アカウントを登録する
  logout     ログアウトする
  whoami     ログイン中のユーザーを表示する
  community  コミュニティ投稿を表示・作成する
  watch      周辺監視モードで起動する
  help       この使い方を表示する

各コマンドのオプションは -h で確認できます。
`)
}

// splitComma はカンマ区切り文字列を分割し、空要素を除外する。
func splitComma(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// fileNameFromURL はパスまたはURLから末尾のファイル名を取り出す。
func fileNameFromURL(source string) string {
	trimmed := strings.TrimRight(source, "/")
	if idx := strings.LastIndexAny(trimmed, "/\\"); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	if idx := strings.IndexAny(trimmed, "?#"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	if trimmed == "" {
		return "image.jpg"
	}
	return trimmed
}

// truncate は表示用に文字列を最大長で切り詰める。
// マルチバイト文字の途中で切れないようルーン単位で扱う。
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
