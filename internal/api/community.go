package api

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"time"

	"github.com/hitoshi/nekomap/internal/model"
)

// CommunityAPI はコミュニティ掲示板の操作を提供する。
// 投稿・コメントのコンテンツはデコード境界でサニタイズされ、
// 未サニタイズのHTMLがこの層の外へ漏れることはない。
type CommunityAPI struct {
	client    *Client
	sanitizer Sanitizer
}

// postPayload はコミュニティ投稿のワイヤー表現。
type postPayload struct {
	ID        string       `json:"id"`
	Author    model.Author `json:"author"`
	Content   string       `json:"content"`
	CreatedAt time.Time    `json:"createdAt"`
	Likes     int          `json:"likes"`
	Comments  int          `json:"comments"`
	IsLiked   bool         `json:"isLiked"`
}

func (p postPayload) toModel(s Sanitizer) model.CommunityPost {
	return model.CommunityPost{
		ID:        p.ID,
		Author:    p.Author,
		Content:   s.Sanitize(p.Content),
		CreatedAt: p.CreatedAt,
		Likes:     clampNonNegative(p.Likes),
		Comments:  clampNonNegative(p.Comments),
		IsLiked:   p.IsLiked,
	}
}

// commentPayload はコメントのワイヤー表現。返信は1階層のみデコードする。
type commentPayload struct {
	ID        string           `json:"id"`
	Author    model.Author     `json:"author"`
	Content   string           `json:"content"`
	CreatedAt time.Time        `json:"createdAt"`
	Likes     int              `json:"likes"`
	Replies   []commentPayload `json:"replies"`
}

func (p commentPayload) toModel(s Sanitizer) model.CommunityComment {
	var replies []model.CommunityComment
	for _, r := range p.Replies {
		// ネストは1階層まで。それより深い返信は仕様上存在しない。
		replies = append(replies, model.CommunityComment{
			ID:        r.ID,
			Author:    r.Author,
			Content:   s.Sanitize(r.Content),
			CreatedAt: r.CreatedAt,
			Likes:     clampNonNegative(r.Likes),
		})
	}
	return model.CommunityComment{
		ID:        p.ID,
		Author:    p.Author,
		Content:   s.Sanitize(p.Content),
		CreatedAt: p.CreatedAt,
		Likes:     clampNonNegative(p.Likes),
		Replies:   replies,
	}
}

// ListPosts はコミュニティ投稿の一覧を取得する。GET /community/posts
func (a *CommunityAPI) ListPosts(ctx context.Context, page, size int) ([]model.CommunityPost, error) {
	query := url.Values{}
	if page > 0 {
		query.Set("page", strconv.Itoa(page))
	}
	if size > 0 {
		query.Set("size", strconv.Itoa(size))
	}

	var payload struct {
		Posts []postPayload `json:"posts"`
	}
	if err := a.client.Get(ctx, "/community/posts", query, &payload); err != nil {
		return nil, err
	}

	posts := make([]model.CommunityPost, 0, len(payload.Posts))
	for _, p := range payload.Posts {
		posts = append(posts, p.toModel(a.sanitizer))
	}
	return posts, nil
}

// CreatePost は新しい投稿を作成する。POST /community/posts
func (a *CommunityAPI) CreatePost(ctx context.Context, content string) (model.CommunityPost, error) {
	if content == "" {
		return model.CommunityPost{}, errors.New("投稿内容は必須です")
	}

	body := map[string]string{"content": content}
	var payload postPayload
	if err := a.client.Post(ctx, "/community/posts", body, &payload); err != nil {
		return model.CommunityPost{}, err
	}
	return payload.toModel(a.sanitizer), nil
}

// GetPost は指定IDの投稿を取得する。GET /community/posts/{id}
func (a *CommunityAPI) GetPost(ctx context.Context, id string) (model.CommunityPost, error) {
	var payload postPayload
	if err := a.client.Get(ctx, "/community/posts/"+url.PathEscape(id), nil, &payload); err != nil {
		return model.CommunityPost{}, err
	}
	return payload.toModel(a.sanitizer), nil
}

// ToggleLike は投稿のいいね状態をトグルする。POST /community/posts/{id}/like
func (a *CommunityAPI) ToggleLike(ctx context.Context, id string) (LikeResult, error) {
	var result LikeResult
	path := "/community/posts/" + url.PathEscape(id) + "/like"
	if err := a.client.Post(ctx, path, nil, &result); err != nil {
		return LikeResult{}, err
	}
	result.LikeCount = clampNonNegative(result.LikeCount)
	return result, nil
}

// ListComments は投稿へのコメント一覧を取得する。GET /community/posts/{id}/comments
func (a *CommunityAPI) ListComments(ctx context.Context, postID string) ([]model.CommunityComment, error) {
	var payload struct {
		Comments []commentPayload `json:"comments"`
	}
	path := "/community/posts/" + url.PathEscape(postID) + "/comments"
	if err := a.client.Get(ctx, path, nil, &payload); err != nil {
		return nil, err
	}

	comments := make([]model.CommunityComment, 0, len(payload.Comments))
	for _, p := range payload.Comments {
		comments = append(comments, p.toModel(a.sanitizer))
	}
	return comments, nil
}

// CreateComment は投稿へのコメントを作成する。POST /community/posts/{id}/comments
// replyToが空でない場合は既存コメントへの返信として作成される。
func (a *CommunityAPI) CreateComment(ctx context.Context, postID, content, replyTo string) (model.CommunityComment, error) {
	if content == "" {
		return model.CommunityComment{}, errors.New("コメント内容は必須です")
	}

	body := map[string]string{"content": content}
	if replyTo != "" {
		body["replyTo"] = replyTo
	}

	var payload commentPayload
	path := "/community/posts/" + url.PathEscape(postID) + "/comments"
	if err := a.client.Post(ctx, path, body, &payload); err != nil {
		return model.CommunityComment{}, err
	}
	return payload.toModel(a.sanitizer), nil
}
