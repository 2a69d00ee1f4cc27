package model

import "time"

// Author は投稿やコメントの作成者を表す。
type Author struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// CommunityPost はコミュニティ掲示板の投稿を表すイミュータブルな値型。
// Likes/Commentsは負値にならない。
type CommunityPost struct {
	ID        string    `json:"id"`
	Author    Author    `json:"author"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	Likes     int       `json:"likes"`
	Comments  int       `json:"comments"`
	IsLiked   bool      `json:"isLiked"`
}

// IncrementLikes はいいね数を1増やした新しい値を返す。
func (p CommunityPost) IncrementLikes() CommunityPost {
	p.Likes++
	return p
}

// DecrementLikes はいいね数を1減らした新しい値を返す。0未満にはならない。
func (p CommunityPost) DecrementLikes() CommunityPost {
	if p.Likes > 0 {
		p.Likes--
	}
	return p
}

// WithCommentCount はコメント数をmax(0, n)に設定した新しい値を返す。
func (p CommunityPost) WithCommentCount(n int) CommunityPost {
	if n < 0 {
		n = 0
	}
	p.Comments = n
	return p
}

// CommunityComment は投稿へのコメントを表す。
// 返信は1階層のみ（返信への返信は存在しない）。
type CommunityComment struct {
	ID        string             `json:"id"`
	Author    Author             `json:"author"`
	Content   string             `json:"content"`
	CreatedAt time.Time          `json:"createdAt"`
	Likes     int                `json:"likes"`
	Replies   []CommunityComment `json:"replies,omitempty"`
}

// Clone はコメントの防御的コピーを返す。返信スライスも複製される。
func (c CommunityComment) Clone() CommunityComment {
	next := c
	next.Replies = append([]CommunityComment(nil), c.Replies...)
	return next
}
