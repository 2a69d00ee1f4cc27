package model

import "testing"

func TestCommunityPost_LikesClamp(t *testing.T) {
	p := CommunityPost{Likes: 0}

	if got := p.DecrementLikes().Likes; got != 0 {
		t.Errorf("likes=0からの減算 = %d, 負値になってはならない", got)
	}
	if got := p.IncrementLikes().DecrementLikes().Likes; got != 0 {
		t.Errorf("加算→減算のラウンドトリップ = %d, want 0", got)
	}
}

func TestCommunityPost_WithCommentCount(t *testing.T) {
	p := CommunityPost{Comments: 3}

	if got := p.WithCommentCount(10).Comments; got != 10 {
		t.Errorf("WithCommentCount(10) = %d", got)
	}
	if got := p.WithCommentCount(-1).Comments; got != 0 {
		t.Errorf("負のコメント数は0にクランプされるべき: %d", got)
	}
	if p.Comments != 3 {
		t.Error("元の値が変更された")
	}
}

func TestCommunityComment_CloneReplies(t *testing.T) {
	c := CommunityComment{
		ID:      "c1",
		Replies: []CommunityComment{{ID: "r1"}},
	}

	clone := c.Clone()
	clone.Replies[0].ID = "changed"

	if c.Replies[0].ID != "r1" {
		t.Error("CloneのRepliesが元の値と状態を共有している")
	}
}
