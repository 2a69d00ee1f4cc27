// Package model はドメインモデルを定義する。
package model

import (
	"math"
	"time"
)

// Gender は猫の性別を表す。
// 不明な場合はnullではなくGenderUnknownで表現する。
type Gender string

const (
	// GenderMale はオス。
	GenderMale Gender = "male"
	// GenderFemale はメス。
	GenderFemale Gender = "female"
	// GenderUnknown は性別不明。
	GenderUnknown Gender = "unknown"
)

// earthRadiusMeters は平均地球半径（メートル）。
// 球体近似のため市街地スケールでは誤差0.5%未満だが、厳密値ではない。
const earthRadiusMeters = 6371000.0

// ReportedBy は猫を最初に報告したユーザーを表す。登録後は変更されない。
type ReportedBy struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// Coordinates は地図上の座標を表す。
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Cat は地域猫を表すイミュータブルな値型。
// 全ての変更操作は新しい値を返し、元の値を書き換えない（コピーオンライト）。
// Likes/Comments/ReportCountは負値にならない（減算は0でクランプされる）。
type Cat struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	Location        string     `json:"location"`
	Characteristics []string   `json:"characteristics"`
	EstimatedAge    string     `json:"estimatedAge"`
	Gender          Gender     `json:"gender"`
	Image           string     `json:"image,omitempty"`
	Lat             float64    `json:"lat"`
	Lng             float64    `json:"lng"`
	Likes           int        `json:"likes"`
	Comments        int        `json:"comments"`
	ReportCount     int        `json:"reportCount"`
	IsLiked         bool       `json:"isLiked"`
	IsNeutered      bool       `json:"isNeutered"`
	ReportedBy      ReportedBy `json:"reportedBy"`
	LastSeen        time.Time  `json:"lastSeen"`
}

// GenderLabel は性別の表示用ラベルを返す。全域関数でエラーは発生しない。
// male/female以外の値は全て「不明」として扱う。
func (c Cat) GenderLabel() string {
	switch c.Gender {
	case GenderMale:
		return "オス"
	case GenderFemale:
		return "メス"
	default:
		return "不明"
	}
}

// NeuteredLabel は去勢状態の表示用ラベルを返す。全域関数。
func (c Cat) NeuteredLabel() string {
	if c.IsNeutered {
		return "去勢済み"
	}
	return "未去勢"
}

// DistanceFrom は指定地点と猫の座標間の大円距離（メートル）をhaversine公式で返す。
// 対称で常に0以上、同一座標では0を返す。
// 地球を半径6,371,000mの球体として近似するため厳密な測地距離ではない。
func (c Cat) DistanceFrom(lat, lng float64) float64 {
	if c.Lat == lat && c.Lng == lng {
		return 0
	}

	lat1 := c.Lat * math.Pi / 180
	lat2 := lat * math.Pi / 180
	dLat := (lat - c.Lat) * math.Pi / 180
	dLng := (lng - c.Lng) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// 活動スコアの上限値。
const (
	maxLikesContribution    = 20.0
	maxCommentsContribution = 15.0
	maxReportsContribution  = 10.0
)

// ActivityScore は最近の目撃とコミュニティ反応を組み合わせた活動スコアを返す。
// 加点: 当日目撃+10、3日以内+5、7日以内+2、それ以外+0。
// いいねはlikes*0.5（上限20）、コメントはcomments*1（上限15）、
// 目撃報告はreportCount*0.3（上限10）。結果は四捨五入した整数。
// 相対的なランキング用であり、バージョン間で絶対値の意味は保証しない。
func (c Cat) ActivityScore() int {
	return c.activityScoreAt(time.Now())
}

// activityScoreAt は基準時刻を指定してスコアを計算する。テストから使用する。
func (c Cat) activityScoreAt(now time.Time) int {
	score := 0.0

	if !c.LastSeen.IsZero() {
		switch {
		case sameDay(c.LastSeen, now):
			score += 10
		case now.Sub(c.LastSeen) <= 3*24*time.Hour:
			score += 5
		case now.Sub(c.LastSeen) <= 7*24*time.Hour:
			score += 2
		}
	}

	score += math.Min(float64(c.Likes)*0.5, maxLikesContribution)
	score += math.Min(float64(c.Comments)*1.0, maxCommentsContribution)
	score += math.Min(float64(c.ReportCount)*0.3, maxReportsContribution)

	return int(math.Round(score))
}

// sameDay は2つの時刻が同一暦日かを判定する。
func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// IncrementLikes はいいね数を1増やした新しい値を返す。
func (c Cat) IncrementLikes() Cat {
	next := c.Clone()
	next.Likes++
	return next
}

// DecrementLikes はいいね数を1減らした新しい値を返す。0未満にはならない。
func (c Cat) DecrementLikes() Cat {
	next := c.Clone()
	if next.Likes > 0 {
		next.Likes--
	}
	return next
}

// WithCommentCount はコメント数をmax(0, n)に設定した新しい値を返す。
func (c Cat) WithCommentCount(n int) Cat {
	next := c.Clone()
	if n < 0 {
		n = 0
	}
	next.Comments = n
	return next
}

// CatPatch はCatの部分更新を表す。nilのフィールドは変更されない。
type CatPatch struct {
	Name            *string
	Description     *string
	Location        *string
	Characteristics []string
	EstimatedAge    *string
	Gender          *Gender
	Image           *string
	Lat             *float64
	Lng             *float64
	IsNeutered      *bool
	LastSeen        *time.Time
}

// Update はパッチを浅くマージした新しい値を返す。
// IDと報告者、カウンター類はこの操作では変更できない。
func (c Cat) Update(p CatPatch) Cat {
	next := c.Clone()
	if p.Name != nil {
		next.Name = *p.Name
	}
	if p.Description != nil {
		next.Description = *p.Description
	}
	if p.Location != nil {
		next.Location = *p.Location
	}
	if p.Characteristics != nil {
		next.Characteristics = append([]string(nil), p.Characteristics...)
	}
	if p.EstimatedAge != nil {
		next.EstimatedAge = *p.EstimatedAge
	}
	if p.Gender != nil {
		next.Gender = *p.Gender
	}
	if p.Image != nil {
		next.Image = *p.Image
	}
	if p.Lat != nil {
		next.Lat = *p.Lat
	}
	if p.Lng != nil {
		next.Lng = *p.Lng
	}
	if p.IsNeutered != nil {
		next.IsNeutered = *p.IsNeutered
	}
	if p.LastSeen != nil {
		next.LastSeen = *p.LastSeen
	}
	return next
}

// Clone はCatの防御的コピーを返す。スライスも複製され、元の値と状態を共有しない。
func (c Cat) Clone() Cat {
	next := c
	next.Characteristics = append([]string(nil), c.Characteristics...)
	return next
}
