package api

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/hitoshi/nekomap/internal/model"
)

// CatAPI は猫リソースの操作を提供する。
type CatAPI struct {
	client *Client
}

// catPayload は猫リソースのワイヤー表現。
// サーバーのバリアント（imageBase64エイリアス、coordinatesネスト等）を含み、
// デコード時に正規のmodel.Catへ正規化される。エイリアスはこの層の外へ漏れない。
type catPayload struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Location        string    `json:"location"`
	Characteristics []string  `json:"characteristics"`
	EstimatedAge    string    `json:"estimatedAge"`
	Gender          string    `json:"gender"`
	Image           string    `json:"image"`
	ImageBase64     string    `json:"imageBase64"` // 旧バージョンのサーバーが返すエイリアス
	Lat             float64   `json:"lat"`
	Lng             float64   `json:"lng"`
	Coordinates     *model.Coordinates `json:"coordinates"`
	Likes           int       `json:"likes"`
	Comments        int       `json:"comments"`
	ReportCount     int       `json:"reportCount"`
	IsLiked         bool      `json:"isLiked"`
	IsNeutered      bool      `json:"isNeutered"`
	ReportedBy      model.ReportedBy `json:"reportedBy"`
	LastSeen        time.Time `json:"lastSeen"`
}

// toModel はワイヤー表現を正規のドメインモデルへ変換する。
// カウンターは0未満にならないようクランプし、性別の欠損はunknownとして扱う。
func (p catPayload) toModel() model.Cat {
	image := p.Image
	if image == "" {
		image = p.ImageBase64
	}

	lat, lng := p.Lat, p.Lng
	if p.Coordinates != nil {
		lat, lng = p.Coordinates.Lat, p.Coordinates.Lng
	}

	gender := model.Gender(p.Gender)
	switch gender {
	case model.GenderMale, model.GenderFemale:
	default:
		gender = model.GenderUnknown
	}

	return model.Cat{
		ID:              p.ID,
		Name:            p.Name,
		Description:     p.Description,
		Location:        p.Location,
		Characteristics: append([]string(nil), p.Characteristics...),
		EstimatedAge:    p.EstimatedAge,
		Gender:          gender,
		Image:           image,
		Lat:             lat,
		Lng:             lng,
		Likes:           clampNonNegative(p.Likes),
		Comments:        clampNonNegative(p.Comments),
		ReportCount:     clampNonNegative(p.ReportCount),
		IsLiked:         p.IsLiked,
		IsNeutered:      p.IsNeutered,
		ReportedBy:      p.ReportedBy,
		LastSeen:        p.LastSeen,
	}
}

func clampNonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// ListCatsParams は猫一覧取得のパラメータ。
type ListCatsParams struct {
	Page    int
	Size    int
	Filters model.SearchFilters
}

// CatPage は猫一覧のページネーション付き結果。
type CatPage struct {
	Cats       []model.Cat
	Page       int
	Size       int
	Total      int
	TotalPages int
}

// listCatsPayload は一覧エンドポイントのdata部。
type listCatsPayload struct {
	Cats       []catPayload `json:"cats"`
	Page       int          `json:"page"`
	Size       int          `json:"size"`
	Total      int          `json:"total"`
	TotalPages int          `json:"totalPages"`
}

// List は猫の一覧をページネーション付きで取得する。
// GET /cats?page&size&location&gender&isNeutered&characteristics*
func (a *CatAPI) List(ctx context.Context, p ListCatsParams) (CatPage, error) {
	query := url.Values{}
	if p.Page > 0 {
		query.Set("page", strconv.Itoa(p.Page))
	}
	if p.Size > 0 {
		query.Set("size", strconv.Itoa(p.Size))
	}
	if p.Filters.Location != "" {
		query.Set("location", p.Filters.Location)
	}
	if p.Filters.Gender != nil {
		query.Set("gender", string(*p.Filters.Gender))
	}
	if p.Filters.IsNeutered != nil {
		query.Set("isNeutered", strconv.FormatBool(*p.Filters.IsNeutered))
	}
	for _, ch := range p.Filters.Characteristics {
		query.Add("characteristics", ch)
	}

	var payload listCatsPayload
	if err := a.client.Get(ctx, "/cats", query, &payload); err != nil {
		return CatPage{}, err
	}

	return CatPage{
		Cats:       toModels(payload.Cats),
		Page:       payload.Page,
		Size:       payload.Size,
		Total:      payload.Total,
		TotalPages: payload.TotalPages,
	}, nil
}

// Get は指定IDの猫を取得する。GET /cats/{id}
func (a *CatAPI) Get(ctx context.Context, id string) (model.Cat, error) {
	var payload catPayload
	if err := a.client.Get(ctx, "/cats/"+url.PathEscape(id), nil, &payload); err != nil {
		return model.Cat{}, err
	}
	return payload.toModel(), nil
}

// CatDraft は登録時にクライアントが送信するドラフト。
// id、likes、comments等はサーバーが採番・初期化する。
type CatDraft struct {
	Name            string            `json:"name"`
	Location        string            `json:"location"`
	Description     string            `json:"description"`
	Characteristics []string          `json:"characteristics"`
	IsNeutered      bool              `json:"isNeutered"`
	EstimatedAge    string            `json:"estimatedAge"`
	Gender          model.Gender      `json:"gender"`
	Coordinates     model.Coordinates `json:"coordinates"`
}

// Validate は登録ワークフローが保証すべき事前条件を検証する。
// ドメインモデル自体は検証を行わないため、送信前のこの時点で強制する。
func (d CatDraft) Validate() error {
	if d.Name == "" {
		return errors.New("名前は必須です")
	}
	if d.Location == "" {
		return errors.New("発見場所は必須です")
	}
	if len(d.Characteristics) == 0 {
		return errors.New("特徴タグを1つ以上指定してください")
	}
	return nil
}

// Create は新しい猫を登録する。POST /cats
// 送信前にドラフトを検証し、不正な場合はHTTPリクエストを行わない。
func (a *CatAPI) Create(ctx context.Context, draft CatDraft) (model.Cat, error) {
	if err := draft.Validate(); err != nil {
		return model.Cat{}, err
	}
	if draft.Gender == "" {
		draft.Gender = model.GenderUnknown
	}

	var payload catPayload
	if err := a.client.Post(ctx, "/cats", draft, &payload); err != nil {
		return model.Cat{}, err
	}
	return payload.toModel(), nil
}

// Update は猫の部分更新を行う。PUT /cats/{id}
// nilでないフィールドのみが送信される。
func (a *CatAPI) Update(ctx context.Context, id string, patch model.CatPatch) (model.Cat, error) {
	body := map[string]any{}
	if patch.Name != nil {
		body["name"] = *patch.Name
	}
	if patch.Description != nil {
		body["description"] = *patch.Description
	}
	if patch.Location != nil {
		body["location"] = *patch.Location
	}
	if patch.Characteristics != nil {
		body["characteristics"] = patch.Characteristics
	}
	if patch.EstimatedAge != nil {
		body["estimatedAge"] = *patch.EstimatedAge
	}
	if patch.Gender != nil {
		body["gender"] = string(*patch.Gender)
	}
	if patch.Image != nil {
		body["image"] = *patch.Image
	}
	if patch.Lat != nil && patch.Lng != nil {
		body["coordinates"] = model.Coordinates{Lat: *patch.Lat, Lng: *patch.Lng}
	}
	if patch.IsNeutered != nil {
		body["isNeutered"] = *patch.IsNeutered
	}
	if patch.LastSeen != nil {
		body["lastSeen"] = patch.LastSeen.Format(time.RFC3339)
	}

	var payload catPayload
	if err := a.client.Put(ctx, "/cats/"+url.PathEscape(id), body, &payload); err != nil {
		return model.Cat{}, err
	}
	return payload.toModel(), nil
}

// Delete は猫を削除する。DELETE /cats/{id}
// UIフローでは使用されないがAPIの能力として公開されている。
func (a *CatAPI) Delete(ctx context.Context, id string) error {
	return a.client.Delete(ctx, "/cats/"+url.PathEscape(id), nil)
}

// LikeResult はいいねトグルの結果。
type LikeResult struct {
	IsLiked   bool `json:"isLiked"`
	LikeCount int  `json:"likeCount"`
}

// ToggleLike はいいね状態をトグルする。POST /cats/{id}/like
func (a *CatAPI) ToggleLike(ctx context.Context, id string) (LikeResult, error) {
	var result LikeResult
	if err := a.client.Post(ctx, "/cats/"+url.PathEscape(id)+"/like", nil, &result); err != nil {
		return LikeResult{}, err
	}
	result.LikeCount = clampNonNegative(result.LikeCount)
	return result, nil
}

// Nearby は指定地点の周辺にいる猫を検索する。GET /cats/nearby?lat&lng&radius&limit
// radiusの単位はメートル。
func (a *CatAPI) Nearby(ctx context.Context, lat, lng, radius float64, limit int) ([]model.Cat, error) {
	query := url.Values{}
	query.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	query.Set("lng", strconv.FormatFloat(lng, 'f', -1, 64))
	query.Set("radius", strconv.FormatFloat(radius, 'f', -1, 64))
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var payload struct {
		Cats []catPayload `json:"cats"`
	}
	if err := a.client.Get(ctx, "/cats/nearby", query, &payload); err != nil {
		return nil, err
	}
	return toModels(payload.Cats), nil
}

// Search はフリーテキストで猫を検索する。GET /cats/search?q=
func (a *CatAPI) Search(ctx context.Context, q string) ([]model.Cat, error) {
	query := url.Values{}
	query.Set("q", q)

	var payload struct {
		Cats []catPayload `json:"cats"`
	}
	if err := a.client.Get(ctx, "/cats/search", query, &payload); err != nil {
		return nil, err
	}
	return toModels(payload.Cats), nil
}

// UploadImage は猫の画像をmultipartでアップロードする。POST /cats/{id}/images
// 返り値はアップロード後の画像URL。
func (a *CatAPI) UploadImage(ctx context.Context, id, fileName string, content []byte) ([]string, error) {
	if len(content) == 0 {
		return nil, fmt.Errorf("画像データが空です: %s", fileName)
	}

	var payload struct {
		URLs []string `json:"urls"`
	}
	path := "/cats/" + url.PathEscape(id) + "/images"
	if err := a.client.UploadFile(ctx, path, "images", fileName, content, &payload); err != nil {
		return nil, err
	}
	return payload.URLs, nil
}

// toModels はワイヤー表現のスライスをドメインモデルへ変換する。
func toModels(payloads []catPayload) []model.Cat {
	cats := make([]model.Cat, 0, len(payloads))
	for _, p := range payloads {
		cats = append(cats, p.toModel())
	}
	return cats
}
