package model

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortKey は猫一覧の並び替えキーを表す。
type SortKey string

const (
	// SortByName は名前順（ロケールに基づく照合順序）。
	SortByName SortKey = "name"
	// SortByLastSeen は最終目撃日時順。
	SortByLastSeen SortKey = "lastSeen"
	// SortByLikes はいいね数順。
	SortByLikes SortKey = "likes"
	// SortByActivity は活動スコア順。
	SortByActivity SortKey = "activity"
	// SortByDistance は基準地点からの距離順。
	SortByDistance SortKey = "distance"
)

// SortOrder は並び替えの方向を表す。
type SortOrder string

const (
	// OrderAsc は昇順。
	OrderAsc SortOrder = "asc"
	// OrderDesc は降順。
	OrderDesc SortOrder = "desc"
)

// SortCats は指定キーで安定ソートした新しいスライスを返す。入力は変更しない。
// orderがOrderDescの場合は比較を反転する。
// key=SortByDistanceでrefがnilの場合、全比較が0に退化し元の順序が保たれる
// （エラーにはしない。位置情報なしで距離ソートを指定した呼び出し元の既知の挙動）。
func SortCats(cats []Cat, key SortKey, order SortOrder, ref *Coordinates) []Cat {
	result := append([]Cat(nil), cats...)

	cmp := comparator(key, ref)
	sort.SliceStable(result, func(i, j int) bool {
		c := cmp(result[i], result[j])
		if order == OrderDesc {
			return c > 0
		}
		return c < 0
	})

	return result
}

// comparator はソートキーに対応する比較関数を返す。
// 戻り値はa<bで負、a>bで正、等価で0。
func comparator(key SortKey, ref *Coordinates) func(a, b Cat) int {
	switch key {
	case SortByName:
		// 照合順序はサービスの主要ロケールである韓国語に従う。
		col := collate.New(language.Korean)
		return func(a, b Cat) int {
			return col.CompareString(a.Name, b.Name)
		}
	case SortByLastSeen:
		return func(a, b Cat) int {
			switch {
			case a.LastSeen.Before(b.LastSeen):
				return -1
			case a.LastSeen.After(b.LastSeen):
				return 1
			default:
				return 0
			}
		}
	case SortByLikes:
		return func(a, b Cat) int { return a.Likes - b.Likes }
	case SortByActivity:
		return func(a, b Cat) int { return a.ActivityScore() - b.ActivityScore() }
	case SortByDistance:
		return func(a, b Cat) int {
			if ref == nil {
				return 0
			}
			da := a.DistanceFrom(ref.Lat, ref.Lng)
			db := b.DistanceFrom(ref.Lat, ref.Lng)
			switch {
			case da < db:
				return -1
			case da > db:
				return 1
			default:
				return 0
			}
		}
	default:
		return func(a, b Cat) int { return 0 }
	}
}

// FilterCats は条件を満たす猫のみを元の順序で返す。
// 空の条件では入力と同じ内容のスライスを返す。
func FilterCats(cats []Cat, f SearchFilters) []Cat {
	result := make([]Cat, 0, len(cats))
	for _, c := range cats {
		if c.MatchesFilters(f) {
			result = append(result, c)
		}
	}
	return result
}
