package model

// RecentSearches は検索候補表示用の直近検索語を保持する有界バッファ。
// モジュールレベルの共有状態ではなく、呼び出し元が所有して受け渡す。
// 2つの独立したUIインスタンスが履歴を暗黙に共有することはない。
type RecentSearches struct {
	capacity int
	queries  []string // 新しい順
}

// defaultRecentCapacity は容量未指定時の保持件数。
const defaultRecentCapacity = 10

// NewRecentSearches は指定容量のRecentSearchesを生成する。
// capacityが0以下の場合はデフォルト値10を使用する。
func NewRecentSearches(capacity int) *RecentSearches {
	if capacity <= 0 {
		capacity = defaultRecentCapacity
	}
	return &RecentSearches{capacity: capacity}
}

// Add は検索語を先頭に追加する。既存の同一検索語は先頭へ移動し、
// 容量を超えた場合は最も古い検索語を捨てる。空文字列は無視する。
func (r *RecentSearches) Add(query string) {
	if query == "" {
		return
	}

	next := make([]string, 0, r.capacity)
	next = append(next, query)
	for _, q := range r.queries {
		if q == query {
			continue
		}
		next = append(next, q)
		if len(next) == r.capacity {
			break
		}
	}
	r.queries = next
}

// List は直近の検索語を新しい順で返す。返り値はコピーであり変更しても安全。
func (r *RecentSearches) List() []string {
	return append([]string(nil), r.queries...)
}

// Len は保持している検索語の件数を返す。
func (r *RecentSearches) Len() int {
	return len(r.queries)
}
