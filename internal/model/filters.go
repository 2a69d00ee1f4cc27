package model

import (
	"strings"
	"time"
)

// SearchFilters は猫一覧の絞り込み条件を表すクエリオブジェクト。永続化されない。
// 未設定のフィールドはワイルドカードとして扱われる。
type SearchFilters struct {
	// Location は所在地の部分一致条件（大文字小文字を区別しない）。
	Location string
	// Gender は性別の完全一致条件。nilの場合は条件なし。
	Gender *Gender
	// IsNeutered は去勢状態の完全一致条件。nilの場合は条件なし。
	IsNeutered *bool
	// Characteristics は特徴タグの条件。いずれか1つでも
	// 部分一致（大文字小文字を区別しない）すれば成立する。
	Characteristics []string
	// From / To はLastSeenの範囲条件（両端を含む）。
	From *time.Time
	To   *time.Time
}

// IsEmpty は全フィールドが未設定かを返す。
func (f SearchFilters) IsEmpty() bool {
	return f.Location == "" && f.Gender == nil && f.IsNeutered == nil &&
		len(f.Characteristics) == 0 && f.From == nil && f.To == nil
}

// MatchesFilters は設定済みの全条件を満たす場合にtrueを返す。
// フィールド間はAND、Characteristicsの値間はANYで評価され、
// 最初に不一致となった条件で短絡する。
func (c Cat) MatchesFilters(f SearchFilters) bool {
	if f.Location != "" &&
		!strings.Contains(strings.ToLower(c.Location), strings.ToLower(f.Location)) {
		return false
	}
	if f.Gender != nil && c.Gender != *f.Gender {
		return false
	}
	if f.IsNeutered != nil && c.IsNeutered != *f.IsNeutered {
		return false
	}
	if len(f.Characteristics) > 0 && !c.matchesAnyCharacteristic(f.Characteristics) {
		return false
	}
	if f.From != nil && c.LastSeen.Before(*f.From) {
		return false
	}
	if f.To != nil && c.LastSeen.After(*f.To) {
		return false
	}
	return true
}

// matchesAnyCharacteristic はいずれかの条件タグが猫の特徴に部分一致するかを返す。
func (c Cat) matchesAnyCharacteristic(wanted []string) bool {
	for _, w := range wanted {
		lw := strings.ToLower(w)
		for _, have := range c.Characteristics {
			if strings.Contains(strings.ToLower(have), lw) {
				return true
			}
		}
	}
	return false
}
