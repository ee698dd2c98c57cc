package model

// Marker 地図に描画するための派生データ（永続化しない）
type Marker struct {
	ID          string     `json:"id"`
	EntityID    string     `json:"entity_id"`
	Kind        EntityKind `json:"kind"`
	Title       string     `json:"title"`
	Coordinates LatLng     `json:"coordinates"`
	Category    Category   `json:"category"`
	Color       string     `json:"color"`
	Opacity     float64    `json:"opacity"`
	IsSecondary bool       `json:"is_secondary"`
	IsOnline    bool       `json:"is_online"`
}

const (
	PrimaryMarkerOpacity   = 1.0
	SecondaryMarkerOpacity = 0.5

	// SecondaryMarkerSuffix セカンダリマーカーIDの接尾辞
	SecondaryMarkerSuffix = "-secondary"
)

// FilterSet カテゴリごとの表示ON/OFF
type FilterSet struct {
	People bool `json:"people"`
	Events bool `json:"events"`
	Trades bool `json:"trades"`
}

// DefaultFilterSet 全カテゴリ表示のフィルタ
func DefaultFilterSet() FilterSet {
	return FilterSet{People: true, Events: true, Trades: true}
}

// Enabled カテゴリが表示対象か判定する（未知のカテゴリは非表示）
func (f FilterSet) Enabled(c Category) bool {
	switch c {
	case CategoryPeople:
		return f.People
	case CategoryEvents:
		return f.Events
	case CategoryTrades:
		return f.Trades
	default:
		return false
	}
}

// Toggle 指定カテゴリを反転したフィルタを返す
func (f FilterSet) Toggle(c Category) (FilterSet, bool) {
	switch c {
	case CategoryPeople:
		f.People = !f.People
	case CategoryEvents:
		f.Events = !f.Events
	case CategoryTrades:
		f.Trades = !f.Trades
	default:
		return f, false
	}
	return f, true
}
