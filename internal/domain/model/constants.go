package model

// Category 地図上のエンティティカテゴリ
type Category string

// CategoryConstants はアプリケーションで使用するカテゴリの定数
const (
	CategoryPeople Category = "people"
	CategoryEvents Category = "events"
	CategoryTrades Category = "trades"
)

// CategoryColorMap はカテゴリからマーカー色へのマッピング
var CategoryColorMap = map[Category]string{
	CategoryPeople: "#4F46E5",
	CategoryEvents: "#F97316",
	CategoryTrades: "#10B981",
}

// CategoryNameMap はカテゴリIDから日本語名へのマッピング
var CategoryNameMap = map[Category]string{
	CategoryPeople: "ひと",
	CategoryEvents: "イベント",
	CategoryTrades: "トレード",
}

// DefaultMarkerColor は未知のカテゴリに使う色
const DefaultMarkerColor = "#6B7280"

// GetCategoryColor はカテゴリのマーカー色を取得する
func GetCategoryColor(category Category) string {
	if color, ok := CategoryColorMap[category]; ok {
		return color
	}
	return DefaultMarkerColor
}

// GetCategoryJapaneseName はカテゴリIDから日本語名を取得する
func GetCategoryJapaneseName(category Category) string {
	if name, ok := CategoryNameMap[category]; ok {
		return name
	}
	return string(category) // デフォルトはそのまま返す
}

// GetAllCategories は全カテゴリの一覧を取得する
func GetAllCategories() []Category {
	return []Category{
		CategoryPeople,
		CategoryEvents,
		CategoryTrades,
	}
}

// ParseCategory は文字列をカテゴリに変換する
func ParseCategory(s string) (Category, bool) {
	for _, c := range GetAllCategories() {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// リアルタイムチャネルのイベント名
const (
	// 送信イベント
	EventLocationUpdate = "location:update"
	EventMessageSend    = "message:send"
	EventWaveSend       = "wave:send"

	// 受信イベント
	EventMessageReceive = "message:receive"
	EventNearbyUpdate   = "nearby:update"
	EventUserOnline     = "user:online"
	EventUserOffline    = "user:offline"
	EventWaveReceive    = "wave:receive"
	EventError          = "error"
)

// 検索・追跡のデフォルト値
const (
	DefaultNearbyRadiusKm = 10
	DefaultNearbyLimit    = 50

	// KmPerDegreeLatitude 赤道付近の1度あたりの距離（経度方向の縮みは補正しない）
	KmPerDegreeLatitude = 111
)
