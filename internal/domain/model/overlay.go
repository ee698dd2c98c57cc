package model

// OverlayAnchor マーカータップ位置（画面座標）
type OverlayAnchor struct {
	X float64 `json:"anchor_x"`
	Y float64 `json:"anchor_y"`
}

// OverlayLayout オーバーレイ配置に使う固定レイアウト値
type OverlayLayout struct {
	MenuWidth          float64 `json:"menu_width"`
	MenuHeight         float64 `json:"menu_height"`
	MarkerHeight       float64 `json:"marker_height"`
	HorizontalMargin   float64 `json:"horizontal_margin"`
	ScreenWidth        float64 `json:"screen_width"`
	ScreenHeight       float64 `json:"screen_height"`
	TopInset           float64 `json:"top_inset"`
	TopChromeHeight    float64 `json:"top_chrome_height"`
	BottomInset        float64 `json:"bottom_inset"`
	BottomChromeHeight float64 `json:"bottom_chrome_height"`
}

// TopBoundary 使用可能領域の上端
func (l OverlayLayout) TopBoundary() float64 {
	return l.TopInset + l.TopChromeHeight
}

// BottomBoundary 使用可能領域の下端
func (l OverlayLayout) BottomBoundary() float64 {
	return l.ScreenHeight - (l.BottomInset + l.BottomChromeHeight)
}

// OverlayPlacement オーバーレイの配置方法
type OverlayPlacement string

const (
	PlacementAbove    OverlayPlacement = "above"
	PlacementBelow    OverlayPlacement = "below"
	PlacementCentered OverlayPlacement = "centered"
)

// OverlayPosition 計算されたオーバーレイの左上座標
type OverlayPosition struct {
	Left      float64          `json:"left"`
	Top       float64          `json:"top"`
	Placement OverlayPlacement `json:"placement"`
}

// DefaultOverlayLayout 標準的なスマートフォン画面のレイアウト
func DefaultOverlayLayout() OverlayLayout {
	return OverlayLayout{
		MenuWidth:          220,
		MenuHeight:         160,
		MarkerHeight:       40,
		HorizontalMargin:   16,
		ScreenWidth:        390,
		ScreenHeight:       844,
		TopInset:           47,
		TopChromeHeight:    56,
		BottomInset:        34,
		BottomChromeHeight: 64,
	}
}
