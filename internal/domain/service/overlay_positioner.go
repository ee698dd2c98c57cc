package service

import (
	"math"

	"LiveMap-App/internal/domain/model"
)

// PositionOverlay はマーカーのタップ位置を基準に、画面内に収まるアクションメニューの位置を計算する
//
// 1. 水平方向はアンカー中心に置き、左右マージン内に収める
// 2. 上部領域に収まるならアンカーの上に置く
// 3. 収まらなければ、下に収まる場合はアンカーの下に置く
// 4. どちらも無理なら使用可能領域の中央に置く
// 5. 最後に [topBoundary, bottomBoundary-menuHeight] に必ず収める
func PositionOverlay(anchor model.OverlayAnchor, layout model.OverlayLayout) model.OverlayPosition {
	left := clamp(
		anchor.X-layout.MenuWidth/2,
		layout.HorizontalMargin,
		layout.ScreenWidth-layout.MenuWidth-layout.HorizontalMargin,
	)

	topBoundary := layout.TopBoundary()
	bottomBoundary := layout.BottomBoundary()

	var top float64
	var placement model.OverlayPlacement

	above := anchor.Y - layout.MarkerHeight - layout.MenuHeight
	below := anchor.Y + layout.MarkerHeight

	switch {
	case above >= topBoundary:
		top = above
		placement = model.PlacementAbove
	case below+layout.MenuHeight <= bottomBoundary:
		top = below
		placement = model.PlacementBelow
	default:
		top = topBoundary + (bottomBoundary-topBoundary-layout.MenuHeight)/2
		placement = model.PlacementCentered
	}

	top = clamp(top, topBoundary, bottomBoundary-layout.MenuHeight)

	return model.OverlayPosition{
		Left:      left,
		Top:       top,
		Placement: placement,
	}
}

// clamp は v を [lo, hi] に収める。hi < lo の場合は lo を優先する
func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
