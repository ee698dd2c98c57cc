package device

import (
	"context"
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geo"

	"LiveMap-App/internal/domain/model"
)

// SimulatedSource は決められたルート上を一定速度で移動する端末を模した位置情報ソース
// ヘッドレスで動かすときの端末の代わりに使う
type SimulatedSource struct {
	route      orb.LineString
	speedMps   float64
	accuracy   float64
	permission model.PermissionStatus
	now        func() time.Time
}

// NewSimulatedSource は WKT の LINESTRING からソースを作成する
func NewSimulatedSource(routeWKT string, speedMps float64, granted bool) (*SimulatedSource, error) {
	route, err := wkt.UnmarshalLineString(routeWKT)
	if err != nil {
		return nil, fmt.Errorf("ルートWKTのパースに失敗: %w", err)
	}
	if len(route) == 0 {
		return nil, fmt.Errorf("ルートに座標がありません")
	}
	if speedMps <= 0 {
		speedMps = 1.4 // 徒歩
	}

	permission := model.PermissionGranted
	if !granted {
		permission = model.PermissionDenied
	}

	return &SimulatedSource{
		route:      route,
		speedMps:   speedMps,
		accuracy:   10,
		permission: permission,
		now:        time.Now,
	}, nil
}

// RequestPermission は設定されたパーミッションを返す
func (s *SimulatedSource) RequestPermission(ctx context.Context) (model.PermissionStatus, error) {
	return s.permission, nil
}

// Watch はFastestInterval（未設定ならInterval）ごとにルート上の位置を配信する
// 距離による間引きは呼び出し側で行う。ルートの終点に着いたら折り返す
func (s *SimulatedSource) Watch(ctx context.Context, opts model.WatchOptions) (<-chan model.LocationSample, error) {
	if s.permission != model.PermissionGranted {
		return nil, model.ErrPermissionDenied
	}

	tick := opts.FastestInterval
	if tick <= 0 {
		tick = opts.Interval
	}
	if tick <= 0 {
		tick = time.Second
	}

	out := make(chan model.LocationSample)
	go func() {
		defer close(out)

		ticker := time.NewTicker(tick)
		defer ticker.Stop()

		traveled := 0.0
		for {
			sample := s.sampleAt(traveled)
			select {
			case <-ctx.Done():
				return
			case out <- sample:
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				traveled += s.speedMps * tick.Seconds()
			}
		}
	}()
	return out, nil
}

// sampleAt はルートの始点から traveled メートル進んだ位置（往復）を返す
func (s *SimulatedSource) sampleAt(traveled float64) model.LocationSample {
	point := PointAlong(s.route, traveled)
	return model.LocationSample{
		Latitude:  point.Lat(),
		Longitude: point.Lon(),
		Accuracy:  s.accuracy,
		Timestamp: s.now(),
	}
}

// PointAlong はルートを往復したときに distance メートル進んだ地点
func PointAlong(route orb.LineString, distance float64) orb.Point {
	if len(route) == 1 {
		return route[0]
	}

	total := geo.Length(route)
	if total <= 0 {
		return route[0]
	}

	// 往復: [0, total) は往路、[total, 2*total) は復路
	d := mod(distance, 2*total)
	if d > total {
		d = 2*total - d
	}

	for i := 0; i < len(route)-1; i++ {
		a, b := route[i], route[i+1]
		seg := geo.Distance(a, b)
		if d <= seg {
			if seg == 0 {
				return a
			}
			ratio := d / seg
			return orb.Point{
				a.Lon() + (b.Lon()-a.Lon())*ratio,
				a.Lat() + (b.Lat()-a.Lat())*ratio,
			}
		}
		d -= seg
	}
	return route[len(route)-1]
}

func mod(a, b float64) float64 {
	r := a - b*float64(int64(a/b))
	if r < 0 {
		r += b
	}
	return r
}
