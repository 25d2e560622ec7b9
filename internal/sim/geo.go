package sim

import (
	"drone-spoof-sim/internal/geometry/vector"
	"math"
)

// GeoRef pins the arena's origin to a point on the globe so positions can
// be reported as lat/lon.
type GeoRef struct {
	OriginLat     float64
	OriginLon     float64
	MetersPerUnit float64
}

const metersPerDegLat = 111_320.0

func (g GeoRef) metersPerDegLon() float64 {
	return metersPerDegLat * math.Cos(g.OriginLat*math.Pi/180.0)
}

// Enabled reports whether a scale has been configured.
func (g GeoRef) Enabled() bool { return g.MetersPerUnit > 0 }

// LocalToGeo converts arena coordinates (y down) to lat/lon.
func (g GeoRef) LocalToGeo(p vector.Vec2) (lat, lon float64) {
	east := p.X * g.MetersPerUnit
	north := -p.Y * g.MetersPerUnit
	lat = g.OriginLat + north/metersPerDegLat
	lon = g.OriginLon + east/g.metersPerDegLon()
	return
}

// GeoToLocal is the inverse of LocalToGeo.
func (g GeoRef) GeoToLocal(lat, lon float64) vector.Vec2 {
	north := (lat - g.OriginLat) * metersPerDegLat
	east := (lon - g.OriginLon) * g.metersPerDegLon()
	return vector.Vec2{X: east / g.MetersPerUnit, Y: -north / g.MetersPerUnit}
}

func HeadingDegFromVec(v vector.Vec2) float64 {
	// Heading: 0=up, 90=right
	if math.Abs(v.X) < 1e-9 && math.Abs(v.Y) < 1e-9 {
		return 0
	}
	angleRad := math.Atan2(v.X, -v.Y)
	deg := angleRad * 180.0 / math.Pi
	if deg < 0 {
		deg += 360
	}
	return deg
}
