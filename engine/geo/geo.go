package geo

import "math"

const earthRadiusM = 6371000.0

// Region is a circular geofence.
type Region struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	RadiusM float64 `json:"radius_m"`
}

// Sample is a GPS observation. AccuracyM is nil when the device did not
// report an accuracy estimate.
type Sample struct {
	Lat       float64  `json:"lat"`
	Lng       float64  `json:"lng"`
	AccuracyM *float64 `json:"accuracy_m,omitempty"`
}

// Result is the outcome of a geofence evaluation. Risk is advisory and
// never blocks a clock event.
type Result struct {
	Inside     bool
	MatchIndex int // index of the matched region, -1 when none
	Risk       bool
}

// riskAccuracyThresholdM flags samples whose reported accuracy is worse
// than this as risky.
const riskAccuracyThresholdM = 100.0

// Haversine returns the great-circle distance in meters between two
// points on a spherical earth.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := rad(lat2 - lat1)
	dLng := rad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusM * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Evaluate tests a sample against an ordered region list. A point is
// inside when its distance to some region center is within the radius
// plus the sample accuracy clamped to maxSlackM. A nil sample, or one
// without a usable accuracy, is marked risky.
//
// An empty region list means location validation is not required:
// inside with no risk.
func Evaluate(sample *Sample, regions []Region, maxSlackM float64) Result {
	if len(regions) == 0 {
		return Result{Inside: true, MatchIndex: -1}
	}
	if sample == nil {
		return Result{Inside: false, MatchIndex: -1, Risk: true}
	}
	risk := sample.AccuracyM == nil || *sample.AccuracyM > riskAccuracyThresholdM
	slack := 0.0
	if sample.AccuracyM != nil {
		slack = math.Min(math.Max(*sample.AccuracyM, 0), maxSlackM)
	}
	for i, region := range regions {
		dist := Haversine(sample.Lat, sample.Lng, region.Lat, region.Lng)
		if dist <= region.RadiusM+slack {
			return Result{Inside: true, MatchIndex: i, Risk: risk}
		}
	}
	return Result{Inside: false, MatchIndex: -1, Risk: risk}
}
