package normalize

import "math"

const earthRadiusKm = 6371.0

// Zone labels, nearest first
const (
	ZoneCenter      = "Центр"
	ZoneMiddle      = "Срединная зона"
	ZoneResidential = "Спальный район"
	ZoneOutskirts   = "Окраина"
)

// Zones lists the zone labels in distance order
var Zones = []string{ZoneCenter, ZoneMiddle, ZoneResidential, ZoneOutskirts}

// zoneLimits are the inclusive upper bounds in km for all but the last zone
var zoneLimits = []float64{5, 15, 30}

// DistanceKm returns the great-circle distance between two points rounded to 0.1 km
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180.0
	dLon := (lon2 - lon1) * math.Pi / 180.0
	lat1Rad := lat1 * math.Pi / 180.0
	lat2Rad := lat2 * math.Pi / 180.0
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return math.Round(earthRadiusKm*c*10) / 10
}

// Zone classifies a distance from the city centre
func Zone(km float64) string {
	for i, limit := range zoneLimits {
		if km <= limit {
			return Zones[i]
		}
	}
	return ZoneOutskirts
}
