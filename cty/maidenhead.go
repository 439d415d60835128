package cty

import "math"

// GridFromLatLon returns the Maidenhead locator for a lat/lon pair (longitude
// east-positive) at 4 or 6 characters. It returns false for non-finite or
// out-of-range coordinates and unsupported precision.
func GridFromLatLon(lat, lon float64, chars int) (string, bool) {
	if chars != 4 && chars != 6 {
		return "", false
	}
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return "", false
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return "", false
	}
	if lat == 90 {
		lat = 89.999999
	}
	if lon == 180 {
		lon = 179.999999
	}
	adjLon := lon + 180
	adjLat := lat + 90
	fieldLon := int(adjLon / 20)
	fieldLat := int(adjLat / 10)
	remLon := adjLon - float64(fieldLon)*20
	remLat := adjLat - float64(fieldLat)*10
	squareLon := int(remLon / 2)
	squareLat := int(remLat)
	out := []byte{
		byte('A' + fieldLon),
		byte('A' + fieldLat),
		byte('0' + squareLon),
		byte('0' + squareLat),
	}
	if chars == 6 {
		subLon := int((remLon - float64(squareLon)*2) * 12)
		subLat := int((remLat - float64(squareLat)) * 24)
		out = append(out, byte('a'+min(subLon, 23)), byte('a'+min(subLat, 23)))
	}
	return string(out), true
}

// Grid4FromLatLon returns the 4-character Maidenhead square for a lat/lon pair.
func Grid4FromLatLon(lat, lon float64) (string, bool) {
	return GridFromLatLon(lat, lon, 4)
}

// Grid returns the entity's 4-character locator computed from its reference
// coordinates.
func (e Entry) Grid() string {
	grid, _ := Grid4FromLatLon(e.Latitude, e.Longitude)
	return grid
}
