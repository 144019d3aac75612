package raster

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUTMZoneFromEPSG(t *testing.T) {
	// Tested code & Asserts
	zone, north, err := UTMZoneFromEPSG(32630)
	assert.Nil(t, err)
	assert.Equal(t, 30, zone)
	assert.True(t, north)

	zone, north, err = UTMZoneFromEPSG(32734)
	assert.Nil(t, err)
	assert.Equal(t, 34, zone)
	assert.False(t, north)

	_, _, err = UTMZoneFromEPSG(4326)
	assert.NotNil(t, err, "geographic codes are not UTM zones")

	_, _, err = UTMZoneFromEPSG(32661)
	assert.NotNil(t, err)
}

func TestEPSGForUTMZone(t *testing.T) {
	// Tested code & Asserts
	epsg, err := EPSGForUTMZone(30, true)
	assert.Nil(t, err)
	assert.Equal(t, 32630, epsg)

	epsg, err = EPSGForUTMZone(34, false)
	assert.Nil(t, err)
	assert.Equal(t, 32734, epsg)

	_, err = EPSGForUTMZone(61, true)
	assert.NotNil(t, err)
}

func TestUTMZoneForLongitude(t *testing.T) {
	// Tested code & Asserts
	assert.Equal(t, 30, UTMZoneForLongitude(-4.25))
	assert.Equal(t, 31, UTMZoneForLongitude(0.5))
	assert.Equal(t, 1, UTMZoneForLongitude(-180))
	assert.Equal(t, 60, UTMZoneForLongitude(179.99))
}

func TestLatLonToUTM_CentralMeridian(t *testing.T) {
	// Points on the central meridian project to the false easting, and
	// the equator to zero northing.

	// Tested code
	easting, northing, err := LatLonToUTM(0, -3, 32630)

	// Asserts
	assert.Nil(t, err)
	assert.InDelta(t, 500000, easting, 1e-6)
	assert.InDelta(t, 0, northing, 1e-6)
}

func TestLatLonToUTM_PoleNorthing(t *testing.T) {
	// The northing at the pole is the scaled quarter meridian of the
	// WGS 84 ellipsoid, 0.9996 * 10001965.7293 m.

	// Tested code
	easting, northing, err := LatLonToUTM(90, -3, 32630)

	// Asserts
	assert.Nil(t, err)
	assert.InDelta(t, 500000, easting, 1e-6)
	assert.InDelta(t, 9997964.943, northing, 0.01)
}

func TestLatLonToUTM_MeridianArc(t *testing.T) {
	// The meridian distance from the equator to 45N is 4984944.38 m

	// Tested code
	_, northing, err := LatLonToUTM(45, -3, 32630)

	// Asserts
	assert.Nil(t, err)
	assert.InDelta(t, 4984944.38*utmScaleFactor, northing, 1.0)
}

func TestLatLonToUTM_SymmetricAboutCentralMeridian(t *testing.T) {
	// Tested code
	eastEasting, eastNorthing, err := LatLonToUTM(55.86, -2, 32630)
	assert.Nil(t, err)
	westEasting, westNorthing, err := LatLonToUTM(55.86, -4, 32630)
	assert.Nil(t, err)

	// Asserts
	assert.InDelta(t, eastEasting-utmFalseEasting, utmFalseEasting-westEasting, 1e-6)
	assert.InDelta(t, eastNorthing, westNorthing, 1e-6)
}

func TestUTMRoundTrip(t *testing.T) {
	// Mock
	points := []struct {
		lat  float64
		lon  float64
		epsg int
	}{
		{55.8609, -4.2514, 32630},
		{55.9533, -3.1883, 32630},
		{51.5072, -0.1276, 32630},
		{-33.9249, 18.4241, 32734},
		{0.01, -2.99, 32630},
	}

	for _, point := range points {
		// Tested code
		easting, northing, err := LatLonToUTM(point.lat, point.lon, point.epsg)
		assert.Nil(t, err)
		lat, lon, err := UTMToLatLon(easting, northing, point.epsg)

		// Asserts
		assert.Nil(t, err)
		assert.InDelta(t, point.lat, lat, 1e-9)
		assert.InDelta(t, point.lon, lon, 1e-9)
	}
}

func TestLatLonToUTM_SouthernHemisphereFalseNorthing(t *testing.T) {
	// Tested code
	_, northing, err := LatLonToUTM(-33.9249, 18.4241, 32734)

	// Asserts
	assert.Nil(t, err)
	assert.Greater(t, northing, 0.0)
	assert.Less(t, northing, utmFalseNorthing)
}

func TestLatLonToUTM_RejectsBadInput(t *testing.T) {
	// Tested code & Asserts
	_, _, err := LatLonToUTM(91, 0, 32630)
	assert.NotNil(t, err)

	_, _, err = LatLonToUTM(55, -4, 4326)
	assert.NotNil(t, err)
}

func TestProjectRing(t *testing.T) {
	// Mock
	ring := [][]float64{{-4.4, 55.8}, {-4.1, 55.8}, {-4.1, 55.95}, {-4.4, 55.95}, {-4.4, 55.8}}

	// Tested code
	geographic, err := ProjectRing(ring, 4326)
	assert.Nil(t, err)
	projected, err := ProjectRing(ring, 32630)

	// Asserts
	assert.Equal(t, ring, geographic, "geographic grids take the ring untouched")
	assert.Nil(t, err)
	assert.Len(t, projected, len(ring))
	for _, position := range projected {
		assert.Greater(t, position[0], 0.0)
		assert.Less(t, position[0], 1000000.0)
		assert.Greater(t, position[1], 6000000.0)
	}
	assert.Equal(t, projected[0], projected[len(projected)-1], "closed rings stay closed")

	_, err = ProjectRing([][]float64{{-4.4}}, 32630)
	assert.NotNil(t, err)
}
