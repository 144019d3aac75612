package raster

import (
	"fmt"
	"math"
)

// WGS 84 ellipsoid and the standard UTM scale and offsets
const (
	semiMajorAxis     = 6378137.0
	inverseFlattening = 298.257223563
	utmScaleFactor    = 0.9996
	utmFalseEasting   = 500000.0
	utmFalseNorthing  = 10000000.0
)

// Series coefficients for the transverse Mercator projection in
// Krüger's n-expansion, truncated at n^4. Good to well under a
// millimeter anywhere in a UTM zone, which is orders of magnitude
// below a Sentinel-2 pixel.
var (
	flattening  = 1 / inverseFlattening
	thirdFlat   = flattening / (2 - flattening)
	eccentr     = math.Sqrt(flattening * (2 - flattening))
	rectRadius  = semiMajorAxis / (1 + thirdFlat) * (1 + thirdFlat*thirdFlat/4 + math.Pow(thirdFlat, 4)/64)
	alphaSeries = [4]float64{
		thirdFlat/2 - 2*math.Pow(thirdFlat, 2)/3 + 5*math.Pow(thirdFlat, 3)/16 + 41*math.Pow(thirdFlat, 4)/180,
		13*math.Pow(thirdFlat, 2)/48 - 3*math.Pow(thirdFlat, 3)/5 + 557*math.Pow(thirdFlat, 4)/1440,
		61*math.Pow(thirdFlat, 3)/240 - 103*math.Pow(thirdFlat, 4)/140,
		49561 * math.Pow(thirdFlat, 4) / 161280,
	}
	betaSeries = [4]float64{
		thirdFlat/2 - 2*math.Pow(thirdFlat, 2)/3 + 37*math.Pow(thirdFlat, 3)/96 - math.Pow(thirdFlat, 4)/360,
		math.Pow(thirdFlat, 2)/48 + math.Pow(thirdFlat, 3)/15 - 437*math.Pow(thirdFlat, 4)/1440,
		17*math.Pow(thirdFlat, 3)/480 - 37*math.Pow(thirdFlat, 4)/840,
		4397 * math.Pow(thirdFlat, 4) / 161280,
	}
)

// UTMZoneFromEPSG splits a WGS 84 / UTM EPSG code into its zone number
// and hemisphere
func UTMZoneFromEPSG(epsg int) (zone int, north bool, err error) {
	switch {
	case epsg > 32600 && epsg <= 32660:
		return epsg - 32600, true, nil
	case epsg > 32700 && epsg <= 32760:
		return epsg - 32700, false, nil
	}
	return 0, false, fmt.Errorf("EPSG:%d is not a WGS 84 / UTM code", epsg)
}

// EPSGForUTMZone returns the WGS 84 / UTM EPSG code for a zone
func EPSGForUTMZone(zone int, north bool) (int, error) {
	if zone < 1 || zone > 60 {
		return 0, fmt.Errorf("UTM zone %d is out of range", zone)
	}
	if north {
		return 32600 + zone, nil
	}
	return 32700 + zone, nil
}

// UTMZoneForLongitude returns the UTM zone containing a longitude
func UTMZoneForLongitude(lon float64) int {
	zone := int(math.Floor((lon+180)/6)) + 1
	if zone < 1 {
		zone = 1
	}
	if zone > 60 {
		zone = 60
	}
	return zone
}

func centralMeridian(zone int) float64 {
	return float64((zone-1)*6 - 180 + 3)
}

// LatLonToUTM projects a WGS 84 coordinate into the UTM zone named by
// the EPSG code
func LatLonToUTM(lat, lon float64, epsg int) (easting, northing float64, err error) {
	zone, north, err := UTMZoneFromEPSG(epsg)
	if err != nil {
		return 0, 0, err
	}
	if lat < -90 || lat > 90 {
		return 0, 0, fmt.Errorf("Latitude %v is out of range", lat)
	}

	phi := lat * math.Pi / 180
	lambda := (lon - centralMeridian(zone)) * math.Pi / 180

	sinPhi := math.Sin(phi)
	conformal := math.Sinh(math.Atanh(sinPhi) - eccentr*math.Atanh(eccentr*sinPhi))
	xiPrime := math.Atan2(conformal, math.Cos(lambda))
	etaPrime := math.Asinh(math.Sin(lambda) / math.Sqrt(conformal*conformal+math.Cos(lambda)*math.Cos(lambda)))

	xi := xiPrime
	eta := etaPrime
	for j := 1; j <= 4; j++ {
		xi += alphaSeries[j-1] * math.Sin(2*float64(j)*xiPrime) * math.Cosh(2*float64(j)*etaPrime)
		eta += alphaSeries[j-1] * math.Cos(2*float64(j)*xiPrime) * math.Sinh(2*float64(j)*etaPrime)
	}

	easting = utmFalseEasting + utmScaleFactor*rectRadius*eta
	northing = utmScaleFactor * rectRadius * xi
	if !north {
		northing += utmFalseNorthing
	}
	return easting, northing, nil
}

// UTMToLatLon inverts LatLonToUTM
func UTMToLatLon(easting, northing float64, epsg int) (lat, lon float64, err error) {
	zone, north, err := UTMZoneFromEPSG(epsg)
	if err != nil {
		return 0, 0, err
	}

	rawNorthing := northing
	if !north {
		rawNorthing -= utmFalseNorthing
	}
	xi := rawNorthing / (utmScaleFactor * rectRadius)
	eta := (easting - utmFalseEasting) / (utmScaleFactor * rectRadius)

	xiPrime := xi
	etaPrime := eta
	for j := 1; j <= 4; j++ {
		xiPrime -= betaSeries[j-1] * math.Sin(2*float64(j)*xi) * math.Cosh(2*float64(j)*eta)
		etaPrime -= betaSeries[j-1] * math.Cos(2*float64(j)*xi) * math.Sinh(2*float64(j)*eta)
	}

	conformal := math.Sin(xiPrime) / math.Sqrt(math.Sinh(etaPrime)*math.Sinh(etaPrime)+math.Cos(xiPrime)*math.Cos(xiPrime))

	// Recover the geodetic latitude from the conformal one by fixed
	// point iteration
	phi := math.Atan(conformal)
	for i := 0; i < 8; i++ {
		next := math.Atan(math.Sinh(math.Asinh(conformal) + eccentr*math.Atanh(eccentr*math.Sin(phi))))
		if math.Abs(next-phi) < 1e-14 {
			phi = next
			break
		}
		phi = next
	}

	lambda := math.Atan2(math.Sinh(etaPrime), math.Cos(xiPrime))
	lat = phi * 180 / math.Pi
	lon = centralMeridian(zone) + lambda*180/math.Pi
	return lat, lon, nil
}

// ProjectRing projects a lon/lat ring into the grid coordinate system
// named by the EPSG code. Geographic grids pass through untouched.
func ProjectRing(ring [][]float64, epsg int) ([][]float64, error) {
	if epsg == 4326 {
		return ring, nil
	}
	projected := make([][]float64, len(ring))
	for i, position := range ring {
		if len(position) < 2 {
			return nil, fmt.Errorf("Ring position %d has %d ordinates", i, len(position))
		}
		easting, northing, err := LatLonToUTM(position[1], position[0], epsg)
		if err != nil {
			return nil, err
		}
		projected[i] = []float64{easting, northing}
	}
	return projected, nil
}
