package model

import "strings"

// https://docs.sentinel-hub.com/api/latest/data/sentinel-2-l2a/
// Catalogs usually carry a common_name per asset in their eo:bands
// metadata; this table is the fallback for the Sentinel-2 asset keys
// when they do not.
var sentinel2CommonNames = map[string]string{
	"B01": "coastal",
	"B02": "blue",
	"B03": "green",
	"B04": "red",
	"B05": "rededge1",
	"B06": "rededge2",
	"B07": "rededge3",
	"B08": "nir",
	"B8A": "nir08",
	"B09": "nir09",
	"B10": "cirrus",
	"B11": "swir16",
	"B12": "swir22",
}

// CommonBandName resolves the band name a composite layer should carry:
// the catalog-provided common name when there is one, the well-known
// Sentinel-2 name for the asset key otherwise, the key itself as a last
// resort.
func CommonBandName(assetKey, catalogCommonName string) string {
	if catalogCommonName != "" {
		return catalogCommonName
	}
	if name, ok := sentinel2CommonNames[strings.ToUpper(assetKey)]; ok {
		return name
	}
	return assetKey
}
