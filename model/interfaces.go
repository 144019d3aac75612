package model

import "github.com/venicegeo/geojson-go/geojson"

// SceneFileFormat is an enum type for recognized raster asset formats
type SceneFileFormat string

// GeoTIFF corresponds to .tif assets with geospatial info (cloud
// optimized or plain)
const GeoTIFF SceneFileFormat = "geotiff"

// JPEG2000 corresponds to .jp2 assets
const JPEG2000 SceneFileFormat = "jpeg2000"

// GeoJSONFeatureCreator is an interface for data that can convert itself to a GeoJSON feature
type GeoJSONFeatureCreator interface {
	GeoJSONFeature() (*geojson.Feature, error)
}

// GeoJSONFeatureCollectionCreator is an interface for data that can convert itself to a GeoJSON feature collection
type GeoJSONFeatureCollectionCreator interface {
	GeoJSONFeatureCollection() (*geojson.FeatureCollection, error)
}

// GeoJSONFeatureMixin is an interface for data that can be used to augment an existing GeoJSON feature
type GeoJSONFeatureMixin interface {
	Apply(*geojson.Feature) error
}
