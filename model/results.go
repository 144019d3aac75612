package model

import (
	"time"

	"github.com/venicegeo/geojson-go/geojson"
)

// SceneResult holds the fields common to every catalog scene the
// fetcher handles, whatever catalog it came from.
type SceneResult struct {
	ID           string
	Collection   string
	Geometry     interface{}
	CloudCover   float64
	Resolution   float64
	EPSG         int
	AcquiredDate time.Time
	Platform     string
	FileFormat   SceneFileFormat
}

// GeoJSONFeature implements the GeoJSONFeatureCreator interface
func (sr SceneResult) GeoJSONFeature() (*geojson.Feature, error) {
	properties := map[string]interface{}{
		"collection":   sr.Collection,
		"cloudCover":   sr.CloudCover,
		"resolution":   sr.Resolution,
		"acquiredDate": sr.AcquiredDate.UTC().Format(SceneTimeFormat),
		"platform":     sr.Platform,
	}
	if sr.EPSG != 0 {
		properties["epsg"] = sr.EPSG
	}
	f := geojson.NewFeature(sr.Geometry, sr.ID, properties)
	f.Bbox = f.ForceBbox()
	return f, nil
}

// SceneSearchResult is a catalog search hit: the scene plus its
// per-band asset URLs.
type SceneSearchResult struct {
	SceneResult
	BandAssets
}

// GeoJSONFeature implements the GeoJSONFeatureCreator interface
func (result SceneSearchResult) GeoJSONFeature() (*geojson.Feature, error) {
	feature, err := result.SceneResult.GeoJSONFeature()
	if err != nil {
		return nil, err
	}

	if err = result.BandAssets.Apply(feature); err != nil {
		return nil, err
	}

	return feature, nil
}

// InventoriedSceneResult is a scene read back from the local inventory,
// carrying its fetch bookkeeping.
type InventoriedSceneResult struct {
	SceneResult
	*InventoryRecord
}

// GeoJSONFeature implements the GeoJSONFeatureCreator interface
func (result InventoriedSceneResult) GeoJSONFeature() (*geojson.Feature, error) {
	feature, err := result.SceneResult.GeoJSONFeature()
	if err != nil {
		return nil, err
	}

	if result.InventoryRecord != nil {
		if err = result.InventoryRecord.Apply(feature); err != nil {
			return nil, err
		}
	}

	return feature, nil
}

// MultiSceneResult is a container type for bundling multiple results
// together, e.g. as the body of an inventory listing
type MultiSceneResult struct {
	FeatureCreators []GeoJSONFeatureCreator
}

// GeoJSONFeatureCollection implements the GeoJSONFeatureCollectionCreator interface
func (result MultiSceneResult) GeoJSONFeatureCollection() (*geojson.FeatureCollection, error) {
	var err error
	features := make([]*geojson.Feature, len(result.FeatureCreators))
	for i, creator := range result.FeatureCreators {
		features[i], err = creator.GeoJSONFeature()
		if err != nil {
			return nil, err
		}
	}

	return geojson.NewFeatureCollection(features), nil
}
