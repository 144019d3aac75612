package model

import (
	"time"

	"github.com/venicegeo/geojson-go/geojson"
)

// BandAssets is a mixin containing the downloadable asset URL for each
// band of a scene, keyed by band common name.
type BandAssets struct {
	Bands map[string]string
}

// Apply implements the GeoJSONFeatureMixin interface
func (ba BandAssets) Apply(feature *geojson.Feature) error {
	bands := make(map[string]string, len(ba.Bands))
	for name, href := range ba.Bands {
		bands[name] = href
	}
	feature.Properties["bands"] = bands
	return nil
}

// InventoryRecord is a mixin containing bookkeeping from the local
// inventory: when a scene's assets were fetched and which composite
// they contributed to.
type InventoryRecord struct {
	FetchedAt time.Time
	Composite string
}

// Apply implements the GeoJSONFeatureMixin interface
func (ir InventoryRecord) Apply(feature *geojson.Feature) error {
	if !ir.FetchedAt.IsZero() {
		feature.Properties["fetchedAt"] = ir.FetchedAt.UTC().Format(SceneTimeFormat)
	}
	if ir.Composite != "" {
		feature.Properties["composite"] = ir.Composite
	}
	return nil
}
