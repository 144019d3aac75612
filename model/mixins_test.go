package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/venicegeo/geojson-go/geojson"
)

func TestBandAssets_Apply(t *testing.T) {
	// Mock
	feature := geojson.NewFeature(nil, "test-id", nil)
	data := BandAssets{Bands: map[string]string{
		"blue": "https://example.localdomain/B02.tif",
		"nir":  "https://example.localdomain/B08.tif",
	}}

	// Tested code
	err := data.Apply(feature)

	// Asserts
	assert.Nil(t, err)
	bands := feature.Properties["bands"].(map[string]string)
	assert.Equal(t, "https://example.localdomain/B02.tif", bands["blue"])
	assert.Equal(t, "https://example.localdomain/B08.tif", bands["nir"])
}

func TestInventoryRecord_Apply(t *testing.T) {
	// Mock
	feature := geojson.NewFeature(nil, "test-id", nil)
	data := InventoryRecord{
		FetchedAt: time.Unix(123, 0).UTC(),
		Composite: "data/raw/sentinel-2/out.tif",
	}

	// Tested code
	err := data.Apply(feature)

	// Asserts
	assert.Nil(t, err)
	assert.Equal(t, time.Unix(123, 0).UTC().Format(SceneTimeFormat), feature.PropertyString("fetchedAt"))
	assert.Equal(t, "data/raw/sentinel-2/out.tif", feature.PropertyString("composite"))
}

func TestInventoryRecord_ApplyZeroValues(t *testing.T) {
	feature := geojson.NewFeature(nil, "test-id", nil)

	err := InventoryRecord{}.Apply(feature)

	assert.Nil(t, err)
	assert.Nil(t, feature.Properties["fetchedAt"])
	assert.Nil(t, feature.Properties["composite"])
}

func TestCommonBandName(t *testing.T) {
	assert.Equal(t, "blue", CommonBandName("B02", ""))
	assert.Equal(t, "swir16", CommonBandName("B11", ""))
	assert.Equal(t, "nir08", CommonBandName("B8A", ""))
	// Catalog metadata wins over the fallback table
	assert.Equal(t, "rededge", CommonBandName("B05", "rededge"))
	// Unknown keys pass through
	assert.Equal(t, "SCL", CommonBandName("SCL", ""))
}
