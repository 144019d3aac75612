package arcgis

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func featureBatch(ids ...int) string {
	features := ""
	for i, id := range ids {
		if i > 0 {
			features += ","
		}
		features += fmt.Sprintf(`{"type":"Feature","id":%d,"geometry":{"type":"Point","coordinates":[-2.24,53.48]},"properties":{"CAUTH24CD":"E47000001"}}`, id)
	}
	return `{"type":"FeatureCollection","features":[` + features + `]}`
}

func TestQueryFeaturesSingleBatch(t *testing.T) {
	// Mock
	calls := 0
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Contains(t, r.URL.Path, "CAUTH_DEC_2024_EN_BUC/FeatureServer/0/query")
		assert.Equal(t, "1=1", r.URL.Query().Get("where"))
		assert.Equal(t, "geojson", r.URL.Query().Get("f"))
		assert.Equal(t, "4326", r.URL.Query().Get("outputSpatialReference"))
		assert.Equal(t, "0", r.URL.Query().Get("resultOffset"))
		assert.Equal(t, "", r.URL.Query().Get("resultRecordCount"))
		w.Write([]byte(featureBatch(1, 2, 3)))
	}))
	defer mockServer.Close()

	// Tested code
	collection, err := QueryFeatures(QueryOptions{
		ServiceURL: mockServer.URL + "/services/",
		Filename:   "CAUTH_DEC_2024_EN_BUC",
		Server:     "ons",
		Format:     "geojson",
		OutFields:  "*",
	}, &Context{})

	// Asserts
	assert.Nil(t, err)
	assert.Equal(t, 1, calls)
	assert.Len(t, collection.Features, 3)
}

func TestQueryFeaturesPaginatesAndStitches(t *testing.T) {
	// Mock
	var offsets []string
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offset := r.URL.Query().Get("resultOffset")
		offsets = append(offsets, offset)
		assert.Equal(t, "2", r.URL.Query().Get("resultRecordCount"))
		switch offset {
		case "0":
			w.Write([]byte(featureBatch(1, 2)))
		case "2":
			w.Write([]byte(featureBatch(3)))
		default:
			w.Write([]byte(featureBatch()))
		}
	}))
	defer mockServer.Close()

	// Tested code
	collection, err := QueryFeatures(QueryOptions{
		ServiceURL: mockServer.URL + "/services/",
		Filename:   "layer",
		Server:     "scot",
		Format:     "geojson",
		Offset:     2,
	}, &Context{})

	// Asserts
	assert.Nil(t, err)
	assert.Len(t, collection.Features, 3)
	assert.Equal(t, []string{"0", "2", "4"}, offsets)
}

func TestQueryFeaturesRetriesMissingFeaturesKey(t *testing.T) {
	// Mock
	calls := 0
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Write([]byte(`{"error":{"code":500,"message":"Try again"}}`))
			return
		}
		w.Write([]byte(featureBatch(1)))
	}))
	defer mockServer.Close()

	// Tested code
	collection, err := QueryFeatures(QueryOptions{
		ServiceURL: mockServer.URL + "/",
		Filename:   "layer",
		Server:     "scot",
		Format:     "geojson",
	}, &Context{})

	// Asserts
	assert.Nil(t, err)
	assert.Equal(t, 2, calls)
	assert.Len(t, collection.Features, 1)
}

func TestQueryFeaturesGivesUpAfterRepeatedBadBodies(t *testing.T) {
	// Mock
	calls := 0
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"error":{"code":500,"message":"No features for you"}}`))
	}))
	defer mockServer.Close()

	// Tested code
	_, err := QueryFeatures(QueryOptions{
		ServiceURL: mockServer.URL + "/",
		Filename:   "layer",
		Server:     "scot",
		Format:     "geojson",
	}, &Context{})

	// Asserts
	assert.NotNil(t, err)
	assert.Equal(t, batchRetries, calls)
}

func TestQueryFeaturesRejectsUnknownServer(t *testing.T) {
	_, err := QueryFeatures(QueryOptions{Server: "usgs"}, &Context{})
	assert.NotNil(t, err)
}

func TestQueryFeaturesErrorStatus(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "access denied", http.StatusForbidden)
	}))
	defer mockServer.Close()

	_, err := QueryFeatures(QueryOptions{
		ServiceURL: mockServer.URL + "/",
		Filename:   "layer",
		Server:     "ons",
		Format:     "geojson",
	}, &Context{})

	assert.NotNil(t, err)
}

func TestQueryParamsRecordCount(t *testing.T) {
	withOffset := queryParams(QueryOptions{Offset: 500, Format: "geojson", OutFields: "*"})
	assert.Equal(t, "500", withOffset.Get("resultRecordCount"))
	assert.Equal(t, strconv.Itoa(MaxRecordCount), queryParams(QueryOptions{Offset: MaxRecordCount}).Get("resultRecordCount"))

	noOffset := queryParams(QueryOptions{Format: "geojson"})
	assert.Equal(t, "", noOffset.Get("resultRecordCount"))
}
