package download

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/citymetrics/ud-data-fetcher/config"
	"github.com/stretchr/testify/assert"
	"github.com/venicegeo/geojson-go/geojson"
)

// General test mocks and utils

func mockFeatureBatch(ids ...int) string {
	features := ""
	for i, id := range ids {
		if i > 0 {
			features += ","
		}
		features += fmt.Sprintf(`{"type":"Feature","id":%d,"geometry":{"type":"Point","coordinates":[-4.25,55.86]},"properties":{"zone":"core"}}`, id)
	}
	return `{"type":"FeatureCollection","features":[` + features + `]}`
}

func mockZipArchive(t *testing.T, members map[string]string) []byte {
	buffer := &bytes.Buffer{}
	writer := zip.NewWriter(buffer)
	for name, content := range members {
		entry, err := writer.Create(name)
		assert.Nil(t, err)
		_, err = entry.Write([]byte(content))
		assert.Nil(t, err)
	}
	assert.Nil(t, writer.Close())
	return buffer.Bytes()
}

// Actual tests

func TestHandlerForDispatchesOnMethod(t *testing.T) {
	arcgisEntry := &config.DatasetConfig{Method: config.MethodArcGISGeometry}
	urlEntry := &config.DatasetConfig{Method: config.MethodURLFile}
	zipEntry := &config.DatasetConfig{Method: config.MethodZipFile}

	arcgisHandler, err := HandlerFor(arcgisEntry, &Context{})
	assert.Nil(t, err)
	assert.IsType(t, &ArcGISGeometryHandler{}, arcgisHandler)

	urlHandler, err := HandlerFor(urlEntry, &Context{})
	assert.Nil(t, err)
	assert.IsType(t, &URLFileHandler{}, urlHandler)

	zipHandler, err := HandlerFor(zipEntry, &Context{})
	assert.Nil(t, err)
	assert.IsType(t, &ZipFileHandler{}, zipHandler)

	_, err = HandlerFor(&config.DatasetConfig{Method: "ftp_pull"}, &Context{})
	assert.True(t, errors.Is(err, config.ErrUnknownMethod))
}

func TestArcGISGeometryHandlerWritesGeoJSON(t *testing.T) {
	// Mock
	paths := mockPaths(t)
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "CAUTH_DEC_2024_EN_BUC/FeatureServer/0/query")
		w.Write([]byte(mockFeatureBatch(1, 2)))
	}))
	defer mockServer.Close()

	entry := &config.DatasetConfig{
		Method: config.MethodArcGISGeometry,
		File: config.File{
			Folder:      "boundaries",
			URL:         mockServer.URL + "/services/",
			FileExt:     "geojson",
			WriteToDisk: true,
		},
		ArcGIS: &config.ArcGISDatasetConfig{
			Filename:       "CAUTH_DEC_2024_EN_BUC",
			Server:         "ons",
			Format:         "geojson",
			OutFields:      "*",
			OutputFilename: "cauth-boundaries_2024",
		},
	}

	// Tested code
	handler := &ArcGISGeometryHandler{Entry: entry, Context: &Context{}}
	results, err := handler.Execute(paths.Raw)

	// Asserts
	assert.Nil(t, err)
	assert.Equal(t, []string{"cauth-boundaries_2024"}, handler.Filenames())
	assert.Contains(t, results, "cauth-boundaries_2024")

	written, err := ioutil.ReadFile(filepath.Join(paths.Raw, "boundaries", "cauth-boundaries_2024.geojson"))
	assert.Nil(t, err)
	parsed, err := geojson.Parse(written)
	assert.Nil(t, err)
	collection, ok := parsed.(*geojson.FeatureCollection)
	assert.True(t, ok)
	assert.Len(t, collection.Features, 2)
}

func TestURLFileHandlerKeepsDataOffDisk(t *testing.T) {
	// Mock
	paths := mockPaths(t)
	mockServer := mockJSONServer(`{"rows": []}`)
	defer mockServer.Close()

	entry := &config.DatasetConfig{
		Method: config.MethodURLFile,
		File: config.File{
			Folder:  "stats",
			URL:     mockServer.URL,
			FileExt: "json",
		},
		URLFile: &config.URLFileDatasetConfig{OutputFilename: "population_2023"},
	}

	// Tested code
	handler := &URLFileHandler{Entry: entry, Context: &Context{}}
	results, err := handler.Execute(paths.Raw)

	// Asserts
	assert.Nil(t, err)
	assert.Equal(t, []byte(`{"rows": []}`), results["population_2023"])
	_, statErr := ioutil.ReadFile(filepath.Join(paths.Raw, "stats", "population_2023.json"))
	assert.NotNil(t, statErr, "write_to_disk off keeps the payload in memory only")
}

func TestURLFileHandlerRejectsMismatchedContentType(t *testing.T) {
	// Mock
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>Sign in to download</html>"))
	}))
	defer mockServer.Close()

	entry := &config.DatasetConfig{
		Method:  config.MethodURLFile,
		File:    config.File{Folder: "stats", URL: mockServer.URL, FileExt: "json"},
		URLFile: &config.URLFileDatasetConfig{OutputFilename: "population_2023"},
	}

	// Tested code
	_, err := (&URLFileHandler{Entry: entry, Context: &Context{}}).Execute(t.TempDir())

	// Asserts
	assert.NotNil(t, err)
	assert.Contains(t, err.Error(), "Expected 'json', but found 'html'")
}

func TestURLFileHandlerErrorStatus(t *testing.T) {
	// Mock
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer mockServer.Close()

	entry := &config.DatasetConfig{
		Method:  config.MethodURLFile,
		File:    config.File{Folder: "stats", URL: mockServer.URL, FileExt: "json"},
		URLFile: &config.URLFileDatasetConfig{OutputFilename: "population_2023"},
	}

	// Tested code
	_, err := (&URLFileHandler{Entry: entry, Context: &Context{}}).Execute(t.TempDir())

	// Asserts
	assert.NotNil(t, err)
}

func TestValidateContentType(t *testing.T) {
	context := &Context{}

	assert.Nil(t, validateContentType("json", "", context), "responses without a content type pass")
	assert.Nil(t, validateContentType("json", "application/json; charset=utf-8", context))
	assert.Nil(t, validateContentType("zip", "application/octet-stream", context), "octet streams count as archives")
	assert.Nil(t, validateContentType("json", "application/x-mystery", context), "unknown media types pass")
	assert.NotNil(t, validateContentType("json", "text/html", context))
	assert.NotNil(t, validateContentType("csv", "application/zip", context))
}

func TestZipFileHandlerExtractsMembers(t *testing.T) {
	// Mock
	paths := mockPaths(t)
	archive := mockZipArchive(t, map[string]string{
		"data/pubs_2023.csv":    "name,lat,lon\nThe Horseshoe,55.86,-4.26",
		"data/schools_2023.csv": "name,lat,lon\nHillhead,55.88,-4.29",
		"README.txt":            "unrelated",
	})
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		w.Write(archive)
	}))
	defer mockServer.Close()

	entry := &config.DatasetConfig{
		Method: config.MethodZipFile,
		File: config.File{
			Folder:      "amenities",
			URL:         mockServer.URL,
			FileExt:     "csv",
			WriteToDisk: true,
		},
		Zip: &config.ZipDatasetConfig{Members: []config.ZipMember{
			{Member: "pubs_2023.csv", OutputFilename: "pubs_2023"},
			{Member: "data/schools_2023.csv", OutputFilename: "schools_2023"},
		}},
	}

	// Tested code
	handler := &ZipFileHandler{Entry: entry, Context: &Context{}}
	results, err := handler.Execute(paths.Raw)

	// Asserts
	assert.Nil(t, err)
	assert.Equal(t, []string{"pubs_2023", "schools_2023"}, handler.Filenames())
	assert.Contains(t, string(results["pubs_2023"]), "The Horseshoe", "members match by base name")
	assert.Contains(t, string(results["schools_2023"]), "Hillhead", "members match by archive path")

	written, err := ioutil.ReadFile(filepath.Join(paths.Raw, "amenities", "schools_2023.csv"))
	assert.Nil(t, err)
	assert.Contains(t, string(written), "Hillhead")
}

func TestZipFileHandlerMissingMember(t *testing.T) {
	// Mock
	archive := mockZipArchive(t, map[string]string{"other.csv": "a,b"})
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		w.Write(archive)
	}))
	defer mockServer.Close()

	entry := &config.DatasetConfig{
		Method: config.MethodZipFile,
		File:   config.File{Folder: "amenities", URL: mockServer.URL, FileExt: "csv"},
		Zip: &config.ZipDatasetConfig{Members: []config.ZipMember{
			{Member: "pubs_2023.csv", OutputFilename: "pubs_2023"},
		}},
	}

	// Tested code
	_, err := (&ZipFileHandler{Entry: entry, Context: &Context{}}).Execute(t.TempDir())

	// Asserts
	assert.NotNil(t, err)
	assert.Contains(t, err.Error(), "pubs_2023.csv")
}

func TestZipFileHandlerBadArchive(t *testing.T) {
	// Mock
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		w.Write([]byte("this is not a zip file"))
	}))
	defer mockServer.Close()

	entry := &config.DatasetConfig{
		Method: config.MethodZipFile,
		File:   config.File{Folder: "amenities", URL: mockServer.URL, FileExt: "csv"},
		Zip: &config.ZipDatasetConfig{Members: []config.ZipMember{
			{Member: "pubs_2023.csv", OutputFilename: "pubs_2023"},
		}},
	}

	// Tested code
	_, err := (&ZipFileHandler{Entry: entry, Context: &Context{}}).Execute(t.TempDir())

	// Asserts
	assert.NotNil(t, err)
}
