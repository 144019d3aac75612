// Copyright 2025, CityMetrics, Inc.

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package download

import (
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/citymetrics/ud-data-fetcher/config"
	"github.com/citymetrics/ud-data-fetcher/model"
	"github.com/citymetrics/ud-data-fetcher/util"
	"github.com/stretchr/testify/assert"
)

// General test mocks and utils

func mockPaths(t *testing.T) util.Paths {
	paths := util.NewPaths(t.TempDir())
	assert.Nil(t, paths.Ensure())
	return paths
}

func mockURLFileEntry(inputURL, folder, filename string) config.DatasetConfig {
	return config.DatasetConfig{
		Method: config.MethodURLFile,
		File: config.File{
			Folder:      folder,
			URL:         inputURL,
			FileExt:     "json",
			WriteToDisk: true,
		},
		URLFile: &config.URLFileDatasetConfig{OutputFilename: filename},
	}
}

func mockJSONServer(body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
}

func placeRawFile(t *testing.T, paths util.Paths, folder, name string) string {
	dir := filepath.Join(paths.Raw, util.GenerateSlug(folder, "-"))
	assert.Nil(t, os.MkdirAll(dir, 0777))
	path := filepath.Join(dir, name)
	assert.Nil(t, ioutil.WriteFile(path, []byte("{}"), 0666))
	return path
}

// mockRecorder captures inventory calls without a database
type mockRecorder struct {
	scenes map[string][]string
	files  map[string][]string
	err    error
}

func newMockRecorder() *mockRecorder {
	return &mockRecorder{scenes: map[string][]string{}, files: map[string][]string{}}
}

func (m *mockRecorder) RecordScenes(scenes []model.SceneSearchResult, composite string) error {
	for _, scene := range scenes {
		m.scenes[composite] = append(m.scenes[composite], scene.ID)
	}
	return m.err
}

func (m *mockRecorder) RecordFiles(folder string, filenames []string) error {
	m.files[folder] = append(m.files[folder], filenames...)
	return m.err
}

// Actual tests

func TestDownloaderUpToDate(t *testing.T) {
	// Mock
	paths := mockPaths(t)
	cfg := &config.VectorConfig{Entries: []config.DatasetConfig{
		mockURLFileEntry("https://example.localdomain/boundaries", "boundaries", "local-boundaries_2024"),
	}}
	placeRawFile(t, paths, "boundaries", "local-boundaries_2024.json")

	// Tested code
	downloader := NewDownloader(cfg, paths, false, &Context{})
	upToDate, err := downloader.UpToDate()

	// Asserts
	assert.Nil(t, err)
	assert.True(t, upToDate)
	assert.Nil(t, downloader.Update(), "an up to date directory needs no downloads")
	assert.Empty(t, downloader.Data)
}

func TestDownloaderDownloadsMissingFiles(t *testing.T) {
	// Mock
	paths := mockPaths(t)
	mockServer := mockJSONServer(`{"type":"FeatureCollection","features":[]}`)
	defer mockServer.Close()
	cfg := &config.VectorConfig{Entries: []config.DatasetConfig{
		mockURLFileEntry(mockServer.URL, "crime", "street-crime_2023"),
	}}

	// Tested code
	downloader := NewDownloader(cfg, paths, false, &Context{})
	missing, err := downloader.Missing()
	assert.Nil(t, err)
	updateErr := downloader.Update()

	// Asserts
	assert.Equal(t, []string{"street-crime_2023"}, missing)
	assert.Nil(t, updateErr)
	assert.Equal(t, []byte(`{"type":"FeatureCollection","features":[]}`), downloader.Data["street-crime_2023"])

	written, err := ioutil.ReadFile(filepath.Join(paths.Raw, "crime", "street-crime_2023.json"))
	assert.Nil(t, err)
	assert.Equal(t, `{"type":"FeatureCollection","features":[]}`, string(written))
}

func TestDownloaderDeletesStaleFiles(t *testing.T) {
	// Mock
	paths := mockPaths(t)
	cfg := &config.VectorConfig{Entries: []config.DatasetConfig{
		mockURLFileEntry("https://example.localdomain/boundaries", "boundaries", "local-boundaries_2024"),
	}}
	placeRawFile(t, paths, "boundaries", "local-boundaries_2024.json")
	stale := placeRawFile(t, paths, "boundaries", "local-boundaries_2019.json")

	// Tested code
	downloader := NewDownloader(cfg, paths, false, &Context{})
	old, err := downloader.OldData()
	assert.Nil(t, err)
	updateErr := downloader.Update()

	// Asserts
	assert.Equal(t, []string{stale}, old)
	assert.Nil(t, updateErr)
	_, statErr := os.Stat(stale)
	assert.True(t, os.IsNotExist(statErr), "stale files are deleted without the archive flag")
}

func TestDownloaderArchivesStaleFiles(t *testing.T) {
	// Mock
	paths := mockPaths(t)
	cfg := &config.VectorConfig{Entries: []config.DatasetConfig{
		mockURLFileEntry("https://example.localdomain/boundaries", "boundaries", "local-boundaries_2024"),
	}}
	placeRawFile(t, paths, "boundaries", "local-boundaries_2024.json")
	stale := placeRawFile(t, paths, "boundaries", "local-boundaries_2019.json")

	// Tested code
	downloader := NewDownloader(cfg, paths, true, &Context{})
	assert.Nil(t, downloader.Update())

	// Asserts
	_, statErr := os.Stat(stale)
	assert.True(t, os.IsNotExist(statErr))

	stamps, err := ioutil.ReadDir(paths.Archive)
	assert.Nil(t, err)
	assert.Len(t, stamps, 1, "stale files land in one timestamped archive directory")
	archived, err := ioutil.ReadFile(filepath.Join(paths.Archive, stamps[0].Name(), "local-boundaries_2019.json"))
	assert.Nil(t, err)
	assert.Equal(t, "{}", string(archived))
}

func TestDownloaderIgnoresHiddenFilesAndSubdirectories(t *testing.T) {
	// Mock
	paths := mockPaths(t)
	cfg := &config.VectorConfig{Entries: []config.DatasetConfig{
		mockURLFileEntry("https://example.localdomain/boundaries", "boundaries", "local-boundaries_2024"),
	}}
	placeRawFile(t, paths, "boundaries", "local-boundaries_2024.json")
	placeRawFile(t, paths, "boundaries", ".DS_Store")
	assert.Nil(t, os.MkdirAll(filepath.Join(paths.Raw, "boundaries", "assets"), 0777))

	// Tested code
	existing, err := NewDownloader(cfg, paths, false, &Context{}).ExistingFiles()

	// Asserts
	assert.Nil(t, err)
	assert.Equal(t, []string{"local-boundaries_2024"}, existing)
}

func TestDownloaderReportsFailedDownloads(t *testing.T) {
	// Mock
	paths := mockPaths(t)
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/good" {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"ok": true}`))
			return
		}
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer mockServer.Close()
	cfg := &config.VectorConfig{Entries: []config.DatasetConfig{
		mockURLFileEntry(mockServer.URL+"/good", "stats", "good-data_2023"),
		mockURLFileEntry(mockServer.URL+"/missing", "stats", "bad-data_2023"),
	}}

	// Tested code
	downloader := NewDownloader(cfg, paths, false, &Context{})
	err := downloader.Update()

	// Asserts
	assert.NotNil(t, err)
	assert.Contains(t, err.Error(), "1 of 2")
	assert.Contains(t, downloader.Data, "good-data_2023", "successful downloads are kept when others fail")
	assert.NotContains(t, downloader.Data, "bad-data_2023")
}

func TestDownloaderRecordsFetchedFiles(t *testing.T) {
	// Mock
	paths := mockPaths(t)
	server := mockJSONServer(`{"rows": []}`)
	defer server.Close()
	onDisk := mockURLFileEntry(server.URL+"/crime", "crime", "street-crime_2023")
	inMemory := mockURLFileEntry(server.URL+"/air", "air quality", "no2-readings_2023")
	inMemory.File.WriteToDisk = false
	cfg := &config.VectorConfig{Entries: []config.DatasetConfig{onDisk, inMemory}}
	recorder := newMockRecorder()

	downloader := NewDownloader(cfg, paths, false, &Context{})
	downloader.Recorder = recorder

	// Tested code
	err := downloader.Update()

	// Asserts
	assert.Nil(t, err)
	assert.Equal(t, []string{"street-crime_2023"}, recorder.files["crime"])
	assert.NotContains(t, recorder.files, "air quality", "files kept off disk stay out of the inventory")
}

func TestFileStem(t *testing.T) {
	assert.Equal(t, "local-boundaries_2024", fileStem("/data/raw/boundaries/local-boundaries_2024.json"))
	assert.Equal(t, "archive.tar", fileStem("archive.tar.gz"), "only the final extension is trimmed")
	assert.Equal(t, "plain", fileStem("plain"))
}
