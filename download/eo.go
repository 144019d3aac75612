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
	"errors"
	"fmt"
	"io/ioutil"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/citymetrics/ud-data-fetcher/config"
	"github.com/citymetrics/ud-data-fetcher/geotiff"
	"github.com/citymetrics/ud-data-fetcher/model"
	"github.com/citymetrics/ud-data-fetcher/raster"
	"github.com/citymetrics/ud-data-fetcher/stac"
	"github.com/citymetrics/ud-data-fetcher/util"
	"github.com/venicegeo/geojson-go/geojson"
	"golang.org/x/sync/errgroup"
)

// assetFetchWorkers caps how many scene assets download at once
const assetFetchWorkers = 4

// Scene assets run to hundreds of megabytes, so they get a far more
// generous timeout than ordinary requests.
var assetClient = util.HTTPClientWithTimeout(5 * time.Minute)

// InventoryRecorder persists fetch provenance when an inventory
// database is configured: which scenes went into a composite, and which
// output files each sync wrote.
type InventoryRecorder interface {
	RecordScenes(scenes []model.SceneSearchResult, composite string) error
	RecordFiles(folder string, filenames []string) error
}

// EOPipeline builds a median composite for every raster config entry
type EOPipeline struct {
	Config   *config.RasterConfig
	Paths    util.Paths
	Context  util.LogContext
	Recorder InventoryRecorder
}

// Run processes the entries in order, stopping at the first failure
func (p *EOPipeline) Run() error {
	for i := range p.Config.Entries {
		if err := p.ProcessDataset(&p.Config.Entries[i]); err != nil {
			return err
		}
	}
	return nil
}

// ProcessDataset builds one composite: search the catalog, fetch the
// configured assets of every usable scene, reduce each band to its
// per-pixel median, mask, and write a multiband GeoTIFF. A composite
// that is already on disk is not rebuilt.
func (p *EOPipeline) ProcessDataset(entry *config.EODatasetConfig) error {
	compositePath, err := util.GenerateDataPath(p.Paths.Raw, entry.File.Folder, entry.CompositeFilename(), "tif")
	if err != nil {
		return util.LogSimpleErr(p.Context, fmt.Sprintf("Failed to prepare a path for %v.", entry.CompositeFilename()), err)
	}
	if _, err = os.Stat(compositePath); err == nil {
		util.LogInfo(p.Context, fmt.Sprintf("Composite %s is up to date", entry.CompositeFilename()))
		return nil
	}

	stacContext := &stac.Context{BaseSTACURL: entry.STAC.URL, SASTokenURL: util.GetSASTokenURL()}
	scenes, err := stac.Search(stac.SearchOptions{
		Collections: entry.STAC.Collections,
		Bbox:        entry.STAC.Bbox,
		Datetime:    entry.STAC.Datetime,
		Query:       entry.STAC.Query,
	}, stacContext)
	if err != nil {
		return err
	}
	util.LogInfo(p.Context, fmt.Sprintf("Number of items found for %s: %d", entry.Year(), len(scenes)))

	scenes = p.usableScenes(scenes, entry.Handler.EPSG)
	if len(scenes) == 0 {
		return util.LogSimpleErr(p.Context, fmt.Sprintf("No usable scenes found for %v.", entry.CompositeFilename()), nil)
	}

	var signer *stac.Signer
	if stac.ShouldSign(entry.STAC.URL) {
		signer = stac.NewSigner(stacContext)
	}

	sceneBands, err := p.fetchSceneBands(scenes, entry, signer)
	if err != nil {
		return err
	}

	width, height, transform, err := p.targetGeometry(sceneBands, entry)
	if err != nil {
		return err
	}

	grids := make([]*raster.Grid, 0, len(entry.Handler.Assets))
	names := make([]string, 0, len(entry.Handler.Assets))
	for _, assetKey := range entry.Handler.Assets {
		name := model.CommonBandName(assetKey, "")
		stack := []*raster.Grid{}
		for _, bands := range sceneBands {
			grid, ok := bands[name]
			if !ok {
				continue
			}
			aligned, err := grid.Regrid(width, height, transform, entry.Handler.EPSG)
			if err != nil {
				return util.LogSimpleErr(p.Context, fmt.Sprintf("Failed to align a %v asset.", name), err)
			}
			stack = append(stack, aligned)
		}
		if len(stack) == 0 {
			return util.LogSimpleErr(p.Context, fmt.Sprintf("No scenes carry the %v band.", name), nil)
		}
		reduced, err := raster.MedianStack(stack, entry.Handler.Chunksize)
		if err != nil {
			return err
		}
		grids = append(grids, reduced)
		names = append(names, name)
	}

	if entry.Mask != nil {
		polygons, err := p.boundaryPolygons(entry.Mask, entry.Handler.EPSG)
		if err != nil {
			return err
		}
		for _, grid := range grids {
			grid.MaskOutside(polygons)
		}
	}

	encoded, err := geotiff.Encode(grids, names)
	if err != nil {
		return err
	}
	if err = ioutil.WriteFile(compositePath, encoded, 0666); err != nil {
		return util.LogSimpleErr(p.Context, fmt.Sprintf("Failed to write composite %v.", compositePath), err)
	}
	util.LogInfo(p.Context, fmt.Sprintf("Created raw composite: %s", compositePath))

	if p.Recorder != nil {
		if err = p.Recorder.RecordScenes(scenes, entry.CompositeFilename()); err != nil {
			util.LogAlert(p.Context, fmt.Sprintf("Failed to record scenes in the inventory: %s", err.Error()))
		}
		if err = p.Recorder.RecordFiles(entry.File.Folder, []string{entry.CompositeFilename()}); err != nil {
			util.LogAlert(p.Context, fmt.Sprintf("Failed to record the composite in the inventory: %s", err.Error()))
		}
	}
	return nil
}

// usableScenes drops scenes the compositor cannot stack: ones without
// cloud-optimized GeoTIFF assets, and ones gridded in a different
// coordinate system than the composite.
func (p *EOPipeline) usableScenes(scenes []model.SceneSearchResult, epsg int) []model.SceneSearchResult {
	usable := make([]model.SceneSearchResult, 0, len(scenes))
	for _, scene := range scenes {
		if scene.FileFormat != model.GeoTIFF {
			util.LogAlert(p.Context, fmt.Sprintf("Skipping scene %s: %s assets are not supported", scene.ID, scene.FileFormat))
			continue
		}
		if scene.EPSG != 0 && scene.EPSG != epsg {
			util.LogAlert(p.Context, fmt.Sprintf("Skipping scene %s on EPSG:%d, the composite grid is EPSG:%d", scene.ID, scene.EPSG, epsg))
			continue
		}
		usable = append(usable, scene)
	}
	return usable
}

// fetchSceneBands downloads and decodes the configured assets of every
// scene, a few at a time. The returned slice parallels scenes, each
// element holding that scene's grids keyed by common band name.
func (p *EOPipeline) fetchSceneBands(scenes []model.SceneSearchResult, entry *config.EODatasetConfig, signer *stac.Signer) ([]map[string]*raster.Grid, error) {
	cacheDir := filepath.Join(p.Paths.Raw, util.GenerateSlug(entry.File.Folder, "-"), "assets")
	if err := os.MkdirAll(cacheDir, 0777); err != nil {
		return nil, util.LogSimpleErr(p.Context, fmt.Sprintf("Failed to create asset cache directory %v.", cacheDir), err)
	}

	sceneBands := make([]map[string]*raster.Grid, len(scenes))
	var mutex sync.Mutex
	group := new(errgroup.Group)
	group.SetLimit(assetFetchWorkers)

	for i := range scenes {
		index := i
		scene := scenes[i]
		for _, assetKey := range entry.Handler.Assets {
			name := model.CommonBandName(assetKey, "")
			href, ok := scene.Bands[name]
			if !ok {
				util.LogAlert(p.Context, fmt.Sprintf("Scene %s has no %s asset", scene.ID, name))
				continue
			}
			band := name
			assetHref := href
			group.Go(func() error {
				grid, err := p.fetchAsset(scene, band, assetHref, cacheDir, signer)
				if err != nil {
					return err
				}
				grid.KeepPositive()

				mutex.Lock()
				if sceneBands[index] == nil {
					sceneBands[index] = map[string]*raster.Grid{}
				}
				sceneBands[index][band] = grid
				mutex.Unlock()
				return nil
			})
		}
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return sceneBands, nil
}

// fetchAsset returns the decoded first band of one scene asset. Fetched
// files are cached under the dataset folder so an interrupted run does
// not refetch them.
func (p *EOPipeline) fetchAsset(scene model.SceneSearchResult, band, href, cacheDir string, signer *stac.Signer) (*raster.Grid, error) {
	cachePath := filepath.Join(cacheDir, fmt.Sprintf("%s_%s.tif", scene.ID, band))
	if data, err := ioutil.ReadFile(cachePath); err == nil {
		image, err := geotiff.Decode(data)
		if err == nil && len(image.Grids) > 0 {
			return image.Grids[0], nil
		}
		util.LogAlert(p.Context, fmt.Sprintf("Cached asset %v is unreadable, refetching", cachePath))
	}

	fetchURL := href
	if signer != nil {
		signed, err := signer.SignURL(scene.Collection, href)
		if err != nil {
			return nil, err
		}
		fetchURL = signed
	}

	util.LogAudit(p.Context, util.LogAuditInput{
		Actor:    "download/fetchAsset",
		Action:   "GET",
		Actee:    href,
		Message:  "Requesting scene asset",
		Severity: util.INFO,
	})
	response, err := assetClient.Get(fetchURL)
	if err != nil {
		return nil, util.LogSimpleErr(p.Context, fmt.Sprintf("Failed to fetch asset %v.", href), err)
	}
	defer response.Body.Close()

	data, err := ioutil.ReadAll(response.Body)
	if err != nil {
		return nil, util.LogSimpleErr(p.Context, fmt.Sprintf("Failed to read asset %v.", href), err)
	}
	if response.StatusCode != http.StatusOK {
		assetErr := util.Error{
			LogMsg:     "Asset fetch returned " + response.Status,
			SimpleMsg:  fmt.Sprintf("An asset for scene %v could not be fetched. See log for further details.", scene.ID),
			Response:   string(data),
			URL:        href,
			HTTPStatus: response.StatusCode,
		}
		return nil, assetErr.Log(p.Context, "")
	}
	util.LogAudit(p.Context, util.LogAuditInput{
		Actor:    href,
		Action:   "GET response",
		Actee:    "download/fetchAsset",
		Message:  "Retrieving scene asset",
		Severity: util.INFO,
	})

	if err = ioutil.WriteFile(cachePath, data, 0666); err != nil {
		util.LogAlert(p.Context, fmt.Sprintf("Could not cache asset %v: %s", cachePath, err.Error()))
	}

	image, err := geotiff.Decode(data)
	if err != nil {
		return nil, util.LogSimpleErr(p.Context, fmt.Sprintf("Failed to decode asset %v.", href), err)
	}
	if len(image.Grids) == 0 {
		return nil, util.LogSimpleErr(p.Context, fmt.Sprintf("Asset %v holds no raster bands.", href), nil)
	}
	return image.Grids[0], nil
}

// targetGeometry lays the composite grid over the configured bounding
// box, clipped to the area the fetched scenes actually cover
func (p *EOPipeline) targetGeometry(sceneBands []map[string]*raster.Grid, entry *config.EODatasetConfig) (int, int, raster.Transform, error) {
	grids := []*raster.Grid{}
	for _, bands := range sceneBands {
		for _, grid := range bands {
			grids = append(grids, grid)
		}
	}
	if len(grids) == 0 {
		return 0, 0, raster.Transform{}, util.LogSimpleErr(p.Context, fmt.Sprintf("No assets were fetched for %v.", entry.CompositeFilename()), nil)
	}
	minX, minY, maxX, maxY := raster.Union(grids)

	bbox := entry.STAC.Bbox
	corners := [][]float64{
		{bbox[0], bbox[1]},
		{bbox[2], bbox[1]},
		{bbox[2], bbox[3]},
		{bbox[0], bbox[3]},
	}
	projected, err := raster.ProjectRing(corners, entry.Handler.EPSG)
	if err != nil {
		return 0, 0, raster.Transform{}, err
	}
	clipMinX, clipMinY := math.Inf(1), math.Inf(1)
	clipMaxX, clipMaxY := math.Inf(-1), math.Inf(-1)
	for _, point := range projected {
		clipMinX = math.Min(clipMinX, point[0])
		clipMinY = math.Min(clipMinY, point[1])
		clipMaxX = math.Max(clipMaxX, point[0])
		clipMaxY = math.Max(clipMaxY, point[1])
	}
	minX, minY, maxX, maxY = raster.Intersect(minX, minY, maxX, maxY, clipMinX, clipMinY, clipMaxX, clipMaxY)

	return raster.TargetGeometry(minX, minY, maxX, maxY, entry.Handler.Resolution)
}

// boundaryPolygons loads the boundary file the vector sync wrote, keeps
// the features matching the configured property value, and projects
// their rings into the composite's coordinate system
func (p *EOPipeline) boundaryPolygons(mask *config.EOMaskConfig, epsg int) ([][][][]float64, error) {
	path, err := findBoundaryFile(p.Paths.Raw, mask.BoundaryFile)
	if err != nil {
		return nil, util.LogSimpleErr(p.Context, fmt.Sprintf("Could not locate boundary file %v under %v.", mask.BoundaryFile, p.Paths.Raw), err)
	}
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, util.LogSimpleErr(p.Context, fmt.Sprintf("Failed to read boundary file %v.", path), err)
	}
	parsed, err := geojson.Parse(data)
	if err != nil {
		return nil, util.LogSimpleErr(p.Context, fmt.Sprintf("Failed to parse boundary file %v.", path), err)
	}
	collection, ok := parsed.(*geojson.FeatureCollection)
	if !ok {
		return nil, util.LogSimpleErr(p.Context, fmt.Sprintf("Boundary file %v is not a feature collection.", path), nil)
	}

	polygons := [][][][]float64{}
	for _, feature := range collection.Features {
		if feature.PropertyString(mask.Property) != mask.Value {
			continue
		}
		for _, polygon := range polygonRings(feature.Geometry) {
			projectedPolygon := make([][][]float64, len(polygon))
			for r, ring := range polygon {
				projectedRing, err := raster.ProjectRing(ring, epsg)
				if err != nil {
					return nil, err
				}
				projectedPolygon[r] = projectedRing
			}
			polygons = append(polygons, projectedPolygon)
		}
	}
	if len(polygons) == 0 {
		return nil, util.LogSimpleErr(p.Context, fmt.Sprintf("No boundary features matched %s=%s.", mask.Property, mask.Value), nil)
	}
	return polygons, nil
}

// polygonRings flattens a GeoJSON geometry into sets of polygon rings
func polygonRings(geometry interface{}) [][][][]float64 {
	switch geom := geometry.(type) {
	case *geojson.Polygon:
		return [][][][]float64{geom.Coordinates}
	case *geojson.MultiPolygon:
		return geom.Coordinates
	}
	return nil
}

var errBoundaryFound = errors.New("boundary file located")

// findBoundaryFile walks the raw directory for a file with the given
// filename stem
func findBoundaryFile(root, stem string) (string, error) {
	var found string
	err := filepath.Walk(root, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() || fileStem(path) != stem {
			return nil
		}
		found = path
		return errBoundaryFound
	})
	if err != nil && err != errBoundaryFound {
		return "", err
	}
	if found == "" {
		return "", fmt.Errorf("No file named %q exists under %s", stem, root)
	}
	return found, nil
}
