package config

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"strings"
)

// MethodSTACSearch is the download method for raster config entries
const MethodSTACSearch = "stac_search"

const defaultChunksize = 512

// EOFileConfig names the dataset and the folder its composite lands in
type EOFileConfig struct {
	Folder string `json:"folder"`
	Title  string `json:"title"`
}

// EOSTACConfig describes the catalog search for one composite
type EOSTACConfig struct {
	URL         string          `json:"url"`
	Collections []string        `json:"collections"`
	Bbox        []float64       `json:"bbox"`
	Datetime    string          `json:"datetime"`
	Query       json.RawMessage `json:"query"`
}

// EOHandlerConfig controls how fetched assets are stacked and reduced
type EOHandlerConfig struct {
	Assets     []string `json:"assets"`
	Chunksize  int      `json:"chunksize"`
	Resolution float64  `json:"resolution"`
	EPSG       int      `json:"epsg"`
}

// EOMaskConfig clips the composite to one boundary feature. The boundary
// file must be produced by a vector config entry in the same run.
type EOMaskConfig struct {
	BoundaryFile string `json:"boundary_file"`
	Property     string `json:"property"`
	Value        string `json:"value"`
}

// EODatasetConfig is one parsed raster config entry
type EODatasetConfig struct {
	File    EOFileConfig
	STAC    EOSTACConfig
	Handler EOHandlerConfig
	Mask    *EOMaskConfig
}

// Year extracts the composite year from the first half of the search
// datetime interval, e.g. "2023-01-01/2023-12-31" labels a 2023 composite.
func (d EODatasetConfig) Year() string {
	return strings.SplitN(d.STAC.Datetime, "/", 2)[0][:4]
}

// CompositeFilename is the output filename stem for this entry
func (d EODatasetConfig) CompositeFilename() string {
	return fmt.Sprintf("%s_composite__%s", d.File.Title, d.Year())
}

// Validate enforces the content rules on every field
func (d EODatasetConfig) Validate() error {
	if err := ValidateFolder(d.File.Folder); err != nil {
		return err
	}
	if emptyValue(d.File.Title) {
		return fmt.Errorf("%w: title", ErrEmptyValue)
	}
	if err := ValidateURL(d.STAC.URL); err != nil {
		return err
	}
	if len(d.STAC.Collections) == 0 {
		return fmt.Errorf("%w: collections", ErrEmptyValue)
	}
	if len(d.STAC.Bbox) != 4 {
		return fmt.Errorf("%w: bbox must contain exactly 4 values", ErrInvalidValue)
	}
	if d.STAC.Bbox[0] >= d.STAC.Bbox[2] || d.STAC.Bbox[1] >= d.STAC.Bbox[3] {
		return fmt.Errorf("%w: bbox minimums must be below maximums", ErrInvalidValue)
	}
	if err := validateDatetimeInterval(d.STAC.Datetime); err != nil {
		return err
	}
	if len(d.Handler.Assets) == 0 {
		return fmt.Errorf("%w: assets", ErrEmptyValue)
	}
	if d.Handler.Resolution <= 0 {
		return fmt.Errorf("%w: resolution must be positive", ErrInvalidValue)
	}
	if d.Handler.EPSG <= 0 {
		return fmt.Errorf("%w: epsg must be positive", ErrInvalidValue)
	}
	if d.Mask != nil {
		if emptyValue(d.Mask.BoundaryFile) {
			return fmt.Errorf("%w: boundary_file", ErrEmptyValue)
		}
		if emptyValue(d.Mask.Property) {
			return fmt.Errorf("%w: mask property", ErrEmptyValue)
		}
		if emptyValue(d.Mask.Value) {
			return fmt.Errorf("%w: mask value", ErrEmptyValue)
		}
	}
	return nil
}

// validateDatetimeInterval checks the search interval starts with a
// usable 4-digit year so the composite filename can be derived from it.
func validateDatetimeInterval(datetime string) error {
	if emptyValue(datetime) {
		return fmt.Errorf("%w: datetime", ErrEmptyValue)
	}
	start := strings.SplitN(datetime, "/", 2)[0]
	if len(start) < 4 || !validYear(start[:4]) {
		return fmt.Errorf("%w: datetime %q must begin with a year", ErrInvalidYear, datetime)
	}
	return nil
}

// RasterConfig is the parsed raster download configuration
type RasterConfig struct {
	Entries []EODatasetConfig
}

type eoFolderGroupJSON struct {
	Folder   string          `json:"folder"`
	Datasets []eoDatasetJSON `json:"datasets"`
}

type eoDatasetJSON struct {
	DownloadMethod string          `json:"download_method"`
	FileConfig     eoFileJSON      `json:"file_config"`
	STACConfig     EOSTACConfig    `json:"stac_config"`
	HandlerConfig  EOHandlerConfig `json:"handler_config"`
	MaskConfig     *EOMaskConfig   `json:"mask_config"`
}

type eoFileJSON struct {
	Title string `json:"title"`
}

// LoadRasterConfig reads and parses the raster configuration document
func LoadRasterConfig(path string) (*RasterConfig, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseRasterConfig(data)
}

// ParseRasterConfig converts a raw configuration document into typed,
// validated dataset entries. The group folder is copied into each entry.
func ParseRasterConfig(data []byte) (*RasterConfig, error) {
	groups := []eoFolderGroupJSON{}
	if err := json.Unmarshal(data, &groups); err != nil {
		return nil, fmt.Errorf("Could not parse raster config: %s", err.Error())
	}

	parsed := &RasterConfig{}
	for _, group := range groups {
		for _, dataset := range group.Datasets {
			if dataset.DownloadMethod != MethodSTACSearch {
				return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, dataset.DownloadMethod)
			}
			entry := EODatasetConfig{
				File: EOFileConfig{
					Folder: group.Folder,
					Title:  dataset.FileConfig.Title,
				},
				STAC:    dataset.STACConfig,
				Handler: dataset.HandlerConfig,
				Mask:    dataset.MaskConfig,
			}
			if entry.Handler.Chunksize <= 0 {
				entry.Handler.Chunksize = defaultChunksize
			}
			if err := entry.Validate(); err != nil {
				return nil, err
			}
			parsed.Entries = append(parsed.Entries, entry)
		}
	}
	return parsed, nil
}
