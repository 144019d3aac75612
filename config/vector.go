package config

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"sort"
)

// Download methods recognized in vector config entries
const (
	MethodArcGISGeometry = "arcgis_geom_api"
	MethodURLFile        = "url_file"
	MethodZipFile        = "zip_file"
)

// ArcGISDatasetConfig configures one layer pull from a feature service
type ArcGISDatasetConfig struct {
	Filename       string `json:"filename"`
	Server         string `json:"server"`
	Format         string `json:"format"`
	OutFields      string `json:"outfields"`
	Offset         int    `json:"offset"`
	OutputFilename string `json:"output_filename"`
}

// Validate enforces the content rules on every field
func (c ArcGISDatasetConfig) Validate() error {
	if err := ValidateFilename(c.Filename); err != nil {
		return err
	}
	if err := ValidateServer(c.Server); err != nil {
		return err
	}
	if err := ValidateOffset(c.Offset, maxArcGISOffset); err != nil {
		return err
	}
	return ValidateOutputFilename(c.OutputFilename)
}

const maxArcGISOffset = 2000

// URLFileDatasetConfig configures a plain single-file download
type URLFileDatasetConfig struct {
	OutputFilename string `json:"output_filename"`
}

// Validate enforces the content rules on every field
func (c URLFileDatasetConfig) Validate() error {
	return ValidateOutputFilename(c.OutputFilename)
}

// ZipMember names one archive member and the filename it is extracted to
type ZipMember struct {
	Member         string `json:"member"`
	OutputFilename string `json:"output_filename"`
}

// ZipDatasetConfig configures extraction of one or more members from a
// single archive download
type ZipDatasetConfig struct {
	Members []ZipMember `json:"members"`
}

// Validate enforces the content rules on every member
func (c ZipDatasetConfig) Validate() error {
	if len(c.Members) == 0 {
		return fmt.Errorf("%w: zip members", ErrEmptyValue)
	}
	for _, member := range c.Members {
		if err := ValidateFilename(member.Member); err != nil {
			return err
		}
		if err := ValidateOutputFilename(member.OutputFilename); err != nil {
			return err
		}
	}
	return nil
}

// DatasetConfig is one parsed vector config entry: the shared file
// definition plus exactly one populated handler config.
type DatasetConfig struct {
	Method  string
	File    File
	ArcGIS  *ArcGISDatasetConfig
	URLFile *URLFileDatasetConfig
	Zip     *ZipDatasetConfig
}

// OutputFilenames lists every filename this entry produces. Zip entries
// may produce several, everything else produces one.
func (d DatasetConfig) OutputFilenames() []string {
	switch d.Method {
	case MethodArcGISGeometry:
		return []string{d.ArcGIS.OutputFilename}
	case MethodURLFile:
		return []string{d.URLFile.OutputFilename}
	case MethodZipFile:
		names := make([]string, len(d.Zip.Members))
		for i, member := range d.Zip.Members {
			names[i] = member.OutputFilename
		}
		return names
	}
	return nil
}

// VectorConfig is the parsed vector download configuration
type VectorConfig struct {
	Entries  []DatasetConfig
	Warnings []string
}

type folderGroupJSON struct {
	Folder   string        `json:"folder"`
	Datasets []datasetJSON `json:"datasets"`
}

type datasetJSON struct {
	DownloadMethod string          `json:"download_method"`
	FileConfig     fileConfigJSON  `json:"file_config"`
	HandlerConfig  json.RawMessage `json:"handler_config"`
}

type fileConfigJSON struct {
	URL         string `json:"url"`
	FileExt     string `json:"file_ext"`
	WriteToDisk bool   `json:"write_to_disk"`
}

// LoadVectorConfig reads and parses the vector configuration document
func LoadVectorConfig(path string) (*VectorConfig, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseVectorConfig(data)
}

// ParseVectorConfig converts a raw configuration document into typed,
// validated dataset entries and collects duplicate warnings.
func ParseVectorConfig(data []byte) (*VectorConfig, error) {
	groups := []folderGroupJSON{}
	if err := json.Unmarshal(data, &groups); err != nil {
		return nil, fmt.Errorf("Could not parse vector config: %s", err.Error())
	}

	parsed := &VectorConfig{}
	for _, group := range groups {
		for _, dataset := range group.Datasets {
			entry := DatasetConfig{
				Method: dataset.DownloadMethod,
				File: File{
					Folder:      group.Folder,
					URL:         dataset.FileConfig.URL,
					FileExt:     dataset.FileConfig.FileExt,
					WriteToDisk: dataset.FileConfig.WriteToDisk,
				},
			}
			if err := entry.File.Validate(); err != nil {
				return nil, err
			}

			switch dataset.DownloadMethod {
			case MethodArcGISGeometry:
				handler := &ArcGISDatasetConfig{}
				if err := unmarshalHandler(dataset.HandlerConfig, handler); err != nil {
					return nil, err
				}
				entry.ArcGIS = handler
			case MethodURLFile:
				handler := &URLFileDatasetConfig{}
				if err := unmarshalHandler(dataset.HandlerConfig, handler); err != nil {
					return nil, err
				}
				entry.URLFile = handler
			case MethodZipFile:
				handler := &ZipDatasetConfig{}
				if err := unmarshalHandler(dataset.HandlerConfig, handler); err != nil {
					return nil, err
				}
				entry.Zip = handler
			default:
				return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, dataset.DownloadMethod)
			}

			parsed.Entries = append(parsed.Entries, entry)
		}
	}

	parsed.Warnings = append(parsed.Warnings, parsed.findDuplicateURLs()...)
	parsed.Warnings = append(parsed.Warnings, parsed.findDuplicateFilenames()...)
	return parsed, nil
}

type handlerValidator interface {
	Validate() error
}

func unmarshalHandler(raw json.RawMessage, handler handlerValidator) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: handler_config", ErrEmptyValue)
	}
	if err := json.Unmarshal(raw, handler); err != nil {
		return fmt.Errorf("Could not parse handler config: %s", err.Error())
	}
	return handler.Validate()
}

// findDuplicateURLs warns when entries share a source URL. Zip entries
// sharing a URL should extract both members in one entry instead;
// feature-service entries legitimately share their base URL and are
// exempt.
func (c *VectorConfig) findDuplicateURLs() []string {
	warnings := []string{}
	urls := map[string]bool{}
	zipURLs := map[string]bool{}

	for _, entry := range c.Entries {
		url := entry.File.URL
		switch entry.Method {
		case MethodZipFile:
			if zipURLs[url] {
				warnings = append(warnings, fmt.Sprintf("You are downloading a zip file from url: %q more than once. You can extract multiple files from the same zip file within a single config entry.", url))
			}
			zipURLs[url] = true
		case MethodArcGISGeometry:
			// exempt
		default:
			if urls[url] {
				warnings = append(warnings, fmt.Sprintf("You have more than one config entry pointing to the file located at: %q. This will download multiple duplicate files.", url))
			}
			urls[url] = true
		}
	}
	return warnings
}

func (c *VectorConfig) findDuplicateFilenames() []string {
	warnings := []string{}
	filenames := map[string]bool{}

	for _, entry := range c.Entries {
		for _, filename := range entry.OutputFilenames() {
			if filenames[filename] {
				warnings = append(warnings, fmt.Sprintf("You have more than one config entry generating a filename of: %q.", filename))
			}
			filenames[filename] = true
		}
	}
	return warnings
}

// FileConfigByName finds the entry that produces the given filename
func (c *VectorConfig) FileConfigByName(filename string) (*DatasetConfig, error) {
	for i := range c.Entries {
		for _, name := range c.Entries[i].OutputFilenames() {
			if name == filename {
				return &c.Entries[i], nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrFilenameNotFound, filename)
}

// RequiredFilenames lists every output filename in the config, sorted
func (c *VectorConfig) RequiredFilenames() []string {
	names := []string{}
	for _, entry := range c.Entries {
		names = append(names, entry.OutputFilenames()...)
	}
	sort.Strings(names)
	return names
}

// Folders lists the distinct folder names the config writes into, sorted
func (c *VectorConfig) Folders() []string {
	seen := map[string]bool{}
	folders := []string{}
	for _, entry := range c.Entries {
		if !seen[entry.File.Folder] {
			seen[entry.File.Folder] = true
			folders = append(folders, entry.File.Folder)
		}
	}
	sort.Strings(folders)
	return folders
}
