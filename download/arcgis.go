package download

import (
	"github.com/citymetrics/ud-data-fetcher/arcgis"
	"github.com/citymetrics/ud-data-fetcher/config"
	"github.com/citymetrics/ud-data-fetcher/util"
)

// ArcGISGeometryHandler pulls one layer from an ArcGIS feature service
// and stores it as GeoJSON
type ArcGISGeometryHandler struct {
	Entry   *config.DatasetConfig
	Context util.LogContext
}

// Filenames lists the output filenames the handler produces
func (h *ArcGISGeometryHandler) Filenames() []string {
	return h.Entry.OutputFilenames()
}

// Execute queries every feature in the configured layer and returns the
// collection as GeoJSON bytes
func (h *ArcGISGeometryHandler) Execute(rawDirectory string) (map[string][]byte, error) {
	cfg := h.Entry.ArcGIS
	collection, err := arcgis.QueryFeatures(arcgis.QueryOptions{
		ServiceURL: h.Entry.File.URL,
		Filename:   cfg.Filename,
		Server:     cfg.Server,
		Format:     cfg.Format,
		OutFields:  cfg.OutFields,
		Offset:     cfg.Offset,
	}, &arcgis.Context{})
	if err != nil {
		return nil, err
	}

	data := []byte(collection.String())
	if h.Entry.File.WriteToDisk {
		if err = writeDataFile(rawDirectory, h.Entry.File, cfg.OutputFilename, data, h.Context); err != nil {
			return nil, err
		}
	}
	return map[string][]byte{cfg.OutputFilename: data}, nil
}
