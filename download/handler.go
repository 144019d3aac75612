package download

import (
	"fmt"
	"io/ioutil"

	"github.com/citymetrics/ud-data-fetcher/config"
	"github.com/citymetrics/ud-data-fetcher/util"
)

// Handler downloads the file or files one vector config entry describes
type Handler interface {
	// Filenames lists the output filenames the handler produces
	Filenames() []string

	// Execute downloads the entry's data, writes files under the raw
	// directory when the entry asks for that, and returns every payload
	// keyed by output filename.
	Execute(rawDirectory string) (map[string][]byte, error)
}

// HandlerFor returns the handler matching the entry's download method
func HandlerFor(entry *config.DatasetConfig, context util.LogContext) (Handler, error) {
	switch entry.Method {
	case config.MethodArcGISGeometry:
		return &ArcGISGeometryHandler{Entry: entry, Context: context}, nil
	case config.MethodURLFile:
		return &URLFileHandler{Entry: entry, Context: context}, nil
	case config.MethodZipFile:
		return &ZipFileHandler{Entry: entry, Context: context}, nil
	}
	return nil, fmt.Errorf("%w: %q", config.ErrUnknownMethod, entry.Method)
}

// writeDataFile writes one payload to <raw>/<folder slug>/<filename>.<ext>
func writeDataFile(rawDirectory string, file config.File, filename string, data []byte, context util.LogContext) error {
	path, err := util.GenerateDataPath(rawDirectory, file.Folder, filename, file.FileExt)
	if err != nil {
		return util.LogSimpleErr(context, fmt.Sprintf("Failed to prepare a path for %v.", filename), err)
	}
	if err = ioutil.WriteFile(path, data, 0666); err != nil {
		return util.LogSimpleErr(context, fmt.Sprintf("Failed to write %v.", path), err)
	}
	return nil
}
