package download

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io/ioutil"
	"path/filepath"

	"github.com/citymetrics/ud-data-fetcher/config"
	"github.com/citymetrics/ud-data-fetcher/util"
)

// ZipFileHandler downloads one archive and extracts the configured
// members from it
type ZipFileHandler struct {
	Entry   *config.DatasetConfig
	Context util.LogContext
}

// Filenames lists the output filenames the handler produces
func (h *ZipFileHandler) Filenames() []string {
	return h.Entry.OutputFilenames()
}

// Execute fetches the archive and extracts every configured member
func (h *ZipFileHandler) Execute(rawDirectory string) (map[string][]byte, error) {
	archive, err := fetchFile(h.Entry.File.URL, "zip", h.Context)
	if err != nil {
		return nil, err
	}
	reader, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, util.LogSimpleErr(h.Context, fmt.Sprintf("Failed to open the archive from %v.", h.Entry.File.URL), err)
	}

	results := make(map[string][]byte, len(h.Entry.Zip.Members))
	for _, member := range h.Entry.Zip.Members {
		data, err := readZipMember(reader, member.Member)
		if err != nil {
			return nil, util.LogSimpleErr(h.Context, fmt.Sprintf("Failed to extract %v from %v.", member.Member, h.Entry.File.URL), err)
		}
		if h.Entry.File.WriteToDisk {
			if err = writeDataFile(rawDirectory, h.Entry.File, member.OutputFilename, data, h.Context); err != nil {
				return nil, err
			}
		}
		results[member.OutputFilename] = data
	}
	return results, nil
}

// readZipMember finds one member by its archive path, or failing that by
// its base name, and reads it fully
func readZipMember(reader *zip.Reader, name string) ([]byte, error) {
	for _, file := range reader.File {
		if file.Name != name && filepath.Base(file.Name) != name {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return ioutil.ReadAll(rc)
	}
	return nil, fmt.Errorf("The archive has no member named %q", name)
}
