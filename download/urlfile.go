package download

import (
	"fmt"
	"io/ioutil"
	"mime"
	"net/http"
	"strings"

	"github.com/citymetrics/ud-data-fetcher/config"
	"github.com/citymetrics/ud-data-fetcher/util"
)

// fileTypeHandlers maps a file extension to the handler family expected
// to process files of that type
var fileTypeHandlers = map[string]string{
	"json":    "json",
	"geojson": "json",
	"csv":     "csv",
	"xlsx":    "xlsx",
	"ods":     "ods",
	"xls":     "xls",
	"html":    "html",
	"zip":     "zip",
	"bin":     "zip",
}

// contentTypeExtensions maps response media types to the file extension
// they imply
var contentTypeExtensions = map[string]string{
	"application/json":         "json",
	"application/geo+json":     "geojson",
	"text/csv":                 "csv",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": "xlsx",
	"application/vnd.oasis.opendocument.spreadsheet":                    "ods",
	"application/vnd.ms-excel": "xls",
	"text/html":                "html",
	"application/zip":          "zip",
	"application/octet-stream": "bin",
}

// URLFileHandler downloads a single file from a plain URL
type URLFileHandler struct {
	Entry   *config.DatasetConfig
	Context util.LogContext
}

// Filenames lists the output filenames the handler produces
func (h *URLFileHandler) Filenames() []string {
	return h.Entry.OutputFilenames()
}

// Execute fetches the file and checks its content type against the
// extension the entry expects
func (h *URLFileHandler) Execute(rawDirectory string) (map[string][]byte, error) {
	data, err := fetchFile(h.Entry.File.URL, h.Entry.File.FileExt, h.Context)
	if err != nil {
		return nil, err
	}

	filename := h.Entry.URLFile.OutputFilename
	if h.Entry.File.WriteToDisk {
		if err = writeDataFile(rawDirectory, h.Entry.File, filename, data, h.Context); err != nil {
			return nil, err
		}
	}
	return map[string][]byte{filename: data}, nil
}

// fetchFile GETs a file and validates the response content type against
// the configured extension
func fetchFile(inputURL, fileExt string, context util.LogContext) ([]byte, error) {
	util.LogAudit(context, util.LogAuditInput{
		Actor:    "download/fetchFile",
		Action:   "GET",
		Actee:    inputURL,
		Message:  "Requesting data file",
		Severity: util.INFO,
	})
	response, err := util.HTTPClient().Get(inputURL)
	if err != nil {
		return nil, util.LogSimpleErr(context, fmt.Sprintf("Failed to complete the file request for %v.", inputURL), err)
	}
	defer response.Body.Close()

	body, err := ioutil.ReadAll(response.Body)
	if err != nil {
		return nil, util.LogSimpleErr(context, fmt.Sprintf("Failed to read the file response from %v.", inputURL), err)
	}
	if response.StatusCode != http.StatusOK {
		fileErr := util.Error{
			LogMsg:     "File request returned " + response.Status,
			SimpleMsg:  fmt.Sprintf("The file at %v could not be downloaded. See log for further details.", inputURL),
			Response:   string(body),
			URL:        inputURL,
			HTTPStatus: response.StatusCode,
		}
		return nil, fileErr.Log(context, "")
	}
	util.LogAudit(context, util.LogAuditInput{
		Actor:    inputURL,
		Action:   "GET response",
		Actee:    "download/fetchFile",
		Message:  "Retrieving data file",
		Severity: util.INFO,
	})

	if err = validateContentType(fileExt, response.Header.Get("Content-Type"), context); err != nil {
		return nil, err
	}
	return body, nil
}

// validateContentType compares the extension a response's content type
// implies with the one the config expects. Responses whose type cannot
// be determined are let through with an alert.
func validateContentType(fileExt, contentType string, context util.LogContext) error {
	if contentType == "" {
		util.LogAlert(context, "Cannot validate file type/content")
		return nil
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		util.LogAlert(context, fmt.Sprintf("Warning: Unable to parse content type %q", contentType))
		return nil
	}
	extension, ok := contentTypeExtensions[mediaType]
	if !ok {
		util.LogAlert(context, "Warning: Unable to determine file extension")
		return nil
	}
	fileType, ok := fileTypeHandlers[extension]
	if !ok {
		return util.LogSimpleErr(context, fmt.Sprintf("Error: Unsupported file extension: %s", extension), nil)
	}
	if expected := strings.ToLower(fileExt); fileType != expected {
		return util.LogSimpleErr(context, fmt.Sprintf("Error: Expected '%s', but found '%s'", expected, fileType), nil)
	}
	return nil
}
