package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/citymetrics/ud-data-fetcher/arcgis"
)

// Output filenames carry their vintage after a single underscore, as
// either one year or a hyphenated range: crime-data_2019,
// crime-data_2019-2024. Years before 1990 predate every dataset the
// fetcher handles.
const earliestYear = 1990

func emptyValue(value string) bool {
	return strings.TrimSpace(value) == ""
}

func stringContainsSpace(value string) bool {
	return strings.Contains(value, " ")
}

func invalidSymbolCount(value, symbol string, occurrences int) bool {
	return len(strings.Split(value, symbol)) != occurrences+1
}

func validYear(year string) bool {
	parsed, err := strconv.Atoi(year)
	if err != nil {
		return false
	}
	return parsed >= earliestYear && parsed <= time.Now().Year()
}

func stringContainsYear(value string) bool {
	parts := strings.Split(value, "_")
	if len(parts) != 2 {
		return false
	}
	for _, year := range strings.Split(parts[1], "-") {
		if !validYear(year) {
			return false
		}
	}
	return true
}

// ValidateFolder requires a folder name that is populated and free of spaces
func ValidateFolder(folder string) error {
	if emptyValue(folder) {
		return fmt.Errorf("%w: file folder", ErrEmptyValue)
	}
	if stringContainsSpace(folder) {
		return fmt.Errorf("%w: folder %q", ErrInvalidSpace, folder)
	}
	return nil
}

// ValidateURL requires an absolute http(s) URL
func ValidateURL(rawURL string) error {
	parsed, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return fmt.Errorf("%w: url %q is not valid: %s", ErrInvalidValue, rawURL, err.Error())
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" || parsed.Host == "" {
		return fmt.Errorf("%w: url %q is not valid", ErrInvalidValue, rawURL)
	}
	return nil
}

// ValidateFileExt requires a populated file extension
func ValidateFileExt(ext string) error {
	if emptyValue(ext) {
		return fmt.Errorf("%w: file extension", ErrEmptyValue)
	}
	return nil
}

// ValidateFilename requires a populated filename
func ValidateFilename(filename string) error {
	if emptyValue(filename) {
		return fmt.Errorf("%w: filename", ErrEmptyValue)
	}
	return nil
}

// ValidateServer requires a server key from the approved geometry servers
func ValidateServer(server string) error {
	if _, ok := arcgis.Servers[server]; !ok {
		keys := make([]string, 0, len(arcgis.Servers))
		for key := range arcgis.Servers {
			keys = append(keys, key)
		}
		return fmt.Errorf("%w: %q (approved: %s)", ErrInvalidServer, server, strings.Join(keys, ", "))
	}
	return nil
}

// ValidateOutputFilename requires the name_year / name_year1-year2 shape
func ValidateOutputFilename(filename string) error {
	if emptyValue(filename) {
		return fmt.Errorf("%w: output filename", ErrEmptyValue)
	}
	if stringContainsSpace(filename) {
		return fmt.Errorf("%w: output filename %q", ErrInvalidSpace, filename)
	}
	if invalidSymbolCount(filename, "_", 1) {
		return fmt.Errorf("%w: output filename %q needs a single underscore before the year value(s), e.g. 'filename-string_2019-2020'", ErrInvalidSymbols, filename)
	}
	if !stringContainsYear(filename) {
		return fmt.Errorf("%w: output filename %q needs a 4 digit year between %d and the current year, or a hyphen separated range, after the underscore", ErrInvalidYear, filename, earliestYear)
	}
	return nil
}

// ValidateOffset requires a batch offset between zero and maximum
func ValidateOffset(offset, maximum int) error {
	if offset < 0 {
		return fmt.Errorf("%w: offsets must be a positive number", ErrInvalidValue)
	}
	if offset > maximum {
		return fmt.Errorf("%w: offset can not be greater than %d", ErrInvalidValue, maximum)
	}
	return nil
}
