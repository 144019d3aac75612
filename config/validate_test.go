package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateFolder(t *testing.T) {
	// Tested code & Asserts
	assert.Nil(t, ValidateFolder("boundaries"), "plain folder names should validate")
	assert.Nil(t, ValidateFolder("lsoa-boundaries"), "hyphenated folder names should validate")

	err := ValidateFolder("")
	assert.ErrorIs(t, err, ErrEmptyValue, "empty folders should be rejected")

	err = ValidateFolder("lsoa boundaries")
	assert.ErrorIs(t, err, ErrInvalidSpace, "folders containing spaces should be rejected")
}

func TestValidateURL(t *testing.T) {
	// Tested code & Asserts
	assert.Nil(t, ValidateURL("https://example.com/data.geojson"))
	assert.Nil(t, ValidateURL("http://example.com/query?f=geojson"))

	err := ValidateURL("ftp://example.com/data.zip")
	assert.ErrorIs(t, err, ErrInvalidValue, "non-http schemes should be rejected")

	err = ValidateURL("/relative/path/data.csv")
	assert.ErrorIs(t, err, ErrInvalidValue, "relative URLs should be rejected")

	err = ValidateURL("not a url")
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestValidateFileExt(t *testing.T) {
	// Tested code & Asserts
	assert.Nil(t, ValidateFileExt("geojson"))
	assert.ErrorIs(t, ValidateFileExt(""), ErrEmptyValue)
	assert.ErrorIs(t, ValidateFileExt("   "), ErrEmptyValue)
}

func TestValidateServer(t *testing.T) {
	// Tested code & Asserts
	assert.Nil(t, ValidateServer("ons"))
	assert.Nil(t, ValidateServer("scot"))
	assert.ErrorIs(t, ValidateServer("aws"), ErrInvalidServer)
	assert.ErrorIs(t, ValidateServer(""), ErrInvalidServer)
}

func TestValidateOutputFilename(t *testing.T) {
	// Tested code & Asserts
	assert.Nil(t, ValidateOutputFilename("crime-data_2019"), "single years should validate")
	assert.Nil(t, ValidateOutputFilename("crime-data_2019-2024"), "year ranges should validate")

	err := ValidateOutputFilename("")
	assert.ErrorIs(t, err, ErrEmptyValue)

	err = ValidateOutputFilename("crime data_2019")
	assert.ErrorIs(t, err, ErrInvalidSpace)

	err = ValidateOutputFilename("crime-data-2019")
	assert.ErrorIs(t, err, ErrInvalidSymbols, "the year must be separated by an underscore")

	err = ValidateOutputFilename("crime_data_2019")
	assert.ErrorIs(t, err, ErrInvalidSymbols, "only one underscore is allowed")

	err = ValidateOutputFilename("crime-data_1989")
	assert.ErrorIs(t, err, ErrInvalidYear, "years before 1990 should be rejected")

	err = ValidateOutputFilename("crime-data_3019")
	assert.ErrorIs(t, err, ErrInvalidYear, "years after the current year should be rejected")

	err = ValidateOutputFilename("crime-data_2019-3019")
	assert.ErrorIs(t, err, ErrInvalidYear, "every year in a range is checked")

	err = ValidateOutputFilename("crime-data_latest")
	assert.ErrorIs(t, err, ErrInvalidYear)
}

func TestValidateOffset(t *testing.T) {
	// Tested code & Asserts
	assert.Nil(t, ValidateOffset(0, 2000))
	assert.Nil(t, ValidateOffset(2000, 2000))
	assert.ErrorIs(t, ValidateOffset(-1, 2000), ErrInvalidValue)
	assert.ErrorIs(t, ValidateOffset(2001, 2000), ErrInvalidValue)
}

func TestFile_Validate(t *testing.T) {
	// Mock
	file := File{
		Folder:      "boundaries",
		URL:         "https://example.com/data.geojson",
		FileExt:     "geojson",
		WriteToDisk: true,
	}

	// Tested code & Asserts
	assert.Nil(t, file.Validate())

	badFolder := file
	badFolder.Folder = "lsoa boundaries"
	assert.ErrorIs(t, badFolder.Validate(), ErrInvalidSpace)

	badURL := file
	badURL.URL = "example.com/data.geojson"
	assert.ErrorIs(t, badURL.Validate(), ErrInvalidValue)

	badExt := file
	badExt.FileExt = ""
	assert.ErrorIs(t, badExt.Validate(), ErrEmptyValue)
}
