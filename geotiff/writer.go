package geotiff

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/citymetrics/ud-data-fetcher/raster"
)

const writerRowsPerStrip = 128

// Encode serializes one grid per band into a little endian, deflate
// compressed GeoTIFF. All grids must share the same geometry. Cells
// holding NaN are declared as the nodata value so downstream readers
// honor them.
func Encode(grids []*raster.Grid, bandNames []string) ([]byte, error) {
	if len(grids) == 0 {
		return nil, fmt.Errorf("Encoding requires at least one band")
	}
	first := grids[0]
	for _, grid := range grids[1:] {
		if !grid.SameGeometry(first) {
			return nil, fmt.Errorf("All bands must share the same grid geometry")
		}
	}
	if len(bandNames) != 0 && len(bandNames) != len(grids) {
		return nil, fmt.Errorf("Got %d band names for %d bands", len(bandNames), len(grids))
	}
	if first.EPSG <= 0 || first.EPSG > math.MaxUint16 {
		return nil, fmt.Errorf("EPSG code %d cannot be stored in a GeoTIFF key", first.EPSG)
	}

	samples := len(grids)
	width, height := first.Width, first.Height
	rowBytes := width * samples * 4

	// Pixel-interleave the bands and compress strip by strip.
	var stripData bytes.Buffer
	var stripOffsets, stripByteCounts []uint32
	raw := make([]byte, writerRowsPerStrip*rowBytes)
	for firstRow := 0; firstRow < height; firstRow += writerRowsPerStrip {
		rows := writerRowsPerStrip
		if firstRow+rows > height {
			rows = height - firstRow
		}
		strip := raw[:rows*rowBytes]
		for row := 0; row < rows; row++ {
			for col := 0; col < width; col++ {
				base := (row*width + col) * samples * 4
				cell := (firstRow+row)*width + col
				for band, grid := range grids {
					binary.LittleEndian.PutUint32(strip[base+band*4:], math.Float32bits(grid.Data[cell]))
				}
			}
		}
		compressed, err := deflate(strip)
		if err != nil {
			return nil, err
		}
		stripOffsets = append(stripOffsets, uint32(8+stripData.Len()))
		stripByteCounts = append(stripByteCounts, uint32(len(compressed)))
		stripData.Write(compressed)
	}

	modelType := uint16(modelTypeProjected)
	csKey := uint16(keyProjectedCSType)
	if first.EPSG == 4326 {
		modelType = modelTypeGeographic
		csKey = keyGeographicType
	}
	geoKeys := []uint16{
		1, 1, 0, 3,
		keyGTModelType, 0, 1, modelType,
		keyGTRasterType, 0, 1, rasterTypePixelIsArea,
		csKey, 0, 1, uint16(first.EPSG),
	}

	entries := []tagEntry{
		{tagImageWidth, fieldTypeLong, longData(uint32(width))},
		{tagImageLength, fieldTypeLong, longData(uint32(height))},
		{tagBitsPerSample, fieldTypeShort, shortData(repeatShort(32, samples)...)},
		{tagCompression, fieldTypeShort, shortData(compressionDeflate)},
		{tagPhotometric, fieldTypeShort, shortData(1)},
	}
	if len(bandNames) > 0 {
		entries = append(entries, tagEntry{tagImageDescription, fieldTypeASCII, asciiData(strings.Join(bandNames, ","))})
	}
	entries = append(entries,
		tagEntry{tagStripOffsets, fieldTypeLong, longData(stripOffsets...)},
		tagEntry{tagSamplesPerPixel, fieldTypeShort, shortData(uint16(samples))},
		tagEntry{tagRowsPerStrip, fieldTypeLong, longData(writerRowsPerStrip)},
		tagEntry{tagStripByteCounts, fieldTypeLong, longData(stripByteCounts...)},
		tagEntry{tagPlanarConfig, fieldTypeShort, shortData(1)},
	)
	if samples > 1 {
		entries = append(entries, tagEntry{tagExtraSamples, fieldTypeShort, shortData(repeatShort(0, samples-1)...)})
	}
	entries = append(entries,
		tagEntry{tagSampleFormat, fieldTypeShort, shortData(repeatShort(sampleFormatFloat, samples)...)},
		tagEntry{tagModelPixelScale, fieldTypeDouble, doubleData(first.Transform.PixelSizeX, -first.Transform.PixelSizeY, 0)},
		tagEntry{tagModelTiepoint, fieldTypeDouble, doubleData(0, 0, 0, first.Transform.OriginX, first.Transform.OriginY, 0)},
		tagEntry{tagGeoKeyDirectory, fieldTypeShort, shortData(geoKeys...)},
		tagEntry{tagGDALNoData, fieldTypeASCII, asciiData("nan")},
	)

	return assemble(entries, stripData.Bytes()), nil
}

// tagEntry is one IFD entry to be written; the value count is derived
// from the data length. Entries must be appended in ascending tag
// order.
type tagEntry struct {
	tag       uint16
	fieldType uint16
	data      []byte
}

// assemble lays the file out as header, strip data, IFD, then the
// values too wide for their four inline bytes
func assemble(entries []tagEntry, stripData []byte) []byte {
	le := binary.LittleEndian

	ifdOffset := (8 + len(stripData) + 3) &^ 3
	externalOffset := ifdOffset + 2 + len(entries)*12 + 4

	file := make([]byte, externalOffset)
	copy(file[0:2], littleEndianMark)
	le.PutUint16(file[2:4], classicMagic)
	le.PutUint32(file[4:8], uint32(ifdOffset))
	copy(file[8:], stripData)

	le.PutUint16(file[ifdOffset:], uint16(len(entries)))
	var external []byte
	for i, entry := range entries {
		base := ifdOffset + 2 + i*12
		le.PutUint16(file[base:], entry.tag)
		le.PutUint16(file[base+2:], entry.fieldType)
		le.PutUint32(file[base+4:], uint32(len(entry.data))/fieldTypeSizes[entry.fieldType])
		if len(entry.data) <= 4 {
			copy(file[base+8:base+12], entry.data)
		} else {
			le.PutUint32(file[base+8:], uint32(externalOffset+len(external)))
			external = append(external, entry.data...)
			if len(external)%2 == 1 {
				external = append(external, 0)
			}
		}
	}
	// The next directory offset after the entries stays zero: one
	// image per file.
	return append(file, external...)
}

func deflate(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, fmt.Errorf("Failed to compress image data: %s", err.Error())
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("Failed to flush compressed image data: %s", err.Error())
	}
	return buf.Bytes(), nil
}

func repeatShort(value uint16, count int) []uint16 {
	values := make([]uint16, count)
	for i := range values {
		values[i] = value
	}
	return values
}

func shortData(values ...uint16) []byte {
	data := make([]byte, len(values)*2)
	for i, v := range values {
		binary.LittleEndian.PutUint16(data[i*2:], v)
	}
	return data
}

func longData(values ...uint32) []byte {
	data := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(data[i*4:], v)
	}
	return data
}

func doubleData(values ...float64) []byte {
	data := make([]byte, len(values)*8)
	for i, v := range values {
		binary.LittleEndian.PutUint64(data[i*8:], math.Float64bits(v))
	}
	return data
}

func asciiData(text string) []byte {
	return append([]byte(text), 0)
}
