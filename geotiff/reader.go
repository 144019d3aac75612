package geotiff

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io/ioutil"
	"math"
	"strconv"
	"strings"

	"github.com/citymetrics/ud-data-fetcher/raster"
	"golang.org/x/image/tiff/lzw"
)

// Image is a decoded GeoTIFF: one grid per band, plus the band names
// carried in the image description when present.
type Image struct {
	Grids     []*raster.Grid
	BandNames []string
}

// Decode parses a classic TIFF with GeoTIFF georeferencing into one
// grid per band. Samples are widened to float32 and nodata samples
// become NaN. Only the first image directory is read; overviews and
// masks in later directories are ignored.
func Decode(data []byte) (*Image, error) {
	reader, firstIFDOffset, err := parseHeader(data)
	if err != nil {
		return nil, err
	}
	directory, err := reader.parseIFD(firstIFDOffset)
	if err != nil {
		return nil, err
	}
	return reader.decodeImage(directory)
}

func parseHeader(data []byte) (*tiffReader, uint32, error) {
	if len(data) < 8 {
		return nil, 0, fmt.Errorf("File is too short to be a TIFF (%d bytes)", len(data))
	}
	var bo binary.ByteOrder
	switch string(data[0:2]) {
	case littleEndianMark:
		bo = binary.LittleEndian
	case bigEndianMark:
		bo = binary.BigEndian
	default:
		return nil, 0, fmt.Errorf("Unrecognized TIFF byte order mark %q", string(data[0:2]))
	}
	switch magic := bo.Uint16(data[2:4]); magic {
	case classicMagic:
	case bigTIFFMagic:
		return nil, 0, fmt.Errorf("BigTIFF files are not supported")
	default:
		return nil, 0, fmt.Errorf("Bad TIFF magic number %d", magic)
	}
	return &tiffReader{data: data, bo: bo}, bo.Uint32(data[4:8]), nil
}

type tiffReader struct {
	data []byte
	bo   binary.ByteOrder
}

func (r *tiffReader) slice(offset, length uint64) ([]byte, error) {
	end := offset + length
	if end < offset || end > uint64(len(r.data)) {
		return nil, fmt.Errorf("TIFF structure points past the end of the file")
	}
	return r.data[offset:end:end], nil
}

type ifdEntry struct {
	fieldType uint16
	count     uint32
	inline    [4]byte
}

type ifd struct {
	reader  *tiffReader
	entries map[uint16]ifdEntry
}

func (r *tiffReader) parseIFD(offset uint32) (*ifd, error) {
	countBytes, err := r.slice(uint64(offset), 2)
	if err != nil {
		return nil, err
	}
	count := uint64(r.bo.Uint16(countBytes))
	entryBytes, err := r.slice(uint64(offset)+2, count*12)
	if err != nil {
		return nil, err
	}

	directory := &ifd{reader: r, entries: make(map[uint16]ifdEntry, count)}
	for i := uint64(0); i < count; i++ {
		raw := entryBytes[i*12 : i*12+12]
		entry := ifdEntry{
			fieldType: r.bo.Uint16(raw[2:4]),
			count:     r.bo.Uint32(raw[4:8]),
		}
		copy(entry.inline[:], raw[8:12])
		directory.entries[r.bo.Uint16(raw[0:2])] = entry
	}
	return directory, nil
}

func (d *ifd) has(tag uint16) bool {
	_, ok := d.entries[tag]
	return ok
}

// valueBytes returns a tag's value data, following the offset
// indirection for values wider than the four inline bytes
func (d *ifd) valueBytes(tag uint16) ([]byte, error) {
	entry, ok := d.entries[tag]
	if !ok {
		return nil, fmt.Errorf("Tag %d is missing", tag)
	}
	size, ok := fieldTypeSizes[entry.fieldType]
	if !ok {
		return nil, fmt.Errorf("Tag %d has unknown field type %d", tag, entry.fieldType)
	}
	total := uint64(size) * uint64(entry.count)
	if total <= 4 {
		return entry.inline[:total], nil
	}
	return d.reader.slice(uint64(d.reader.bo.Uint32(entry.inline[:])), total)
}

func (d *ifd) ints(tag uint16) ([]uint32, error) {
	entry := d.entries[tag]
	data, err := d.valueBytes(tag)
	if err != nil {
		return nil, err
	}
	values := make([]uint32, entry.count)
	switch entry.fieldType {
	case fieldTypeByte:
		for i := range values {
			values[i] = uint32(data[i])
		}
	case fieldTypeShort:
		for i := range values {
			values[i] = uint32(d.reader.bo.Uint16(data[i*2:]))
		}
	case fieldTypeLong:
		for i := range values {
			values[i] = d.reader.bo.Uint32(data[i*4:])
		}
	default:
		return nil, fmt.Errorf("Tag %d has field type %d where an integer type was expected", tag, entry.fieldType)
	}
	return values, nil
}

func (d *ifd) firstInt(tag uint16, fallback uint32) (uint32, error) {
	if !d.has(tag) {
		return fallback, nil
	}
	values, err := d.ints(tag)
	if err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return fallback, nil
	}
	return values[0], nil
}

func (d *ifd) shorts(tag uint16) ([]uint16, error) {
	entry := d.entries[tag]
	if entry.fieldType != fieldTypeShort {
		return nil, fmt.Errorf("Tag %d has field type %d where shorts were expected", tag, entry.fieldType)
	}
	data, err := d.valueBytes(tag)
	if err != nil {
		return nil, err
	}
	values := make([]uint16, entry.count)
	for i := range values {
		values[i] = d.reader.bo.Uint16(data[i*2:])
	}
	return values, nil
}

func (d *ifd) doubles(tag uint16) ([]float64, error) {
	entry := d.entries[tag]
	if entry.fieldType != fieldTypeDouble {
		return nil, fmt.Errorf("Tag %d has field type %d where doubles were expected", tag, entry.fieldType)
	}
	data, err := d.valueBytes(tag)
	if err != nil {
		return nil, err
	}
	values := make([]float64, entry.count)
	for i := range values {
		values[i] = math.Float64frombits(d.reader.bo.Uint64(data[i*8:]))
	}
	return values, nil
}

func (d *ifd) ascii(tag uint16) (string, error) {
	data, err := d.valueBytes(tag)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(data), "\x00"), nil
}

// imageLayout is the validated pixel layout shared by the strip and
// tile paths
type imageLayout struct {
	width           int
	height          int
	samplesPerPixel int
	bytesPerSample  int
	sampleFormat    uint32
	compression     uint32
	predictor       uint32
}

func (r *tiffReader) decodeImage(d *ifd) (*Image, error) {
	layout, err := validateLayout(d)
	if err != nil {
		return nil, err
	}

	samples := make([]float32, layout.width*layout.height*layout.samplesPerPixel)
	if d.has(tagTileOffsets) {
		err = r.decodeTiles(d, layout, samples)
	} else {
		err = r.decodeStrips(d, layout, samples)
	}
	if err != nil {
		return nil, err
	}

	transform, err := geoTransform(d)
	if err != nil {
		return nil, err
	}
	epsg, err := geoEPSG(d)
	if err != nil {
		return nil, err
	}

	if noData, ok := noDataValue(d); ok && !math.IsNaN(noData) {
		nan := float32(math.NaN())
		noData32 := float32(noData)
		for i, value := range samples {
			if value == noData32 {
				samples[i] = nan
			}
		}
	}

	image := &Image{Grids: make([]*raster.Grid, layout.samplesPerPixel)}
	pixels := layout.width * layout.height
	for band := range image.Grids {
		grid := raster.NewGrid(layout.width, layout.height, transform, epsg)
		for i := 0; i < pixels; i++ {
			grid.Data[i] = samples[i*layout.samplesPerPixel+band]
		}
		image.Grids[band] = grid
	}

	if d.has(tagImageDescription) {
		description, err := d.ascii(tagImageDescription)
		if err == nil && description != "" {
			names := strings.Split(description, ",")
			if len(names) == layout.samplesPerPixel {
				image.BandNames = names
			}
		}
	}
	return image, nil
}

func validateLayout(d *ifd) (imageLayout, error) {
	var layout imageLayout

	width, err := d.firstInt(tagImageWidth, 0)
	if err != nil {
		return layout, err
	}
	height, err := d.firstInt(tagImageLength, 0)
	if err != nil {
		return layout, err
	}
	if width == 0 || height == 0 {
		return layout, fmt.Errorf("Image dimensions are missing")
	}

	samplesPerPixel, err := d.firstInt(tagSamplesPerPixel, 1)
	if err != nil {
		return layout, err
	}
	if samplesPerPixel == 0 {
		return layout, fmt.Errorf("SamplesPerPixel is zero")
	}
	if total := uint64(width) * uint64(height) * uint64(samplesPerPixel); total > 1<<31 {
		return layout, fmt.Errorf("Image of %d samples is too large to decode in memory", total)
	}

	planar, err := d.firstInt(tagPlanarConfig, 1)
	if err != nil {
		return layout, err
	}
	if planar != 1 {
		return layout, fmt.Errorf("Planar configuration %d is not supported", planar)
	}

	bits := []uint32{1}
	if d.has(tagBitsPerSample) {
		if bits, err = d.ints(tagBitsPerSample); err != nil {
			return layout, err
		}
		if len(bits) == 0 {
			bits = []uint32{1}
		}
	}
	for _, b := range bits[1:] {
		if b != bits[0] {
			return layout, fmt.Errorf("Bands with mixed sample widths are not supported")
		}
	}
	if bits[0] != 8 && bits[0] != 16 && bits[0] != 32 {
		return layout, fmt.Errorf("BitsPerSample %d is not supported", bits[0])
	}

	sampleFormat := uint32(sampleFormatUint)
	if d.has(tagSampleFormat) {
		formats, err := d.ints(tagSampleFormat)
		if err != nil {
			return layout, err
		}
		for _, f := range formats[1:] {
			if f != formats[0] {
				return layout, fmt.Errorf("Bands with mixed sample formats are not supported")
			}
		}
		sampleFormat = formats[0]
	}
	switch sampleFormat {
	case sampleFormatUint, sampleFormatInt:
	case sampleFormatFloat:
		if bits[0] != 32 {
			return layout, fmt.Errorf("%d bit floating point samples are not supported", bits[0])
		}
	default:
		return layout, fmt.Errorf("Sample format %d is not supported", sampleFormat)
	}

	compression, err := d.firstInt(tagCompression, compressionNone)
	if err != nil {
		return layout, err
	}
	switch compression {
	case compressionNone, compressionLZW, compressionDeflate, compressionOldDeflate:
	default:
		return layout, fmt.Errorf("Compression %d is not supported", compression)
	}

	predictor, err := d.firstInt(tagPredictor, predictorNone)
	if err != nil {
		return layout, err
	}
	switch predictor {
	case predictorNone:
	case predictorHorizontal:
		if sampleFormat == sampleFormatFloat {
			return layout, fmt.Errorf("Horizontal differencing on floating point samples is not supported")
		}
	default:
		return layout, fmt.Errorf("Predictor %d is not supported", predictor)
	}

	layout = imageLayout{
		width:           int(width),
		height:          int(height),
		samplesPerPixel: int(samplesPerPixel),
		bytesPerSample:  int(bits[0]) / 8,
		sampleFormat:    sampleFormat,
		compression:     compression,
		predictor:       predictor,
	}
	return layout, nil
}

func (r *tiffReader) decodeStrips(d *ifd, layout imageLayout, samples []float32) error {
	if !d.has(tagStripOffsets) {
		return fmt.Errorf("Image has neither strip nor tile offsets")
	}
	offsets, err := d.ints(tagStripOffsets)
	if err != nil {
		return err
	}
	counts, err := d.ints(tagStripByteCounts)
	if err != nil {
		return err
	}
	if len(counts) != len(offsets) {
		return fmt.Errorf("Strip offset and byte count tags disagree (%d vs %d)", len(offsets), len(counts))
	}

	rowsPerStrip, err := d.firstInt(tagRowsPerStrip, uint32(layout.height))
	if err != nil {
		return err
	}
	if rowsPerStrip == 0 || rowsPerStrip > uint32(layout.height) {
		rowsPerStrip = uint32(layout.height)
	}
	expectedStrips := (layout.height + int(rowsPerStrip) - 1) / int(rowsPerStrip)
	if len(offsets) != expectedStrips {
		return fmt.Errorf("Expected %d strips and found %d", expectedStrips, len(offsets))
	}

	rowBytes := layout.width * layout.samplesPerPixel * layout.bytesPerSample
	rowValues := layout.width * layout.samplesPerPixel
	for s := range offsets {
		firstRow := s * int(rowsPerStrip)
		rowsInStrip := int(rowsPerStrip)
		if firstRow+rowsInStrip > layout.height {
			rowsInStrip = layout.height - firstRow
		}

		compressed, err := r.slice(uint64(offsets[s]), uint64(counts[s]))
		if err != nil {
			return err
		}
		raw, err := decompress(compressed, layout.compression)
		if err != nil {
			return err
		}
		if len(raw) < rowsInStrip*rowBytes {
			return fmt.Errorf("Strip %d holds %d bytes where %d were expected", s, len(raw), rowsInStrip*rowBytes)
		}

		for row := 0; row < rowsInStrip; row++ {
			rowData := raw[row*rowBytes : (row+1)*rowBytes]
			if layout.predictor == predictorHorizontal {
				undoHorizontalPredictor(rowData, layout.width, layout.samplesPerPixel, layout.bytesPerSample, r.bo)
			}
			convertSamples(samples[(firstRow+row)*rowValues:], rowData, rowValues, layout, r.bo)
		}
	}
	return nil
}

func (r *tiffReader) decodeTiles(d *ifd, layout imageLayout, samples []float32) error {
	tileWidth, err := d.firstInt(tagTileWidth, 0)
	if err != nil {
		return err
	}
	tileLength, err := d.firstInt(tagTileLength, 0)
	if err != nil {
		return err
	}
	if tileWidth == 0 || tileLength == 0 {
		return fmt.Errorf("Tile dimensions are missing")
	}
	offsets, err := d.ints(tagTileOffsets)
	if err != nil {
		return err
	}
	counts, err := d.ints(tagTileByteCounts)
	if err != nil {
		return err
	}
	if len(counts) != len(offsets) {
		return fmt.Errorf("Tile offset and byte count tags disagree (%d vs %d)", len(offsets), len(counts))
	}

	tilesAcross := (layout.width + int(tileWidth) - 1) / int(tileWidth)
	tilesDown := (layout.height + int(tileLength) - 1) / int(tileLength)
	if len(offsets) != tilesAcross*tilesDown {
		return fmt.Errorf("Expected %d tiles and found %d", tilesAcross*tilesDown, len(offsets))
	}

	tileRowBytes := int(tileWidth) * layout.samplesPerPixel * layout.bytesPerSample
	imageRowValues := layout.width * layout.samplesPerPixel
	for t := range offsets {
		tileCol := t % tilesAcross
		tileRow := t / tilesAcross

		compressed, err := r.slice(uint64(offsets[t]), uint64(counts[t]))
		if err != nil {
			return err
		}
		raw, err := decompress(compressed, layout.compression)
		if err != nil {
			return err
		}
		if len(raw) < int(tileLength)*tileRowBytes {
			return fmt.Errorf("Tile %d holds %d bytes where %d were expected", t, len(raw), int(tileLength)*tileRowBytes)
		}

		visibleRows := layout.height - tileRow*int(tileLength)
		if visibleRows > int(tileLength) {
			visibleRows = int(tileLength)
		}
		visibleCols := layout.width - tileCol*int(tileWidth)
		if visibleCols > int(tileWidth) {
			visibleCols = int(tileWidth)
		}

		for row := 0; row < visibleRows; row++ {
			rowData := raw[row*tileRowBytes : (row+1)*tileRowBytes]
			if layout.predictor == predictorHorizontal {
				undoHorizontalPredictor(rowData, int(tileWidth), layout.samplesPerPixel, layout.bytesPerSample, r.bo)
			}
			imageRow := tileRow*int(tileLength) + row
			dst := samples[imageRow*imageRowValues+tileCol*int(tileWidth)*layout.samplesPerPixel:]
			convertSamples(dst, rowData, visibleCols*layout.samplesPerPixel, layout, r.bo)
		}
	}
	return nil
}

func decompress(compressed []byte, compression uint32) ([]byte, error) {
	switch compression {
	case compressionNone:
		return compressed, nil
	case compressionDeflate, compressionOldDeflate:
		zr, err := zlib.NewReader(bytes.NewReader(compressed))
		if err != nil {
			return nil, fmt.Errorf("Failed to open a deflate stream: %s", err.Error())
		}
		defer zr.Close()
		raw, err := ioutil.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("Failed to inflate image data: %s", err.Error())
		}
		return raw, nil
	case compressionLZW:
		lr := lzw.NewReader(bytes.NewReader(compressed), lzw.MSB, 8)
		defer lr.Close()
		raw, err := ioutil.ReadAll(lr)
		if err != nil {
			return nil, fmt.Errorf("Failed to expand LZW image data: %s", err.Error())
		}
		return raw, nil
	}
	return nil, fmt.Errorf("Compression %d is not supported", compression)
}

// undoHorizontalPredictor reverses per-row horizontal differencing in
// place. Deltas accumulate per channel at the stored sample width.
func undoHorizontalPredictor(row []byte, pixels, samplesPerPixel, bytesPerSample int, bo binary.ByteOrder) {
	switch bytesPerSample {
	case 1:
		for i := samplesPerPixel; i < pixels*samplesPerPixel; i++ {
			row[i] += row[i-samplesPerPixel]
		}
	case 2:
		stride := samplesPerPixel * 2
		for i := stride; i < pixels*stride; i += 2 {
			bo.PutUint16(row[i:], bo.Uint16(row[i:])+bo.Uint16(row[i-stride:]))
		}
	case 4:
		stride := samplesPerPixel * 4
		for i := stride; i < pixels*stride; i += 4 {
			bo.PutUint32(row[i:], bo.Uint32(row[i:])+bo.Uint32(row[i-stride:]))
		}
	}
}

func convertSamples(dst []float32, raw []byte, values int, layout imageLayout, bo binary.ByteOrder) {
	for i := 0; i < values; i++ {
		offset := i * layout.bytesPerSample
		switch layout.bytesPerSample {
		case 1:
			if layout.sampleFormat == sampleFormatInt {
				dst[i] = float32(int8(raw[offset]))
			} else {
				dst[i] = float32(raw[offset])
			}
		case 2:
			if layout.sampleFormat == sampleFormatInt {
				dst[i] = float32(int16(bo.Uint16(raw[offset:])))
			} else {
				dst[i] = float32(bo.Uint16(raw[offset:]))
			}
		case 4:
			bits := bo.Uint32(raw[offset:])
			switch layout.sampleFormat {
			case sampleFormatFloat:
				dst[i] = math.Float32frombits(bits)
			case sampleFormatInt:
				dst[i] = float32(int32(bits))
			default:
				dst[i] = float32(bits)
			}
		}
	}
}

func geoTransform(d *ifd) (raster.Transform, error) {
	if d.has(tagModelTransformation) {
		matrix, err := d.doubles(tagModelTransformation)
		if err != nil {
			return raster.Transform{}, err
		}
		if len(matrix) != 16 {
			return raster.Transform{}, fmt.Errorf("ModelTransformation holds %d values where 16 were expected", len(matrix))
		}
		if matrix[1] != 0 || matrix[4] != 0 {
			return raster.Transform{}, fmt.Errorf("Rotated rasters are not supported")
		}
		return raster.Transform{
			OriginX:    matrix[3],
			OriginY:    matrix[7],
			PixelSizeX: matrix[0],
			PixelSizeY: matrix[5],
		}, nil
	}

	if !d.has(tagModelPixelScale) || !d.has(tagModelTiepoint) {
		return raster.Transform{}, fmt.Errorf("Image carries no georeferencing")
	}
	scale, err := d.doubles(tagModelPixelScale)
	if err != nil {
		return raster.Transform{}, err
	}
	tiepoint, err := d.doubles(tagModelTiepoint)
	if err != nil {
		return raster.Transform{}, err
	}
	if len(scale) < 2 || len(tiepoint) < 6 {
		return raster.Transform{}, fmt.Errorf("Georeferencing tags are truncated")
	}

	// The tiepoint maps raster position (i, j) to model position
	// (x, y); pixel scale Y is stored positive for north-up images
	return raster.Transform{
		OriginX:    tiepoint[3] - tiepoint[0]*scale[0],
		OriginY:    tiepoint[4] + tiepoint[1]*scale[1],
		PixelSizeX: scale[0],
		PixelSizeY: -scale[1],
	}, nil
}

func geoEPSG(d *ifd) (int, error) {
	if !d.has(tagGeoKeyDirectory) {
		return 0, fmt.Errorf("Image carries no GeoTIFF key directory")
	}
	keys, err := d.shorts(tagGeoKeyDirectory)
	if err != nil {
		return 0, err
	}
	if len(keys) < 4 {
		return 0, fmt.Errorf("GeoTIFF key directory is truncated")
	}

	numberOfKeys := int(keys[3])
	modelType, projectedCode, geographicCode := 0, 0, 0
	for k := 0; k < numberOfKeys; k++ {
		base := 4 + k*4
		if base+3 >= len(keys) {
			return 0, fmt.Errorf("GeoTIFF key directory is truncated")
		}
		keyID, location, value := keys[base], keys[base+1], keys[base+3]
		if location != 0 {
			continue
		}
		switch keyID {
		case keyGTModelType:
			modelType = int(value)
		case keyProjectedCSType:
			projectedCode = int(value)
		case keyGeographicType:
			geographicCode = int(value)
		}
	}

	switch modelType {
	case modelTypeProjected:
		if projectedCode == 0 {
			return 0, fmt.Errorf("Projected image carries no coordinate system code")
		}
		return projectedCode, nil
	case modelTypeGeographic:
		if geographicCode == 0 {
			return 0, fmt.Errorf("Geographic image carries no coordinate system code")
		}
		return geographicCode, nil
	}
	return 0, fmt.Errorf("GeoTIFF model type %d is not supported", modelType)
}

func noDataValue(d *ifd) (float64, bool) {
	if !d.has(tagGDALNoData) {
		return 0, false
	}
	text, err := d.ascii(tagGDALNoData)
	if err != nil {
		return 0, false
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return 0, false
	}
	return value, true
}
