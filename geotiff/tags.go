package geotiff

// TIFF and GeoTIFF constants, limited to what the fetcher reads and
// writes.

const (
	littleEndianMark = "II"
	bigEndianMark    = "MM"
	classicMagic     = 42
	bigTIFFMagic     = 43
)

const (
	tagImageWidth          = 256
	tagImageLength         = 257
	tagBitsPerSample       = 258
	tagCompression         = 259
	tagPhotometric         = 262
	tagImageDescription    = 270
	tagStripOffsets        = 273
	tagSamplesPerPixel     = 277
	tagRowsPerStrip        = 278
	tagStripByteCounts     = 279
	tagPlanarConfig        = 284
	tagPredictor           = 317
	tagTileWidth           = 322
	tagTileLength          = 323
	tagTileOffsets         = 324
	tagTileByteCounts      = 325
	tagExtraSamples        = 338
	tagSampleFormat        = 339
	tagModelPixelScale     = 33550
	tagModelTiepoint       = 33922
	tagModelTransformation = 34264
	tagGeoKeyDirectory     = 34735
	tagGDALNoData          = 42113
)

const (
	compressionNone       = 1
	compressionLZW        = 5
	compressionDeflate    = 8
	compressionOldDeflate = 32946
)

const (
	predictorNone          = 1
	predictorHorizontal    = 2
	predictorFloatingPoint = 3
)

const (
	sampleFormatUint  = 1
	sampleFormatInt   = 2
	sampleFormatFloat = 3
)

const (
	fieldTypeByte      = 1
	fieldTypeASCII     = 2
	fieldTypeShort     = 3
	fieldTypeLong      = 4
	fieldTypeRational  = 5
	fieldTypeSByte     = 6
	fieldTypeUndefined = 7
	fieldTypeSShort    = 8
	fieldTypeSLong     = 9
	fieldTypeSRational = 10
	fieldTypeFloat     = 11
	fieldTypeDouble    = 12
)

// fieldTypeSizes maps TIFF field types to their size in bytes
var fieldTypeSizes = map[uint16]uint32{
	fieldTypeByte:      1,
	fieldTypeASCII:     1,
	fieldTypeShort:     2,
	fieldTypeLong:      4,
	fieldTypeRational:  8,
	fieldTypeSByte:     1,
	fieldTypeUndefined: 1,
	fieldTypeSShort:    2,
	fieldTypeSLong:     4,
	fieldTypeSRational: 8,
	fieldTypeFloat:     4,
	fieldTypeDouble:    8,
}

// GeoTIFF key IDs and values
const (
	keyGTModelType     = 1024
	keyGTRasterType    = 1025
	keyGeographicType  = 2048
	keyProjectedCSType = 3072
)

const (
	modelTypeProjected    = 1
	modelTypeGeographic   = 2
	rasterTypePixelIsArea = 1
)
