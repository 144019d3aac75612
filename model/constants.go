package model

// SceneTimeFormat is the format used when writing acquisition datetimes
// into GeoJSON feature properties
const SceneTimeFormat = "2006-01-02T15:04:05.999999999Z" // time.RFC3339Nano, always UTC
