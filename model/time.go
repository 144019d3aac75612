package model

import (
	"fmt"
	"time"
)

// STAC items carry RFC 3339 datetimes, but catalogs in the wild are not
// strict about it: fractional seconds come and go, offsets appear where
// the spec wants Z, and summary fields sometimes hold bare dates. Thus,
// we need lenient "multi-format" parsing functionality, implemented here.

var stacTimeLayouts = []string{
	"2006-01-02T15:04:05.999999999Z",
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseSTACTime is a drop-in replacement for time.Parse, but matching against multiple possible catalog time formats
func ParseSTACTime(stacTime string) (time.Time, error) {
	for _, layout := range stacTimeLayouts {
		if output, err := time.Parse(layout, stacTime); err == nil {
			return output, nil
		}
	}
	return time.Time{}, fmt.Errorf("Date could not be parsed by any expected time format: `%s`", stacTime)
}
