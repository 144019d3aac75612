package inventory

import (
	"database/sql"
	"time"

	"github.com/citymetrics/ud-data-fetcher/model"
	"github.com/venicegeo/geojson-go/geojson"
)

const selectScenesStatement = `
	SELECT scene_id, collection, acquired_date, cloud_cover, resolution, epsg, platform, geometry, composite, fetched_at
	FROM public.scenes
	`

// ScenesByComposite returns the recorded scenes, newest acquisitions
// first. An empty composite returns every scene in the inventory.
func ScenesByComposite(tx *sql.Tx, composite string) ([]model.InventoriedSceneResult, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if composite == "" {
		rows, err = tx.Query(selectScenesStatement + `ORDER BY acquired_date DESC`)
	} else {
		rows, err = tx.Query(selectScenesStatement+`WHERE composite=$1 ORDER BY acquired_date DESC`, composite)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	scenes := []model.InventoriedSceneResult{}
	for rows.Next() {
		scene, err := scanScene(rows)
		if err != nil {
			return nil, err
		}
		scenes = append(scenes, *scene)
	}
	return scenes, rows.Err()
}

func scanScene(rows *sql.Rows) (*model.InventoriedSceneResult, error) {
	var geometryText string
	scene := model.InventoriedSceneResult{InventoryRecord: &model.InventoryRecord{}}

	err := rows.Scan(&scene.ID, &scene.Collection, &scene.AcquiredDate, &scene.CloudCover,
		&scene.Resolution, &scene.EPSG, &scene.Platform, &geometryText,
		&scene.InventoryRecord.Composite, &scene.InventoryRecord.FetchedAt)
	if err != nil {
		return nil, err
	}

	// Only GeoTIFF scenes make it into composites, so that is all the
	// inventory ever holds.
	scene.FileFormat = model.GeoTIFF
	if scene.Geometry, err = parseGeometry(geometryText); err != nil {
		return nil, err
	}
	return &scene, nil
}

func parseGeometry(text string) (interface{}, error) {
	if text == "" {
		return nil, nil
	}
	return geojson.Parse([]byte(text))
}

// FetchedFile is one row of the fetched_files table
type FetchedFile struct {
	Folder    string    `json:"folder"`
	Filename  string    `json:"filename"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// FetchedFiles lists every output file the fetcher has written, newest
// first
func FetchedFiles(tx *sql.Tx) ([]FetchedFile, error) {
	rows, err := tx.Query(`
		SELECT folder, filename, fetched_at
		FROM public.fetched_files
		ORDER BY fetched_at DESC, folder, filename`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	files := []FetchedFile{}
	for rows.Next() {
		var file FetchedFile
		if err = rows.Scan(&file.Folder, &file.Filename, &file.FetchedAt); err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, rows.Err()
}
