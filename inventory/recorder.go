// Copyright 2025, CityMetrics, Inc.

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package inventory

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/citymetrics/ud-data-fetcher/model"
	"github.com/citymetrics/ud-data-fetcher/util"
)

// ConnectionProvider is a function that can provide a database connection.
type ConnectionProvider func(util.LogContext) (*sql.DB, error)

const insertSceneStatement = `
INSERT INTO scenes
	(scene_id, collection, acquired_date, cloud_cover, resolution, epsg, platform, geometry, composite, fetched_at)
VALUES
	($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (scene_id, composite) DO UPDATE
	SET cloud_cover = EXCLUDED.cloud_cover,
		geometry = EXCLUDED.geometry,
		fetched_at = EXCLUDED.fetched_at
	`

const insertFileStatement = `
INSERT INTO fetched_files
	(folder, filename, fetched_at)
VALUES
	($1, $2, $3)
	ON CONFLICT (folder, filename) DO UPDATE
	SET fetched_at = EXCLUDED.fetched_at
	`

const databaseMaintenanceStatement = `
	VACUUM ANALYZE scenes
`

// Recorder persists fetch provenance: which scenes fed which composite,
// and which files each sync wrote.
type Recorder struct {
	db      *sql.DB
	context util.LogContext
}

// NewRecorder opens the inventory database connection
func NewRecorder(connectionProvider ConnectionProvider) (*Recorder, error) {
	database, err := connectionProvider(&util.BasicLogContext{})
	if err != nil {
		return nil, err
	}
	return &Recorder{db: database, context: &Context{DB: database}}, nil
}

// RecordScenes upserts one row per scene that contributed to a composite
func (rec *Recorder) RecordScenes(scenes []model.SceneSearchResult, composite string) error {
	tx, err := rec.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(insertSceneStatement)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	fetchedAt := time.Now().UTC()
	for _, scene := range scenes {
		geometry, err := marshalGeometry(scene.Geometry)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("Could not encode the geometry of scene %v: %v", scene.ID, err)
		}
		_, err = stmt.Exec(scene.ID, scene.Collection, scene.AcquiredDate.UTC(), scene.CloudCover,
			scene.Resolution, scene.EPSG, scene.Platform, geometry, composite, fetchedAt)
		if err != nil {
			tx.Rollback()
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return err
	}

	rec.maintain()
	return nil
}

// RecordFiles upserts one row per output file written under a folder
func (rec *Recorder) RecordFiles(folder string, filenames []string) error {
	tx, err := rec.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(insertFileStatement)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	fetchedAt := time.Now().UTC()
	for _, filename := range filenames {
		if _, err = stmt.Exec(folder, filename, fetchedAt); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// maintain performs any housekeeping that should be done after an
// ingest, e.g. rebuilding statistics. VACUUM cannot run inside the
// ingest transaction, so failures are only logged.
func (rec *Recorder) maintain() {
	if _, err := rec.db.Exec(databaseMaintenanceStatement); err != nil {
		util.LogAlert(rec.context, fmt.Sprintf("Inventory maintenance failed: %s", err.Error()))
	}
}

func marshalGeometry(geometry interface{}) (string, error) {
	if geometry == nil {
		return "", nil
	}
	data, err := json.Marshal(geometry)
	return string(data), err
}
