package migration

import (
	"database/sql"

	"github.com/pressly/goose"
)

func init() {
	goose.AddMigration(Up00003, Down00003)
}

//Up00003 adds the indexes the inventory listings sort on.
func Up00003(tx *sql.Tx) error {
	_, err := tx.Exec(`
	CREATE INDEX idx_scenes_acquired_date
	ON public.scenes (acquired_date DESC);

	CREATE INDEX idx_fetched_files_fetched_at
	ON public.fetched_files (fetched_at DESC);
	`)

	return err
}

//Down00003 undoes the db changes.
func Down00003(tx *sql.Tx) error {
	_, err := tx.Exec(`
	DROP INDEX IF EXISTS idx_scenes_acquired_date;
	DROP INDEX IF EXISTS idx_fetched_files_fetched_at;
	`)
	return err
}
