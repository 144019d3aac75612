package migration

import (
	"database/sql"

	"github.com/pressly/goose"
)

func init() {
	goose.AddMigration(Up00001, Down00001)
}

//Up00001 creates the scene inventory table. One row per catalog scene
//per composite it contributed to.
func Up00001(tx *sql.Tx) error {
	_, err := tx.Exec(`
	CREATE TABLE public.scenes
	(
		scene_id text COLLATE pg_catalog."default" NOT NULL,
		collection text COLLATE pg_catalog."default" NOT NULL,
		acquired_date timestamp without time zone NOT NULL,
		cloud_cover real NOT NULL,
		resolution real NOT NULL,
		epsg integer NOT NULL,
		platform text COLLATE pg_catalog."default" NOT NULL,
		geometry text COLLATE pg_catalog."default" NOT NULL,
		composite text COLLATE pg_catalog."default" NOT NULL,
		fetched_at timestamp without time zone NOT NULL,
		CONSTRAINT scenes_pk_scene_composite PRIMARY KEY (scene_id, composite)
	)
	WITH (
		OIDS = FALSE
	);
	`)

	return err
}

//Down00001 undoes the db changes.
func Down00001(tx *sql.Tx) error {
	_, err := tx.Exec(`DROP TABLE IF EXISTS public.scenes;`)
	return err
}
