package migration

import (
	"database/sql"

	"github.com/pressly/goose"
)

func init() {
	goose.AddMigration(Up00002, Down00002)
}

//Up00002 creates the fetched_files table recording every output file a
//sync has written.
func Up00002(tx *sql.Tx) error {
	_, err := tx.Exec(`
	CREATE TABLE public.fetched_files
	(
		folder text COLLATE pg_catalog."default" NOT NULL,
		filename text COLLATE pg_catalog."default" NOT NULL,
		fetched_at timestamp without time zone NOT NULL,
		CONSTRAINT fetched_files_pk_folder_filename PRIMARY KEY (folder, filename)
	)
	WITH (
		OIDS = FALSE
	);
	`)

	return err
}

//Down00002 undoes the db changes.
func Down00002(tx *sql.Tx) error {
	_, err := tx.Exec(`DROP TABLE IF EXISTS public.fetched_files;`)
	return err
}
