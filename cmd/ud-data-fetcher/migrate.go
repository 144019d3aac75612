package main

import (
	"log"

	"github.com/pressly/goose"
	cli "gopkg.in/urfave/cli.v1"

	_ "github.com/citymetrics/ud-data-fetcher/migrations"
	"github.com/citymetrics/ud-data-fetcher/util"
)

func migrateDatabaseAction(*cli.Context) {
	database, err := getDbConnectionFunc(&util.BasicLogContext{})
	if err != nil {
		log.Fatal("Could not open database connection.")
	}
	defer database.Close()

	goose.Run("up", database, ".")
}
