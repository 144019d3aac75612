// Copyright 2025, CityMetrics, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"

	"github.com/citymetrics/ud-data-fetcher/download"
	cli "gopkg.in/urfave/cli.v1"
)

const version = "0.1.0"

var downloadFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "config, c",
		Value: "download_config.json",
		Usage: "Path to the vector download configuration",
	},
	cli.StringFlag{
		Name:  "raster-config, r",
		Value: "download_config_raster.json",
		Usage: "Path to the raster download configuration",
	},
	cli.IntFlag{
		Name:  "attempts, a",
		Value: download.DefaultAttempts,
		Usage: "How many times to run the vector sync before giving up on failed downloads",
	},
	cli.BoolFlag{
		Name:  "archive",
		Usage: "Archive files the config no longer names instead of deleting them",
	},
}

var commands = cli.Commands{
	cli.Command{
		Name:    "download",
		Aliases: []string{"d"},
		Usage:   "Download the vector datasets and build the raster composites",
		Flags:   downloadFlags,
		Action:  downloadAction,
	},
	cli.Command{
		Name:   "vector",
		Usage:  "Sync the vector datasets only",
		Flags:  downloadFlags,
		Action: vectorAction,
	},
	cli.Command{
		Name:   "raster",
		Usage:  "Build the raster composites only",
		Flags:  downloadFlags,
		Action: rasterAction,
	},
	cli.Command{
		Name:    "schedule",
		Aliases: []string{"s"},
		Usage:   "Re-run the download on a schedule, with an HTTP control server",
		Flags:   downloadFlags,
		Action:  scheduleAction,
	},
	cli.Command{
		Name:    "migrate",
		Aliases: []string{"m"},
		Usage:   "Update the inventory database schema",
		Action:  migrateDatabaseAction,
	},
	cli.Command{
		Name:    "version",
		Aliases: []string{"v"},
		Usage:   "Print the version number of the fetcher CLI",
		Action:  versionAction,
	},
}

func createCliApp() (app *cli.App) {
	app = cli.NewApp()
	app.Name = "ud-data-fetcher"
	app.Usage = "Fetch boundary and satellite imagery data for urban development analysis"
	app.Version = version
	app.Commands = commands
	return
}

func versionAction(c *cli.Context) {
	fmt.Println(c.App.Version)
}
