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
	"github.com/citymetrics/ud-data-fetcher/download"
	"github.com/citymetrics/ud-data-fetcher/inventory"
	"github.com/citymetrics/ud-data-fetcher/util"
	cli "gopkg.in/urfave/cli.v1"
)

//newRunner assembles a runner from the command line and the
//environment: the standard data directory layout, file logging under
//its logs directory, and an inventory recorder when a database is
//configured.
func newRunner(c *cli.Context) (*download.Runner, error) {
	paths := util.NewPaths("")
	if err := paths.Ensure(); err != nil {
		return nil, err
	}

	runner := &download.Runner{
		VectorConfigPath: c.String("config"),
		RasterConfigPath: c.String("raster-config"),
		Attempts:         c.Int("attempts"),
		Archive:          c.Bool("archive"),
		Paths:            paths,
		Context:          &download.Context{LogDir: paths.Logs},
	}

	if databaseConfigured() {
		recorder, err := inventory.NewRecorder(getDbConnectionFunc)
		if err != nil {
			return nil, err
		}
		runner.Recorder = recorder
	}
	return runner, nil
}

//downloadAction reads the two config files from the working directory
//and downloads everything they describe.
func downloadAction(c *cli.Context) error {
	runner, err := newRunner(c)
	if err != nil {
		return err
	}
	return runner.Run()
}

//vectorAction syncs the vector datasets without touching the rasters.
func vectorAction(c *cli.Context) error {
	runner, err := newRunner(c)
	if err != nil {
		return err
	}
	return runner.RunVector()
}

//rasterAction builds the raster composites without syncing the vectors.
func rasterAction(c *cli.Context) error {
	runner, err := newRunner(c)
	if err != nil {
		return err
	}
	return runner.RunRaster()
}
