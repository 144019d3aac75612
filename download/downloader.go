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

package download

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/citymetrics/ud-data-fetcher/config"
	"github.com/citymetrics/ud-data-fetcher/util"
)

const archiveTimeLayout = "2006-01-02_15:04:05"

// Context is the context for a download run
type Context struct {
	LogDir    string
	sessionID string
}

// AppName returns the fetcher application name
func (c *Context) AppName() string {
	return "ud-data-fetcher"
}

// SessionID returns a Session ID, creating one if needed
func (c *Context) SessionID() string {
	if c.sessionID == "" {
		c.sessionID, _ = util.PsuUUID()
	}
	return c.sessionID
}

// LogRootDir returns the directory file logs are written under
func (c *Context) LogRootDir() string {
	return c.LogDir
}

// Downloader reconciles the raw data directory with the vector config:
// files the config no longer names are archived or deleted, and files it
// names that are not on disk yet are downloaded by their handlers.
type Downloader struct {
	Config  *config.VectorConfig
	Paths   util.Paths
	Archive bool
	Context util.LogContext

	// Recorder, when set, is told about every file written to disk.
	Recorder InventoryRecorder

	// Data retains every downloaded payload keyed by output filename,
	// including ones the config keeps off disk.
	Data map[string][]byte
}

// NewDownloader initializes a downloader for one sync pass
func NewDownloader(cfg *config.VectorConfig, paths util.Paths, archive bool, context util.LogContext) *Downloader {
	return &Downloader{
		Config:  cfg,
		Paths:   paths,
		Archive: archive,
		Context: context,
		Data:    map[string][]byte{},
	}
}

// managedFiles lists the paths of every file in the folders the config
// manages. Folders that do not exist yet are fine, and hidden files and
// subdirectories are left alone.
func (d *Downloader) managedFiles() ([]string, error) {
	files := []string{}
	for _, folder := range d.Config.Folders() {
		dir := filepath.Join(d.Paths.Raw, util.GenerateSlug(folder, "-"))
		entries, err := ioutil.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, util.LogSimpleErr(d.Context, fmt.Sprintf("Failed to read data directory %v.", dir), err)
		}
		for _, entry := range entries {
			if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
				continue
			}
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	return files, nil
}

// ExistingFiles lists the filename stems already present in the managed
// folders, sorted
func (d *Downloader) ExistingFiles() ([]string, error) {
	files, err := d.managedFiles()
	if err != nil {
		return nil, err
	}
	stems := make([]string, len(files))
	for i, file := range files {
		stems[i] = fileStem(file)
	}
	sort.Strings(stems)
	return stems, nil
}

// Missing lists required filenames with no file on disk yet, sorted
func (d *Downloader) Missing() ([]string, error) {
	existing, err := d.ExistingFiles()
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	for _, stem := range existing {
		seen[stem] = true
	}
	missing := []string{}
	for _, name := range d.Config.RequiredFilenames() {
		if !seen[name] {
			missing = append(missing, name)
		}
	}
	return missing, nil
}

// OldData lists files on disk that no config entry names anymore
func (d *Downloader) OldData() ([]string, error) {
	files, err := d.managedFiles()
	if err != nil {
		return nil, err
	}
	required := map[string]bool{}
	for _, name := range d.Config.RequiredFilenames() {
		required[name] = true
	}
	old := []string{}
	for _, file := range files {
		if !required[fileStem(file)] {
			old = append(old, file)
		}
	}
	return old, nil
}

// UpToDate reports whether the managed folders hold exactly the files
// the config requires
func (d *Downloader) UpToDate() (bool, error) {
	existing, err := d.ExistingFiles()
	if err != nil {
		return false, err
	}
	required := d.Config.RequiredFilenames()
	if len(existing) != len(required) {
		return false, nil
	}
	for i := range required {
		if existing[i] != required[i] {
			return false, nil
		}
	}
	return true, nil
}

// Update brings the managed folders in line with the config. Stale files
// go first, archived or deleted depending on the Archive flag, then every
// missing file's handler runs. Handler payloads are retained in Data. A
// handler failure does not stop the pass; the error reports how many
// downloads failed.
func (d *Downloader) Update() error {
	upToDate, err := d.UpToDate()
	if err != nil {
		return err
	}
	if upToDate {
		util.LogInfo(d.Context, "Data is up to date")
		return nil
	}

	old, err := d.OldData()
	if err != nil {
		return err
	}
	if d.Archive {
		err = d.archiveData(old)
	} else {
		err = d.deleteData(old)
	}
	if err != nil {
		return err
	}

	missing, err := d.Missing()
	if err != nil {
		return err
	}

	failures := 0
	for _, filename := range missing {
		entry, err := d.Config.FileConfigByName(filename)
		if err != nil {
			return err
		}

		util.LogInfo(d.Context, fmt.Sprintf("Downloading file: %s", filename))

		handler, err := HandlerFor(entry, d.Context)
		if err != nil {
			return err
		}
		results, err := handler.Execute(d.Paths.Raw)
		if err != nil {
			util.LogAlert(d.Context, fmt.Sprintf("Failed to download %s: %s", filename, err.Error()))
			failures++
			continue
		}
		names := make([]string, 0, len(results))
		for name, payload := range results {
			d.Data[name] = payload
			names = append(names, name)
		}
		if d.Recorder != nil && entry.File.WriteToDisk {
			sort.Strings(names)
			if err = d.Recorder.RecordFiles(entry.File.Folder, names); err != nil {
				util.LogAlert(d.Context, fmt.Sprintf("Failed to record %s in the inventory: %s", filename, err.Error()))
			}
		}
	}
	if failures > 0 {
		return fmt.Errorf("%d of %d missing files failed to download", failures, len(missing))
	}
	return nil
}

// deleteData removes files that fell out of the config
func (d *Downloader) deleteData(files []string) error {
	for _, file := range files {
		util.LogInfo(d.Context, fmt.Sprintf("Deleting file: %s", file))
		if err := os.Remove(file); err != nil {
			return util.LogSimpleErr(d.Context, fmt.Sprintf("Failed to delete %v.", file), err)
		}
	}
	return nil
}

// archiveData moves files that fell out of the config into a timestamped
// directory under the archive root
func (d *Downloader) archiveData(files []string) error {
	if len(files) == 0 {
		return nil
	}
	stamp := time.Now().UTC().Format(archiveTimeLayout)
	dir := filepath.Join(d.Paths.Archive, stamp)
	if err := os.MkdirAll(dir, 0777); err != nil {
		return util.LogSimpleErr(d.Context, fmt.Sprintf("Failed to create archive directory %v.", dir), err)
	}
	for _, file := range files {
		util.LogInfo(d.Context, fmt.Sprintf("Archiving file in folder: %s", stamp))
		if err := os.Rename(file, filepath.Join(dir, filepath.Base(file))); err != nil {
			return util.LogSimpleErr(d.Context, fmt.Sprintf("Failed to archive %v.", file), err)
		}
	}
	return nil
}

// fileStem is the base filename without its extension
func fileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
