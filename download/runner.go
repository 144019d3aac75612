package download

import (
	"errors"
	"fmt"
	"time"

	"github.com/citymetrics/ud-data-fetcher/config"
	"github.com/citymetrics/ud-data-fetcher/util"
)

// DefaultAttempts is how many times the vector sync runs before the
// runner gives up on failed downloads
const DefaultAttempts = 3

const retryWait = 30 * time.Second

// ErrDownloadFailed is returned once every attempt is spent
var ErrDownloadFailed = errors.New("One or more files failed to download")

// sleepBetweenAttempts waits out the retry interval. Variable so tests
// can skip the wait.
var sleepBetweenAttempts = func() { time.Sleep(retryWait) }

// Runner executes a full fetch: the vector sync with its retries, then
// the raster composites
type Runner struct {
	VectorConfigPath string
	RasterConfigPath string
	Attempts         int
	Archive          bool
	Paths            util.Paths
	Context          util.LogContext
	Recorder         InventoryRecorder
}

// Run downloads the vector datasets and then the raster composites
func (r *Runner) Run() error {
	if err := r.RunVector(); err != nil {
		return err
	}
	util.LogInfo(r.Context, "Successfully downloaded vector data.")

	util.LogInfo(r.Context, "Downloading raster data.")
	if err := r.RunRaster(); err != nil {
		return err
	}
	util.LogInfo(r.Context, "Successfully downloaded raster data.")
	return nil
}

// RunVector syncs the vector datasets, retrying failed downloads a few
// times before giving up
func (r *Runner) RunVector() error {
	cfg, err := config.LoadVectorConfig(r.VectorConfigPath)
	if err != nil {
		return err
	}
	for _, warning := range cfg.Warnings {
		util.LogAlert(r.Context, warning)
	}

	downloader := NewDownloader(cfg, r.Paths, r.Archive, r.Context)
	downloader.Recorder = r.Recorder
	attempts := r.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}

	for attempt := 1; ; attempt++ {
		err = downloader.Update()
		if err == nil {
			util.LogInfo(r.Context, "All missing data successfully downloaded.")
			return nil
		}
		if attempt == attempts {
			break
		}
		util.LogInfo(r.Context, fmt.Sprintf("Retrying failed downloads after 30 seconds (attempt number: %d).", attempt+1))
		sleepBetweenAttempts()
	}
	util.LogSimpleErr(r.Context, "One or more files failed to download.", err)
	return ErrDownloadFailed
}

// RunRaster builds the raster composites
func (r *Runner) RunRaster() error {
	cfg, err := config.LoadRasterConfig(r.RasterConfigPath)
	if err != nil {
		return err
	}
	pipeline := &EOPipeline{Config: cfg, Paths: r.Paths, Context: r.Context, Recorder: r.Recorder}
	return pipeline.Run()
}
