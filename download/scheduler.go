package download

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/citymetrics/ud-data-fetcher/config"
	"github.com/citymetrics/ud-data-fetcher/util"
	"github.com/fsnotify/fsnotify"
)

// BeginFetchJobMessage is sent on a channel to start a fetch job
const BeginFetchJobMessage = "start"

// AbortFetchJobMessage is sent on a channel to stop an in-progress job
const AbortFetchJobMessage = "stop"

const statusTimeFormat = "Mon Jan _2 15:04:05 2006"

// configDebounce covers editors that fire several filesystem events per
// save
const configDebounce = 500 * time.Millisecond

// Scheduler re-runs the download on a fixed frequency, on demand, and
// when a config file changes.
type Scheduler struct {
	Runner     *Runner
	statusChan chan chan string
}

// NewScheduler initializes a scheduler around one runner
func NewScheduler(runner *Runner) *Scheduler {
	return &Scheduler{Runner: runner, statusChan: make(chan chan string, 10)}
}

type fetchJobStats struct {
	StartTime      time.Time
	EndTime        time.Time
	CanceledByUser bool
	Composites     int
	Error          string
}

func (stats *fetchJobStats) String() string {
	errText := stats.Error
	if errText == "" {
		errText = "None"
	}
	return fmt.Sprintf(`
		Start:	%v
		End:	%v
		Canceled: %v
		#Composites:	%v
		Error:	%v
		`,
		stats.StartTime.Format(statusTimeFormat),
		stats.EndTime.Format(statusTimeFormat),
		stats.CanceledByUser,
		stats.Composites,
		errText)
}

// RunWhile runs fetch jobs and waits for a channel.
// Note: this is blocking
// The function will exit when messageChan is closed and any in-progress
// job completes. To close quickly, send AbortFetchJobMessage on
// messageChan before closing it.
func (s *Scheduler) RunWhile(messageChan <-chan string, maxTimeBetweenJobs time.Duration) {
	util.LogInfo(s.Runner.Context, fmt.Sprintf("Job loop started with frequency %v", maxTimeBetweenJobs))

	previousStatus := "\tNone"

	scheduleTimer := time.NewTimer(maxTimeBetweenJobs)
	nextScheduledStartTime := time.Now().Add(maxTimeBetweenJobs)

	var startJob bool
	for {
		startJob = false

		// Wait for a start message or the timer. Status is reported
		// cooperatively, so answer any requests while waiting.
		select {
		case <-scheduleTimer.C:
			util.LogInfo(s.Runner.Context, "Maximum time between jobs elapsed.")
			startJob = true
		case msg, ok := <-messageChan:
			if !ok {
				return // The message channel has been closed. Exit.
			}
			switch msg {
			case BeginFetchJobMessage:
				util.LogInfo(s.Runner.Context, "User requested job start.")
				startJob = true
			default:
				// Ignore everything except begin messages here.
			}
		case respChan := <-s.statusChan:
			select {
			case respChan <- fmt.Sprintf("%v\nStatus: Sleeping until %v\nPrevious job:\n%v",
				time.Now().Format(statusTimeFormat),
				nextScheduledStartTime.Format(statusTimeFormat),
				previousStatus): // good
			default:
				// Could not send immediately. The requester moved on.
			}
		}

		if startJob {
			util.LogInfo(s.Runner.Context, "Starting job.")
			previousStatus = s.runJob(messageChan)

			// Reset the timer. The channel may or may not have fired
			// while the job ran, so drain it in a general way.
			scheduleTimer.Stop()
		TimerDrainLoop:
			for {
				select {
				case <-scheduleTimer.C: // discard
				default:
					break TimerDrainLoop
				}
			}
			scheduleTimer.Reset(maxTimeBetweenJobs)
			nextScheduledStartTime = time.Now().Add(maxTimeBetweenJobs)
		}
	}
}

// GetStatus is a thread safe way to get information about the scheduler.
// It must only be called while RunWhile is running.
func (s *Scheduler) GetStatus() string {
	responseChan := make(chan string, 1) // Must have a buffer. The job loop will not wait to send.
	s.statusChan <- responseChan
	return <-responseChan
}

// runJob executes one fetch job: the vector sync, then the composites
// one by one with abort polls in between
func (s *Scheduler) runJob(messageChan <-chan string) string {
	var stats fetchJobStats
	stats.StartTime = time.Now()

	err := s.Runner.RunVector()
	if err == nil {
		util.LogInfo(s.Runner.Context, "Successfully downloaded vector data.")
		util.LogInfo(s.Runner.Context, "Downloading raster data.")
		err = s.runComposites(messageChan, &stats)
		if err == nil && !stats.CanceledByUser {
			util.LogInfo(s.Runner.Context, "Successfully downloaded raster data.")
		}
	}
	if err != nil {
		stats.Error = err.Error()
	}

	stats.EndTime = time.Now()
	util.LogInfo(s.Runner.Context, fmt.Sprintf("Fetch complete: %v", stats.String()))
	util.LogInfo(s.Runner.Context, fmt.Sprintf("Fetch took %s", stats.EndTime.Sub(stats.StartTime)))
	return stats.String()
}

func (s *Scheduler) runComposites(messageChan <-chan string, stats *fetchJobStats) error {
	cfg, err := config.LoadRasterConfig(s.Runner.RasterConfigPath)
	if err != nil {
		return err
	}
	pipeline := &EOPipeline{
		Config:   cfg,
		Paths:    s.Runner.Paths,
		Context:  s.Runner.Context,
		Recorder: s.Runner.Recorder,
	}

CompositeLoop:
	for i := range cfg.Entries {
		// Check whether the user has requested cancelation.
		if abort := drainMessages(messageChan); abort {
			util.LogInfo(s.Runner.Context, "Fetch job canceled by user.")
			stats.CanceledByUser = true
			break CompositeLoop
		}

		// Report the status to anyone waiting for it.
		drainStatusChannel(s.statusChan, stats)

		if err = pipeline.ProcessDataset(&cfg.Entries[i]); err != nil {
			return err
		}
		stats.Composites++
	}

	// Clear any status requests that queued up during the last composite.
	drainStatusChannel(s.statusChan, stats)
	return nil
}

// WatchConfigs sends a begin message whenever one of the given config
// files changes. The parent directories are watched rather than the
// files themselves because editors replace files on save. The returned
// function stops the watcher.
func (s *Scheduler) WatchConfigs(messageChan chan<- string, paths ...string) (func() error, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	watched := map[string]bool{}
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			watcher.Close()
			return nil, err
		}
		watched[abs] = true
		if err = watcher.Add(filepath.Dir(abs)); err != nil {
			watcher.Close()
			return nil, err
		}
	}

	go func() {
		var debounceTimer *time.Timer
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				abs, err := filepath.Abs(event.Name)
				if err != nil || !watched[abs] {
					continue
				}
				if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
					continue
				}
				util.LogInfo(s.Runner.Context, fmt.Sprintf("Config file %s changed", event.Name))
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(configDebounce, func() {
					select {
					case messageChan <- BeginFetchJobMessage:
					default:
						// A job request is already queued.
					}
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				util.LogAlert(s.Runner.Context, fmt.Sprintf("Config watcher error: %s", err.Error()))
			}
		}
	}()
	return watcher.Close, nil
}

// drainMessages reads all the queued messages from the channel looking
// for any abort requests. All other messages are discarded.
func drainMessages(messageChan <-chan string) (abortRequested bool) {
	for {
		select {
		case msg, ok := <-messageChan:
			if !ok {
				return
			}
			abortRequested = abortRequested || (msg == AbortFetchJobMessage)
		default:
			return
		}
	}
}

// drainStatusChannel answers every waiting status request with the
// in-progress job's stats
func drainStatusChannel(statusChan <-chan chan string, stats *fetchJobStats) {
	for {
		select {
		case resp := <-statusChan:
			if resp != nil {
				select {
				case resp <- fmt.Sprintf("%v\nIn progress\n%v", time.Now().Format(statusTimeFormat), stats.String()): // good
				default: // can't send, ignore this request
				}
			}
		default:
			return
		}
	}
}
