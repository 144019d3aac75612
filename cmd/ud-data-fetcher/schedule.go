package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/citymetrics/ud-data-fetcher/download"
	"github.com/citymetrics/ud-data-fetcher/inventory"
	"github.com/citymetrics/ud-data-fetcher/util"
	cli "gopkg.in/urfave/cli.v1"
)

//scheduleAction starts the fetch loop and an http control server
func scheduleAction(c *cli.Context) error {
	runner, err := newRunner(c)
	if err != nil {
		return err
	}
	scheduler := download.NewScheduler(runner)

	//Create the channel that sends the start/stop messages to the scheduler.
	messageChan := make(chan string, 5) //small buffer.

	//Start the sleep/fetch loop.
	go scheduler.RunWhile(messageChan, util.GetFetchFrequency())

	//Re-run immediately whenever a config file is edited.
	stopWatcher, err := scheduler.WatchConfigs(messageChan, runner.VectorConfigPath, runner.RasterConfigPath)
	if err != nil {
		util.LogAlert(runner.Context, fmt.Sprintf("Config watcher could not start: %s", err.Error()))
	} else {
		defer stopWatcher()
	}

	router, err := createRouter(scheduler, messageChan)
	if err != nil {
		return err
	}

	launchServerFunc(util.GetPortStr(), router)
	return nil
}

func createRouter(scheduler *download.Scheduler, messageChan chan string) (*mux.Router, error) {
	router := mux.NewRouter()
	router.HandleFunc("/", func(writer http.ResponseWriter, request *http.Request) {
		writer.Write([]byte("OK"))
	})
	router.HandleFunc("/sync/", func(resp http.ResponseWriter, req *http.Request) {
		handleFetchStatus(scheduler, resp, req)
	})
	router.HandleFunc("/sync/start", func(resp http.ResponseWriter, req *http.Request) {
		handleForceStartFetch(scheduler, messageChan, resp, req)
	})
	router.HandleFunc("/sync/cancel", func(resp http.ResponseWriter, req *http.Request) {
		handleCancelFetch(scheduler, messageChan, resp, req)
	})

	if !databaseConfigured() {
		return router, nil
	}

	if scenesHandler, err := inventory.NewScenesHandler(getDbConnectionFunc); err == nil {
		router.Handle("/inventory/scenes", scenesHandler)
	} else {
		return nil, err
	}

	if filesHandler, err := inventory.NewFilesHandler(getDbConnectionFunc); err == nil {
		router.Handle("/inventory/files", filesHandler)
	} else {
		return nil, err
	}

	return router, nil
}

//handleFetchStatus requests the status from the scheduler and writes it out.
func handleFetchStatus(s *download.Scheduler, writer http.ResponseWriter, req *http.Request) {
	fmt.Fprintln(writer, s.GetStatus())
}

//handleForceStartFetch sends a "begin" message to the scheduler and returns the new status to the user.
func handleForceStartFetch(s *download.Scheduler, messageChan chan<- string, writer http.ResponseWriter, req *http.Request) {
	select {
	case messageChan <- download.BeginFetchJobMessage:
		fmt.Fprintln(writer, "Begin job request submitted.")
	default:
		fmt.Fprintln(writer, "Error submitting request.")
	}
	fmt.Fprintln(writer, s.GetStatus())
}

//handleCancelFetch sends a "cancel" message to the scheduler and returns the new status to the user.
func handleCancelFetch(s *download.Scheduler, cancelChan chan<- string, writer http.ResponseWriter, req *http.Request) {
	select {
	case cancelChan <- download.AbortFetchJobMessage:
		fmt.Fprintln(writer, "Cancel request submitted.")
	default:
		fmt.Fprintln(writer, "Error submitting cancel request.")
	}
	fmt.Fprintln(writer, s.GetStatus())
}

var launchServerFunc = launchServer

func launchServer(portStr string, router *mux.Router) {
	server := http.Server{
		Addr:    portStr,
		Handler: router,
	}

	log.Fatal(server.ListenAndServe())
}
