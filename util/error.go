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

package util

import (
	"fmt"
	"net/http"
)

// Error is a wrapped remote-call failure. LogMsg is the operator-facing
// detail, SimpleMsg the caller-facing summary; Response, URL and
// HTTPStatus capture what the remote end said.
type Error struct {
	LogMsg     string
	SimpleMsg  string
	Response   string
	URL        string
	HTTPStatus int
}

// Error implements the error interface
func (e Error) Error() string {
	if e.SimpleMsg != "" {
		return e.SimpleMsg
	}
	return e.LogMsg
}

// Log writes the full detail of the error to the log and returns an
// error carrying the simple message for the caller.
func (e Error) Log(ctx LogContext, prefix string) error {
	message := e.LogMsg
	if message == "" {
		message = e.SimpleMsg
	}
	if prefix != "" {
		message = prefix + ": " + message
	}
	if e.URL != "" {
		message += fmt.Sprintf(" (url: %s)", e.URL)
	}
	if e.HTTPStatus != 0 {
		message += fmt.Sprintf(" (status: %d)", e.HTTPStatus)
	}
	if e.Response != "" {
		message += "\nresponse: " + e.Response
	}
	logWrite(ctx, ERROR, message)
	return fmt.Errorf("%s", e.Error())
}

// HTTPErr is an error with an HTTP status attached, for handlers that
// need to answer a request with it.
type HTTPErr struct {
	Status  int
	Message string
}

// Error implements the error interface
func (e HTTPErr) Error() string {
	return e.Message
}

// HTTPError logs a handler failure and answers the request with the
// given status and message.
func HTTPError(r *http.Request, w http.ResponseWriter, ctx LogContext, message string, status int) {
	logWrite(ctx, ERROR, fmt.Sprintf("%s %s -> %d: %s", r.Method, r.URL.Path, status, message))
	http.Error(w, message, status)
}
