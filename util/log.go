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
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Log severities, ordered.
const (
	DEBUG = iota
	INFO
	NOTICE
	WARN
	ERROR
	FATAL
)

var severityNames = map[int]string{
	DEBUG:  "DEBUG",
	INFO:   "INFO",
	NOTICE: "NOTICE",
	WARN:   "WARNING",
	ERROR:  "ERROR",
	FATAL:  "FATAL",
}

// LogContext is the minimal context a caller must provide for logging:
// an application name, a session ID to correlate log lines, and an
// optional root directory for the log file. An empty LogRootDir means
// stream-only logging.
type LogContext interface {
	AppName() string
	SessionID() string
	LogRootDir() string
}

// BasicLogContext is a LogContext for callers that have nothing better:
// no app name, a lazily generated session ID, stream-only output.
type BasicLogContext struct {
	sessionID string
}

// AppName returns an empty string
func (c *BasicLogContext) AppName() string {
	return ""
}

// SessionID returns a Session ID, creating one if needed
func (c *BasicLogContext) SessionID() string {
	if c.sessionID == "" {
		c.sessionID, _ = PsuUUID()
	}
	return c.sessionID
}

// LogRootDir returns an empty string
func (c *BasicLogContext) LogRootDir() string {
	return ""
}

var (
	logMutex  sync.Mutex
	logStream io.Writer = os.Stderr
)

// logWrite formats one line and sends it to the stream and, when the
// context carries a log root dir, appends it to <root>/<app>.log.
func logWrite(ctx LogContext, severity int, message string) {
	name := severityNames[severity]
	if name == "" {
		name = severityNames[INFO]
	}

	tag := ctx.AppName()
	if session := ctx.SessionID(); session != "" {
		if tag != "" {
			tag += ":"
		}
		tag += session
	}

	line := fmt.Sprintf("%s - %s - [%s] %s", time.Now().UTC().Format(time.RFC3339), name, tag, message)

	logMutex.Lock()
	defer logMutex.Unlock()

	fmt.Fprintln(logStream, line)

	if root := ctx.LogRootDir(); root != "" {
		appendLogFile(ctx, root, line)
	}
}

func appendLogFile(ctx LogContext, root, line string) {
	if err := os.MkdirAll(root, 0777); err != nil {
		fmt.Fprintln(logStream, "Failed to create log directory "+root+": "+err.Error())
		return
	}
	name := ctx.AppName()
	if name == "" {
		name = "session"
	}
	path := filepath.Join(root, name+".log")
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		fmt.Fprintln(logStream, "Failed to open log file "+path+": "+err.Error())
		return
	}
	defer file.Close()
	fmt.Fprintln(file, line)
}

// LogInfo logs an informational message
func LogInfo(ctx LogContext, message string) {
	logWrite(ctx, INFO, message)
}

// LogAlert logs a message that should draw operator attention
func LogAlert(ctx LogContext, message string) {
	logWrite(ctx, WARN, message)
}

// LogSimpleErr logs a message together with its underlying error and
// returns a combined error suitable for passing up the stack.
func LogSimpleErr(ctx LogContext, message string, err error) error {
	if err != nil {
		message = message + " " + err.Error()
	}
	logWrite(ctx, ERROR, message)
	return fmt.Errorf("%s", message)
}

// LogAuditInput contains the fields of an audit log entry
type LogAuditInput struct {
	Actor    string
	Action   string
	Actee    string
	Message  string
	Severity int
}

// LogAudit logs a structured actor/action/actee audit line
func LogAudit(ctx LogContext, input LogAuditInput) {
	logWrite(ctx, input.Severity, fmt.Sprintf("[audit] actor=%q action=%q actee=%q %s",
		input.Actor, input.Action, input.Actee, input.Message))
}
