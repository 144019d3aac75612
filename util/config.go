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
	"os"
	"time"
)

// Environment variables
const (
	DOWNLOAD_DATA_DIR = "DOWNLOAD_DATA_DIR"
	PC_SAS_TOKEN_URL  = "PC_SAS_TOKEN_URL"
	FETCH_FREQUENCY   = "FETCH_FREQUENCY"
	PORT              = "PORT"
)

const (
	defaultDataDir        = "data"
	defaultSASTokenURL    = "https://planetarycomputer.microsoft.com/api/sas/v1"
	defaultFetchFrequency = 24 * time.Hour
	defaultPort           = "8080"
)

// GetDataDir returns the root data directory from the DOWNLOAD_DATA_DIR
// environment variable, defaulting to "data"
func GetDataDir() string {
	dataDir, ok := os.LookupEnv(DOWNLOAD_DATA_DIR)
	if !ok || dataDir == "" {
		return defaultDataDir
	}
	return dataDir
}

// GetSASTokenURL returns the Planetary Computer SAS token endpoint from
// the PC_SAS_TOKEN_URL environment variable or the public default
func GetSASTokenURL() string {
	sasURL, ok := os.LookupEnv(PC_SAS_TOKEN_URL)
	if !ok || sasURL == "" {
		return defaultSASTokenURL
	}
	return sasURL
}

// GetFetchFrequency returns how often schedule mode re-runs the sync,
// parsed from the FETCH_FREQUENCY environment variable
func GetFetchFrequency() time.Duration {
	raw, ok := os.LookupEnv(FETCH_FREQUENCY)
	if !ok || raw == "" {
		return defaultFetchFrequency
	}
	frequency, err := time.ParseDuration(raw)
	if err != nil || frequency <= 0 {
		LogAlert(&BasicLogContext{}, "Could not parse "+FETCH_FREQUENCY+"="+raw+"; using default.")
		return defaultFetchFrequency
	}
	return frequency
}

// GetPortStr returns the port for the schedule-mode control server,
// prefixed with ":"
func GetPortStr() string {
	port, ok := os.LookupEnv(PORT)
	if !ok || port == "" {
		port = defaultPort
	}
	return ":" + port
}
