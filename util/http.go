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
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"time"
)

const (
	httpRetryMax     = 3
	httpRetryBackoff = 100 * time.Millisecond
	httpTimeout      = 10 * time.Second
)

// retryTransport re-issues a request on network failure, 429 or 5xx,
// up to httpRetryMax attempts with a short linear backoff. Requests
// with a body are only retried when the body can be rewound.
type retryTransport struct {
	base http.RoundTripper
}

func (t retryTransport) RoundTrip(request *http.Request) (*http.Response, error) {
	var (
		response *http.Response
		err      error
	)
	for attempt := 1; ; attempt++ {
		if request.Body != nil && request.GetBody != nil && attempt > 1 {
			request.Body, _ = request.GetBody()
		}
		response, err = t.base.RoundTrip(request)
		if !shouldRetry(response, err) || attempt >= httpRetryMax {
			return response, err
		}
		if request.Body != nil && request.GetBody == nil {
			return response, err
		}
		if response != nil {
			io.Copy(ioutil.Discard, response.Body)
			response.Body.Close()
		}
		time.Sleep(time.Duration(attempt) * httpRetryBackoff)
	}
}

func shouldRetry(response *http.Response, err error) bool {
	if err != nil {
		return true
	}
	return response.StatusCode == http.StatusTooManyRequests || response.StatusCode >= 500
}

// HTTPClient returns the shared retrying HTTP client
func HTTPClient() *http.Client {
	return &http.Client{
		Timeout:   httpTimeout,
		Transport: retryTransport{base: http.DefaultTransport},
	}
}

// HTTPClientWithTimeout returns a retrying client with a caller-chosen
// timeout, for the slow geometry and asset endpoints.
func HTTPClientWithTimeout(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: retryTransport{base: http.DefaultTransport},
	}
}

// ReqByObjJSON issues a request whose body is the JSON form of inObj
// (skipped when nil) and unmarshals the response into outObj. The
// response is returned alongside so callers can inspect the status.
func ReqByObjJSON(method, url, authKey string, inObj, outObj interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	if inObj != nil {
		requestBody, err := json.Marshal(inObj)
		if err != nil {
			return nil, fmt.Errorf("Failed to marshal request object: %s", err.Error())
		}
		bodyReader = bytes.NewReader(requestBody)
	}

	request, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	request.Header.Set("Content-Type", "application/json")
	if authKey != "" {
		request.Header.Set("Authorization", authKey)
	}

	response, err := HTTPClient().Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	body, err := ioutil.ReadAll(response.Body)
	if err != nil {
		return response, err
	}
	if response.StatusCode < 200 || response.StatusCode > 299 {
		return response, Error{
			LogMsg:     fmt.Sprintf("%s %s failed", method, url),
			SimpleMsg:  fmt.Sprintf("Request to %s returned %s", url, response.Status),
			Response:   string(body),
			URL:        url,
			HTTPStatus: response.StatusCode,
		}
	}
	if outObj != nil {
		if err = json.Unmarshal(body, outObj); err != nil {
			return response, Error{
				LogMsg:   "Failed to unmarshal response: " + err.Error(),
				Response: string(body),
				URL:      url,
			}
		}
	}
	return response, nil
}
