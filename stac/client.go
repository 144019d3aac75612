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

package stac

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"

	"github.com/citymetrics/ud-data-fetcher/model"
	"github.com/citymetrics/ud-data-fetcher/util"
	"github.com/venicegeo/geojson-go/geojson"
)

// defaultSearchLimit is the page size requested from the catalog
const defaultSearchLimit = 100

// maxSearchPages bounds the paging loop for catalogs that keep handing
// out next links
const maxSearchPages = 500

// Search returns every scene matching the search options, following
// next links until the catalog is exhausted.
func Search(options SearchOptions, context *Context) ([]model.SceneSearchResult, error) {
	var (
		err          error
		response     *http.Response
		requestBody  []byte
		responseBody []byte
	)

	req := searchRequest{
		Collections: options.Collections,
		Bbox:        options.Bbox,
		Datetime:    options.Datetime,
		Query:       options.Query,
		Limit:       options.Limit,
	}
	if req.Limit <= 0 {
		req.Limit = defaultSearchLimit
	}
	if requestBody, err = json.Marshal(req); err != nil {
		err = util.LogSimpleErr(context, fmt.Sprintf("Failed to marshal search request object %#v.", req), err)
		return nil, err
	}

	results := []model.SceneSearchResult{}
	inputURL := "search"
	for page := 0; page < maxSearchPages; page++ {
		if response, err = stacRequest(stacRequestInput{method: "POST", inputURL: inputURL, body: requestBody, contentType: "application/json"}, context); err != nil {
			err = util.LogSimpleErr(context, fmt.Sprintf("Failed to complete STAC search request %#v.", string(requestBody)), err)
			return nil, err
		}
		switch {
		case (response.StatusCode >= 400) && (response.StatusCode < 500):
			message := fmt.Sprintf("Failed to search the STAC catalog: %v. ", response.Status)
			err := util.HTTPErr{Status: response.StatusCode, Message: message}
			util.LogAlert(context, message)
			return nil, err
		case response.StatusCode >= 500:
			err = util.LogSimpleErr(context, "Failed to search the STAC catalog.", errors.New(response.Status))
			return nil, err
		default:
			//no op
		}

		responseBody, _ = ioutil.ReadAll(response.Body)
		response.Body.Close()

		pageResults, next, err := transformItemCollection(responseBody, context)
		if err != nil {
			return nil, err
		}
		results = append(results, pageResults...)

		if next == nil {
			return results, nil
		}
		if requestBody, err = nextRequestBody(requestBody, *next); err != nil {
			err = util.LogSimpleErr(context, "Failed to construct the next search page request.", err)
			return nil, err
		}
		if next.Href != "" {
			inputURL = next.Href
		}
	}

	return nil, util.LogSimpleErr(context, fmt.Sprintf("Gave up paging the STAC catalog after %v pages.", maxSearchPages), errors.New("too many result pages"))
}

// stacRequest performs the request
func stacRequest(input stacRequestInput, context *Context) (*http.Response, error) {
	var (
		request   *http.Request
		parsedURL *url.URL
		inputURL  string
		err       error
	)
	inputURL = input.inputURL
	if !strings.Contains(inputURL, context.BaseSTACURL) {
		// Catalog roots are configured without a trailing slash
		baseURL, _ := url.Parse(strings.TrimSuffix(context.BaseSTACURL, "/") + "/")
		parsedRelativeURL, _ := url.Parse(input.inputURL)
		resolvedURL := baseURL.ResolveReference(parsedRelativeURL)

		if parsedURL, err = url.Parse(resolvedURL.String()); err != nil {
			err = util.LogSimpleErr(context, fmt.Sprintf("Failed to parse %v into a URL.", resolvedURL.String()), err)
			return nil, err
		}
		inputURL = parsedURL.String()
	}
	message := "Searching the STAC catalog"
	bodyStr := string(input.body)
	if bodyStr != "" {
		message += ": " + bodyStr
	}
	if request, err = http.NewRequest(input.method, inputURL, bytes.NewBuffer(input.body)); err != nil {
		err = util.LogSimpleErr(context, fmt.Sprintf("Failed to make a new HTTP request for %v.", inputURL), err)
		return nil, err
	}
	if input.contentType != "" {
		request.Header.Set("Content-Type", input.contentType)
	}

	util.LogAudit(context, util.LogAuditInput{Actor: "stac/stacRequest", Action: input.method, Actee: inputURL, Message: message, Severity: util.INFO})
	util.LogAudit(context, util.LogAuditInput{Actor: inputURL, Action: input.method + " response", Actee: "stac/stacRequest", Message: "Receiving data from the STAC catalog", Severity: util.INFO})
	return util.HTTPClient().Do(request)
}

// nextRequestBody builds the POST body for a follow-up page. A next
// link with merge set lays its body over the previous request; a body
// without merge stands alone; no body at all repeats the previous
// request against the link href.
func nextRequestBody(previous []byte, next itemLink) ([]byte, error) {
	if len(next.Body) == 0 && !next.Merge {
		return previous, nil
	}
	merged := make(map[string]interface{})
	if next.Merge {
		if err := json.Unmarshal(previous, &merged); err != nil {
			return nil, err
		}
	}
	for key, value := range next.Body {
		merged[key] = value
	}
	return json.Marshal(merged)
}

// Transforms one search page into scene results plus its next link, if any
func transformItemCollection(body []byte, context util.LogContext) ([]model.SceneSearchResult, *itemLink, error) {
	var (
		fci interface{}
		fc  *geojson.FeatureCollection
		ic  itemCollection
		err error
		ok  bool
	)
	if fci, err = geojson.Parse(body); err != nil {
		err = util.LogSimpleErr(context, fmt.Sprintf("Failed to parse GeoJSON.\n%v", string(body)), err)
		return nil, nil, err
	}
	if fc, ok = fci.(*geojson.FeatureCollection); !ok {
		stacErr := util.Error{SimpleMsg: fmt.Sprintf("Expected a FeatureCollection and got %T", fci),
			Response: string(body)}
		err = stacErr.Log(context, "")
		return nil, nil, err
	}
	if err = json.Unmarshal(body, &ic); err != nil {
		stacErr := util.Error{LogMsg: "Failed to unmarshal STAC item collection: " + err.Error(),
			SimpleMsg: "The catalog returned an unexpected response for this search. See log for further details.",
			Response:  string(body)}
		err = stacErr.Log(context, "")
		return nil, nil, err
	}

	results := make([]model.SceneSearchResult, len(fc.Features))
	for inx, curr := range fc.Features {
		if results[inx], err = transformItemFeature(curr, ic.Features[inx], context); err != nil {
			return nil, nil, err
		}
	}

	for _, link := range ic.Links {
		if link.Rel == "next" {
			next := link
			return results, &next, nil
		}
	}
	return results, nil, nil
}

func transformItemFeature(feature *geojson.Feature, stacItem item, context util.LogContext) (model.SceneSearchResult, error) {
	var result model.SceneSearchResult

	acquired, err := model.ParseSTACTime(feature.PropertyString("datetime"))
	if err != nil {
		return result, util.LogSimpleErr(context, fmt.Sprintf("Scene %v has an unusable datetime.", feature.IDStr()), err)
	}

	fileFormat := model.GeoTIFF
	bands := make(map[string]string)
	for key, sceneAsset := range stacItem.Assets {
		if sceneAsset.Href == "" {
			continue
		}
		if strings.Contains(sceneAsset.Type, "jp2") {
			fileFormat = model.JPEG2000
		}
		commonName := ""
		if len(sceneAsset.EOBands) == 1 {
			commonName = sceneAsset.EOBands[0].CommonName
		}
		bands[model.CommonBandName(key, commonName)] = sceneAsset.Href
	}

	result = model.SceneSearchResult{
		SceneResult: model.SceneResult{
			ID:           feature.IDStr(),
			Collection:   stacItem.Collection,
			Geometry:     feature.Geometry,
			CloudCover:   feature.PropertyFloat("eo:cloud_cover"),
			Resolution:   feature.PropertyFloat("gsd"),
			EPSG:         int(feature.PropertyFloat("proj:epsg")),
			AcquiredDate: acquired,
			Platform:     feature.PropertyString("platform"),
			FileFormat:   fileFormat,
		},
		BandAssets: model.BandAssets{Bands: bands},
	}
	return result, nil
}
