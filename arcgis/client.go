package arcgis

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/venicegeo/geojson-go/geojson"

	"github.com/citymetrics/ud-data-fetcher/util"
)

// Servers maps each supported feature-service flavor to the query
// suffix its endpoints expect.
var Servers = map[string]string{
	"ons":  "/FeatureServer/0/query?",
	"scot": "/query?",
}

// Esri feature services return at most 2000 records per request.
const MaxRecordCount = 2000

const batchRetries = 3

// The geometry endpoints enforce a 60 second server-side limit and can
// take most of it on large layers.
var queryClient = util.HTTPClientWithTimeout(70 * time.Second)

// Context is the context for an ArcGIS query operation
type Context struct {
	sessionID string
}

// AppName returns the name of the application
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

// LogRootDir returns an empty string
func (c *Context) LogRootDir() string {
	return ""
}

// QueryOptions are the inputs for one feature-service query
type QueryOptions struct {
	ServiceURL string
	Filename   string
	Server     string
	Format     string
	OutFields  string
	Offset     int
}

// QueryFeatures retrieves every record of a feature-service layer as a
// single GeoJSON feature collection. When Offset is nonzero the records
// are fetched in batches of that size, each batch retried when the
// service answers without a features key, and the batches stitched
// together in order.
func QueryFeatures(options QueryOptions, context *Context) (*geojson.FeatureCollection, error) {
	suffix, ok := Servers[options.Server]
	if !ok {
		return nil, fmt.Errorf("Unknown geometry server: %s", options.Server)
	}
	baseURL := options.ServiceURL + options.Filename + suffix

	features := []*geojson.Feature{}
	for iteration := 1; ; iteration++ {
		params := queryParams(options)
		params.Set("resultOffset", strconv.Itoa(options.Offset*(iteration-1)))

		batch, err := retrieveBatch(baseURL, params, context)
		if err != nil {
			return nil, err
		}
		if len(batch.Features) == 0 {
			break
		}
		features = append(features, batch.Features...)

		// With no offset configured everything arrives in one response.
		if options.Offset == 0 {
			break
		}
	}

	return geojson.NewFeatureCollection(features), nil
}

// queryParams builds the parameter set the esri query endpoints expect
func queryParams(options QueryOptions) url.Values {
	params := url.Values{}
	params.Set("where", "1=1")
	params.Set("timeRelation", "esriTimeRelationOverlaps")
	params.Set("geometryType", "esriGeometryEnvelope")
	params.Set("spatialRel", "esriSpatialRelIntersects")
	params.Set("resultType", "none")
	params.Set("distance", "0.0")
	params.Set("units", "esriSRUnit_Meter")
	params.Set("outFields", options.OutFields)
	params.Set("featureEncoding", "esriCompressedShapeBuffer")
	params.Set("outputSpatialReference", "4326")
	params.Set("returnTrueCurves", "false")
	params.Set("multipatchOption", "xyFootprint")
	params.Set("sqlFormat", "none")
	params.Set("f", options.Format)
	if options.Offset > 0 {
		params.Set("resultRecordCount", strconv.Itoa(options.Offset))
	}
	return params
}

// retrieveBatch fetches one page of records, retrying responses that
// lack a features key (the services intermittently answer with an
// error document and status 200).
func retrieveBatch(baseURL string, params url.Values, context *Context) (*geojson.FeatureCollection, error) {
	inputURL := baseURL + params.Encode()

	var body []byte
	for retry := 1; ; retry++ {
		util.LogAudit(context, util.LogAuditInput{Actor: "arcgis/retrieveBatch", Action: "GET", Actee: inputURL, Message: "Requesting feature batch", Severity: util.INFO})
		response, err := queryClient.Get(inputURL)
		if err != nil {
			return nil, util.LogSimpleErr(context, fmt.Sprintf("Failed to complete feature service request %v.", inputURL), err)
		}
		body, err = ioutil.ReadAll(response.Body)
		response.Body.Close()
		if err != nil {
			return nil, util.LogSimpleErr(context, "Failed to read feature service response.", err)
		}
		if response.StatusCode != http.StatusOK {
			plErr := util.Error{LogMsg: "Feature service returned " + response.Status,
				SimpleMsg:  "The geometry service did not accept this request. See log for further details.",
				Response:   string(body),
				URL:        inputURL,
				HTTPStatus: response.StatusCode}
			return nil, plErr.Log(context, "")
		}
		util.LogAudit(context, util.LogAuditInput{Actor: inputURL, Action: "GET response", Actee: "arcgis/retrieveBatch", Message: "Receiving feature batch", Severity: util.INFO})

		if hasFeaturesKey(body) {
			break
		}
		if retry == batchRetries {
			offsetPos := params.Get("resultOffset")
			plErr := util.Error{LogMsg: fmt.Sprintf("Failed to download data at position: %s", offsetPos),
				SimpleMsg: "The geometry service kept answering without features.",
				Response:  string(body),
				URL:       inputURL}
			return nil, plErr.Log(context, "")
		}
	}

	parsed, err := geojson.Parse(body)
	if err != nil {
		return nil, util.LogSimpleErr(context, fmt.Sprintf("Failed to parse GeoJSON.\n%v", string(body)), err)
	}
	collection, ok := parsed.(*geojson.FeatureCollection)
	if !ok {
		plErr := util.Error{SimpleMsg: fmt.Sprintf("Expected a FeatureCollection and got %T", parsed),
			Response: string(body)}
		return nil, plErr.Log(context, "")
	}
	return collection, nil
}

func hasFeaturesKey(body []byte) bool {
	document := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &document); err != nil {
		return false
	}
	_, ok := document["features"]
	return ok
}
