package stac

import (
	"encoding/json"

	"github.com/citymetrics/ud-data-fetcher/util"
)

// Context is the context for a STAC catalog operation
type Context struct {
	BaseSTACURL string
	SASTokenURL string
	sessionID   string
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

// LogRootDir returns an empty string
func (c *Context) LogRootDir() string {
	return ""
}

// SearchOptions are the search options for an item search request
type SearchOptions struct {
	Collections []string
	Bbox        []float64
	Datetime    string
	Query       json.RawMessage
	Limit       int
}

type searchRequest struct {
	Collections []string        `json:"collections"`
	Bbox        []float64       `json:"bbox,omitempty"`
	Datetime    string          `json:"datetime,omitempty"`
	Query       json.RawMessage `json:"query,omitempty"`
	Limit       int             `json:"limit,omitempty"`
}

// itemCollection carries the STAC-specific parts of a search page that
// the plain GeoJSON parse does not surface: per-asset hrefs and bands,
// and the paging links.
type itemCollection struct {
	Features []item     `json:"features"`
	Links    []itemLink `json:"links"`
}

type item struct {
	ID         string           `json:"id"`
	Collection string           `json:"collection"`
	Assets     map[string]asset `json:"assets"`
}

type asset struct {
	Href    string   `json:"href"`
	Type    string   `json:"type"`
	Roles   []string `json:"roles"`
	EOBands []eoBand `json:"eo:bands"`
}

type eoBand struct {
	Name       string `json:"name"`
	CommonName string `json:"common_name"`
}

type itemLink struct {
	Rel    string                 `json:"rel"`
	Href   string                 `json:"href"`
	Method string                 `json:"method"`
	Body   map[string]interface{} `json:"body"`
	Merge  bool                   `json:"merge"`
}

type stacRequestInput struct {
	method      string
	inputURL    string // URL may be relative or absolute based on BaseSTACURL
	body        []byte
	contentType string
}

type sasTokenResponse struct {
	Expiry string `json:"msft:expiry"`
	Token  string `json:"token"`
}
