package inventory

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/citymetrics/ud-data-fetcher/model"
	"github.com/citymetrics/ud-data-fetcher/util"
)

// ScenesHandler is a handler for /inventory/scenes
// @Title inventoryScenesHandler
// @Description lists the scenes recorded in the local inventory
// @Accept  plain
// @Param   composite       query   string  false        "Only scenes that contributed to this composite"
// @Success 200 {object}  geojson.FeatureCollection
// @Failure 500 {object}  string
// @Router /inventory/scenes [get]
type ScenesHandler struct {
	Context Context
}

// NewScenesHandler creates a new handler using a database connection
// from the provider
func NewScenesHandler(connectionProvider ConnectionProvider) (*ScenesHandler, error) {
	database, err := connectionProvider(&util.BasicLogContext{})
	if err != nil {
		return nil, err
	}
	return &ScenesHandler{Context: Context{DB: database}}, nil
}

// ServeHTTP implements the http.Handler interface for the ScenesHandler type
func (h ScenesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tx, err := h.Context.DB.Begin()
	if err != nil {
		message := fmt.Sprintf("Could not begin DB transaction: %v", err)
		util.LogSimpleErr(&h.Context, message, err)
		util.HTTPError(r, w, &h.Context, message, http.StatusInternalServerError)
		return
	}
	defer tx.Commit()

	scenes, err := ScenesByComposite(tx, r.FormValue("composite"))
	if err != nil {
		message := fmt.Sprintf("Error querying the scene inventory: %v", err)
		util.LogSimpleErr(&h.Context, message, err)
		util.HTTPError(r, w, &h.Context, message, http.StatusInternalServerError)
		tx.Rollback()
		return
	}

	creators := make([]model.GeoJSONFeatureCreator, len(scenes))
	for i, scene := range scenes {
		creators[i] = scene
	}
	featureCollection, err := model.MultiSceneResult{FeatureCreators: creators}.GeoJSONFeatureCollection()
	if err != nil {
		message := fmt.Sprintf("Error converting to feature collection: %v", err)
		util.LogSimpleErr(&h.Context, message, err)
		util.HTTPError(r, w, &h.Context, message, http.StatusInternalServerError)
		return
	}
	w.Write([]byte(featureCollection.String()))
}

// FilesHandler is a handler for /inventory/files
// @Title inventoryFilesHandler
// @Description lists the output files recorded in the local inventory
// @Accept  plain
// @Success 200 {array}  inventory.FetchedFile
// @Failure 500 {object}  string
// @Router /inventory/files [get]
type FilesHandler struct {
	Context Context
}

// NewFilesHandler creates a new handler using a database connection
// from the provider
func NewFilesHandler(connectionProvider ConnectionProvider) (*FilesHandler, error) {
	database, err := connectionProvider(&util.BasicLogContext{})
	if err != nil {
		return nil, err
	}
	return &FilesHandler{Context: Context{DB: database}}, nil
}

// ServeHTTP implements the http.Handler interface for the FilesHandler type
func (h FilesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tx, err := h.Context.DB.Begin()
	if err != nil {
		message := fmt.Sprintf("Could not begin DB transaction: %v", err)
		util.LogSimpleErr(&h.Context, message, err)
		util.HTTPError(r, w, &h.Context, message, http.StatusInternalServerError)
		return
	}
	defer tx.Commit()

	files, err := FetchedFiles(tx)
	if err != nil {
		message := fmt.Sprintf("Error querying the file inventory: %v", err)
		util.LogSimpleErr(&h.Context, message, err)
		util.HTTPError(r, w, &h.Context, message, http.StatusInternalServerError)
		tx.Rollback()
		return
	}

	body, err := json.Marshal(files)
	if err != nil {
		message := fmt.Sprintf("Error converting the file listing: %v", err)
		util.LogSimpleErr(&h.Context, message, err)
		util.HTTPError(r, w, &h.Context, message, http.StatusInternalServerError)
		return
	}
	w.Write(body)
}
