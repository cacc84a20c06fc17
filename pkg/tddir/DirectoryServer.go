// Package tddir with a minimal Thing Description directory.
// Things register their TD document over HTTP; consumers list and fetch the
// documents to feed the protocol binding clients.
package tddir

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/thingzone/wotlib-go/api"
	"github.com/thingzone/wotlib-go/pkg/td"
)

// DirectoryServer is an in-memory Thing Description directory with an HTTP API
//
//  PUT    /things/{id}  register or update a TD document (validated)
//  GET    /things/{id}  fetch a TD document by thing ID or URL name
//  GET    /things       list all TD documents
//  DELETE /things/{id}  remove a TD document
type DirectoryServer struct {
	updateMutex sync.RWMutex
	documents   map[string]api.ThingTD // thing ID -> TD document
	urlNames    map[string]string      // URL name -> thing ID
}

// NewDirectoryServer creates an empty directory
func NewDirectoryServer() *DirectoryServer {
	return &DirectoryServer{
		documents: make(map[string]api.ThingTD),
		urlNames:  make(map[string]string),
	}
}

// Register validates and stores a TD document.
// The document is also findable by the URL-safe name of its Thing.
func (server *DirectoryServer) Register(doc api.ThingTD) error {
	if err := td.ValidateTD(doc); err != nil {
		return err
	}
	thing, err := td.ParseTD(doc)
	if err != nil {
		return err
	}
	server.updateMutex.Lock()
	defer server.updateMutex.Unlock()
	server.documents[thing.ID] = doc
	server.urlNames[thing.URLName()] = thing.ID
	logrus.Infof("DirectoryServer.Register: thing '%s'", thing.ID)
	return nil
}

// Get returns the TD document for a thing ID or URL name, nil when unknown
func (server *DirectoryServer) Get(thingID string) api.ThingTD {
	server.updateMutex.RLock()
	defer server.updateMutex.RUnlock()
	if doc, found := server.documents[thingID]; found {
		return doc
	}
	if actualID, found := server.urlNames[thingID]; found {
		return server.documents[actualID]
	}
	return nil
}

// List returns all registered TD documents
func (server *DirectoryServer) List() []api.ThingTD {
	server.updateMutex.RLock()
	defer server.updateMutex.RUnlock()
	documents := make([]api.ThingTD, 0, len(server.documents))
	for _, doc := range server.documents {
		documents = append(documents, doc)
	}
	return documents
}

// Remove deletes the TD document of a thing ID. Unknown IDs are ignored.
func (server *DirectoryServer) Remove(thingID string) {
	server.updateMutex.Lock()
	defer server.updateMutex.Unlock()
	doc, found := server.documents[thingID]
	if !found {
		return
	}
	if thing, err := td.ParseTD(doc); err == nil {
		delete(server.urlNames, thing.URLName())
	}
	delete(server.documents, thingID)
}

// Router returns the HTTP router serving the directory API
func (server *DirectoryServer) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/things", server.serveList).Methods(http.MethodGet)
	router.HandleFunc("/things/{thingID}", server.serveGet).Methods(http.MethodGet)
	router.HandleFunc("/things/{thingID}", server.servePut).Methods(http.MethodPut)
	router.HandleFunc("/things/{thingID}", server.serveDelete).Methods(http.MethodDelete)
	return router
}

func writeJSON(resp http.ResponseWriter, statusCode int, payload interface{}) {
	resp.Header().Set("Content-Type", api.MediaTypeJSON)
	resp.WriteHeader(statusCode)
	json.NewEncoder(resp).Encode(payload)
}

func (server *DirectoryServer) serveList(resp http.ResponseWriter, req *http.Request) {
	writeJSON(resp, http.StatusOK, server.List())
}

func (server *DirectoryServer) serveGet(resp http.ResponseWriter, req *http.Request) {
	thingID := mux.Vars(req)["thingID"]
	doc := server.Get(thingID)
	if doc == nil {
		writeJSON(resp, http.StatusNotFound, map[string]string{"error": "unknown thing " + thingID})
		return
	}
	writeJSON(resp, http.StatusOK, doc)
}

func (server *DirectoryServer) servePut(resp http.ResponseWriter, req *http.Request) {
	thingID := mux.Vars(req)["thingID"]
	var doc api.ThingTD
	if err := json.NewDecoder(req.Body).Decode(&doc); err != nil {
		writeJSON(resp, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if docID, _ := doc[api.WoTID].(string); docID != thingID {
		writeJSON(resp, http.StatusBadRequest,
			map[string]string{"error": "document id does not match the request path"})
		return
	}
	if err := server.Register(doc); err != nil {
		logrus.Warnf("DirectoryServer: rejected registration of '%s': %s", thingID, err)
		writeJSON(resp, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	resp.WriteHeader(http.StatusCreated)
}

func (server *DirectoryServer) serveDelete(resp http.ResponseWriter, req *http.Request) {
	server.Remove(mux.Vars(req)["thingID"])
	resp.WriteHeader(http.StatusOK)
}
