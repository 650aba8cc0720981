package server

import (
	"encoding/json"
	"net/http"
	"path"
	"time"

	"github.com/a-h/templ"

	"github.com/conneroisu/mist/internal/errors"
	"github.com/conneroisu/mist/internal/version"
	"github.com/conneroisu/mist/pkg/router"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// HandlePage navigates the application to the request path and serves the
// page shell with the current tree. Paths with a file extension are never
// routes.
func (s *Server) HandlePage(w http.ResponseWriter, r *http.Request) {
	if path.Ext(r.URL.Path) != "" {
		http.NotFound(w, r)
		return
	}

	var title, body, overlay string
	var route router.Route
	err := s.app.Dispatch(func() error {
		if router.CleanPath(r.URL.Path) != s.history.Location() {
			if err := s.app.Router().Navigate(router.ByPath(r.URL.Path)); err != nil {
				return err
			}
		}
		route = s.app.Route()
		title = s.doc.Title()
		body = s.doc.InnerHTML(s.body)
		overlay = s.app.Errors().ErrorOverlay()
		return nil
	})

	status := http.StatusOK
	switch {
	case err != nil && errors.IsRoutingError(err):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case err != nil:
		// The page still shows whatever the failed render left in place.
		status = http.StatusInternalServerError
		_ = s.app.Dispatch(func() error {
			title = s.doc.Title()
			body = s.doc.InnerHTML(s.body)
			overlay = s.app.Errors().ErrorOverlay()
			return nil
		})
	case route.Name == router.NotFoundName:
		status = http.StatusNotFound
	}

	templ.Handler(page(title, body, overlay), templ.WithStatus(status)).ServeHTTP(w, r)
}

// HandleWebSocket streams patches to the browser.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.ws.HandleWebSocket(w, r)
}

// HandleClient serves the browser script.
func (s *Server) HandleClient(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(clientJS)
}

// HandleState returns a snapshot of the store.
func (s *Server) HandleState(w http.ResponseWriter, r *http.Request) {
	var snapshot map[string]any
	_ = s.app.Dispatch(func() error {
		snapshot = s.store.Snapshot()
		return nil
	})
	writeJSON(w, http.StatusOK, snapshot)
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Route   string `json:"route"`
	Path    string `json:"path"`
	Clients int    `json:"clients"`
	Errors  int    `json:"errors"`
}

// HandleHealth reports liveness and a few runtime figures.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:  "ok",
		Version: version.GetShortVersion(),
		Clients: s.ws.ClientCount(),
		Errors:  len(s.app.Errors().GetErrors()),
	}
	_ = s.app.Dispatch(func() error {
		resp.Route = s.app.Route().Name
		resp.Path = s.history.Location()
		return nil
	})
	writeJSON(w, http.StatusOK, resp)
}

type errorEntry struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// HandleErrors lists recorded render failures as JSON, or as the overlay
// markup with ?format=html.
func (s *Server) HandleErrors(w http.ResponseWriter, r *http.Request) {
	collector := s.app.Errors()
	if r.URL.Query().Get("format") == "html" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(collector.ErrorOverlay()))
		return
	}

	recorded := collector.GetErrors()
	entries := make([]errorEntry, 0, len(recorded))
	for _, rec := range recorded {
		entries = append(entries, errorEntry{Code: rec.Code, Message: rec.Err.Error(), Time: rec.Timestamp})
	}
	writeJSON(w, http.StatusOK, entries)
}
