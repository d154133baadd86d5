package provider

import (
	"encoding/json"
	"io/ioutil"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
)

// AdminRouter exposes the link lifecycle control interface over HTTP for
// the standalone binary: the hosting runtime PUTs a JSON config map to
// register a link and DELETEs it to drop one. This is glue around the
// lifecycle methods, not part of the dispatch path.
func (p *Provider) AdminRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Get("/links", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(p.registry.Sources())
	})

	r.Put("/links/{sourceID}", func(w http.ResponseWriter, req *http.Request) {
		sourceID := chi.URLParam(req, "sourceID")

		body, err := ioutil.ReadAll(req.Body)
		var values map[string]string
		if err != nil || json.Unmarshal(body, &values) != nil {
			render.Render(w, req, &errResponse{
				HTTPStatusCode: 400,
				ErrorType:      "BadRequest",
				ErrorMessage:   "link config must be a JSON string map",
			})
			return
		}

		if err := p.OnLinkCreate(sourceID, values); err != nil {
			render.Render(w, req, &errResponse{
				HTTPStatusCode: 422,
				ErrorType:      "LinkRejected",
				ErrorMessage:   err.Error(),
			})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.Delete("/links/{sourceID}", func(w http.ResponseWriter, req *http.Request) {
		p.OnLinkDelete(chi.URLParam(req, "sourceID"))
		w.WriteHeader(http.StatusNoContent)
	})

	return r
}

type errResponse struct {
	HTTPStatusCode int    `json:"-"`
	ErrorType      string `json:"errorType,omitempty"`
	ErrorMessage   string `json:"errorMessage"`
}

func (e *errResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}
