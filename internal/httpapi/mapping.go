package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"mapsync/internal/catalog"
	"mapsync/internal/dataset"
	"mapsync/internal/mapping"
	"mapsync/internal/match"
	"mapsync/internal/materialize"
	"mapsync/internal/metrics"
	"mapsync/internal/suggest"
	"mapsync/internal/validate"
)

type automapRequest struct {
	DatasetID string `json:"datasetId" validate:"required"`
}

type automapResponse struct {
	GroupID        string                            `json:"groupId"`
	ObjectMappings map[string][]mapping.FieldMapping `json:"objectMappings"`
	MatchedFields  int                               `json:"matchedFields"`
	TablesTouched  int                               `json:"tablesTouched"`
}

func (s *Server) handleAutomap(w http.ResponseWriter, r *http.Request) {
	var req automapRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	ds, err := s.dataset(req.DatasetID)
	if err != nil {
		writeError(w, err)
		return
	}

	start := s.now()
	res, err := match.AutoMapGroup(s.cat, mux.Vars(r)["id"], ds.Headers)
	metrics.RecordStep("automap", err, s.now().Sub(start))
	if err != nil {
		writeError(w, err)
		return
	}

	out := automapResponse{
		GroupID:        mux.Vars(r)["id"],
		ObjectMappings: make(map[string][]mapping.FieldMapping, len(res.Sets)),
		MatchedFields:  res.MatchedFields,
		TablesTouched:  res.TablesTouched,
	}
	for id, set := range res.Sets {
		out.ObjectMappings[id] = set.Mappings
	}
	writeJSON(w, http.StatusOK, out)
}

type suggestRequest struct {
	DatasetID string                 `json:"datasetId" validate:"required"`
	Mappings  []mapping.FieldMapping `json:"mappings"`
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	var req suggestRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	sc, ds, set, err := s.resolveSet(mux.Vars(r)["id"], req.DatasetID, req.Mappings)
	if err != nil {
		writeError(w, err)
		return
	}

	start := s.now()
	suggestions, _ := s.suggester.Suggest(r.Context(), ds.Headers, sc)
	metrics.RecordStep("suggest", nil, s.now().Sub(start))

	res := suggest.Merge(set, suggestions, sc, s.minConf)
	if res.Pending == nil {
		res.Pending = []suggest.Suggestion{}
	}
	writeJSON(w, http.StatusOK, res)
}

type previewRequest struct {
	DatasetID string                 `json:"datasetId" validate:"required"`
	Mappings  []mapping.FieldMapping `json:"mappings"`
	Limit     int                    `json:"limit" validate:"gte=0,lte=1000"`
}

type previewResponse struct {
	SchemaID    string                `json:"schemaId"`
	Rows        []materialize.Row     `json:"rows"`
	TotalRows   int                   `json:"totalRows"`
	Annotations []validate.Annotation `json:"annotations"`
	Issues      []validate.Issue      `json:"issues"`
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	sc, ds, set, err := s.resolveSet(mux.Vars(r)["id"], req.DatasetID, req.Mappings)
	if err != nil {
		writeError(w, err)
		return
	}

	opt := materialize.PreviewOptions()
	if req.Limit > 0 {
		opt.Limit = req.Limit
	}
	writeJSON(w, http.StatusOK, previewResponse{
		SchemaID:    sc.ID,
		Rows:        materialize.Rows(sc, set, ds.Rows, opt),
		TotalRows:   len(ds.Rows),
		Annotations: validate.Annotate(sc, set, ds),
		Issues:      append([]validate.Issue{}, validate.CheckSet(sc, set, ds)...),
	})
}

// resolveSet looks up the schema and dataset of a request and checks the
// posted mappings. Structural errors reject the request; warnings such as
// headers missing from the dataset do not.
func (s *Server) resolveSet(schemaID, datasetID string, mappings []mapping.FieldMapping) (catalog.Schema, *dataset.Dataset, mapping.Set, error) {
	sc, err := s.cat.Schema(schemaID)
	if err != nil {
		return catalog.Schema{}, nil, mapping.Set{}, err
	}
	ds, err := s.dataset(datasetID)
	if err != nil {
		return catalog.Schema{}, nil, mapping.Set{}, err
	}
	set := mapping.Set{SchemaID: sc.ID, Mappings: mappings}
	if issues := validate.CheckSet(sc, set, ds); validate.HasErrors(issues) {
		msgs := make([]string, 0, len(issues))
		for _, iss := range issues {
			if iss.Severity == validate.SeverityError {
				msgs = append(msgs, iss.String())
			}
		}
		return catalog.Schema{}, nil, mapping.Set{}, badRequest(errors.New(strings.Join(msgs, "; ")))
	}
	return sc, ds, set, nil
}
