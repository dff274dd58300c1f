package service

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ethereum-optimism/infra/op-testengine/reporting"
)

type errorResponse struct {
	StatusCode int    `json:"statusCode"`
	Details    string `json:"details"`
}

func (s *Service) writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		s.log.Error("failed to write response", "err", err)
	}
}

func (s *Service) writeError(w http.ResponseWriter, status int, details string) {
	body, err := json.Marshal(errorResponse{StatusCode: status, Details: details})
	if err != nil {
		s.log.Error("failed to marshal error response", "err", err)
		body = []byte(`{"details":"internal server error"}`)
		status = http.StatusInternalServerError
	}
	s.writeJSON(w, status, body)
}

func (s *Service) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Write([]byte("OK")) //nolint:errcheck
}

func (s *Service) snapshot(w http.ResponseWriter) *reporting.Tree {
	var tree *reporting.Tree
	if s.results != nil {
		tree = s.results()
	}
	if tree == nil {
		s.writeError(w, http.StatusNotFound, "no session has run yet")
	}
	return tree
}

func (s *Service) handleResults(w http.ResponseWriter, _ *http.Request) {
	tree := s.snapshot(w)
	if tree == nil {
		return
	}
	out, err := reporting.NewTreeJSONFormatter().Format(tree)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, []byte(out))
}

func (s *Service) handleElement(w http.ResponseWriter, r *http.Request) {
	tree := s.snapshot(w)
	if tree == nil {
		return
	}
	path := mux.Vars(r)["path"]
	node := tree.Find(path)
	if node == nil {
		s.writeError(w, http.StatusNotFound, "unknown element "+path)
		return
	}
	body, err := json.MarshalIndent(reporting.NodeJSON(node), "", "  ")
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, body)
}
