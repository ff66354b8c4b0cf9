package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/chatflow/chatflow/metadata"
	"github.com/chatflow/chatflow/model"
	"github.com/gorilla/mux"
)

func (s *Server) HandleSaveFlow(w http.ResponseWriter, r *http.Request) {
	var def model.FlowDefinition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	warnings, err := s.definitions.Save(r.Context(), &def)
	if err != nil {
		var verr metadata.ValidationError
		if errors.As(err, &verr) {
			respondWithError(w, http.StatusBadRequest, verr.Error())
			return
		}
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{
		"id":       def.Id,
		"warnings": warnings,
	})
}

func (s *Server) HandleGetFlow(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	def, err := s.definitions.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, model.ErrFlowNotFound) {
			respondWithError(w, http.StatusNotFound, err.Error())
			return
		}
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, def)
}

func (s *Server) HandleListFlows(w http.ResponseWriter, r *http.Request) {
	defs, err := s.definitions.List(r.Context())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	module := r.URL.Query().Get("module")
	if module != "" {
		filtered := make([]*model.FlowDefinition, 0, len(defs))
		for _, def := range defs {
			if string(def.Module) == module {
				filtered = append(filtered, def)
			}
		}
		defs = filtered
	}
	respondWithJSON(w, http.StatusOK, defs)
}

func (s *Server) HandleDeleteFlow(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.definitions.Delete(r.Context(), id); err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, "deleted")
}
