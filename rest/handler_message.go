package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/chatflow/chatflow/model"
	"github.com/gorilla/mux"
)

// HandleMessage is the transport collaborator's HTTP boundary: one inbound
// message in, the shaped engine result out.
func (s *Server) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var msg model.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if msg.Type == "" {
		msg.Type = model.MESSAGE_TYPE_TEXT
	}
	result, err := s.gateway.Handle(r.Context(), &msg)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (s *Server) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	run, err := s.runs.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, model.ErrRunNotFound) {
			respondWithError(w, http.StatusNotFound, err.Error())
			return
		}
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, run)
}
