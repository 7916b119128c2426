package server

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/medialoom/medialoom/internal/routing"
	"github.com/medialoom/medialoom/pkg/httperr"
	"github.com/medialoom/medialoom/pkg/uuidv7"
)

type mediaAPI struct {
	store MediaStore
}

func newMediaAPI(store MediaStore) *mediaAPI {
	return &mediaAPI{store: store}
}

func (a *mediaAPI) handleCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		items, err := a.store.List(r.Context())
		if err != nil {
			a.writeStoreError(w, r, "list", err)
			return
		}
		routing.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
	case http.MethodPost:
		var item MediaItem
		if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
			routing.WriteError(w, r, routing.RouteClassPublicAPI, http.StatusBadRequest, "bad_json", "invalid JSON body")
			return
		}
		created, err := a.store.Create(r.Context(), item)
		if err != nil {
			a.writeStoreError(w, r, "create", err)
			return
		}
		routing.WriteJSON(w, http.StatusCreated, created)
	default:
		routing.WriteError(w, r, routing.RouteClassPublicAPI, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func (a *mediaAPI) handleItem(w http.ResponseWriter, r *http.Request) {
	id := routing.PathParam(r, "id")
	if !uuidv7.IsValid(id) {
		routing.WriteError(w, r, routing.RouteClassPublicAPI, http.StatusBadRequest, "bad_id", "invalid media item id")
		return
	}

	switch r.Method {
	case http.MethodGet:
		item, err := a.store.Get(r.Context(), id)
		if err != nil {
			a.writeStoreError(w, r, "get", err)
			return
		}
		routing.WriteJSON(w, http.StatusOK, item)
	case http.MethodPut:
		var item MediaItem
		if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
			routing.WriteError(w, r, routing.RouteClassPublicAPI, http.StatusBadRequest, "bad_json", "invalid JSON body")
			return
		}
		item.ID = id
		updated, err := a.store.Update(r.Context(), item)
		if err != nil {
			a.writeStoreError(w, r, "update", err)
			return
		}
		routing.WriteJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		if err := a.store.Delete(r.Context(), id); err != nil {
			a.writeStoreError(w, r, "delete", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		routing.WriteError(w, r, routing.RouteClassPublicAPI, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func (a *mediaAPI) writeStoreError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case httperr.IsBadRequest(err):
		routing.WriteError(w, r, routing.RouteClassPublicAPI, http.StatusBadRequest, "invalid_media_item", err.Error())
	case httperr.IsNotFound(err):
		routing.WriteError(w, r, routing.RouteClassPublicAPI, http.StatusNotFound, "media_item_not_found", err.Error())
	default:
		log.Printf("media: %s failed: %v", op, err)
		routing.WriteError(w, r, routing.RouteClassPublicAPI, http.StatusInternalServerError, "media_store_failed", "media store failure")
	}
}
