package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/cespare/xxhash/v2"
	"github.com/erauner12/shopsync/internal/auth"
	"github.com/erauner12/shopsync/internal/optimistic"
	"github.com/erauner12/shopsync/internal/service/collectionsvc"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

type moveReq struct {
	ItemIDs []string `json:"itemIds"`
	Target  string   `json:"target"`
}

type clearResp struct {
	Deleted int `json:"deleted"`
}

// writeServiceError maps collectionsvc errors onto HTTP statuses
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var ve collectionsvc.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, r, http.StatusBadRequest, ve.Code)
	case errors.Is(err, collectionsvc.ErrUnknownCollection):
		writeError(w, r, http.StatusNotFound, "unknown_collection")
	case errors.Is(err, collectionsvc.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not_found")
	case errors.Is(err, collectionsvc.ErrDuplicate):
		writeError(w, r, http.StatusConflict, "already_exists")
	default:
		log.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("collection operation failed")
		writeError(w, r, http.StatusInternalServerError, "internal")
	}
}

// decodeBody reads a bounded JSON body into v
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_body")
		return false
	}
	return true
}

// ListItems handles GET /v1/{collection}/items?cursor=&limit=
func (s *Server) ListItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := parseLimit(q.Get("limit"), defaultPageSize, maxPageSize)

	page, err := s.Svc.List(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "collection"), q.Get("cursor"), limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeCacheableJSON(w, r, page)
}

// writeCacheableJSON writes v with a content hash ETag and answers
// 304 Not Modified when the client already holds that version
func writeCacheableJSON(w http.ResponseWriter, r *http.Request, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal")
		return
	}

	etag := fmt.Sprintf(`"%016x"`, xxhash.Sum64(body))
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "private, no-cache")
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(append(body, '\n'))
}

// AddItem handles POST /v1/{collection}/items
func (s *Server) AddItem(w http.ResponseWriter, r *http.Request) {
	var p optimistic.Payload
	if !decodeBody(w, r, &p) {
		return
	}

	item, err := s.Svc.Add(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "collection"), p)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// UpdateItem handles PATCH /v1/{collection}/items/{id}
func (s *Server) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var patch optimistic.Patch
	if !decodeBody(w, r, &patch) {
		return
	}

	item, err := s.Svc.Update(r.Context(), auth.UserID(r.Context()),
		chi.URLParam(r, "collection"), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// RemoveItem handles DELETE /v1/{collection}/items/{id}
func (s *Server) RemoveItem(w http.ResponseWriter, r *http.Request) {
	err := s.Svc.Remove(r.Context(), auth.UserID(r.Context()),
		chi.URLParam(r, "collection"), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveItemByProduct handles DELETE /v1/{collection}/items?productId=
func (s *Server) RemoveItemByProduct(w http.ResponseWriter, r *http.Request) {
	err := s.Svc.RemoveByProduct(r.Context(), auth.UserID(r.Context()),
		chi.URLParam(r, "collection"), r.URL.Query().Get("productId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearCollection handles DELETE /v1/{collection}
func (s *Server) ClearCollection(w http.ResponseWriter, r *http.Request) {
	n, err := s.Svc.Clear(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "collection"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, clearResp{Deleted: n})
}

// MoveItems handles POST /v1/{collection}/move
// Items that cannot be moved are listed in the result; the call still succeeds.
func (s *Server) MoveItems(w http.ResponseWriter, r *http.Request) {
	var req moveReq
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := s.Svc.Move(r.Context(), auth.UserID(r.Context()),
		chi.URLParam(r, "collection"), req.Target, req.ItemIDs)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
