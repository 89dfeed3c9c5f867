// Copyright (c) 2026 Torii. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package data

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/torii/internal/auth"
	"github.com/taibuivan/torii/internal/platform/middleware"
	requestutil "github.com/taibuivan/torii/internal/platform/request"
	"github.com/taibuivan/torii/internal/platform/respond"
	"github.com/taibuivan/torii/internal/platform/validate"
	"github.com/taibuivan/torii/internal/principal"
	"github.com/taibuivan/torii/pkg/pagination"
)

// Handler implements the HTTP layer for the gated data API.
type Handler struct {
	dataService *Service
}

// NewHandler constructs a new data [Handler].
func NewHandler(service *Service) *Handler {
	return &Handler{dataService: service}
}

// Routes returns a [chi.Router] with the four generic data endpoints.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/{model}", handler.create)
	router.Get("/{model}", handler.read)
	router.Patch("/{model}", handler.update)
	router.Delete("/{model}", handler.remove)

	return router
}

// input assembles the common per-request material for the service layer.
func (handler *Handler) input(request *http.Request) Input {
	model := requestutil.Param(request, "model")
	return Input{
		Model:      model,
		Path:       "/data/" + model,
		Principal:  principalFrom(request),
		ClientAddr: middleware.RealIP(request),
	}
}

// principalFrom builds the request principal from verified token claims,
// falling back to the distinguished visitor for anonymous requests.
func principalFrom(request *http.Request) *principal.Principal {
	claims := requestutil.Claims(request)
	if claims == nil {
		visitor := principal.Visitor()
		visitor.Actions = auth.VisitorGrants
		return visitor
	}
	return &principal.Principal{
		ID:       claims.UserID,
		Username: claims.Username,
		Type:     claims.Role,
		Actions:  claims.Actions,
	}
}

// parseFilter decodes the optional JSON "filter" query parameter.
func parseFilter(request *http.Request) (map[string]any, error) {
	raw := request.URL.Query().Get("filter")
	if raw == "" {
		return map[string]any{}, nil
	}

	var filter map[string]any
	if err := json.Unmarshal([]byte(raw), &filter); err != nil {
		return nil, validate.ErrInvalidJSON
	}
	return filter, nil
}

/*
POST /api/v1/data/{model}.

Description: Gates and stores a new record for the model.

Request:
  - body: JSON document

Response:
  - 201: Record: The stored record
  - 401/403: Gate rejections (visitor, permission, restricted data)
  - 429: Rate limit exhausted
*/
func (handler *Handler) create(writer http.ResponseWriter, request *http.Request) {
	var document map[string]any
	if err := requestutil.DecodeJSON(request, &document); err != nil {
		respond.Error(writer, request, err)
		return
	}

	input := handler.input(request)
	input.Document = document

	record, err := handler.dataService.Create(request.Context(), input)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, record)
}

/*
GET /api/v1/data/{model}.

Description: Gates and executes a filtered read.

Request:
  - query: filter (optional JSON-encoded object)
  - query: page, limit (optional pagination over the matched set)

Response:
  - 200: []Record: One page of matching records, with pagination meta
  - 401/403: Gate rejections
  - 429: Rate limit exhausted
*/
func (handler *Handler) read(writer http.ResponseWriter, request *http.Request) {
	filter, err := parseFilter(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	input := handler.input(request)
	input.Filter = filter

	records, err := handler.dataService.Read(request.Context(), input)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	// Pagination happens over the gated result set, after the descriptor's
	// own limit/skip options have been applied by the store.
	params := pagination.FromRequest(request)
	total := len(records)
	page := records[min(params.Offset(), total):min(params.Offset()+params.Limit, total):total]
	if page == nil {
		page = []*Record{}
	}

	respond.Paginated(writer, page, pagination.NewMeta(params.Page, params.Limit, total))
}

// updateRequest is the expected JSON payload for PATCH operations.
type updateRequest struct {
	Filter map[string]any `json:"filter"`
	Update map[string]any `json:"update"`
}

/*
PATCH /api/v1/data/{model}.

Description: Gates and applies a partial update to matching records.

Request:
  - body: updateRequest (filter + update payload)

Response:
  - 200: {updated}: Number of updated records
  - 401/403: Gate rejections
  - 429: Rate limit exhausted
*/
func (handler *Handler) update(writer http.ResponseWriter, request *http.Request) {
	var payload updateRequest
	if err := requestutil.DecodeJSON(request, &payload); err != nil {
		respond.Error(writer, request, err)
		return
	}

	input := handler.input(request)
	input.Filter = payload.Filter
	input.Document = payload.Update

	updated, err := handler.dataService.Update(request.Context(), input)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]int64{"updated": updated})
}

/*
DELETE /api/v1/data/{model}.

Description: Gates and removes matching records.

Request:
  - query: filter (optional JSON-encoded object)

Response:
  - 200: {deleted}: Number of deleted records
  - 401/403: Gate rejections
  - 429: Rate limit exhausted
*/
func (handler *Handler) remove(writer http.ResponseWriter, request *http.Request) {
	filter, err := parseFilter(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	input := handler.input(request)
	input.Filter = filter

	deleted, err := handler.dataService.Delete(request.Context(), input)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]int64{"deleted": deleted})
}
