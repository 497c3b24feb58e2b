package transport

import (
	"net/http"
	"strconv"

	"marketplace/internal/domain"
	"marketplace/internal/middleware"
	"marketplace/internal/repository"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// uuidParam parses a UUID route parameter, answering 400 when it is malformed
func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// caller returns the authenticated identity, answering 401 when there is none
func caller(w http.ResponseWriter, r *http.Request) (domain.Identity, bool) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return domain.Identity{}, false
	}
	return identity, true
}

// itemFilter reads category_id, page and page_size from the query string.
// Bad numbers fall back to defaults; a bad category id is rejected.
func itemFilter(w http.ResponseWriter, r *http.Request) (repository.ItemFilter, bool) {
	q := r.URL.Query()
	filter := repository.ItemFilter{}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.PageSize, _ = strconv.Atoi(q.Get("page_size"))

	if raw := q.Get("category_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid category_id")
			return filter, false
		}
		filter.CategoryID = &id
	}
	return filter, true
}
