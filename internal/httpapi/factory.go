package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"task-server/internal/apperr"
	"task-server/internal/query"
	"task-server/internal/repository"
)

// resource parameterizes the generic CRUD handlers over a collection. The
// build/apply/remove hooks hold all per-type behavior, invoked explicitly at
// the point of mutation; the handlers themselves stay identical across
// resource types.
type resource[T any] struct {
	collection repository.Collection[T]
	whitelist  []string

	// build creates a record from a payload merged with implicit fields
	// taken from the request context (e.g. ownership).
	build  func(c *gin.Context, payload map[string]any) (*T, error)
	apply  func(record *T, updates map[string]any) error
	render func(record *T, fields []string) gin.H

	// populate optionally adds query-time joins to a single rendered record.
	populate func(ctx context.Context, record *T, out gin.H) error
	// remove replaces the plain delete when removal cascades.
	remove func(ctx context.Context, record *T) error
}

// scopeFunc yields the mandatory filter a caller can never override, such as
// ownership of the requested records.
type scopeFunc func(c *gin.Context) repository.Filter

func createOne[T any](h *Handler, r resource[T]) gin.HandlerFunc {
	return func(c *gin.Context) {
		payload, err := bindPayload(c)
		if err != nil {
			h.respondError(c, err)
			return
		}

		record, err := r.build(c, payload)
		if err != nil {
			h.respondError(c, err)
			return
		}
		if err := r.collection.Create(c.Request.Context(), record); err != nil {
			h.respondError(c, err)
			return
		}

		respondData(c, http.StatusCreated, r.render(record, nil))
	}
}

func getOne[T any](h *Handler, r resource[T], scope scopeFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		record, err := r.collection.FindOne(c.Request.Context(), idFilter(c, scope))
		if err != nil {
			h.respondError(c, err)
			return
		}

		out := r.render(record, nil)
		if r.populate != nil {
			if err := r.populate(c.Request.Context(), record, out); err != nil {
				h.respondError(c, err)
				return
			}
		}
		respondData(c, http.StatusOK, out)
	}
}

func getAll[T any](h *Handler, r resource[T], scope scopeFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		plan, err := query.Parse(c.Request.URL.Query())
		if err != nil {
			h.respondError(c, err)
			return
		}

		records, err := r.collection.Find(c.Request.Context(), scope(c), plan)
		if err != nil {
			h.respondError(c, err)
			return
		}

		out := make([]gin.H, len(records))
		for i := range records {
			out[i] = r.render(&records[i], plan.Fields)
		}
		respondList(c, out)
	}
}

func updateOne[T any](h *Handler, r resource[T], scope scopeFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		payload, err := bindPayload(c)
		if err != nil {
			h.respondError(c, err)
			return
		}
		// reject before any fetch so a forbidden payload mutates nothing
		if err := checkWhitelist(payload, r.whitelist); err != nil {
			h.respondError(c, err)
			return
		}

		record, err := r.collection.FindOne(c.Request.Context(), idFilter(c, scope))
		if err != nil {
			h.respondError(c, err)
			return
		}
		if err := r.apply(record, payload); err != nil {
			h.respondError(c, err)
			return
		}
		if err := r.collection.Save(c.Request.Context(), record); err != nil {
			h.respondError(c, err)
			return
		}

		respondData(c, http.StatusOK, r.render(record, nil))
	}
}

func deleteOne[T any](h *Handler, r resource[T], scope scopeFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := idFilter(c, scope)
		record, err := r.collection.FindOne(c.Request.Context(), filter)
		if err != nil {
			h.respondError(c, err)
			return
		}

		if r.remove != nil {
			err = r.remove(c.Request.Context(), record)
		} else {
			err = r.collection.DeleteOne(c.Request.Context(), filter)
		}
		if err != nil {
			h.respondError(c, err)
			return
		}

		c.Status(http.StatusNoContent)
	}
}

func bindPayload(c *gin.Context) (map[string]any, error) {
	payload := map[string]any{}
	if err := c.ShouldBindJSON(&payload); err != nil {
		return nil, apperr.Validation("invalid request body")
	}
	return payload, nil
}

func checkWhitelist(payload map[string]any, whitelist []string) error {
	for key := range payload {
		allowed := false
		for _, field := range whitelist {
			if key == field {
				allowed = true
				break
			}
		}
		if !allowed {
			return apperr.Validation("invalid updates")
		}
	}
	return nil
}

func idFilter(c *gin.Context, scope scopeFunc) repository.Filter {
	filter := repository.Filter{}
	for field, value := range scope(c) {
		filter[field] = value
	}
	filter["id"] = c.Param("id")
	return filter
}
