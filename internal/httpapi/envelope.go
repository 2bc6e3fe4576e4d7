package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"task-server/internal/apperr"
	"task-server/internal/domain"
)

// All JSON responses share the envelope {status, data?, message?}. Token
// issuance adds a top-level token field; lists add a results count.

func respondData(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"status": "success", "data": data})
}

func respondList(c *gin.Context, data []gin.H) {
	c.JSON(http.StatusOK, gin.H{"status": "success", "results": len(data), "data": data})
}

func respondToken(c *gin.Context, status int, tok string, data any) {
	c.JSON(status, gin.H{"status": "success", "token": tok, "data": data})
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status := apperr.Status(err)
	if status >= http.StatusInternalServerError {
		h.logger.Errorf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.AbortWithStatusJSON(status, gin.H{"status": "error", "message": apperr.Public(err)})
}

// userToJSON serializes a user. Password hash, session tokens, and avatar
// data never appear here regardless of the requested projection.
func userToJSON(user *domain.User, fields []string) gin.H {
	out := gin.H{
		"id":        user.ID,
		"name":      user.Name,
		"email":     user.Email,
		"age":       user.Age,
		"role":      string(user.Role),
		"createdAt": user.CreatedAt.Format(time.RFC3339),
		"updatedAt": user.UpdatedAt.Format(time.RFC3339),
	}
	return project(out, fields)
}

func taskToJSON(task *domain.Task, fields []string) gin.H {
	out := gin.H{
		"id":          task.ID,
		"description": task.Description,
		"completed":   task.Completed,
		"ownerId":     task.OwnerID,
		"createdAt":   task.CreatedAt.Format(time.RFC3339),
		"updatedAt":   task.UpdatedAt.Format(time.RFC3339),
	}
	return project(out, fields)
}

// project keeps only the requested fields; the id survives every
// projection. An empty field list means no projection.
func project(out gin.H, fields []string) gin.H {
	if len(fields) == 0 {
		return out
	}
	kept := gin.H{}
	if id, ok := out["id"]; ok {
		kept["id"] = id
	}
	for _, field := range fields {
		if value, ok := out[field]; ok {
			kept[field] = value
		}
	}
	return kept
}
