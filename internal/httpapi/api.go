// Package httpapi wires HTTP routes to domain services: the access guard and
// role gate, the auth endpoints, and generic CRUD handlers over users and
// tasks.
package httpapi

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"task-server/internal/apperr"
	"task-server/internal/domain"
	"task-server/internal/repository"
	"task-server/internal/service"
)

const maxAvatarSize = 5 << 20 // 5 MB

// Handler wires HTTP routes to domain services.
type Handler struct {
	auth     service.AuthService
	users    service.UserService
	userRepo repository.UserRepository
	taskRepo repository.TaskRepository
	logger   *logrus.Logger
}

func NewHandler(
	auth service.AuthService,
	users service.UserService,
	userRepo repository.UserRepository,
	taskRepo repository.TaskRepository,
	logger *logrus.Logger,
) *Handler {
	return &Handler{
		auth:     auth,
		users:    users,
		userRepo: userRepo,
		taskRepo: taskRepo,
		logger:   logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "success"})
	})

	userRes := resource[domain.User]{
		collection: h.userRepo,
		whitelist:  service.UserUpdateWhitelist,
		build:      h.buildUser,
		apply:      h.users.ApplyUpdates,
		render:     userToJSON,
		populate: func(ctx context.Context, user *domain.User, out gin.H) error {
			tasks, err := h.users.TasksFor(ctx, user.ID)
			if err != nil {
				return err
			}
			out["tasks"] = renderTasks(tasks, nil)
			return nil
		},
		remove: h.users.DeleteUser,
	}

	taskRes := resource[domain.Task]{
		collection: h.taskRepo,
		whitelist:  service.TaskUpdateWhitelist,
		build: func(c *gin.Context, payload map[string]any) (*domain.Task, error) {
			return service.BuildTask(currentUser(c).ID, payload)
		},
		apply: func(task *domain.Task, updates map[string]any) error {
			return service.ApplyTaskUpdates(task, updates)
		},
		render: taskToJSON,
	}

	users := router.Group("/users")
	{
		users.POST("/signup", h.signup)
		users.POST("/login", h.login)

		authed := users.Group("", h.RequireAuth())
		{
			authed.POST("/logout", h.logout)
			authed.POST("/logoutAll", h.logoutAll)

			authed.GET("/me", h.getMe)
			authed.PATCH("/me", h.updateMe)
			authed.DELETE("/me", h.deleteMe)
			authed.GET("/me/avatar", h.getAvatar(h.meUser))
			authed.POST("/me/avatar", h.uploadAvatar(h.meUser))
			authed.DELETE("/me/avatar", h.deleteAvatar(h.meUser))

			admin := authed.Group("", h.RestrictTo(domain.RoleAdmin))
			{
				admin.GET("", getAll(h, userRes, adminScope))
				admin.POST("", createOne(h, userRes))
				admin.GET("/:id", getOne(h, userRes, adminScope))
				admin.PATCH("/:id", updateOne(h, userRes, adminScope))
				admin.DELETE("/:id", deleteOne(h, userRes, adminScope))
				admin.GET("/:id/avatar", h.getAvatar(h.paramUser))
				admin.POST("/:id/avatar", h.uploadAvatar(h.paramUser))
				admin.DELETE("/:id/avatar", h.deleteAvatar(h.paramUser))
			}
		}
	}

	tasks := router.Group("/tasks", h.RequireAuth())
	{
		tasks.GET("", getAll(h, taskRes, ownerScope))
		tasks.POST("", createOne(h, taskRes))
		tasks.GET("/:id", getOne(h, taskRes, ownerScope))
		tasks.PATCH("/:id", updateOne(h, taskRes, ownerScope))
		tasks.DELETE("/:id", deleteOne(h, taskRes, ownerScope))
	}
}

// ownerScope restricts every task operation to the caller's own records.
func ownerScope(c *gin.Context) repository.Filter {
	return repository.Filter{"ownerId": currentUser(c).ID}
}

// adminScope is empty: admin routes see every record.
func adminScope(*gin.Context) repository.Filter {
	return repository.Filter{}
}

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Age      *int   `json:"age"`
}

func (h *Handler) signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperr.Validation("invalid request body"))
		return
	}

	user, tok, err := h.auth.Signup(c.Request.Context(), service.SignupInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Age:      req.Age,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	respondToken(c, http.StatusCreated, tok, userToJSON(user, nil))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperr.Validation("invalid request body"))
		return
	}

	user, tok, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	respondToken(c, http.StatusOK, tok, userToJSON(user, nil))
}

func (h *Handler) logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context(), currentUser(c), sessionToken(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *Handler) logoutAll(c *gin.Context) {
	if err := h.auth.LogoutAll(c.Request.Context(), currentUser(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *Handler) getMe(c *gin.Context) {
	user := currentUser(c)

	out := userToJSON(user, nil)
	tasks, err := h.users.TasksFor(c.Request.Context(), user.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	out["tasks"] = renderTasks(tasks, nil)

	respondData(c, http.StatusOK, out)
}

func (h *Handler) updateMe(c *gin.Context) {
	payload, err := bindPayload(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := checkWhitelist(payload, service.UserUpdateWhitelist); err != nil {
		h.respondError(c, err)
		return
	}

	user := currentUser(c)
	if err := h.users.ApplyUpdates(user, payload); err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.userRepo.Save(c.Request.Context(), user); err != nil {
		h.respondError(c, err)
		return
	}

	respondData(c, http.StatusOK, userToJSON(user, nil))
}

func (h *Handler) deleteMe(c *gin.Context) {
	if err := h.users.DeleteUser(c.Request.Context(), currentUser(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// buildUser backs admin user creation: the same profile validation as
// signup, plus an optional role, without token issuance.
func (h *Handler) buildUser(c *gin.Context, payload map[string]any) (*domain.User, error) {
	input := service.SignupInput{}
	if name, ok := payload["name"].(string); ok {
		input.Name = name
	}
	if email, ok := payload["email"].(string); ok {
		input.Email = email
	}
	if password, ok := payload["password"].(string); ok {
		input.Password = password
	}
	if age, ok := payload["age"].(float64); ok {
		n := int(age)
		input.Age = &n
	}

	user, err := h.users.BuildUser(input)
	if err != nil {
		return nil, err
	}

	if raw, present := payload["role"]; present {
		role, ok := raw.(string)
		if !ok || !domain.ValidRole(domain.Role(role)) {
			return nil, apperr.Validation("role is either: user or admin")
		}
		user.Role = domain.Role(role)
	}
	return user, nil
}

// userResolver picks the user an avatar operation targets.
type userResolver func(c *gin.Context) (*domain.User, error)

func (h *Handler) meUser(c *gin.Context) (*domain.User, error) {
	return currentUser(c), nil
}

func (h *Handler) paramUser(c *gin.Context) (*domain.User, error) {
	return h.userRepo.FindOne(c.Request.Context(), repository.Filter{"id": c.Param("id")})
}

func (h *Handler) getAvatar(resolve userResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := resolve(c)
		if err != nil {
			h.respondError(c, err)
			return
		}

		obj, err := h.users.GetAvatar(c.Request.Context(), user)
		if err != nil {
			h.respondError(c, err)
			return
		}

		contentType := obj.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		c.Data(http.StatusOK, contentType, obj.Data)
	}
}

func (h *Handler) uploadAvatar(resolve userResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := resolve(c)
		if err != nil {
			h.respondError(c, err)
			return
		}

		file, err := c.FormFile("avatar")
		if err != nil {
			h.respondError(c, apperr.Validation("please provide an avatar file"))
			return
		}
		if file.Size > maxAvatarSize {
			h.respondError(c, apperr.Validation("avatar must be smaller than 5 MB"))
			return
		}
		contentType := file.Header.Get("Content-Type")
		if !strings.HasPrefix(contentType, "image/") {
			h.respondError(c, apperr.Validation("please upload only images"))
			return
		}

		src, err := file.Open()
		if err != nil {
			h.respondError(c, apperr.Validation("please provide an avatar file"))
			return
		}
		defer src.Close()

		data, err := io.ReadAll(io.LimitReader(src, maxAvatarSize))
		if err != nil {
			h.respondError(c, apperr.Storage("read avatar upload", err))
			return
		}

		if err := h.users.SaveAvatar(c.Request.Context(), user, data, contentType); err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success"})
	}
}

func (h *Handler) deleteAvatar(resolve userResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := resolve(c)
		if err != nil {
			h.respondError(c, err)
			return
		}

		if err := h.users.DeleteAvatar(c.Request.Context(), user); err != nil {
			h.respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func renderTasks(tasks []domain.Task, fields []string) []gin.H {
	out := make([]gin.H, len(tasks))
	for i := range tasks {
		out[i] = taskToJSON(&tasks[i], fields)
	}
	return out
}
