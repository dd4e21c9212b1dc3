package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/microblog-api/internal/middleware"
	"github.com/microblog-api/internal/models"
	"github.com/microblog-api/internal/service"
	"github.com/microblog-api/pkg/response"
)

// maxAvatarUpload caps how much of an upload is read before the service
// rejects it as too large.
const maxAvatarUpload = 1<<20 + 1

// UserHandler handles user API requests
type UserHandler struct {
	userService *service.UserService
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// SessionResponse is returned by registration and login
type SessionResponse struct {
	User  models.UserView `json:"user"`
	Token string          `json:"token"`
}

// Register handles user registration
// POST /users
func (h *UserHandler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, msgRegisterFields)
		return
	}

	user, token, err := h.userService.Register(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Created(c, SessionResponse{User: user.PublicView(), Token: token})
}

// Login handles user login
// POST /users/login
func (h *UserHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, msgUnableToLogin)
		return
	}

	user, token, err := h.userService.Login(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, SessionResponse{User: user.PublicView(), Token: token})
}

// Logout revokes the token used for this request
// POST /users/logout
func (h *UserHandler) Logout(c *gin.Context) {
	if err := h.userService.RevokeToken(c.Request.Context(), middleware.GetUser(c), middleware.GetToken(c)); err != nil {
		_ = c.Error(err)
		response.InternalError(c, msgInternal)
		return
	}
	response.Message(c, "Logged out")
}

// LogoutAll revokes every token of the user
// POST /users/logoutAll
func (h *UserHandler) LogoutAll(c *gin.Context) {
	if err := h.userService.RevokeAllTokens(c.Request.Context(), middleware.GetUser(c)); err != nil {
		_ = c.Error(err)
		response.InternalError(c, msgInternal)
		return
	}
	response.Message(c, "Logged out of all sessions")
}

// Me returns the authenticated user
// GET /users/me
func (h *UserHandler) Me(c *gin.Context) {
	response.Success(c, middleware.GetUser(c).PublicView())
}

// UpdateMe patches the authenticated user's profile
// PATCH /users/me
func (h *UserHandler) UpdateMe(c *gin.Context) {
	var patch map[string]any
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	user, err := h.userService.UpdateProfile(c.Request.Context(), middleware.GetUser(c), patch)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, user.PublicView())
}

// DeleteMe deletes the authenticated user and their tweets
// DELETE /users/me
func (h *UserHandler) DeleteMe(c *gin.Context) {
	user, err := h.userService.DeleteUser(c.Request.Context(), middleware.GetUser(c))
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, user.PublicView())
}

// UploadAvatar stores the multipart field "avatar"
// POST /users/me/avatar
func (h *UserHandler) UploadAvatar(c *gin.Context) {
	header, err := c.FormFile("avatar")
	if err != nil {
		response.BadRequest(c, "Please upload an image")
		return
	}

	file, err := header.Open()
	if err != nil {
		response.BadRequest(c, "Please upload an image")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxAvatarUpload))
	if err != nil {
		response.BadRequest(c, "Please upload an image")
		return
	}

	if err := h.userService.SetAvatar(c.Request.Context(), middleware.GetUser(c), header.Filename, data); err != nil {
		writeError(c, err)
		return
	}
	response.Message(c, "Avatar uploaded")
}

// DeleteAvatar removes the authenticated user's avatar
// DELETE /users/me/avatar
func (h *UserHandler) DeleteAvatar(c *gin.Context) {
	if err := h.userService.DeleteAvatar(c.Request.Context(), middleware.GetUser(c)); err != nil {
		writeError(c, err)
		return
	}
	response.Message(c, "Avatar deleted")
}

// GetAvatar serves a user's avatar image
// GET /users/:id/avatar
func (h *UserHandler) GetAvatar(c *gin.Context) {
	data, contentType, err := h.userService.GetAvatar(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, contentType, data)
}

// RegisterRoutes registers user routes
func (h *UserHandler) RegisterRoutes(rg *gin.RouterGroup, authMiddleware gin.HandlerFunc) {
	users := rg.Group("/users")
	{
		users.POST("", h.Register)
		users.POST("/login", h.Login)
		users.GET("/:id/avatar", h.GetAvatar)
	}

	me := users.Group("", authMiddleware)
	{
		me.POST("/logout", h.Logout)
		me.POST("/logoutAll", h.LogoutAll)
		me.GET("/me", h.Me)
		me.PATCH("/me", h.UpdateMe)
		me.DELETE("/me", h.DeleteMe)
		me.POST("/me/avatar", h.UploadAvatar)
		me.DELETE("/me/avatar", h.DeleteAvatar)
	}
}
