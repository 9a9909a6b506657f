package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"

	"user-settings-api/internal/usecase/user"
	pkgerrors "user-settings-api/pkg/errors"
	"user-settings-api/pkg/logger"
)

// Pagination headers set on list responses.
const (
	HeaderTotalCount = "X-Total-Count"
	HeaderPage       = "X-Page"
	HeaderLimit      = "X-Limit"
	HeaderTotalPages = "X-Total-Pages"
)

// UserHandler handles HTTP requests for user operations
type UserHandler struct {
	uc  user.Usecase
	log *zap.Logger
}

// NewUserHandler creates a new UserHandler instance
func NewUserHandler(uc user.Usecase, log *zap.Logger) *UserHandler {
	return &UserHandler{
		uc:  uc,
		log: log,
	}
}

// SettingRequest is one name/value pair in a create body.
type SettingRequest struct {
	Name  string `json:"name" binding:"required,max=255"`
	Value string `json:"value"`
}

// SettingList accepts either a single settings object or an array of them.
type SettingList []SettingRequest

// UnmarshalJSON implements json.Unmarshaler.
func (l *SettingList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if data[0] == '{' {
		var one SettingRequest
		if err := json.Unmarshal(data, &one); err != nil {
			return err
		}
		*l = SettingList{one}
		return nil
	}
	var many []SettingRequest
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*l = many
	return nil
}

// CreateUserRequest represents the HTTP request body for creating a user
type CreateUserRequest struct {
	Name         string      `json:"name" binding:"required,max=255"`
	Email        string      `json:"email" binding:"required,max=255"`
	ActiveStatus string      `json:"active_status" binding:"required"`
	Settings     SettingList `json:"settings" binding:"omitempty,dive"`
}

// UpdateUserRequest represents the HTTP request body for updating a user
type UpdateUserRequest struct {
	Name         string `json:"name" binding:"required,max=255"`
	Email        string `json:"email" binding:"required,max=255"`
	ActiveStatus string `json:"active_status" binding:"required"`
}

// SettingResponse represents a persisted setting
type SettingResponse struct {
	ID     int64  `json:"id"`
	UserID int64  `json:"user_id"`
	Name   string `json:"name"`
	Value  string `json:"value"`
}

// UserResponse represents the HTTP response for user data
type UserResponse struct {
	ID           int64             `json:"id"`
	Name         string            `json:"name"`
	Email        string            `json:"email"`
	ActiveStatus string            `json:"active_status"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	Settings     []SettingResponse `json:"settings"`
}

// DeleteUserResponse is returned after a successful delete
type DeleteUserResponse struct {
	ID int64 `json:"id"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ListUsers handles GET /users/:limit/:page
func (h *UserHandler) ListUsers(c *gin.Context) {
	limit, ok := h.pathInt(c, "limit")
	if !ok {
		return
	}
	page, ok := h.pathInt(c, "page")
	if !ok {
		return
	}
	if q, found := c.GetQuery("page"); found {
		if page, ok = h.parseInt(c, "page", q); !ok {
			return
		}
	}

	resp, err := h.uc.ListUsers(c.Request.Context(), user.ListUsersRequest{Page: page, Limit: limit})
	if err != nil {
		h.handleError(c, "ListUsers", err)
		return
	}

	users := make([]UserResponse, len(resp.Users))
	for i := range resp.Users {
		users[i] = toResponse(&resp.Users[i])
	}

	if p := resp.Pagination; p != nil {
		c.Header(HeaderTotalCount, strconv.FormatInt(p.Total, 10))
		c.Header(HeaderPage, strconv.FormatInt(p.Page, 10))
		c.Header(HeaderLimit, strconv.FormatInt(p.Limit, 10))
		c.Header(HeaderTotalPages, strconv.FormatInt(p.TotalPages, 10))
	}

	c.JSON(http.StatusOK, users)
}

// GetUser handles GET /user/:id
func (h *UserHandler) GetUser(c *gin.Context) {
	id, ok := h.pathInt(c, "id")
	if !ok {
		return
	}

	resp, err := h.uc.GetUser(c.Request.Context(), user.GetUserRequest{ID: id})
	if err != nil {
		h.handleError(c, "GetUser", err)
		return
	}

	c.JSON(http.StatusOK, toResponse(resp))
}

// CreateUser handles POST /user
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if !h.bind(c, &req) {
		return
	}

	in := user.CreateUserRequest{
		Name:         req.Name,
		Email:        req.Email,
		ActiveStatus: req.ActiveStatus,
		Settings:     make([]user.SettingInput, len(req.Settings)),
	}
	for i, s := range req.Settings {
		in.Settings[i] = user.SettingInput{Name: s.Name, Value: s.Value}
	}

	resp, err := h.uc.CreateUser(c.Request.Context(), in)
	if err != nil {
		h.handleError(c, "CreateUser", err)
		return
	}

	c.JSON(http.StatusOK, toResponse(resp))
}

// UpdateUser handles PUT /user/:id
func (h *UserHandler) UpdateUser(c *gin.Context) {
	id, ok := h.pathInt(c, "id")
	if !ok {
		return
	}

	var req UpdateUserRequest
	if !h.bind(c, &req) {
		return
	}

	resp, err := h.uc.UpdateUser(c.Request.Context(), user.UpdateUserRequest{
		ID:           id,
		Name:         req.Name,
		Email:        req.Email,
		ActiveStatus: req.ActiveStatus,
	})
	if err != nil {
		h.handleError(c, "UpdateUser", err)
		return
	}

	c.JSON(http.StatusOK, toResponse(resp))
}

// DeleteUser handles DELETE /user/:id
func (h *UserHandler) DeleteUser(c *gin.Context) {
	id, ok := h.pathInt(c, "id")
	if !ok {
		return
	}

	resp, err := h.uc.DeleteUser(c.Request.Context(), user.DeleteUserRequest{ID: id})
	if err != nil {
		h.handleError(c, "DeleteUser", err)
		return
	}

	c.JSON(http.StatusOK, DeleteUserResponse{ID: resp.ID})
}

// pathInt parses an integer path parameter, writing a 400 on failure.
func (h *UserHandler) pathInt(c *gin.Context, name string) (int64, bool) {
	return h.parseInt(c, name, c.Param(name))
}

func (h *UserHandler) parseInt(c *gin.Context, name, raw string) (int64, bool) {
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		logger.WithContext(c.Request.Context(), h.log).Warn("invalid integer parameter",
			zap.String("param", name), zap.String("value", raw))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: name + " must be an integer",
		})
		return 0, false
	}
	return v, true
}

func (h *UserHandler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		logger.WithContext(c.Request.Context(), h.log).Warn("invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return false
	}
	return true
}

// handleError converts usecase errors to HTTP responses via their gRPC code.
func (h *UserHandler) handleError(c *gin.Context, op string, err error) {
	code := pkgerrors.Code(err)
	httpStatus := runtime.HTTPStatusFromCode(code)
	log := logger.WithContext(c.Request.Context(), h.log)

	switch code {
	case codes.NotFound:
		log.Info(op+" not found", zap.Error(err))
		c.JSON(httpStatus, ErrorResponse{Error: "not_found", Message: err.Error()})
	case codes.InvalidArgument:
		log.Info(op+" rejected", zap.Error(err))
		c.JSON(httpStatus, ErrorResponse{Error: "validation_error", Message: err.Error()})
	default:
		log.Error(op+" failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
	}
}

func toResponse(u *user.User) UserResponse {
	settings := make([]SettingResponse, len(u.Settings))
	for i, s := range u.Settings {
		settings[i] = SettingResponse{ID: s.ID, UserID: s.UserID, Name: s.Name, Value: s.Value}
	}
	return UserResponse{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		ActiveStatus: u.ActiveStatus,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
		Settings:     settings,
	}
}
