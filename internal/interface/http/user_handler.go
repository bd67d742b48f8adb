package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	userapp "github.com/orientati/user-service/internal/application"
	"github.com/orientati/user-service/internal/domain/entity"
	"github.com/orientati/user-service/pkg/response"
	"github.com/orientati/user-service/pkg/validation"
)

type UserHandler struct {
	Svc    *userapp.Service
	Logger *logrus.Logger
}

func NewUserHandler(svc *userapp.Service, logger *logrus.Logger) *UserHandler {
	return &UserHandler{Svc: svc, Logger: logger}
}

// Email, name and surname are validated by the service so its checks run in
// a fixed order; binding only enforces the fields the service never looks at.
type createUserRequest struct {
	Email          string `json:"email"`
	Name           string `json:"name"`
	Surname        string `json:"surname"`
	HashedPassword string `json:"hashed_password" binding:"required"`
}

type updateUserRequest struct {
	Email   *string `json:"email"`
	Name    *string `json:"name"`
	Surname *string `json:"surname"`
}

type changePasswordRequest struct {
	UserID      string `json:"user_id" binding:"required,uuid"`
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

type requestVerificationRequest struct {
	UserID string `json:"user_id" binding:"required,uuid"`
}

type verifyEmailRequest struct {
	Token string `json:"token" binding:"required"`
}

// userOut is the public projection; credential and token fields stay inside.
type userOut struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"email_verified"`
	Name          string    `json:"name"`
	Surname       string    `json:"surname"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toUserOut(u *entity.User) userOut {
	return userOut{
		ID:            u.ID,
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
		Name:          u.Name,
		Surname:       u.Surname,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

func (h *UserHandler) List(c *gin.Context) {
	limit, lerr := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, oerr := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if lerr != nil || oerr != nil || limit < 0 || offset < 0 {
		response.WriteError(c, http.StatusBadRequest, "Bad Request", gin.H{"message": "limit and offset must be non-negative integers"})
		return
	}

	users, err := h.Svc.ListUsers(c.Request.Context(), limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	out := make([]userOut, 0, len(users))
	for _, u := range users {
		out = append(out, toUserOut(u))
	}
	c.JSON(http.StatusOK, out)
}

func (h *UserHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	u, err := h.Svc.GetUser(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if u == nil {
		response.WriteError(c, http.StatusNotFound, "Not Found", gin.H{"message": "User not found"})
		return
	}
	c.JSON(http.StatusOK, toUserOut(u))
}

func (h *UserHandler) Create(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.WriteError(c, http.StatusBadRequest, "Bad Request", validation.Details(err))
		return
	}

	u, err := h.Svc.CreateUser(c.Request.Context(), userapp.CreateUserInput{
		Email:          req.Email,
		Name:           req.Name,
		Surname:        req.Surname,
		HashedPassword: req.HashedPassword,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toUserOut(u))
}

func (h *UserHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.WriteError(c, http.StatusBadRequest, "Bad Request", validation.Details(err))
		return
	}

	u, err := h.Svc.UpdateUser(c.Request.Context(), id, userapp.UpdateUserInput{
		Email:   req.Email,
		Name:    req.Name,
		Surname: req.Surname,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toUserOut(u))
}

func (h *UserHandler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.WriteError(c, http.StatusBadRequest, "Bad Request", validation.Details(err))
		return
	}

	ok, err := h.Svc.ChangePassword(c.Request.Context(), req.UserID, req.OldPassword, req.NewPassword)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !ok {
		response.WriteError(c, http.StatusBadRequest, "Bad Request", gin.H{"message": "Password change failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	deleted, err := h.Svc.DeleteUser(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !deleted {
		response.WriteError(c, http.StatusNotFound, "Not Found", gin.H{"message": "User not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *UserHandler) RequestEmailVerification(c *gin.Context) {
	var req requestVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.WriteError(c, http.StatusBadRequest, "Bad Request", validation.Details(err))
		return
	}
	if err := h.Svc.RequestEmailVerification(c.Request.Context(), req.UserID); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *UserHandler) VerifyEmail(c *gin.Context) {
	var req verifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.WriteError(c, http.StatusBadRequest, "Bad Request", validation.Details(err))
		return
	}
	if err := h.Svc.VerifyEmail(c.Request.Context(), req.Token); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// pathID validates the :id path segment; it writes the 400 itself so
// handlers can just bail out on !ok.
func pathID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		response.WriteError(c, http.StatusBadRequest, "Bad Request", gin.H{"message": "id must be a valid UUID"})
		return "", false
	}
	return id, true
}

// respondError maps service errors onto the envelope: validation failures
// to 400, missing users to 404, infrastructure faults to 500.
func (h *UserHandler) respondError(c *gin.Context, err error) {
	var verr *userapp.ValidationError
	switch {
	case errors.As(err, &verr):
		response.WriteError(c, http.StatusBadRequest, "Bad Request", gin.H{"message": verr.Message, "type": verr.Kind})
	case errors.Is(err, userapp.ErrNotFound):
		response.WriteError(c, http.StatusNotFound, "Not Found", gin.H{"message": "User not found"})
	default:
		if h.Logger != nil {
			h.Logger.WithError(err).WithField("path", c.Request.URL.Path).Error("request failed")
		}
		response.WriteError(c, http.StatusInternalServerError, "Internal Server Error", gin.H{"message": err.Error()})
	}
}
