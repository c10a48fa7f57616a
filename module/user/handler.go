package user

import (
	"errors"
	"net/http"

	"PPRelay/logger"
	usermodel "PPRelay/module/user/model"
	"PPRelay/module/user/service"
	"PPRelay/tools/errs"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Presence is the part of the relay the user endpoints need.
type Presence interface {
	Online() []string
	Touch(user string)
}

type Handler struct {
	svc      *service.Service
	presence Presence
}

func NewHandler(svc *service.Service, p Presence) *Handler {
	return &Handler{svc: svc, presence: p}
}

// HandlerLogin answers POST /login.
func (h *Handler) HandlerLogin(c *gin.Context) {
	var in usermodel.LoginRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, usermodel.LoginReply{Message: "username and password are required"})
		return
	}
	sess, err := h.svc.Login(service.LoginParams{
		UserID:    in.Username,
		Password:  in.Password,
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		if errors.Is(err, errs.ErrInvalidCredentials) {
			logger.Info("login rejected", zap.String("user", in.Username), zap.String("ip", c.ClientIP()))
			c.JSON(http.StatusUnauthorized, usermodel.LoginReply{Message: errs.ErrInvalidCredentials.Msg})
			return
		}
		logger.Error("login failed", zap.String("user", in.Username), zap.Error(err))
		c.JSON(http.StatusInternalServerError, usermodel.LoginReply{Message: errs.ErrInternal.Msg})
		return
	}

	// placeholder entry until the websocket arrives
	h.presence.Touch(sess.UserID)
	logger.Info("login", zap.String("user", sess.UserID), zap.String("session", sess.SessionID))
	c.JSON(http.StatusOK, usermodel.LoginReply{
		Message:  "Login successful",
		Username: sess.UserID,
		Token:    sess.AccessToken,
		ExpireAt: sess.ExpireAt.UnixMilli(),
	})
}

// HandlerUsers answers GET /users.
func (h *Handler) HandlerUsers(c *gin.Context) {
	c.JSON(http.StatusOK, usermodel.UsersReply{OnlineUsers: h.presence.Online()})
}
