package model

import "time"

// Status
const (
	StatusOnline  = "online"
	StatusExpired = "expired"
)

// User is one account the relay accepts. Only the bcrypt hash is kept.
type User struct {
	UserID       string `json:"user_id"`
	PasswordHash []byte `json:"-"`
}

// LoginRequest is the /login body.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginReply is the /login body: {message, username} plus the session token.
type LoginReply struct {
	Message  string `json:"message"`
	Username string `json:"username,omitempty"`
	Token    string `json:"token,omitempty"`
	ExpireAt int64  `json:"expire_at,omitempty"` // unix ms
}

// UsersReply is the /users body.
type UsersReply struct {
	OnlineUsers []string `json:"online_users"`
}

// UserSession is what a successful login produces.
type UserSession struct {
	SessionID   string    `json:"session_id"`
	UserID      string    `json:"user_id"`
	IP          string    `json:"ip"`
	UserAgent   string    `json:"user_agent,omitempty"`
	AccessToken string    `json:"access_token"`
	LoginTime   time.Time `json:"login_time"`
	ExpireAt    time.Time `json:"expire_at"`
	Status      string    `json:"status"`
}
