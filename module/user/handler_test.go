package user

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	usermodel "PPRelay/module/user/model"
	"PPRelay/module/user/service"
	jwtlib "PPRelay/tools/security"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakePresence struct {
	mu      sync.Mutex
	touched []string
	online  []string
}

func (p *fakePresence) Online() []string { return p.online }
func (p *fakePresence) Touch(u string) {
	p.mu.Lock()
	p.touched = append(p.touched, u)
	p.mu.Unlock()
}

func newRouter(t *testing.T, p *fakePresence) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	users, err := service.ParseUsers(service.DefaultUsers)
	require.NoError(t, err)
	creds, err := service.NewCredentialStore(users, bcrypt.MinCost)
	require.NoError(t, err)
	h := NewHandler(service.NewService(creds, jwtlib.DefaultOptions([]byte("s"))), p)

	r := gin.New()
	r.POST("/login", h.HandlerLogin)
	r.GET("/users", h.HandlerUsers)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLoginSuccess(t *testing.T) {
	req := require.New(t)
	p := &fakePresence{}
	r := newRouter(t, p)

	w := do(r, http.MethodPost, "/login", `{"username":"alice","password":"password123"}`)
	req.Equal(http.StatusOK, w.Code)
	var out usermodel.LoginReply
	req.NoError(json.Unmarshal(w.Body.Bytes(), &out))
	req.Equal("Login successful", out.Message)
	req.Equal("alice", out.Username)
	req.NotEmpty(out.Token)
	req.Equal([]string{"alice"}, p.touched)
}

func TestLoginInvalidCredentials(t *testing.T) {
	req := require.New(t)
	p := &fakePresence{}
	r := newRouter(t, p)

	w := do(r, http.MethodPost, "/login", `{"username":"alice","password":"nope"}`)
	req.Equal(http.StatusUnauthorized, w.Code)
	req.JSONEq(`{"message":"Invalid credentials"}`, w.Body.String())
	req.Empty(p.touched)

	w = do(r, http.MethodPost, "/login", `{"username":"alice"}`)
	req.Equal(http.StatusBadRequest, w.Code)
}

func TestUsersListsPresence(t *testing.T) {
	req := require.New(t)
	r := newRouter(t, &fakePresence{online: []string{"alice", "bob"}})
	w := do(r, http.MethodGet, "/users", "")
	req.Equal(http.StatusOK, w.Code)
	req.JSONEq(`{"online_users":["alice","bob"]}`, w.Body.String())

	r = newRouter(t, &fakePresence{online: []string{}})
	w = do(r, http.MethodGet, "/users", "")
	req.JSONEq(`{"online_users":[]}`, w.Body.String())
}
