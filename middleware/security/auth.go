package security

import (
	"net/http"
	"strings"

	"PPRelay/tools/errs"

	"github.com/gin-gonic/gin"
)

// ----- context keys -----
const (
	PPCtxAuthKey     = "authorization" // raw token
	PPCtxIdentityKey = "identity"      // verified subject
)

// VerifyFunc maps a token to the identity it was issued to.
type VerifyFunc func(token string) (string, error)

type Options struct {
	Verify VerifyFunc

	HeaderToken               string // default "authorization"
	EnableAuthorizationBearer bool   // default true
	QueryToken                string // default "token"; browsers cannot set headers on a websocket
	// MatchParam, when set, requires the verified identity to equal this path
	// parameter (":username" on the websocket routes).
	MatchParam string
}

func DefaultOptions(verify VerifyFunc) *Options {
	return &Options{
		Verify:                    verify,
		HeaderToken:               PPCtxAuthKey,
		EnableAuthorizationBearer: true,
		QueryToken:                "token",
	}
}

// TokenFromRequest looks in the custom header, then Authorization: Bearer, then
// the query string.
func TokenFromRequest(r *http.Request, opts *Options) string {
	if opts.HeaderToken != "" {
		if token := strings.TrimSpace(r.Header.Get(opts.HeaderToken)); token != "" {
			// "authorization" is also the standard header; strip a bearer prefix if present
			if !hasBearer(token) {
				return token
			}
		}
	}
	if opts.EnableAuthorizationBearer {
		if authz := strings.TrimSpace(r.Header.Get("Authorization")); hasBearer(authz) {
			return strings.TrimSpace(authz[len("bearer "):])
		}
	}
	if opts.QueryToken != "" {
		return strings.TrimSpace(r.URL.Query().Get(opts.QueryToken))
	}
	return ""
}

func hasBearer(v string) bool {
	return len(v) > len("bearer ") && strings.EqualFold(v[:len("bearer ")], "bearer ")
}

// Middleware rejects requests without a valid token and stores the identity
// under PPCtxIdentityKey.
func Middleware(opts *Options) gin.HandlerFunc {
	if opts == nil || opts.Verify == nil {
		panic("security: Middleware needs a Verify func")
	}
	return func(c *gin.Context) {
		token := TokenFromRequest(c.Request, opts)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrUnauthorized.WithDetail("missing token"))
			return
		}
		identity, err := opts.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.AsCode(err))
			return
		}
		if opts.MatchParam != "" && c.Param(opts.MatchParam) != identity {
			c.AbortWithStatusJSON(http.StatusForbidden, errs.ErrUnauthorized.WithDetail("token subject does not match "+opts.MatchParam))
			return
		}
		c.Set(PPCtxAuthKey, token)
		c.Set(PPCtxIdentityKey, identity)
		c.Next()
	}
}

// Identity returns the verified identity, or "" on unauthenticated routes.
func Identity(c *gin.Context) string {
	return c.GetString(PPCtxIdentityKey)
}
