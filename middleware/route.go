package middleware

import (
	midsec "PPRelay/middleware/security"

	"github.com/gin-gonic/gin"
)

// RouteOpt selects per-route middleware.
type RouteOpt struct {
	IsAuth bool
	Auth   *midsec.Options // required when IsAuth
}

func (o RouteOpt) chain(handler gin.HandlerFunc) []gin.HandlerFunc {
	if o.IsAuth && o.Auth != nil {
		return []gin.HandlerFunc{midsec.Middleware(o.Auth), handler}
	}
	return []gin.HandlerFunc{handler}
}

// POST registers handler, behind the auth middleware when opt.IsAuth.
func POST(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	r.POST(path, opt.chain(handler)...)
}

// GET registers handler, behind the auth middleware when opt.IsAuth.
func GET(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	r.GET(path, opt.chain(handler)...)
}
