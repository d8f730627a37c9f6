package generic

import (
	"github.com/gin-gonic/gin"
	"k8s.io/apimachinery/pkg/util/sets"
	"net/http"
)

type Server struct {
	Router  *gin.Engine
	Port    string
	Methods []string
}

// AllowMethods aborts requests whose method is not one of s.Methods with 405.
func (s *Server) AllowMethods() gin.HandlerFunc {
	allowed := sets.NewString(s.Methods...)
	return func(c *gin.Context) {
		if !allowed.Has(c.Request.Method) {
			c.AbortWithStatus(http.StatusMethodNotAllowed)
			return
		}
		c.Next()
	}
}
