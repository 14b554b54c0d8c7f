package apperr

import (
	"log"

	"github.com/gin-gonic/gin"
)

// JSON writes the error contract: a human-readable message plus a stable
// machine-readable kind.
func JSON(c *gin.Context, err error) {
	e := From(err)
	if e.Kind == KindStorage && e.Err != nil {
		log.Printf("storage error on %s %s: %v", c.Request.Method, c.Request.URL.Path, e.Err)
	}
	c.JSON(Status(e.Kind), gin.H{"error": e.Message, "kind": string(e.Kind)})
}

// Abort is JSON plus aborting the handler chain; for middleware.
func Abort(c *gin.Context, err error) {
	e := From(err)
	c.AbortWithStatusJSON(Status(e.Kind), gin.H{"error": e.Message, "kind": string(e.Kind)})
}
