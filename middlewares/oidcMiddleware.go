package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/giginltd/gigin_backend/config"
	"github.com/giginltd/gigin_backend/utils"
	"google.golang.org/api/idtoken"
)

// TaskAuthMiddleware verifies the OIDC token Cloud Tasks attaches to its
// callbacks. Only tokens minted for this service's invoker account get
// through, so nobody on the internet can trigger a fee clearance early.
//
// Outside production an X-Local-Task header bypasses verification for local
// testing with curl.
func TaskAuthMiddleware(audience string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !config.IsProduction() && strings.EqualFold(strings.TrimSpace(c.GetHeader("X-Local-Task")), "true") {
			c.Next()
			return
		}

		auth := c.Request.Header.Get("Authorization")
		bearer := "Bearer "
		if !strings.HasPrefix(auth, bearer) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing task token"})
			c.Abort()
			return
		}
		token := auth[len(bearer):]

		payload, err := idtoken.Validate(c.Request.Context(), token, audience)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid task token"})
			c.Abort()
			return
		}

		email, _ := payload.Claims["email"].(string)
		expected := config.GetTasksServiceAccountEmail()
		if expected != "" && !strings.EqualFold(email, expected) {
			c.JSON(http.StatusForbidden, gin.H{"error": "unexpected task caller"})
			c.Abort()
			return
		}

		ctx := utils.SetTaskCallerInContext(c.Request.Context(), email)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
