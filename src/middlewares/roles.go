package middlewares

import (
	"crs/src/types"
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequireRoles gates a route group on the roles resolved by
// AuthMiddleware. Used for the scanner console and organizer surfaces.
func RequireRoles(roles ...types.Role) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		current := types.Role(ctx.GetString("role"))
		for _, r := range roles {
			if current == r {
				return
			}
		}
		ctx.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
	}
}
