package middlewares

import (
	"crs/src/db"
	"crs/src/models"
	"crs/src/types"
	"errors"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"gorm.io/gorm"
)

// AuthMiddleware verifies the bearer token issued by the external identity
// collaborator and resolves the caller's role from user_roles. Role claims
// inside the token are ignored. The signing secret is read per request so
// a .env-provided JWT_SECRET loaded after process start is honored.
func AuthMiddleware(ctx *gin.Context) {
	bearerToken := ctx.Request.Header.Get("Authorization")
	if !strings.HasPrefix(bearerToken, "Bearer") {
		ctx.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	reqToken := strings.Split(bearerToken, " ")[1]
	if reqToken == "" {
		ctx.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	claims := &types.Claims{}
	tkn, err := jwt.ParseWithClaims(reqToken, claims, func(t *jwt.Token) (any, error) {
		return []byte(os.Getenv("JWT_SECRET")), nil
	})
	if err != nil {
		log.Printf("token error: %s\n", err.Error())
		if errors.Is(err, jwt.ErrSignatureInvalid) || errors.Is(err, jwt.ErrTokenMalformed) {
			ctx.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		ctx.AbortWithError(http.StatusUnauthorized, err)
		return
	}
	if !tkn.Valid {
		ctx.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	uid := claims.Subject
	if uid == "" {
		ctx.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	role := types.ROLE_USER
	dbi := db.GetDb()
	var ur models.UserRole
	if err := dbi.
		Where(&models.UserRole{UserID: uid}).
		First(&ur).
		Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("Error resolving role for %s: %s\n", uid, err.Error())
			ctx.AbortWithStatus(http.StatusInternalServerError)
			return
		}
	} else {
		role = ur.Role
	}

	ctx.Set("uid", uid)
	ctx.Set("email", claims.Email)
	ctx.Set("name", claims.Name)
	ctx.Set("role", string(role))
}
