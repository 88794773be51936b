package main

import (
	"crs/src/db"
	"crs/src/models"
	"crs/src/types"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// roleHandlers manages user_roles. Admin only.
func roleHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		PUT("/users/:id/role", func(ctx *gin.Context) {
			var params types.UserURIParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var body types.UpdateUserRoleRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			dbi := db.GetDb()
			err := dbi.Transaction(func(tx *gorm.DB) error {
				return tx.
					Clauses(clause.OnConflict{
						Columns:   []clause.Column{{Name: "user_id"}},
						DoUpdates: clause.AssignmentColumns([]string{"role", "updated_at"}),
					}).
					Create(&models.UserRole{UserID: params.UserID, Role: types.Role(body.Role)}).
					Error
			})
			if err != nil {
				log.Printf("Error updating role for %s: %s\n", params.UserID, err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.Status(http.StatusNoContent)
		}).
		GET("/users/:id/role", func(ctx *gin.Context) {
			var params types.UserURIParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var ur models.UserRole
			dbi := db.GetDb()
			if err := dbi.Where(&models.UserRole{UserID: params.UserID}).First(&ur).Error; err != nil {
				ctx.JSON(http.StatusOK, gin.H{"data": gin.H{"user_id": params.UserID, "role": types.ROLE_USER}})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": ur})
		})
	return g
}
