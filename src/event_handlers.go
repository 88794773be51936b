package main

import (
	"crs/src/db"
	"crs/src/models"
	"crs/src/types"
	"crs/src/utils"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// eventHandlers is the organizer/admin surface for events and schedules.
func eventHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/events", func(ctx *gin.Context) {
			organizerId := ctx.GetString("uid")
			role := types.Role(ctx.GetString("role"))
			var events []models.Event
			dbi := db.GetDb()
			q := dbi.Model(&models.Event{}).Order("starts_at desc")
			if role != types.ROLE_ADMIN {
				q = q.Where(&models.Event{OrganizerID: organizerId})
			}
			if err := q.Preload("Schedules").Find(&events).Error; err != nil {
				log.Printf("Error retrieving Events: %s\n", err.Error())
				ctx.Status(http.StatusBadRequest)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": events, "count": len(events)})
		}).
		POST("/events", func(ctx *gin.Context) {
			var body types.CreateEventRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			organizerId := ctx.GetString("uid")
			id, err := utils.CreateNewEvent(&body, organizerId, capLedger)
			if err != nil {
				log.Printf("error creating event: %s", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"id": id})
		}).
		DELETE("/events/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			dbi := db.GetDb()
			err := dbi.Transaction(func(tx *gorm.DB) error {
				units, err := utils.LiveUnits(tx, params.ID)
				if err != nil {
					return err
				}
				if units > 0 {
					return errors.New("deleting an event with live reservations is not allowed")
				}
				return tx.Delete(&models.Event{ID: params.ID}).Error
			})
			if err != nil {
				ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			ctx.Status(http.StatusNoContent)
		}).
		POST("/events/:id/schedules", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var body types.CreateScheduleRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			id, err := utils.CreateNewSchedule(params.ID, &body, capLedger)
			if err != nil {
				log.Printf("error creating schedule: %s", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"id": id})
		}).
		GET("/events/:id/reservations", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			dbi := db.GetDb()
			// guest lists stay with the event's organizer
			eq := dbi.Where(&models.Event{ID: params.ID})
			if types.Role(ctx.GetString("role")) != types.ROLE_ADMIN {
				eq = eq.Where(&models.Event{OrganizerID: ctx.GetString("uid")})
			}
			var event models.Event
			if err := eq.First(&event).Error; err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
				return
			}
			var reservations []models.Reservation
			if err := dbi.
				Where(&models.Reservation{EventID: params.ID}).
				Preload("Schedule").
				Order("reserved_at desc").
				Find(&reservations).
				Error; err != nil {
				log.Printf("Error retrieving Reservations for Event [%d]: %s\n", params.ID, err.Error())
				ctx.Status(http.StatusBadRequest)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": reservations, "count": len(reservations)})
		})
	return g
}
