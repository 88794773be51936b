package main

import (
	"crs/src/db"
	"crs/src/ledger"
	"crs/src/lib/mailer"
	"crs/src/models"
	"crs/src/reservations"
	"crs/src/types"
	"crs/src/utils"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// reservationHandlers is the guest-facing booking surface.
func reservationHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/reservations", func(ctx *gin.Context) {
			var body types.CreateReservationRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			uid := ctx.GetString("uid")
			r, err := reservationSvc.Create(ctx.Request.Context(), reservations.CreateInput{
				EventID:    body.EventID,
				ScheduleID: body.ScheduleID,
				UserID:     uid,
				FullName:   body.FullName,
				Email:      body.Email,
				Party:      types.PartyType(body.PartyType),
			})
			if err != nil {
				status := http.StatusBadRequest
				switch {
				case errors.Is(err, ledger.ErrCapacityExceeded):
					// sold out is a normal outcome, not a server fault
					status = http.StatusConflict
				case errors.Is(err, reservations.ErrAlreadyReserved):
					status = http.StatusConflict
				case errors.Is(err, reservations.ErrEventNotFound), errors.Is(err, reservations.ErrScheduleNotFound):
					status = http.StatusNotFound
				case errors.Is(err, ledger.ErrStoreUnavailable):
					status = http.StatusServiceUnavailable
				}
				log.Printf("Error creating reservation: %s\n", err.Error())
				ctx.JSON(status, gin.H{"error": err.Error()})
				return
			}
			go mailer.ReservationCreated(r)
			ctx.JSON(http.StatusCreated, gin.H{"data": r})
		}).
		GET("/reservations", func(ctx *gin.Context) {
			uid := ctx.GetString("uid")
			var data []models.Reservation
			dbi := db.GetDb()
			if err := dbi.
				Where(&models.Reservation{UserID: uid}).
				Preload("Event").
				Preload("Schedule").
				Order("reserved_at desc").
				Find(&data).
				Error; err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": data, "count": len(data)})
		}).
		GET("/reservations/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			r, err := ownedReservation(ctx, params.ID)
			if err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "reservation not found"})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": r})
		}).
		PUT("/reservations/:id/cancel", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if _, err := ownedReservation(ctx, params.ID); err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "reservation not found"})
				return
			}
			if err := reservationSvc.Cancel(ctx.Request.Context(), params.ID); err != nil {
				status := http.StatusBadRequest
				switch {
				case errors.Is(err, reservations.ErrNotFound):
					status = http.StatusNotFound
				case errors.Is(err, reservations.ErrInvalidTransition):
					status = http.StatusConflict
				case errors.Is(err, ledger.ErrStoreUnavailable):
					status = http.StatusServiceUnavailable
				}
				ctx.JSON(status, gin.H{"error": err.Error()})
				return
			}
			ctx.Status(http.StatusNoContent)
		}).
		GET("/reservations/:id/code", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			r, err := ownedReservation(ctx, params.ID)
			if err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "reservation not found"})
				return
			}
			if r.Status == types.RESERVATION_CANCELLED {
				ctx.JSON(http.StatusConflict, gin.H{"error": "reservation is cancelled"})
				return
			}
			filepath, err := utils.RenderQRCode(ctx.Request.Context(), r)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.FileAttachment(filepath, "reservation.jpeg")
		})
	return g
}

// ownedReservation loads a reservation the caller may act on: their own,
// or any when they hold the admin role.
func ownedReservation(ctx *gin.Context, id uint) (*models.Reservation, error) {
	uid := ctx.GetString("uid")
	role := types.Role(ctx.GetString("role"))
	dbi := db.GetDb()
	var r models.Reservation
	q := dbi.Where(&models.Reservation{ID: id})
	if role != types.ROLE_ADMIN {
		q = q.Where(&models.Reservation{UserID: uid})
	}
	if err := q.Preload("Event").Preload("Schedule").First(&r).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("Error retrieving Reservation [%d]: %s\n", id, err.Error())
		}
		return nil, err
	}
	return &r, nil
}
