package main

import (
	"crs/src/checkin"
	"crs/src/ledger"
	"crs/src/lib/mailer"
	"crs/src/reservations"
	"crs/src/types"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// admissionHandlers is the door console: scan a QR token, admit exactly
// once, and confirm payment-proof reservations. Routes are gated on the
// admin/organizer roles by the caller.
func admissionHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/admission", func(ctx *gin.Context) {
			var body types.ScanRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				log.Printf("Error validating request: %s\n", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			scanner := checkin.Scanner{
				UserID: ctx.GetString("uid"),
				Role:   types.Role(ctx.GetString("role")),
			}
			result, err := checkinSvc.ResolveAndCheckIn(ctx.Request.Context(), body.Code, scanner)
			if err != nil {
				if errors.Is(err, checkin.ErrForbidden) {
					ctx.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
					return
				}
				if errors.Is(err, ledger.ErrStoreUnavailable) {
					ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
					return
				}
				log.Printf("Error on admission: %s\n", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if result.Outcome == checkin.OutcomeNotFound {
				ctx.JSON(http.StatusNotFound, gin.H{"data": result})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": result})
		}).
		GET("/admissions/:token", func(ctx *gin.Context) {
			var params types.TokenURIParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			scanner := checkin.Scanner{
				UserID: ctx.GetString("uid"),
				Role:   types.Role(ctx.GetString("role")),
			}
			result, err := checkinSvc.Lookup(ctx.Request.Context(), params.Token, scanner)
			if err != nil {
				if errors.Is(err, checkin.ErrForbidden) {
					ctx.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
					return
				}
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if result.Outcome == checkin.OutcomeNotFound {
				ctx.JSON(http.StatusNotFound, gin.H{"data": result})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": result})
		}).
		PUT("/reservations/:id/confirm", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			r, err := reservationSvc.ConfirmPayment(ctx.Request.Context(), params.ID)
			if err != nil {
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
			go mailer.ReservationConfirmed(r)
			ctx.JSON(http.StatusOK, gin.H{"data": r})
		})
	return g
}
