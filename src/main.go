package main

import (
	"crs/src/boot"
	"crs/src/checkin"
	"crs/src/common"
	"crs/src/config"
	"crs/src/db"
	"crs/src/ledger"
	"crs/src/lib"
	"crs/src/middlewares"
	"crs/src/models"
	"crs/src/reservations"
	"crs/src/types"
	"crs/src/utils"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"path"
	"regexp"
	"strconv"
	"time"

	"github.com/covalenthq/lumberjack"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	_ "github.com/joho/godotenv/autoload"
)

const apiPrefix = "/api/v1"

var (
	capLedger      ledger.Ledger
	reservationSvc *reservations.Service
	checkinSvc     *checkin.Service
)

func initServices() {
	capLedger = ledger.NewGormLedger(db.GetDb())
	reservationSvc = reservations.NewService(capLedger)
	checkinSvc = checkin.NewService(reservationSvc)
}

var eventDateTimeValidatorFunc validator.Func = func(fl validator.FieldLevel) bool {
	date, ok := fl.Field().Interface().(string)
	datetime, err := time.Parse(config.TIME_PARSE_FORMAT, date)
	if err != nil {
		return false
	}
	if ok {
		today := time.Now()
		if today.After(datetime) {
			return false
		}
	}
	return true
}

var ltfield validator.Func = func(fl validator.FieldLevel) bool {
	date, ok := fl.Field().Interface().(string)
	datetime, err := time.Parse(config.TIME_PARSE_FORMAT, date)
	if err != nil {
		return false
	}
	field := fl.Parent().FieldByName(fl.Param())
	fieldValue := field.Interface().(string)
	fielddatetime, err := time.Parse(config.TIME_PARSE_FORMAT, fieldValue)
	if err != nil {
		return false
	}
	if ok {
		if datetime.After(fielddatetime) {
			return false
		}
	}
	return true
}

func registerValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("bookabledate", eventDateTimeValidatorFunc)
		v.RegisterValidation("ltdate", ltfield)
	}
}

func setupRouter() *gin.Engine {
	router := gin.Default()
	router.Use(middlewares.SecureHeaders)
	router.GET("/", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, "ok")
	})
	return router
}

func maintenanceModeMiddleware(g *gin.Engine) *gin.Engine {
	g.Use(func(ctx *gin.Context) {
		mm := os.Getenv("MAINTENANCE_MODE")
		atoi, err := strconv.ParseBool(mm)
		if err == nil && atoi {
			err := errors.New("server is under maintenance")
			log.Println(err.Error())
			ctx.AbortWithStatusJSON(http.StatusServiceUnavailable, err.Error())
			return
		}
	})
	return g
}

func apiv1Group(g *gin.Engine) *gin.RouterGroup {
	apiv1 := g.Group(apiPrefix)
	return apiv1
}

// publicRoutes is the unauthenticated browse surface: open public events
// with remaining capacity, matching what the booking calendar shows.
func publicRoutes(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	apiv1.
		GET("/events", func(ctx *gin.Context) {
			var events []models.Event
			dbi := db.GetDb()
			if err := dbi.
				Where(&models.Event{Public: true, Status: types.EVENT_OPEN}).
				Where("starts_at > ?", time.Now()).
				Preload("Schedules").
				Order("starts_at asc").
				Find(&events).
				Error; err != nil {
				log.Printf("Error retrieving Events: %s\n", err.Error())
				ctx.Status(http.StatusBadRequest)
				return
			}
			for i := range events {
				stats, err := utils.GetEventStats(ctx.Request.Context(), &events[i], capLedger)
				if err != nil {
					log.Printf("Error reading stats for Event [%d]: %s\n", events[i].ID, err.Error())
					continue
				}
				events[i].Stats = stats
			}
			ctx.JSON(http.StatusOK, gin.H{"data": events, "count": len(events)})
		}).
		GET("/events/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var event models.Event
			dbi := db.GetDb()
			if err := dbi.
				Where(&models.Event{ID: params.ID, Public: true}).
				Preload("Schedules").
				First(&event).
				Error; err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
				return
			}
			stats, err := utils.GetEventStats(ctx.Request.Context(), &event, capLedger)
			if err == nil {
				event.Stats = stats
			}
			ctx.JSON(http.StatusOK, gin.H{"data": event})
		})
	return apiv1
}

func initLogger() {
	cwd, _ := os.Getwd()
	serverLogs := path.Join(cwd, "logs", "server.log")
	apiLogs := path.Join(cwd, "logs", "api.log")
	gin.ForceConsoleColor()

	f, _ := os.Create(apiLogs)
	gin.DefaultWriter = io.MultiWriter(f, os.Stdout)
	log.SetOutput(&lumberjack.Logger{
		Filename:   serverLogs,
		MaxSize:    500,
		MaxBackups: 3,
		MaxAge:     30,
		Compress:   true,
	})
}

func main() {
	apiEnv := os.Getenv("API_ENV")
	if apiEnv == "local" {
		cwd, _ := os.Getwd()
		if err := godotenv.Load(path.Join(cwd, ".env")); err != nil {
			panic(err)
		}
	}
	initLogger()

	boot.InitDb()
	initServices()

	if _, err := lib.CreateCronJob(func() {
		common.SweepExpiredPending(capLedger)
	}, config.ExpirySweepInterval); err != nil {
		log.Printf("Error scheduling expiry sweep: %s\n", err.Error())
	}
	if sched, err := lib.GetScheduler(); err == nil {
		sched.Start()
	}

	router := setupRouter()

	appHost := os.Getenv("APP_HOST")
	if !utils.IsProd() {
		router.Use(cors.Default())
	} else {
		cc := cors.DefaultConfig()
		cc.AllowMethods = append(cc.AllowMethods, "GET", "POST", "PATCH", "PUT", "DELETE", "HEAD")
		cc.AllowHeaders = append(cc.AllowHeaders, "Origin", "Authorization")
		cc.AllowOriginFunc = func(origin string) bool {
			match, _ := regexp.MatchString(appHost, origin)
			if match {
				return true
			}
			match, _ = regexp.MatchString("app:mobile", origin)
			return match
		}
		cc.AllowCredentials = true
		cc.AllowAllOrigins = false
		router.Use(cors.New(cc))
	}

	registerValidators()

	router = maintenanceModeMiddleware(router)

	publicRoutes(router)

	authorized := router.Group(apiPrefix)
	authorized.Use(middlewares.AuthMiddleware)
	{
		authorized.GET("/me", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{
				"id":    ctx.GetString("uid"),
				"email": ctx.GetString("email"),
				"name":  ctx.GetString("name"),
				"role":  ctx.GetString("role"),
			})
		})
		reservationHandlers(authorized)
	}

	console := router.Group(apiPrefix + "/console")
	console.Use(middlewares.AuthMiddleware, middlewares.RequireRoles(types.ROLE_ADMIN, types.ROLE_ORGANIZER))
	{
		eventHandlers(console)
		admissionHandlers(console)
	}

	admin := router.Group(apiPrefix)
	admin.Use(middlewares.AuthMiddleware, middlewares.RequireRoles(types.ROLE_ADMIN))
	{
		roleHandlers(admin)
	}

	if err := router.Run(":9090"); err != nil {
		log.Fatalf("Failed to start server: %s", err)
	}
}
