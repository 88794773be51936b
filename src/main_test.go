package main

import (
	"bytes"
	"crs/src/db"
	"crs/src/middlewares"
	"crs/src/types"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/tidwall/gjson"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type APITestSuite struct {
	suite.Suite
	router *gin.Engine
	mock   sqlmock.Sqlmock
}

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func (s *APITestSuite) SetupTest() {
	sqldb, mock, err := sqlmock.New()
	require.NoError(s.T(), err)
	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqldb}), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(s.T(), err)
	db.NewDB(gdb)
	s.mock = mock

	initServices()
	registerValidators()

	router := setupRouter()
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
	s.router = router
}

func generateJWT(uid, email, name string) string {
	claims := types.Claims{
		Email: email,
		Name:  name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, _ := token.SignedString([]byte(os.Getenv("JWT_SECRET")))
	return signed
}

func (s *APITestSuite) request(method, target, token string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// expectRole satisfies the auth middleware's role lookup for uid.
func (s *APITestSuite) expectRole(uid string, role types.Role) {
	rows := sqlmock.NewRows([]string{"id", "user_id", "role"})
	if role != "" {
		rows.AddRow(1, uid, string(role))
	}
	s.mock.ExpectQuery(`SELECT \* FROM "user_roles"`).WillReturnRows(rows)
}

func (s *APITestSuite) TestPing() {
	w := s.request(http.MethodGet, "/", "", nil)
	s.Equal(http.StatusOK, w.Code)
}

func (s *APITestSuite) TestMaintenanceMode() {
	s.T().Setenv("MAINTENANCE_MODE", "true")
	w := s.request(http.MethodGet, apiPrefix+"/events", "", nil)
	s.Equal(http.StatusServiceUnavailable, w.Code)
}

func (s *APITestSuite) TestPublicEventsEmpty() {
	s.mock.ExpectQuery(`SELECT \* FROM "events"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	w := s.request(http.MethodGet, apiPrefix+"/events", "", nil)
	s.Equal(http.StatusOK, w.Code)
	s.EqualValues(0, gjson.Get(w.Body.String(), "count").Int())
}

func (s *APITestSuite) TestReservationsRequireAuth() {
	w := s.request(http.MethodGet, apiPrefix+"/reservations", "", nil)
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *APITestSuite) TestMe() {
	s.expectRole("user-1", types.ROLE_USER)
	token := generateJWT("user-1", "alex@example.com", "Alex Doe")

	w := s.request(http.MethodGet, apiPrefix+"/me", token, nil)
	s.Equal(http.StatusOK, w.Code)
	body := w.Body.String()
	s.Equal("user-1", gjson.Get(body, "id").String())
	s.Equal("user", gjson.Get(body, "role").String())
}

func (s *APITestSuite) TestConsoleForbiddenForGuests() {
	s.expectRole("user-1", "")
	token := generateJWT("user-1", "alex@example.com", "Alex Doe")

	w := s.request(http.MethodPost, apiPrefix+"/console/admission", token, []byte(`{"code":"abc"}`))
	s.Equal(http.StatusForbidden, w.Code)
}

func (s *APITestSuite) TestAdmissionUnknownToken() {
	s.expectRole("staff-1", types.ROLE_ADMIN)
	s.mock.ExpectQuery(`SELECT \* FROM "reservations"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	token := generateJWT("staff-1", "door@example.com", "Door Staff")

	w := s.request(http.MethodPost, apiPrefix+"/console/admission", token, []byte(`{"code":"nope"}`))
	s.Equal(http.StatusNotFound, w.Code)
	s.Equal("not_found", gjson.Get(w.Body.String(), "data.outcome").String())
}

func (s *APITestSuite) TestAdmissionAdmitsConfirmedReservation() {
	const scanToken = "0Ee1v94cX2ZMLYMo9tBuKbGIQhpmXPl5LNkWnK8ZIqw"
	s.expectRole("staff-1", types.ROLE_ORGANIZER)
	s.mock.ExpectQuery(`SELECT \* FROM "reservations"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "event_id", "user_id", "status", "qr_token", "party_size", "slot_key"}).
			AddRow(1, 1, "user-1", string(types.RESERVATION_CONFIRMED), scanToken, 2, "event:1"))
	s.mock.ExpectQuery(`SELECT \* FROM "events"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "status"}).
			AddRow(1, "Saturday Social", string(types.EVENT_OPEN)))
	s.mock.ExpectBegin()
	s.mock.ExpectExec(`UPDATE "reservations" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectCommit()
	token := generateJWT("staff-1", "door@example.com", "Door Staff")

	w := s.request(http.MethodPost, apiPrefix+"/console/admission", token, []byte(`{"code":"`+scanToken+`"}`))
	s.Equal(http.StatusOK, w.Code)
	body := w.Body.String()
	s.Equal("admitted", gjson.Get(body, "data.outcome").String())
	s.Equal("checked_in", gjson.Get(body, "data.reservation.status").String())
	s.NoError(s.mock.ExpectationsWereMet())
}

func (s *APITestSuite) TestCreateReservationSoldOut() {
	s.expectRole("user-1", types.ROLE_USER)
	s.mock.ExpectBegin()
	s.mock.ExpectQuery(`SELECT \* FROM "events"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "status", "requires_payment_proof"}).
			AddRow(1, "Saturday Social", string(types.EVENT_OPEN), false))
	s.mock.ExpectQuery(`SELECT count\(\*\) FROM "reservations"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	s.mock.ExpectExec(`UPDATE "slot_counters" SET "admitted"=admitted`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	s.mock.ExpectQuery(`SELECT count\(\*\) FROM "slot_counters"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	s.mock.ExpectRollback()
	token := generateJWT("user-1", "alex@example.com", "Alex Doe")

	body := []byte(`{"event":1,"full_name":"Alex Doe","email":"alex@example.com","party_type":"couple"}`)
	w := s.request(http.MethodPost, apiPrefix+"/reservations", token, body)
	s.Equal(http.StatusConflict, w.Code)
	s.NoError(s.mock.ExpectationsWereMet())
}

func (s *APITestSuite) TestCreateReservationRejectsDuplicate() {
	s.expectRole("user-1", types.ROLE_USER)
	s.mock.ExpectBegin()
	s.mock.ExpectQuery(`SELECT \* FROM "events"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "status", "requires_payment_proof"}).
			AddRow(1, "Saturday Social", string(types.EVENT_OPEN), false))
	s.mock.ExpectQuery(`SELECT count\(\*\) FROM "reservations"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	s.mock.ExpectRollback()
	token := generateJWT("user-1", "alex@example.com", "Alex Doe")

	body := []byte(`{"event":1,"full_name":"Alex Doe","email":"alex@example.com","party_type":"single"}`)
	w := s.request(http.MethodPost, apiPrefix+"/reservations", token, body)
	s.Equal(http.StatusConflict, w.Code)
	s.NoError(s.mock.ExpectationsWereMet())
}

func (s *APITestSuite) TestCreateReservationRejectsBadPartyType() {
	s.expectRole("user-1", types.ROLE_USER)
	token := generateJWT("user-1", "alex@example.com", "Alex Doe")

	body := []byte(`{"event":1,"full_name":"Alex Doe","email":"alex@example.com","party_type":"trio"}`)
	w := s.request(http.MethodPost, apiPrefix+"/reservations", token, body)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *APITestSuite) TestAuthUsesRuntimeSecret() {
	s.T().Setenv("JWT_SECRET", "rotated-after-start")
	s.expectRole("user-1", types.ROLE_USER)
	token := generateJWT("user-1", "alex@example.com", "Alex Doe")

	w := s.request(http.MethodGet, apiPrefix+"/me", token, nil)
	s.Equal(http.StatusOK, w.Code)
	s.Equal("user-1", gjson.Get(w.Body.String(), "id").String())
}

func (s *APITestSuite) TestEventReservationsScopedToOrganizer() {
	s.expectRole("org-2", types.ROLE_ORGANIZER)
	// the event belongs to someone else, the ownership filter finds nothing
	s.mock.ExpectQuery(`SELECT \* FROM "events"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	token := generateJWT("org-2", "other@example.com", "Other Organizer")

	w := s.request(http.MethodGet, apiPrefix+"/console/events/1/reservations", token, nil)
	s.Equal(http.StatusNotFound, w.Code)
	s.NoError(s.mock.ExpectationsWereMet())
}

func (s *APITestSuite) TestEventReservationsForOwnEvent() {
	s.expectRole("org-1", types.ROLE_ORGANIZER)
	s.mock.ExpectQuery(`SELECT \* FROM "events"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "organizer_id"}).
			AddRow(1, "Saturday Social", "org-1"))
	s.mock.ExpectQuery(`SELECT \* FROM "reservations"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "event_id", "full_name", "status", "party_size"}).
			AddRow(1, 1, "Alex Doe", string(types.RESERVATION_CONFIRMED), 2))
	token := generateJWT("org-1", "org@example.com", "Organizer")

	w := s.request(http.MethodGet, apiPrefix+"/console/events/1/reservations", token, nil)
	s.Equal(http.StatusOK, w.Code)
	s.EqualValues(1, gjson.Get(w.Body.String(), "count").Int())
	s.NoError(s.mock.ExpectationsWereMet())
}

func (s *APITestSuite) TestDeleteEventBlockedByLiveReservations() {
	s.expectRole("org-1", types.ROLE_ORGANIZER)
	s.mock.ExpectBegin()
	s.mock.ExpectQuery(`SELECT SUM\(party_size\) FROM "reservations"`).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(3))
	s.mock.ExpectRollback()
	token := generateJWT("org-1", "org@example.com", "Organizer")

	w := s.request(http.MethodDelete, apiPrefix+"/console/events/1", token, nil)
	s.Equal(http.StatusConflict, w.Code)
	s.NoError(s.mock.ExpectationsWereMet())
}

func (s *APITestSuite) TestDeleteEventWithoutLiveReservations() {
	s.expectRole("org-1", types.ROLE_ORGANIZER)
	s.mock.ExpectBegin()
	s.mock.ExpectQuery(`SELECT SUM\(party_size\) FROM "reservations"`).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(nil))
	s.mock.ExpectExec(`UPDATE "events" SET "deleted_at"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectCommit()
	token := generateJWT("org-1", "org@example.com", "Organizer")

	w := s.request(http.MethodDelete, apiPrefix+"/console/events/1", token, nil)
	s.Equal(http.StatusNoContent, w.Code)
	s.NoError(s.mock.ExpectationsWereMet())
}

func TestAPITestSuite(t *testing.T) {
	suite.Run(t, new(APITestSuite))
}
