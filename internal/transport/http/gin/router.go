package httpgin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/okonomi/yoyaku-go/internal/domain"
	redisrepo "github.com/okonomi/yoyaku-go/internal/repository/redis"
	"github.com/okonomi/yoyaku-go/internal/service"
	"github.com/okonomi/yoyaku-go/internal/service/calendar"
	"github.com/okonomi/yoyaku-go/internal/service/external"
	"github.com/okonomi/yoyaku-go/internal/service/lifecycle"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func NewRouter(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), LoggingMiddleware(logger), RequestIDMiddleware(), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// health
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Reservation lifecycle
	r.GET("/reservations/:id", handleGetReservation(svcs))
	r.POST("/reservations/:id/transition", handleTransition(svcs, idem))
	r.POST("/reservations/:id/resale", handleResale(svcs))
	r.PATCH("/reservations/:id/deposit", handleSetDeposit(svcs))

	// Externally registered reservations (phone, walk-in)
	ext := r.Group("/external/reservations")
	{
		ext.POST("", handleExternalCreate(svcs))
		ext.PUT("/:id", handleExternalEdit(svcs))
		ext.DELETE("/:id", handleExternalDelete(svcs))
	}

	// Calendar projections
	r.GET("/resources/:id/calendar", handleResourceCalendar(svcs))
	r.GET("/owners/calendar", handleOwnerCalendar(svcs))

	return r
}

// --- Handlers with Swagger annotations ---

// @Summary  Get reservation with history and slot availability
// @Param    id  path  string  true  "Reservation ID (uuid)"
// @Success  200 {object} TransitionResponse
// @Failure  404 {object} ErrorResponse
// @Router   /reservations/{id} [get]
func handleGetReservation(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		res, err := svcs.Lifecycle.Get(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, toTransitionResponse(res))
	}
}

// @Summary  Transition reservation status (idempotent)
// @Param    id  path  string  true  "Reservation ID (uuid)"
// @Param    X-Requester-ID  header  int  true  "acting owner"
// @Param    req body  TransitionRequest true "payload"
// @Header   200 {string} Idempotency-Key "echo"
// @Success  200 {object} TransitionResponse
// @Failure  400 {object} ErrorResponse
// @Failure  403 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "date occupied / idem in progress"
// @Failure  422 {object} ErrorResponse "no such transition"
// @Failure  503 {object} ErrorResponse "slot busy, retry"
// @Router   /reservations/{id}/transition [post]
func handleTransition(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		actorID, ok := requesterID(c)
		if !ok {
			return
		}
		var req TransitionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		target, ok := domain.ParseStatus(req.Target)
		if !ok {
			badRequest(c, "invalid target status")
			return
		}
		var resale *domain.ResaleOption
		if req.Resale != nil {
			resale = &domain.ResaleOption{
				DiscountPercent: req.Resale.DiscountPercent,
				Notes:           req.Resale.Notes,
			}
		}

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var idemStorageKey string
		if idem != nil && idemKey != "" {
			idemStorageKey = redisrepo.KeyIdemTransition(id, idemKey)

			if payload, ok, _ := idem.GetResult(
				c.Request.Context(),
				idemStorageKey,
			); ok {
				c.Header("Idempotency-Key", idemKey)
				c.Data(
					http.StatusOK,
					"application/json; charset=utf-8",
					[]byte(payload),
				)
				return
			}

			locked, err := idem.AcquireLock(
				c.Request.Context(),
				idemStorageKey,
				60*time.Second,
			)
			if err != nil {
				respondErr(c, err)
				return
			}
			if !locked {
				if payload, ok, _ := idem.GetResult(
					c.Request.Context(),
					idemStorageKey,
				); ok {
					c.Header("Idempotency-Key", idemKey)
					c.Data(
						http.StatusOK,
						"application/json; charset=utf-8",
						[]byte(payload),
					)
					return
				}
				c.Header("Retry-After", "1")
				c.JSON(
					http.StatusConflict,
					ErrorResponse{Error: "idempotency key in progress"},
				)
				return
			}
		}

		result, err := svcs.Lifecycle.Transition(
			c.Request.Context(),
			actorID,
			id,
			target,
			resale,
		)
		if err != nil {
			if idemStorageKey != "" && idem != nil {
				_ = idem.Release(c.Request.Context(), idemStorageKey)
			}
			respondErr(c, err)
			return
		}

		resp := toTransitionResponse(result)

		if idemStorageKey != "" && idem != nil {
			b, _ := json.Marshal(resp)
			_ = idem.SaveResult(c.Request.Context(), idemStorageKey, string(b))
			c.Header("Idempotency-Key", idemKey)
		}

		c.JSON(http.StatusOK, resp)
	}
}

// @Summary  Cancel with resale re-listing
// @Param    id  path  string  true  "Reservation ID (uuid)"
// @Param    X-Requester-ID  header  int  true  "acting owner"
// @Param    req body  ResaleRequest true "payload"
// @Success  200 {object} TransitionResponse
// @Failure  400 {object} ErrorResponse "discount out of range"
// @Failure  422 {object} ErrorResponse "reservation not accepted"
// @Router   /reservations/{id}/resale [post]
func handleResale(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		actorID, ok := requesterID(c)
		if !ok {
			return
		}
		var req ResaleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		result, err := svcs.Lifecycle.Resale(
			c.Request.Context(),
			actorID,
			id,
			req.DiscountPercent,
			req.Notes,
		)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, toTransitionResponse(result))
	}
}

// @Summary  Set deposit-paid flag
// @Param    id  path  string  true  "Reservation ID (uuid)"
// @Param    X-Requester-ID  header  int  true  "acting owner"
// @Param    req body  DepositRequest true "payload"
// @Success  200 {object} ReservationResponse
// @Router   /reservations/{id}/deposit [patch]
func handleSetDeposit(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		actorID, ok := requesterID(c)
		if !ok {
			return
		}
		var req DepositRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		res, err := svcs.Lifecycle.SetDepositPaid(
			c.Request.Context(),
			actorID,
			id,
			*req.Paid,
		)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, toReservationResponse(*res))
	}
}

// @Summary  Register external reservation (phone, walk-in)
// @Param    X-Requester-ID  header  int  true  "acting owner"
// @Param    req body  ExternalCreateRequest true "payload"
// @Success  201 {object} TransitionResponse
// @Failure  409 {object} ErrorResponse "date occupied"
// @Failure  429 {object} ErrorResponse "rate limited"
// @Router   /external/reservations [post]
func handleExternalCreate(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID, ok := requesterID(c)
		if !ok {
			return
		}
		var req ExternalCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		date, err := parseDate(req.Date)
		if err != nil {
			badRequest(c, "invalid date (YYYY-MM-DD)")
			return
		}

		in := external.CreateInput{
			ResourceID:  req.ResourceID,
			Date:        date,
			TotalPrice:  req.TotalPrice,
			DepositPaid: req.DepositPaid,
			Contact: &domain.ExternalContact{
				Name:  req.CustomerName,
				Phone: req.CustomerPhone,
			},
			Memo: req.Memo,
		}
		if req.Guests != nil {
			in.Guests = &domain.GuestCounts{
				Adults:   req.Guests.Adults,
				Children: req.Guests.Children,
			}
		}

		res, err := svcs.External.Create(c.Request.Context(), actorID, in)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, toExternalResponse(*res))
	}
}

// @Summary  Edit external reservation
// @Param    id  path  string  true  "Reservation ID (uuid)"
// @Param    X-Requester-ID  header  int  true  "acting owner"
// @Param    req body  ExternalEditRequest true "payload"
// @Success  200 {object} TransitionResponse
// @Failure  409 {object} ErrorResponse "new date occupied / not external"
// @Router   /external/reservations/{id} [put]
func handleExternalEdit(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		actorID, ok := requesterID(c)
		if !ok {
			return
		}
		var req ExternalEditRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		var in external.EditInput
		if req.Date != nil {
			date, err := parseDate(*req.Date)
			if err != nil {
				badRequest(c, "invalid date (YYYY-MM-DD)")
				return
			}
			in.Date = &date
		}
		in.TotalPrice = req.TotalPrice
		in.DepositPaid = req.DepositPaid
		if req.Guests != nil {
			in.Guests = &domain.GuestCounts{
				Adults:   req.Guests.Adults,
				Children: req.Guests.Children,
			}
		}
		if req.CustomerName != nil || req.CustomerPhone != nil {
			contact := &domain.ExternalContact{}
			if req.CustomerName != nil {
				contact.Name = *req.CustomerName
			}
			if req.CustomerPhone != nil {
				contact.Phone = *req.CustomerPhone
			}
			in.Contact = contact
		}
		in.Memo = req.Memo

		res, err := svcs.External.Edit(c.Request.Context(), actorID, id, in)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, toExternalResponse(*res))
	}
}

// @Summary  Delete external reservation
// @Param    id  path  string  true  "Reservation ID (uuid)"
// @Param    X-Requester-ID  header  int  true  "acting owner"
// @Success  204
// @Failure  409 {object} ErrorResponse "not external"
// @Router   /external/reservations/{id} [delete]
func handleExternalDelete(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		actorID, ok := requesterID(c)
		if !ok {
			return
		}
		if err := svcs.External.Delete(c.Request.Context(), actorID, id); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Resource month calendar
// @Param    id     path   int     true  "Resource ID"
// @Param    month  query  string  true  "YYYY-MM"
// @Success  200 {object} domain.ResourceCalendar
// @Failure  404 {object} ErrorResponse
// @Router   /resources/{id}/calendar [get]
func handleResourceCalendar(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		resourceID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		year, month, ok := parseMonthQuery(c)
		if !ok {
			return
		}
		cal, err := svcs.Calendar.ResourceMonth(
			c.Request.Context(),
			resourceID,
			year,
			month,
		)
		if err != nil {
			respondErr(c, err)
			return
		}
		// ETag + Cache-Control 15s
		writeJSONWithCache(c, http.StatusOK, cal, "public, max-age=15", true)
	}
}

// @Summary  Owner month calendar across all owned resources
// @Param    X-Requester-ID  header  int     true  "owner"
// @Param    month           query   string  true  "YYYY-MM"
// @Success  200 {array} domain.ResourceCalendar
// @Router   /owners/calendar [get]
func handleOwnerCalendar(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerID, ok := requesterID(c)
		if !ok {
			return
		}
		year, month, ok := parseMonthQuery(c)
		if !ok {
			return
		}
		cals, err := svcs.Calendar.OwnerMonth(
			c.Request.Context(),
			ownerID,
			year,
			month,
		)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, cals, "public, max-age=15", true)
	}
}

// --- Helpers ---

func parseInt64Param(c *gin.Context, name string) (int64, bool) {
	s := c.Param(name)
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name+" (uuid)")
		return uuid.Nil, false
	}
	return id, true
}

// requesterID reads the acting owner identity from X-Requester-ID.
// TODO: replace with real auth middleware once the identity service lands.
func requesterID(c *gin.Context) (int64, bool) {
	s := strings.TrimSpace(c.GetHeader("X-Requester-ID"))
	if s == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "missing X-Requester-ID"})
		return 0, false
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid X-Requester-ID"})
		return 0, false
	}
	return v, true
}

func parseMonthQuery(c *gin.Context) (int, time.Month, bool) {
	t, err := time.Parse("2006-01", c.Query("month"))
	if err != nil {
		badRequest(c, "invalid month (YYYY-MM)")
		return 0, 0, false
	}
	return t.Year(), t.Month(), true
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	switch {
	// domain state machine
	case errors.Is(err, domain.ErrInvalidTransition):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})
		return
	case errors.Is(err, domain.ErrInvalidDiscount):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	case errors.Is(err, domain.ErrInvalidPrice):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	// lifecycle service
	case errors.Is(err, lifecycle.ErrReservationNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "reservation not found"})
		return
	case errors.Is(err, lifecycle.ErrResourceNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "resource not found"})
		return
	case errors.Is(err, lifecycle.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "not the resource owner"})
		return
	case errors.Is(err, lifecycle.ErrConflict):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "date already occupied"})
		return
	case errors.Is(err, lifecycle.ErrBusy):
		c.Header("Retry-After", "1")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "calendar slot busy, retry"})
		return
	// external service
	case errors.Is(err, external.ErrReservationNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "reservation not found"})
		return
	case errors.Is(err, external.ErrResourceNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "resource not found"})
		return
	case errors.Is(err, external.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "not the resource owner"})
		return
	case errors.Is(err, external.ErrConflict):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "date already occupied"})
		return
	case errors.Is(err, external.ErrNotExternal):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "reservation was not registered externally"})
		return
	case errors.Is(err, external.ErrBusy):
		c.Header("Retry-After", "1")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "calendar slot busy, retry"})
		return
	case errors.Is(err, external.ErrRateLimited):
		c.Header("Retry-After", "60")
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "too many registrations"})
		return
	// calendar service
	case errors.Is(err, calendar.ErrResourceNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "resource not found"})
		return
	case errors.Is(err, calendar.ErrInvalidMonth):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid month"})
		return
	}

	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}
