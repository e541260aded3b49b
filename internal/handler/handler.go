package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"user_service/internal/auth"
	"user_service/internal/identity"
	"user_service/internal/metrics"
	"user_service/internal/service"
	"user_service/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handler struct {
	serviceLayer service.Directory
	log          *slog.Logger
	metrics      *metrics.Metrics
	storeTimeout time.Duration
}

type errorResponse struct {
	Message string `json:"message"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func NewHandler(srvc service.Directory, lgr *slog.Logger, m *metrics.Metrics, storeTimeout time.Duration) *Handler {
	return &Handler{
		serviceLayer: srvc,
		log:          lgr,
		metrics:      m,
		storeTimeout: storeTimeout,
	}
}

func newErrorResponse(c *gin.Context, statusCode int, errMessage string) {
	c.AbortWithStatusJSON(statusCode, errorResponse{Message: errMessage})
}

// statusFromError maps the typed failure taxonomy onto transport status.
// Anything unrecognized is the generic internal fault.
func statusFromError(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, storage.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) failWith(c *gin.Context, log *slog.Logger, err error) {
	status := statusFromError(err)
	if status == http.StatusInternalServerError {
		// Only the unexpected path loses detail on the wire; it is kept in
		// the log instead.
		log.Error("internal fault", slog.Any("error", err))
		newErrorResponse(c, status, "internal error")
		return
	}
	newErrorResponse(c, status, err.Error())
}

func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("RequestID", requestID)
		c.Writer.Header().Set("X-Request-Id", requestID)

		c.Next()
	}
}

func MetricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		operation := c.FullPath()
		if operation == "" {
			operation = "unmatched"
		}
		m.RequestsTotal.WithLabelValues(operation, http.StatusText(c.Writer.Status())).Inc()
		m.RequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}

func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(MetricsMiddleware(h.metrics))

	users := router.Group("/users")
	{
		users.POST("", h.CreateUser)
		users.GET("/me", h.ReadProfile)
		users.PATCH("/me", h.UpdateProfile)
	}

	tokens := router.Group("/tokens")
	{
		tokens.POST("", h.IssueToken)
		tokens.GET("/verify", h.VerifyToken)
	}

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}

// bearerToken pulls the token out of the Authorization header. An absent or
// malformed header comes back as an empty token and fails verification
// downstream, matching the taxonomy (Unauthorized, not BadRequest).
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

// POST /users
func (h *Handler) CreateUser(c *gin.Context) {
	const op = "handler.CreateUser"

	log := h.log.With(slog.String("op", op))

	var input struct {
		Login    string `json:"login"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
		Surname  string `json:"surname"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		log.Error("failed to read request body", slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, "invalid request body")

		return
	}

	if !IsValidEmail(input.Email) {
		log.Error("given invalid email", slog.String("email", input.Email))

		newErrorResponse(c, http.StatusBadRequest, "not valid email")

		return
	}

	if input.Login == "" || input.Password == "" {
		log.Error("given empty login or password")

		newErrorResponse(c, http.StatusBadRequest, "empty login or password")

		return
	}

	ctx, cancel := h.storeContext(c)
	defer cancel()

	profile, err := h.serviceLayer.CreateUser(ctx, identity.RawInput{
		Login:    input.Login,
		Email:    input.Email,
		Password: input.Password,
		Name:     input.Name,
		Surname:  input.Surname,
	})
	if err != nil {
		log.Error("failed to create user", slog.Any("error", err))

		h.failWith(c, log, err)

		return
	}

	c.JSON(http.StatusCreated, profile)
}

// POST /tokens
func (h *Handler) IssueToken(c *gin.Context) {
	const op = "handler.IssueToken"

	log := h.log.With(slog.String("op", op))

	var creds service.Credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		log.Error("failed to read request body", slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, "invalid request body")

		return
	}

	ctx, cancel := h.storeContext(c)
	defer cancel()

	token, err := h.serviceLayer.IssueToken(ctx, creds)
	if err != nil {
		log.Error("failed to issue token", slog.Any("error", err))

		h.failWith(c, log, err)

		return
	}

	c.JSON(http.StatusOK, tokenResponse{Token: token})
}

// GET /tokens/verify
func (h *Handler) VerifyToken(c *gin.Context) {
	const op = "handler.VerifyToken"

	log := h.log.With(slog.String("op", op))

	mode := auth.ParseMode(c.Query("mode"))

	ctx, cancel := h.storeContext(c)
	defer cancel()

	claims, err := h.serviceLayer.VerifyToken(ctx, bearerToken(c), mode)
	if err != nil {
		log.Error("token verification failed", slog.String("mode", string(mode)), slog.Any("error", err))

		h.failWith(c, log, err)

		return
	}

	c.JSON(http.StatusOK, claims)
}

// GET /users/me
func (h *Handler) ReadProfile(c *gin.Context) {
	const op = "handler.ReadProfile"

	log := h.log.With(slog.String("op", op))

	ctx, cancel := h.storeContext(c)
	defer cancel()

	profile, err := h.serviceLayer.ReadProfile(ctx, bearerToken(c))
	if err != nil {
		log.Error("failed to read profile", slog.Any("error", err))

		h.failWith(c, log, err)

		return
	}

	c.JSON(http.StatusOK, profile)
}

// PATCH /users/me
func (h *Handler) UpdateProfile(c *gin.Context) {
	const op = "handler.UpdateProfile"

	log := h.log.With(slog.String("op", op))

	var patch service.ProfilePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		log.Error("failed to read request body", slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, "invalid request body")

		return
	}

	ctx, cancel := h.storeContext(c)
	defer cancel()

	profile, err := h.serviceLayer.UpdateProfile(ctx, bearerToken(c), patch)
	if err != nil {
		log.Error("failed to update profile", slog.Any("error", err))

		h.failWith(c, log, err)

		return
	}

	c.JSON(http.StatusOK, profile)
}

func (h *Handler) storeContext(c *gin.Context) (ctx context.Context, cancel context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.storeTimeout)
}
