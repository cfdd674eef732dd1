// Package service implements the address book REST API on top of the repository functions.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"gitlab.com/dirk.krummacker/address-book/internal/auth"
	"gitlab.com/dirk.krummacker/address-book/internal/config"
	"gitlab.com/dirk.krummacker/address-book/internal/database"
	"gitlab.com/dirk.krummacker/address-book/internal/model"
	"gitlab.com/dirk.krummacker/address-book/internal/notify"
	"gitlab.com/dirk.krummacker/address-book/internal/ratelimit"
	"gitlab.com/dirk.krummacker/address-book/internal/repository"
	"gitlab.com/dirk.krummacker/address-book/internal/validation"
)

// emailTimeout bounds the delivery of a single background email.
const emailTimeout = 30 * time.Second

// Service holds the dependencies of the HTTP handlers.
type Service struct {
	db         *sqlx.DB
	tokens     *auth.TokenService
	limiter    *ratelimit.Limiter
	mailer     *notify.Mailer
	baseURL    string
	ginLogging bool
	now        func() time.Time
	background sync.WaitGroup
}

// New creates the service. limiter may be nil, which disables rate limiting.
func New(cfg *config.Config, db *sqlx.DB, tokens *auth.TokenService, limiter *ratelimit.Limiter, mailer *notify.Mailer) (*Service, error) {
	if err := validation.Register(); err != nil {
		return nil, fmt.Errorf("could not register validation rules: %w", err)
	}
	return &Service{
		db:         db,
		tokens:     tokens,
		limiter:    limiter,
		mailer:     mailer,
		baseURL:    strings.TrimSuffix(cfg.AppBaseURL, "/"),
		ginLogging: !strings.EqualFold(cfg.GinLogging, "off"),
		now:        time.Now,
	}, nil
}

// SetupHttpRouter initializes the REST API router and registers all endpoints.
func (s *Service) SetupHttpRouter() *gin.Engine {
	var router *gin.Engine
	if s.ginLogging {
		router = gin.Default()
	} else {
		slog.Info("turning off HTTP request logging")
		router = gin.New()
		router.Use(gin.Recovery())
	}

	router.GET("/healthz", s.healthz)

	api := router.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.POST("/signup", s.signup)
	authRoutes.POST("/login", s.login)
	authRoutes.GET("/refresh_token", s.refreshToken)
	authRoutes.GET("/confirmed_email/:token", s.confirmedEmail)
	authRoutes.POST("/request_email", s.requestEmail)

	authenticated := auth.Middleware(s.tokens, s.lookupUser)
	api.GET("/users/me", authenticated, s.me)

	contacts := api.Group("/contacts")
	if s.limiter != nil {
		contacts.Use(s.limiter.Middleware())
	}
	contacts.Use(authenticated)
	contacts.GET("", s.findContacts)
	contacts.GET("/birthdays", s.findUpcomingBirthdays)
	contacts.POST("", s.createContact)
	contacts.GET("/:id", s.findContactByID)
	contacts.PUT("/:id", s.updateContactByID)
	contacts.DELETE("/:id", s.deleteContactByID)
	return router
}

// Wait blocks until all background email deliveries have finished.
func (s *Service) Wait() {
	s.background.Wait()
}

func (s *Service) lookupUser(ctx context.Context, email string) (*model.User, error) {
	return repository.GetUserByEmail(ctx, s.db, email)
}

// healthz reports whether the database is reachable.
//
// Example REST API call:
//
//	> curl http://localhost:8080/healthz
func (s *Service) healthz(c *gin.Context) {
	if !database.HealthCheck(c.Request.Context(), s.db) {
		c.IndentedJSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"status": "ok"})
}

// internalError logs err and answers with a generic 500.
func internalError(c *gin.Context, msg string, err error) {
	slog.ErrorContext(c.Request.Context(), msg,
		"error", err,
		"method", c.Request.Method,
		"path", c.FullPath(),
	)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "internal server error"})
}

// parseId reads the id URL parameter. Anything but a positive integer is answered with 404.
func parseId(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "invalid id parameter"})
		return 0, false
	}
	return id, true
}

// sendVerification issues an email token for user and mails it in the background.
func (s *Service) sendVerification(user model.User) {
	token, err := s.tokens.CreateEmailToken(user.Email)
	if err != nil {
		slog.Error("could not create email token", "error", err)
		return
	}
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), emailTimeout)
		defer cancel()
		if err := s.mailer.SendVerification(ctx, user.Email, user.Username, s.baseURL, token); err != nil {
			slog.Error("verification email failed", "error", err, "user_id", user.Id)
		}
	}()
}
