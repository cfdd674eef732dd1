package service

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"gitlab.com/dirk.krummacker/address-book/internal/auth"
	"gitlab.com/dirk.krummacker/address-book/internal/logger"
	"gitlab.com/dirk.krummacker/address-book/internal/model"
	"gitlab.com/dirk.krummacker/address-book/internal/repository"
	"gitlab.com/dirk.krummacker/address-book/internal/validation"
	api "gitlab.com/dirk.krummacker/address-book/pkg/model"
)

const checkYourEmail = "check your email for confirmation"

// signup registers a new, unconfirmed user and sends the verification email.
//
// Example REST API call:
//
//	> curl http://localhost:8080/api/auth/signup --request "POST" --header "Content-Type: application/json" --data '{"username": "erika", "email": "erika@example.com", "password": "s3cret!"}'
func (s *Service) signup(c *gin.Context) {
	var schema api.UserSchema
	if err := c.ShouldBindJSON(&schema); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": validation.Describe(err)})
		return
	}
	ctx := c.Request.Context()
	existing, err := repository.GetUserByEmail(ctx, s.db, schema.Email)
	if err != nil {
		internalError(c, "could not look up user", err)
		return
	}
	if existing != nil {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"message": "account already exists"})
		return
	}
	hashed, err := auth.HashPassword(schema.Password)
	if err != nil {
		internalError(c, "could not hash password", err)
		return
	}
	user, err := repository.CreateUser(ctx, s.db, model.User{
		Username: schema.Username,
		Email:    schema.Email,
		Password: hashed,
	})
	if errors.Is(err, repository.ErrDuplicateEmail) {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"message": "account already exists"})
		return
	}
	if err != nil {
		internalError(c, "could not create user", err)
		return
	}
	slog.Info("user signed up", "user_id", user.Id, "email", logger.RedactEmail(user.Email))
	s.sendVerification(*user)
	c.IndentedJSON(http.StatusCreated, toUserResponse(user))
}

// login exchanges email and password, sent as the form fields 'username' and 'password', for an
// access and a refresh token. Only confirmed users can log in.
//
// Example REST API call:
//
//	> curl http://localhost:8080/api/auth/login --request "POST" --data-urlencode "username=erika@example.com" --data-urlencode "password=s3cret!"
func (s *Service) login(c *gin.Context) {
	email := c.PostForm("username")
	password := c.PostForm("password")
	if email == "" || password == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "username and password are required"})
		return
	}
	user, err := repository.GetUserByEmail(c.Request.Context(), s.db, email)
	if err != nil {
		internalError(c, "could not look up user", err)
		return
	}
	if user == nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "invalid email"})
		return
	}
	if !user.Confirmed {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "email not confirmed"})
		return
	}
	if !auth.VerifyPassword(user.Password, password) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "invalid password"})
		return
	}
	s.issueTokens(c, user)
}

// refreshToken exchanges the refresh token in the Authorization header for a new token pair. A
// refresh token that is valid but not the one last issued to the user revokes the stored one.
//
// Example REST API call:
//
//	> curl -H "Authorization: Bearer $REFRESH_TOKEN" http://localhost:8080/api/auth/refresh_token
func (s *Service) refreshToken(c *gin.Context) {
	token, ok := auth.BearerToken(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "not authenticated"})
		return
	}
	email, err := s.tokens.DecodeRefreshToken(token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "could not validate credentials"})
		return
	}
	ctx := c.Request.Context()
	user, err := repository.GetUserByEmail(ctx, s.db, email)
	if err != nil {
		internalError(c, "could not look up user", err)
		return
	}
	if user == nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "could not validate credentials"})
		return
	}
	if !user.RefreshToken.Valid || user.RefreshToken.String != token {
		if err := repository.UpdateToken(ctx, s.db, user.Id, ""); err != nil {
			internalError(c, "could not revoke refresh token", err)
			return
		}
		slog.Warn("refresh token reuse detected, token revoked", "user_id", user.Id)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "invalid refresh token"})
		return
	}
	s.issueTokens(c, user)
}

// issueTokens creates a new token pair for user, stores the refresh token and responds with both.
func (s *Service) issueTokens(c *gin.Context, user *model.User) {
	access, err := s.tokens.CreateAccessToken(user.Email)
	if err != nil {
		internalError(c, "could not create access token", err)
		return
	}
	refresh, err := s.tokens.CreateRefreshToken(user.Email)
	if err != nil {
		internalError(c, "could not create refresh token", err)
		return
	}
	if err := repository.UpdateToken(c.Request.Context(), s.db, user.Id, refresh); err != nil {
		internalError(c, "could not store refresh token", err)
		return
	}
	c.IndentedJSON(http.StatusOK, api.TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
	})
}

// confirmedEmail confirms the email address embedded in the verification token.
func (s *Service) confirmedEmail(c *gin.Context) {
	email, err := s.tokens.DecodeEmailToken(c.Param("token"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid token for email verification"})
		return
	}
	ctx := c.Request.Context()
	user, err := repository.GetUserByEmail(ctx, s.db, email)
	if err != nil {
		internalError(c, "could not look up user", err)
		return
	}
	if user == nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "verification error"})
		return
	}
	if user.Confirmed {
		c.IndentedJSON(http.StatusOK, gin.H{"message": "your email is already confirmed"})
		return
	}
	if err := repository.ConfirmEmail(ctx, s.db, email); err != nil {
		internalError(c, "could not confirm email", err)
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"message": "email confirmed"})
}

// requestEmail sends the verification email again. The answer is the same whether or not the
// address belongs to an unconfirmed user.
func (s *Service) requestEmail(c *gin.Context) {
	var body api.RequestEmail
	if err := c.ShouldBindJSON(&body); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": validation.Describe(err)})
		return
	}
	user, err := repository.GetUserByEmail(c.Request.Context(), s.db, body.Email)
	if err != nil {
		internalError(c, "could not look up user", err)
		return
	}
	if user != nil && !user.Confirmed {
		s.sendVerification(*user)
	}
	c.IndentedJSON(http.StatusOK, gin.H{"message": checkYourEmail})
}

// me responds with the authenticated user.
func (s *Service) me(c *gin.Context) {
	user, _ := auth.CurrentUser(c)
	c.IndentedJSON(http.StatusOK, toUserResponse(user))
}

func toUserResponse(user *model.User) *api.UserResponse {
	if user == nil {
		return nil
	}
	return &api.UserResponse{Id: user.Id, Username: user.Username, Email: user.Email}
}
