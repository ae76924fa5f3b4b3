package gateway

import (
	"errors"
	"net/http"

	"github.com/example/khanpan/pkg/auth"
	"github.com/gin-gonic/gin"
)

type signupRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type verifyOTPRequest struct {
	Email    string `json:"email"`
	OTP      string `json:"otp"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type resetPasswordRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"newPassword"`
}

// @Summary  Start signup; mails an OTP
// @Tags     auth
// @Accept   json
// @Produce  json
// @Param    body body signupRequest true "name and email"
// @Router   /api/auth/signup [post]
func (g *Gateway) signup(c *gin.Context) {
	var req signupRequest
	_ = c.ShouldBindJSON(&req)

	err := g.auth.Signup(c.Request.Context(), req.Name, req.Email)
	switch {
	case errors.Is(err, auth.ErrMissingFields):
		badRequest(c, "Name and email required.")
	case errors.Is(err, auth.ErrAlreadyRegistered):
		badRequest(c, "Email already registered.")
	case err != nil:
		g.serverError(c, "Signup error", err)
	default:
		c.JSON(http.StatusOK, gin.H{"message": "OTP sent to email."})
	}
}

// @Summary  Verify signup OTP and set password
// @Tags     auth
// @Accept   json
// @Produce  json
// @Param    body body verifyOTPRequest true "email, otp and password"
// @Router   /api/auth/verify-otp [post]
func (g *Gateway) verifyOTP(c *gin.Context) {
	var req verifyOTPRequest
	_ = c.ShouldBindJSON(&req)

	already, err := g.auth.VerifyOTP(c.Request.Context(), req.Email, req.OTP, req.Password)
	switch {
	case errors.Is(err, auth.ErrUserNotFound):
		badRequest(c, "User not found.")
	case errors.Is(err, auth.ErrInvalidOTP):
		badRequest(c, "Invalid or expired OTP.")
	case errors.Is(err, auth.ErrMissingFields):
		badRequest(c, "Password required.")
	case err != nil:
		g.serverError(c, "OTP verification error", err)
	case already:
		c.JSON(http.StatusOK, gin.H{"message": "Already verified."})
	default:
		c.JSON(http.StatusOK, gin.H{"message": "Email verified. You can now log in."})
	}
}

// @Summary  Log in and receive a JWT
// @Tags     auth
// @Accept   json
// @Produce  json
// @Param    body body loginRequest true "credentials"
// @Router   /api/auth/login [post]
func (g *Gateway) login(c *gin.Context) {
	var req loginRequest
	_ = c.ShouldBindJSON(&req)

	token, user, err := g.auth.Login(c.Request.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, auth.ErrNotVerified):
		badRequest(c, "Invalid credentials or not verified.")
	case errors.Is(err, auth.ErrInvalidCredentials):
		badRequest(c, "Invalid credentials.")
	case err != nil:
		g.serverError(c, "Login error", err)
	default:
		c.JSON(http.StatusOK, gin.H{"token": token, "user": user.Profile()})
	}
}

// @Summary  Mail a password reset OTP
// @Tags     auth
// @Accept   json
// @Produce  json
// @Router   /api/auth/forgot-password [post]
func (g *Gateway) forgotPassword(c *gin.Context) {
	var req signupRequest
	_ = c.ShouldBindJSON(&req)

	err := g.auth.ForgotPassword(c.Request.Context(), req.Email)
	switch {
	case errors.Is(err, auth.ErrUserNotFound):
		badRequest(c, "User not found.")
	case err != nil:
		g.serverError(c, "Forgot password error", err)
	default:
		c.JSON(http.StatusOK, gin.H{"message": "OTP sent to email."})
	}
}

// @Summary  Check a password reset OTP
// @Tags     auth
// @Accept   json
// @Produce  json
// @Router   /api/auth/verify-reset-otp [post]
func (g *Gateway) verifyResetOTP(c *gin.Context) {
	var req verifyOTPRequest
	_ = c.ShouldBindJSON(&req)

	err := g.auth.VerifyResetOTP(c.Request.Context(), req.Email, req.OTP)
	switch {
	case errors.Is(err, auth.ErrUserNotFound):
		badRequest(c, "User not found.")
	case errors.Is(err, auth.ErrInvalidOTP):
		badRequest(c, "Invalid or expired OTP.")
	case err != nil:
		g.serverError(c, "OTP verification error", err)
	default:
		c.JSON(http.StatusOK, gin.H{"message": "OTP verified. You can now reset your password."})
	}
}

// @Summary  Reset the password with an OTP
// @Tags     auth
// @Accept   json
// @Produce  json
// @Param    body body resetPasswordRequest true "email, otp and new password"
// @Router   /api/auth/reset-password [post]
func (g *Gateway) resetPassword(c *gin.Context) {
	var req resetPasswordRequest
	_ = c.ShouldBindJSON(&req)

	err := g.auth.ResetPassword(c.Request.Context(), req.Email, req.OTP, req.NewPassword)
	switch {
	case errors.Is(err, auth.ErrUserNotFound):
		badRequest(c, "User not found.")
	case errors.Is(err, auth.ErrInvalidOTP):
		badRequest(c, "Invalid or expired OTP.")
	case errors.Is(err, auth.ErrMissingFields):
		badRequest(c, "New password required.")
	case err != nil:
		g.serverError(c, "Password reset error", err)
	default:
		c.JSON(http.StatusOK, gin.H{"message": "Password reset successful. You can now log in."})
	}
}

// @Summary  Resolve a bearer token to its user
// @Tags     auth
// @Produce  json
// @Security BearerAuth
// @Router   /api/auth/validate [get]
func (g *Gateway) validate(c *gin.Context) {
	token, ok := bearerToken(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "No token provided"})
		return
	}
	user, err := g.auth.Validate(c.Request.Context(), token)
	if err != nil {
		g.abortTokenError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user.Profile()})
}

func (g *Gateway) abortTokenError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidToken):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid or expired token"})
	case errors.Is(err, auth.ErrUserNotFound):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "User not found"})
	default:
		g.serverError(c, "Token validation error", err)
		c.Abort()
	}
}
