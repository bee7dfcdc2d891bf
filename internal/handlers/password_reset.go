package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/example/thtstore/internal/models"
	"github.com/example/thtstore/internal/services"
	"github.com/example/thtstore/internal/utils"
)

// PasswordResetHandler manages the forgot-password flow.
type PasswordResetHandler struct {
	db   *gorm.DB
	mail services.EmailEnqueuer
	log  *logrus.Logger
}

// NewPasswordResetHandler constructs a PasswordResetHandler.
func NewPasswordResetHandler(db *gorm.DB, mail services.EmailEnqueuer, log *logrus.Logger) *PasswordResetHandler {
	return &PasswordResetHandler{db: db, mail: mail, log: log}
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// ForgotPassword issues a reset code valid for 10 minutes and emails it.
// The response does not reveal whether the email is registered.
func (h *PasswordResetHandler) ForgotPassword(c *fiber.Ctx) error {
	var req forgotPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" {
		return fiber.NewError(fiber.StatusBadRequest, "email is required")
	}

	accepted := fiber.Map{
		"success": true,
		"message": "Nếu email tồn tại, mã đặt lại mật khẩu đã được gửi.",
	}

	var user models.User
	if err := h.db.Where("email = ?", req.Email).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.JSON(accepted)
		}
		return err
	}

	code, err := generateVerificationCode()
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate reset code")
	}
	token, err := generateResetToken()
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate reset token")
	}

	reset := models.PasswordResetToken{
		Email:     req.Email,
		Token:     token,
		Code:      code,
		ExpiresAt: time.Now().Add(10 * time.Minute),
	}

	if err := h.db.Create(&reset).Error; err != nil {
		return err
	}

	if err := h.mail.Enqueue(c.Context(), services.PasswordResetEmail(req.Email, code)); err != nil {
		h.log.WithError(err).WithField("email", req.Email).Error("reset email enqueue failed")
	}

	return c.JSON(accepted)
}

type verifyResetCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// VerifyResetCode checks the emailed code and hands back the reset token the
// client must present when setting the new password.
func (h *PasswordResetHandler) VerifyResetCode(c *fiber.Ctx) error {
	var req verifyResetCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	var reset models.PasswordResetToken
	err := h.db.Where("email = ? AND used_at IS NULL", req.Email).
		Order("created_at desc").
		First(&reset).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusBadRequest, "invalid or expired reset code")
		}
		return err
	}

	if reset.Code != req.Code || reset.ExpiresAt.Before(time.Now()) {
		return fiber.NewError(fiber.StatusBadRequest, "invalid or expired reset code")
	}

	if err := h.db.Model(&reset).Update("verified", true).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"resetToken": reset.Token,
	})
}

type resetPasswordRequest struct {
	Token    string `json:"resetToken"`
	Password string `json:"password"`
}

// ResetPassword sets a new password for a verified, unexpired, unused token.
func (h *PasswordResetHandler) ResetPassword(c *fiber.Ctx) error {
	var req resetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if req.Token == "" {
		return fiber.NewError(fiber.StatusBadRequest, "reset token is required")
	}
	if len(req.Password) < 6 {
		return fiber.NewError(fiber.StatusBadRequest, "password must be at least 6 characters")
	}

	var reset models.PasswordResetToken
	err := h.db.Where("token = ? AND verified = true AND used_at IS NULL", req.Token).
		First(&reset).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusBadRequest, "invalid or expired reset token")
		}
		return err
	}

	if reset.ExpiresAt.Before(time.Now()) {
		return fiber.NewError(fiber.StatusBadRequest, "invalid or expired reset token")
	}

	passwordHash, err := utils.HashPassword(req.Password)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to hash password")
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).Where("email = ?", reset.Email).
			Update("password_hash", passwordHash).Error; err != nil {
			return err
		}

		now := time.Now()
		return tx.Model(&reset).Update("used_at", &now).Error
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Mật khẩu đã được đặt lại thành công.",
	})
}

// generateResetToken returns a 32-character hex token.
func generateResetToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
