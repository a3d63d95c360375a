package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/wanjalasam/bus_booking/apperr"
	config "github.com/wanjalasam/bus_booking/configs"
	"github.com/wanjalasam/bus_booking/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthHandler struct {
	db *gorm.DB
}

func NewAuthHandler(db *gorm.DB) *AuthHandler {
	return &AuthHandler{db: db}
}

type RegisterRequest struct {
	FullName string `json:"full_name" validate:"required,min=3"`
	Phone    string `json:"phone" validate:"required,min=9"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return respondErr(c, apperr.ValidationErr("cannot parse JSON"))
	}
	if err := validate.Struct(req); err != nil {
		return respondErr(c, apperr.ValidationErr(err.Error()))
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return respondErr(c, apperr.Wrap(err, "failed to hash password"))
	}

	user := models.User{
		FullName: req.FullName,
		Phone:    req.Phone,
		Email:    req.Email,
		Password: string(hashed),
		Role:     "customer",
	}
	if err := h.db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return respondErr(c, apperr.ConflictErr("an account with this phone or email already exists"))
		}
		return respondErr(c, apperr.ConflictErr("an account with this phone or email already exists"))
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":        user.ID,
		"full_name": user.FullName,
		"role":      user.Role,
	})
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return respondErr(c, apperr.ValidationErr("cannot parse JSON"))
	}
	if err := validate.Struct(req); err != nil {
		return respondErr(c, apperr.ValidationErr(err.Error()))
	}

	var user models.User
	if err := h.db.Where("email = ?", req.Email).First(&user).Error; err != nil {
		return respondErr(c, apperr.ForbiddenErr("invalid credentials"))
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return respondErr(c, apperr.ForbiddenErr("invalid credentials"))
	}

	claims := jwt.MapClaims{
		"user_id": user.ID.String(),
		"role":    user.Role,
		"exp":     time.Now().Add(72 * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(config.Config("JWT_SECRET")))
	if err != nil {
		return respondErr(c, apperr.Wrap(err, "failed to sign token"))
	}

	return c.JSON(fiber.Map{"token": signed})
}
