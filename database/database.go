package database

import (
	"fmt"
	"log"

	config "github.com/wanjalasam/bus_booking/configs"
	"github.com/wanjalasam/bus_booking/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func Connect() (*gorm.DB, error) {
	dsn := config.Config("DATABASE_URL")

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Println("✅ Database connected successfully")
	return db, nil
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Route{},
		&models.PriceVariation{},
		&models.Booking{},
		&models.Payment{},
		&models.PaymentEvent{},
		&models.BookingTransfer{},
		&models.SeatHistory{},
		&models.WebhookLog{},
		&models.RefundTask{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	// Seat uniqueness must hold at the storage layer, not just in the
	// application-level pre-check: only bookings still occupying a seat
	// participate in the constraint.
	err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_bookings_active_seat
		ON bookings (route_id, travel_date, seat_number)
		WHERE status IN ('PENDING', 'CONFIRMED')`).Error
	if err != nil {
		return fmt.Errorf("failed to create active seat index: %w", err)
	}

	log.Println("✅ Database migration successful")
	return nil
}

// SeedAdmin creates the staff admin account on first boot.
func SeedAdmin(db *gorm.DB) error {
	adminEmail := config.Config("ADMIN_EMAIL")
	adminPassword := config.Config("ADMIN_PASSWORD")
	if adminEmail == "" || adminPassword == "" {
		log.Println("Admin credentials not configured, skipping seed")
		return nil
	}

	var count int64
	if err := db.Model(&models.User{}).Where("email = ?", adminEmail).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check for admin user: %w", err)
	}
	if count > 0 {
		log.Println("Admin user already exists.")
		return nil
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := models.User{
		FullName: config.ConfigDefault("ADMIN_FULL_NAME", "Operations Admin"),
		Email:    adminEmail,
		Phone:    config.ConfigDefault("ADMIN_PHONE", "0700000000"),
		Password: string(hashed),
		Role:     "admin",
	}
	if err := db.Create(&admin).Error; err != nil {
		return fmt.Errorf("failed to seed admin user: %w", err)
	}

	log.Println("✅ Admin user seeded successfully")
	return nil
}
