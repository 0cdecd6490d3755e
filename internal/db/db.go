package db

import (
	"log"
	"os"

	"evforum/internal/models"

	"github.com/gosimple/slug"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func Init() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		// Fallback for local dev if not set
		dsn = "host=localhost user=postgres password=postgres dbname=evforum port=5432 sslmode=disable"
	}

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	log.Println("Database connection established")

	if err := Migrate(DB); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Println("Database migration completed")

	seedCategories(DB)
}

// Migrate creates or updates the schema. Split out so tests can run it
// against their own gorm instance.
func Migrate(g *gorm.DB) error {
	return g.AutoMigrate(
		&models.User{},
		&models.Category{},
		&models.Thread{},
		&models.Reply{},
		&models.Vote{},
		&models.ModerationLogEntry{},
	)
}

func seedCategories(g *gorm.DB) {
	var count int64
	g.Model(&models.Category{}).Count(&count)
	if count > 0 {
		log.Println("Categories already seeded, skipping")
		return
	}

	categories := []models.Category{
		{Name: "General Discussion", Description: "Anything EV that fits nowhere else", Color: "#3b82f6", Icon: "💬"},
		{Name: "Charging & Infrastructure", Description: "Home chargers, public networks, road-trip planning", Color: "#22c55e", Icon: "🔌"},
		{Name: "Ownership & Maintenance", Description: "Living with an EV day to day", Color: "#f59e0b", Icon: "🔧"},
		{Name: "Reviews & Test Drives", Description: "First-hand impressions of models and trims", Color: "#8b5cf6", Icon: "📝"},
		{Name: "News & Industry", Description: "Launches, recalls, policy and market news", Color: "#ef4444", Icon: "📰"},
	}

	for _, category := range categories {
		category.Slug = slug.Make(category.Name)
		if err := g.Create(&category).Error; err != nil {
			log.Printf("Failed to create category %s: %v", category.Name, err)
		}
	}
	log.Println("Initial categories created successfully")
}
