package services

import (
	"fmt"
	"testing"

	"evforum/internal/db"
	"evforum/internal/models"
	"evforum/internal/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testDB opens an isolated in-memory store with the full schema.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	g, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(g))

	// The list cache is process-wide; keep tests from reading each other's
	// pages.
	utils.GetCache().DeletePrefix("threads:")
	return g
}

type fixture struct {
	db        *gorm.DB
	member    models.User
	other     models.User
	moderator models.User
	category  models.Category
	thread    models.Thread
}

// seedForum creates two members, a moderator, one category and one thread.
func seedForum(t *testing.T, g *gorm.DB) *fixture {
	t.Helper()

	f := &fixture{db: g}

	f.member = models.User{Username: "ampere", Email: "ampere@example.com", Password: "x", Role: models.RoleMember}
	require.NoError(t, g.Create(&f.member).Error)
	f.other = models.User{Username: "watt", Email: "watt@example.com", Password: "x", Role: models.RoleMember}
	require.NoError(t, g.Create(&f.other).Error)
	f.moderator = models.User{Username: "ohm", Email: "ohm@example.com", Password: "x", Role: models.RoleModerator}
	require.NoError(t, g.Create(&f.moderator).Error)

	f.category = models.Category{Slug: "charging", Name: "Charging", Description: "chargers and networks"}
	require.NoError(t, g.Create(&f.category).Error)

	f.thread = models.Thread{
		Pid:        "seedpid1",
		CategoryID: f.category.ID,
		AuthorID:   f.member.ID,
		Title:      "Best home charger for a small garage?",
		Slug:       "best-home-charger",
	}
	require.NoError(t, g.Create(&f.thread).Error)
	return f
}

func (f *fixture) reloadThread(t *testing.T) models.Thread {
	t.Helper()
	var thread models.Thread
	require.NoError(t, f.db.First(&thread, f.thread.ID).Error)
	return thread
}
