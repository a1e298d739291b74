package db

import (
	"github.com/amitthakurameotech-cmyk/subscription-plan/models"
	"github.com/amitthakurameotech-cmyk/subscription-plan/utils"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

// InitDB opens the connection and migrates the schema. The DSN comes from
// the validated startup settings, not from the environment directly.
func InitDB(dsn string) {
	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: utils.GetGormLogger(),
		// Surfaces unique-index violations as gorm.ErrDuplicatedKey so
		// the ledger upsert can resolve insert races.
		TranslateError: true,
	})
	if err != nil {
		utils.LogError(err, "Error connecting to the database")
		panic("Could not connect to the database")
	}

	err = DB.AutoMigrate(
		&models.User{},
		&models.Plan{},
		&models.PaymentRecord{},
	)
	if err != nil {
		utils.LogError(err, "Error migrating database")
		panic("Could not migrate database")
	}

	utils.LogSuccess("Database connection successful")
}
