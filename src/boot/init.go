package boot

import (
	"crs/src/db"
	"crs/src/models"
	"log"

	"gorm.io/gorm"
)

func InitDb() *gorm.DB {
	db := db.GetDb()

	err := db.AutoMigrate(
		&models.UserRole{},
		&models.Event{},
		&models.Schedule{},
		&models.SlotCounter{},
		&models.Reservation{},
	)
	if err != nil {
		log.Fatalf("error migration: %s", err.Error())
	}

	return db
}
