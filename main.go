package main

import (
	"log"

	"fieldops/config"
	"fieldops/models"
	"fieldops/routes"
	"fieldops/services"
)

func main() {
	db := config.ConnectDB()
	if err := db.AutoMigrate(
		&models.User{},
		&models.Task{},
		&models.GeoCoordinate{},
		&models.Attachment{},
		&models.ActivityRecord{},
	); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	sweeper := services.NewOrphanSweeper(db, 0)
	if err := sweeper.Start(config.SweepInterval()); err != nil {
		log.Fatalf("sweeper: %v", err)
	}
	defer sweeper.Stop()

	uploader := &services.LocalUploader{Dir: config.UploadDir()}
	r := routes.SetupRouter(db, uploader)
	r.Run(":8000")
}
