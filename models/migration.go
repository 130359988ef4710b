package models

import (
	"log"

	"github.com/giginltd/gigin_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&User{},
		&MusicianProfile{}, &VenueProfile{},
		&Gig{},
		&Payment{}, &PendingFee{}, &ClearedFee{}, &Dispute{},
		&Conversation{}, &Message{},
		&MailMessage{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
