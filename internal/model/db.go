package model

import "gorm.io/gorm"

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Communication{}); err != nil {
		return err
	}

	if err := db.AutoMigrate(&CommunicationLink{}); err != nil {
		return err
	}

	if err := db.AutoMigrate(&EmailQueue{}); err != nil {
		return err
	}

	if err := db.AutoMigrate(&EmailFlagQueue{}); err != nil {
		return err
	}

	if err := db.AutoMigrate(&EmailRule{}); err != nil {
		return err
	}

	return db.AutoMigrate(&UserEmailAccount{})
}
