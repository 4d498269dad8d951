package model

import "gorm.io/gorm"

// UserEmailAccount assigns an email account to a user. The accounts a user
// owns decide which email communications they may list.
type UserEmailAccount struct {
	gorm.Model
	User         string `gorm:"not null;index:idx_user_email_accounts_user"`
	EmailAccount string `gorm:"not null"`
}

func (u *UserEmailAccount) TableName() string {
	return "user_email_accounts"
}
