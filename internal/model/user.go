package model

import (
	"strings"

	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	Email       string `gorm:"uniqueIndex;not null"`
	Password    string `json:"-" gorm:"not null"`
	Username    string `gorm:"uniqueIndex;not null"`
	DisplayName string `json:"display_name" gorm:"not null"`

	// Learner profile, updated from settings
	NativeLanguage string `json:"native_language"`
	TargetLevel    string `json:"target_level"` // JLPT N5..N1
	Avatar         string `json:"avatar"`

	IsVerified bool `json:"is_verified" gorm:"default:false"`

	Subscription *Subscription `json:"-" gorm:"foreignKey:UserID"`
}

func (u *User) GetPublicProfile() map[string]interface{} {
	return map[string]interface{}{
		"id":              u.ID,
		"username":        u.Username,
		"display_name":    u.DisplayName,
		"native_language": u.NativeLanguage,
		"target_level":    strings.ToUpper(u.TargetLevel),
		"avatar":          u.Avatar,
		"is_verified":     u.IsVerified,
	}
}
