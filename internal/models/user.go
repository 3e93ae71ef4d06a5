package models

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleTechnician Role = "technician"
	RoleViewer     Role = "viewer"
)

// Permissions checked by HasPermission.
const (
	PermissionViewReports     = "view_reports"
	PermissionDownloadReports = "download_reports"
	PermissionManageReports   = "manage_reports"
	PermissionManageTemplates = "manage_templates"
	PermissionManageUsers     = "manage_users"
)

type User struct {
	gorm.Model
	Username  string `gorm:"uniqueIndex;not null" json:"username"`
	Password  string `gorm:"not null" json:"-"`
	Role      Role   `gorm:"not null" json:"role"`
	Email     string `gorm:"uniqueIndex" json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	IsActive  bool   `gorm:"default:true" json:"isActive"`
}

func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashedPassword)
	return nil
}

func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password))
	return err == nil
}

// DisplayName returns "First Last", falling back to the username.
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

func (u *User) HasPermission(action string) bool {
	switch u.Role {
	case RoleAdmin:
		return true
	case RoleTechnician:
		return action != PermissionManageTemplates && action != PermissionManageUsers
	case RoleViewer:
		return action == PermissionViewReports || action == PermissionDownloadReports
	default:
		return false
	}
}
