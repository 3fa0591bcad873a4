package models

// Admin is a back-office user allowed to manage catalog and orders.
type Admin struct {
	BaseModel
	Phone        string `gorm:"uniqueIndex" json:"phone"`
	DisplayName  string `json:"display_name"`
	PasswordHash string `json:"-"`
}
