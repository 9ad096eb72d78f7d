package models

// User mirrors the platform's account record. Accounts are owned by the
// identity service upstream; this service only reads them for fan-out
// audiences, staff filtering, and feed personalisation.
type User struct {
	BaseModel

	Username    string  `gorm:"uniqueIndex;not null" json:"username"`
	DisplayName string  `gorm:"type:varchar(128)" json:"display_name"`
	ChurchID    *string `gorm:"type:uuid;index" json:"church_id,omitempty"`
	Church      *Church `gorm:"foreignKey:ChurchID" json:"church,omitempty"`
	IsStaff     bool    `gorm:"default:false" json:"is_staff"`
	IsActive    bool    `gorm:"default:true" json:"is_active"`
}

// Name returns the preferred display form for titles.
func (u *User) Name() string {
	if u == nil {
		return "System"
	}
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}
