package models

// Church is the congregation a fast belongs to. Managed upstream; read here
// for fan-out audience resolution and event payload enrichment.
type Church struct {
	BaseModel

	Name string `gorm:"type:varchar(128);not null" json:"name"`
}
