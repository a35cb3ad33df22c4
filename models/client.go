package models

import "gorm.io/gorm"

// Client status values. Earlier data contained a mix of English and
// Chinese labels; NormalizeClientStatus maps the legacy ones onto this
// canonical set.
const (
	ClientStatusPotential = "potential"
	ClientStatusActive    = "active"
	ClientStatusInactive  = "inactive"
)

type Client struct {
	gorm.Model
	Name    string `gorm:"not null"`
	Email   string `gorm:"not null;uniqueIndex"`
	Phone   string
	Address string
	Status  string `gorm:"not null;default:potential"`
	Notes   string
}

func NormalizeClientStatus(status string) string {
	switch status {
	case "潜在", ClientStatusPotential:
		return ClientStatusPotential
	case "活跃", ClientStatusActive:
		return ClientStatusActive
	case "非活跃", ClientStatusInactive:
		return ClientStatusInactive
	case "":
		return ClientStatusPotential
	}
	return status
}
