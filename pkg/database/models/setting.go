package models

import "gorm.io/gorm"

func init() {
	registerForAutomigration(&Setting{})
}

// Setting is a single named value which must survive restarts.
type Setting struct {
	gorm.Model
	Name  string `gorm:"uniqueIndex"`
	Value string
}
