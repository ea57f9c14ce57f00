package model

// CategoryLanguage is the language classification of a ticket.
type CategoryLanguage struct {
	ID       uint   `json:"id" gorm:"primaryKey;autoIncrement"`
	Name     string `json:"name" gorm:"type:varchar(100);not null;uniqueIndex"`
	IsActive bool   `json:"is_active" gorm:"not null;default:true"`
}

// TableName specifies the table name for CategoryLanguage
func (CategoryLanguage) TableName() string {
	return "category_language"
}

// CategoryVOC is the voice-of-customer classification of a ticket.
type CategoryVOC struct {
	ID       uint   `json:"id" gorm:"primaryKey;autoIncrement"`
	Name     string `json:"name" gorm:"type:varchar(100);not null;uniqueIndex"`
	IsActive bool   `json:"is_active" gorm:"not null;default:true"`
}

// TableName specifies the table name for CategoryVOC
func (CategoryVOC) TableName() string {
	return "category_voc"
}

// CategoryPriority is the priority classification of a ticket.
type CategoryPriority struct {
	ID       uint   `json:"id" gorm:"primaryKey;autoIncrement"`
	Name     string `json:"name" gorm:"type:varchar(100);not null;uniqueIndex"`
	Weight   int    `json:"weight" gorm:"not null;default:0"`
	IsActive bool   `json:"is_active" gorm:"not null;default:true"`
}

// TableName specifies the table name for CategoryPriority
func (CategoryPriority) TableName() string {
	return "category_priority"
}
