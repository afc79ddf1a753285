package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DateLayout is the calendar-day format shared by every plan row.
const DateLayout = "2006-01-02"

// CalorieGoal holds the daily intake/burn targets. At most one row exists per (email, date).
type CalorieGoal struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email     string    `gorm:"size:255;not null;index:idx_calorie_goals_day" json:"email"`
	Date      string    `gorm:"size:10;not null;index:idx_calorie_goals_day" json:"date"`
	Intake    float64   `gorm:"not null" json:"intake"`
	Burn      float64   `gorm:"not null" json:"burn"`
	CreatedAt time.Time `json:"created_at"`
}

func (CalorieGoal) TableName() string {
	return "calorie_goals"
}

func (g *CalorieGoal) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}

// FitnessPlanItem is one activity of a day's workout; Calories are burned.
type FitnessPlanItem struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email     string    `gorm:"size:255;not null;index:idx_fitness_items_day" json:"email"`
	Date      string    `gorm:"size:10;not null;index:idx_fitness_items_day" json:"date"`
	Position  int       `gorm:"not null;default:0" json:"position"`
	Type      string    `gorm:"size:50;not null" json:"type"` // warmup, strength_training, cardio, stretching
	Content   string    `gorm:"type:text;not null" json:"content"`
	Calories  float64   `gorm:"not null" json:"calories"`
	CreatedAt time.Time `json:"created_at"`
}

func (FitnessPlanItem) TableName() string {
	return "fitness_plan_items"
}

func (i *FitnessPlanItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// DietPlanItem is one meal of a day; Calories are consumed.
type DietPlanItem struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email     string    `gorm:"size:255;not null;index:idx_diet_items_day" json:"email"`
	Date      string    `gorm:"size:10;not null;index:idx_diet_items_day" json:"date"`
	Position  int       `gorm:"not null;default:0" json:"position"`
	Type      string    `gorm:"size:50;not null" json:"type"` // breakfast, lunch, dinner, snack
	Content   string    `gorm:"type:text;not null" json:"content"`
	Calories  float64   `gorm:"not null" json:"calories"`
	CreatedAt time.Time `json:"created_at"`
}

func (DietPlanItem) TableName() string {
	return "diet_plan_items"
}

func (i *DietPlanItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// DailyPlan aggregates everything stored for one (email, date). A nil Goal means no plan
// exists for the key; a non-nil Goal with no items is a populated, empty plan.
type DailyPlan struct {
	Email   string            `json:"email"`
	Date    string            `json:"date"`
	Goal    *CalorieGoal      `json:"calorie_goal"`
	Fitness []FitnessPlanItem `json:"fitness_plan"`
	Diet    []DietPlanItem    `json:"diet_plan"`
}

func (p *DailyPlan) IsEmpty() bool {
	return p == nil || p.Goal == nil
}

// Stamp rewrites the key of every row in the plan and renumbers list positions.
func (p *DailyPlan) Stamp(email, date string) {
	p.Email, p.Date = email, date
	if p.Goal != nil {
		p.Goal.Email, p.Goal.Date = email, date
	}
	for i := range p.Fitness {
		p.Fitness[i].Email, p.Fitness[i].Date, p.Fitness[i].Position = email, date, i
	}
	for i := range p.Diet {
		p.Diet[i].Email, p.Diet[i].Date, p.Diet[i].Position = email, date, i
	}
}

// Clone returns a deep copy of the plan.
func (p *DailyPlan) Clone() *DailyPlan {
	if p == nil {
		return nil
	}
	c := &DailyPlan{Email: p.Email, Date: p.Date}
	if p.Goal != nil {
		g := *p.Goal
		c.Goal = &g
	}
	c.Fitness = append(make([]FitnessPlanItem, 0, len(p.Fitness)), p.Fitness...)
	c.Diet = append(make([]DietPlanItem, 0, len(p.Diet)), p.Diet...)
	return c
}

// NewRowsFor copies the plan as unsaved rows keyed to (email, date). IDs and creation
// times are cleared so inserting the copy never collides with the rows it came from.
func (p *DailyPlan) NewRowsFor(email, date string) *DailyPlan {
	c := p.Clone()
	if c.Goal != nil {
		c.Goal.ID, c.Goal.CreatedAt = uuid.Nil, time.Time{}
	}
	for i := range c.Fitness {
		c.Fitness[i].ID, c.Fitness[i].CreatedAt = uuid.Nil, time.Time{}
	}
	for i := range c.Diet {
		c.Diet[i].ID, c.Diet[i].CreatedAt = uuid.Nil, time.Time{}
	}
	c.Stamp(email, date)
	return c
}
