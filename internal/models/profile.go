package models

import (
	"time"

	"gorm.io/datatypes"
)

// Profile is one chat's onboarding record. Numeric answers are pointers so an
// unanswered step is distinguishable from a legitimate zero.
type Profile struct {
	ChatID     string `gorm:"column:chat_id;type:text;primaryKey" json:"chat_id"`
	StepCursor int    `gorm:"column:step_cursor;type:integer;not null;default:1" json:"step_cursor"`

	Sex                string   `gorm:"column:sex;type:text" json:"sex,omitempty"`
	Age                *int     `gorm:"column:age;type:integer" json:"age,omitempty"`
	HeightCM           *float64 `gorm:"column:height_cm;type:double precision" json:"height_cm,omitempty"`
	WeightKG           *float64 `gorm:"column:weight_kg;type:double precision" json:"weight_kg,omitempty"`
	ActivityLevel      string   `gorm:"column:activity_level;type:text" json:"activity_level,omitempty"`
	CookingTimeMinutes *int     `gorm:"column:cooking_time_minutes;type:integer" json:"cooking_time_minutes,omitempty"`
	Country            string   `gorm:"column:country;type:text" json:"country,omitempty"`
	PlanDurationWeeks  *int     `gorm:"column:plan_duration_weeks;type:integer" json:"plan_duration_weeks,omitempty"`

	// multi-select answers, serialized lists in text columns
	GoalTags      string `gorm:"column:goal_tags;type:text" json:"goal_tags,omitempty"`
	DietStyleTags string `gorm:"column:diet_style_tags;type:text" json:"diet_style_tags,omitempty"`
	EquipmentTags string `gorm:"column:equipment_tags;type:text" json:"equipment_tags,omitempty"`

	LikedFoods     string `gorm:"column:liked_foods;type:text" json:"liked_foods,omitempty"`
	DislikedFoods  string `gorm:"column:disliked_foods;type:text" json:"disliked_foods,omitempty"`
	Allergies      string `gorm:"column:allergies;type:text" json:"allergies,omitempty"`
	ForbiddenFoods string `gorm:"column:forbidden_foods;type:text" json:"forbidden_foods,omitempty"`

	// written by plan generation
	TargetCalories *int           `gorm:"column:target_calories;type:integer" json:"target_calories,omitempty"`
	MacroTargets   datatypes.JSON `gorm:"column:macro_targets;type:jsonb" json:"macro_targets,omitempty"`
	ActiveMenu     datatypes.JSON `gorm:"column:active_menu;type:jsonb" json:"active_menu,omitempty"`
	CurrentWeek    int            `gorm:"column:current_week;type:integer;default:1" json:"current_week"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (Profile) TableName() string { return "profiles" }

// Complete reports whether onboarding has finished.
func (p *Profile) Complete() bool { return p.StepCursor == 0 }

// Clone returns a deep copy, so callers can mutate a snapshot without
// touching the stored one.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	c.Age = cloneInt(p.Age)
	c.HeightCM = cloneFloat(p.HeightCM)
	c.WeightKG = cloneFloat(p.WeightKG)
	c.CookingTimeMinutes = cloneInt(p.CookingTimeMinutes)
	c.PlanDurationWeeks = cloneInt(p.PlanDurationWeeks)
	c.TargetCalories = cloneInt(p.TargetCalories)
	if p.MacroTargets != nil {
		c.MacroTargets = append(datatypes.JSON(nil), p.MacroTargets...)
	}
	if p.ActiveMenu != nil {
		c.ActiveMenu = append(datatypes.JSON(nil), p.ActiveMenu...)
	}
	return &c
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	n := *v
	return &n
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	n := *v
	return &n
}
