package models

import (
	"errors"
	"fmt"
	"strings"
)

// MealPlan is the JSON document the language model returns and the profile
// keeps as active_menu.
type MealPlan struct {
	Title string    `json:"title,omitempty"`
	Days  []PlanDay `json:"days"`
	Notes string    `json:"notes,omitempty"`
}

type PlanDay struct {
	Day   int    `json:"day"`
	Meals []Meal `json:"meals"`
	Kcal  int    `json:"kcal,omitempty"`
}

type Meal struct {
	Slot        string   `json:"slot"` // desayuno|comida|cena|snack
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Ingredients []string `json:"ingredients,omitempty"`
	Kcal        int      `json:"kcal,omitempty"`
	ProteinG    int      `json:"protein_g,omitempty"`
	FatG        int      `json:"fat_g,omitempty"`
	CarbsG      int      `json:"carbs_g,omitempty"`
}

// Validate checks the shape the bot relies on when rendering a plan.
func (m *MealPlan) Validate() error {
	if len(m.Days) == 0 {
		return errors.New("meal plan has no days")
	}
	for i, d := range m.Days {
		if len(d.Meals) == 0 {
			return fmt.Errorf("day %d has no meals", i+1)
		}
		for j, meal := range d.Meals {
			if strings.TrimSpace(meal.Name) == "" {
				return fmt.Errorf("day %d meal %d has no name", i+1, j+1)
			}
		}
	}
	return nil
}

// Summary renders one day as chat text.
func (d PlanDay) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "📅 Día %d", d.Day)
	if d.Kcal > 0 {
		fmt.Fprintf(&b, " (~%d kcal)", d.Kcal)
	}
	for _, m := range d.Meals {
		b.WriteString("\n• ")
		if m.Slot != "" {
			b.WriteString(strings.ToUpper(m.Slot[:1]) + m.Slot[1:] + ": ")
		}
		b.WriteString(m.Name)
		if m.Kcal > 0 {
			fmt.Fprintf(&b, " (%d kcal)", m.Kcal)
		}
	}
	return b.String()
}
