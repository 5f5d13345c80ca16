package models

import "testing"

func TestMealPlanValidate(t *testing.T) {
	ok := MealPlan{Days: []PlanDay{{Day: 1, Meals: []Meal{{Slot: "desayuno", Name: "Avena con fruta"}}}}}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected error %v", err)
	}

	bad := []MealPlan{
		{},
		{Days: []PlanDay{{Day: 1}}},
		{Days: []PlanDay{{Day: 1, Meals: []Meal{{Slot: "cena"}}}}},
	}
	for i, p := range bad {
		if err := p.Validate(); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
}

func TestPlanDaySummary(t *testing.T) {
	d := PlanDay{Day: 1, Kcal: 2100, Meals: []Meal{
		{Slot: "desayuno", Name: "Yogur griego con avena", Kcal: 400},
		{Name: "Fruta"},
	}}
	want := "📅 Día 1 (~2100 kcal)\n• Desayuno: Yogur griego con avena (400 kcal)\n• Fruta"
	if got := d.Summary(); got != want {
		t.Fatalf("unexpected summary:\n%s", got)
	}
}

func TestProfileCloneIsDeep(t *testing.T) {
	age := 30
	p := &Profile{ChatID: "1", Age: &age, ActiveMenu: []byte(`{"days":[]}`)}
	c := p.Clone()
	*c.Age = 31
	c.ActiveMenu[0] = '['
	if *p.Age != 30 || p.ActiveMenu[0] != '{' {
		t.Fatalf("clone shares memory with the original")
	}
}
