// Package nutrition computes energy and macro targets from a completed
// profile. Everything here is pure arithmetic.
package nutrition

import (
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	SexMale   = "Masculino"
	SexFemale = "Femenino"
)

var activityFactors = map[string]float64{
	"sedentaria": 1.2,
	"ligera":     1.375,
	"moderada":   1.55,
	"alta":       1.725,
	"muy alta":   1.9,
}

const defaultActivityFactor = 1.375

var (
	fatLossGoals = map[string]bool{"grasa": true, "abdomen": true}
	gainGoals    = map[string]bool{"musculo": true}
)

// Input is the subset of a profile the formulas need.
type Input struct {
	Sex      string
	Age      int     `validate:"gte=5,lte=100"`
	HeightCM float64 `validate:"gte=80,lte=250"`
	WeightKG float64 `validate:"gte=20,lte=400"`
	Activity string
	Goals    []string
}

// Targets is stored as the profile's macro_targets.
type Targets struct {
	BMR      int `json:"bmr"`
	TDEE     int `json:"tdee"`
	Calories int `json:"kcal"`
	ProteinG int `json:"protein_g"`
	FatG     int `json:"fat_g"`
	CarbsG   int `json:"carbs_g"`
}

var validate = validator.New()

// BMR is the Mifflin-St Jeor resting energy in kcal. Undisclosed sex uses the
// midpoint of the male and female offsets.
func BMR(sex string, weightKG, heightCM float64, age int) float64 {
	base := 10*weightKG + 6.25*heightCM - 5*float64(age)
	switch sex {
	case SexMale:
		return base + 5
	case SexFemale:
		return base - 161
	default:
		return base - 78
	}
}

func ActivityFactor(level string) float64 {
	if f, ok := activityFactors[strings.ToLower(strings.TrimSpace(level))]; ok {
		return f
	}
	return defaultActivityFactor
}

// GoalFactor scales TDEE for the chosen goals. Asking to lose fat and gain
// muscle at once means maintenance.
func GoalFactor(goals []string) float64 {
	var lose, gain bool
	for _, g := range goals {
		lose = lose || fatLossGoals[g]
		gain = gain || gainGoals[g]
	}
	switch {
	case lose && !gain:
		return 0.85
	case gain && !lose:
		return 1.10
	default:
		return 1.0
	}
}

// Macros splits kcal into grams. Protein sits between 1.6 and 2.2 g/kg with a
// 180 g ceiling, fat is at least 0.8 g/kg and 40 g, carbs take the rest.
func Macros(weightKG, kcal float64) (protein, fat, carbs float64) {
	protein = math.Max(math.Min(2.2*weightKG, 180), 1.6*weightKG)
	fat = math.Max(0.8*weightKG, 40)
	carbs = math.Max((kcal-protein*4-fat*9)/4, 0)
	return protein, fat, carbs
}

// Compute returns the daily targets for in.
func Compute(in Input) (Targets, error) {
	if err := validate.Struct(in); err != nil {
		return Targets{}, err
	}

	bmr := BMR(in.Sex, in.WeightKG, in.HeightCM, in.Age)
	tdee := bmr * ActivityFactor(in.Activity)
	kcal := tdee * GoalFactor(in.Goals)
	p, f, c := Macros(in.WeightKG, kcal)

	return Targets{
		BMR:      int(math.Round(bmr)),
		TDEE:     int(math.Round(tdee)),
		Calories: int(math.Round(kcal)),
		ProteinG: int(math.Round(p)),
		FatG:     int(math.Round(f)),
		CarbsG:   int(math.Round(c)),
	}, nil
}
