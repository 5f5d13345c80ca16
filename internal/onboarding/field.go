package onboarding

import (
	"fmt"
	"math"
	"strings"

	"github.com/yoockh/nutricoach/internal/models"
)

// Field identifies one onboarding question. The numeric value is the step
// index in the questionnaire.
type Field int

const (
	FieldSex Field = iota + 1
	FieldAge
	FieldHeight
	FieldWeight
	FieldActivity
	FieldGoals
	FieldDietStyle
	FieldLikedFoods
	FieldDislikedFoods
	FieldAllergies
	FieldForbiddenFoods
	FieldCookingTime
	FieldEquipment
	FieldPlanWeeks
	FieldCountry
)

// StepCount is the length of the questionnaire.
const StepCount = 15

var fieldNames = map[Field]string{
	FieldSex:            "sex",
	FieldAge:            "age",
	FieldHeight:         "height_cm",
	FieldWeight:         "weight_kg",
	FieldActivity:       "activity_level",
	FieldGoals:          "goal_tags",
	FieldDietStyle:      "diet_style_tags",
	FieldLikedFoods:     "liked_foods",
	FieldDislikedFoods:  "disliked_foods",
	FieldAllergies:      "allergies",
	FieldForbiddenFoods: "forbidden_foods",
	FieldCookingTime:    "cooking_time_minutes",
	FieldEquipment:      "equipment_tags",
	FieldPlanWeeks:      "plan_duration_weeks",
	FieldCountry:        "country",
}

func (f Field) String() string {
	if n, ok := fieldNames[f]; ok {
		return n
	}
	return fmt.Sprintf("field(%d)", int(f))
}

type Kind int

const (
	KindChoice Kind = iota + 1
	KindInteger
	KindDecimal
	KindTags
	KindText
)

// Value is a normalized answer. Str carries choices, tags and free text;
// Num carries integer and decimal answers.
type Value struct {
	Str string
	Num float64
}

// Option is one selectable answer. Tag is the button payload suffix and, for
// multi-select steps, the stored tag. Value is what single-select steps store.
type Option struct {
	Tag     string
	Label   string
	Value   string
	Aliases []string
}

func (o Option) stored() string {
	if o.Value != "" {
		return o.Value
	}
	return o.Tag
}

func (o Option) matches(key string) bool {
	if key == strings.ToLower(o.Tag) || key == strings.ToLower(o.Label) || key == strings.ToLower(o.Value) {
		return true
	}
	for _, a := range o.Aliases {
		if key == a {
			return true
		}
	}
	return false
}

// Step binds a field to its prompt, its normalizer rules and its storage slot.
type Step struct {
	Field    Field
	Kind     Kind
	Prefix   string
	Question string
	Noun     string
	Options  []Option

	Min, Max float64
	Decimals int

	bounds string
	slot   slot
}

func (s *Step) Index() int { return int(s.Field) }

func (s *Step) match(raw string) (Option, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	for _, o := range s.Options {
		if o.matches(key) {
			return o, true
		}
	}
	return Option{}, false
}

func (s *Step) payload(tag string) string { return s.Prefix + "_" + tag }

type slot struct {
	isSet  func(*models.Profile) bool
	assign func(*models.Profile, Value)
	clear  func(*models.Profile)
	text   func(*models.Profile) *string
}

func textSlot(ref func(*models.Profile) *string) slot {
	return slot{
		isSet:  func(p *models.Profile) bool { return strings.TrimSpace(*ref(p)) != "" },
		assign: func(p *models.Profile, v Value) { *ref(p) = v.Str },
		clear:  func(p *models.Profile) { *ref(p) = "" },
		text:   ref,
	}
}

func intSlot(ref func(*models.Profile) **int) slot {
	return slot{
		isSet: func(p *models.Profile) bool { return *ref(p) != nil },
		assign: func(p *models.Profile, v Value) {
			n := int(math.Round(v.Num))
			*ref(p) = &n
		},
		clear: func(p *models.Profile) { *ref(p) = nil },
	}
}

func floatSlot(ref func(*models.Profile) **float64) slot {
	return slot{
		isSet: func(p *models.Profile) bool { return *ref(p) != nil },
		assign: func(p *models.Profile, v Value) {
			n := v.Num
			*ref(p) = &n
		},
		clear: func(p *models.Profile) { *ref(p) = nil },
	}
}

var (
	sexOptions = []Option{
		{Tag: "M", Label: "Masculino", Value: "Masculino", Aliases: []string{"male", "hombre", "h"}},
		{Tag: "F", Label: "Femenino", Value: "Femenino", Aliases: []string{"female", "mujer"}},
		{Tag: "ND", Label: "Prefiero no decir", Value: "Prefiero no decir", Aliases: []string{"n/d", "none", "undisclosed", "otro"}},
	}
	activityOptions = []Option{
		{Tag: "sedentario", Label: "Sedentario", Value: "sedentaria"},
		{Tag: "ligero", Label: "Ligero", Value: "ligera"},
		{Tag: "moderado", Label: "Moderado", Value: "moderada"},
		{Tag: "alto", Label: "Alto", Value: "alta"},
		{Tag: "muy_alto", Label: "Muy alto", Value: "muy alta", Aliases: []string{"muy_alta", "muyalta", "muyalto"}},
	}
	goalOptions = []Option{
		{Tag: "grasa", Label: "Perder grasa", Aliases: []string{"perder_grasa"}},
		{Tag: "musculo", Label: "Ganar músculo", Aliases: []string{"ganar_musculo", "músculo", "ganar musculo"}},
		{Tag: "abdomen", Label: "Definir abdomen"},
		{Tag: "mente", Label: "Mente tranquila"},
		{Tag: "desinflamar", Label: "Desinflamar", Aliases: []string{"keto"}},
		{Tag: "cardio", Label: "Mejorar cardio"},
		{Tag: "energia", Label: "Subir energía", Aliases: []string{"energía", "subir energia"}},
		{Tag: "sueno", Label: "Dormir mejor", Aliases: []string{"sueño", "dormir"}},
	}
	dietOptions = []Option{
		{Tag: "mediterranea", Label: "Mediterránea 🍅", Aliases: []string{"mediterránea"}},
		{Tag: "japonesa", Label: "Japonesa 🍣"},
		{Tag: "tailandesa", Label: "Tailandesa 🌶️"},
		{Tag: "arabe", Label: "Árabe 🥙", Aliases: []string{"árabe"}},
		{Tag: "vegana", Label: "Vegana 🌱"},
		{Tag: "americana", Label: "Americana 🍔"},
	}
	cookingOptions = []Option{
		{Tag: "15", Label: "≤15 min", Aliases: []string{"cook_15"}},
		{Tag: "30", Label: "~30 min", Aliases: []string{"cook_30"}},
		{Tag: "45", Label: ">45 min", Aliases: []string{"cook_45"}},
	}
	equipmentOptions = []Option{
		{Tag: "airfryer", Label: "Airfryer 🍟"},
		{Tag: "horno", Label: "Horno 🔥"},
		{Tag: "micro", Label: "Microondas ⚡", Aliases: []string{"microondas"}},
		{Tag: "thermo", Label: "Thermomix 🥘", Aliases: []string{"thermomix"}},
		{Tag: "none", Label: "Ninguno", Aliases: []string{"nada"}},
	}
)

func defaultSteps() []Step {
	return []Step{
		{Field: FieldSex, Kind: KindChoice, Prefix: "sexo", Noun: "tu sexo",
			Question: "¿Cuál es tu sexo?", Options: sexOptions,
			slot: textSlot(func(p *models.Profile) *string { return &p.Sex })},
		{Field: FieldAge, Kind: KindInteger, Prefix: "edad", Noun: "tu edad",
			Question: "¿Qué edad tienes? (solo número)", Min: 5, Max: 100,
			slot: intSlot(func(p *models.Profile) **int { return &p.Age })},
		{Field: FieldHeight, Kind: KindDecimal, Prefix: "altura", Noun: "tu altura en cm",
			Question: "¿Cuál es tu altura en cm? (solo número)", Min: 80, Max: 250, Decimals: 1,
			slot: floatSlot(func(p *models.Profile) **float64 { return &p.HeightCM })},
		{Field: FieldWeight, Kind: KindDecimal, Prefix: "peso", Noun: "tu peso en kg",
			Question: "¿Cuál es tu peso actual en kg? (puede ser decimal)", Min: 20, Max: 400, Decimals: 1,
			slot: floatSlot(func(p *models.Profile) **float64 { return &p.WeightKG })},
		{Field: FieldActivity, Kind: KindChoice, Prefix: "actividad", Noun: "tu nivel de actividad",
			Question: "¿Qué nivel de actividad tienes?", Options: activityOptions,
			slot: textSlot(func(p *models.Profile) *string { return &p.ActivityLevel })},
		{Field: FieldGoals, Kind: KindTags, Prefix: "objetivo", Noun: "tus objetivos",
			Question: "🎯 ¿Cuáles son tus objetivos? Marca todos los que quieras y pulsa Continuar.", Options: goalOptions,
			slot: textSlot(func(p *models.Profile) *string { return &p.GoalTags })},
		{Field: FieldDietStyle, Kind: KindTags, Prefix: "dieta", Noun: "tu estilo de dieta",
			Question: "🥗 ¿Qué estilos de dieta prefieres? Marca los que quieras y pulsa Continuar.", Options: dietOptions,
			slot: textSlot(func(p *models.Profile) *string { return &p.DietStyleTags })},
		{Field: FieldLikedFoods, Kind: KindText, Prefix: "gustos", Noun: "las comidas que te gustan",
			Question: "🍴 ¿Qué comidas te gustan especialmente?",
			slot: textSlot(func(p *models.Profile) *string { return &p.LikedFoods })},
		{Field: FieldDislikedFoods, Kind: KindText, Prefix: "nogustos", Noun: "los alimentos que no te gustan",
			Question: "❌ ¿Qué alimentos no te gustan o quieres evitar?",
			slot: textSlot(func(p *models.Profile) *string { return &p.DislikedFoods })},
		{Field: FieldAllergies, Kind: KindText, Prefix: "alergias", Noun: "tus alergias",
			Question: "⚠️ ¿Tienes alguna alergia o intolerancia? (escribe \"ninguna\" si no)",
			slot: textSlot(func(p *models.Profile) *string { return &p.Allergies })},
		{Field: FieldForbiddenFoods, Kind: KindText, Prefix: "vetos", Noun: "los alimentos prohibidos",
			Question: "🚫 ¿Hay alimentos que quieras prohibir totalmente?",
			slot: textSlot(func(p *models.Profile) *string { return &p.ForbiddenFoods })},
		{Field: FieldCookingTime, Kind: KindInteger, Prefix: "tiempo", Noun: "tu tiempo de cocina en minutos",
			Question: "⌛ ¿Cuánto tiempo tienes para cocinar normalmente?", Options: cookingOptions, Min: 0, Max: 300,
			slot: intSlot(func(p *models.Profile) **int { return &p.CookingTimeMinutes })},
		{Field: FieldEquipment, Kind: KindTags, Prefix: "equip", Noun: "tu equipamiento",
			Question: "🍳 ¿Qué equipamiento tienes? Marca todo lo que tengas y pulsa Continuar.", Options: equipmentOptions,
			slot: textSlot(func(p *models.Profile) *string { return &p.EquipmentTags })},
		{Field: FieldPlanWeeks, Kind: KindInteger, Prefix: "semanas", Noun: "la duración del plan en semanas",
			Question: "📅 ¿Cuántas semanas quieres que dure tu plan?", Min: 1, Max: 52,
			slot: intSlot(func(p *models.Profile) **int { return &p.PlanDurationWeeks })},
		{Field: FieldCountry, Kind: KindText, Prefix: "pais", Noun: "tu país",
			Question: "🌍 ¿En qué país estás?",
			slot: textSlot(func(p *models.Profile) *string { return &p.Country })},
	}
}

// buildTable checks that steps cover every field exactly once, in order, and
// that each step has what its kind needs.
func buildTable(steps []Step) ([]Step, map[string]*Step, error) {
	if len(steps) != StepCount {
		return nil, nil, fmt.Errorf("onboarding: %d steps, want %d", len(steps), StepCount)
	}
	byPrefix := make(map[string]*Step, len(steps))
	for i := range steps {
		s := &steps[i]
		if s.Index() != i+1 {
			return nil, nil, fmt.Errorf("onboarding: step %d holds field %s", i+1, s.Field)
		}
		if s.slot.isSet == nil || s.slot.assign == nil || s.slot.clear == nil {
			return nil, nil, fmt.Errorf("onboarding: field %s has no storage slot", s.Field)
		}
		if s.Prefix == "" || strings.Contains(s.Prefix, "_") {
			return nil, nil, fmt.Errorf("onboarding: field %s has invalid prefix %q", s.Field, s.Prefix)
		}
		if _, dup := byPrefix[s.Prefix]; dup {
			return nil, nil, fmt.Errorf("onboarding: duplicate prefix %q", s.Prefix)
		}
		switch s.Kind {
		case KindChoice:
			if len(s.Options) == 0 {
				return nil, nil, fmt.Errorf("onboarding: choice field %s has no options", s.Field)
			}
		case KindTags:
			if len(s.Options) == 0 || s.slot.text == nil {
				return nil, nil, fmt.Errorf("onboarding: multi-select field %s needs options and a text slot", s.Field)
			}
		case KindInteger, KindDecimal:
			if s.Max < s.Min {
				return nil, nil, fmt.Errorf("onboarding: field %s has empty range", s.Field)
			}
			s.bounds = fmt.Sprintf("gte=%g,lte=%g", s.Min, s.Max)
		case KindText:
		default:
			return nil, nil, fmt.Errorf("onboarding: field %s has unknown kind", s.Field)
		}
		for _, o := range s.Options {
			for _, a := range o.Aliases {
				if a != strings.ToLower(a) {
					return nil, nil, fmt.Errorf("onboarding: alias %q of field %s must be lower case", a, s.Field)
				}
			}
		}
		byPrefix[s.Prefix] = s
	}
	return steps, byPrefix, nil
}
