package onboarding

import (
	"strings"
	"testing"
)

func TestNormalizeNumericBounds(t *testing.T) {
	m := NewMachine()
	n := NewNormalizer()

	cases := []struct {
		field Field
		raw   string
		want  float64
		kind  ErrorKind
	}{
		{FieldAge, "150", 0, InvalidNumber},
		{FieldAge, "35", 35, ""},
		{FieldAge, "35 años", 35, ""},
		{FieldAge, "34,6", 35, ""},
		{FieldAge, "4", 0, InvalidNumber},
		{FieldAge, "treinta", 0, InvalidNumber},
		{FieldAge, "   ", 0, EmptyAnswer},
		{FieldWeight, "70,5", 70.5, ""},
		{FieldWeight, "82.3kg", 82.3, ""},
		{FieldWeight, "19", 0, InvalidNumber},
		{FieldHeight, "175", 175, ""},
		{FieldHeight, "1.75", 0, InvalidNumber},
		{FieldPlanWeeks, "0", 0, InvalidNumber},
		{FieldPlanWeeks, "52", 52, ""},
		{FieldCookingTime, "20 minutos", 20, ""},
		{FieldCookingTime, "cook_45", 45, ""},
	}

	for _, tc := range cases {
		v, err := n.Normalize(m.Step(tc.field), tc.raw, false)
		if tc.kind != "" {
			if !IsKind(err, tc.kind) {
				t.Errorf("%s %q: expected %s, got %v", tc.field, tc.raw, tc.kind, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s %q: unexpected error %v", tc.field, tc.raw, err)
			continue
		}
		if v.Num != tc.want {
			t.Errorf("%s %q: expected %v, got %v", tc.field, tc.raw, tc.want, v.Num)
		}
	}
}

func TestInvalidNumberNamesTheField(t *testing.T) {
	m := NewMachine()
	_, err := NewNormalizer().Normalize(m.Step(FieldAge), "150", false)
	ve, ok := AsValidation(err)
	if !ok {
		t.Fatalf("expected validation error, got %v", err)
	}
	if ve.Field != FieldAge {
		t.Fatalf("expected field age, got %s", ve.Field)
	}
	if !strings.Contains(ve.Reason, "tu edad") {
		t.Fatalf("expected reason to name the field, got %q", ve.Reason)
	}
}

func TestNormalizeChoices(t *testing.T) {
	m := NewMachine()
	n := NewNormalizer()

	cases := []struct {
		field  Field
		raw    string
		button bool
		want   string
	}{
		{FieldSex, "M", true, "Masculino"},
		{FieldSex, "hombre", false, "Masculino"},
		{FieldSex, "FEMENINO", false, "Femenino"},
		{FieldSex, "nd", true, "Prefiero no decir"},
		{FieldActivity, "muy_alto", true, "muy alta"},
		{FieldActivity, "Moderado", false, "moderada"},
		{FieldGoals, "keto", true, "desinflamar"},
		{FieldGoals, "Ganar músculo", false, "musculo"},
		{FieldEquipment, "microondas", false, "micro"},
	}
	for _, tc := range cases {
		v, err := n.Normalize(m.Step(tc.field), tc.raw, tc.button)
		if err != nil {
			t.Errorf("%s %q: unexpected error %v", tc.field, tc.raw, err)
			continue
		}
		if v.Str != tc.want {
			t.Errorf("%s %q: expected %q, got %q", tc.field, tc.raw, tc.want, v.Str)
		}
	}

	if _, err := n.Normalize(m.Step(FieldSex), "X", true); !IsKind(err, InvalidOption) {
		t.Fatalf("expected InvalidOption, got %v", err)
	}
	if _, err := n.Normalize(m.Step(FieldCookingTime), "99", true); !IsKind(err, InvalidOption) {
		t.Fatalf("expected unknown cooking button to be InvalidOption, got %v", err)
	}
}

func TestNormalizeFreeText(t *testing.T) {
	m := NewMachine()
	n := NewNormalizer()

	v, err := n.Normalize(m.Step(FieldAllergies), "  ninguna  ", false)
	if err != nil || v.Str != "ninguna" {
		t.Fatalf("expected trimmed answer, got %q, %v", v.Str, err)
	}
	if _, err := n.Normalize(m.Step(FieldCountry), "\t", false); !IsKind(err, EmptyAnswer) {
		t.Fatalf("expected EmptyAnswer, got %v", err)
	}
	long := strings.Repeat("ñ", maxTextRunes+1)
	if _, err := n.Normalize(m.Step(FieldLikedFoods), long, false); err == nil {
		t.Fatalf("expected overlong answer to fail")
	}
	if _, err := n.Normalize(m.Step(FieldLikedFoods), long[:len(long)-2], false); err != nil {
		t.Fatalf("expected %d runes to pass, got %v", maxTextRunes, err)
	}
}

func TestParseNumber(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"1.234,5", 1234.5, true},
		{"1,234.5", 1234.5, true},
		{"1.000.000", 1000000, true},
		{"-3", -3, true},
		{"+5", 5, true},
		{"3-4", 0, false},
		{".", 0, false},
		{"", 0, false},
		{"unos 70,5 kilos", 70.5, true},
	}
	for _, tc := range cases {
		got, ok := ParseNumber(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Errorf("ParseNumber(%q) = %v, %v; want %v, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
