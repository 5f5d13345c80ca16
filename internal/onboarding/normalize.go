package onboarding

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

const maxTextRunes = 500

// Normalizer turns one raw answer into a Value for a step. It holds no
// per-chat state and is safe for concurrent use.
type Normalizer struct {
	validate *validator.Validate
}

func NewNormalizer() *Normalizer {
	return &Normalizer{validate: validator.New()}
}

// Normalize validates raw for step s. button reports whether raw came from a
// keyboard payload (already stripped of its prefix).
func (n *Normalizer) Normalize(s *Step, raw string, button bool) (Value, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Value{}, emptyAnswer(s.Field)
	}

	switch s.Kind {
	case KindChoice:
		opt, ok := s.match(raw)
		if !ok {
			return Value{}, invalidOption(s.Field, fmt.Sprintf("Opción no válida para %s. Elige una de las opciones.", s.Noun))
		}
		return Value{Str: opt.stored()}, nil

	case KindTags:
		opt, ok := s.match(raw)
		if !ok {
			return Value{}, invalidOption(s.Field, fmt.Sprintf("Opción no válida para %s. Usa los botones.", s.Noun))
		}
		return Value{Str: opt.Tag}, nil

	case KindInteger, KindDecimal:
		if opt, ok := s.match(raw); ok {
			f, err := strconv.ParseFloat(opt.stored(), 64)
			if err == nil {
				return Value{Num: f}, nil
			}
		}
		if button && len(s.Options) > 0 {
			return Value{}, invalidOption(s.Field, fmt.Sprintf("Opción no válida para %s.", s.Noun))
		}
		return n.number(s, raw)

	case KindText:
		if err := n.validate.Var(raw, fmt.Sprintf("max=%d", maxTextRunes)); err != nil {
			return Value{}, &ValidationError{Field: s.Field, Kind: InvalidOption,
				Reason: fmt.Sprintf("La respuesta es demasiado larga (máximo %d caracteres).", maxTextRunes)}
		}
		return Value{Str: raw}, nil
	}

	return Value{}, invalidOption(s.Field, "Campo desconocido.")
}

func (n *Normalizer) number(s *Step, raw string) (Value, error) {
	hint := fmt.Sprintf("Escribe un número válido para %s (entre %s y %s).", s.Noun, formatNum(s.Min), formatNum(s.Max))

	f, ok := ParseNumber(raw)
	if !ok {
		return Value{}, invalidNumber(s.Field, hint)
	}

	decimals := s.Decimals
	if s.Kind == KindInteger {
		decimals = 0
	}
	f = roundTo(f, decimals)

	if err := n.validate.Var(f, s.bounds); err != nil {
		return Value{}, invalidNumber(s.Field, hint)
	}
	return Value{Num: f}, nil
}

// ParseNumber extracts a number from free text. Everything except digits,
// signs and separators is dropped. Comma and period are both accepted as the
// decimal separator; when both appear, the last one is the decimal mark and
// the other is a grouping mark.
func ParseNumber(raw string) (float64, bool) {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',', r == '-', r == '+':
			b.WriteRune(r)
		}
	}
	s := b.String()
	if s == "" {
		return 0, false
	}

	sign := ""
	if s[0] == '-' || s[0] == '+' {
		sign, s = s[:1], s[1:]
	}
	if strings.ContainsAny(s, "+-") || s == "" {
		return 0, false
	}

	dots, commas := strings.Count(s, "."), strings.Count(s, ",")
	switch {
	case dots > 0 && commas > 0:
		dec, group := ".", ","
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			dec, group = ",", "."
		}
		if strings.Count(s, dec) > 1 {
			return 0, false
		}
		s = strings.ReplaceAll(s, group, "")
		s = strings.Replace(s, dec, ".", 1)
	case commas == 1:
		s = strings.Replace(s, ",", ".", 1)
	case commas > 1:
		s = strings.ReplaceAll(s, ",", "")
	case dots > 1:
		s = strings.ReplaceAll(s, ".", "")
	}

	if !strings.ContainsAny(s, "0123456789") {
		return 0, false
	}
	f, err := strconv.ParseFloat(sign+s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func roundTo(f float64, decimals int) float64 {
	if decimals <= 0 {
		return math.Round(f)
	}
	p := math.Pow(10, float64(decimals))
	return math.Round(f*p) / p
}

func formatNum(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
