package onboarding

import "github.com/yoockh/nutricoach/internal/models"

// Choice is one keyboard button of a prompt.
type Choice struct {
	Label    string `json:"label"`
	Value    string `json:"value"`
	Selected bool   `json:"selected"`
}

// Prompt is what the dispatcher renders into a chat message. Field is zero
// for prompts that are not onboarding questions.
type Prompt struct {
	Field                Field    `json:"field,omitempty"`
	Text                 string   `json:"text"`
	Warning              string   `json:"warning,omitempty"`
	Choices              []Choice `json:"choices,omitempty"`
	RequiresConfirmation bool     `json:"requires_confirmation"`
}

const (
	DoneTag      = "done"
	ResetConfirm = "reset_confirm"
	ResetCancel  = "reset_cancel"

	WelcomeText  = "¡Hola! Soy tu coach nutricional 🤖🥗. Vamos a configurar tu perfil paso a paso."
	CompleteText = "🎉 ¡Perfil completo! Ya puedes ver tu plan actual, generar tu dieta y registrar tu progreso."
)

func stepPrompt(p *models.Profile, s *Step, warning string) Prompt {
	out := Prompt{Field: s.Field, Text: s.Question, Warning: warning}

	switch s.Kind {
	case KindChoice, KindInteger:
		for _, o := range s.Options {
			out.Choices = append(out.Choices, Choice{Label: o.Label, Value: s.payload(o.Tag)})
		}
	case KindTags:
		selected := DecodeTags(*s.slot.text(p))
		for _, o := range s.Options {
			out.Choices = append(out.Choices, Choice{
				Label:    o.Label,
				Value:    s.payload(o.Tag),
				Selected: selected.Has(o.Tag),
			})
		}
		out.Choices = append(out.Choices, Choice{Label: "Continuar ✅", Value: s.payload(DoneTag)})
		out.RequiresConfirmation = true
	}
	return out
}

// ResetPrompt asks the user to confirm wiping the profile.
func ResetPrompt() Prompt {
	return Prompt{
		Text: "⚠️ Ya tienes un perfil guardado. ¿Quieres borrarlo y empezar de nuevo?",
		Choices: []Choice{
			{Label: "Sí, empezar de nuevo", Value: ResetConfirm},
			{Label: "Cancelar", Value: ResetCancel},
		},
		RequiresConfirmation: true,
	}
}

func completePrompt() Prompt {
	return Prompt{Text: CompleteText}
}
