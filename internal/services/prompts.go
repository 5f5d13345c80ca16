package services

import (
	"fmt"
	"strings"

	"github.com/yoockh/nutricoach/internal/models"
	"github.com/yoockh/nutricoach/internal/nutrition"
	"github.com/yoockh/nutricoach/internal/onboarding"
)

const (
	MenuPlan   = "menu_plan"
	MenuMacros = "menu_macros"
	MenuCoach  = "menu_coach"
	MenuReset  = "menu_reset"
	MenuMain   = "menu_main"
)

const coachSystemPrompt = "Eres NutriCoach, un coach nutricional motivador, práctico y seguro. " +
	"Hablas en español, con mensajes breves y accionables. " +
	"Estructura cada respuesta: valida → micro-objetivo hoy → plan concreto → compromiso → recordatorio. " +
	"Nunca juzgas ni prescribes. Evitas recomendaciones médicas. " +
	"Si el usuario menciona embarazo, patologías, TCA o medicación, recomiendas consulta profesional " +
	"y das pautas generales: comidas completas, evitar ultraprocesados, hidratación, sueño. " +
	"Para cálculos o menús detallados, sugiere usar los comandos /macros o /plan. " +
	"Cierra siempre con una micro-acción para hoy (≤5 min)."

const planSystemPrompt = "Eres un nutricionista que diseña menús semanales realistas. " +
	"Respondes solo con un objeto JSON válido, sin texto adicional. " +
	"Respeta siempre alergias y alimentos prohibidos, el tiempo de cocina y el equipamiento disponible."

const (
	helpText = "Comandos útiles:\n" +
		"• /start – Empezar o rehacer tu perfil.\n" +
		"• /menu – Menú principal (sale del modo coach).\n" +
		"• /plan – Generar tu plan de comidas.\n" +
		"• /macros – Ver calorías y macros objetivo.\n" +
		"• /coach – Hablar con tu coach.\n" +
		"• /reset – Borrar tu perfil y empezar de cero."

	menuText          = "¿Qué quieres hacer ahora?"
	alreadyDoneText   = "Tu perfil ya está completo. Elige una opción o usa /coach para hablar conmigo."
	needProfileText   = "Primero necesito completar tu perfil 🙂"
	retryText         = "⚠️ No pude guardar tu respuesta. Inténtalo de nuevo en unos segundos."
	coachIntroText    = "💬 Modo coach activado. Cuéntame qué tal vas; escribe /menu para salir."
	coachDownText     = "El coach no está disponible ahora mismo. Inténtalo más tarde."
	planQueuedText    = "🍳 Estoy preparando tu plan. Te aviso en cuanto esté listo."
	planPendingText   = "⏳ Tu plan ya se está generando, dame un momento."
	planFailedText    = "No pude generar tu plan esta vez. Vuelve a intentarlo con /plan."
	voiceFailedText   = "No pude entender el audio. ¿Puedes escribir tu respuesta?"
	voiceDisabledText = "Por ahora no puedo procesar audios. Escribe tu respuesta, por favor."
)

// MainMenu is the keyboard shown once onboarding is complete.
func MainMenu(text string) onboarding.Prompt {
	return onboarding.Prompt{
		Text: text,
		Choices: []onboarding.Choice{
			{Label: "🍽️ Generar plan", Value: MenuPlan},
			{Label: "🔥 Mis macros", Value: MenuMacros},
			{Label: "💬 Hablar con el coach", Value: MenuCoach},
			{Label: "♻️ Rehacer perfil", Value: MenuReset},
		},
	}
}

func message(text string) onboarding.Prompt { return onboarding.Prompt{Text: text} }

func macrosText(t nutrition.Targets) string {
	return fmt.Sprintf("🔥 Calorías objetivo: %d kcal\n🥩 Proteína: %d g\n🧈 Grasa: %d g\n🍚 Carbohidratos: %d g\n\nMetabolismo basal ~%d kcal, gasto diario ~%d kcal.",
		t.Calories, t.ProteinG, t.FatG, t.CarbsG, t.BMR, t.TDEE)
}

func planReadyText(plan *models.MealPlan) string {
	var b strings.Builder
	b.WriteString("✅ ¡Tu plan está listo!")
	if plan.Title != "" {
		b.WriteString(" " + plan.Title)
	}
	b.WriteString("\n\n")
	b.WriteString(plan.Days[0].Summary())
	if len(plan.Days) > 1 {
		fmt.Fprintf(&b, "\n\n…y %d días más guardados en tu plan.", len(plan.Days)-1)
	}
	return b.String()
}

// profileSummary is the context line the language model gets about the user.
func profileSummary(p *models.Profile) string {
	var parts []string
	add := func(label, v string) {
		if strings.TrimSpace(v) != "" {
			parts = append(parts, label+": "+v)
		}
	}
	add("sexo", p.Sex)
	if p.Age != nil {
		add("edad", fmt.Sprint(*p.Age))
	}
	if p.HeightCM != nil {
		add("altura_cm", fmt.Sprint(*p.HeightCM))
	}
	if p.WeightKG != nil {
		add("peso_kg", fmt.Sprint(*p.WeightKG))
	}
	add("actividad", p.ActivityLevel)
	add("objetivos", strings.Join(onboarding.DecodeTags(p.GoalTags).Sorted(), ", "))
	add("dietas", strings.Join(onboarding.DecodeTags(p.DietStyleTags).Sorted(), ", "))
	add("le gusta", p.LikedFoods)
	add("no le gusta", p.DislikedFoods)
	add("alergias", p.Allergies)
	add("prohibidos", p.ForbiddenFoods)
	if p.CookingTimeMinutes != nil {
		add("minutos para cocinar", fmt.Sprint(*p.CookingTimeMinutes))
	}
	add("equipamiento", strings.Join(onboarding.DecodeTags(p.EquipmentTags).Sorted(), ", "))
	add("país", p.Country)
	if p.TargetCalories != nil {
		add("kcal objetivo", fmt.Sprint(*p.TargetCalories))
	}
	return "Perfil del usuario: " + strings.Join(parts, "; ") + "."
}

// PlanReady announces a finished plan with its first day and the main menu.
func PlanReady(plan *models.MealPlan) onboarding.Prompt { return MainMenu(planReadyText(plan)) }

func PlanFailed() onboarding.Prompt { return message(planFailedText) }
