package onboarding

import (
	"fmt"
	"strings"

	"github.com/yoockh/nutricoach/internal/models"
)

type EventKind string

const (
	EventText   EventKind = "text"
	EventButton EventKind = "button"
	// EventResume asks for the current prompt without answering it.
	EventResume EventKind = "resume"
)

// Event is one inbound user action, already decoded from the transport.
type Event struct {
	ChatID  string    `json:"chat_id"`
	Kind    EventKind `json:"kind"`
	Payload string    `json:"payload"`
}

// Outcome is the machine's decision for one event.
type Outcome struct {
	Prompt Prompt

	Complete  bool // profile is complete after this event
	Finished  bool // this event completed onboarding
	Changed   bool // profile must be saved
	Created   bool // profile was created for this event
	Restarted bool // stored cursor was out of range and onboarding restarted

	Err error // validation error behind Prompt.Warning
}

const staleWarning = "Esa opción ya no está disponible. Responde a la pregunta actual."

// older keyboards used these payload prefixes
var legacyPrefixes = map[string]string{
	"act":  "actividad",
	"cook": "tiempo",
	"sex":  "sexo",
	"goal": "objetivo",
	"diet": "dieta",
}

var doneWords = map[string]bool{
	DoneTag: true, "listo": true, "continuar": true, "hecho": true, "ok": true,
}

// Machine owns the ordered questionnaire. Its decision methods work on an
// in-memory profile and never touch storage; Process wraps them in a
// per-chat critical section.
type Machine struct {
	steps    []Step
	byPrefix map[string]*Step
	norm     *Normalizer
}

func NewMachine() *Machine {
	steps, byPrefix, err := buildTable(defaultSteps())
	if err != nil {
		panic(err)
	}
	return &Machine{steps: steps, byPrefix: byPrefix, norm: NewNormalizer()}
}

// Step returns the step for f, or nil.
func (m *Machine) Step(f Field) *Step {
	if f < 1 || int(f) > len(m.steps) {
		return nil
	}
	return &m.steps[f-1]
}

func (m *Machine) met(p *models.Profile, s *Step) bool {
	if !s.slot.isSet(p) {
		return false
	}
	if s.Kind == KindTags {
		return p.StepCursor == 0 || p.StepCursor > s.Index()
	}
	return true
}

// Current returns the lowest-indexed step whose answer is still missing.
// ok is false when every step is answered.
func (m *Machine) Current(p *models.Profile) (s *Step, ok bool) {
	for i := range m.steps {
		if !m.met(p, &m.steps[i]) {
			return &m.steps[i], true
		}
	}
	return nil, false
}

// Advance stores v for s and moves the cursor past s. The cursor never
// moves backwards.
func (m *Machine) Advance(p *models.Profile, s *Step, v Value) {
	s.slot.assign(p, v)
	advanceCursor(p, s)
}

func advanceCursor(p *models.Profile, s *Step) {
	if p.StepCursor != 0 && p.StepCursor < s.Index()+1 {
		p.StepCursor = s.Index() + 1
	}
}

// Answered reports whether any step holds an answer.
func (m *Machine) Answered(p *models.Profile) bool {
	for i := range m.steps {
		if m.steps[i].slot.isSet(p) {
			return true
		}
	}
	return false
}

// Restart clears every answer and puts the cursor on the first step.
func (m *Machine) Restart(p *models.Profile) {
	for i := range m.steps {
		m.steps[i].slot.clear(p)
	}
	p.StepCursor = 1
}

// Apply decides what ev does to p, mutating p in place.
func (m *Machine) Apply(p *models.Profile, ev Event) Outcome {
	if p.StepCursor < 0 || p.StepCursor > StepCount {
		m.Restart(p)
		return Outcome{Prompt: stepPrompt(p, &m.steps[0], ""), Changed: true, Restarted: true}
	}
	if p.Complete() {
		return Outcome{Complete: true}
	}

	cur, ok := m.Current(p)
	if !ok {
		return m.next(p, Outcome{})
	}

	payload := strings.TrimSpace(ev.Payload)
	switch ev.Kind {
	case EventButton:
		return m.applyButton(p, cur, payload)
	case EventText:
		return m.applyText(p, cur, payload)
	default:
		return Outcome{Prompt: stepPrompt(p, cur, "")}
	}
}

func (m *Machine) applyText(p *models.Profile, cur *Step, raw string) Outcome {
	if cur.Kind == KindTags {
		return m.applyTags(p, cur, raw, false)
	}
	v, err := m.norm.Normalize(cur, raw, false)
	if err != nil {
		return reject(p, cur, err)
	}
	m.Advance(p, cur, v)
	return m.next(p, Outcome{Changed: true})
}

func (m *Machine) applyButton(p *models.Profile, cur *Step, payload string) Outcome {
	target, value := m.route(payload, cur)

	switch {
	case target.Index() == cur.Index():
		if cur.Kind == KindTags {
			return m.applyTags(p, cur, value, true)
		}
		v, err := m.norm.Normalize(cur, value, true)
		if err != nil {
			return reject(p, cur, err)
		}
		m.Advance(p, cur, v)
		return m.next(p, Outcome{Changed: true})

	case target.Index() < cur.Index():
		return m.overwrite(p, cur, target, value)

	default:
		return Outcome{Prompt: stepPrompt(p, cur, staleWarning)}
	}
}

// route finds the step a button payload belongs to. Payloads without a
// known prefix are taken as answers to the current step.
func (m *Machine) route(payload string, cur *Step) (*Step, string) {
	if prefix, rest, found := strings.Cut(payload, "_"); found {
		if alias, ok := legacyPrefixes[prefix]; ok {
			prefix = alias
		}
		if s, ok := m.byPrefix[prefix]; ok {
			return s, rest
		}
	}
	return cur, payload
}

func (m *Machine) applyTags(p *models.Profile, s *Step, raw string, button bool) Outcome {
	ref := s.slot.text(p)

	key := strings.ToLower(strings.TrimSpace(raw))
	if key == DoneTag || (!button && doneWords[key]) {
		if len(DecodeTags(*ref)) == 0 {
			err := &ValidationError{Field: s.Field, Kind: EmptyAnswer, Reason: "Selecciona al menos una opción antes de continuar."}
			return reject(p, s, err)
		}
		advanceCursor(p, s)
		return m.next(p, Outcome{Changed: true})
	}

	tokens := []string{raw}
	if !button {
		tokens = DecodeTags(raw).Sorted()
	}
	tags := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		v, err := m.norm.Normalize(s, tok, button)
		if err != nil {
			return reject(p, s, err)
		}
		tags = append(tags, v.Str)
	}
	if len(tags) == 0 {
		return reject(p, s, emptyAnswer(s.Field))
	}

	for _, t := range tags {
		*ref = ToggleTag(*ref, t)
	}
	return Outcome{Prompt: stepPrompt(p, s, ""), Changed: true}
}

// overwrite re-answers a step the user already passed. The cursor stays
// where it is and the current question is asked again.
func (m *Machine) overwrite(p *models.Profile, cur, target *Step, value string) Outcome {
	if target.Kind == KindTags {
		if strings.EqualFold(value, DoneTag) {
			return Outcome{Prompt: stepPrompt(p, cur, "")}
		}
		v, err := m.norm.Normalize(target, value, true)
		if err != nil {
			return reject(p, cur, err)
		}
		ref := target.slot.text(p)
		next := ToggleTag(*ref, v.Str)
		if next == "" {
			return Outcome{Prompt: stepPrompt(p, cur, fmt.Sprintf("No puedes dejar %s sin ninguna opción.", target.Noun))}
		}
		*ref = next
		return Outcome{Prompt: stepPrompt(p, cur, ""), Changed: true}
	}

	v, err := m.norm.Normalize(target, value, true)
	if err != nil {
		return reject(p, cur, err)
	}
	target.slot.assign(p, v)
	return Outcome{Prompt: stepPrompt(p, cur, ""), Changed: true}
}

// next fills in the prompt for whatever step is now current, or marks the
// profile complete.
func (m *Machine) next(p *models.Profile, out Outcome) Outcome {
	if s, ok := m.Current(p); ok {
		out.Prompt = stepPrompt(p, s, "")
		return out
	}
	p.StepCursor = 0
	out.Complete = true
	out.Finished = true
	out.Changed = true
	out.Prompt = completePrompt()
	return out
}

func reject(p *models.Profile, s *Step, err error) Outcome {
	warning := "Respuesta no válida."
	if ve, ok := AsValidation(err); ok {
		warning = ve.Reason
	}
	return Outcome{Prompt: stepPrompt(p, s, warning), Err: err}
}
