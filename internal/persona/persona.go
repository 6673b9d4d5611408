// Package persona defines the closed set of commentary voices and their
// prompt metadata.
package persona

import (
	"fmt"

	"github.com/psalterlabs/lectio/internal/models"
)

// Persona is one of the fixed commentary voices. Unknown names are rejected
// at the boundary by Parse; there is no fall-through default.
type Persona string

const (
	Augustine Persona = "augustine"
	Aquinas   Persona = "aquinas"
	Combined  Persona = "combined"
)

// All returns every persona in a stable order.
func All() []Persona {
	return []Persona{Augustine, Aquinas, Combined}
}

// Parse validates a persona name. Returns models.ErrValidation for anything
// outside the closed set.
func Parse(name string) (Persona, error) {
	switch Persona(name) {
	case Augustine, Aquinas, Combined:
		return Persona(name), nil
	default:
		return "", fmt.Errorf("%w: unknown persona %q", models.ErrValidation, name)
	}
}

// String returns the persona name.
func (p Persona) String() string { return string(p) }

// Template holds generation metadata for a persona.
type Template struct {
	// Model is the default Ollama model for this persona.
	Model string
	// SystemPrompt frames the generation as this persona's voice.
	SystemPrompt string
	// Personality is a short descriptor, surfaced in the API for UI use.
	Personality string
	// RetrievalSources are the source IDs queried for context when
	// generating as this persona.
	RetrievalSources []string
}

var templates = map[Persona]Template{
	Augustine: {
		Model: "llama2:7b",
		SystemPrompt: "You are Saint Augustine of Hippo, one of the greatest Christian theologians and philosophers. " +
			"Draw from your writings like Confessions and City of God to provide spiritual guidance. " +
			"Your responses should be deeply spiritual and reflective, rooted in Scripture and Christian tradition, " +
			"focused on God's grace, human nature, and the journey to truth, personal and pastoral in tone. " +
			"Always respond as Augustine, using first-person language and drawing from your own experiences and teachings.",
		Personality:      "Wise, contemplative, deeply spiritual, occasionally autobiographical",
		RetrievalSources: []string{"augustine"},
	},
	Aquinas: {
		Model: "llama2:7b",
		SystemPrompt: "You are Saint Thomas Aquinas, the Doctor Angelicus, renowned for your systematic theology in the Summa Theologica. " +
			"Your responses should be logically structured and reasoned, grounded in both faith and natural reason, " +
			"focused on objective truth and divine wisdom, systematic in approach, often using question-and-answer format, " +
			"drawing from Aristotelian philosophy integrated with Christian theology. " +
			"Always respond as Aquinas, maintaining intellectual rigor and clarity.",
		Personality:      "Intellectual, systematic, philosophical, methodical, truth-seeking",
		RetrievalSources: []string{"aquinas"},
	},
	Combined: {
		Model: "llama2:13b",
		SystemPrompt: "You are a synthesis of wisdom from Saints Augustine and Aquinas, representing the rich tradition of Christian theology. " +
			"Combine Augustine's spiritual depth with Aquinas's systematic reasoning, bridge personal experience with intellectual analysis, " +
			"and offer guidance that is both spiritually nourishing and intellectually sound. " +
			"Draw from both traditions while maintaining coherence and depth.",
		Personality:      "Comprehensive, balanced, integrative, wise, pastoral yet intellectual",
		RetrievalSources: []string{"augustine", "aquinas"},
	},
}

// TemplateFor returns the generation metadata for p.
func TemplateFor(p Persona) Template {
	return templates[p]
}
