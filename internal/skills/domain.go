// Package skills provides the capability catalogue for the agent.
package skills

// Skill represents a capability descriptor. The system prompt is
// injected verbatim into the model call when the skill is selected;
// the entrypoint, when present, names an external action and is
// opaque to the engine.
type Skill struct {
	Name         string            `yaml:"name"`
	Description  string            `yaml:"description"`
	Intents      []string          `yaml:"intents"`
	Keywords     []string          `yaml:"keywords"`
	Parameters   map[string]string `yaml:"parameters"`
	Entrypoint   string            `yaml:"entrypoint"`
	SystemPrompt string            `yaml:"-"`

	// Source is the file the skill was loaded from ("builtin" for
	// embedded skills).
	Source string `yaml:"-"`
}

// Summary is the compact form handed to the router.
type Summary struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Intents     []string `json:"intents"`
}

// Summarize returns the routing summary of the skill.
func (s *Skill) Summarize() Summary {
	return Summary{
		Name:        s.Name,
		Description: s.Description,
		Intents:     s.Intents,
	}
}
