package skills

import (
	"embed"
	"io/fs"
	"sort"
	"sync"
)

//go:embed builtin/*.md
var builtinFS embed.FS

// Registry is the immutable process-wide skill catalogue. It is
// computed once at startup; later loads return the cached result.
type Registry struct {
	skills map[string]*Skill
}

var (
	registry     *Registry
	registryOnce sync.Once
)

// Load builds the registry from the embedded builtins plus the user
// skill directory (user files shadow builtins of the same name).
// Process-wide: computed once, immutable afterwards.
func Load(userDir string) (*Registry, error) {
	var loadErr error
	registryOnce.Do(func() {
		registry, loadErr = build(userDir)
	})
	if loadErr != nil {
		return nil, loadErr
	}
	return registry, nil
}

// ResetForTest clears the cached registry (for testing).
func ResetForTest() {
	registryOnce = sync.Once{}
	registry = nil
}

func build(userDir string) (*Registry, error) {
	sub, err := fs.Sub(builtinFS, "builtin")
	if err != nil {
		return nil, err
	}
	merged, err := loadFS(sub)
	if err != nil {
		return nil, err
	}

	if userDir != "" {
		user, err := LoadDir(userDir)
		if err != nil {
			return nil, err
		}
		for name, sk := range user {
			merged[name] = sk
		}
	}
	return &Registry{skills: merged}, nil
}

// NewRegistry builds a registry directly from a skill map (for testing
// and for callers that manage their own catalogue source).
func NewRegistry(skills map[string]*Skill) *Registry {
	if skills == nil {
		skills = make(map[string]*Skill)
	}
	return &Registry{skills: skills}
}

// Get returns a skill by name.
func (r *Registry) Get(name string) (*Skill, bool) {
	sk, ok := r.skills[name]
	return sk, ok
}

// Names returns all skill names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.skills))
	for name := range r.skills {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Summaries returns routing summaries for every skill, sorted by name.
func (r *Registry) Summaries() []Summary {
	summaries := make([]Summary, 0, len(r.skills))
	for _, name := range r.Names() {
		summaries = append(summaries, r.skills[name].Summarize())
	}
	return summaries
}

// Len reports the number of registered skills.
func (r *Registry) Len() int {
	return len(r.skills)
}
