package skills

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/joss/aiops/internal/logging"
)

// Skills are markdown files with YAML frontmatter:
//
//	---
//	name: nephio_r5
//	description: Install Nephio R5 on a kind cluster
//	intents: [install, nephio]
//	parameters:
//	  cluster: target kind cluster name
//	---
//	System prompt text follows the second delimiter.

// parseSkillFile extracts a skill from a markdown document.
// A file without a parseable name is rejected.
func parseSkillFile(content, source string) (*Skill, error) {
	front, body, ok := splitFrontmatter(content)
	if !ok {
		return nil, fmt.Errorf("missing frontmatter: %s", source)
	}

	skill := &Skill{Source: source}
	if err := yaml.Unmarshal([]byte(front), skill); err != nil {
		return nil, fmt.Errorf("parsing frontmatter of %s: %w", source, err)
	}
	if skill.Name == "" {
		return nil, fmt.Errorf("skill without name: %s", source)
	}
	skill.SystemPrompt = strings.TrimSpace(body)
	return skill, nil
}

func splitFrontmatter(content string) (front, body string, ok bool) {
	if !strings.HasPrefix(content, "---") {
		return "", "", false
	}
	parts := strings.SplitN(content, "---", 3)
	if len(parts) < 3 {
		return "", "", false
	}
	return parts[1], parts[2], true
}

// LoadDir discovers skill files under dir, including nested
// directories. Broken files are logged and skipped.
func LoadDir(dir string) (map[string]*Skill, error) {
	loaded := make(map[string]*Skill)
	log := logging.New("skills")

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return loaded, nil
	}

	matches, err := doublestar.Glob(os.DirFS(dir), "**/*.md")
	if err != nil {
		return nil, fmt.Errorf("scanning skill directory: %w", err)
	}

	for _, rel := range matches {
		path := filepath.Join(dir, rel)
		content, err := os.ReadFile(path)
		if err != nil {
			log.Warn("skill_read_failed", map[string]interface{}{"path": path}, err)
			continue
		}
		skill, err := parseSkillFile(string(content), path)
		if err != nil {
			log.Warn("skill_parse_failed", map[string]interface{}{"path": path}, err)
			continue
		}
		loaded[skill.Name] = skill
	}
	return loaded, nil
}

// loadFS parses every markdown file in an fs.FS (used for builtins).
func loadFS(fsys fs.FS) (map[string]*Skill, error) {
	loaded := make(map[string]*Skill)

	matches, err := doublestar.Glob(fsys, "**/*.md")
	if err != nil {
		return nil, err
	}
	for _, name := range matches {
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, err
		}
		skill, err := parseSkillFile(string(content), "builtin")
		if err != nil {
			return nil, err
		}
		loaded[skill.Name] = skill
	}
	return loaded, nil
}
