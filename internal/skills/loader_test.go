package skills

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSkillFile(t *testing.T) {
	content := `---
name: nephio_r5
description: Install Nephio R5
intents: [install, nephio]
keywords: [kind, porch]
parameters:
  cluster: target kind cluster name
entrypoint: scripts/nephio.sh
---
You install Nephio R5 on kind clusters.
Always verify porch is healthy.`

	skill, err := parseSkillFile(content, "/skills/nephio.md")
	require.NoError(t, err)
	assert.Equal(t, "nephio_r5", skill.Name)
	assert.Equal(t, "Install Nephio R5", skill.Description)
	assert.Equal(t, []string{"install", "nephio"}, skill.Intents)
	assert.Equal(t, []string{"kind", "porch"}, skill.Keywords)
	assert.Equal(t, "target kind cluster name", skill.Parameters["cluster"])
	assert.Equal(t, "scripts/nephio.sh", skill.Entrypoint)
	assert.Equal(t, "You install Nephio R5 on kind clusters.\nAlways verify porch is healthy.", skill.SystemPrompt)
	assert.Equal(t, "/skills/nephio.md", skill.Source)
}

func TestParseSkillFileRejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no frontmatter", "just markdown text"},
		{"unterminated frontmatter", "---\nname: x\n"},
		{"missing name", "---\ndescription: no name\n---\nbody"},
		{"broken yaml", "---\nname: [unclosed\n---\nbody"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseSkillFile(tt.content, "test.md")
			assert.Error(t, err)
		})
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeSkill := func(rel, name string) {
		path := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		content := "---\nname: " + name + "\ndescription: d\n---\nprompt"
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}

	writeSkill("top.md", "top")
	writeSkill("nested/deep.md", "deep")
	// Broken files are skipped, not fatal.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.md"), []byte("no frontmatter"), 0644))

	loaded, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Len(t, loaded, 2)
	assert.Contains(t, loaded, "top")
	assert.Contains(t, loaded, "deep")
}

func TestLoadDirMissing(t *testing.T) {
	loaded, err := LoadDir(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestLoadBuiltins(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	registry, err := Load(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Greater(t, registry.Len(), 0, "embedded builtins must load")

	for _, name := range registry.Names() {
		sk, ok := registry.Get(name)
		require.True(t, ok)
		assert.Equal(t, "builtin", sk.Source)
		assert.NotEmpty(t, sk.SystemPrompt)
	}
}

func TestLoadUserShadowsBuiltin(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	base, err := Load(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	builtinName := base.Names()[0]

	ResetForTest()
	dir := t.TempDir()
	content := "---\nname: " + builtinName + "\ndescription: replaced\n---\nuser prompt"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shadow.md"), []byte(content), 0644))

	registry, err := Load(dir)
	require.NoError(t, err)
	sk, ok := registry.Get(builtinName)
	require.True(t, ok)
	assert.Equal(t, "replaced", sk.Description)
	assert.NotEqual(t, "builtin", sk.Source)
}

func TestLoadCached(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	first, err := Load("")
	require.NoError(t, err)
	second, err := Load("some/other/dir")
	require.NoError(t, err)
	assert.Same(t, first, second, "later loads return the cached registry")
}

func TestSummariesSorted(t *testing.T) {
	r := NewRegistry(map[string]*Skill{
		"zeta":  {Name: "zeta"},
		"alpha": {Name: "alpha"},
	})

	summaries := r.Summaries()
	require.Len(t, summaries, 2)
	assert.Equal(t, "alpha", summaries[0].Name)
	assert.Equal(t, "zeta", summaries[1].Name)
}
