package router

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joss/aiops/internal/skills"
	"github.com/joss/aiops/pkg/llm"
)

func testRegistry() *skills.Registry {
	return skills.NewRegistry(map[string]*skills.Skill{
		"k8s_install": {
			Name:        "k8s_install",
			Description: "Install and configure kubernetes clusters",
			Intents:     []string{"install kubernetes"},
		},
		"oran_basic": {
			Name:        "oran_basic",
			Description: "O-RAN deployment helpers",
		},
	})
}

func TestSelectSkillsMatches(t *testing.T) {
	mock := llm.NewMock().EnqueueClassify(`["k8s_install"]`)
	r := New(mock)

	selected := r.SelectSkills(context.Background(), "install kubernetes", testRegistry())
	assert.Equal(t, []string{"k8s_install"}, selected)

	// The routing prompt carries the user text and the catalogue
	// summaries.
	require.Len(t, mock.ClassifyPrompts, 1)
	assert.Contains(t, mock.ClassifyPrompts[0], "install kubernetes")
	assert.Contains(t, mock.ClassifyPrompts[0], "k8s_install")
	assert.Contains(t, mock.ClassifyPrompts[0], "oran_basic")
}

// Names the classifier invents are dropped, never trusted blindly.
func TestSelectSkillsDropsUnknown(t *testing.T) {
	mock := llm.NewMock().EnqueueClassify(`["k8s_install","made_up_skill"]`)
	r := New(mock)

	selected := r.SelectSkills(context.Background(), "install kubernetes", testRegistry())
	assert.Equal(t, []string{"k8s_install"}, selected)
}

// An unparseable classification fails open: empty selection, no error.
func TestSelectSkillsUnparseable(t *testing.T) {
	for _, reply := range []string{"not json", `{"skills":["a"]}`, ""} {
		mock := llm.NewMock().EnqueueClassify(reply)
		r := New(mock)

		selected := r.SelectSkills(context.Background(), "anything", testRegistry())
		assert.Empty(t, selected, "reply %q", reply)
	}
}

func TestSelectSkillsEmptyRegistry(t *testing.T) {
	mock := llm.NewMock()
	r := New(mock)

	selected := r.SelectSkills(context.Background(), "anything", skills.NewRegistry(nil))
	assert.Empty(t, selected)
	assert.Empty(t, mock.ClassifyPrompts, "no classification call for an empty catalogue")
}
