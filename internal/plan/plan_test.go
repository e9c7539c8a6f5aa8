package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProseWrapped(t *testing.T) {
	raw := `Sure, here is the plan:
{"status":"propose_script","script":"echo hi","notes":"simple"}
Let me know if that works.`

	p, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, StatusProposeScript, p.Status)
	assert.Equal(t, "echo hi", p.Script)
	assert.Equal(t, "simple", p.Notes)
	assert.True(t, p.HasScript())
}

func TestParseIdempotent(t *testing.T) {
	raw := `{"status":"clarify","questions":["Which cluster?"]}`

	first, err := Parse(raw)
	require.NoError(t, err)
	second, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestParseNoBracePair(t *testing.T) {
	for _, raw := range []string{"", "just prose", "} {", "unclosed {"} {
		_, err := Parse(raw)
		assert.ErrorIs(t, err, ErrMalformedPlan, "input %q", raw)
	}
}

func TestParseInvalidJSON(t *testing.T) {
	_, err := Parse("{status: broken}")
	assert.ErrorIs(t, err, ErrMalformedPlan)
}

func TestParseUnknownStatus(t *testing.T) {
	_, err := Parse(`{"status":"explode"}`)
	assert.ErrorIs(t, err, ErrUnknownStatus)
}

// Fields inconsistent with the status are dropped at parse time so the
// engine never acts on them.
func TestParseDropsInconsistentFields(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want func(t *testing.T, p *Plan)
	}{
		{
			name: "clarify drops script and patch",
			raw:  `{"status":"clarify","questions":["q"],"script":"echo no","patch":"--- a"}`,
			want: func(t *testing.T, p *Plan) {
				assert.Empty(t, p.Script)
				assert.Empty(t, p.Patch)
				assert.Equal(t, []string{"q"}, p.Questions)
			},
		},
		{
			name: "propose drops questions and patch",
			raw:  `{"status":"propose_script","script":"echo hi","questions":["q"],"patch":"--- a"}`,
			want: func(t *testing.T, p *Plan) {
				assert.Empty(t, p.Questions)
				assert.Empty(t, p.Patch)
				assert.Equal(t, "echo hi", p.Script)
			},
		},
		{
			name: "revise drops questions and script",
			raw:  `{"status":"revise_script","patch":"--- a\n+++ b\n+echo","script":"echo hi","questions":["q"]}`,
			want: func(t *testing.T, p *Plan) {
				assert.Empty(t, p.Questions)
				assert.Empty(t, p.Script)
				assert.True(t, p.HasPatch())
			},
		},
		{
			name: "ready keeps script",
			raw:  `{"status":"ready_to_run","script":"echo go"}`,
			want: func(t *testing.T, p *Plan) {
				assert.True(t, p.HasScript())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Parse(tt.raw)
			require.NoError(t, err)
			tt.want(t, p)
		})
	}
}

func TestBuildMessagesOrder(t *testing.T) {
	msgs := BuildMessages("skill text", "docs text", nil, "install nginx")

	require.Len(t, msgs, 4)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Contains(t, msgs[0].Content, JSONInstructions)
	assert.Contains(t, msgs[1].Content, "skill text")
	assert.Contains(t, msgs[2].Content, "docs text")
	assert.Equal(t, "user", msgs[3].Role)
	assert.Equal(t, "install nginx", msgs[3].Content)
}
