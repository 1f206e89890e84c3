package guardrail

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyOrdersByPriorityDescending(t *testing.T) {
	cfg := &Config{Rules: []Rule{
		{Type: RuleTypeInstruction, Priority: 1, Content: "A"},
		{Type: RuleTypeInstruction, Priority: 5, Content: "B"},
	}}

	out := Apply("prompt", cfg)
	assert.Equal(t, "B\n\nA\n\nprompt", out)
}

func TestApplyStableWithinPriority(t *testing.T) {
	cfg := &Config{Rules: []Rule{
		{Type: RuleTypeInstruction, Priority: 2, Content: "first"},
		{Type: RuleTypeInstruction, Priority: 2, Content: "second"},
		{Type: RuleTypeInstruction, Priority: 2, Content: "third"},
	}}

	out := Apply("base", cfg)
	assert.Equal(t, "first\n\nsecond\n\nthird\n\nbase", out)
}

func TestApplySkipsNonInstructionRules(t *testing.T) {
	cfg := &Config{Rules: []Rule{
		{Type: "topic_block", Priority: 10, Content: "never shown"},
		{Type: RuleTypeInstruction, Priority: 1, Content: "shown"},
		{Type: RuleTypeInstruction, Priority: 0, Content: ""},
	}}

	out := Apply("base", cfg)
	assert.Equal(t, "shown\n\nbase", out)
}

func TestApplyIdentity(t *testing.T) {
	assert.Equal(t, "base", Apply("base", nil))
	assert.Equal(t, "base", Apply("base", &Config{}))
	assert.Equal(t, "base", Apply("base", &Config{Rules: []Rule{
		{Type: "topic_block", Priority: 3},
	}}))
}

func TestApplyDoesNotMutateConfig(t *testing.T) {
	cfg := &Config{Rules: []Rule{
		{Type: RuleTypeInstruction, Priority: 1, Content: "low"},
		{Type: RuleTypeInstruction, Priority: 9, Content: "high"},
	}}

	Apply("base", cfg)
	assert.Equal(t, "low", cfg.Rules[0].Content)
	assert.Equal(t, "high", cfg.Rules[1].Content)
}

func TestRuleUnknownFieldsSurviveRoundTrip(t *testing.T) {
	in := []byte(`{"type":"topic_block","priority":4,"topics":["medical","legal"],"mode":"strict"}`)

	var r Rule
	require.NoError(t, json.Unmarshal(in, &r))
	assert.Equal(t, "topic_block", r.Type)
	assert.Equal(t, 4, r.Priority)
	assert.JSONEq(t, `["medical","legal"]`, string(r.Extra["topics"]))

	out, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, string(in), string(out))
}

func TestRuleRejectsNonObject(t *testing.T) {
	var r Rule
	assert.Error(t, json.Unmarshal([]byte(`"just a string"`), &r))
}

func TestValidateRulesMissingType(t *testing.T) {
	err := ValidateRules([]Rule{{Priority: 1, Content: "x"}})
	assert.Error(t, err)
}
