package sentiment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDescribeNeutral(t *testing.T) {
	assert.Equal(t, "[User sentiment: neutral]", Describe(Neutral))
}

func TestDescribeTraits(t *testing.T) {
	tests := []struct {
		name string
		v    AffectVector
		want string
	}{
		{
			"guarded and disengaged",
			AffectVector{Valence: 0, Arousal: 0.5, Dominance: 0.5, Trust: 0.2, Engagement: 0.1},
			"[User sentiment: guarded, disengaged]",
		},
		{
			"positive and engaged",
			AffectVector{Valence: 0.8, Arousal: 0.5, Dominance: 0.5, Trust: 0.5, Engagement: 0.9},
			"[User sentiment: positive, engaged]",
		},
		{
			"negative and agitated",
			AffectVector{Valence: -0.6, Arousal: 0.9, Dominance: 0.5, Trust: 0.5, Engagement: 0.5},
			"[User sentiment: negative, agitated]",
		},
		{
			"calm and trusting",
			AffectVector{Valence: 0, Arousal: 0.1, Dominance: 0.5, Trust: 0.9, Engagement: 0.5},
			"[User sentiment: calm, trusting]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Describe(tt.v))
		})
	}
}

func TestAverage(t *testing.T) {
	avg := Average([]AffectVector{
		{Valence: 1, Arousal: 0.4, Trust: 0.6, Engagement: 0.8},
		{Valence: 0, Arousal: 0.6, Trust: 0.4, Engagement: 0.4},
	})
	assert.InDelta(t, 0.5, avg.Valence, 1e-9)
	assert.InDelta(t, 0.5, avg.Arousal, 1e-9)
	assert.InDelta(t, 0.5, avg.Trust, 1e-9)
	assert.InDelta(t, 0.6, avg.Engagement, 1e-9)
}

func TestAverageEmptyIsNeutral(t *testing.T) {
	assert.Equal(t, Neutral, Average(nil))
}

func TestInjectBeforeLastUserLine(t *testing.T) {
	prompt := "System instructions.\nUser: earlier\nAssistant: reply\nUser: latest question"
	out := Inject(prompt, "[User sentiment: neutral]")
	assert.Equal(t,
		"System instructions.\nUser: earlier\nAssistant: reply\n[User sentiment: neutral]\nUser: latest question",
		out)
}

func TestInjectPromptStartingWithUserLine(t *testing.T) {
	out := Inject("User: hello", "[User sentiment: neutral]")
	assert.Equal(t, "[User sentiment: neutral]\nUser: hello", out)
}

func TestInjectWithoutMarkerPrepends(t *testing.T) {
	out := Inject("Just instructions.", "[User sentiment: calm]")
	assert.Equal(t, "[User sentiment: calm]\n\nJust instructions.", out)
}

func TestInjectEmptySummaryIsIdentity(t *testing.T) {
	assert.Equal(t, "prompt", Inject("prompt", ""))
}
