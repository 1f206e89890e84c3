// Package sentiment turns affect vectors produced by the analysis
// worker into the short bracketed summary the pipeline splices into
// rendered prompts.
package sentiment

import (
	"strings"
)

// AffectVector is one scored reading of a user message. Valence runs
// -1..1; the others 0..1.
type AffectVector struct {
	Valence    float64 `json:"valence"`
	Arousal    float64 `json:"arousal"`
	Dominance  float64 `json:"dominance"`
	Trust      float64 `json:"trust"`
	Engagement float64 `json:"engagement"`
}

// Neutral is the midpoint vector; it describes as neutral.
var Neutral = AffectVector{Valence: 0, Arousal: 0.5, Dominance: 0.5, Trust: 0.5, Engagement: 0.5}

// Average collapses several readings into one. An empty input averages
// to Neutral.
func Average(vectors []AffectVector) AffectVector {
	if len(vectors) == 0 {
		return Neutral
	}

	var sum AffectVector
	for _, v := range vectors {
		sum.Valence += v.Valence
		sum.Arousal += v.Arousal
		sum.Dominance += v.Dominance
		sum.Trust += v.Trust
		sum.Engagement += v.Engagement
	}

	n := float64(len(vectors))
	return AffectVector{
		Valence:    sum.Valence / n,
		Arousal:    sum.Arousal / n,
		Dominance:  sum.Dominance / n,
		Trust:      sum.Trust / n,
		Engagement: sum.Engagement / n,
	}
}

// Describe renders the vector as the bracketed summary line, e.g.
// "[User sentiment: guarded, disengaged]". A vector with no notable
// signal describes as neutral.
func Describe(v AffectVector) string {
	var traits []string

	switch {
	case v.Valence > 0.3:
		traits = append(traits, "positive")
	case v.Valence < -0.3:
		traits = append(traits, "negative")
	}

	switch {
	case v.Arousal > 0.7:
		traits = append(traits, "agitated")
	case v.Arousal < 0.3:
		traits = append(traits, "calm")
	}

	switch {
	case v.Trust > 0.7:
		traits = append(traits, "trusting")
	case v.Trust < 0.3:
		traits = append(traits, "guarded")
	}

	switch {
	case v.Engagement > 0.7:
		traits = append(traits, "engaged")
	case v.Engagement < 0.3:
		traits = append(traits, "disengaged")
	}

	if len(traits) == 0 {
		return "[User sentiment: neutral]"
	}
	return "[User sentiment: " + strings.Join(traits, ", ") + "]"
}
