package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// TextSegment is one speakable chunk of the input script, roughly 6-8
// seconds of speech at 2.5 words per second.
type TextSegment struct {
	Text                     string  `json:"text"`
	WordCount                int     `json:"wordCount"`
	EstimatedDurationSeconds float64 `json:"estimatedDurationSeconds"`
}

// NewTextSegment derives the word count and duration from the text.
func NewTextSegment(text string) TextSegment {
	words := len(strings.Fields(text))
	return TextSegment{
		Text:                     text,
		WordCount:                words,
		EstimatedDurationSeconds: float64(words) / wordsPerSecond,
	}
}

// BaseDescriptions is the shared character/scene description block generated
// once per run and reused verbatim across all segment calls. It is never
// mutated after creation.
type BaseDescriptions struct {
	Physical        string `json:"physical"`
	Clothing        string `json:"clothing"`
	Environment     string `json:"environment"`
	Voice           string `json:"voice"`
	ProductHandling string `json:"product_handling"`
}

// VoiceProfile is the vocal-delivery fingerprint extracted from an early
// segment's dialogue. Read-only after extraction.
type VoiceProfile struct {
	PitchRange           string   `json:"pitch_range"`
	SpeakingRate         string   `json:"speaking_rate"`
	Tone                 string   `json:"tone"`
	BreathingPattern     string   `json:"breathing_pattern"`
	EmotionalInflections []string `json:"emotional_inflections"`
	AccentNotes          string   `json:"accent_notes,omitempty"`
}

// defaultVoiceProfile is substituted when voice-profile extraction fails so
// a continuation run can still complete.
func defaultVoiceProfile() *VoiceProfile {
	return &VoiceProfile{
		PitchRange:           "medium, conversational range",
		SpeakingRate:         "moderate, around 150 words per minute",
		Tone:                 "warm, friendly, authentic",
		BreathingPattern:     "natural pauses between sentences",
		EmotionalInflections: []string{"genuine enthusiasm", "casual emphasis on key points"},
	}
}

// GeneratedSegment is the parsed JSON object the model returns for one text
// segment. The pipeline keeps it opaque so client-side edits survive a
// round trip; only the two continuity fields below are ever read.
type GeneratedSegment map[string]interface{}

// TransitionPrep returns action_timeline.transition_prep, or "" when absent.
func (s GeneratedSegment) TransitionPrep() string {
	return nestedString(s, "action_timeline", "transition_prep")
}

// EndPosition returns segment_info.continuity_markers.end_position.
func (s GeneratedSegment) EndPosition() string {
	if info, ok := s["segment_info"].(map[string]interface{}); ok {
		return nestedString(info, "continuity_markers", "end_position")
	}
	return ""
}

// Dialogue returns action_timeline.dialogue, used for voice-profile
// extraction on the first segment of a continuation run.
func (s GeneratedSegment) Dialogue() string {
	return nestedString(s, "action_timeline", "dialogue")
}

func nestedString(m map[string]interface{}, outer, inner string) string {
	if o, ok := m[outer].(map[string]interface{}); ok {
		if v, ok := o[inner].(string); ok {
			return v
		}
	}
	return ""
}

// RunMetadata summarizes one generation run.
type RunMetadata struct {
	TotalSegments            int    `json:"totalSegments"`
	EstimatedDurationSeconds int    `json:"estimatedDurationSeconds"`
	CharacterID              string `json:"characterId"`
}

// RunResult is the full pipeline output for one request. Request-scoped,
// never persisted.
type RunResult struct {
	Segments     []GeneratedSegment `json:"segments"`
	Metadata     RunMetadata        `json:"metadata"`
	VoiceProfile *VoiceProfile      `json:"voiceProfile,omitempty"`
}

// buildCharacterID composes a stable identifier from the demographic and
// voice fields plus a short uniqueness token.
func buildCharacterID(gc *GenerationContext) string {
	parts := []string{gc.Gender, gc.Age, gc.Ethnicity, gc.Style}
	for i, p := range parts {
		parts[i] = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(p)), " ", "-")
	}
	return fmt.Sprintf("%s_%s", strings.Join(parts, "_"), uuid.New().String()[:8])
}

// decodeInto re-marshals a recovered JSON object into a typed struct.
func decodeInto(m map[string]interface{}, out interface{}) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("re-marshalling recovered object: %w", err)
	}
	return json.Unmarshal(data, out)
}
