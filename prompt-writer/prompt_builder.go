package main

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Setting modes supported by the boundary contract.
const (
	SettingSingle        = "single"
	SettingHomeTour      = "home-tour"
	SettingIndoorOutdoor = "indoor-outdoor"
	SettingAIInspired    = "ai-inspired"
)

// Energy arcs.
const (
	ArcBuilding        = "building"
	ArcProblemSolution = "problem-solution"
	ArcDiscovery       = "discovery"
	ArcConsistent      = "consistent"
)

// GenerationContext carries the run-level fields every prompt needs. It is
// built once per request and read-only afterwards.
type GenerationContext struct {
	Product   string
	Gender    string
	Age       string
	Ethnicity string
	Style     string
	Format    string // standard | enhanced
	EnergyArc string
}

// ContinuityState is what sequential generation threads from segment i to
// segment i+1.
type ContinuityState struct {
	Previous     GeneratedSegment
	VoiceProfile *VoiceProfile
}

// energyForSegment maps a position in the sequence onto an energy
// percentage and delivery description for the configured arc.
func energyForSegment(arc string, segmentNumber, totalSegments int) (int, string) {
	progress := 0.0
	if totalSegments > 1 {
		progress = float64(segmentNumber-1) / float64(totalSegments-1)
	}

	switch arc {
	case ArcBuilding:
		// Linear ramp from 60% to 95% across the run.
		return 60 + int(progress*35), "steadily building excitement and conviction"
	case ArcProblemSolution:
		switch {
		case progress < 0.3:
			return 60, "concerned, empathetic delivery while describing the problem"
		case progress < 0.7:
			return 75, "focused, hands-on delivery while working through the solution"
		default:
			return 90, "excited, relieved delivery now that the solution works"
		}
	case ArcDiscovery:
		if progress < 0.5 {
			return 70, "curious, intrigued delivery while exploring the product"
		}
		return 85, "convinced, enthusiastic delivery after seeing results"
	default: // consistent
		return 80, "steady, confident delivery throughout"
	}
}

// buildLocationSequence derives one location per segment before generation
// starts. Single mode repeats one location; the multi-location modes map
// the supplied list index-for-index and repeat the last entry for overflow.
func buildLocationSequence(settingMode, room string, locations []string, totalSegments int) []string {
	sequence := make([]string, totalSegments)

	if settingMode == SettingSingle || len(locations) == 0 {
		loc := strings.TrimSpace(room)
		if loc == "" && len(locations) > 0 {
			loc = locations[0]
		}
		if loc == "" {
			loc = "living room"
		}
		for i := range sequence {
			sequence[i] = loc
		}
		return sequence
	}

	for i := range sequence {
		if i < len(locations) {
			sequence[i] = locations[i]
		} else {
			sequence[i] = locations[len(locations)-1]
		}
	}
	return sequence
}

// PromptBuilder assembles the system/user message pair and model parameters
// for each call kind. Pure given identical context and loaded templates.
type PromptBuilder struct {
	templates *TemplateService
}

func NewPromptBuilder(templates *TemplateService) *PromptBuilder {
	return &PromptBuilder{templates: templates}
}

func (b *PromptBuilder) contextReplacements(gc *GenerationContext) map[string]string {
	return map[string]string{
		"[PRODUCT]":   gc.Product,
		"[GENDER]":    gc.Gender,
		"[AGE]":       gc.Age,
		"[ETHNICITY]": gc.Ethnicity,
		"[STYLE]":     gc.Style,
	}
}

// BuildBaseDescriptionPrompt builds the one-per-run shared description
// call. Larger output budget and lower temperature than segment calls so
// the descriptions stay stable and detailed.
func (b *PromptBuilder) BuildBaseDescriptionPrompt(gc *GenerationContext) (string, string, GenerationOptions) {
	system := "You are a UGC video casting director. You produce exhaustive, reusable character and scene descriptions as a single JSON object."
	user := substitute(b.templates.BaseDescriptionTemplate(gc.Format), b.contextReplacements(gc))

	opts := GenerationOptions{Temperature: 0.3, MaxTokens: 3500, JSONMode: true}
	if gc.Format == FormatEnhanced {
		opts.MaxTokens = 5000
	}
	return system, user, opts
}

// BuildSegmentPrompt builds a fully-detailed per-segment generation call.
// prev is nil in concurrent mode; in sequential mode it carries segment
// i-1's parsed result for continuity chaining.
func (b *PromptBuilder) BuildSegmentPrompt(gc *GenerationContext, segmentNumber, totalSegments int, seg TextSegment, location string, base *BaseDescriptions, prev GeneratedSegment) (string, string, GenerationOptions) {
	system := "You are a text-to-video prompt engineer. You turn one script segment into a single structured JSON video-generation prompt, keeping the character, voice and scene perfectly consistent with the provided base descriptions."

	energyPct, energyDesc := energyForSegment(gc.EnergyArc, segmentNumber, totalSegments)

	replacements := b.contextReplacements(gc)
	replacements["[SEGMENT_NUMBER]"] = fmt.Sprintf("%d", segmentNumber)
	replacements["[TOTAL_SEGMENTS]"] = fmt.Sprintf("%d", totalSegments)
	replacements["[SEGMENT_TEXT]"] = seg.Text
	replacements["[LOCATION]"] = location
	replacements["[ENERGY_LEVEL]"] = fmt.Sprintf("%d%% energy - %s", energyPct, energyDesc)
	replacements["[BASE_DESCRIPTIONS]"] = mustJSON(base)

	user := substitute(b.templates.SegmentTemplate(gc.Format), replacements)
	user += continuityBlock(prev)

	return system, user, GenerationOptions{Temperature: 0.7, MaxTokens: 2500, JSONMode: true}
}

// BuildContinuationPrompt builds the lighter continuation call used after a
// voice profile exists. The minimal variant is selected when the location
// does not change from the previous segment.
func (b *PromptBuilder) BuildContinuationPrompt(gc *GenerationContext, segmentNumber, totalSegments int, seg TextSegment, location string, state *ContinuityState, minimal bool) (string, string, GenerationOptions) {
	system := "You are a text-to-video prompt engineer continuing an existing take. Match the established voice profile and behavior exactly; do not redescribe the character from scratch."

	energyPct, energyDesc := energyForSegment(gc.EnergyArc, segmentNumber, totalSegments)

	replacements := b.contextReplacements(gc)
	replacements["[SEGMENT_NUMBER]"] = fmt.Sprintf("%d", segmentNumber)
	replacements["[TOTAL_SEGMENTS]"] = fmt.Sprintf("%d", totalSegments)
	replacements["[SEGMENT_TEXT]"] = seg.Text
	replacements["[LOCATION]"] = location
	replacements["[ENERGY_LEVEL]"] = fmt.Sprintf("%d%% energy - %s", energyPct, energyDesc)
	replacements["[VOICE_PROFILE]"] = mustJSON(state.VoiceProfile)

	template := b.templates.ContinuationStyleTemplate()
	if minimal {
		template = b.templates.ContinuationMinimalTemplate()
	}
	user := substitute(template, replacements)
	user += continuityBlock(state.Previous)

	return system, user, GenerationOptions{Temperature: 0.6, MaxTokens: 1800, JSONMode: true}
}

// BuildVoiceProfilePrompt builds the dedicated extraction call that turns
// the first segment's dialogue into a reusable voice profile.
func (b *PromptBuilder) BuildVoiceProfilePrompt(dialogue string) (string, string, GenerationOptions) {
	system := "You are a voice coach. You describe exactly how a line of dialogue is delivered, as a single JSON object."
	user := substitute(b.templates.VoiceProfileTemplate(), map[string]string{
		"[DIALOGUE]": dialogue,
	})
	return system, user, GenerationOptions{Temperature: 0.2, MaxTokens: 800, JSONMode: true}
}

// continuityBlock renders the previous segment's handoff fields into the
// user message. Empty when there is no previous segment.
func continuityBlock(prev GeneratedSegment) string {
	if prev == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("\n\nCONTINUITY FROM PREVIOUS SEGMENT:\n")
	if prep := prev.TransitionPrep(); prep != "" {
		sb.WriteString(fmt.Sprintf("- Transition prep: %s\n", prep))
	}
	if pos := prev.EndPosition(); pos != "" {
		sb.WriteString(fmt.Sprintf("- Character end position: %s\n", pos))
	}
	sb.WriteString("- Previous segment JSON:\n")
	sb.WriteString(mustJSON(prev))
	sb.WriteString("\n\nStart this segment exactly where the previous one ended.")
	return sb.String()
}

func mustJSON(v interface{}) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}
