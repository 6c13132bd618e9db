package main

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
)

const repairSystemPrompt = `You are a JSON repair assistant. The user will send you text that was supposed to be a single valid JSON object but is malformed. Return ONLY the corrected JSON object. No markdown formatting, no backticks, no explanations.`

var trailingCommaRegex = regexp.MustCompile(`,\s*([}\]])`)

// JSONRecovery parses model output that may be malformed. Tiers run
// cheapest-first: direct parse, then local cleanup, then a single
// model-assisted repair call. The repair call only happens after both local
// tiers fail because it costs a network round trip.
type JSONRecovery struct {
	ai AIService
}

func NewJSONRecovery(ai AIService) *JSONRecovery {
	return &JSONRecovery{ai: ai}
}

// Parse recovers a JSON object from raw model output, failing with a
// malformed-output error only once every tier is exhausted.
func (r *JSONRecovery) Parse(ctx context.Context, op, raw string) (GeneratedSegment, error) {
	// Tier 1: the output is already valid.
	if obj, ok := tryParseObject(raw); ok {
		return obj, nil
	}

	// Tier 2: local cleanup.
	if obj, ok := tryParseObject(cleanupModelJSON(raw)); ok {
		return obj, nil
	}

	// Tier 3: ask the model to fix its own output.
	logrus.WithField("op", op).Warn("local JSON recovery failed, requesting model repair")
	repaired, err := r.ai.GenerateContentWithSystem(ctx, op+"_repair", repairSystemPrompt, raw, GenerationOptions{
		Temperature: 0,
		MaxTokens:   4000,
		JSONMode:    true,
	})
	if err != nil {
		return nil, &PipelineError{Kind: KindMalformed, Op: op, Err: err}
	}
	if obj, ok := tryParseObject(repaired); ok {
		return obj, nil
	}
	if obj, ok := tryParseObject(cleanupModelJSON(repaired)); ok {
		return obj, nil
	}
	return nil, &PipelineError{Kind: KindMalformed, Op: op}
}

func tryParseObject(s string) (GeneratedSegment, bool) {
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, false
	}
	return GeneratedSegment(obj), true
}

// cleanupModelJSON strips the junk models routinely wrap around JSON:
// markdown code fences, carriage returns, NUL bytes, trailing commas, and
// any prose outside the outermost braces.
func cleanupModelJSON(raw string) string {
	clean := strings.TrimSpace(raw)
	if strings.HasPrefix(clean, "```json") {
		clean = strings.TrimPrefix(clean, "```json")
	}
	if strings.HasPrefix(clean, "```") {
		clean = strings.TrimPrefix(clean, "```")
	}
	if strings.HasSuffix(clean, "```") {
		clean = strings.TrimSuffix(clean, "```")
	}
	clean = strings.ReplaceAll(clean, "\r", "")
	clean = strings.ReplaceAll(clean, "\x00", "")
	clean = trailingCommaRegex.ReplaceAllString(clean, "$1")

	start := strings.Index(clean, "{")
	end := strings.LastIndex(clean, "}")
	if start != -1 && end != -1 && end > start {
		clean = clean[start : end+1]
	}
	return strings.TrimSpace(clean)
}
