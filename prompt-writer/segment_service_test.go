package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptOfSegments builds a script that splits into exactly n chunks: each
// sentence carries 15 words, so the greedy pass flushes after every one.
func scriptOfSegments(n int) string {
	var sb strings.Builder
	for i := 1; i <= n; i++ {
		sb.WriteString(fmt.Sprintf("Chunk %d word word word word word word word word word word word word word. ", i))
	}
	return sb.String()
}

// pipelineHandler answers every call kind with a well-formed canned reply.
func pipelineHandler(call recordedCall, attempt int) (string, error) {
	switch {
	case call.Op == "base_description":
		return validBaseJSON, nil
	case call.Op == "voice_profile":
		return validVoiceProfileJSON, nil
	case strings.HasPrefix(call.Op, "segment_"):
		n, _ := strconv.Atoi(strings.TrimPrefix(call.Op, "segment_"))
		return segmentJSON(n, "prep-"+strconv.Itoa(n)), nil
	}
	return "", errors.New("unexpected op " + call.Op)
}

func newTestService(ai AIService, threshold, concurrency int) *SegmentService {
	templates := NewTemplateService("templates")
	if err := templates.LoadAllTemplates(); err != nil {
		panic(err)
	}
	builder := NewPromptBuilder(templates)
	recovery := NewJSONRecovery(ai)
	retrier := NewRetrier(2, time.Millisecond)
	return NewSegmentService(ai, builder, recovery, retrier, threshold, concurrency)
}

func baseRequest(script string) *GenerateRequest {
	return &GenerateRequest{
		Script:      script,
		Gender:      "female",
		Age:         "30",
		Ethnicity:   "asian",
		Style:       "casual",
		Product:     "face serum",
		SettingMode: SettingSingle,
		Room:        "kitchen",
		EnergyArc:   ArcConsistent,
		JSONFormat:  FormatStandard,
	}
}

func TestGenerateSequentialChainsContinuity(t *testing.T) {
	ai := newMockAI(pipelineHandler)
	svc := newTestService(ai, 2, 2) // threshold 2 forces sequential

	result, err := svc.GenerateSegments(context.Background(), baseRequest(scriptOfSegments(4)))
	require.NoError(t, err)
	require.Len(t, result.Segments, 4)

	// Exactly one base call, then one call per segment in order.
	assert.Len(t, ai.callsFor("base_description"), 1)
	assert.Equal(t, 4, ai.opsWithPrefix("segment_"))

	// Segment 1 has no predecessor; every later prompt carries its
	// predecessor's transition prep and end position.
	first := ai.callsFor("segment_1")[0]
	assert.NotContains(t, first.User, "CONTINUITY FROM PREVIOUS SEGMENT")

	for n := 2; n <= 4; n++ {
		call := ai.callsFor("segment_" + strconv.Itoa(n))[0]
		assert.Contains(t, call.User, "CONTINUITY FROM PREVIOUS SEGMENT")
		assert.Contains(t, call.User, "prep-"+strconv.Itoa(n-1))
		assert.Contains(t, call.User, "leaning on counter after segment "+strconv.Itoa(n-1))
	}

	// Output order matches script order.
	for i, seg := range result.Segments {
		assert.Contains(t, seg.Dialogue(), "segment "+strconv.Itoa(i+1))
	}
}

func TestGenerateConcurrentPreservesOrderWithoutContinuity(t *testing.T) {
	ai := newMockAI(pipelineHandler)
	svc := newTestService(ai, 100, 2) // threshold high: concurrent path

	result, err := svc.GenerateSegments(context.Background(), baseRequest(scriptOfSegments(5)))
	require.NoError(t, err)
	require.Len(t, result.Segments, 5)

	for n := 1; n <= 5; n++ {
		calls := ai.callsFor("segment_" + strconv.Itoa(n))
		require.Len(t, calls, 1)
		assert.NotContains(t, calls[0].User, "CONTINUITY FROM PREVIOUS SEGMENT")
	}

	// Slot-addressed results: index i holds segment i+1 regardless of
	// completion order.
	for i, seg := range result.Segments {
		assert.Contains(t, seg.Dialogue(), "segment "+strconv.Itoa(i+1))
	}
}

func TestSequentialOverrideForcesMode(t *testing.T) {
	ai := newMockAI(pipelineHandler)
	svc := newTestService(ai, 2, 2)

	seq := false
	req := baseRequest(scriptOfSegments(4))
	req.Sequential = &seq // would be sequential by threshold

	_, err := svc.GenerateSegments(context.Background(), req)
	require.NoError(t, err)

	for n := 2; n <= 4; n++ {
		call := ai.callsFor("segment_" + strconv.Itoa(n))[0]
		assert.NotContains(t, call.User, "CONTINUITY FROM PREVIOUS SEGMENT")
	}
}

func TestMaxSegmentsCapsUpstreamCalls(t *testing.T) {
	ai := newMockAI(pipelineHandler)
	svc := newTestService(ai, 100, 2)

	req := baseRequest(scriptOfSegments(10))
	req.MaxSegments = 2

	result, err := svc.GenerateSegments(context.Background(), req)
	require.NoError(t, err)

	assert.Len(t, result.Segments, 2)
	assert.Len(t, ai.callsFor("base_description"), 1)
	assert.Equal(t, 2, ai.opsWithPrefix("segment_"))
	assert.Equal(t, 2, result.Metadata.TotalSegments)
	assert.Equal(t, 2*secondsPerSegment, result.Metadata.EstimatedDurationSeconds)
}

func TestGenerateFailsWholeBatchOnFatalSegment(t *testing.T) {
	ai := newMockAI(func(call recordedCall, attempt int) (string, error) {
		if call.Op == "segment_3" {
			return "", &PipelineError{Kind: KindFatal, Op: call.Op, Err: errors.New("content filter")}
		}
		return pipelineHandler(call, attempt)
	})
	svc := newTestService(ai, 100, 2)

	result, err := svc.GenerateSegments(context.Background(), baseRequest(scriptOfSegments(5)))
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, KindFatal, errKind(err))
}

func TestGenerateRetriesTransientSegmentFailure(t *testing.T) {
	ai := newMockAI(func(call recordedCall, attempt int) (string, error) {
		if call.Op == "segment_1" && attempt == 1 {
			return "", &PipelineError{Kind: KindTransient, Op: call.Op, Err: errors.New("overloaded")}
		}
		return pipelineHandler(call, attempt)
	})
	svc := newTestService(ai, 2, 2)

	result, err := svc.GenerateSegments(context.Background(), baseRequest(scriptOfSegments(2)))
	require.NoError(t, err)
	require.Len(t, result.Segments, 2)
	assert.Len(t, ai.callsFor("segment_1"), 2)
}

func TestGenerateAbortsWhenBaseDescriptionsFail(t *testing.T) {
	ai := newMockAI(func(call recordedCall, attempt int) (string, error) {
		return "", &PipelineError{Kind: KindFatal, Op: call.Op, Err: errors.New("invalid api key")}
	})
	svc := newTestService(ai, 2, 2)

	_, err := svc.GenerateSegments(context.Background(), baseRequest(scriptOfSegments(3)))
	require.Error(t, err)
	assert.Equal(t, 0, ai.opsWithPrefix("segment_"))
}

func TestGenerateEmptyScriptIsValidationError(t *testing.T) {
	ai := newMockAI(pipelineHandler)
	svc := newTestService(ai, 2, 2)

	req := baseRequest("   ")
	_, err := svc.GenerateSegments(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, KindValidation, errKind(err))
	assert.Equal(t, 0, ai.callCount())
}

func TestContinuationModeExtractsVoiceProfile(t *testing.T) {
	ai := newMockAI(pipelineHandler)
	svc := newTestService(ai, 2, 2)

	req := baseRequest(scriptOfSegments(3))
	req.ContinuationMode = true
	req.SettingMode = SettingHomeTour
	req.Room = ""
	req.Locations = []string{"kitchen", "kitchen", "garden"}

	result, err := svc.GenerateSegments(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, result.Segments, 3)

	// One full first segment, one extraction call, then continuations.
	assert.Len(t, ai.callsFor("segment_1"), 1)
	require.Len(t, ai.callsFor("voice_profile"), 1)
	require.NotNil(t, result.VoiceProfile)
	assert.Equal(t, "warm and upbeat", result.VoiceProfile.Tone)

	// The extraction call sees the first segment's dialogue.
	assert.Contains(t, ai.callsFor("voice_profile")[0].User, "line for segment 1")

	// Location unchanged for segment 2 -> minimal template; location change
	// for segment 3 -> style template.
	seg2 := ai.callsFor("segment_2")[0]
	seg3 := ai.callsFor("segment_3")[0]
	assert.Contains(t, seg2.User, "Same location")
	assert.Contains(t, seg3.User, "NEW LOCATION: garden")

	// Continuations still chain to their predecessor.
	assert.Contains(t, seg2.User, "prep-1")
	assert.Contains(t, seg3.User, "prep-2")
}

func TestContinuationFallsBackToDefaultVoiceProfile(t *testing.T) {
	ai := newMockAI(func(call recordedCall, attempt int) (string, error) {
		if call.Op == "voice_profile" {
			return "", &PipelineError{Kind: KindFatal, Op: call.Op, Err: errors.New("refused")}
		}
		return pipelineHandler(call, attempt)
	})
	svc := newTestService(ai, 2, 2)

	req := baseRequest(scriptOfSegments(2))
	req.ContinuationMode = true

	result, err := svc.GenerateSegments(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, result.VoiceProfile)
	assert.Equal(t, defaultVoiceProfile().Tone, result.VoiceProfile.Tone)
}

func TestContinuationFallsBackWhenProfileJSONUnusable(t *testing.T) {
	ai := newMockAI(func(call recordedCall, attempt int) (string, error) {
		if call.Op == "voice_profile" {
			return `{"pitch_range": "mid"}`, nil // parses, but no tone
		}
		return pipelineHandler(call, attempt)
	})
	svc := newTestService(ai, 2, 2)

	req := baseRequest(scriptOfSegments(2))
	req.ContinuationMode = true

	result, err := svc.GenerateSegments(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, defaultVoiceProfile().Tone, result.VoiceProfile.Tone)
}

func TestCharacterIDComposition(t *testing.T) {
	gc := &GenerationContext{Gender: "Female", Age: "30", Ethnicity: "East Asian", Style: "Casual"}
	id := buildCharacterID(gc)

	assert.True(t, strings.HasPrefix(id, "female_30_east-asian_casual_"), id)
	parts := strings.Split(id, "_")
	assert.Len(t, parts[len(parts)-1], 8)
}
