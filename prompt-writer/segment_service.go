package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// secondsPerSegment is the planning duration of one generated segment.
const secondsPerSegment = 8

// SegmentService drives the whole pipeline: split the script, generate the
// shared base descriptions, then fan every chunk through per-segment
// generation. It holds configuration only; all run state is request-scoped.
type SegmentService struct {
	ai       AIService
	builder  *PromptBuilder
	recovery *JSONRecovery
	retrier  *Retrier

	sequentialThreshold int
	concurrency         int
}

func NewSegmentService(ai AIService, builder *PromptBuilder, recovery *JSONRecovery, retrier *Retrier, sequentialThreshold, concurrency int) *SegmentService {
	return &SegmentService{
		ai:                  ai,
		builder:             builder,
		recovery:            recovery,
		retrier:             retrier,
		sequentialThreshold: sequentialThreshold,
		concurrency:         concurrency,
	}
}

// GenerateRequest is the boundary-validated parameters object for one run.
type GenerateRequest struct {
	Script           string   `json:"script"`
	Gender           string   `json:"gender"`
	Age              string   `json:"age"`
	Ethnicity        string   `json:"ethnicity"`
	Style            string   `json:"style"`
	Product          string   `json:"product"`
	SettingMode      string   `json:"settingMode"`
	Room             string   `json:"room"`
	Locations        []string `json:"locations"`
	EnergyArc        string   `json:"energyArc"`
	JSONFormat       string   `json:"jsonFormat"`
	MaxSegments      int      `json:"maxSegments"`
	Sequential       *bool    `json:"sequential"`
	ContinuationMode bool     `json:"continuationMode"`
}

func (r *GenerateRequest) generationContext() *GenerationContext {
	format := r.JSONFormat
	if format != FormatEnhanced {
		format = FormatStandard
	}
	return &GenerationContext{
		Product:   r.Product,
		Gender:    r.Gender,
		Age:       r.Age,
		Ethnicity: r.Ethnicity,
		Style:     r.Style,
		Format:    format,
		EnergyArc: r.EnergyArc,
	}
}

// GenerateSegments runs the full pipeline for one request.
func (s *SegmentService) GenerateSegments(ctx context.Context, req *GenerateRequest) (*RunResult, error) {
	segments := splitScriptIntoSegments(req.Script)
	if len(segments) == 0 {
		return nil, validationError("script produced no segments")
	}
	if req.MaxSegments > 0 && len(segments) > req.MaxSegments {
		segments = segments[:req.MaxSegments]
	}
	total := len(segments)

	gc := req.generationContext()
	locations := buildLocationSequence(req.SettingMode, req.Room, req.Locations, total)

	logrus.WithFields(logrus.Fields{
		"segments": total,
		"setting":  req.SettingMode,
		"format":   gc.Format,
	}).Info("starting prompt generation run")

	base, err := s.generateBaseDescriptions(ctx, gc)
	if err != nil {
		return nil, err
	}

	if req.ContinuationMode {
		return s.generateSegmentsWithVoiceProfile(ctx, gc, segments, locations, base)
	}

	sequential := total >= s.sequentialThreshold
	if req.Sequential != nil {
		sequential = *req.Sequential
	}

	var generated []GeneratedSegment
	if sequential {
		generated, err = s.generateSequential(ctx, gc, segments, locations, base)
	} else {
		generated, err = s.generateConcurrent(ctx, gc, segments, locations, base)
	}
	if err != nil {
		return nil, err
	}

	return &RunResult{
		Segments: generated,
		Metadata: RunMetadata{
			TotalSegments:            total,
			EstimatedDurationSeconds: total * secondsPerSegment,
			CharacterID:              buildCharacterID(gc),
		},
	}, nil
}

// generateBaseDescriptions makes the single shared-description call. The
// result is read-only for the rest of the run.
func (s *SegmentService) generateBaseDescriptions(ctx context.Context, gc *GenerationContext) (*BaseDescriptions, error) {
	system, user, opts := s.builder.BuildBaseDescriptionPrompt(gc)

	raw, err := s.retrier.Do(ctx, "base_description", func() (string, error) {
		return s.ai.GenerateContentWithSystem(ctx, "base_description", system, user, opts)
	})
	if err != nil {
		return nil, err
	}

	obj, err := s.recovery.Parse(ctx, "base_description", raw)
	if err != nil {
		return nil, err
	}

	var base BaseDescriptions
	if err := decodeInto(obj, &base); err != nil {
		return nil, &PipelineError{Kind: KindMalformed, Op: "base_description", Err: err}
	}
	if base.Physical == "" || base.Voice == "" {
		logrus.Warn("base descriptions came back incomplete, continuing anyway")
	}
	return &base, nil
}

// generateSequential generates segments strictly in order, passing segment
// i-1's parsed result into segment i's prompt. A failure anywhere aborts
// the remaining chain.
func (s *SegmentService) generateSequential(ctx context.Context, gc *GenerationContext, segments []TextSegment, locations []string, base *BaseDescriptions) ([]GeneratedSegment, error) {
	total := len(segments)
	results := make([]GeneratedSegment, 0, total)

	var prev GeneratedSegment
	for i, seg := range segments {
		gen, err := s.generateOneSegment(ctx, gc, i+1, total, seg, locations[i], base, prev)
		if err != nil {
			return nil, err
		}
		results = append(results, gen)
		prev = gen
	}
	return results, nil
}

// generateConcurrent generates all segments independently under a bounded
// concurrency limit. Workers are dispatched in index order and each writes
// only its own slot, so output order never depends on completion order.
// One failed segment fails the whole batch; the group context then cancels
// siblings still in flight, since their results would be discarded anyway,
// and the first error is the one surfaced.
func (s *SegmentService) generateConcurrent(ctx context.Context, gc *GenerationContext, segments []TextSegment, locations []string, base *BaseDescriptions) ([]GeneratedSegment, error) {
	total := len(segments)
	results := make([]GeneratedSegment, total)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, seg := range segments {
		i, seg := i, seg
		g.Go(func() error {
			gen, err := s.generateOneSegment(gctx, gc, i+1, total, seg, locations[i], base, nil)
			if err != nil {
				return err
			}
			results[i] = gen
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *SegmentService) generateOneSegment(ctx context.Context, gc *GenerationContext, segmentNumber, total int, seg TextSegment, location string, base *BaseDescriptions, prev GeneratedSegment) (GeneratedSegment, error) {
	op := fmt.Sprintf("segment_%d", segmentNumber)
	system, user, opts := s.builder.BuildSegmentPrompt(gc, segmentNumber, total, seg, location, base, prev)

	raw, err := s.retrier.Do(ctx, op, func() (string, error) {
		return s.ai.GenerateContentWithSystem(ctx, op, system, user, opts)
	})
	if err != nil {
		return nil, err
	}

	gen, err := s.recovery.Parse(ctx, op, raw)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"segment":  segmentNumber,
		"total":    total,
		"location": location,
		"words":    seg.WordCount,
	}).Info("segment generated")
	return gen, nil
}

// generateSegmentsWithVoiceProfile is the continuation-mode variant: one
// fully-detailed first segment, a voice profile extracted from it, then
// lighter continuation calls for the rest, each still chained to its
// predecessor. Always sequential.
func (s *SegmentService) generateSegmentsWithVoiceProfile(ctx context.Context, gc *GenerationContext, segments []TextSegment, locations []string, base *BaseDescriptions) (*RunResult, error) {
	total := len(segments)

	first, err := s.generateOneSegment(ctx, gc, 1, total, segments[0], locations[0], base, nil)
	if err != nil {
		return nil, err
	}

	profile := s.extractVoiceProfile(ctx, first)
	state := &ContinuityState{Previous: first, VoiceProfile: profile}

	results := make([]GeneratedSegment, 0, total)
	results = append(results, first)

	for i := 1; i < total; i++ {
		op := fmt.Sprintf("segment_%d", i+1)
		// Same location as the previous segment means no scene change, so
		// the minimal continuation template is enough.
		minimal := locations[i] == locations[i-1]
		system, user, opts := s.builder.BuildContinuationPrompt(gc, i+1, total, segments[i], locations[i], state, minimal)

		raw, err := s.retrier.Do(ctx, op, func() (string, error) {
			return s.ai.GenerateContentWithSystem(ctx, op, system, user, opts)
		})
		if err != nil {
			return nil, err
		}
		gen, err := s.recovery.Parse(ctx, op, raw)
		if err != nil {
			return nil, err
		}
		results = append(results, gen)
		state.Previous = gen
	}

	return &RunResult{
		Segments: results,
		Metadata: RunMetadata{
			TotalSegments:            total,
			EstimatedDurationSeconds: total * secondsPerSegment,
			CharacterID:              buildCharacterID(gc),
		},
		VoiceProfile: profile,
	}, nil
}

// extractVoiceProfile runs the dedicated extraction call. This is the one
// step whose failure is swallowed: a hardcoded default profile keeps the
// run alive.
func (s *SegmentService) extractVoiceProfile(ctx context.Context, first GeneratedSegment) *VoiceProfile {
	dialogue := strings.TrimSpace(first.Dialogue())
	if dialogue == "" {
		logrus.Warn("first segment has no dialogue, using default voice profile")
		return defaultVoiceProfile()
	}

	system, user, opts := s.builder.BuildVoiceProfilePrompt(dialogue)
	raw, err := s.retrier.Do(ctx, "voice_profile", func() (string, error) {
		return s.ai.GenerateContentWithSystem(ctx, "voice_profile", system, user, opts)
	})
	if err != nil {
		logrus.Warnf("voice profile extraction failed, using default: %v", err)
		return defaultVoiceProfile()
	}

	obj, err := s.recovery.Parse(ctx, "voice_profile", raw)
	if err != nil {
		logrus.Warnf("voice profile parse failed, using default: %v", err)
		return defaultVoiceProfile()
	}

	var profile VoiceProfile
	if err := decodeInto(obj, &profile); err != nil || profile.Tone == "" {
		logrus.Warn("voice profile came back unusable, using default")
		return defaultVoiceProfile()
	}
	return &profile
}
