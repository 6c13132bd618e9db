package main

import (
	"context"
	"strconv"
	"strings"
	"sync"
)

// recordedCall captures one upstream invocation for assertions.
type recordedCall struct {
	Op     string
	System string
	User   string
}

// mockAI is a scriptable AIService that records every call.
type mockAI struct {
	mu      sync.Mutex
	calls   []recordedCall
	handler func(call recordedCall, attempt int) (string, error)

	attempts map[string]int
}

func newMockAI(handler func(call recordedCall, attempt int) (string, error)) *mockAI {
	return &mockAI{handler: handler, attempts: make(map[string]int)}
}

func (m *mockAI) GenerateContentWithSystem(ctx context.Context, op, systemPrompt, userPrompt string, opts GenerationOptions) (string, error) {
	m.mu.Lock()
	call := recordedCall{Op: op, System: systemPrompt, User: userPrompt}
	m.calls = append(m.calls, call)
	m.attempts[op]++
	attempt := m.attempts[op]
	m.mu.Unlock()

	return m.handler(call, attempt)
}

func (m *mockAI) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *mockAI) callsFor(op string) []recordedCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []recordedCall
	for _, c := range m.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (m *mockAI) opsWithPrefix(prefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if strings.HasPrefix(c.Op, prefix) {
			n++
		}
	}
	return n
}

// Canned replies shared across tests.

const validBaseJSON = `{"physical":"tall with curly dark hair and a friendly face that reads naturally on camera","clothing":"plain cream sweater with rolled sleeves and small silver earrings","environment":"sunlit kitchen with white counters and a plant on the windowsill","voice":"warm mid-range conversational voice with relaxed pacing","product_handling":"holds the bottle at chest height and angles the label toward camera"}`

const validVoiceProfileJSON = `{"pitch_range":"mid","speaking_rate":"moderate","tone":"warm and upbeat","breathing_pattern":"soft pauses","emotional_inflections":["excited on product name"],"accent_notes":"neutral"}`

func segmentJSON(number int, transitionPrep string) string {
	n := strconv.Itoa(number)
	return `{"segment_info":{"segment_number":` + n + `,"location":"kitchen","duration_seconds":8,"continuity_markers":{"start_position":"standing","end_position":"leaning on counter after segment ` + n + `"}},"character_description":{"physical":"same","clothing":"same","voice":"same"},"action_timeline":{"dialogue":"line for segment ` + n + `","transition_prep":"` + transitionPrep + `"},"scene_continuity":{"camera_position":"static","environment":"kitchen"}}`
}
