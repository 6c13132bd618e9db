// mock-model is a local stand-in for the upstream chat-completions API so
// the prompt-writer service can be exercised without an API key. It returns
// canned segment JSON and can simulate the upstream's bad habits (code
// fences, trailing commas, rate limiting) via query flags.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

var requestCount int64

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

func main() {
	r := mux.NewRouter()

	r.HandleFunc("/api/v1/chat/completions", chatCompletionsHandler).Methods("POST")
	r.HandleFunc("/health", healthHandler).Methods("GET")

	port := os.Getenv("PORT")
	if port == "" {
		port = "8099"
	}

	fmt.Println("🤖 Mock model server starting...")
	fmt.Printf("📡 Listening on http://localhost:%s\n", port)
	fmt.Println("   POST /api/v1/chat/completions")
	fmt.Println("   GET  /health")
	fmt.Println("   Flags: MOCK_WRAP_FENCES=1 wraps replies in ```json fences")
	fmt.Println("          MOCK_FAIL_EVERY=n returns 429 on every nth request")

	log.Fatal(http.ListenAndServe(":"+port, r))
}

func chatCompletionsHandler(w http.ResponseWriter, r *http.Request) {
	n := atomic.AddInt64(&requestCount, 1)

	if every := os.Getenv("MOCK_FAIL_EVERY"); every != "" {
		var k int64
		fmt.Sscanf(every, "%d", &k)
		if k > 0 && n%k == 0 {
			http.Error(w, `{"error":{"message":"rate limit exceeded"}}`, http.StatusTooManyRequests)
			return
		}
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	content := segmentReply(req)
	if os.Getenv("MOCK_WRAP_FENCES") == "1" {
		content = "```json\n" + content + "\n```"
	}

	resp := map[string]interface{}{
		"id":      "mock-" + uuid.New().String()[:8],
		"created": time.Now().Unix(),
		"model":   req.Model,
		"choices": []map[string]interface{}{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// segmentReply picks a canned reply shape by sniffing the user prompt.
func segmentReply(req chatRequest) string {
	var user string
	for _, m := range req.Messages {
		if m.Role == "user" {
			user = m.Content
		}
	}

	switch {
	case strings.Contains(user, "base descriptions"):
		return `{"physical":"A woman in her late twenties with shoulder length wavy brown hair, light freckles across her nose, warm hazel eyes and a relaxed natural posture that reads as unstaged.","clothing":"An oversized sage green knit sweater over a white tee, gold hoop earrings, no visible branding anywhere in frame, sleeves pushed up to the forearms.","environment":"A bright modern kitchen with white marble counters, morning light from a window on the left, a small potted plant and a ceramic mug visible behind her.","voice":"Mid range conversational voice, slightly breathy, friendly and unhurried, with a light upward inflection at the ends of enthusiastic sentences.","product_handling":"Holds the product at chest height with both hands, rotates it slowly toward the camera when mentioning features, sets it down gently on the counter between points."}`
	case strings.Contains(user, "voice profile"):
		return `{"pitch_range":"mid range, light upward inflections","speaking_rate":"moderate, about 150 wpm","tone":"warm and conversational","breathing_pattern":"soft inhale before each sentence","emotional_inflections":["genuine excitement on product name","softer reflective tone on personal anecdotes"],"accent_notes":"neutral american"}`
	default:
		return `{"segment_info":{"segment_number":1,"location":"kitchen","duration_seconds":8,"continuity_markers":{"start_position":"standing at counter, facing camera","end_position":"leaning slightly forward, product in right hand"}},"character_description":{"physical":"same as base","clothing":"same as base","voice":"same as base"},"action_timeline":{"dialogue":"You will not believe what this did for my morning routine.","transition_prep":"begins lifting product toward camera"},"scene_continuity":{"camera_position":"static chest-up shot","environment":"bright kitchen, morning light"}}`
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
