package main

import (
	"regexp"
	"strings"
)

const (
	// Speech pacing: 150 wpm narration, so 2.5 words per second.
	wordsPerSecond = 2.5

	// minSegmentWords is the only hard-enforced bound (~6s of speech).
	minSegmentWords = 15
	// maxSegmentWords is a soft ceiling (~8.8s); a single long sentence may
	// exceed it.
	maxSegmentWords = 22
	// mergeCeilingWords caps whole-segment merges during rebalancing.
	mergeCeilingWords = 30
)

// Sentence-ending patterns (period, exclamation, question mark followed by
// space or end).
var sentenceRegex = regexp.MustCompile(`[.!?]+(?:\s+|$)`)

// splitIntoSentences splits the script at sentence boundaries, keeping each
// sentence's own punctuation. A script with no terminal punctuation comes
// back as one sentence. Standalone terminator runs (a dramatic-pause "..."
// between sentences) attach to the preceding sentence so no content is
// ever dropped.
func splitIntoSentences(text string) []string {
	parts := sentenceRegex.Split(text, -1)
	ends := sentenceRegex.FindAllString(text, -1)

	var sentences []string
	for i, part := range parts {
		part = strings.TrimSpace(part)
		end := ""
		if i < len(ends) {
			end = strings.TrimSpace(ends[i])
		}
		if part == "" {
			if end == "" {
				continue
			}
			if len(sentences) > 0 {
				sentences[len(sentences)-1] += " " + end
			} else {
				sentences = append(sentences, end)
			}
			continue
		}
		sentences = append(sentences, part+end)
	}
	return sentences
}

func countWords(sentences []string) int {
	total := 0
	for _, s := range sentences {
		total += len(strings.Fields(s))
	}
	return total
}

// splitScriptIntoSegments breaks a script into speakable segments using a
// two-pass heuristic: greedy sentence grouping up to the word floor, then a
// rebalancing pass that borrows or merges from the following segment when a
// chunk comes up short. No words are ever dropped; output order matches
// script order.
func splitScriptIntoSegments(script string) []TextSegment {
	sentences := splitIntoSentences(script)
	if len(sentences) == 0 {
		return nil
	}

	// Pass 1: accumulate sentences until the chunk clears the floor. If the
	// chunk is still under the floor, the next sentence is added even when
	// that overshoots the soft max.
	var raw [][]string
	var current []string
	for _, sentence := range sentences {
		if countWords(current) >= minSegmentWords {
			raw = append(raw, current)
			current = nil
		}
		current = append(current, sentence)
	}
	if len(current) > 0 {
		raw = append(raw, current)
	}

	raw = rebalanceSentenceGroups(raw)

	segments := make([]TextSegment, 0, len(raw))
	for _, group := range raw {
		segments = append(segments, NewTextSegment(strings.Join(group, " ")))
	}
	return segments
}

// rebalanceSentenceGroups is pass 2: fix under-length segments (the last
// one is allowed to stay short). Try borrowing the next segment's first
// sentence, then merging the whole next segment, then give up. Borrowing
// may leave the donor under the floor; the pass continues forward and
// fixes it in turn.
func rebalanceSentenceGroups(raw [][]string) [][]string {
	for i := 0; i < len(raw)-1; i++ {
		if countWords(raw[i]) >= minSegmentWords {
			continue
		}
		next := raw[i+1]
		first := next[:1]
		canBorrow := countWords(next) > minSegmentWords &&
			len(next) >= 3 &&
			countWords(raw[i])+countWords(first) <= maxSegmentWords
		if canBorrow {
			raw[i] = append(raw[i], first...)
			raw[i+1] = next[1:]
			continue
		}
		if countWords(raw[i])+countWords(next) <= mergeCeilingWords {
			raw[i] = append(raw[i], next...)
			raw = append(raw[:i+1], raw[i+2:]...)
			i-- // re-check the merged segment
		}
	}
	return raw
}
