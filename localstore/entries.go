package localstore

import (
	"errors"
	"strings"
	"time"
)

// Preference keys.
const PrefMood = "mood"

// TrendLength is the number of scores shown in the mood trend.
const TrendLength = 14

var ErrInvalidScore = errors.New("mood score must be between 1 and 5")

// MoodEntry is a single mood check-in.
type MoodEntry struct {
	ID        uint64    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Emotion   string    `json:"emotion"`
	Score     int       `json:"score"` // 1..5
	Notes     string    `json:"notes,omitempty"`
}

// JournalEntry is a free-text journal note.
type JournalEntry struct {
	ID        uint64    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
}

var emotionScores = map[string]int{
	"angry":   1,
	"sad":     2,
	"neutral": 3,
	"content": 4,
	"happy":   5,
}

// EmotionScore maps a check-in emotion to its mood score. Unknown emotions
// score 3.
func EmotionScore(emotion string) int {
	if score, ok := emotionScores[strings.ToLower(strings.TrimSpace(emotion))]; ok {
		return score
	}
	return 3
}
