package models

import "time"

type ChallengeType string

const (
	ChallengeTypeDaily         ChallengeType = "daily"
	ChallengeTypePractice      ChallengeType = "practice"
	ChallengeTypeUserGenerated ChallengeType = "user_generated"
)

func (t ChallengeType) Valid() bool {
	switch t {
	case ChallengeTypeDaily, ChallengeTypePractice, ChallengeTypeUserGenerated:
		return true
	}
	return false
}

type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return true
	}
	return false
}

type Challenge struct {
	ID              string        `json:"id"`
	Title           string        `json:"title"`
	Description     string        `json:"description"`
	VideoURL        string        `json:"videoUrl"`
	ThumbnailURL    *string       `json:"thumbnailUrl,omitempty"`
	Difficulty      Difficulty    `json:"difficulty"`
	DurationSeconds int           `json:"durationSeconds"`
	Type            ChallengeType `json:"type"`
	IsActive        bool          `json:"isActive"`
	CreatedBy       *string       `json:"createdBy,omitempty"`
	// SourceRef identifies the feed entry a daily challenge was created from.
	SourceRef *string   `json:"sourceRef,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
