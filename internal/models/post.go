package models

import "time"

type PostType string

const (
	PostTypeText         PostType = "text"
	PostTypeVideo        PostType = "video"
	PostTypeAISubmission PostType = "ai_submission"
)

func (t PostType) Valid() bool {
	switch t {
	case PostTypeText, PostTypeVideo, PostTypeAISubmission:
		return true
	}
	return false
}

// Post counters are maintained best-effort and may drift from the like and
// comment tables under concurrent writes.
type Post struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	Type          PostType  `json:"type"`
	Content       string    `json:"content"`
	MediaURL      *string   `json:"mediaUrl,omitempty"`
	ChallengeID   *string   `json:"challengeId,omitempty"`
	LikesCount    int       `json:"likesCount"`
	CommentsCount int       `json:"commentsCount"`
	IsHidden      bool      `json:"isHidden"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type PostComment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"postId"`
	UserID    string    `json:"userId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}
