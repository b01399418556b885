package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"englishmastery/internal/ids"
	"englishmastery/internal/models"
	"englishmastery/internal/repository"
)

type Author struct {
	UserID      string  `json:"userId"`
	DisplayName string  `json:"displayName"`
	AvatarURL   *string `json:"avatarUrl,omitempty"`
}

func authorOf(u models.UserWithProfile) Author {
	return Author{
		UserID:      u.User.ID,
		DisplayName: displayNameOf(u),
		AvatarURL:   u.Profile.AvatarURL,
	}
}

type PostView struct {
	models.Post
	Author Author `json:"author"`
}

type CommentView struct {
	models.PostComment
	Author Author `json:"author"`
}

type PostInput struct {
	Type        models.PostType `json:"type"`
	Content     string          `json:"content" validate:"max=5000"`
	MediaURL    *string         `json:"mediaUrl" validate:"omitempty,url"`
	ChallengeID *string         `json:"challengeId"`
}

type PostListInput struct {
	UserID        string
	ChallengeID   string
	IncludeHidden bool
	Page          int
	PerPage       int
}

type PostService struct {
	posts      PostStore
	challenges ChallengeStore
	log        zerolog.Logger
	now        func() time.Time
}

func NewPostService(posts PostStore, challenges ChallengeStore, log zerolog.Logger) *PostService {
	return &PostService{
		posts:      posts,
		challenges: challenges,
		log:        log,
		now:        time.Now,
	}
}

func (s *PostService) Create(ctx context.Context, userID string, input PostInput) (models.Post, error) {
	if input.Type == "" {
		input.Type = models.PostTypeText
	}
	input.Content = strings.TrimSpace(input.Content)
	if err := validateInput(input); err != nil {
		return models.Post{}, err
	}

	switch input.Type {
	case models.PostTypeText, models.PostTypeAISubmission:
		if input.Content == "" {
			return models.Post{}, invalid("content is required")
		}
	case models.PostTypeVideo:
		if input.MediaURL == nil || *input.MediaURL == "" {
			return models.Post{}, invalid("mediaUrl is required for video posts")
		}
	default:
		return models.Post{}, invalid("unsupported post type %q", input.Type)
	}

	if input.ChallengeID != nil && *input.ChallengeID != "" {
		if _, err := s.challenges.GetByID(ctx, *input.ChallengeID); err != nil {
			if errors.Is(err, repository.ErrChallengeNotFound) {
				return models.Post{}, invalid("unknown challenge")
			}
			return models.Post{}, fmt.Errorf("check challenge: %w", err)
		}
	} else {
		input.ChallengeID = nil
	}

	now := s.now().UTC()
	post := models.Post{
		ID:          ids.New(),
		UserID:      userID,
		Type:        input.Type,
		Content:     input.Content,
		MediaURL:    input.MediaURL,
		ChallengeID: input.ChallengeID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return models.Post{}, fmt.Errorf("create post: %w", err)
	}
	return post, nil
}

func (s *PostService) List(ctx context.Context, input PostListInput) ([]PostView, error) {
	limit, offset := normalizePage(input.Page, input.PerPage)
	rows, err := s.posts.List(ctx, repository.PostFilter{
		UserID:        input.UserID,
		ChallengeID:   input.ChallengeID,
		IncludeHidden: input.IncludeHidden,
		Limit:         limit,
		Offset:        offset,
	})
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}

	out := make([]PostView, 0, len(rows))
	for _, row := range rows {
		out = append(out, PostView{Post: row.Post, Author: authorOf(row.Author)})
	}
	return out, nil
}

// visible returns the post unless it is missing or hidden.
func (s *PostService) visible(ctx context.Context, postID string) (models.Post, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			return models.Post{}, ErrNotFound
		}
		return models.Post{}, fmt.Errorf("get post: %w", err)
	}
	if post.IsHidden {
		return models.Post{}, ErrNotFound
	}
	return post, nil
}

// Like is idempotent; the counter only moves when the like is new.
func (s *PostService) Like(ctx context.Context, postID, userID string) error {
	if _, err := s.visible(ctx, postID); err != nil {
		return err
	}
	if _, err := s.posts.Like(ctx, postID, userID); err != nil {
		return fmt.Errorf("like post: %w", err)
	}
	return nil
}

func (s *PostService) Unlike(ctx context.Context, postID, userID string) error {
	if _, err := s.visible(ctx, postID); err != nil {
		return err
	}
	if _, err := s.posts.Unlike(ctx, postID, userID); err != nil {
		return fmt.Errorf("unlike post: %w", err)
	}
	return nil
}

func (s *PostService) Comment(ctx context.Context, postID, userID, content string) (models.PostComment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.PostComment{}, invalid("content is required")
	}
	if len([]rune(content)) > 2000 {
		return models.PostComment{}, invalid("content must be at most 2000 characters")
	}
	if _, err := s.visible(ctx, postID); err != nil {
		return models.PostComment{}, err
	}

	comment := models.PostComment{
		ID:        ids.New(),
		PostID:    postID,
		UserID:    userID,
		Content:   content,
		CreatedAt: s.now().UTC(),
	}
	if err := s.posts.AddComment(ctx, comment); err != nil {
		return models.PostComment{}, fmt.Errorf("add comment: %w", err)
	}
	return comment, nil
}

func (s *PostService) Comments(ctx context.Context, postID string, page, perPage int) ([]CommentView, error) {
	if _, err := s.visible(ctx, postID); err != nil {
		return nil, err
	}
	limit, offset := normalizePage(page, perPage)
	rows, err := s.posts.ListComments(ctx, postID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}

	out := make([]CommentView, 0, len(rows))
	for _, row := range rows {
		out = append(out, CommentView{PostComment: row.Comment, Author: authorOf(row.Author)})
	}
	return out, nil
}

func (s *PostService) SetHidden(ctx context.Context, postID string, hidden bool) error {
	if err := s.posts.SetHidden(ctx, postID, hidden); err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("set post hidden: %w", err)
	}
	s.log.Info().Str("post_id", postID).Bool("hidden", hidden).Msg("post visibility changed")
	return nil
}
