package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"englishmastery/internal/cache"
	"englishmastery/internal/ids"
	"englishmastery/internal/models"
	"englishmastery/internal/repository"
	"englishmastery/internal/storage"
)

const (
	dailyCacheKey = "challenges:daily:active"
	dailyCacheTTL = 10 * time.Minute

	defaultChallengePage = 20
	maxChallengePage     = 100
)

type ChallengeListInput struct {
	Type       models.ChallengeType
	Difficulty models.Difficulty
	Page       int
	PerPage    int
}

type ChallengeInput struct {
	Title           string               `json:"title" validate:"required,max=200"`
	Description     string               `json:"description" validate:"max=2000"`
	VideoURL        string               `json:"videoUrl" validate:"omitempty,url"`
	ThumbnailURL    *string              `json:"thumbnailUrl" validate:"omitempty,url"`
	Difficulty      models.Difficulty    `json:"difficulty" validate:"required,oneof=beginner intermediate advanced"`
	DurationSeconds int                  `json:"durationSeconds" validate:"min=0,max=3600"`
	Type            models.ChallengeType `json:"type"`
	// UploadedKey is set when the video was uploaded with the request; the
	// challenge stays inactive until the worker confirms the object.
	UploadedKey string `json:"-"`
}

type ChallengeService struct {
	challenges ChallengeStore
	objects    ObjectStore
	queue      TaskQueue
	cache      *cache.JSONCache
	log        zerolog.Logger
	now        func() time.Time
}

func NewChallengeService(challenges ChallengeStore, objects ObjectStore, queue TaskQueue, jsonCache *cache.JSONCache, log zerolog.Logger) *ChallengeService {
	return &ChallengeService{
		challenges: challenges,
		objects:    objects,
		queue:      queue,
		cache:      jsonCache,
		log:        log,
		now:        time.Now,
	}
}

func normalizePage(page, perPage int) (limit, offset int) {
	if perPage <= 0 {
		perPage = defaultChallengePage
	}
	if perPage > maxChallengePage {
		perPage = maxChallengePage
	}
	if page <= 0 {
		page = 1
	}
	return perPage, (page - 1) * perPage
}

// List returns active challenges. The first page of the plain daily listing is
// served from the JSON cache.
func (s *ChallengeService) List(ctx context.Context, input ChallengeListInput) ([]models.Challenge, error) {
	if input.Type != "" && !input.Type.Valid() {
		return nil, invalid("unknown challenge type %q", input.Type)
	}
	if input.Difficulty != "" && !input.Difficulty.Valid() {
		return nil, invalid("unknown difficulty %q", input.Difficulty)
	}
	limit, offset := normalizePage(input.Page, input.PerPage)

	if input.Type == models.ChallengeTypeDaily && input.Difficulty == "" && offset == 0 {
		daily, err := s.activeDaily(ctx)
		if err != nil {
			return nil, err
		}
		if len(daily) > limit {
			daily = daily[:limit]
		}
		return daily, nil
	}

	out, err := s.challenges.List(ctx, repository.ChallengeFilter{
		Type:       input.Type,
		Difficulty: input.Difficulty,
		ActiveOnly: true,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}
	if out == nil {
		out = []models.Challenge{}
	}
	return out, nil
}

func (s *ChallengeService) activeDaily(ctx context.Context) ([]models.Challenge, error) {
	var cached []models.Challenge
	err := s.cache.Get(ctx, dailyCacheKey, &cached)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.log.Warn().Err(err).Msg("daily challenge cache read failed")
	}

	daily, err := s.challenges.List(ctx, repository.ChallengeFilter{
		Type:       models.ChallengeTypeDaily,
		ActiveOnly: true,
		Limit:      maxChallengePage,
	})
	if err != nil {
		return nil, fmt.Errorf("list daily challenges: %w", err)
	}
	if daily == nil {
		daily = []models.Challenge{}
	}

	if err := s.cache.Set(ctx, dailyCacheKey, daily, dailyCacheTTL); err != nil {
		s.log.Warn().Err(err).Msg("daily challenge cache write failed")
	}
	return daily, nil
}

func (s *ChallengeService) invalidateDaily(ctx context.Context) {
	if err := s.cache.Delete(ctx, dailyCacheKey); err != nil {
		s.log.Warn().Err(err).Msg("daily challenge cache invalidation failed")
	}
}

func (s *ChallengeService) Get(ctx context.Context, id string) (models.Challenge, error) {
	c, err := s.challenges.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrChallengeNotFound) {
			return models.Challenge{}, ErrNotFound
		}
		return models.Challenge{}, fmt.Errorf("get challenge: %w", err)
	}
	return c, nil
}

func (s *ChallengeService) build(input ChallengeInput, typ models.ChallengeType, createdBy string) (models.Challenge, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.VideoURL = strings.TrimSpace(input.VideoURL)
	if err := validateInput(input); err != nil {
		return models.Challenge{}, err
	}
	if input.VideoURL == "" {
		return models.Challenge{}, invalid("videoUrl or an uploaded video is required")
	}

	now := s.now().UTC()
	c := models.Challenge{
		ID:              ids.New(),
		Title:           input.Title,
		Description:     strings.TrimSpace(input.Description),
		VideoURL:        input.VideoURL,
		ThumbnailURL:    input.ThumbnailURL,
		Difficulty:      input.Difficulty,
		DurationSeconds: input.DurationSeconds,
		Type:            typ,
		IsActive:        input.UploadedKey == "",
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if createdBy != "" {
		c.CreatedBy = &createdBy
	}
	return c, nil
}

// CreateUserGenerated stores a challenge owned by ownerID.
func (s *ChallengeService) CreateUserGenerated(ctx context.Context, ownerID string, input ChallengeInput) (models.Challenge, error) {
	c, err := s.build(input, models.ChallengeTypeUserGenerated, ownerID)
	if err != nil {
		return models.Challenge{}, err
	}
	if err := s.challenges.Create(ctx, c); err != nil {
		return models.Challenge{}, fmt.Errorf("create challenge: %w", err)
	}

	if input.UploadedKey != "" {
		s.enqueueIngest(ctx, c.ID, input.UploadedKey)
	}

	s.log.Info().Str("challenge_id", c.ID).Str("user_id", ownerID).Msg("user challenge created")
	return c, nil
}

// Create is the admin path for practice and daily challenges.
func (s *ChallengeService) Create(ctx context.Context, adminID string, input ChallengeInput) (models.Challenge, error) {
	if input.Type != models.ChallengeTypePractice && input.Type != models.ChallengeTypeDaily {
		return models.Challenge{}, invalid("type must be practice or daily")
	}

	c, err := s.build(input, input.Type, adminID)
	if err != nil {
		return models.Challenge{}, err
	}
	if err := s.challenges.Create(ctx, c); err != nil {
		return models.Challenge{}, fmt.Errorf("create challenge: %w", err)
	}
	if input.UploadedKey != "" {
		s.enqueueIngest(ctx, c.ID, input.UploadedKey)
	}
	if c.Type == models.ChallengeTypeDaily {
		s.invalidateDaily(ctx)
	}
	return c, nil
}

func (s *ChallengeService) enqueueIngest(ctx context.Context, challengeID, key string) {
	if s.queue == nil {
		return
	}
	err := s.queue.Enqueue(ctx, TaskMediaIngest, map[string]any{
		"challengeId": challengeID,
		"object":      key,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("challenge_id", challengeID).Msg("enqueue media ingest failed")
	}
}

// Delete removes a user generated challenge. Only its creator may delete it;
// daily and practice challenges are never deletable this way.
func (s *ChallengeService) Delete(ctx context.Context, id, requesterID string) error {
	c, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if c.Type != models.ChallengeTypeUserGenerated {
		return ErrPermissionDenied
	}
	if c.CreatedBy == nil || *c.CreatedBy != requesterID || requesterID == "" {
		return ErrPermissionDenied
	}

	if err := s.challenges.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrChallengeNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete challenge: %w", err)
	}

	s.log.Info().Str("challenge_id", id).Str("user_id", requesterID).Msg("challenge deleted")
	return nil
}

func (s *ChallengeService) SetActive(ctx context.Context, id string, active bool) error {
	if err := s.challenges.SetActive(ctx, id, active); err != nil {
		if errors.Is(err, repository.ErrChallengeNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("set challenge active: %w", err)
	}
	s.invalidateDaily(ctx)
	return nil
}

// ActivateUploaded enables a challenge once its uploaded video is present in storage.
func (s *ChallengeService) ActivateUploaded(ctx context.Context, challengeID, key string) error {
	if _, err := s.objects.Stat(ctx, key); err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return fmt.Errorf("challenge %s video %s not stored yet: %w", challengeID, key, err)
		}
		return fmt.Errorf("stat video: %w", err)
	}
	return s.SetActive(ctx, challengeID, true)
}
