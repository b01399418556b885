package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"englishmastery/internal/cache"
	"englishmastery/internal/config"
	"englishmastery/internal/ids"
	"englishmastery/internal/models"
)

const maxFeedBytes = 4 << 20

type FeedVideo struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	VideoURL        string `json:"videoUrl"`
	ThumbnailURL    string `json:"thumbnailUrl"`
	Difficulty      string `json:"difficulty"`
	DurationSeconds int    `json:"durationSeconds"`
}

type videoFeed struct {
	Videos []FeedVideo `json:"videos"`
}

type RefreshResult struct {
	Deactivated int                `json:"deactivated"`
	Created     int                `json:"created"`
	Challenges  []models.Challenge `json:"challenges"`
}

// DailyRefreshService rotates the active daily challenges from an external video feed.
type DailyRefreshService struct {
	challenges ChallengeStore
	cache      *cache.JSONCache
	client     *http.Client
	cfg        config.DailyConfig
	log        zerolog.Logger
	now        func() time.Time
}

func NewDailyRefreshService(challenges ChallengeStore, jsonCache *cache.JSONCache, client *http.Client, cfg config.DailyConfig, log zerolog.Logger) *DailyRefreshService {
	if client == nil {
		client = http.DefaultClient
	}
	return &DailyRefreshService{
		challenges: challenges,
		cache:      jsonCache,
		client:     client,
		cfg:        cfg,
		log:        log,
		now:        time.Now,
	}
}

// Refresh picks up to cfg.Count feed entries not used before, deactivates the
// current daily challenges and activates the new ones. When nothing new is
// available the current dailies stay active.
func (s *DailyRefreshService) Refresh(ctx context.Context) (RefreshResult, error) {
	videos, err := s.fetch(ctx)
	if err != nil {
		return RefreshResult{}, err
	}

	candidates := make([]FeedVideo, 0, len(videos))
	refs := make([]string, 0, len(videos))
	seen := make(map[string]struct{}, len(videos))
	for _, v := range videos {
		v.ID = strings.TrimSpace(v.ID)
		v.Title = strings.TrimSpace(v.Title)
		v.VideoURL = strings.TrimSpace(v.VideoURL)
		if v.ID == "" || v.Title == "" || v.VideoURL == "" {
			continue
		}
		if _, ok := seen[v.ID]; ok {
			continue
		}
		seen[v.ID] = struct{}{}
		candidates = append(candidates, v)
		refs = append(refs, v.ID)
	}

	used, err := s.challenges.UsedSourceRefs(ctx, refs)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("load used videos: %w", err)
	}

	now := s.now().UTC()
	fresh := make([]models.Challenge, 0, s.cfg.Count)
	for _, v := range candidates {
		if len(fresh) >= s.cfg.Count {
			break
		}
		if used[v.ID] {
			continue
		}
		fresh = append(fresh, challengeFromFeed(v, now))
	}

	if len(fresh) == 0 {
		s.log.Info().Int("feed_entries", len(videos)).Msg("daily refresh found no new videos")
		return RefreshResult{Challenges: []models.Challenge{}}, nil
	}

	deactivated, err := s.challenges.ReplaceDaily(ctx, fresh)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("replace daily challenges: %w", err)
	}

	if err := s.cache.Delete(ctx, dailyCacheKey); err != nil {
		s.log.Warn().Err(err).Msg("daily challenge cache invalidation failed")
	}

	s.log.Info().
		Int("deactivated", deactivated).
		Int("created", len(fresh)).
		Msg("daily challenges refreshed")

	return RefreshResult{
		Deactivated: deactivated,
		Created:     len(fresh),
		Challenges:  fresh,
	}, nil
}

func challengeFromFeed(v FeedVideo, now time.Time) models.Challenge {
	difficulty := models.Difficulty(strings.ToLower(strings.TrimSpace(v.Difficulty)))
	if !difficulty.Valid() {
		difficulty = models.DifficultyIntermediate
	}
	duration := v.DurationSeconds
	if duration < 0 {
		duration = 0
	}

	ref := v.ID
	c := models.Challenge{
		ID:              ids.New(),
		Title:           v.Title,
		Description:     strings.TrimSpace(v.Description),
		VideoURL:        v.VideoURL,
		Difficulty:      difficulty,
		DurationSeconds: duration,
		Type:            models.ChallengeTypeDaily,
		IsActive:        true,
		SourceRef:       &ref,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if thumb := strings.TrimSpace(v.ThumbnailURL); thumb != "" {
		c.ThumbnailURL = &thumb
	}
	return c
}

func (s *DailyRefreshService) fetch(ctx context.Context) ([]FeedVideo, error) {
	if s.cfg.FeedURL == "" {
		return nil, errors.New("daily video feed url not configured")
	}

	if s.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.FetchTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.FeedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch feed: unexpected status %d", resp.StatusCode)
	}

	var feed videoFeed
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxFeedBytes)).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}
	return feed.Videos, nil
}
