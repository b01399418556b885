package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"englishmastery/internal/config"
	"englishmastery/internal/ids"
	"englishmastery/internal/media/sniffer"
	"englishmastery/internal/storage"
)

// MediaPurpose decides which media kinds an upload may contain and where it is stored.
type MediaPurpose string

const (
	MediaAvatar    MediaPurpose = "avatars"
	MediaChallenge MediaPurpose = "challenges"
	MediaPost      MediaPurpose = "posts"
)

func (p MediaPurpose) accepts(kind sniffer.Kind) bool {
	switch p {
	case MediaAvatar:
		return kind == sniffer.KindImage
	case MediaChallenge:
		return kind == sniffer.KindVideo
	case MediaPost:
		return kind == sniffer.KindImage || kind == sniffer.KindVideo
	}
	return false
}

type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (int64, error)
	Stat(ctx context.Context, key string) (int64, error)
	PublicURL(key string) string
}

type UploadInput struct {
	OwnerID  string
	Purpose  MediaPurpose
	File     io.Reader
	Size     int64
	Declared string
}

type StoredMedia struct {
	Key  string       `json:"key"`
	URL  string       `json:"url"`
	MIME string       `json:"mime"`
	Kind sniffer.Kind `json:"kind"`
	Size int64        `json:"size"`
}

type MediaService struct {
	store ObjectStore
	cfg   config.StorageConfig
	log   zerolog.Logger
	now   func() time.Time
}

func NewMediaService(store ObjectStore, cfg config.StorageConfig, log zerolog.Logger) *MediaService {
	return &MediaService{
		store: store,
		cfg:   cfg,
		log:   log,
		now:   time.Now,
	}
}

// Upload sniffs the payload, checks it against the declared content type and
// the purpose, then stores it under <purpose>/<yyyy/mm/dd>/<id>.<ext>.
func (s *MediaService) Upload(ctx context.Context, input UploadInput) (StoredMedia, error) {
	if input.File == nil {
		return StoredMedia{}, invalid("file is required")
	}
	if input.Size == 0 {
		return StoredMedia{}, invalid("file is empty")
	}
	if s.cfg.MaxUploadSize > 0 && input.Size > s.cfg.MaxUploadSize {
		return StoredMedia{}, invalid("file exceeds %d bytes", s.cfg.MaxUploadSize)
	}

	result, head, err := sniffer.Detect(input.File)
	if err != nil {
		if errors.Is(err, sniffer.ErrUnknownType) {
			return StoredMedia{}, invalid("unsupported media type")
		}
		return StoredMedia{}, fmt.Errorf("read head: %w", err)
	}
	if input.Declared != "" && input.Declared != "application/octet-stream" && input.Declared != result.MIME {
		return StoredMedia{}, invalid("content type mismatch: declared %s, actual %s", input.Declared, result.MIME)
	}
	if !input.Purpose.accepts(result.Kind) {
		return StoredMedia{}, invalid("%s uploads do not accept %s files", input.Purpose, result.Kind)
	}

	key := storage.ObjectKey(string(input.Purpose), ids.New(), string(result.Type), s.now())
	body := io.MultiReader(bytes.NewReader(head), input.File)

	size, err := s.store.Put(ctx, key, body, input.Size, result.MIME)
	if err != nil {
		return StoredMedia{}, fmt.Errorf("store media: %w", err)
	}

	s.log.Info().
		Str("user_id", input.OwnerID).
		Str("object", key).
		Int64("size", size).
		Msg("media stored")

	return StoredMedia{
		Key:  key,
		URL:  s.store.PublicURL(key),
		MIME: result.MIME,
		Kind: result.Kind,
		Size: size,
	}, nil
}
