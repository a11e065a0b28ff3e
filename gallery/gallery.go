package gallery

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"meme-studio/core"
)

// Service is the read and delete side of saved memes.
type Service struct {
	memes  core.MemeStore
	images core.ImageStore
}

func NewService(memes core.MemeStore, images core.ImageStore) *Service {
	return &Service{memes: memes, images: images}
}

func (s *Service) List(ctx context.Context, query core.MemeQuery) (*core.MemePage, error) {
	return s.memes.List(ctx, query.Normalize())
}

// View loads a meme for the viewer and counts the view. A failing counter
// does not fail the view.
func (s *Service) View(ctx context.Context, id string) (*core.MemeRecord, error) {
	meme, err := s.memes.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.memes.IncrementViews(ctx, id); err != nil {
		logrus.WithFields(logrus.Fields{"meme_id": id, "error": err}).Warn("Failed to count view")
	} else {
		meme.Views++
	}
	return meme, nil
}

func (s *Service) Like(ctx context.Context, id string) (int, error) {
	return s.memes.IncrementLikes(ctx, id)
}

// Delete removes a meme owned by userID. The hosted image is deleted first;
// when that fails the record is left in place.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	meme, err := s.memes.Get(ctx, id)
	if err != nil {
		return err
	}
	if meme.CreatedBy != userID {
		return core.ErrForbidden
	}

	log := logrus.WithFields(logrus.Fields{"meme_id": id, "user_id": userID})
	if meme.DeleteHandle != "" {
		if err := s.images.Delete(ctx, meme.DeleteHandle); err != nil {
			log.WithField("error", err).Error("Failed to delete hosted image")
			return fmt.Errorf("failed to delete image: %w", err)
		}
	} else {
		log.Warn("Meme has no delete handle, hosted image left in place")
	}

	if err := s.memes.Delete(ctx, id); err != nil {
		log.WithField("error", err).Error("Hosted image deleted but record removal failed")
		return fmt.Errorf("failed to delete meme: %w", err)
	}
	log.Info("Meme deleted")
	return nil
}
