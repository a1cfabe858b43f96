package photos

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/StrixzIV/adv-compro-finals/internal/apperr"
	"github.com/StrixzIV/adv-compro-finals/internal/objectstore"
	"github.com/StrixzIV/adv-compro-finals/internal/storage"
)

// stateFunc computes the next state of a photo from its current row.
type stateFunc func(current storage.Photo) (storage.PhotoState, error)

// SoftDelete moves a photo to the trash. Trashing a trashed photo is a no-op.
// A trashed photo is never a favorite.
func (s *Service) SoftDelete(ctx context.Context, photoID, requester string) (storage.Photo, error) {
	return s.transition(ctx, "soft_delete", photoID, requester, func(storage.Photo) (storage.PhotoState, error) {
		return storage.PhotoState{IsDeleted: true, IsFavorite: false}, nil
	})
}

// Restore returns a trashed photo to the gallery. Restoring an active photo
// is a no-op. The favorite flag cleared by SoftDelete stays cleared.
func (s *Service) Restore(ctx context.Context, photoID, requester string) (storage.Photo, error) {
	return s.transition(ctx, "restore", photoID, requester, func(current storage.Photo) (storage.PhotoState, error) {
		return storage.PhotoState{IsDeleted: false, IsFavorite: current.IsFavorite}, nil
	})
}

// SetFavorite marks or unmarks an active photo as favorite.
func (s *Service) SetFavorite(ctx context.Context, photoID, requester string, favorite bool) (storage.Photo, error) {
	return s.transition(ctx, "set_favorite", photoID, requester, func(current storage.Photo) (storage.PhotoState, error) {
		if favorite && current.IsDeleted {
			return storage.PhotoState{}, apperr.New(apperr.KindInvalidInput, "trashed photos cannot be favorited")
		}
		return storage.PhotoState{IsDeleted: current.IsDeleted, IsFavorite: favorite}, nil
	})
}

func (s *Service) transition(ctx context.Context, op, photoID, requester string, next stateFunc) (storage.Photo, error) {
	id, owner, err := ids(photoID, requester)
	if err != nil {
		return storage.Photo{}, err
	}

	unlock, err := s.locks.Lock(ctx, id)
	if err != nil {
		return storage.Photo{}, apperr.Wrap(apperr.KindConflict, "photo is busy", err)
	}
	defer unlock()

	current, err := s.photos.GetForOwner(ctx, id, owner)
	if err != nil {
		return storage.Photo{}, catalogReadError("load photo", err)
	}

	state, err := next(current)
	if err != nil {
		return storage.Photo{}, err
	}
	if state == (storage.PhotoState{IsDeleted: current.IsDeleted, IsFavorite: current.IsFavorite}) {
		return current, nil
	}

	updated, err := s.photos.UpdateState(ctx, id, owner, current.Version, state)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return storage.Photo{}, apperr.Forbidden()
		case errors.Is(err, storage.ErrConflict):
			return storage.Photo{}, apperr.Wrap(apperr.KindConflict, "photo changed concurrently", err)
		default:
			return storage.Photo{}, apperr.Wrap(apperr.KindCatalogWriteFailed, "update photo state", err)
		}
	}

	s.index.SetDeleted(id, updated.IsDeleted)
	s.logger.Info("photo state changed",
		"op", op,
		"photoID", id,
		"userID", owner,
		"isDeleted", updated.IsDeleted,
		"isFavorite", updated.IsFavorite,
	)

	return updated, nil
}

// PurgeOne permanently removes a photo in any state. Objects go first; if
// either delete fails the catalog row is kept so the purge can be retried.
func (s *Service) PurgeOne(ctx context.Context, photoID, requester string) error {
	id, owner, err := ids(photoID, requester)
	if err != nil {
		return err
	}

	unlock, err := s.locks.Lock(ctx, id)
	if err != nil {
		return apperr.Wrap(apperr.KindConflict, "photo is busy", err)
	}
	defer unlock()

	current, err := s.photos.GetForOwner(ctx, id, owner)
	if err != nil {
		return catalogReadError("load photo", err)
	}

	return s.purge(ctx, current)
}

// purge must be called with the photo lock held.
func (s *Service) purge(ctx context.Context, p storage.Photo) error {
	var errs []error
	for _, key := range []string{p.OriginalKey, p.ThumbnailKey} {
		if err := s.objects.Delete(ctx, key); err != nil && !errors.Is(err, objectstore.ErrNotFound) {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		s.logger.Warn("purge kept catalog row after object delete failure", "photoID", p.ID, "error", err)
		return apperr.Wrap(apperr.KindStorageWriteFailed, "delete photo objects", err)
	}

	if err := s.photos.Delete(ctx, p.ID, p.OwnerID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.index.Remove(p.ID)
			return apperr.Forbidden()
		}
		return apperr.Wrap(apperr.KindCatalogWriteFailed, "delete photo row", err)
	}

	s.index.Remove(p.ID)
	s.logger.Info("photo purged", "photoID", p.ID, "userID", p.OwnerID)
	return nil
}

type PurgeFailure struct {
	PhotoID   string
	Kind      apperr.Kind
	Message   string
	Retryable bool
}

// PurgeReport lists the outcome of every photo enumerated by
// PurgeAllTrashed, in enumeration order.
type PurgeReport struct {
	Purged  []string
	Failed  []PurgeFailure
	Skipped []string
	// Cancelled is set when the caller's context ended before every photo
	// was started. Photos that never started are listed in Skipped.
	Cancelled bool
}

type purgeStatus int

const (
	purgeNotRun purgeStatus = iota
	purgeDone
	purgeFailed
	purgeSkipped
)

type purgeOutcome struct {
	status purgeStatus
	err    error
}

// PurgeAllTrashed purges every trashed photo of requester with bounded
// parallelism. Per-photo failures are collected, never fatal. Purges that
// have started run to completion even if ctx is cancelled.
func (s *Service) PurgeAllTrashed(ctx context.Context, requester string) (PurgeReport, error) {
	owner, ok := canonicalID(requester)
	if !ok {
		return PurgeReport{}, apperr.Forbidden()
	}

	unlock, err := s.locks.Lock(ctx, "owner:"+owner)
	if err != nil {
		return PurgeReport{}, apperr.Wrap(apperr.KindConflict, "trash is already being emptied", err)
	}
	defer unlock()

	trashed, err := s.photos.List(ctx, storage.PhotoFilter{OwnerID: owner, Trashed: true})
	if err != nil {
		return PurgeReport{}, apperr.Wrap(apperr.KindCatalogReadFailed, "list trash", err)
	}

	outcomes := make([]purgeOutcome, len(trashed))
	work := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(s.cfg.PurgeWorkers)
	for i, p := range trashed {
		if ctx.Err() != nil {
			break
		}
		// g.Go blocks while every worker is busy, so the goroutine checks
		// again once it holds a slot. Skipped ones stay purgeNotRun.
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			outcomes[i] = s.purgeTrashed(work, p)
			return nil
		})
	}
	_ = g.Wait()

	var report PurgeReport
	for i, outcome := range outcomes {
		id := trashed[i].ID
		switch outcome.status {
		case purgeDone:
			report.Purged = append(report.Purged, id)
		case purgeFailed:
			var appErr *apperr.Error
			msg := outcome.err.Error()
			if errors.As(outcome.err, &appErr) {
				msg = appErr.Message
			}
			report.Failed = append(report.Failed, PurgeFailure{
				PhotoID:   id,
				Kind:      apperr.KindOf(outcome.err),
				Message:   msg,
				Retryable: apperr.IsRetryable(outcome.err),
			})
		case purgeNotRun:
			report.Cancelled = true
			report.Skipped = append(report.Skipped, id)
		default:
			report.Skipped = append(report.Skipped, id)
		}
	}

	s.logger.Info("trash emptied",
		"userID", owner,
		"purged", len(report.Purged),
		"failed", len(report.Failed),
		"skipped", len(report.Skipped),
		"cancelled", report.Cancelled,
	)

	return report, nil
}

// purgeTrashed re-reads the photo under its lock. A photo restored or purged
// since enumeration is skipped.
func (s *Service) purgeTrashed(ctx context.Context, p storage.Photo) purgeOutcome {
	unlock, err := s.locks.Lock(ctx, p.ID)
	if err != nil {
		return purgeOutcome{status: purgeFailed, err: apperr.Wrap(apperr.KindConflict, "photo is busy", err)}
	}
	defer unlock()

	current, err := s.photos.GetForOwner(ctx, p.ID, p.OwnerID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return purgeOutcome{status: purgeSkipped}
	case err != nil:
		return purgeOutcome{status: purgeFailed, err: apperr.Wrap(apperr.KindCatalogReadFailed, "load photo", err)}
	case !current.IsDeleted:
		return purgeOutcome{status: purgeSkipped}
	}

	if err := s.purge(ctx, current); err != nil {
		if apperr.Is(err, apperr.KindForbidden) {
			return purgeOutcome{status: purgeSkipped}
		}
		return purgeOutcome{status: purgeFailed, err: err}
	}
	return purgeOutcome{status: purgeDone}
}
