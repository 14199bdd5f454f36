// Package tmimport loads external translation memories (TMX style units)
// into named memories used by the merge lookup.
package tmimport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/iudanet/tmmerge/internal/models"
	"github.com/iudanet/tmmerge/internal/server/storage"
	"github.com/iudanet/tmmerge/internal/validation"
)

// ErrInvalidInput is returned for units that fail validation.
var ErrInvalidInput = errors.New("invalid translation memory input")

// MaxUnitsPerImport limits the size of one import request.
const MaxUnitsPerImport = 10000

// Authorizer allows imports for administrators only.
type Authorizer interface {
	CheckAdmin(ctx context.Context, userID string) error
}

// Service imports translation memories.
type Service struct {
	logger *slog.Logger
	memory storage.TransMemoryStorage
	auth   Authorizer
	now    func() time.Time
}

// NewService creates an import service.
func NewService(logger *slog.Logger, memory storage.TransMemoryStorage, auth Authorizer) *Service {
	return &Service{
		logger: logger,
		memory: memory,
		auth:   auth,
		now:    time.Now,
	}
}

// Result summarizes one import.
type Result struct {
	Memory *models.TranslationMemory
	Units  int
}

// Import creates the memory tmSlug if needed and upserts units by unique id.
func (s *Service) Import(ctx context.Context, userID, tmSlug, description string, units []*models.TransMemoryUnit) (*Result, error) {
	if err := s.auth.CheckAdmin(ctx, userID); err != nil {
		return nil, err
	}
	if err := validation.ValidateSlug("translation memory", tmSlug); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if len(units) > MaxUnitsPerImport {
		return nil, fmt.Errorf("%w: at most %d units per import, got %d", ErrInvalidInput, MaxUnitsPerImport, len(units))
	}

	now := s.now().UTC()
	if err := normalizeUnits(units, now); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	tm, err := s.memory.SaveTranslationMemory(ctx, &models.TranslationMemory{
		Slug:        tmSlug,
		Description: strings.TrimSpace(description),
		CreatedAt:   now,
	})
	if err != nil {
		return nil, err
	}

	n := 0
	if len(units) > 0 {
		n, err = s.memory.SaveTransMemoryUnits(ctx, tmSlug, units)
		if err != nil {
			return nil, fmt.Errorf("failed to save tm units: %w", err)
		}
	}

	s.logger.InfoContext(ctx, "translation memory imported",
		slog.String("tm", tmSlug),
		slog.Int("units", n))

	return &Result{Memory: tm, Units: n}, nil
}

func normalizeUnits(units []*models.TransMemoryUnit, now time.Time) error {
	seen := make(map[string]struct{}, len(units))
	for i, u := range units {
		if u == nil {
			return fmt.Errorf("unit %d is empty", i)
		}
		u.UniqueID = strings.TrimSpace(u.UniqueID)
		if u.UniqueID == "" {
			return fmt.Errorf("unit %d: unique id cannot be empty", i)
		}
		if _, dup := seen[u.UniqueID]; dup {
			return fmt.Errorf("duplicate unique id %q", u.UniqueID)
		}
		seen[u.UniqueID] = struct{}{}

		if err := validation.ValidateLocaleID(u.SourceLocale); err != nil {
			return fmt.Errorf("unit %s: %w", u.UniqueID, err)
		}
		if _, ok := u.Variants[u.SourceLocale]; !ok {
			return fmt.Errorf("unit %s has no variant in source locale %s", u.UniqueID, u.SourceLocale)
		}
		if len(u.Variants) < 2 {
			return fmt.Errorf("unit %s needs at least one translation", u.UniqueID)
		}
		for locale := range u.Variants {
			if err := validation.ValidateLocaleID(locale); err != nil {
				return fmt.Errorf("unit %s: %w", u.UniqueID, err)
			}
		}
		if u.LastChanged.IsZero() {
			u.LastChanged = now
		}
	}
	return nil
}
