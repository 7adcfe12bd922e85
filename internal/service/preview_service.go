package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/ivspro/tariff-import/internal/cache"
	"github.com/ivspro/tariff-import/internal/csvstream"
	"github.com/ivspro/tariff-import/internal/models"
	"github.com/ivspro/tariff-import/internal/remote"
	"github.com/ivspro/tariff-import/internal/repository"
	"github.com/ivspro/tariff-import/internal/utils"
)

const defaultPreviewRows = 20

// Preview is the first slice of one remote file, for operator display.
type Preview struct {
	File    remote.FileInfo `json:"file"`
	Headers []string        `json:"headers"`
	Rows    [][]string      `json:"rows"`
	// BadRows counts records skipped for parse problems within the
	// previewed range.
	BadRows int `json:"badRows"`
}

// PreviewService lets operators inspect a provider's remote inbox
// before committing to a run. It shares listing and parsing with the
// batch path so both see identical candidates.
type PreviewService struct {
	providers *repository.ProviderRepository
	previews  *cache.PreviewCache
	dialOpts  remote.Options
}

func NewPreviewService(providers *repository.ProviderRepository, previews *cache.PreviewCache, dialOpts remote.Options) *PreviewService {
	return &PreviewService{providers: providers, previews: previews, dialOpts: dialOpts}
}

func (s *PreviewService) loadProvider(ctx context.Context, providerID int) (remote.Source, *models.Provider, error) {
	p, err := s.providers.GetByID(ctx, providerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, utils.ErrProviderNotFound
		}
		return nil, nil, err
	}
	if p.Host == "" {
		return nil, nil, utils.ErrProviderNotReady
	}
	src, err := remote.Dial(ctx, p, s.dialOpts)
	if err != nil {
		return nil, nil, err
	}
	return src, p, nil
}

// TestConnection dials the provider and disconnects. The wrapped
// adapter error carries the auth/network/hostkey classification.
func (s *PreviewService) TestConnection(ctx context.Context, providerID int) error {
	src, _, err := s.loadProvider(ctx, providerID)
	if err != nil {
		return err
	}
	return src.Close()
}

// ListFiles returns the filtered, newest-first candidate set exactly as
// a run would see it.
func (s *PreviewService) ListFiles(ctx context.Context, providerID int) ([]remote.FileInfo, error) {
	src, p, err := s.loadProvider(ctx, providerID)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	maxFiles := p.MaxFilesPerRun
	if maxFiles <= 0 {
		maxFiles = defaultMaxFilesPerRun
	}
	return src.List(ctx, p.Inbox(), p.IncludePattern, p.ExcludePattern, maxFiles)
}

// PreviewFile fetches the first rows of one remote file. Recent
// previews are served from cache to avoid re-downloading the file on
// every operator click.
func (s *PreviewService) PreviewFile(ctx context.Context, providerID int, remotePath string, maxRows int) (*Preview, error) {
	if s.previews != nil {
		var cached Preview
		if err := s.previews.Get(ctx, providerID, remotePath, &cached); err == nil && len(cached.Rows) >= maxRows {
			return &cached, nil
		}
	}

	src, p, err := s.loadProvider(ctx, providerID)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	if maxRows <= 0 {
		maxRows = p.MaxPreviewRows
	}
	if maxRows <= 0 {
		maxRows = defaultPreviewRows
	}

	f := remote.FileInfo{Path: remotePath, Name: fileBaseName(remotePath)}
	rc, err := src.Open(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrFileNotFound, err)
	}
	defer rc.Close()

	reader, err := csvstream.New(rc, csvstream.Options{
		Delimiter: p.Delimiter(),
		HasHeader: p.CSVHasHeader,
	})
	if err != nil {
		return nil, err
	}

	preview := &Preview{File: f, Headers: reader.Headers()}
	for len(preview.Rows) < maxRows {
		row, ok := reader.Next()
		if !ok {
			break
		}
		if row.Err != nil {
			preview.BadRows++
			continue
		}
		preview.Rows = append(preview.Rows, row.Values)
	}

	if s.previews != nil {
		if err := s.previews.Set(ctx, providerID, remotePath, preview); err != nil {
			log.Debug().Err(err).Str("path", remotePath).Msg("preview cache write failed")
		}
	}
	return preview, nil
}
