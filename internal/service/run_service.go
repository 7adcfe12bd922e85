package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ivspro/tariff-import/internal/cache"
	"github.com/ivspro/tariff-import/internal/importer"
	"github.com/ivspro/tariff-import/internal/lock"
	"github.com/ivspro/tariff-import/internal/models"
	"github.com/ivspro/tariff-import/internal/remote"
	"github.com/ivspro/tariff-import/internal/repository"
	"github.com/ivspro/tariff-import/internal/sse"
	"github.com/ivspro/tariff-import/internal/utils"
)

const defaultMaxFilesPerRun = 10

// RunService coordinates one provider import run: lock, connect, list,
// then stream each file through the import engine. A file failure is
// logged and never stops the remaining files.
type RunService struct {
	providers *repository.ProviderRepository
	logs      *repository.ImportLogRepository
	importer  *importer.FileImporter
	locker    *lock.Locker
	dialOpts  remote.Options
	notifier  sse.RunNotifier
	previews  *cache.PreviewCache
}

func NewRunService(
	providers *repository.ProviderRepository,
	logs *repository.ImportLogRepository,
	imp *importer.FileImporter,
	locker *lock.Locker,
	dialOpts remote.Options,
	notifier sse.RunNotifier,
	previews *cache.PreviewCache,
) *RunService {
	return &RunService{
		providers: providers,
		logs:      logs,
		importer:  imp,
		locker:    locker,
		dialOpts:  dialOpts,
		notifier:  notifier,
		previews:  previews,
	}
}

// ProcessProvider runs a full import for one provider. Returns
// ErrRunInProgress when another run holds the provider lock.
func (s *RunService) ProcessProvider(ctx context.Context, providerID int) error {
	p, err := s.loadRunnable(ctx, providerID)
	if err != nil {
		return err
	}
	return s.run(ctx, p, nil)
}

// ProcessSelected imports only operator-chosen remote paths. Files are
// never relocated on this path, so a selection can be replayed.
func (s *RunService) ProcessSelected(ctx context.Context, providerID int, paths []string) error {
	if len(paths) == 0 {
		return fmt.Errorf("no files selected")
	}
	p, err := s.loadRunnable(ctx, providerID)
	if err != nil {
		return err
	}
	files := make([]remote.FileInfo, 0, len(paths))
	for _, rp := range paths {
		files = append(files, remote.FileInfo{Path: rp, Name: fileBaseName(rp)})
	}
	return s.run(ctx, p, files)
}

func (s *RunService) loadRunnable(ctx context.Context, providerID int) (*models.Provider, error) {
	p, err := s.providers.GetByID(ctx, providerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, utils.ErrProviderNotFound
		}
		return nil, err
	}
	if !p.Active {
		return nil, utils.ErrProviderInactive
	}
	if p.Host == "" {
		return nil, utils.ErrProviderNotReady
	}
	return p, nil
}

// run executes the pipeline. A nil selection means list-and-filter;
// a non-nil one skips listing and relocation.
func (s *RunService) run(ctx context.Context, p *models.Provider, selected []remote.FileInfo) error {
	lk, err := s.locker.Acquire(ctx, fmt.Sprintf("provider:%d", p.ID))
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			log.Warn().Int("provider_id", p.ID).Str("provider", p.Name).
				Msg("run skipped, another run in progress")
			return utils.ErrRunInProgress
		}
		return err
	}
	defer func() {
		if rerr := lk.Release(context.WithoutCancel(ctx)); rerr != nil {
			log.Warn().Err(rerr).Int("provider_id", p.ID).Msg("lock release failed")
		}
	}()

	runID := uuid.NewString()
	logger := log.With().Str("run_id", runID).Int("provider_id", p.ID).Str("provider", p.Name).Logger()
	logger.Info().Str("protocol", string(p.Protocol)).Msg("run started")
	if s.notifier != nil {
		s.notifier.NotifyRunStarted(runID, p)
	}

	if err := s.providers.UpdateRunStatus(ctx, p.ID, models.RunStatusRunning, ""); err != nil {
		return err
	}

	src, err := remote.Dial(ctx, p, s.dialOpts)
	if err != nil {
		s.finishRun(ctx, p, models.RunStatusFailed, err.Error())
		s.writeRunFailureLog(ctx, p, runID, fmt.Sprintf("connection failed: %v", err))
		s.notifyFinished(runID, p, models.RunStatusFailed, err.Error())
		return err
	}
	defer src.Close()

	files := selected
	relocate := selected == nil
	if files == nil {
		maxFiles := p.MaxFilesPerRun
		if maxFiles <= 0 {
			maxFiles = defaultMaxFilesPerRun
		}
		files, err = src.List(ctx, p.Inbox(), p.IncludePattern, p.ExcludePattern, maxFiles)
		if err != nil {
			s.finishRun(ctx, p, models.RunStatusFailed, err.Error())
			s.writeRunFailureLog(ctx, p, runID, fmt.Sprintf("listing failed: %v", err))
			s.notifyFinished(runID, p, models.RunStatusFailed, err.Error())
			return err
		}
	}

	if len(files) == 0 {
		// still leaves a trace of the attempt
		now := time.Now()
		rec := &models.ImportLog{
			RunID:      runID,
			ProviderID: p.ID,
			Protocol:   p.Protocol,
			FileName:   "",
			State:      models.ImportStateDone,
			StartedAt:  now,
			EndedAt:    &now,
			Message:    "no matching files",
		}
		if err := s.logs.Create(ctx, rec); err != nil {
			logger.Error().Err(err).Msg("log write failed")
		}
		s.finishRun(ctx, p, models.RunStatusOK, "")
		s.notifyFinished(runID, p, models.RunStatusOK, "no matching files")
		logger.Info().Msg("run finished, no matching files")
		return nil
	}

	failed := 0
	for _, f := range files {
		if err := s.processFile(ctx, p, src, f, runID, relocate); err != nil {
			failed++
			logger.Error().Err(err).Str("file", f.Name).Msg("file failed, continuing")
		}
	}

	status, runErr := models.RunStatusOK, ""
	if failed == len(files) {
		status, runErr = models.RunStatusFailed, fmt.Sprintf("all %d files failed", failed)
	}
	s.finishRun(ctx, p, status, runErr)
	s.notifyFinished(runID, p, status, runErr)
	logger.Info().Int("files", len(files)).Int("failed", failed).Msg("run finished")
	return nil
}

// processFile streams one file through the importer and appends its log
// record. The returned error marks the file as failed; the run goes on.
func (s *RunService) processFile(ctx context.Context, p *models.Provider, src remote.Source, f remote.FileInfo, runID string, relocate bool) error {
	started := time.Now()
	rec := &models.ImportLog{
		RunID:      runID,
		ProviderID: p.ID,
		Protocol:   p.Protocol,
		FileName:   f.Name,
		State:      models.ImportStatePending,
		StartedAt:  started,
	}
	if !f.ModTime.IsZero() {
		mt := f.ModTime
		rec.RemoteModTime = &mt
	}

	var fileErr error
	rc, err := src.Open(ctx, f)
	if err != nil {
		fileErr = fmt.Errorf("open %s: %w", f.Path, err)
	} else {
		var res *importer.Result
		res, fileErr = s.importer.ImportFile(ctx, p, f.Name, rc)
		if cerr := rc.Close(); cerr != nil && fileErr == nil {
			log.Debug().Err(cerr).Str("file", f.Name).Msg("close after import")
		}
		if res != nil {
			rec.TotalLines = res.TotalLines
			rec.SuccessCount = res.SuccessCount
			rec.ErrorCount = res.ErrorCount
			rec.RefClean = res.RefClean
			rec.DedupCount = res.DedupCount
			rec.ConflictCount = res.ConflictCount
			rec.NotFoundCount = res.NotFoundCount
			rec.DetailHTML = res.DetailHTML
		}
	}

	ended := time.Now()
	rec.EndedAt = &ended
	rec.DurationSec = ended.Sub(started).Seconds()
	if fileErr != nil {
		rec.State = models.ImportStateError
		rec.Message = fileErr.Error()
	} else {
		rec.State = models.ImportStateDone
		rec.Message = fmt.Sprintf("%d/%d lines applied", rec.SuccessCount, rec.TotalLines)
	}

	if err := s.logs.Create(ctx, rec); err != nil {
		log.Error().Err(err).Str("file", f.Name).Msg("log write failed")
	}
	if s.notifier != nil {
		s.notifier.NotifyFileDone(runID, p, rec)
	}

	// The file just changed state remotely, so any cached preview of it
	// is stale.
	if s.previews != nil {
		if err := s.previews.Invalidate(context.WithoutCancel(ctx), p.ID, f.Path); err != nil {
			log.Debug().Err(err).Str("file", f.Name).Msg("preview invalidation failed")
		}
	}

	if relocate {
		s.settleRemote(ctx, p, src, f, fileErr == nil)
	}
	return fileErr
}

// settleRemote applies the post-import mailbox actions. Only the
// mailbox backend ever mutates the remote, and only when the provider
// opts in. Failures here are logged, never propagated.
func (s *RunService) settleRemote(ctx context.Context, p *models.Provider, src remote.Source, f remote.FileInfo, ok bool) {
	if p.Protocol != models.ProtocolIMAP {
		return
	}
	if ok && p.IMAPMarkSeen {
		if err := src.MarkSeen(ctx, f); err != nil {
			log.Warn().Err(err).Str("file", f.Name).Msg("mark seen failed")
		}
	}
	move := (ok && p.IMAPMoveProcessed) || (!ok && p.IMAPMoveError)
	if !move {
		return
	}
	role := remote.RoleProcessed
	if !ok {
		role = remote.RoleError
	}
	if err := src.Relocate(ctx, f, role); err != nil && !errors.Is(err, remote.ErrRelocateUnsupported) {
		log.Warn().Err(err).Str("file", f.Name).Str("role", string(role)).Msg("relocate failed")
	}
}

func (s *RunService) finishRun(ctx context.Context, p *models.Provider, status models.RunStatus, runErr string) {
	if err := s.providers.UpdateRunStatus(context.WithoutCancel(ctx), p.ID, status, runErr); err != nil {
		log.Error().Err(err).Int("provider_id", p.ID).Msg("run status update failed")
	}
}

func (s *RunService) notifyFinished(runID string, p *models.Provider, status models.RunStatus, msg string) {
	if s.notifier != nil {
		s.notifier.NotifyRunFinished(runID, p, status, msg)
	}
}

func (s *RunService) writeRunFailureLog(ctx context.Context, p *models.Provider, runID, msg string) {
	now := time.Now()
	rec := &models.ImportLog{
		RunID:      runID,
		ProviderID: p.ID,
		Protocol:   p.Protocol,
		State:      models.ImportStateError,
		StartedAt:  now,
		EndedAt:    &now,
		Message:    msg,
	}
	if err := s.logs.Create(context.WithoutCancel(ctx), rec); err != nil {
		log.Error().Err(err).Int("provider_id", p.ID).Msg("log write failed")
	}
}

// fileBaseName keeps the attachment name embedded in mailbox locators
// and falls back to the path base elsewhere.
func fileBaseName(remotePath string) string {
	if mailbox, _, name, err := remote.SplitMailboxPath(remotePath); err == nil && mailbox != "" {
		return name
	}
	return path.Base(remotePath)
}
