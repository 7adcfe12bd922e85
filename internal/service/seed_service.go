package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ivspro/tariff-import/internal/models"
	"github.com/ivspro/tariff-import/internal/repository"
	"github.com/ivspro/tariff-import/internal/utils"
)

// SeedService bootstraps provider records from a local seed file at
// startup. Supported shapes: JSON (object or array), delimited text
// with synonym headers, "Key? Value" blocks, and a bare
// host;login;password;name line. Upserts are idempotent by
// (name, company) and a blank password never overwrites a stored one.
type SeedService struct {
	providers      *repository.ProviderRepository
	defaultCompany string
}

func NewSeedService(providers *repository.ProviderRepository, defaultCompany string) *SeedService {
	if defaultCompany == "" {
		defaultCompany = "main"
	}
	return &SeedService{providers: providers, defaultCompany: defaultCompany}
}

// ApplyFromPath reads and applies a seed file. A missing path is not an
// error: the service logs and moves on, so a fresh install without a
// seed file still boots.
func (s *SeedService) ApplyFromPath(ctx context.Context, path string) (int, error) {
	if path == "" {
		return 0, nil
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", path).Msg("provider seed file absent, skipping")
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", utils.ErrSeedFileUnreadable, err)
	}

	entries, err := ParseSeed(data, strings.ToLower(filepath.Ext(path)))
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, entry := range entries {
		p, ok := s.buildProvider(entry)
		if !ok {
			continue
		}
		if err := s.providers.UpsertByNaturalKey(ctx, p); err != nil {
			log.Error().Err(err).Str("provider", p.Name).Msg("seed upsert failed")
			continue
		}
		applied++
	}
	log.Info().Str("path", path).Int("applied", applied).Msg("provider seed done")
	return applied, nil
}

// buildProvider turns one normalized entry into a provider record.
// Entries without a name (falling back to host) or host are dropped.
func (s *SeedService) buildProvider(entry map[string]string) (*models.Provider, bool) {
	name := strings.TrimSpace(entry["name"])
	host := strings.TrimSpace(entry["host"])
	if name == "" {
		name = host
	}
	if name == "" || host == "" {
		return nil, false
	}

	p := &models.Provider{
		Name:     name,
		Company:  s.defaultCompany,
		Active:   true,
		Host:     host,
		Username: strings.TrimSpace(entry["username"]),
		Password: entry["password"],
		Protocol: normalizeProtocol(entry["protocol"]),
	}
	if c := strings.TrimSpace(entry["company"]); c != "" {
		p.Company = c
	}

	if v, ok := parseSeedInt(entry["port"]); ok {
		p.Port = v
	}
	if v, ok := parseSeedInt(entry["timeout"]); ok {
		p.TimeoutSec = v
	}
	if v, ok := parseSeedInt(entry["retries"]); ok {
		p.Retries = v
	}
	if v, ok := parseSeedInt(entry["keepalive"]); ok {
		p.KeepaliveSec = v
	}

	p.DirIn = strings.TrimSpace(entry["dir_in"])
	p.DirProcessed = strings.TrimSpace(entry["dir_processed"])
	p.DirError = strings.TrimSpace(entry["dir_error"])
	p.IncludePattern = strings.TrimSpace(entry["include_pattern"])
	if p.IncludePattern == "" {
		p.IncludePattern = "*"
	}

	if p.Protocol == models.ProtocolIMAP {
		p.IMAPUseSSL = true
		if p.DirIn == "" {
			p.DirIn = "INBOX"
		}
		if p.DirProcessed == "" {
			p.DirProcessed = "Processed"
		}
		if p.DirError == "" {
			p.DirError = "Error"
		}
	}
	if v, ok := parseSeedBool(entry["imap_use_ssl"]); ok {
		p.IMAPUseSSL = v
	}
	if v, ok := parseSeedBool(entry["imap_mark_seen"]); ok {
		p.IMAPMarkSeen = v
	}
	if v, ok := parseSeedBool(entry["imap_move_processed"]); ok {
		p.IMAPMoveProcessed = v
	}
	if v, ok := parseSeedBool(entry["imap_move_error"]); ok {
		p.IMAPMoveError = v
	}
	if v := strings.TrimSpace(entry["imap_search_criteria"]); v != "" {
		p.IMAPSearchCriteria = v
	}
	return p, true
}

func normalizeProtocol(raw string) models.Protocol {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "ftp":
		return models.ProtocolFTP
	case "imap", "imap4", "email", "mail":
		return models.ProtocolIMAP
	case "sftp", "ssh":
		return models.ProtocolSFTP
	}
	// seed files in the wild rarely name the protocol; sftp is the
	// conservative default
	return models.ProtocolSFTP
}
