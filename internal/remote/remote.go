package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ivspro/tariff-import/internal/models"
)

// Role names a remote directory (or mailbox folder) by its function.
type Role string

const (
	RoleProcessed Role = "processed"
	RoleError     Role = "error"
)

// FileInfo describes one remote file as seen during a listing. It is
// ephemeral: valid for the duration of the listing/selection that produced it.
type FileInfo struct {
	// Path is the adapter-specific locator (directory path, or a mailbox
	// message/attachment reference for IMAP sources).
	Path string `json:"path"`
	Name string `json:"name"`
	// Size is 0 when unknown (IMAP attachments before a full fetch).
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
}

// Source is the uniform capability surface over the three remote backends.
// Non-mailbox implementations never rename, move or delete anything on the
// remote; their Relocate returns ErrRelocateUnsupported.
type Source interface {
	// List enumerates files under dir matching the include/exclude globs,
	// newest first, truncated to max when max > 0.
	List(ctx context.Context, dir, include, exclude string, max int) ([]FileInfo, error)

	// Open returns a byte stream for the file. The caller must Close it.
	Open(ctx context.Context, f FileInfo) (io.ReadCloser, error)

	// Relocate moves the source message to the folder bound to role.
	// Supported by the mailbox backend only.
	Relocate(ctx context.Context, f FileInfo, role Role) error

	// MarkSeen flags the source message as read. Mailbox backend only.
	MarkSeen(ctx context.Context, f FileInfo) error

	Close() error
}

// ErrRelocateUnsupported is returned by backends that cannot move remote
// files. Callers treat it as a no-op, not a failure.
var ErrRelocateUnsupported = errors.New("relocate not supported by this backend")

// ErrCapabilityUnavailable reports that the encrypted-transfer capability is
// switched off (or otherwise absent). Distinct from network failures so that
// operators get an actionable message instead of a generic I/O error.
var ErrCapabilityUnavailable = errors.New("sftp capability unavailable")

// ErrorKind classifies a connection failure at the adapter boundary.
type ErrorKind string

const (
	KindAuth    ErrorKind = "auth"
	KindNetwork ErrorKind = "network"
	KindHostKey ErrorKind = "hostkey"
)

// SourceError is a typed "source unavailable" error distinguishing auth
// failures, network failures and host-identity mismatches.
type SourceError struct {
	Kind     ErrorKind
	Protocol models.Protocol
	Host     string
	Err      error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s source unavailable (%s) for %s: %v", e.Protocol, e.Kind, e.Host, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// Retryable reports whether the failure is transient. Only network failures
// are retried; auth and host-key mismatches never recover on their own.
func (e *SourceError) Retryable() bool { return e.Kind == KindNetwork }

// Options carries global adapter switches resolved from configuration.
type Options struct {
	// SFTPDisabled is the kill-switch for the encrypted-transfer capability.
	SFTPDisabled bool
}

// Dial opens a connected Source for the provider, applying the configured
// retry budget to transient network failures with exponential backoff.
func Dial(ctx context.Context, p *models.Provider, opts Options) (Source, error) {
	var dial func(context.Context) (Source, error)
	switch p.Protocol {
	case models.ProtocolFTP:
		dial = func(ctx context.Context) (Source, error) { return dialFTP(ctx, p) }
	case models.ProtocolSFTP:
		if opts.SFTPDisabled {
			return nil, fmt.Errorf("provider %s: %w", p.Name, ErrCapabilityUnavailable)
		}
		dial = func(ctx context.Context) (Source, error) { return dialSFTP(ctx, p) }
	case models.ProtocolIMAP:
		dial = func(ctx context.Context) (Source, error) { return dialIMAP(ctx, p) }
	default:
		return nil, fmt.Errorf("unknown protocol %q for provider %s", p.Protocol, p.Name)
	}

	retries := p.Retries
	if retries < 0 {
		retries = 0
	}
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		src, err := dial(ctx)
		if err == nil {
			return src, nil
		}
		lastErr = err
		var se *SourceError
		if !errors.As(err, &se) || !se.Retryable() {
			return nil, err
		}
	}
	return nil, lastErr
}

// backoff returns the delay before the given retry attempt, capped at 10s.
func backoff(attempt int) time.Duration {
	d := 500 * time.Millisecond << (attempt - 1)
	if d > 10*time.Second {
		d = 10 * time.Second
	}
	return d
}
