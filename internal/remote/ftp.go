package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/textproto"
	"path"
	"strings"

	"github.com/jlaffaye/ftp"
	"github.com/rs/zerolog/log"

	"github.com/ivspro/tariff-import/internal/models"
)

// ftpSource is the plain file-transfer backend. It only ever reads from the
// remote: no rename, move or delete.
type ftpSource struct {
	conn     *ftp.ServerConn
	provider *models.Provider
}

func dialFTP(ctx context.Context, p *models.Provider) (Source, error) {
	addr := fmt.Sprintf("%s:%d", strings.TrimSpace(p.Host), p.EffectivePort())
	opts := []ftp.DialOption{
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(p.Timeout()),
	}
	// Some firewalled servers only speak classic PASV; the passive-mode
	// toggle maps to disabling EPSV negotiation.
	if !p.FTPPassive {
		opts = append(opts, ftp.DialWithDisabledEPSV(true))
	}

	conn, err := ftp.Dial(addr, opts...)
	if err != nil {
		return nil, &SourceError{Kind: KindNetwork, Protocol: models.ProtocolFTP, Host: p.Host, Err: err}
	}

	user := p.Username
	pass := p.Password
	if user == "" {
		user, pass = "anonymous", "anonymous"
	}
	if err := conn.Login(user, pass); err != nil {
		_ = conn.Quit()
		kind := KindNetwork
		var tpErr *textproto.Error
		if errors.As(err, &tpErr) && (tpErr.Code == ftp.StatusNotLoggedIn || tpErr.Code == ftp.StatusLoginNeedAccount) {
			kind = KindAuth
		}
		return nil, &SourceError{Kind: kind, Protocol: models.ProtocolFTP, Host: p.Host, Err: err}
	}

	return &ftpSource{conn: conn, provider: p}, nil
}

func (s *ftpSource) List(ctx context.Context, dir, include, exclude string, max int) ([]FileInfo, error) {
	// Chrooted servers often expose files in the login home rather than "/";
	// when the configured inbox is the root, fall back to the home directory.
	dirs := []string{dir}
	if dir == "" || dir == "/" {
		dirs = []string{dir, ".", ""}
	}

	files, err := listWithFallback(dirs, func(d string) ([]FileInfo, error) {
		return s.listDir(d, include, exclude)
	})
	if err != nil {
		return nil, fmt.Errorf("ftp listing failed: %w", err)
	}
	return Select(files, "", "", max), nil
}

// listWithFallback tries each candidate directory in order and returns the
// first non-empty listing. An empty listing is only trustworthy when at
// least one directory actually answered; when every attempt errors, the
// last error surfaces instead of a silent empty result.
func listWithFallback(dirs []string, list func(dir string) ([]FileInfo, error)) ([]FileInfo, error) {
	var lastErr error
	succeeded := false
	for _, d := range dirs {
		files, err := list(d)
		if err != nil {
			lastErr = err
			log.Debug().Err(err).Str("dir", d).Msg("listing attempt failed")
			continue
		}
		succeeded = true
		if len(files) > 0 {
			return files, nil
		}
	}
	if !succeeded && lastErr != nil {
		return nil, lastErr
	}
	return nil, nil
}

// listDir enumerates one directory, trying the structured listing first and
// degrading to NLST plus per-file SIZE/MDTM probes for minimal servers.
func (s *ftpSource) listDir(dir, include, exclude string) ([]FileInfo, error) {
	target := dir
	if target == "" {
		target = "."
	}
	entries, err := s.conn.List(target)
	if err == nil {
		var files []FileInfo
		for _, e := range entries {
			if e.Type != ftp.EntryTypeFile {
				continue
			}
			if e.Name == "" || e.Name == "." || e.Name == ".." {
				continue
			}
			if !Match(e.Name, include, exclude) {
				continue
			}
			files = append(files, FileInfo{
				Path:    joinRemote(dir, e.Name),
				Name:    e.Name,
				Size:    int64(e.Size),
				ModTime: e.Time,
			})
		}
		if len(files) > 0 {
			return files, nil
		}
	}

	names, nerr := s.conn.NameList(target)
	if nerr != nil {
		if err != nil {
			return nil, err
		}
		return nil, nerr
	}
	var files []FileInfo
	for _, name := range names {
		name = path.Base(strings.TrimSpace(name))
		if name == "" || name == "." || name == ".." {
			continue
		}
		if !Match(name, include, exclude) {
			continue
		}
		full := joinRemote(dir, name)
		f := FileInfo{Path: full, Name: name}
		if size, serr := s.conn.FileSize(full); serr == nil {
			f.Size = size
		}
		if t, terr := s.conn.GetTime(full); terr == nil {
			f.ModTime = t
		}
		files = append(files, f)
	}
	return files, nil
}

func (s *ftpSource) Open(ctx context.Context, f FileInfo) (io.ReadCloser, error) {
	resp, err := s.conn.Retr(f.Path)
	if err != nil {
		return nil, fmt.Errorf("ftp retrieve %s: %w", f.Path, err)
	}
	return resp, nil
}

func (s *ftpSource) Relocate(ctx context.Context, f FileInfo, role Role) error {
	return ErrRelocateUnsupported
}

func (s *ftpSource) MarkSeen(ctx context.Context, f FileInfo) error {
	return ErrRelocateUnsupported
}

func (s *ftpSource) Close() error {
	if err := s.conn.Quit(); err != nil {
		return s.conn.Logout()
	}
	return nil
}

// joinRemote joins a remote directory and file name with forward slashes,
// leaving relative directories ("", ".") alone.
func joinRemote(dir, name string) string {
	switch dir {
	case "", ".":
		return name
	}
	return strings.TrimRight(dir, "/") + "/" + name
}
