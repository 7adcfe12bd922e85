package remote

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/ssh"

	"github.com/ivspro/tariff-import/internal/models"
)

// sftpSource is the encrypted file-transfer backend. Like the plain variant
// it never mutates the remote.
type sftpSource struct {
	ssh      *ssh.Client
	client   *sftp.Client
	provider *models.Provider
	stopKA   chan struct{}
}

func dialSFTP(ctx context.Context, p *models.Provider) (Source, error) {
	auth, err := sftpAuthMethods(p)
	if err != nil {
		return nil, &SourceError{Kind: KindAuth, Protocol: models.ProtocolSFTP, Host: p.Host, Err: err}
	}

	cfg := &ssh.ClientConfig{
		User:            p.Username,
		Auth:            auth,
		Timeout:         p.Timeout(),
		HostKeyCallback: hostKeyCallback(p.SFTPHostKeyFingerprint),
	}

	addr := fmt.Sprintf("%s:%d", strings.TrimSpace(p.Host), p.EffectivePort())
	conn, err := ssh.Dial("tcp", addr, cfg)
	if err != nil {
		return nil, classifySSHError(p, err)
	}

	client, err := sftp.NewClient(conn)
	if err != nil {
		_ = conn.Close()
		return nil, &SourceError{Kind: KindNetwork, Protocol: models.ProtocolSFTP, Host: p.Host, Err: err}
	}

	s := &sftpSource{ssh: conn, client: client, provider: p, stopKA: make(chan struct{})}
	if ka := p.Keepalive(); ka > 0 {
		go s.keepalive(ka)
	}
	return s, nil
}

// sftpAuthMethods builds the auth chain: private key when configured,
// password otherwise (both when both are present; the server picks).
func sftpAuthMethods(p *models.Provider) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod
	if key := strings.TrimSpace(p.SFTPPrivateKey); key != "" {
		var signer ssh.Signer
		var err error
		if p.SFTPKeyPassphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase([]byte(key), []byte(p.SFTPKeyPassphrase))
		} else {
			signer, err = ssh.ParsePrivateKey([]byte(key))
		}
		if err != nil {
			return nil, fmt.Errorf("unable to load private key: %w", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if p.Password != "" {
		methods = append(methods, ssh.Password(p.Password))
	}
	if len(methods) == 0 {
		return nil, fmt.Errorf("no password or private key configured")
	}
	return methods, nil
}

// hostKeyCallback pins the server identity to the configured fingerprint.
// Without a fingerprint any host key is accepted; with one, a mismatch fails
// closed. Both MD5 hex and SHA256 fingerprints are accepted.
func hostKeyCallback(fingerprint string) ssh.HostKeyCallback {
	want := normalizeFingerprint(fingerprint)
	if want == "" {
		return ssh.InsecureIgnoreHostKey()
	}
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		sum := md5.Sum(key.Marshal())
		md5fp := hex.EncodeToString(sum[:])
		sha256fp := normalizeFingerprint(ssh.FingerprintSHA256(key))
		if want == md5fp || want == sha256fp {
			return nil
		}
		return &hostKeyMismatchError{expected: fingerprint, gotMD5: md5fp}
	}
}

type hostKeyMismatchError struct {
	expected string
	gotMD5   string
}

func (e *hostKeyMismatchError) Error() string {
	return fmt.Sprintf("host key fingerprint mismatch: expected %s, got %s", e.expected, e.gotMD5)
}

func normalizeFingerprint(fp string) string {
	fp = strings.TrimSpace(fp)
	fp = strings.TrimPrefix(fp, "MD5:")
	fp = strings.TrimPrefix(fp, "SHA256:")
	return strings.ToLower(strings.ReplaceAll(fp, ":", ""))
}

func classifySSHError(p *models.Provider, err error) *SourceError {
	msg := err.Error()
	kind := KindNetwork
	if strings.Contains(msg, "host key fingerprint mismatch") {
		kind = KindHostKey
	} else if strings.Contains(msg, "unable to authenticate") || strings.Contains(msg, "permission denied") {
		kind = KindAuth
	}
	return &SourceError{Kind: kind, Protocol: models.ProtocolSFTP, Host: p.Host, Err: err}
}

// keepalive pings the server during long transfers so idle-killing firewalls
// keep the session open.
func (s *sftpSource) keepalive(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			if _, _, err := s.ssh.SendRequest("keepalive@openssh.com", true, nil); err != nil {
				log.Debug().Err(err).Str("host", s.provider.Host).Msg("sftp keepalive failed")
				return
			}
		case <-s.stopKA:
			return
		}
	}
}

func (s *sftpSource) List(ctx context.Context, dir, include, exclude string, max int) ([]FileInfo, error) {
	// Try the configured inbox first, then the login home for servers that
	// drop the session into a home directory.
	dirs := []string{dir}
	if home, err := s.client.Getwd(); err == nil && home != "" && home != dir {
		dirs = append(dirs, home)
	}
	if dir != "." {
		dirs = append(dirs, ".")
	}

	var lastErr error
	for _, d := range dirs {
		if d == "" {
			d = "."
		}
		entries, err := s.client.ReadDir(d)
		if err != nil {
			lastErr = err
			continue
		}
		var files []FileInfo
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if !Match(e.Name(), include, exclude) {
				continue
			}
			files = append(files, FileInfo{
				Path:    joinRemote(d, e.Name()),
				Name:    e.Name(),
				Size:    e.Size(),
				ModTime: e.ModTime(),
			})
		}
		if len(files) > 0 {
			return Select(files, "", "", max), nil
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("sftp listing failed: %w", lastErr)
	}
	return nil, nil
}

func (s *sftpSource) Open(ctx context.Context, f FileInfo) (io.ReadCloser, error) {
	r, err := s.client.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("sftp open %s: %w", f.Path, err)
	}
	return r, nil
}

func (s *sftpSource) Relocate(ctx context.Context, f FileInfo, role Role) error {
	return ErrRelocateUnsupported
}

func (s *sftpSource) MarkSeen(ctx context.Context, f FileInfo) error {
	return ErrRelocateUnsupported
}

func (s *sftpSource) Close() error {
	close(s.stopKA)
	if err := s.client.Close(); err != nil {
		_ = s.ssh.Close()
		return err
	}
	return s.ssh.Close()
}
