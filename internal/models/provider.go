package models

import (
	"strings"
	"time"

	"github.com/lib/pq"
)

// Protocol identifies the remote source variant of a provider.
type Protocol string

const (
	ProtocolFTP  Protocol = "ftp"
	ProtocolSFTP Protocol = "sftp"
	ProtocolIMAP Protocol = "imap"
)

// RunStatus is the last observed outcome of a provider run.
type RunStatus string

const (
	RunStatusOK      RunStatus = "ok"
	RunStatusRunning RunStatus = "running"
	RunStatusFailed  RunStatus = "failed"
)

// Provider is one configured remote tariff source: host, protocol,
// credentials, directory roles and CSV dialect. It is read-only during a run;
// the import engine only touches the last-run bookkeeping fields.
type Provider struct {
	ID       int      `db:"id" json:"id"`
	Name     string   `db:"name" json:"name"`
	Company  string   `db:"company" json:"company"`
	Active   bool     `db:"active" json:"active"`
	Protocol Protocol `db:"protocol" json:"protocol"`

	Host     string `db:"host" json:"host"`
	Port     int    `db:"port" json:"port"`
	Username string `db:"username" json:"username"`
	Password string `db:"password" json:"-"`

	TimeoutSec   int `db:"timeout_sec" json:"timeoutSec"`
	Retries      int `db:"retries" json:"retries"`
	KeepaliveSec int `db:"keepalive_sec" json:"keepaliveSec"`

	FTPPassive bool `db:"ftp_passive" json:"ftpPassive"`

	SFTPHostKeyFingerprint string `db:"sftp_hostkey_fingerprint" json:"sftpHostkeyFingerprint,omitempty"`
	SFTPPrivateKey         string `db:"sftp_private_key" json:"-"`
	SFTPKeyPassphrase      string `db:"sftp_key_passphrase" json:"-"`

	IMAPUseSSL         bool   `db:"imap_use_ssl" json:"imapUseSsl"`
	IMAPSearchCriteria string `db:"imap_search_criteria" json:"imapSearchCriteria,omitempty"`
	IMAPMarkSeen       bool   `db:"imap_mark_seen" json:"imapMarkSeen"`
	IMAPMoveProcessed  bool   `db:"imap_move_processed" json:"imapMoveProcessed"`
	IMAPMoveError      bool   `db:"imap_move_error" json:"imapMoveError"`

	DirIn        string `db:"dir_in" json:"dirIn"`
	DirProcessed string `db:"dir_processed" json:"dirProcessed"`
	DirError     string `db:"dir_error" json:"dirError"`

	IncludePattern string `db:"include_pattern" json:"includePattern"`
	ExcludePattern string `db:"exclude_pattern" json:"excludePattern,omitempty"`

	CSVDelimiter     string         `db:"csv_delimiter" json:"csvDelimiter"`
	CSVHasHeader     bool           `db:"csv_has_header" json:"csvHasHeader"`
	DecimalSeparator string         `db:"decimal_separator" json:"decimalSeparator"`
	BarcodeColumns   pq.StringArray `db:"barcode_columns" json:"barcodeColumns"`
	PriceColumn      string         `db:"price_column" json:"priceColumn"`

	MaxFilesPerRun int  `db:"max_files_per_run" json:"maxFilesPerRun"`
	MaxPreviewRows int  `db:"max_preview_rows" json:"maxPreviewRows"`
	AutoProcess    bool `db:"auto_process" json:"autoProcess"`

	LastRunStatus *RunStatus `db:"last_run_status" json:"lastRunStatus,omitempty"`
	LastRunError  *string    `db:"last_run_error" json:"lastRunError,omitempty"`
	LastRunAt     *time.Time `db:"last_run_at" json:"lastRunAt,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"-"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Timeout returns the per-call remote I/O timeout, defaulting to 60s.
func (p *Provider) Timeout() time.Duration {
	if p.TimeoutSec <= 0 {
		return 60 * time.Second
	}
	return time.Duration(p.TimeoutSec) * time.Second
}

// Keepalive returns the SFTP keepalive interval, zero when disabled.
func (p *Provider) Keepalive() time.Duration {
	if p.KeepaliveSec <= 0 {
		return 0
	}
	return time.Duration(p.KeepaliveSec) * time.Second
}

// EffectivePort returns the configured port or the protocol default.
func (p *Provider) EffectivePort() int {
	if p.Port > 0 {
		return p.Port
	}
	switch p.Protocol {
	case ProtocolFTP:
		return 21
	case ProtocolSFTP:
		return 22
	case ProtocolIMAP:
		if p.IMAPUseSSL {
			return 993
		}
		return 143
	}
	return 0
}

// Delimiter returns the CSV delimiter rune, defaulting to ';'.
func (p *Provider) Delimiter() rune {
	d := strings.TrimSpace(p.CSVDelimiter)
	if p.CSVDelimiter == "\t" || d == "\\t" || strings.EqualFold(d, "tab") {
		return '\t'
	}
	if d == "" {
		return ';'
	}
	return []rune(d)[0]
}

// SearchCriteria returns the IMAP search criterion, defaulting to UNSEEN.
func (p *Provider) SearchCriteria() string {
	c := strings.TrimSpace(p.IMAPSearchCriteria)
	if c == "" {
		return "UNSEEN"
	}
	return c
}

// Inbox returns the listing root, defaulting per protocol.
func (p *Provider) Inbox() string {
	if d := strings.TrimSpace(p.DirIn); d != "" {
		return d
	}
	if p.Protocol == ProtocolIMAP {
		return "INBOX"
	}
	return "/"
}
