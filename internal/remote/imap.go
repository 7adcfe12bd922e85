package remote

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	"github.com/rs/zerolog/log"

	"github.com/ivspro/tariff-import/internal/models"
)

// maxUIDScan caps how many of the newest matching messages one listing
// inspects, keeping previews responsive on large mailboxes.
const maxUIDScan = 200

// imapSource treats message attachments as files. Listings fetch structure
// and internal date only, never full bodies; a full fetch happens only when
// a matching attachment is opened.
type imapSource struct {
	conn     *client.Client
	provider *models.Provider
}

func dialIMAP(ctx context.Context, p *models.Provider) (Source, error) {
	addr := fmt.Sprintf("%s:%d", strings.TrimSpace(p.Host), p.EffectivePort())

	var c *client.Client
	var err error
	if p.IMAPUseSSL {
		c, err = client.DialTLS(addr, nil)
	} else {
		c, err = client.Dial(addr)
	}
	if err != nil {
		return nil, &SourceError{Kind: KindNetwork, Protocol: models.ProtocolIMAP, Host: p.Host, Err: err}
	}
	c.Timeout = p.Timeout()

	// Opportunistic STARTTLS on plaintext connections.
	if !p.IMAPUseSSL {
		if ok, _ := c.SupportStartTLS(); ok {
			if err := c.StartTLS(nil); err != nil {
				log.Debug().Err(err).Str("host", p.Host).Msg("imap starttls failed, continuing")
			}
		}
	}

	if p.Username == "" {
		_ = c.Logout()
		return nil, &SourceError{Kind: KindAuth, Protocol: models.ProtocolIMAP, Host: p.Host,
			Err: fmt.Errorf("imap requires username/password")}
	}
	if err := c.Login(p.Username, p.Password); err != nil {
		_ = c.Logout()
		return nil, &SourceError{Kind: KindAuth, Protocol: models.ProtocolIMAP, Host: p.Host, Err: err}
	}

	return &imapSource{conn: c, provider: p}, nil
}

func (s *imapSource) List(ctx context.Context, dir, include, exclude string, max int) ([]FileInfo, error) {
	mailbox := normalizeMailbox(dir)
	if _, err := s.conn.Select(mailbox, true); err != nil {
		return nil, fmt.Errorf("imap select %s: %w", mailbox, err)
	}

	criteria := parseSearchCriteria(s.provider.SearchCriteria())
	uids, err := s.conn.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("imap search in %s: %w", mailbox, err)
	}
	if len(uids) == 0 {
		return nil, nil
	}
	// Newest messages carry the highest UIDs; scan those first, hard-capped.
	if len(uids) > maxUIDScan {
		uids = uids[len(uids)-maxUIDScan:]
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)
	items := []imap.FetchItem{imap.FetchUid, imap.FetchInternalDate, imap.FetchEnvelope, imap.FetchBodyStructure}

	messages := make(chan *imap.Message, 16)
	done := make(chan error, 1)
	go func() {
		done <- s.conn.UidFetch(seqset, items, messages)
	}()

	var files []FileInfo
	for msg := range messages {
		ts := msg.InternalDate
		if ts.IsZero() && msg.Envelope != nil {
			ts = msg.Envelope.Date
		}
		for _, name := range attachmentNames(msg.BodyStructure) {
			if !Match(name, include, exclude) {
				continue
			}
			files = append(files, FileInfo{
				Path:    encodeIMAPPath(mailbox, msg.Uid, name),
				Name:    name,
				Size:    0, // unknown without a full fetch
				ModTime: ts,
			})
		}
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("imap fetch structure in %s: %w", mailbox, err)
	}
	return Select(files, "", "", max), nil
}

func (s *imapSource) Open(ctx context.Context, f FileInfo) (io.ReadCloser, error) {
	mailbox, uid, attName, err := decodeIMAPPath(f.Path)
	if err != nil {
		return nil, err
	}
	if _, err := s.conn.Select(mailbox, true); err != nil {
		return nil, fmt.Errorf("imap select %s: %w", mailbox, err)
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)
	section := &imap.BodySectionName{Peek: true}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- s.conn.UidFetch(seqset, []imap.FetchItem{section.FetchItem()}, messages)
	}()

	msg := <-messages
	if err := <-done; err != nil {
		return nil, fmt.Errorf("imap fetch %s: %w", f.Path, err)
	}
	if msg == nil {
		return nil, fmt.Errorf("imap fetch %s: message not found", f.Path)
	}
	body := msg.GetBody(section)
	if body == nil {
		return nil, fmt.Errorf("imap fetch %s: empty payload", f.Path)
	}

	mr, err := mail.CreateReader(body)
	if err != nil {
		return nil, fmt.Errorf("imap parse message %s: %w", f.Path, err)
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("imap parse part %s: %w", f.Path, err)
		}
		if h, ok := part.Header.(*mail.AttachmentHeader); ok {
			name, _ := h.Filename()
			if name == attName {
				return io.NopCloser(part.Body), nil
			}
		}
	}
	return nil, fmt.Errorf("attachment %s not found in message", attName)
}

// Relocate copies the source message to the mailbox folder bound to role and
// expunges the original. Best-effort folder creation.
func (s *imapSource) Relocate(ctx context.Context, f FileInfo, role Role) error {
	mailbox, uid, _, err := decodeIMAPPath(f.Path)
	if err != nil {
		return err
	}
	target := s.provider.DirProcessed
	if role == RoleError {
		target = s.provider.DirError
	}
	target = normalizeMailbox(target)
	if target == "INBOX" {
		if role == RoleError {
			target = "Error"
		} else {
			target = "Processed"
		}
	}

	if err := s.conn.Create(target); err != nil {
		log.Debug().Err(err).Str("mailbox", target).Msg("imap create folder (may already exist)")
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)
	if err := s.conn.UidCopy(seqset, target); err != nil {
		return fmt.Errorf("imap copy to %s: %w", target, err)
	}
	if _, err := s.conn.Select(mailbox, false); err != nil {
		return fmt.Errorf("imap reselect %s: %w", mailbox, err)
	}
	flags := []interface{}{imap.DeletedFlag}
	if err := s.conn.UidStore(seqset, imap.FormatFlagsOp(imap.AddFlags, true), flags, nil); err != nil {
		return fmt.Errorf("imap flag deleted: %w", err)
	}
	if err := s.conn.Expunge(nil); err != nil {
		return fmt.Errorf("imap expunge: %w", err)
	}
	return nil
}

func (s *imapSource) MarkSeen(ctx context.Context, f FileInfo) error {
	mailbox, uid, _, err := decodeIMAPPath(f.Path)
	if err != nil {
		return err
	}
	if _, err := s.conn.Select(mailbox, false); err != nil {
		return fmt.Errorf("imap select %s: %w", mailbox, err)
	}
	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)
	flags := []interface{}{imap.SeenFlag}
	return s.conn.UidStore(seqset, imap.FormatFlagsOp(imap.AddFlags, true), flags, nil)
}

func (s *imapSource) Close() error {
	return s.conn.Logout()
}

// attachmentNames walks a body structure collecting declared attachment file
// names, without fetching any payload.
func attachmentNames(bs *imap.BodyStructure) []string {
	if bs == nil {
		return nil
	}
	var names []string
	var walk func(part *imap.BodyStructure)
	walk = func(part *imap.BodyStructure) {
		if part == nil {
			return
		}
		if name, err := part.Filename(); err == nil && name != "" {
			names = append(names, name)
		}
		for _, child := range part.Parts {
			walk(child)
		}
	}
	walk(bs)
	return names
}

// parseSearchCriteria maps a whitespace-separated flag criterion (UNSEEN,
// SEEN, FLAGGED, ...) onto IMAP search criteria. Unknown tokens are ignored;
// an empty result means ALL.
func parseSearchCriteria(raw string) *imap.SearchCriteria {
	criteria := imap.NewSearchCriteria()
	for _, tok := range strings.Fields(strings.ToUpper(raw)) {
		switch tok {
		case "ALL":
		case "UNSEEN":
			criteria.WithoutFlags = append(criteria.WithoutFlags, imap.SeenFlag)
		case "SEEN":
			criteria.WithFlags = append(criteria.WithFlags, imap.SeenFlag)
		case "FLAGGED":
			criteria.WithFlags = append(criteria.WithFlags, imap.FlaggedFlag)
		case "UNFLAGGED":
			criteria.WithoutFlags = append(criteria.WithoutFlags, imap.FlaggedFlag)
		case "ANSWERED":
			criteria.WithFlags = append(criteria.WithFlags, imap.AnsweredFlag)
		case "UNANSWERED":
			criteria.WithoutFlags = append(criteria.WithoutFlags, imap.AnsweredFlag)
		case "RECENT":
			criteria.WithFlags = append(criteria.WithFlags, imap.RecentFlag)
		default:
			log.Debug().Str("token", tok).Msg("ignoring unknown imap search token")
		}
	}
	return criteria
}

func normalizeMailbox(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimLeft(name, "/")
	if name == "" || name == "." {
		return "INBOX"
	}
	return name
}

// encodeIMAPPath packs mailbox, message UID and attachment name into one
// locator string so FileInfo stays uniform across backends.
func encodeIMAPPath(mailbox string, uid uint32, name string) string {
	return fmt.Sprintf("imap://%s|%d|%s", mailbox, uid, name)
}

// SplitMailboxPath decomposes a mailbox locator produced by a listing.
// Non-mailbox paths return an error.
func SplitMailboxPath(path string) (mailbox string, uid uint32, name string, err error) {
	if !strings.HasPrefix(path, "imap://") {
		return "", 0, "", fmt.Errorf("not a mailbox path: %s", path)
	}
	return decodeIMAPPath(path)
}

func decodeIMAPPath(path string) (mailbox string, uid uint32, name string, err error) {
	raw := strings.TrimPrefix(path, "imap://")
	parts := strings.SplitN(raw, "|", 3)
	if len(parts) != 3 {
		return "", 0, "", fmt.Errorf("invalid imap path: %s", path)
	}
	var n uint64
	if _, err := fmt.Sscanf(parts[1], "%d", &n); err != nil {
		return "", 0, "", fmt.Errorf("invalid imap uid in path %s: %w", path, err)
	}
	return parts[0], uint32(n), parts[2], nil
}
