// Package imapmail fetches unread mail over IMAP for deployments without a
// Google account connection. It serves the same shape as the Gmail fetcher
// so context assembly doesn't care where mail came from.
package imapmail

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"github.com/dwizi/copilot-backend/internal/google"
)

const snippetMaxLen = 160

type Config struct {
	Host          string
	Port          int
	Username      string
	Password      string
	Mailbox       string
	TLSSkipVerify bool
}

type Fetcher struct {
	cfg Config
}

func New(cfg Config) *Fetcher {
	if cfg.Port < 1 {
		cfg.Port = 993
	}
	if strings.TrimSpace(cfg.Mailbox) == "" {
		cfg.Mailbox = "INBOX"
	}
	cfg.Host = strings.TrimSpace(cfg.Host)
	cfg.Username = strings.TrimSpace(cfg.Username)
	return &Fetcher{cfg: cfg}
}

func (f *Fetcher) Configured() bool {
	return f.cfg.Host != "" && f.cfg.Username != "" && f.cfg.Password != ""
}

// FetchUnread returns up to maxResults unread messages, newest last in
// mailbox order. Messages are fetched with a body peek so they stay unread.
func (f *Fetcher) FetchUnread(ctx context.Context, maxResults int) ([]google.Email, error) {
	if !f.Configured() {
		return nil, fmt.Errorf("imap not configured")
	}
	if maxResults < 1 {
		maxResults = 10
	}

	conn, err := f.open(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Logout()

	if _, err := conn.Select(f.cfg.Mailbox, true); err != nil {
		return nil, fmt.Errorf("imap select mailbox: %w", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	uids, err := conn.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("imap search unread: %w", err)
	}
	if len(uids) == 0 {
		return nil, nil
	}
	if len(uids) > maxResults {
		uids = uids[len(uids)-maxResults:]
	}

	set := new(imap.SeqSet)
	set.AddNum(uids...)
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, imap.FetchEnvelope, section.FetchItem()}

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- conn.UidFetch(set, items, messages)
	}()

	emails := make([]google.Email, 0, len(uids))
	for fetched := range messages {
		email := google.Email{ID: strconv.FormatUint(uint64(fetched.Uid), 10)}
		if fetched.Envelope != nil {
			email.Subject = strings.TrimSpace(fetched.Envelope.Subject)
			email.Sender = formatAddresses(fetched.Envelope.From)
			if !fetched.Envelope.Date.IsZero() {
				email.Date = fetched.Envelope.Date.Format(time.RFC3339)
			}
		}
		if body := fetched.GetBody(section); body != nil {
			email.Snippet = snippet(body)
		}
		emails = append(emails, email)
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("imap fetch unread: %w", err)
	}
	return emails, nil
}

func (f *Fetcher) open(ctx context.Context) (*client.Client, error) {
	address := net.JoinHostPort(f.cfg.Host, strconv.Itoa(f.cfg.Port))
	tlsConfig := &tls.Config{
		ServerName:         f.cfg.Host,
		InsecureSkipVerify: f.cfg.TLSSkipVerify,
		MinVersion:         tls.VersionTLS12,
	}
	conn, err := client.DialTLS(address, tlsConfig)
	if err != nil {
		return nil, fmt.Errorf("imap dial: %w", err)
	}
	select {
	case <-ctx.Done():
		conn.Logout()
		return nil, ctx.Err()
	default:
	}
	if err := conn.Login(f.cfg.Username, f.cfg.Password); err != nil {
		conn.Logout()
		return nil, fmt.Errorf("imap login: %w", err)
	}
	return conn, nil
}

func formatAddresses(addresses []*imap.Address) string {
	parts := make([]string, 0, len(addresses))
	for _, address := range addresses {
		if address == nil {
			continue
		}
		spec := address.Address()
		if name := strings.TrimSpace(address.PersonalName); name != "" {
			parts = append(parts, fmt.Sprintf("%s <%s>", name, spec))
			continue
		}
		parts = append(parts, spec)
	}
	return strings.Join(parts, ", ")
}

// snippet extracts a short plain-text preview from a raw RFC822 body.
// Parsing is best effort; unparseable mail degrades to the raw prefix.
func snippet(raw io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(raw, 64<<10))
	if err != nil || len(data) == 0 {
		return ""
	}
	text := string(data)
	if parsed, err := mail.ReadMessage(bytes.NewReader(data)); err == nil {
		if body, err := io.ReadAll(io.LimitReader(parsed.Body, 64<<10)); err == nil {
			text = string(body)
		}
	}
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) > snippetMaxLen {
		return string(runes[:snippetMaxLen])
	}
	return text
}
