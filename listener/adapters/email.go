package adapters

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/domodwyer/mailyak/v3"

	"github.com/dotsama/identity-registrar/identity"
)

// Email both polls an IMAP mailbox for unseen messages and sends the
// secondary challenge token by SMTP once the primary inbox has verified,
// mirroring the original's SmtpImapClient (original_source/src/adapters/email.rs)
// bundling both directions of one mailbox into a single adapter. No IMAP
// client exists anywhere in the retrieved corpus, so the inbound half
// speaks the minimal command subset it needs (LOGIN, SELECT, UID SEARCH
// UNSEEN, UID FETCH) directly over crypto/tls; the outbound half is backed
// by github.com/domodwyer/mailyak/v3, the teacher's own mail package
// (mail/mail.go) dependency.
type Email struct {
	Server   string
	Port     int
	Username string
	Password string

	SMTPServer string
	SMTPPort   int
	From       string

	tag uint64
}

// NewEmail builds an Email adapter dialing host:port with implicit TLS for
// IMAP, and smtpServer:smtpPort for outbound SMTP, sending as from.
func NewEmail(server string, port int, username, password, smtpServer string, smtpPort int, from string) *Email {
	return &Email{
		Server:     server,
		Port:       port,
		Username:   username,
		Password:   password,
		SMTPServer: smtpServer,
		SMTPPort:   smtpPort,
		From:       from,
	}
}

func (e *Email) Name() string { return "email" }

func (e *Email) nextTag() string {
	return fmt.Sprintf("A%03d", atomic.AddUint64(&e.tag, 1)%1000)
}

type imapConn struct {
	conn net.Conn
	r    *bufio.Reader
}

func (c *imapConn) command(tag, cmd string) ([]string, error) {
	if _, err := fmt.Fprintf(c.conn, "%s %s\r\n", tag, cmd); err != nil {
		return nil, err
	}
	var lines []string
	for {
		line, err := c.r.ReadString('\n')
		if err != nil {
			return lines, err
		}
		line = strings.TrimRight(line, "\r\n")
		lines = append(lines, line)
		if strings.HasPrefix(line, tag+" ") {
			status := strings.Fields(strings.TrimPrefix(line, tag+" "))
			if len(status) > 0 && !strings.EqualFold(status[0], "OK") {
				return lines, fmt.Errorf("email: imap command %q failed: %s", cmd, line)
			}
			return lines, nil
		}
	}
}

// FetchMessages opens a fresh IMAP session, selects INBOX, fetches every
// unseen message, and returns them as ExternalMessage.
func (e *Email) FetchMessages(ctx context.Context) ([]identity.ExternalMessage, error) {
	addr := net.JoinHostPort(e.Server, strconv.Itoa(e.Port))
	dialer := &tls.Dialer{Config: &tls.Config{ServerName: e.Server}, NetDialer: &net.Dialer{Timeout: 15 * time.Second}}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("email: dial %s: %w", addr, err)
	}
	defer conn.Close()

	c := &imapConn{conn: conn, r: bufio.NewReader(conn)}
	if _, err := c.r.ReadString('\n'); err != nil {
		return nil, fmt.Errorf("email: read greeting: %w", err)
	}

	if _, err := c.command(e.nextTag(), fmt.Sprintf("LOGIN %s %s", e.Username, e.Password)); err != nil {
		return nil, err
	}
	if _, err := c.command(e.nextTag(), "SELECT INBOX"); err != nil {
		return nil, err
	}

	searchLines, err := c.command(e.nextTag(), "UID SEARCH UNSEEN")
	if err != nil {
		return nil, err
	}
	uids := parseSearchResults(searchLines)
	if len(uids) == 0 {
		return nil, nil
	}

	out := make([]identity.ExternalMessage, 0, len(uids))
	for _, uid := range uids {
		lines, err := c.command(e.nextTag(), fmt.Sprintf("UID FETCH %d (BODY[TEXT] ENVELOPE)", uid))
		if err != nil {
			continue
		}
		from, body := parseFetchResponse(lines)
		if from == "" {
			continue
		}
		out = append(out, identity.ExternalMessage{
			Origin:    identity.EmailOrigin(strings.ToLower(from)),
			ID:        uid,
			Timestamp: time.Now().UnixMilli(),
			Values:    []string{body},
		})
	}
	return out, nil
}

// SendSecondChallenge emails token to the claimant's address, the only
// way the secondary challenge can reach them (spec.md §3's invariant that
// the secondary token is delivered solely via the verified primary
// channel). Implements verifier.Sender.
func (e *Email) SendSecondChallenge(ctx context.Context, field identity.FieldValue, token string) error {
	mail, err := mailyak.New(fmt.Sprintf("%s:%d", e.SMTPServer, e.SMTPPort), smtp.PlainAuth("", e.Username, e.Password, e.SMTPServer))
	if err != nil {
		return fmt.Errorf("email: build mail client: %w", err)
	}

	mail.To(field.Value)
	mail.From(e.From)
	mail.Subject("Identity verification: confirm your email")
	mail.Plain().Set(fmt.Sprintf("Your verification token is: %s", token))

	done := make(chan error, 1)
	go func() { done <- mail.Send() }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("email: send second challenge to %s: %w", field.Value, err)
		}
	}
	return nil
}

func parseSearchResults(lines []string) []uint64 {
	var uids []uint64
	for _, line := range lines {
		if !strings.HasPrefix(line, "* SEARCH") {
			continue
		}
		for _, tok := range strings.Fields(strings.TrimPrefix(line, "* SEARCH")) {
			if n, err := strconv.ParseUint(tok, 10, 64); err == nil {
				uids = append(uids, n)
			}
		}
	}
	return uids
}

// parseFetchResponse extracts the sender address and a best-effort plain
// text body from a UID FETCH response. IMAP literal framing is not
// unwrapped byte-exact; this reads the lines between the FETCH header and
// the closing paren, which is sufficient for the plain-text challenge
// messages this adapter expects.
func parseFetchResponse(lines []string) (from string, body string) {
	var bodyLines []string
	inBody := false
	for _, line := range lines {
		if idx := strings.Index(line, "FROM (("); idx >= 0 {
			rest := line[idx+len("FROM (("):]
			if end := strings.Index(rest, ")"); end >= 0 {
				from = addressFromEnvelopeAtoms(strings.Fields(rest[:end]))
			}
		}
		if strings.Contains(line, "BODY[TEXT]") {
			inBody = true
			continue
		}
		if inBody {
			if strings.HasPrefix(line, ")") {
				inBody = false
				continue
			}
			bodyLines = append(bodyLines, line)
		}
	}
	return from, strings.Join(bodyLines, "\n")
}

// addressFromEnvelopeAtoms rebuilds a mailbox@host address from an IMAP
// ENVELOPE address structure's four atoms (personal-name, source-route,
// mailbox-name, host-name) — the address itself never appears as a single
// token, only as the last two atoms.
func addressFromEnvelopeAtoms(fields []string) string {
	if len(fields) != 4 {
		return ""
	}
	mailbox := strings.Trim(fields[2], `"`)
	host := strings.Trim(fields[3], `"`)
	if mailbox == "" || mailbox == "NIL" || host == "" || host == "NIL" {
		return ""
	}
	return mailbox + "@" + host
}
