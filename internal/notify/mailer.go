package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"sentry-service/internal/config"
	"sentry-service/internal/domain/intrusion"
)

// ErrSend marks an alert delivery failure. The dispatcher retries it with
// backoff and records exhaustion as a terminal per-event failure.
var ErrSend = errors.New("notify: send failed")

// subjectTimeLayout matches the control-room alert format, e.g.
// "14-March-2025 [Friday], 18:04:05".
const subjectTimeLayout = "02-January-2006 [Monday], 15:04:05"

// Mailer sends intrusion alerts over SMTP with the triggering frame attached.
type Mailer struct {
	client     *mail.Client
	sender     string
	recipients []string
	location   *time.Location
}

// NewMailer builds the SMTP client from config. Credential or address problems
// surface here, before the watch loop starts.
func NewMailer(cfg config.SMTPConfig, location *time.Location) (*Mailer, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	if cfg.UseTLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}

	return &Mailer{
		client:     client,
		sender:     cfg.Sender,
		recipients: cfg.Recipients,
		location:   location,
	}, nil
}

// Send delivers one alert for the event. The frame JPEG rides along as an
// attachment so the operator can assess the scene without touching the DB.
func (m *Mailer) Send(ctx context.Context, event *intrusion.Event) error {
	msg := mail.NewMsg()
	if err := msg.From(m.sender); err != nil {
		return fmt.Errorf("%w: sender address: %v", ErrSend, err)
	}
	if err := msg.To(m.recipients...); err != nil {
		return fmt.Errorf("%w: recipient address: %v", ErrSend, err)
	}

	msg.Subject(Subject(event, m.location))
	msg.SetBodyString(mail.TypeTextPlain, Body(event, m.location))
	if err := msg.AttachReader("image.jpg", bytes.NewReader(event.Frame.Data)); err != nil {
		return fmt.Errorf("%w: attach frame: %v", ErrSend, err)
	}

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("%w: %v", ErrSend, err)
	}
	return nil
}

// Subject formats the alert subject line in the configured timezone.
func Subject(event *intrusion.Event, location *time.Location) string {
	ts := event.Time.In(location).Format(subjectTimeLayout)
	return fmt.Sprintf("*Intruder Alert : %s Hours*", ts)
}

// Body formats the alert body for the control room.
func Body(event *intrusion.Event, location *time.Location) string {
	ts := event.Time.In(location).Format(subjectTimeLayout)

	var b strings.Builder
	fmt.Fprintf(&b, "Dear Control Room,\n\n")
	if event.Realert {
		fmt.Fprintf(&b, "This is to keep you informed that the intruder detected earlier is still present on the campus as of %s Hours.\n", ts)
	} else {
		fmt.Fprintf(&b, "This is to keep you informed that an intruder has entered the campus at %s Hours.\n", ts)
	}
	fmt.Fprintf(&b, "\nDetected: %s\n", strings.Join(event.Labels(), ", "))
	fmt.Fprintf(&b, "Episode: %s\n", event.EpisodeID)
	return b.String()
}
