// Package notify delivers terminal-state notifications for tracked sync jobs
// to multiple destinations (email, slack, telegram, webhooks).
package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/url"
	"os"
	"strings"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/notify"
	"github.com/go-pkgz/repeater"
	"github.com/go-pkgz/repeater/strategy"
)

// Params which are not destination-specific
type Params struct {
	EnabledError       bool
	EnabledCompletion  bool
	ErrorTemplate      string // file path, default embedded if empty or unreadable
	CompletionTemplate string
	HostName           string
	SendTimeOut        time.Duration
}

// SendersParams holds all destination configurations
type SendersParams struct {
	ToEmails     []string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPTLS      bool
	SMTPStartTLS bool
	SMTPTimeOut  time.Duration

	SlackToken    string
	SlackChannels []string

	TelegramToken        string
	TelegramDestinations []string

	WebhookURLs []string
}

// Service delivers notifications to all configured destinations, retrying
// transient failures with backoff
type Service struct {
	Params
	destinations []string
	notifiers    []notify.Notifier
	repeater     repeaterSvc
}

type repeaterSvc interface {
	Do(ctx context.Context, fun func() error, errs ...error) error
}

// NewService creates notification service with all destinations defined in
// SendersParams. Returns nil if no destinations configured.
func NewService(p Params, sp SendersParams) *Service {
	res := Service{Params: p}
	if res.SendTimeOut == 0 {
		res.SendTimeOut = 30 * time.Second
	}

	if len(sp.ToEmails) > 0 && sp.SMTPHost != "" {
		email := notify.NewEmail(notify.SMTPParams{
			Host:     sp.SMTPHost,
			Port:     sp.SMTPPort,
			TLS:      sp.SMTPTLS,
			StartTLS: sp.SMTPStartTLS,
			Username: sp.SMTPUsername,
			Password: sp.SMTPPassword,
			TimeOut:  sp.SMTPTimeOut,
		})
		res.notifiers = append(res.notifiers, email)
		res.destinations = append(res.destinations, "mailto:"+strings.Join(sp.ToEmails, ","))
	}

	if sp.SlackToken != "" && len(sp.SlackChannels) > 0 {
		res.notifiers = append(res.notifiers, notify.NewSlack(sp.SlackToken))
		for _, ch := range sp.SlackChannels {
			res.destinations = append(res.destinations, "slack:"+ch)
		}
	}

	if sp.TelegramToken != "" && len(sp.TelegramDestinations) > 0 {
		tg, err := notify.NewTelegram(notify.TelegramParams{Token: sp.TelegramToken, Timeout: time.Second * 5})
		if err != nil {
			log.Printf("[WARN] failed to make telegram notifier, %v", err)
		} else {
			res.notifiers = append(res.notifiers, tg)
			for _, dest := range sp.TelegramDestinations {
				res.destinations = append(res.destinations, "telegram:"+dest)
			}
		}
	}

	if len(sp.WebhookURLs) > 0 {
		res.notifiers = append(res.notifiers, notify.NewWebhook(notify.WebhookParams{Timeout: 5 * time.Second}))
		res.destinations = append(res.destinations, sp.WebhookURLs...)
	}

	if len(res.destinations) == 0 {
		return nil
	}

	res.repeater = repeater.New(&strategy.Backoff{Repeats: 3, Duration: time.Second, Factor: 2, Jitter: true})
	return &res
}

// Send notification to all destinations. Failed destinations are reported
// but don't block the others.
func (s *Service) Send(ctx context.Context, subj, text string) error {
	if s == nil {
		return nil
	}
	log.Printf("[DEBUG] send %q to %+v", subj, s.destinations)

	ctx, cancel := context.WithTimeout(ctx, s.SendTimeOut)
	defer cancel()

	var failed []string
	for _, dest := range s.destinations {
		dest := withSubject(dest, subj)
		notifier := s.pick(dest)
		if notifier == nil {
			failed = append(failed, dest)
			continue
		}
		err := s.repeater.Do(ctx, func() error { return notifier.Send(ctx, dest, text) })
		if err != nil {
			log.Printf("[WARN] failed to send to %s, %v", dest, err)
			failed = append(failed, dest)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("failed to send to %s", strings.Join(failed, ", "))
	}
	return nil
}

// pick matches a destination url to the notifier serving its schema
func (s *Service) pick(dest string) notify.Notifier {
	schema := dest
	if i := strings.Index(dest, ":"); i > 0 {
		schema = dest[:i]
	}
	if schema == "https" {
		schema = "http"
	}
	for _, n := range s.notifiers {
		if n.Schema() == schema {
			return n
		}
	}
	return nil
}

// withSubject folds the subject into mailto destinations; other senders get
// it as the leading line of the body already
func withSubject(dest, subj string) string {
	if !strings.HasPrefix(dest, "mailto:") || subj == "" {
		return dest
	}
	sep := "?"
	if strings.Contains(dest, "?") {
		sep = "&"
	}
	return dest + sep + "subject=" + url.QueryEscape(subj)
}

// IsOnError status enabling on-error notification
func (s *Service) IsOnError() bool { return s != nil && s.EnabledError }

// IsOnCompletion status enabling on-completion notification
func (s *Service) IsOnCompletion() bool { return s != nil && s.EnabledCompletion }

const defaultErrorTemplate = `<!DOCTYPE html>
<html>
	<head>
		<meta name="viewport" content="width=device-width" />
		<meta http-equiv="Content-Type" content="text/html; charset=UTF-8" />
		<style type="text/css">
			body { font-family: "Arial"; font-size: 1.0em; }
			ul { margin-top: -0.5em; margin-left: -0.5em; }
			pre {
				padding: 0.6em;
				font-size: 0.7em;
				background-color: #E8E2A0;
				font-family: "Menlo";
				overflow-x: auto;
				white-space: pre-wrap;
				word-wrap: break-word;
			}
			.bold { color: #882828; font-weight: 900; }
		</style>
	</head>

	<body>
		<p>Sync job failed on <span class="bold">{{.Host}}</span> at {{.TS.Format "2006-01-02T15:04:05Z07:00"}}</p>
		<ul>
			<li>Kind: <span class="bold">{{.JobKind}}</span></li>
			<li>Job: <span class="bold">{{.JobID}}</span></li>
		</ul>

		<pre>
{{.Error}}
		</pre>
	</body>
</html>
`

const defaultCompletionTemplate = `<!DOCTYPE html>
<html>
	<head>
		<meta name="viewport" content="width=device-width" />
		<meta http-equiv="Content-Type" content="text/html; charset=UTF-8" />
		<style type="text/css">
			body { font-family: "Arial"; font-size: 1.0em; }
			ul { margin-top: -0.5em; margin-left: -0.5em; }
			.bold { color: #288828; font-weight: 900; }
		</style>
	</head>

	<body>
		<p>Sync job completed on <span class="bold">{{.Host}}</span> at {{.TS.Format "2006-01-02T15:04:05Z07:00"}}</p>
		<ul>
			<li>Kind: <span class="bold">{{.JobKind}}</span></li>
			<li>Job: <span class="bold">{{.JobID}}</span></li>
		</ul>
	</body>
</html>
`

type templateData struct {
	JobKind string
	JobID   string
	TS      time.Time
	Error   string
	Host    string
}

// MakeErrorHTML renders the error notification body. Falls back to the
// embedded template if the configured file can't be loaded or parsed.
func (s *Service) MakeErrorHTML(jobKind, jobID, errorLog string) (string, error) {
	return s.render(s.ErrorTemplate, defaultErrorTemplate, templateData{
		JobKind: jobKind, JobID: jobID, TS: time.Now(), Error: errorLog, Host: s.host()})
}

// MakeCompletionHTML renders the completion notification body
func (s *Service) MakeCompletionHTML(jobKind, jobID string) (string, error) {
	return s.render(s.CompletionTemplate, defaultCompletionTemplate, templateData{
		JobKind: jobKind, JobID: jobID, TS: time.Now(), Host: s.host()})
}

func (s *Service) render(file, fallback string, data templateData) (string, error) {
	text := fallback
	if file != "" {
		body, err := os.ReadFile(file) // nolint gosec // path is operator-provided config
		if err != nil {
			log.Printf("[WARN] can't read template %s, using default, %v", file, err)
		} else {
			text = string(body)
		}
	}

	t, err := template.New("msg").Parse(text)
	if err != nil {
		if text == fallback {
			return "", fmt.Errorf("can't parse message template: %w", err)
		}
		log.Printf("[WARN] can't parse template %s, using default, %v", file, err)
		if t, err = template.New("msg").Parse(fallback); err != nil {
			return "", fmt.Errorf("can't parse message template: %w", err)
		}
	}

	buf := bytes.Buffer{}
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to apply template: %w", err)
	}
	return buf.String(), nil
}

func (s *Service) host() string {
	if s.HostName != "" {
		return s.HostName
	}
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return host
}
