package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/robfig/cron/v3"
	"github.com/umputun/go-flags"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/syncmon/syncmon/app/conditions"
	"github.com/syncmon/syncmon/app/config"
	"github.com/syncmon/syncmon/app/notify"
	"github.com/syncmon/syncmon/app/store"
	"github.com/syncmon/syncmon/app/tracker"
	"github.com/syncmon/syncmon/app/transport"
	"github.com/syncmon/syncmon/app/trigger"
	"github.com/syncmon/syncmon/app/web"
)

var opts struct {
	BackendURL string  `short:"b" long:"backend" env:"SYNCMON_BACKEND" required:"true" description:"backend job executor base url"`
	TokenEnv   string  `long:"token-env" env:"SYNCMON_TOKEN_ENV" default:"SYNCMON_TOKEN" description:"env var holding the bearer token"`
	TokenFile  string  `long:"token-file" env:"SYNCMON_TOKEN_FILE" description:"file holding the bearer token, re-read on every attempt"`
	DBPath     string  `long:"db" env:"SYNCMON_DB" default:"syncmon.db" description:"sqlite file for the active job set"`
	Triggers   string  `short:"f" long:"triggers" env:"SYNCMON_TRIGGERS" description:"yaml file with scheduled sync triggers"`
	Listen     string  `long:"listen" env:"SYNCMON_LISTEN" default:":8080" description:"status server address"`
	AuthHash   string  `long:"auth-hash" env:"SYNCMON_AUTH_HASH" description:"bcrypt hash enabling basic auth on the status server"`
	RateLimit  float64 `long:"rate-limit" env:"SYNCMON_RATE_LIMIT" default:"10" description:"status server requests per second"`

	PollInterval time.Duration `long:"poll-interval" env:"SYNCMON_POLL_INTERVAL" default:"2s" description:"poll fallback cadence"`
	GraceWindow  time.Duration `long:"grace-window" env:"SYNCMON_GRACE_WINDOW" default:"5s" description:"how long terminal jobs stay visible"`
	Staleness    time.Duration `long:"staleness" env:"SYNCMON_STALENESS" default:"30m" description:"max age of a persisted job eligible for resume"`

	Notify struct {
		EnabledError      bool          `long:"enabled-error" env:"ENABLED_ERROR" description:"enable notifications on failed jobs"`
		EnabledCompletion bool          `long:"enabled-complete" env:"ENABLED_COMPLETE" description:"enable completion notifications"`
		ErrorTemplate     string        `long:"err-template" env:"ERR_TEMPLATE" description:"error template file"`
		CompletTemplate   string        `long:"complete-template" env:"COMPLETE_TEMPLATE" description:"completion template file"`
		SMTPHost          string        `long:"smtp-host" env:"SMTP_HOST" description:"SMTP host"`
		SMTPPort          int           `long:"smtp-port" env:"SMTP_PORT" description:"SMTP port"`
		SMTPUsername      string        `long:"smtp-username" env:"SMTP_USERNAME" description:"SMTP user name"`
		SMTPPassword      string        `long:"smtp-password" env:"SMTP_PASSWORD" description:"SMTP password"`
		SMTPTLS           bool          `long:"smtp-tls" env:"SMTP_TLS" description:"enable SMTP TLS"`
		SMTPStartTLS      bool          `long:"smtp-starttls" env:"SMTP_STARTTLS" description:"enable SMTP StartTLS"`
		SMTPTimeOut       time.Duration `long:"smtp-timeout" env:"SMTP_TIMEOUT" default:"10s" description:"SMTP connection timeout"`
		From              string        `long:"from" env:"FROM" description:"SMTP from email"`
		To                []string      `long:"to" env:"TO" description:"email recipient(s)" env-delim:","`
		SlackToken        string        `long:"slack-token" env:"SLACK_TOKEN" description:"slack token"`
		SlackChannels     []string      `long:"slack-channels" env:"SLACK_CHANNELS" description:"slack channel(s)" env-delim:","`
		TelegramToken     string        `long:"telegram-token" env:"TELEGRAM_TOKEN" description:"telegram token"`
		TelegramDests     []string      `long:"telegram-destinations" env:"TELEGRAM_DESTINATIONS" description:"telegram chat(s)" env-delim:","`
		WebhookURLs       []string      `long:"webhook-urls" env:"WEBHOOK_URLS" description:"webhook url(s)" env-delim:","`
		HostName          string        `long:"host" env:"HOSTNAME" description:"host name reported in notifications"`
		TimeOut           time.Duration `long:"timeout" env:"TIMEOUT" default:"30s" description:"notification send timeout"`
	} `group:"notify" namespace:"notify" env-namespace:"SYNCMON_NOTIFY"`

	Log struct {
		Enabled    bool   `long:"enabled" env:"ENABLED" description:"enable logging"`
		File       string `long:"file" env:"FILE" description:"log to file instead of stdout"`
		MaxSize    int    `long:"max-size" env:"MAX_SIZE" default:"100" description:"max log size in megabytes"`
		MaxBackups int    `long:"max-backups" env:"MAX_BACKUPS" default:"7" description:"max rotated files"`
	} `group:"log" namespace:"log" env-namespace:"SYNCMON_LOG"`

	Dbg bool `long:"dbg" env:"SYNCMON_DEBUG" description:"debug mode"`
}

var revision = "unknown"

func main() {
	fmt.Printf("syncmon %s\n", revision)

	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(2)
	}
	setupLogs()

	defer func() {
		if x := recover(); x != nil {
			log.Printf("[WARN] run time panic:\n%v", x)
			panic(x)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	signals(cancel) // handle SIGQUIT and SIGTERM

	if err := run(ctx); err != nil {
		log.Printf("[ERROR] syncmon failed, %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	db, err := store.NewSQLite(opts.DBPath)
	if err != nil {
		return fmt.Errorf("can't open storage %s: %w", opts.DBPath, err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("[WARN] failed to close storage, %v", err)
		}
	}()

	client := transport.NewClient(opts.BackendURL, makeTokenProvider())

	registry := tracker.NewRegistry(tracker.Params{
		Transport:          client,
		Store:              db,
		Notifier:           makeNotifier(),
		PollInterval:       opts.PollInterval,
		GraceWindow:        opts.GraceWindow,
		StalenessThreshold: opts.Staleness,
		NotifyTimeout:      opts.Notify.TimeOut,
	})
	defer registry.Close()

	// re-attach jobs from the previous session before anything reads the registry
	if err := registry.Resume(ctx); err != nil {
		log.Printf("[WARN] resume failed, %v", err)
	}

	srv := web.New(web.Params{Registry: registry, Version: revision, PasswordHash: opts.AuthHash, RateLimit: opts.RateLimit})
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, opts.Listen) }()

	if opts.Triggers != "" {
		cfg, err := config.Load(opts.Triggers)
		if err != nil {
			return fmt.Errorf("can't load triggers: %w", err)
		}
		sched := trigger.Scheduler{
			Cron:             cron.New(),
			Creator:          client,
			Tracker:          registry,
			ConditionChecker: conditions.NewChecker(0),
			Triggers:         cfg.Triggers,
		}
		if err := sched.Do(ctx); err != nil {
			return err
		}
	}

	return <-done
}

// makeTokenProvider returns a provider reading the credential fresh on every
// transport attempt so a token refresh mid-job is honored
func makeTokenProvider() transport.TokenProvider {
	if opts.TokenFile != "" {
		return func() (string, error) {
			data, err := os.ReadFile(opts.TokenFile)
			if err != nil {
				return "", fmt.Errorf("can't read token file %s: %w", opts.TokenFile, err)
			}
			return strings.TrimSpace(string(data)), nil
		}
	}
	return func() (string, error) {
		token := os.Getenv(opts.TokenEnv)
		if token == "" {
			return "", fmt.Errorf("no token in %s", opts.TokenEnv)
		}
		return token, nil
	}
}

func makeNotifier() *notify.Service {
	if !opts.Notify.EnabledError && !opts.Notify.EnabledCompletion {
		return nil
	}

	return notify.NewService(
		notify.Params{
			EnabledError:       opts.Notify.EnabledError,
			EnabledCompletion:  opts.Notify.EnabledCompletion,
			ErrorTemplate:      opts.Notify.ErrorTemplate,
			CompletionTemplate: opts.Notify.CompletTemplate,
			HostName:           opts.Notify.HostName,
			SendTimeOut:        opts.Notify.TimeOut,
		},
		notify.SendersParams{
			ToEmails:             opts.Notify.To,
			SMTPHost:             opts.Notify.SMTPHost,
			SMTPPort:             opts.Notify.SMTPPort,
			SMTPUsername:         opts.Notify.SMTPUsername,
			SMTPPassword:         opts.Notify.SMTPPassword,
			SMTPTLS:              opts.Notify.SMTPTLS,
			SMTPStartTLS:         opts.Notify.SMTPStartTLS,
			SMTPTimeOut:          opts.Notify.SMTPTimeOut,
			SlackToken:           opts.Notify.SlackToken,
			SlackChannels:        opts.Notify.SlackChannels,
			TelegramToken:        opts.Notify.TelegramToken,
			TelegramDestinations: opts.Notify.TelegramDests,
			WebhookURLs:          opts.Notify.WebhookURLs,
		},
	)
}

func setupLogs() {
	if !opts.Log.Enabled {
		log.Setup(log.Out(io.Discard), log.Err(io.Discard))
		return
	}

	logOpts := []log.Option{log.Msec}
	if opts.Dbg {
		logOpts = []log.Option{log.Debug, log.Msec, log.CallerFunc, log.CallerPkg, log.CallerFile}
	}

	if opts.Log.File != "" {
		rotated := &lumberjack.Logger{
			Filename:   opts.Log.File,
			MaxSize:    opts.Log.MaxSize,
			MaxBackups: opts.Log.MaxBackups,
			Compress:   true,
		}
		logOpts = append(logOpts, log.Out(rotated), log.Err(rotated))
	}
	log.Setup(logOpts...)
}

func signals(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	go func() {
		stacktrace := make([]byte, 8192)
		for sig := range sigChan {
			if sig == syscall.SIGQUIT { // catch SIGQUIT and print stack traces
				length := runtime.Stack(stacktrace, true)
				fmt.Println(string(stacktrace[:length]))
				continue
			}
			cancel() // terminate on SIGTERM
		}
	}()
	signal.Notify(sigChan, syscall.SIGQUIT, syscall.SIGTERM)
}
