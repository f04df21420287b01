package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/qsplatform/buildcore/internal"
	"github.com/qsplatform/buildcore/internal/mail"
	"github.com/qsplatform/buildcore/internal/store"
	"go.uber.org/zap"
)

const (
	SettingSMTPServer   = "smtp_server"
	SettingSMTPPort     = "smtp_port"
	SettingSMTPUsername = "smtp_username"
	SettingSMTPPassword = "smtp_password"
	SettingSenderEmail  = "sender_email"
)

type NotificationStore interface {
	CreateNotification(context.Context, int64, string, string, string) (*store.Notification, error)
}

// NotificationDispatcher tells the user who triggered a build how it ended,
// with an in-app message and, when SMTP is configured, an email. Failures
// are logged and never reach the caller.
type NotificationDispatcher struct {
	notifications NotificationStore
	users         UserReader
	settings      SettingReader
	mailer        mail.Mailer
	logger        *zap.Logger
	wg            sync.WaitGroup
}

func NewNotificationDispatcher(
	notifications NotificationStore,
	users UserReader,
	settings SettingReader,
	mailer mail.Mailer,
	logger *zap.Logger,
) *NotificationDispatcher {
	return &NotificationDispatcher{
		notifications: notifications,
		users:         users,
		settings:      settings,
		mailer:        mailer,
		logger:        logger,
	}
}

func (d *NotificationDispatcher) Notify(ctx context.Context, b *store.BuildRecord) {
	if b.TriggeredBy == nil {
		return
	}
	if b.Status != store.StatusSuccess && b.Status != store.StatusFailed {
		return
	}
	log := d.logger.With(zap.String("build_id", b.BuildID))

	title, lines := buildMessage(b)
	content := strings.Join(lines, "\n")
	if _, err := d.notifications.CreateNotification(
		ctx, *b.TriggeredBy, title, content, internal.NotificationTypePipeline,
	); err != nil {
		log.Error("creating notification", zap.Error(err))
	}

	u, err := d.users.ReadUserByID(ctx, *b.TriggeredBy)
	if err != nil {
		log.Error("reading notification recipient", zap.Error(err))
		return
	}
	if u.Email == nil || *u.Email == "" {
		return
	}
	cfg, err := d.smtpConfig(ctx)
	if err != nil {
		log.Error("reading smtp settings", zap.Error(err))
		return
	}
	if !cfg.Complete() {
		log.Debug("smtp not configured, email skipped")
		return
	}

	body, err := mail.RenderBuildEmail(ctx, mail.BuildEmail{
		Title:    title,
		Pipeline: b.PipelineName,
		BuildID:  b.BuildID,
		Version:  b.Version,
		Status:   string(b.Status),
		Lines:    lines,
	})
	if err != nil {
		log.Error("rendering build email", zap.Error(err))
		return
	}
	msg := mail.Message{To: *u.Email, Subject: title, HTMLBody: body}
	sendCtx := context.WithoutCancel(ctx)
	d.wg.Go(func() {
		if err := d.mailer.Send(sendCtx, cfg, msg); err != nil {
			log.Error("sending build email", zap.String("to", msg.To), zap.Error(err))
			return
		}
		log.Info("build email sent", zap.String("to", msg.To))
	})
}

// Wait blocks until every email in flight has been handed to the server.
func (d *NotificationDispatcher) Wait() {
	d.wg.Wait()
}

func (d *NotificationDispatcher) smtpConfig(ctx context.Context) (mail.SMTPConfig, error) {
	var cfg mail.SMTPConfig
	read := func(key string) (string, error) {
		v, err := d.settings.ReadSetting(ctx, key)
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return v, err
	}
	var err error
	if cfg.Server, err = read(SettingSMTPServer); err != nil {
		return cfg, err
	}
	if cfg.Username, err = read(SettingSMTPUsername); err != nil {
		return cfg, err
	}
	if cfg.Password, err = read(SettingSMTPPassword); err != nil {
		return cfg, err
	}
	if cfg.Sender, err = read(SettingSenderEmail); err != nil {
		return cfg, err
	}
	port, err := read(SettingSMTPPort)
	if err != nil {
		return cfg, err
	}
	cfg.Port = mail.DefaultSMTPPort
	if port != "" {
		if cfg.Port, err = strconv.Atoi(port); err != nil {
			return cfg, fmt.Errorf("invalid smtp port %q: %w", port, err)
		}
	}
	return cfg, nil
}

func buildMessage(b *store.BuildRecord) (string, []string) {
	lines := []string{
		fmt.Sprintf("Build ID: %s", b.BuildID),
		fmt.Sprintf("Version: %s", b.Version),
	}
	if b.Status == store.StatusSuccess {
		if b.Duration != nil {
			lines = append(lines, fmt.Sprintf("Duration: %ds", *b.Duration))
		}
		return fmt.Sprintf("Build succeeded: %s", b.PipelineName), lines
	}
	lines = append(lines, "Check the build log for the cause of the failure.")
	return fmt.Sprintf("Build failed: %s", b.PipelineName), lines
}
