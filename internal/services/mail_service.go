package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"github.com/example/thtstore/internal/config"
	"github.com/example/thtstore/internal/models"
)

const mailMaxAttempts = 3

// EmailMessage is one outbound email waiting in the queue.
type EmailMessage struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
	Attempts int    `json:"attempts"`
}

// MailQueue is the asynchronous notification sink. Enqueue pushes onto a
// Redis list and returns immediately; a worker pops and delivers over SMTP
// with a bounded retry, so callers are never blocked on email delivery.
type MailQueue struct {
	rdb       *redis.Client
	key       string
	dialer    *gomail.Dialer
	fromName  string
	fromEmail string
	log       *logrus.Logger
}

// NewMailQueue constructs the queue from configuration. SMTP settings are
// optional; without them the worker logs and drops messages instead of
// delivering.
func NewMailQueue(cfg *config.Config, log *logrus.Logger) *MailQueue {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	var dialer *gomail.Dialer
	if cfg.SMTPHost != "" {
		dialer = gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPEmail, cfg.SMTPPassword)
	}

	return &MailQueue{
		rdb:       rdb,
		key:       cfg.MailQueueKey,
		dialer:    dialer,
		fromName:  cfg.FromName,
		fromEmail: cfg.FromEmail,
		log:       log,
	}
}

// Ping verifies Redis connectivity.
func (q *MailQueue) Ping(ctx context.Context) error {
	return q.rdb.Ping(ctx).Err()
}

// Enqueue pushes a message onto the queue and returns immediately.
func (q *MailQueue) Enqueue(ctx context.Context, msg EmailMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal email message: %w", err)
	}

	if err := q.rdb.LPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("enqueue email: %w", err)
	}

	return nil
}

// Run consumes the queue until ctx is cancelled. Intended to be started as
// a goroutine from main.
func (q *MailQueue) Run(ctx context.Context) {
	q.log.WithField("queue", q.key).Info("mail worker started")

	for {
		select {
		case <-ctx.Done():
			q.log.Info("mail worker stopped")
			return
		default:
		}

		res, err := q.rdb.BRPop(ctx, 5*time.Second, q.key).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			q.log.WithError(err).Error("mail queue pop failed")
			time.Sleep(time.Second)
			continue
		}

		var msg EmailMessage
		if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
			q.log.WithError(err).Error("discarding malformed queue entry")
			continue
		}

		q.process(ctx, msg)
	}
}

// Close releases the underlying Redis connection.
func (q *MailQueue) Close() error {
	return q.rdb.Close()
}

func (q *MailQueue) process(ctx context.Context, msg EmailMessage) {
	if q.dialer == nil {
		q.log.WithField("to", msg.To).Warn("SMTP not configured, dropping email")
		return
	}

	if err := q.send(msg); err != nil {
		msg.Attempts++
		if msg.Attempts >= mailMaxAttempts {
			q.log.WithError(err).WithFields(logrus.Fields{
				"to":       msg.To,
				"attempts": msg.Attempts,
			}).Error("giving up on email delivery")
			return
		}

		q.log.WithError(err).WithField("to", msg.To).Warn("email delivery failed, requeueing")
		if err := q.Enqueue(ctx, msg); err != nil {
			q.log.WithError(err).Error("requeue failed")
		}
		return
	}

	q.log.WithField("to", msg.To).Info("email delivered")
}

func (q *MailQueue) send(msg EmailMessage) error {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", q.fromEmail, q.fromName)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)
	return q.dialer.DialAndSend(m)
}

// PaymentConfirmationEmail composes the customer email for a successful
// payment from the transaction metadata. Missing item details degrade to a
// placeholder line instead of failing.
func PaymentConfirmationEmail(transactionID string, amount int64, meta models.TransactionMetadata) EmailMessage {
	var itemLines []string
	for _, item := range meta.Items {
		itemLines = append(itemLines, fmt.Sprintf("%s (x%d): %d VND", item.Name, item.Quantity, item.Price))
	}

	itemsList := "Không có chi tiết sản phẩm"
	if len(itemLines) > 0 {
		itemsList = strings.Join(itemLines, "\n")
	}

	body := fmt.Sprintf(
		"Chào bạn,\n\nGiao dịch #%s đã thành công!\n\nChi tiết:\n%s\nTổng: %d VND\n\nCảm ơn bạn đã mua sắm tại THT Store.",
		transactionID, itemsList, amount,
	)

	return EmailMessage{
		To:      meta.CustomerEmail,
		Subject: "Xác nhận thanh toán thành công - THT Store",
		Body:    body,
	}
}

// VerificationEmail composes the registration confirmation email.
func VerificationEmail(to, code string) EmailMessage {
	return EmailMessage{
		To:      to,
		Subject: "Xác nhận Email - THT Store",
		Body:    fmt.Sprintf("Mã xác nhận của bạn là: %s\nMã này sẽ hết hạn sau 10 phút.", code),
	}
}

// PasswordResetEmail composes the password reset code email.
func PasswordResetEmail(to, code string) EmailMessage {
	return EmailMessage{
		To:      to,
		Subject: "Đặt lại mật khẩu - THT Store",
		Body:    fmt.Sprintf("Mã đặt lại mật khẩu của bạn là: %s\nMã này sẽ hết hạn sau 10 phút.", code),
	}
}
