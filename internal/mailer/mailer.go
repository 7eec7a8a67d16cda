// Gatekeeper - Visitor Management and Gate Pass Service
// Copyright 2026 NK Tech Union
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nktu/gatekeeper

// Package mailer sends transactional email over SMTP: the host
// approval request, the visitor approval (with the gate pass
// attached), and the visitor rejection.
//
// All sends go through a circuit breaker so a dead SMTP server cannot
// pile up blocked request goroutines. Callers treat every send as
// best-effort: failures are logged and counted, never propagated into
// a request error.
package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	mail "github.com/wneessen/go-mail"

	"github.com/nktu/gatekeeper/internal/config"
	"github.com/nktu/gatekeeper/internal/logging"
	"github.com/nktu/gatekeeper/internal/metrics"
	"github.com/nktu/gatekeeper/internal/models"
)

const breakerName = "smtp"

// Mailer sends transactional email for the visitor lifecycle.
type Mailer struct {
	client        *mail.Client
	cfg           config.EmailConfig
	publicBaseURL string
	cb            *gobreaker.CircuitBreaker[struct{}]
}

// New creates a Mailer. publicBaseURL is the externally reachable base
// URL of this service; approve/reject deep links are built from it.
// An empty SMTP host yields a disabled Mailer that logs instead of
// sending, which keeps development setups working without SMTP.
func New(cfg config.EmailConfig, publicBaseURL string) (*Mailer, error) {
	m := &Mailer{
		cfg:           cfg,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		cb:            newBreaker(),
	}

	if cfg.Host == "" {
		logging.Warn().Msg("SMTP host not configured, email delivery disabled")
		return m, nil
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTimeout(cfg.Timeout),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create SMTP client: %w", err)
	}
	m.client = client
	return m, nil
}

// newBreaker builds the SMTP circuit breaker: opens after a 60%
// failure rate over at least 10 sends, recovers via half-open after
// two minutes.
func newBreaker() *gobreaker.CircuitBreaker[struct{}] {
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0) // 0 = closed

	return gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}

// SendApprovalRequest emails the host with the visitor's details and
// approve/reject links.
func (m *Mailer) SendApprovalRequest(ctx context.Context, v *models.VisitorRecord) error {
	html, err := renderTemplate(hostRequestTmpl, templateData{
		Visitor:     v,
		ApproveLink: m.decisionLink(v.ApprovalToken, models.StatusApproved),
		RejectLink:  m.decisionLink(v.ApprovalToken, models.StatusRejected),
	})
	if err != nil {
		metrics.RecordEmail(TemplateHostRequest, err)
		return err
	}

	err = m.send(ctx, v.HostEmail, "New Visitor Request - "+v.Name, html, nil, "")
	metrics.RecordEmail(TemplateHostRequest, err)
	return err
}

// SendApproval emails the visitor that the request was approved, with
// the gate pass PDF attached. A nil pdf sends the email without an
// attachment.
func (m *Mailer) SendApproval(ctx context.Context, v *models.VisitorRecord, pdf []byte) error {
	html, err := renderTemplate(visitorApprovedTmpl, templateData{Visitor: v})
	if err != nil {
		metrics.RecordEmail(TemplateVisitorApproved, err)
		return err
	}

	attachName := ""
	if len(pdf) > 0 {
		attachName = fmt.Sprintf("visitor-pass-%s.pdf", v.VisitorCode)
	}

	err = m.send(ctx, v.Email, "Your Visitor Request Approved", html, pdf, attachName)
	metrics.RecordEmail(TemplateVisitorApproved, err)
	return err
}

// SendRejection emails the visitor that the request was declined.
func (m *Mailer) SendRejection(ctx context.Context, v *models.VisitorRecord) error {
	html, err := renderTemplate(visitorRejectedTmpl, templateData{Visitor: v})
	if err != nil {
		metrics.RecordEmail(TemplateVisitorRejected, err)
		return err
	}

	err = m.send(ctx, v.Email, "Visitor Request Declined", html, nil, "")
	metrics.RecordEmail(TemplateVisitorRejected, err)
	return err
}

// decisionLink builds the host decision deep link for a token.
func (m *Mailer) decisionLink(token string, status models.VisitorStatus) string {
	return fmt.Sprintf("%s/visitors/decision/%s?status=%s", m.publicBaseURL, token, status)
}

// send delivers one message through the circuit breaker.
func (m *Mailer) send(ctx context.Context, to, subject, html string, attachment []byte, attachName string) error {
	if m.client == nil {
		logging.Debug().Str("to", to).Str("subject", subject).Msg("Email delivery disabled, skipping send")
		return nil
	}

	msg := mail.NewMsg()
	if err := msg.FromFormat(m.cfg.FromName, m.cfg.From); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, html)
	if len(attachment) > 0 {
		if err := msg.AttachReader(attachName, bytes.NewReader(attachment)); err != nil {
			return fmt.Errorf("failed to attach %s: %w", attachName, err)
		}
	}

	_, err := m.cb.Execute(func() (struct{}, error) {
		return struct{}{}, m.client.DialAndSendWithContext(ctx, msg)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "rejected").Inc()
		} else {
			metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "failure").Inc()
		}
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}

	metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "success").Inc()
	logging.Debug().Str("to", to).Str("subject", subject).Msg("Email sent")
	return nil
}
