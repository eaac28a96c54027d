package main

import (
	"context"

	"go.uber.org/zap"
)

const SuccessDetail = "email sent successfully"

// SendResult is the final outcome of delivering to one address.
type SendResult struct {
	Address   Address
	Delivered bool
	Detail    string
}

type Dispatcher struct {
	relay    Relay
	from     string
	fromName string
	subject  string
	policy   RetryPolicy
	sleep    sleepFunc
	redact   redactor
	log      *zap.SugaredLogger
}

func NewDispatcher(relay Relay, cfg Config, log *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{
		relay:    relay,
		from:     cfg.FromAddress,
		fromName: cfg.FromName,
		subject:  cfg.Subject,
		policy:   RetryPolicy{MaxAttempts: cfg.MaxAttempts, Delay: cfg.RetryDelay},
		sleep:    sleepContext,
		redact:   redactor(cfg.RedactAddresses),
		log:      log,
	}
}

// Send delivers html to addr, retrying failed attempts. Only the final
// outcome is returned.
func (d *Dispatcher) Send(ctx context.Context, addr Address, html string) SendResult {
	msg := Message{
		From:     d.from,
		FromName: d.fromName,
		To:       string(addr),
		Subject:  d.subject,
		HTML:     html,
	}

	err := Retry(ctx, d.policy, d.sleep, func(attempt int) error {
		err := d.relay.Send(ctx, msg)
		if err != nil {
			d.log.Debugw("send attempt failed", "email", d.redact.mask(addr), "attempt", attempt, "error", err)
		}
		return err
	})
	if err != nil {
		return SendResult{Address: addr, Detail: "error: " + err.Error()}
	}
	return SendResult{Address: addr, Delivered: true, Detail: SuccessDetail}
}
