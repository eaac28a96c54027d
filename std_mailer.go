package main

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/google/uuid"
	"gopkg.in/gomail.v2"
)

// - SSL is the predecessor of TLS
// - "tls" upgrades a plaintext connection with STARTTLS (usually port 587)
// - any other mode dials TLS from the first byte, SMTPS (usually port 465)
// - "none" stays in plaintext, only for local relays

const (
	CryptoStartTLS = "tls"
	CryptoNone     = "none"

	AuthLogin = "login"
	AuthPlain = "plain"
)

// RelayError names the relay stage that failed.
type RelayError struct {
	Op  string
	Err error
}

func (e *RelayError) Error() string {
	return fmt.Sprintf("%s => %v", e.Op, e.Err)
}

func (e *RelayError) Unwrap() error {
	return e.Err
}

type SMTPRelay struct {
	smtpHost   string
	smtpPort   int
	smtpUser   string
	smtpPass   string
	smtpCrypto string
	smtpAuth   string

	// nil means the system roots
	rootCAs *x509.CertPool
}

func NewSMTPRelay(cfg SMTPConfig) *SMTPRelay {
	return &SMTPRelay{
		smtpHost:   cfg.Host,
		smtpPort:   cfg.Port,
		smtpUser:   cfg.Username,
		smtpPass:   cfg.Password,
		smtpCrypto: strings.ToLower(cfg.Secure),
		smtpAuth:   strings.ToLower(cfg.Auth),
	}
}

func (m *SMTPRelay) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var body bytes.Buffer
	if _, err := composeMessage(msg).WriteTo(&body); err != nil {
		return &RelayError{Op: "failed to compose message", Err: err}
	}

	client, err := m.connect()
	if err != nil {
		return err
	}
	defer client.Close()

	err = client.SendMail(msg.From, []string{msg.To}, &body)
	if err != nil {
		return &RelayError{Op: "failed to send email", Err: err}
	}
	// the relay already accepted the message, a failed QUIT changes nothing
	_ = client.Quit()
	return nil
}

// Health dials, negotiates encryption and authenticates without sending.
func (m *SMTPRelay) Health(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	client, err := m.connect()
	if err != nil {
		return err
	}
	defer client.Close()
	if err := client.Quit(); err != nil {
		return &RelayError{Op: "failed to quit", Err: err}
	}
	return nil
}

func (m *SMTPRelay) connect() (*smtp.Client, error) {
	var err error
	var client *smtp.Client

	addr := net.JoinHostPort(m.smtpHost, strconv.Itoa(m.smtpPort))
	tlsConfig := &tls.Config{
		ServerName: m.smtpHost,
		RootCAs:    m.rootCAs,
	}

	switch m.smtpCrypto {
	case CryptoStartTLS:
		client, err = smtp.DialStartTLS(addr, tlsConfig)
		if err != nil {
			return nil, &RelayError{Op: "failed to connect to SMTP tls server", Err: err}
		}
	case CryptoNone:
		client, err = smtp.Dial(addr)
		if err != nil {
			return nil, &RelayError{Op: "failed to connect to SMTP server", Err: err}
		}
	default:
		client, err = smtp.DialTLS(addr, tlsConfig)
		if err != nil {
			return nil, &RelayError{Op: "failed to connect to SMTP ssl server", Err: err}
		}
	}

	if m.smtpUser == "" {
		return client, nil
	}
	if err := client.Auth(m.saslClient()); err != nil {
		client.Close()
		return nil, &RelayError{Op: "failed to authenticate", Err: err}
	}
	return client, nil
}

func (m *SMTPRelay) saslClient() sasl.Client {
	if m.smtpAuth == AuthPlain {
		return sasl.NewPlainClient("", m.smtpUser, m.smtpPass)
	}
	return sasl.NewLoginClient(m.smtpUser, m.smtpPass)
}

func composeMessage(msg Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", msg.From, msg.FromName)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetHeader("Message-ID", messageID(msg.From))
	m.SetDateHeader("Date", time.Now())
	m.SetBody("text/html", msg.HTML)
	return m
}

func messageID(from string) string {
	domain := "localhost"
	if at := strings.LastIndex(from, "@"); at >= 0 && at < len(from)-1 {
		domain = from[at+1:]
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)
}
