package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestScanCommand(t *testing.T) {
	clearSMTPEnv(t)
	dir := t.TempDir()
	source := writeFile(t, dir, "emails.txt", "a@gmail.com:x", "b@yahoo.com", "bad-line", "c@GMAIL.com", "d@gmail.com")
	configPath := writeFile(t, dir, "config.yml",
		"source: "+source,
		"domain: gmail.com",
		"batch_size: 2",
	)

	out, err := runCommand(t, "scan", "--config", configPath, "--env-file", writeFile(t, dir, ".env"))

	require.NoError(t, err)
	assert.Equal(t, "batch 1 (2 addresses)\n  a@gmail.com\n  c@GMAIL.com\nbatch 2 (1 addresses)\n  d@gmail.com\n3 addresses match gmail.com\n", out)
}

func TestSendCommand_MissingTemplate(t *testing.T) {
	clearSMTPEnv(t)
	dir := t.TempDir()
	reportDir := filepath.Join(dir, "log")
	configPath := writeFile(t, dir, "config.yml",
		"source: "+writeFile(t, dir, "emails.txt", "a@gmail.com"),
		"template: "+filepath.Join(dir, "missing.html"),
		"report_dir: "+reportDir,
		"from_address: news@example.com",
		"smtp:",
		"  host: 127.0.0.1",
		"  port: 2525",
	)

	_, err := runCommand(t, "send", "--config", configPath, "--env-file", writeFile(t, dir, ".env"))

	assert.ErrorIs(t, err, ErrTemplateUnavailable)
	assert.NoDirExists(t, reportDir)
}

func TestSendCommand_InvalidConfig(t *testing.T) {
	clearSMTPEnv(t)
	dir := t.TempDir()
	configPath := writeFile(t, dir, "config.yml", "batch_size: 0")

	_, err := runCommand(t, "send", "--config", configPath, "--env-file", writeFile(t, dir, ".env"))

	assert.ErrorContains(t, err, "batch_size must be at least 1")
}

func TestSendCommand_EndToEnd(t *testing.T) {
	clearSMTPEnv(t)
	be := &testBackend{user: "news@example.com", pass: "s3cret", rejectRcpt: "gone@gmail.com"}
	smtpCfg := startTestServer(t, be)

	dir := t.TempDir()
	reportDir := filepath.Join(dir, "log")
	source := writeFile(t, dir, "emails.txt", "a@gmail.com:x", "b@yahoo.com", "gone@gmail.com", "c@GMAIL.com")
	template := writeFile(t, dir, "template.html", "<h1>Sale</h1>")
	configPath := writeFile(t, dir, "config.yml",
		"source: "+source,
		"template: "+template,
		"report_dir: "+reportDir,
		"batch_size: 2",
		"batch_interval: 0s",
		"retry_delay: 0s",
		"max_attempts: 2",
		"subject: Sale",
	)
	envPath := writeFile(t, dir, ".env",
		"SMTP_HOST="+smtpCfg.Host,
		"SMTP_PORT="+itoa(smtpCfg.Port),
		"SMTP_USERNAME="+smtpCfg.Username,
		"SMTP_PASSWORD="+smtpCfg.Password,
		"SMTP_SECURE=none",
		"SMTP_AUTH=plain",
	)

	_, err := runCommand(t, "send", "--config", configPath, "--env-file", envPath)
	require.NoError(t, err)

	got := be.received()
	require.Len(t, got, 2)
	assert.Equal(t, []string{"a@gmail.com"}, got[0].To)
	assert.Equal(t, []string{"c@GMAIL.com"}, got[1].To)
	assert.Contains(t, got[0].Data, "<h1>Sale</h1>")

	reports, err := filepath.Glob(filepath.Join(reportDir, "*_delivery_log.csv"))
	require.NoError(t, err)
	require.Len(t, reports, 1)
	file, err := os.Open(reports[0])
	require.NoError(t, err)
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"a@gmail.com", "SI", SuccessDetail}, rows[0])
	assert.Equal(t, "gone@gmail.com", rows[1][0])
	assert.Equal(t, "NO", rows[1][1])
	assert.Contains(t, rows[1][2], "mailbox unavailable")
	assert.Equal(t, []string{"c@GMAIL.com", "SI", SuccessDetail}, rows[2])
}

func TestCheckCommand(t *testing.T) {
	clearSMTPEnv(t)
	be := &testBackend{user: "news@example.com", pass: "s3cret"}
	smtpCfg := startTestServer(t, be)
	dir := t.TempDir()
	configPath := writeFile(t, dir, "config.yml",
		"smtp:",
		"  host: "+smtpCfg.Host,
		"  port: "+itoa(smtpCfg.Port),
		"  username: "+smtpCfg.Username,
		"  password: "+smtpCfg.Password,
		"  secure: none",
		"  auth: plain",
	)

	envPath := writeFile(t, dir, ".env")

	_, err := runCommand(t, "check", "--config", configPath, "--env-file", envPath)
	assert.NoError(t, err)

	t.Setenv("SMTP_PASSWORD", "wrong")
	_, err = runCommand(t, "check", "--config", configPath, "--env-file", envPath)
	assert.Error(t, err)
}
