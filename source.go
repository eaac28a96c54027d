package main

import (
	"bufio"
	"errors"
	"io"
	"iter"
	"os"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// Address is a validated recipient taken from the address source.
type Address string

const maxLineBytes = 1024 * 1024

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)+$`)

// extractAddress returns the part of line before the first ':'.
func extractAddress(line string) string {
	candidate, _, _ := strings.Cut(strings.TrimSpace(line), ":")
	return candidate
}

func validEmail(email string) bool {
	if len(email) < 5 || len(email) > 254 {
		return false
	}
	if !emailPattern.MatchString(email) {
		return false
	}
	local := email[:strings.LastIndex(email, "@")]
	if len(local) > 64 || strings.HasPrefix(local, ".") || strings.HasSuffix(local, ".") {
		return false
	}
	return !strings.Contains(local, "..")
}

func hasDomain(email, domain string) bool {
	return strings.Contains(strings.ToLower(email), strings.ToLower(domain))
}

// ParseLine reports the address carried by line when it is a valid email
// containing domain.
func ParseLine(line, domain string) (Address, bool) {
	email := extractAddress(line)
	if !validEmail(email) || !hasDomain(email, domain) {
		return "", false
	}
	return Address(email), true
}

// ReadAddresses streams the addresses of the file at path that match
// domain, in file order. The sequence is single-pass. When the file cannot
// be opened the failure is logged and the sequence is empty.
func ReadAddresses(path, domain string, log *zap.SugaredLogger) iter.Seq[Address] {
	return func(yield func(Address) bool) {
		file, err := os.Open(path)
		if err != nil {
			log.Errorw("failed to open address source", "path", path, "error", err)
			return
		}
		defer file.Close()

		reader := bufio.NewReader(file)
		for {
			line, err := readLine(reader, maxLineBytes)
			if line != "" {
				if addr, ok := ParseLine(line, domain); ok && !yield(addr) {
					return
				}
			}
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				log.Errorw("address source read stopped", "path", path, "error", err)
				return
			}
		}
	}
}

// readLine returns the next line of r, newline included, keeping at most
// limit bytes. The rest of a longer line is consumed and dropped.
func readLine(r *bufio.Reader, limit int) (string, error) {
	var line []byte
	for {
		chunk, err := r.ReadSlice('\n')
		if room := limit - len(line); room > 0 {
			line = append(line, chunk[:min(len(chunk), room)]...)
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return string(line), err
	}
}
