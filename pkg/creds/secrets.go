package creds

import (
	"io"
	"net/http"
	"slices"
	"strings"
	"sync"
)

// AddSecret registers a value (password, session token) that must never reach
// logs or API output.
func AddSecret(value string) {
	if value == "" {
		return
	}

	secretsMu.Lock()
	defer secretsMu.Unlock()

	if slices.Contains(secrets, value) {
		return
	}

	secrets = append(secrets, value)
	secretsReplacer = nil
}

// RemoveSecret forgets an outdated value, like a replaced session token.
func RemoveSecret(value string) {
	secretsMu.Lock()
	defer secretsMu.Unlock()

	if i := slices.Index(secrets, value); i >= 0 {
		secrets = slices.Delete(secrets, i, i+1)
		secretsReplacer = nil
	}
}

var secrets []string
var secretsMu sync.Mutex
var secretsReplacer *strings.Replacer

func getReplacer() *strings.Replacer {
	secretsMu.Lock()
	defer secretsMu.Unlock()

	if secretsReplacer == nil {
		// longest first, so a secret containing another one is masked whole
		sorted := slices.Clone(secrets)
		slices.SortFunc(sorted, func(a, b string) int { return len(b) - len(a) })

		oldnew := make([]string, 0, 2*len(sorted))
		for _, s := range sorted {
			oldnew = append(oldnew, s, "***")
		}
		secretsReplacer = strings.NewReplacer(oldnew...)
	}

	return secretsReplacer
}

func SecretString(s string) string {
	return getReplacer().Replace(s)
}

// SecretWriter masks secrets in everything written to w.
func SecretWriter(w io.Writer) io.Writer {
	return &secretWriter{w}
}

type secretWriter struct {
	w io.Writer
}

func (s *secretWriter) Write(b []byte) (int, error) {
	if _, err := getReplacer().WriteString(s.w, string(b)); err != nil {
		return 0, err
	}
	return len(b), nil
}

type secretResponse struct {
	http.ResponseWriter
}

func (s *secretResponse) Write(b []byte) (int, error) {
	if _, err := getReplacer().WriteString(s.ResponseWriter, string(b)); err != nil {
		return 0, err
	}
	return len(b), nil
}

func SecretResponse(w http.ResponseWriter) http.ResponseWriter {
	return &secretResponse{w}
}
