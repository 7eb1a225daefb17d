package utils

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
)

const serverIDFile = ".server_id"

// GetPersistentServerID returns the id this process signs websocket fan-out with, so
// it can skip its own messages coming back from Valkey. Order of precedence: override,
// the saved id under storagePath, the sanitized hostname, then a random id that is saved.
func GetPersistentServerID(override, storagePath string) string {
	if override != "" {
		return override
	}

	idFile := filepath.Join(storagePath, serverIDFile)
	if data, err := os.ReadFile(idFile); err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id
		}
	}

	if hostname, err := os.Hostname(); err == nil && hostname != "localhost" {
		if clean := sanitizeHostname(hostname); clean != "" {
			return "azwrap-" + clean
		}
	}

	buf := make([]byte, 4)
	_, _ = rand.Read(buf)
	id := "azwrap-" + hex.EncodeToString(buf)
	_ = os.MkdirAll(storagePath, 0755)
	_ = os.WriteFile(idFile, []byte(id), 0644)
	return id
}

// sanitizeHostname keeps the characters that are safe inside a Valkey key.
func sanitizeHostname(hostname string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return -1
	}, hostname)
}
