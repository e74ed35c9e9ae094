package storage

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

const maxKeyNameLength = 100

// ObjectKey builds a unique key of the form
// <category>/YYYY/MM/<uuid8>-<sanitized filename>.
func ObjectKey(category, filename string, now time.Time) string {
	now = now.UTC()
	prefix := strings.ToLower(strings.TrimSpace(category))
	if prefix == "" {
		prefix = "misc"
	}
	return fmt.Sprintf("%s/%04d/%02d/%s-%s", prefix, now.Year(), now.Month(), uuid.NewString()[:8], SanitizeFilename(filename))
}

// SanitizeFilename keeps the base name and replaces anything outside
// [A-Za-z0-9._-] with an underscore.
func SanitizeFilename(filename string) string {
	filename = strings.ReplaceAll(filename, `\`, "/")
	filename = path.Base(filename)
	if filename == "." || filename == "/" {
		filename = ""
	}

	var b strings.Builder
	for i := 0; i < len(filename); i++ {
		c := filename[i]
		if isAllowedFilenameChar(c) {
			b.WriteByte(c)
		} else {
			b.WriteByte('_')
		}
	}

	result := b.String()
	if result == "" {
		return "file"
	}
	if len(result) > maxKeyNameLength {
		ext := path.Ext(result)
		if len(ext) > 0 && len(ext) < 10 {
			result = result[:maxKeyNameLength-len(ext)] + ext
		} else {
			result = result[:maxKeyNameLength]
		}
	}
	return result
}

func isAllowedFilenameChar(c byte) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == '-' || c == '_' || c == '.'
}
