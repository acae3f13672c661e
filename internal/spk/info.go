package spk

import (
	"strconv"
	"strings"

	"github.com/ralt/spkrepo/internal/models"
)

// ParseInfo parses the INFO file format: one key="value" pair per line.
// Unquoted integers become integer values, everything else is kept as text.
// Blank lines, comments and lines without '=' are ignored. Lines have no
// length limit; inline changelogs can be large.
func ParseInfo(data []byte) *models.Metadata {
	info := models.NewMetadata()

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, raw, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		info.Set(key, parseInfoValue(strings.TrimSpace(raw)))
	}

	return info
}

func parseInfoValue(raw string) models.Value {
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		return models.StringValue(unescape(raw[1 : len(raw)-1]))
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return models.IntValue(i)
	}
	return models.StringValue(raw)
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case '"', '\\':
				b.WriteByte(s[i+1])
				i++
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
