// Package formatting converts byte sizes to and from human-readable strings
// and decodes JSON embedded in free-form text.
package formatting

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

var units = []string{"B", "KB", "MB", "GB", "TB", "PB", "EB", "ZB", "YB"}

var bytesPattern = regexp.MustCompile(`^(\d+\.?\d*)\s*([A-Za-z]*)$`)

// FormatBytes renders n using base-1024 units. Negative precision is treated as zero.
func FormatBytes(n int64, precision int) string {
	precision = max(precision, 0)

	size := float64(n)
	i := 0
	for size >= 1024 && i < len(units)-1 {
		size /= 1024
		i++
	}

	if i == 0 {
		return strconv.FormatInt(n, 10) + " B"
	}
	return strconv.FormatFloat(size, 'f', precision, 64) + " " + units[i]
}

// ParseBytes parses a size such as "50MB" or "100 kb" into bytes. A bare
// number is bytes; units run from B to YB, base-1024, case-insensitive.
func ParseBytes(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty byte size string")
	}

	m := bytesPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid byte size: %q", s)
	}

	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size number: %w", err)
	}

	unit := strings.ToUpper(m[2])
	if unit == "" {
		unit = "B"
	}
	idx := slices.Index(units, unit)
	if idx == -1 {
		return 0, fmt.Errorf("unknown byte size unit: %q", m[2])
	}

	for range idx {
		value *= 1024
	}
	return int64(value), nil
}

// ErrParseFailed is returned when no JSON value of the expected shape can be
// found in the content.
var ErrParseFailed = errors.New("failed to parse response")

var fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

// Parse decodes content as JSON into T. When content is not plain JSON it
// tries, in order, the first markdown code fence and the span between the
// outermost braces or brackets.
func Parse[T any](content string) (T, error) {
	var out T
	content = strings.TrimSpace(content)

	candidates := []string{content}
	if m := fencePattern.FindStringSubmatch(content); len(m) == 2 {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	for _, pair := range [][2]string{{"{", "}"}, {"[", "]"}} {
		start, end := strings.Index(content, pair[0]), strings.LastIndex(content, pair[1])
		if start >= 0 && end > start {
			candidates = append(candidates, content[start:end+1])
		}
	}

	for _, c := range candidates {
		if err := json.Unmarshal([]byte(c), &out); err == nil {
			return out, nil
		}
		out = *new(T)
	}

	return out, fmt.Errorf("%w: %s", ErrParseFailed, content)
}
