package playlist

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Plan files use the concat demuxer's line-oriented format: one entry per
// line of the form
//
//	file '<escaped-absolute-path>'
//
// Escaping is backslash -> double-backslash, single-quote ->
// backslash+single-quote, and must round-trip through Unescape. Readers
// ignore blank lines and lines beginning with '#'.

// Escape escapes a path for embedding in a plan file entry.
func Escape(path string) string {
	var b strings.Builder
	b.Grow(len(path))
	for _, r := range path {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '\'':
			b.WriteString(`\'`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Unescape reverses Escape. A trailing lone backslash is taken literally.
func Unescape(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	escaped := false
	for _, r := range s {
		if escaped {
			b.WriteRune(r)
			escaped = false
			continue
		}
		if r == '\\' {
			escaped = true
			continue
		}
		b.WriteRune(r)
	}
	if escaped {
		b.WriteRune('\\')
	}
	return b.String()
}

// WritePlan writes the ordered entry paths to path in concat format,
// overwriting any existing file.
func WritePlan(path string, entries []string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating plan file: %w", err)
	}

	w := bufio.NewWriter(f)
	for _, entry := range entries {
		if _, err := fmt.Fprintf(w, "file '%s'\n", Escape(entry)); err != nil {
			f.Close()
			return fmt.Errorf("writing plan entry: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flushing plan file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing plan file: %w", err)
	}
	return nil
}

// ReadPlan reads a plan file back into its ordered entry paths. Blank lines
// and comment lines are skipped; malformed lines produce an error so a torn
// write is detected rather than silently truncating the channel.
func ReadPlan(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening plan file: %w", err)
	}
	defer f.Close()

	var entries []string
	scanner := bufio.NewScanner(f)
	// Media paths can be long; lift the default token limit.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entry, ok := parsePlanLine(line)
		if !ok {
			return nil, fmt.Errorf("plan file %s: malformed entry at line %d", path, lineNo)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading plan file: %w", err)
	}

	return entries, nil
}

// parsePlanLine extracts and unescapes the path from a "file '...'" line.
func parsePlanLine(line string) (string, bool) {
	const prefix = "file '"
	if !strings.HasPrefix(line, prefix) || !strings.HasSuffix(line, "'") {
		return "", false
	}
	body := line[len(prefix) : len(line)-1]
	return Unescape(body), true
}
