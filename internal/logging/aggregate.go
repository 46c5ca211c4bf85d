package logging

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// LogEntry is one parsed line of a peer's JSON log.
type LogEntry struct {
	Timestamp time.Time      `json:"time"`
	Level     string         `json:"level"`
	Message   string         `json:"msg"`
	Source    string         `json:"source"` // log file name without extension
	Peer      int            `json:"peer,omitempty"`
	Round     int            `json:"round"`
	HasRound  bool           `json:"-"`
	Role      string         `json:"role,omitempty"`
	Binding   string         `json:"binding,omitempty"`
	Attrs     map[string]any `json:"attrs,omitempty"`
}

// LogFilter selects log entries. Zero fields match everything.
type LogFilter struct {
	// Level keeps entries at or above this level.
	Level string
	// Peer keeps entries from this peer (1 or 2).
	Peer int
	// Round keeps entries tagged with this round when non-nil.
	Round *int
	// Role keeps entries logged in this role.
	Role string
	// MessageContains keeps entries whose message contains this substring.
	MessageContains string
}

var levelOrder = map[string]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// AggregateLogs reads every *.log file in dir and merges their entries in
// timestamp order. With the spawn mode each process writes its own file, so
// this is how one duel is read back as a single timeline. Lines that are not
// JSON are skipped.
func AggregateLogs(dir string) ([]LogEntry, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.log"))
	if err != nil {
		return nil, fmt.Errorf("failed to list log files: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no log files found in %s", dir)
	}

	var entries []LogEntry
	for _, path := range paths {
		fileEntries, err := readLogFile(path)
		if err != nil {
			return nil, err
		}
		entries = append(entries, fileEntries...)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
	return entries, nil
}

func readLogFile(path string) ([]LogEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	source := strings.TrimSuffix(filepath.Base(path), ".log")
	var entries []LogEntry
	scanner := bufio.NewScanner(file)
	const maxScanTokenSize = 1024 * 1024
	scanner.Buffer(make([]byte, 64*1024), maxScanTokenSize)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		entry, err := parseLogEntry(line)
		if err != nil {
			continue
		}
		entry.Source = source
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}
	return entries, nil
}

// parseLogEntry parses a single JSON log line.
func parseLogEntry(line string) (LogEntry, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return LogEntry{}, fmt.Errorf("invalid JSON: %w", err)
	}

	entry := LogEntry{Attrs: make(map[string]any)}
	for k, v := range raw {
		switch k {
		case "time":
			if s, ok := v.(string); ok {
				entry.Timestamp, _ = time.Parse(time.RFC3339Nano, s)
			}
		case "level":
			entry.Level, _ = v.(string)
		case "msg":
			entry.Message, _ = v.(string)
		case "peer":
			if n, ok := v.(float64); ok {
				entry.Peer = int(n)
			}
		case "round":
			if n, ok := v.(float64); ok {
				entry.Round, entry.HasRound = int(n), true
			}
		case "role":
			entry.Role, _ = v.(string)
		case "binding":
			entry.Binding, _ = v.(string)
		default:
			entry.Attrs[k] = v
		}
	}
	return entry, nil
}

// FilterLogs returns the entries matching every criterion in filter.
func FilterLogs(entries []LogEntry, filter LogFilter) []LogEntry {
	var filtered []LogEntry
	for _, entry := range entries {
		if matchesFilter(entry, filter) {
			filtered = append(filtered, entry)
		}
	}
	return filtered
}

func matchesFilter(entry LogEntry, filter LogFilter) bool {
	if filter.Level != "" {
		want, wantOk := levelOrder[strings.ToUpper(filter.Level)]
		got, gotOk := levelOrder[entry.Level]
		if wantOk && gotOk && got < want {
			return false
		}
	}
	if filter.Peer != 0 && entry.Peer != filter.Peer {
		return false
	}
	if filter.Round != nil && (!entry.HasRound || entry.Round != *filter.Round) {
		return false
	}
	if filter.Role != "" && entry.Role != filter.Role {
		return false
	}
	if filter.MessageContains != "" && !strings.Contains(entry.Message, filter.MessageContains) {
		return false
	}
	return true
}

// WriteText writes entries one per line:
// [TIMESTAMP] LEVEL peer=N round=N role=R - MESSAGE {attrs}
func WriteText(w io.Writer, entries []LogEntry) error {
	for _, entry := range entries {
		parts := []string{
			fmt.Sprintf("[%s]", entry.Timestamp.Format("15:04:05.000000")),
			fmt.Sprintf("%-5s", entry.Level),
		}
		if entry.Peer != 0 {
			parts = append(parts, fmt.Sprintf("peer=%d", entry.Peer))
		}
		if entry.HasRound {
			parts = append(parts, fmt.Sprintf("round=%d", entry.Round))
		}
		if entry.Role != "" {
			parts = append(parts, "role="+entry.Role)
		}
		parts = append(parts, "-", entry.Message)
		if len(entry.Attrs) > 0 {
			attrsJSON, _ := json.Marshal(entry.Attrs)
			parts = append(parts, string(attrsJSON))
		}
		if _, err := fmt.Fprintln(w, strings.Join(parts, " ")); err != nil {
			return fmt.Errorf("failed to write text entry: %w", err)
		}
	}
	return nil
}

// WriteJSON writes entries as an indented JSON array.
func WriteJSON(w io.Writer, entries []LogEntry) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(entries)
}
