package isolate

import (
	"strconv"
	"strings"
)

// MetaFile holds the raw key-value pairs parsed from a supervisor meta-file
// report.
type MetaFile struct {
	entries map[string]string
}

// ParseMeta parses meta-file content leniently: malformed lines (missing a
// colon, or an empty key) are skipped rather than raised as errors. Empty
// lines are skipped. It never panics on any input.
func ParseMeta(content string) MetaFile {
	entries := make(map[string]string)

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}

		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}

		entries[key] = strings.TrimSpace(value)
	}

	return MetaFile{entries: entries}
}

// ParseMetaStrict parses meta-file content, failing on the first malformed
// line with a *MetaParseError naming the 1-indexed line number and reason.
// Empty lines are still skipped.
func ParseMetaStrict(content string) (MetaFile, error) {
	entries := make(map[string]string)

	for i, line := range strings.Split(content, "\n") {
		lineNo := i + 1
		trimmed := strings.TrimSpace(line)

		if trimmed == "" {
			continue
		}

		key, value, ok := strings.Cut(trimmed, ":")
		if !ok {
			return MetaFile{}, &MetaParseError{Line: lineNo, Content: line, Reason: "missing colon separator"}
		}

		key = strings.TrimSpace(key)
		if key == "" {
			return MetaFile{}, &MetaParseError{Line: lineNo, Content: line, Reason: "empty key before colon"}
		}

		entries[key] = strings.TrimSpace(value)
	}

	return MetaFile{entries: entries}, nil
}

// Get returns the raw string value for key, if present.
func (m MetaFile) Get(key string) (string, bool) {
	v, ok := m.entries[key]

	return v, ok
}

func (m MetaFile) getFloat(key string) (float64, bool) {
	raw, ok := m.Get(key)
	if !ok {
		return 0, false
	}

	v, err := strconv.ParseFloat(raw, 64)

	return v, err == nil
}

func (m MetaFile) getUint64(key string) (uint64, bool) {
	raw, ok := m.Get(key)
	if !ok {
		return 0, false
	}

	v, err := strconv.ParseUint(raw, 10, 64)

	return v, err == nil
}

func (m MetaFile) getInt(key string) (int, bool) {
	raw, ok := m.Get(key)
	if !ok {
		return 0, false
	}

	v, err := strconv.Atoi(raw)

	return v, err == nil
}

// Status returns the execution status. Absence of the "status" key implies
// StatusOK.
func (m MetaFile) Status() ExecutionStatus {
	raw, ok := m.Get("status")
	if !ok {
		return StatusOK
	}

	return ExecutionStatusFromIsolate(raw)
}

// CPUTimeSeconds returns the "time" entry, defaulting to 0.
func (m MetaFile) CPUTimeSeconds() float64 {
	v, _ := m.getFloat("time")

	return v
}

// WallTimeSeconds returns the "time-wall" entry, defaulting to 0.
func (m MetaFile) WallTimeSeconds() float64 {
	v, _ := m.getFloat("time-wall")

	return v
}

// CgMemoryKB returns the "cg-mem" entry, if present.
func (m MetaFile) CgMemoryKB() *uint64 {
	v, ok := m.getUint64("cg-mem")
	if !ok {
		return nil
	}

	return &v
}

// MaxRSSKB returns the "max-rss" entry, if present.
func (m MetaFile) MaxRSSKB() *uint64 {
	v, ok := m.getUint64("max-rss")
	if !ok {
		return nil
	}

	return &v
}

// MemoryKB returns CgMemoryKB if present, else MaxRSSKB, else 0.
func (m MetaFile) MemoryKB() uint64 {
	if v := m.CgMemoryKB(); v != nil {
		return *v
	}

	if v := m.MaxRSSKB(); v != nil {
		return *v
	}

	return 0
}

// ExitCode returns the "exitcode" entry, if present.
func (m MetaFile) ExitCode() *int {
	v, ok := m.getInt("exitcode")
	if !ok {
		return nil
	}

	return &v
}

// Signal returns the "exitsig" entry, if present.
func (m MetaFile) Signal() *int {
	v, ok := m.getInt("exitsig")
	if !ok {
		return nil
	}

	return &v
}

// Message returns the "message" entry, if present.
func (m MetaFile) Message() (string, bool) {
	return m.Get("message")
}

// Killed reports whether the "killed" entry is present.
func (m MetaFile) Killed() bool {
	_, ok := m.Get("killed")

	return ok
}

// LimitExceededFromMessage infers which limit was exceeded from the
// supervisor's free-text message, per the classification rule: "time limit"
// + "wall" wins WallTime over Time; "memory"/"out of memory" wins Memory;
// "output" wins Output; anything else yields NotExceeded. It never panics.
func LimitExceededFromMessage(message string) LimitExceeded {
	if message == "" {
		return LimitNotExceeded
	}

	lower := strings.ToLower(message)

	switch {
	case strings.Contains(lower, "time limit"):
		if strings.Contains(lower, "wall") {
			return LimitWallTime
		}

		return LimitTime
	case strings.Contains(lower, "memory"), strings.Contains(lower, "out of memory"):
		return LimitMemory
	case strings.Contains(lower, "output"):
		return LimitOutput
	default:
		return LimitNotExceeded
	}
}

// LimitExceeded classifies which limit, if any, this meta file's run
// exceeded: first by inspecting the message, then by falling back to "status
// == TO implies Time" when the message gave no answer.
func (m MetaFile) LimitExceeded() LimitExceeded {
	message, _ := m.Message()

	if fromMessage := LimitExceededFromMessage(message); fromMessage.IsExceeded() {
		return fromMessage
	}

	if m.Status() == StatusTimeLimitExceeded {
		return LimitTime
	}

	return LimitNotExceeded
}

// ToExecutionResult converts the parsed meta file into an ExecutionResult.
// Stdout/Stderr are left nil; callers attach those separately after reading
// them back from the box's host paths.
func (m MetaFile) ToExecutionResult() ExecutionResult {
	message, _ := m.Message()

	return ExecutionResult{
		Status:          m.Status(),
		LimitExceeded:   m.LimitExceeded(),
		CPUTimeSeconds:  m.CPUTimeSeconds(),
		WallTimeSeconds: m.WallTimeSeconds(),
		MemoryKB:        m.MemoryKB(),
		CgMemoryKB:      m.CgMemoryKB(),
		MaxRSSKB:        m.MaxRSSKB(),
		ExitCode:        m.ExitCode(),
		Signal:          m.Signal(),
		Message:         message,
	}
}
