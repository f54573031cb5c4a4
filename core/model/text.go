package model

import (
	"fmt"
	"strings"
)

// ParseTaskStatus converts a status name into a TaskStatus.
func ParseTaskStatus(s string) (TaskStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "notstarted", "not_started", "":
		return TaskNotStarted, true
	case "inprogress", "in_progress":
		return TaskInProgress, true
	case "done":
		return TaskDone, true
	default:
		return 0, false
	}
}

// MarshalText encodes the status by name.
func (s TaskStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText decodes a status name.
func (s *TaskStatus) UnmarshalText(b []byte) error {
	v, ok := ParseTaskStatus(string(b))
	if !ok {
		return fmt.Errorf("unknown task status %q", b)
	}
	*s = v
	return nil
}

// MarshalText encodes the status by name.
func (s ProjectStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText decodes a status name.
func (s *ProjectStatus) UnmarshalText(b []byte) error {
	v, ok := ParseProjectStatus(string(b))
	if !ok {
		return fmt.Errorf("unknown project status %q", b)
	}
	*s = v
	return nil
}

// MarshalText encodes the type by name.
func (t LineItemType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText decodes a type name.
func (t *LineItemType) UnmarshalText(b []byte) error {
	v, ok := ParseLineItemType(string(b))
	if !ok {
		return fmt.Errorf("unknown line item type %q", b)
	}
	*t = v
	return nil
}

// MarshalText encodes the source by name.
func (s Source) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText lets YAML seed files spell priorities by name.
func (p *Priority) UnmarshalText(b []byte) error {
	v, ok := ParsePriority(string(b))
	if !ok {
		return fmt.Errorf("unknown priority %q", b)
	}
	*p = v
	return nil
}

// UnmarshalText decodes a mode name from text formats.
func (m *ParallelizationMode) UnmarshalText(b []byte) error {
	v, ok := ParseParallelizationMode(string(b))
	if !ok {
		return fmt.Errorf("unknown parallelization mode %q", b)
	}
	*m = v
	return nil
}
