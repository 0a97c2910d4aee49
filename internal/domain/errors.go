package domain

import (
	"fmt"
	"strings"
)

// AmbiguousRuleError reports a window matched by more than one rule.
// It points at a misconfiguration and is never resolved automatically.
type AmbiguousRuleError struct {
	FullName  *string
	ShortName string
	Patterns  []string
}

func (e *AmbiguousRuleError) Error() string {
	name := "<none>"
	if e.FullName != nil {
		name = *e.FullName
	}
	return fmt.Sprintf("multiple rules match window %q (short name %q): %s",
		name, e.ShortName, strings.Join(quoteAll(e.Patterns), ", "))
}

// MissingProcessIDError reports a policy-bound window whose PID is unknown.
type MissingProcessIDError struct {
	Key       TrackingKey
	Window    WindowID
	ShortName string
}

func (e *MissingProcessIDError) Error() string {
	return fmt.Sprintf("no PID for window 0x%x (%s, short name %q)", uint32(e.Window), e.Key, e.ShortName)
}

// ConfigReloadError reports a failed rule reload. The previous rules stay active.
type ConfigReloadError struct {
	Err error
}

func (e *ConfigReloadError) Error() string {
	return fmt.Sprintf("config reload failed: %v", e.Err)
}

func (e *ConfigReloadError) Unwrap() error { return e.Err }

// CollaboratorUnavailableError reports a failed display server query.
// The poll loop treats it as "no focused window".
type CollaboratorUnavailableError struct {
	Op  string
	Err error
}

func (e *CollaboratorUnavailableError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CollaboratorUnavailableError) Unwrap() error { return e.Err }

func quoteAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = fmt.Sprintf("%q", s)
	}
	return out
}
