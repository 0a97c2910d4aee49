package infra

import (
	"strings"

	"github.com/shirou/gopsutil/v3/host"
	"go.uber.org/zap"
)

// DefaultDisplay is used when no graphical login is found.
const DefaultDisplay = ":0"

// Session is a logged-in session as listed in utmp.
type Session struct {
	User     string
	Terminal string
	Host     string
}

// display returns the X display of a graphical session, or "".
func (s Session) display() string {
	for _, field := range []string{s.Terminal, s.Host} {
		if strings.HasPrefix(field, ":") {
			return field
		}
	}
	return ""
}

// DetectDisplay picks the X display to connect to.
//
// Graphical sessions of username (any user when empty) are considered in utmp
// order. Without a configured display the first one wins; with one, it is used
// only if such a session exists. Otherwise the configured display, or
// DefaultDisplay, is returned.
func DetectDisplay(username, configured string, logger *zap.Logger) string {
	fallback := configured
	if fallback == "" {
		fallback = DefaultDisplay
	}

	users, err := host.Users()
	if err != nil {
		logger.Warn("failed to list sessions, using fallback display",
			zap.String("display", fallback), zap.Error(err))
		return fallback
	}

	sessions := make([]Session, 0, len(users))
	for _, u := range users {
		sessions = append(sessions, Session{User: u.User, Terminal: u.Terminal, Host: u.Host})
	}
	return SelectDisplay(sessions, username, configured, fallback)
}

// SelectDisplay is the session-matching part of DetectDisplay.
func SelectDisplay(sessions []Session, username, configured, fallback string) string {
	for _, s := range sessions {
		display := s.display()
		if display == "" {
			continue
		}
		if username != "" && s.User != username {
			continue
		}
		if configured == "" || display == configured {
			return display
		}
	}
	return fallback
}
