package infra

import (
	"context"
	"encoding/binary"
	"strings"
	"sync"
	"time"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/win_mon/internal/domain"
)

// propertyLength bounds string properties, in 32-bit units.
const propertyLength = 1024

var x11Atoms = []string{
	"_NET_ACTIVE_WINDOW",
	"_NET_WM_NAME",
	"_NET_WM_PID",
	"UTF8_STRING",
}

var setXGBLogger sync.Once

// X11Source implements domain.WindowSource over the X11 protocol.
// The connection is opened lazily and reopened after any failure.
type X11Source struct {
	display string
	timeout time.Duration
	logger  *zap.Logger

	mu   sync.Mutex
	conn *x11Conn
}

type x11Conn struct {
	conn  *xgb.Conn
	root  xproto.Window
	atoms map[string]xproto.Atom
}

// NewX11Source creates a window source for display (e.g. ":0").
// Every query is bounded by timeout.
func NewX11Source(display string, timeout time.Duration, logger *zap.Logger) *X11Source {
	setXGBLogger.Do(func() {
		xgb.Logger = zap.NewStdLog(logger.Named("xgb"))
	})
	return &X11Source{
		display: display,
		timeout: timeout,
		logger:  logger,
	}
}

// Display returns the X display this source talks to.
func (s *X11Source) Display() string {
	return s.display
}

// ActiveWindow returns the window named by _NET_ACTIVE_WINDOW on the root window.
func (s *X11Source) ActiveWindow(ctx context.Context) (domain.WindowID, bool, error) {
	var (
		id    domain.WindowID
		found bool
	)
	err := s.query(ctx, "active window", func(c *x11Conn) error {
		reply, err := xproto.GetProperty(c.conn, false, c.root,
			c.atoms["_NET_ACTIVE_WINDOW"], xproto.AtomWindow, 0, 1).Reply()
		if err != nil {
			return errors.Wrap(err, "get _NET_ACTIVE_WINDOW")
		}
		id, found = decodeWindow(reply.Value)
		return nil
	})
	return id, found, err
}

// Attributes reads WM_CLASS, _NET_WM_PID, the title and WM_CLIENT_MACHINE of
// each window. Windows destroyed in the meantime are left out of the result.
func (s *X11Source) Attributes(ctx context.Context, ids ...domain.WindowID) (map[domain.WindowID]domain.WindowAttributes, error) {
	result := make(map[domain.WindowID]domain.WindowAttributes, len(ids))
	err := s.query(ctx, "window attributes", func(c *x11Conn) error {
		for _, id := range ids {
			attrs, err := c.attributes(xproto.Window(id))
			if err != nil {
				if isBadWindow(err) {
					continue
				}
				return err
			}
			result[id] = attrs
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Close releases the display connection.
func (s *X11Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.conn.Close()
		s.conn = nil
	}
	return nil
}

// query runs fn against a live connection, giving up after the timeout.
// A failed or abandoned query drops the connection so the next one reconnects.
func (s *X11Source) query(ctx context.Context, op string, fn func(c *x11Conn) error) error {
	c, err := s.connection()
	if err != nil {
		return &domain.CollaboratorUnavailableError{Op: op, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(c) }()

	select {
	case err = <-done:
	case <-ctx.Done():
		err = errors.Wrapf(ctx.Err(), "x11 %s", op)
	}
	if err != nil {
		s.drop(c)
		return &domain.CollaboratorUnavailableError{Op: op, Err: err}
	}
	return nil
}

func (s *X11Source) connection() (*x11Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return s.conn, nil
	}

	conn, err := xgb.NewConnDisplay(s.display)
	if err != nil {
		return nil, errors.Wrapf(err, "connect to display %s", s.display)
	}

	c := &x11Conn{
		conn:  conn,
		root:  xproto.Setup(conn).DefaultScreen(conn).Root,
		atoms: make(map[string]xproto.Atom, len(x11Atoms)),
	}
	for _, name := range x11Atoms {
		reply, err := xproto.InternAtom(conn, false, uint16(len(name)), name).Reply()
		if err != nil {
			conn.Close()
			return nil, errors.Wrapf(err, "intern atom %s", name)
		}
		c.atoms[name] = reply.Atom
	}

	s.logger.Debug("connected to X display", zap.String("display", s.display))
	s.conn = c
	return c, nil
}

func (s *X11Source) drop(c *x11Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == c {
		c.conn.Close()
		s.conn = nil
		s.logger.Debug("dropped X connection", zap.String("display", s.display))
	}
}

func (c *x11Conn) attributes(w xproto.Window) (domain.WindowAttributes, error) {
	attrs := domain.WindowAttributes{Window: domain.WindowID(w)}

	class, err := c.property(w, xproto.AtomWmClass, xproto.AtomString)
	if err != nil {
		return attrs, errors.Wrap(err, "get WM_CLASS")
	}
	attrs.Classes = decodeStrings(class.Value)

	pid, err := c.property(w, c.atoms["_NET_WM_PID"], xproto.AtomCardinal)
	if err != nil {
		return attrs, errors.Wrap(err, "get _NET_WM_PID")
	}
	attrs.PID, attrs.HasPID = decodeCardinal(pid.Value)

	name, err := c.property(w, c.atoms["_NET_WM_NAME"], c.atoms["UTF8_STRING"])
	if err != nil {
		return attrs, errors.Wrap(err, "get _NET_WM_NAME")
	}
	if name.Type == xproto.AtomNone {
		if name, err = c.property(w, xproto.AtomWmName, xproto.GetPropertyTypeAny); err != nil {
			return attrs, errors.Wrap(err, "get WM_NAME")
		}
	}
	if name.Type != xproto.AtomNone {
		attrs.Name, attrs.HasName = decodeText(name.Value), true
	}

	machine, err := c.property(w, xproto.AtomWmClientMachine, xproto.GetPropertyTypeAny)
	if err != nil {
		return attrs, errors.Wrap(err, "get WM_CLIENT_MACHINE")
	}
	attrs.Machine = decodeText(machine.Value)

	return attrs, nil
}

func (c *x11Conn) property(w xproto.Window, prop, typ xproto.Atom) (*xproto.GetPropertyReply, error) {
	return xproto.GetProperty(c.conn, false, w, prop, typ, 0, propertyLength).Reply()
}

func isBadWindow(err error) bool {
	_, ok := errors.Cause(err).(xproto.WindowError)
	return ok
}

// decodeWindow reads a WINDOW property value. Zero means "no window".
func decodeWindow(data []byte) (domain.WindowID, bool) {
	if len(data) < 4 {
		return 0, false
	}
	id := binary.LittleEndian.Uint32(data)
	return domain.WindowID(id), id != 0
}

// decodeCardinal reads a CARDINAL property value.
func decodeCardinal(data []byte) (int, bool) {
	if len(data) < 4 {
		return 0, false
	}
	return int(binary.LittleEndian.Uint32(data)), true
}

// decodeStrings splits a NUL separated list such as WM_CLASS.
func decodeStrings(data []byte) []string {
	trimmed := strings.TrimRight(string(data), "\x00")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "\x00")
}

func decodeText(data []byte) string {
	return strings.TrimRight(string(data), "\x00")
}

// Ensure X11Source implements domain.WindowSource.
var _ domain.WindowSource = (*X11Source)(nil)
