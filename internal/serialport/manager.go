package serialport

import (
	"io"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrNotConnected is returned by Write when no port is open.
var ErrNotConnected = errors.New("serial: not connected")

// Manager owns at most one open port to the board. It is not safe for
// concurrent use; the driver serializes access.
type Manager struct {
	cfg    Config
	lister Lister
	opener Opener
	logger *zap.SugaredLogger

	port Port
	path string
}

// Option configures a Manager.
type Option func(*Manager)

// WithLister replaces the system port enumerator.
func WithLister(l Lister) Option {
	return func(m *Manager) { m.lister = l }
}

// WithOpener replaces the system port opener.
func WithOpener(o Opener) Option {
	return func(m *Manager) { m.opener = o }
}

// NewManager returns a disconnected Manager.
func NewManager(cfg Config, logger *zap.SugaredLogger, opts ...Option) *Manager {
	def := DefaultConfig()
	if cfg.Baud == 0 {
		cfg.Baud = def.Baud
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.Match == "" {
		cfg.Match = def.Match
	}
	if cfg.ProbePrefixes == nil {
		cfg.ProbePrefixes = def.ProbePrefixes
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	m := &Manager{
		cfg:    cfg,
		lister: SystemLister{},
		opener: systemOpener(),
		logger: logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Ports lists the serial ports currently present.
func (m *Manager) Ports() ([]PortInfo, error) {
	return m.lister.List()
}

// Discover returns the path of the board's port, or "" if none is found.
func (m *Manager) Discover() (string, error) {
	ports, err := m.lister.List()
	if err != nil {
		return "", err
	}

	for _, p := range ports {
		if strings.Contains(p.Description, m.cfg.Match) {
			m.logger.Debugw("matched port by description", "path", p.Path, "description", p.Description)
			return p.Path, nil
		}
	}

	if !m.cfg.Probe {
		return "", nil
	}
	for _, p := range ports {
		if !m.hasProbePrefix(p.Path) {
			continue
		}
		if err := m.probe(p.Path); err != nil {
			m.logger.Debugw("probe failed", "path", p.Path, "error", err)
			continue
		}
		m.logger.Debugw("matched port by probe", "path", p.Path)
		return p.Path, nil
	}
	return "", nil
}

func (m *Manager) hasProbePrefix(path string) bool {
	for _, prefix := range m.cfg.ProbePrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// probe opens and closes path. Only the open result decides liveness.
func (m *Manager) probe(path string) error {
	p, err := m.opener.Open(OpenConfig{Path: path, Baud: probeBaud})
	if err != nil {
		return err
	}
	if err := p.Close(); err != nil {
		m.logger.Debugw("closing probed port", "path", path, "error", err)
	}
	return nil
}

// Connect discovers the board and opens its port, replacing any port that
// is already open. It reports false without side effects when no board is
// found.
func (m *Manager) Connect() (bool, error) {
	path, err := m.Discover()
	if err != nil {
		return false, err
	}
	if path == "" {
		m.logger.Infow("no board found", "match", m.cfg.Match)
		return false, nil
	}

	if _, err := m.Disconnect(); err != nil {
		m.logger.Warnw("closing previous port", "error", err)
	}

	p, err := m.opener.Open(OpenConfig{
		Path:        path,
		Baud:        m.cfg.Baud,
		ReadTimeout: m.cfg.ReadTimeout,
	})
	if err != nil {
		return false, errors.Wrapf(err, "failed to open %s", path)
	}
	if err := p.Flush(); err != nil {
		_ = p.Close()
		return false, errors.Wrapf(err, "failed to flush %s", path)
	}

	m.port = p
	m.path = path
	m.logger.Infow("connected", "path", path, "baud", m.cfg.Baud)
	return true, nil
}

// Disconnect closes the open port. It reports false when nothing was open.
// The port is released even if closing it fails.
func (m *Manager) Disconnect() (bool, error) {
	if m.port == nil {
		return false, nil
	}
	p, path := m.port, m.path
	m.port = nil
	m.path = ""

	if err := p.Close(); err != nil {
		return true, errors.Wrapf(err, "failed to close %s", path)
	}
	m.logger.Infow("disconnected", "path", path)
	return true, nil
}

// Write sends b in one write. A failed write closes the port so later calls
// fail fast until the caller reconnects.
func (m *Manager) Write(b []byte) error {
	if m.port == nil {
		return ErrNotConnected
	}
	n, err := m.port.Write(b)
	if err == nil && n < len(b) {
		err = io.ErrShortWrite
	}
	if err != nil {
		path := m.path
		m.logger.Errorw("write failed, dropping port", "path", path, "error", err)
		if _, cerr := m.Disconnect(); cerr != nil {
			m.logger.Debugw("closing failed port", "error", cerr)
		}
		return errors.Wrapf(err, "failed to write to %s", path)
	}
	return nil
}

// IsConnected reports whether a port is open.
func (m *Manager) IsConnected() bool {
	return m.port != nil
}
