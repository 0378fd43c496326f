// Package cmdstream runs a line-oriented command session against a driver.
//
// Each request line is method/device/value, for example "apply/head/300",
// and each reply line is "True" or "False". Any malformed request, caller
// error or transport failure ends the session; the link is closed whenever
// a session ends.
package cmdstream

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Driver is the subset of driver operations a session uses.
type Driver interface {
	Connect() (bool, error)
	Disconnect() (bool, error)
	Apply(device string, value int) (bool, error)
	ApplyDiff(device string, value int) (bool, error)
	SetMin(device string, value int) (bool, error)
	SetMax(device string, value int) (bool, error)
	SetHome(device string, value int) (bool, error)
}

// ErrNoBoard is returned when the session cannot connect.
var ErrNoBoard = errors.New("no board connected")

type setFunc func(device string, value int) (bool, error)

func methods(d Driver) map[string]setFunc {
	return map[string]setFunc{
		"apply":     d.Apply,
		"applyDiff": d.ApplyDiff,
		"setMin":    d.SetMin,
		"setMax":    d.SetMax,
		"setHome":   d.SetHome,
	}
}

// Request is a parsed request line.
type Request struct {
	Method string
	Device string
	Value  int
}

// ParseRequest parses a method/device/value line.
func ParseRequest(line string) (Request, error) {
	parts := strings.Split(strings.TrimSpace(line), "/")
	if len(parts) < 3 {
		return Request{}, errors.Errorf("malformed request %q", line)
	}
	value, err := strconv.Atoi(parts[2])
	if err != nil {
		return Request{}, errors.Wrapf(err, "malformed value in %q", line)
	}
	return Request{Method: parts[0], Device: parts[1], Value: value}, nil
}

// Run connects d and serves requests from in until in is exhausted or a
// request fails. It returns nil when in ends cleanly.
func Run(d Driver, in io.Reader, out io.Writer, logger *zap.SugaredLogger) (err error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	ok, err := d.Connect()
	if err != nil {
		return errors.Wrap(err, "connect")
	}
	if !ok {
		return ErrNoBoard
	}
	defer func() {
		if _, derr := d.Disconnect(); derr != nil {
			err = multierr.Combine(err, derr)
		}
	}()

	table := methods(d)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		req, err := ParseRequest(line)
		if err != nil {
			return err
		}
		fn, found := table[req.Method]
		if !found {
			return errors.Errorf("unknown method %q", req.Method)
		}
		result, err := fn(req.Device, req.Value)
		if err != nil {
			logger.Warnw("ending command stream", "request", line, "error", err)
			return err
		}
		if _, err := fmt.Fprintln(out, reply(result)); err != nil {
			return errors.Wrap(err, "failed to write reply")
		}
	}
	return scanner.Err()
}

func reply(ok bool) string {
	if ok {
		return "True"
	}
	return "False"
}
