// plenctl: bench tool for the PLEN servo board over USB serial
//
// Build:
//
//	go build -o plenctl
//
// Run:
//
//	./plenctl -c plenctl.yaml              # interactive TUI
//	./plenctl ports                        # list serial ports, mark the board
//	./plenctl play 3 | stop                # one-shot motion control
//	./plenctl install motions/wave.json    # install a motion document
//	./plenctl stream < commands.txt        # apply/head/300 lines, replies True/False
//
// Notes:
//   - The board is found by its USB product string ("Arduino Micro"). On macOS
//     ports named /dev/{tty,cu}.usb{modem,serial}* are probed when that fails.
//   - --transport dryrun prints every payload instead of writing to a port;
//     handy for checking a motion document before it reaches the board. The
//     TUI keeps payloads off the screen and logs them with --log-file --debug.
//   - device_map.json binds device names to channels 0..23, e.g. {"head": 0}.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"plenctl/internal/cmdstream"
	"plenctl/internal/config"
	"plenctl/internal/devicemap"
	"plenctl/internal/driver"
	"plenctl/internal/logging"
	"plenctl/internal/motion"
	"plenctl/internal/serialport"
)

const (
	flagConfig    = "config"
	flagDeviceMap = "device-map"
	flagTransport = "transport"
	flagDebug     = "debug"
	flagLogFile   = "log-file"
)

// env is everything a command needs, built from flags and the config file.
type env struct {
	cfg     *config.Config
	logger  *zap.SugaredLogger
	devices *devicemap.Map
	ports   *serialport.Manager
	drv     *driver.Driver
}

// newEnv builds the env. A quiet env logs nothing unless --log-file is set
// and keeps dry-run payloads off stdout.
func newEnv(c *cli.Context, quiet bool) (*env, error) {
	cfg, err := config.Load(c.String(flagConfig))
	if err != nil {
		return nil, err
	}
	if c.IsSet(flagDeviceMap) {
		cfg.DeviceMap = c.String(flagDeviceMap)
	}
	if c.IsSet(flagTransport) {
		cfg.Transport = c.String(flagTransport)
	}
	if c.Bool(flagDebug) {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var logger *zap.SugaredLogger
	switch {
	case c.IsSet(flagLogFile):
		logger, err = logging.NewFile("plenctl", cfg.LogLevel, c.String(flagLogFile))
	case quiet:
		logger = zap.NewNop().Sugar()
	default:
		logger, err = logging.New("plenctl", cfg.LogLevel)
	}
	if err != nil {
		return nil, err
	}

	devices, err := devicemap.Load(cfg.DeviceMap)
	if err != nil {
		return nil, err
	}
	logger.Debugw("loaded device map", "path", cfg.DeviceMap, "devices", devices.Len())

	e := &env{
		cfg:     cfg,
		logger:  logger,
		devices: devices,
		ports:   serialport.NewManager(cfg.SerialPort(), logger.Named("serial")),
	}

	var transport driver.Transport = e.ports
	if cfg.Transport == config.TransportDryRun {
		var out io.Writer = c.App.Writer
		if quiet {
			out = nil
		}
		transport = driver.NewDryRun(logger.Named("dryrun"), out)
	}
	e.drv = driver.New(devices, transport,
		driver.WithLogger(logger.Named("driver")),
		driver.WithPacing(cfg.Pacing),
		driver.WithLegacyNameField(cfg.Compat.LegacyNameField),
		driver.WithLegacyTailResend(cfg.Compat.LegacyTailResend),
	)
	return e, nil
}

// oneShot connects, runs op and disconnects again.
func (e *env) oneShot(op func() (bool, error)) (ok bool, err error) {
	connected, err := e.drv.Connect()
	if err != nil {
		return false, err
	}
	if !connected {
		return false, errors.New("no board found")
	}
	defer func() {
		_, derr := e.drv.Disconnect()
		err = multierr.Combine(err, derr)
	}()
	return op()
}

// printResult writes a result document shaped like the control server's
// JSON replies.
func printResult(w io.Writer, result map[string]interface{}) error {
	out, err := json.MarshalIndent(result, "", "    ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", out)
	return err
}

func slotArg(c *cli.Context) (int, error) {
	if c.NArg() != 1 {
		return 0, errors.New("usage: play SLOT")
	}
	slot, err := strconv.Atoi(c.Args().First())
	if err != nil {
		return 0, errors.Wrap(err, "slot")
	}
	return slot, nil
}

func runTUI(c *cli.Context) error {
	e, err := newEnv(c, true)
	if err != nil {
		return err
	}
	p := tea.NewProgram(newApp(e.drv, e.devices))
	_, err = p.Run()
	if _, derr := e.drv.Disconnect(); derr != nil {
		err = multierr.Combine(err, derr)
	}
	return err
}

func runPorts(c *cli.Context) error {
	e, err := newEnv(c, false)
	if err != nil {
		return err
	}
	ports, err := e.ports.Ports()
	if err != nil {
		return err
	}
	match := e.cfg.SerialPort().Match
	board := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	faint := lipgloss.NewStyle().Faint(true)
	for _, p := range ports {
		line := fmt.Sprintf("%-28s %-24s", p.Path, p.Description)
		if p.IsUSB {
			line += faint.Render(fmt.Sprintf(" %s:%s", p.VID, p.PID))
		}
		if p.Description != "" && strings.Contains(p.Description, match) {
			line = board.Render(line)
		}
		fmt.Fprintln(c.App.Writer, line)
	}
	if len(ports) == 0 {
		fmt.Fprintln(c.App.Writer, faint.Render("no serial ports"))
	}
	return nil
}

func runPlay(c *cli.Context) error {
	slot, err := slotArg(c)
	if err != nil {
		return err
	}
	e, err := newEnv(c, false)
	if err != nil {
		return err
	}
	ok, err := e.oneShot(func() (bool, error) { return e.drv.Play(slot) })
	if err != nil {
		return err
	}
	return printResult(c.App.Writer, map[string]interface{}{"command": "Play", "slot": slot, "result": ok})
}

func runStop(c *cli.Context) error {
	e, err := newEnv(c, false)
	if err != nil {
		return err
	}
	ok, err := e.oneShot(e.drv.Stop)
	if err != nil {
		return err
	}
	return printResult(c.App.Writer, map[string]interface{}{"command": "Stop", "result": ok})
}

func runInstall(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("usage: install FILE")
	}
	doc, err := motion.Load(c.Args().First())
	if err != nil {
		return err
	}
	e, err := newEnv(c, false)
	if err != nil {
		return err
	}
	ok, err := e.oneShot(func() (bool, error) { return e.drv.InstallDocument(doc) })
	if err != nil {
		return err
	}
	return printResult(c.App.Writer, map[string]interface{}{"command": "Install", "slot": doc.Slot, "result": ok})
}

func runStream(c *cli.Context) error {
	e, err := newEnv(c, false)
	if err != nil {
		return err
	}
	return cmdstream.Run(e.drv, os.Stdin, c.App.Writer, e.logger.Named("stream"))
}

func newCLI() *cli.App {
	return &cli.App{
		Name:  "plenctl",
		Usage: "drive a PLEN servo board over USB serial",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
				EnvVars: []string{"PLENCTL_CONFIG"},
			},
			&cli.StringFlag{
				Name:  flagDeviceMap,
				Usage: "device map `FILE` (JSON or YAML)",
			},
			&cli.StringFlag{
				Name:  flagTransport,
				Usage: "transport: usb or dryrun",
			},
			&cli.StringFlag{
				Name:  flagLogFile,
				Usage: "write logs to `FILE`",
			},
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
		},
		Action: runTUI,
		Commands: []*cli.Command{
			{Name: "tui", Usage: "interactive control", Action: runTUI},
			{Name: "ports", Usage: "list serial ports", Action: runPorts},
			{Name: "play", Usage: "play the motion in a slot", ArgsUsage: "SLOT", Action: runPlay},
			{Name: "stop", Usage: "stop the running motion", Action: runStop},
			{Name: "install", Usage: "install a motion document", ArgsUsage: "FILE", Action: runInstall},
			{Name: "stream", Usage: "serve method/device/value lines from stdin", Action: runStream},
		},
	}
}

// ---------------------------------- main ---------------------------------------

func main() {
	if err := newCLI().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
