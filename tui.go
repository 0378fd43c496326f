package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"

	"plenctl/internal/devicemap"
	"plenctl/internal/driver"
	"plenctl/internal/motion"
)

// ---------------------------------- TUI ----------------------------------------

type appModel struct {
	drv     *driver.Driver
	devices *devicemap.Map
	names   []string

	table     table.Model
	rows      []table.Row
	last      map[string]string // device -> last command sent to it
	connected bool
	state     [devicemap.Channels]uint16

	status string
	err    error

	entering bool
	prompt   string
	input    textinput.Model
	action   string // "apply", "applyDiff", "setMin", "setMax", "setHome", "play", "install"
}

// opDoneMsg carries an operation's result and the link and channel state
// read after it, so rendering never waits on the driver.
type opDoneMsg struct {
	label     string
	device    string
	ok        bool
	err       error
	connected bool
	state     [devicemap.Channels]uint16
}

func newApp(drv *driver.Driver, devices *devicemap.Map) appModel {
	ti := textinput.New()
	ti.CharLimit = 256
	ti.Prompt = "> "

	columns := []table.Column{
		{Title: "Device", Width: 20},
		{Title: "Ch", Width: 4},
		{Title: "Last", Width: 18},
		{Title: "Frame", Width: 6},
	}
	t := table.New(table.WithColumns(columns), table.WithHeight(12), table.WithFocused(true))
	t.SetStyles(defaultTableStyles())

	m := appModel{
		drv:     drv,
		devices: devices,
		names:   devices.Names(),
		table:   t,
		last:    map[string]string{},
		input:   ti,
		status:  "c:connect to the board",

		connected: drv.IsConnected(),
		state:     drv.State(),
	}
	m.refreshRows()
	return m
}

func (m appModel) Init() tea.Cmd {
	return nil
}

// run wraps a driver operation in a command reporting its result.
func (m appModel) run(label, device string, op func() (bool, error)) tea.Cmd {
	drv := m.drv
	return func() tea.Msg {
		ok, err := op()
		return opDoneMsg{
			label:     label,
			device:    device,
			ok:        ok,
			err:       err,
			connected: drv.IsConnected(),
			state:     drv.State(),
		}
	}
}

func (m appModel) setter(action string) func(string, int) (bool, error) {
	switch action {
	case "apply":
		return m.drv.Apply
	case "applyDiff":
		return m.drv.ApplyDiff
	case "setMin":
		return m.drv.SetMin
	case "setMax":
		return m.drv.SetMax
	case "setHome":
		return m.drv.SetHome
	}
	return nil
}

func (m *appModel) ask(action, prompt string) {
	m.entering = true
	m.action = action
	m.prompt = prompt
	m.input.SetValue("")
	m.input.Focus()
}

func (m appModel) submit(val string) (appModel, tea.Cmd) {
	switch m.action {
	case "play":
		slot, err := strconv.Atoi(val)
		if err != nil {
			m.err = errors.Wrap(err, "slot")
			return m, nil
		}
		return m, m.run(fmt.Sprintf("play %d", slot), "", func() (bool, error) { return m.drv.Play(slot) })
	case "install":
		doc, err := motion.Load(val)
		if err != nil {
			m.err = err
			return m, nil
		}
		return m, m.run(fmt.Sprintf("install slot %d", doc.Slot), "", func() (bool, error) { return m.drv.InstallDocument(doc) })
	}

	set := m.setter(m.action)
	device := m.selectedDevice()
	if set == nil || device == "" {
		return m, nil
	}
	v, err := strconv.Atoi(val)
	if err != nil {
		m.err = errors.Wrap(err, "value")
		return m, nil
	}
	action := m.action
	return m, m.run(fmt.Sprintf("%s %d", action, v), device, func() (bool, error) { return set(device, v) })
}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.entering {
			switch msg.Type {
			case tea.KeyEnter:
				val := strings.TrimSpace(m.input.Value())
				m.entering = false
				m.input.Blur()
				m.err = nil
				return m.submit(val)
			case tea.KeyEsc:
				m.entering = false
				m.input.Blur()
				return m, nil
			}
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}

		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "c":
			return m, m.run("connect", "", m.drv.Connect)
		case "x":
			return m, m.run("disconnect", "", m.drv.Disconnect)
		case "a":
			m.ask("apply", "position: ")
			return m, textinput.Blink
		case "d":
			m.ask("applyDiff", "offset from home: ")
			return m, textinput.Blink
		case "n":
			m.ask("setMin", "min: ")
			return m, textinput.Blink
		case "m":
			m.ask("setMax", "max: ")
			return m, textinput.Blink
		case "h":
			m.ask("setHome", "home: ")
			return m, textinput.Blink
		case "p":
			m.ask("play", "slot: ")
			return m, textinput.Blink
		case "s":
			return m, m.run("stop", "", m.drv.Stop)
		case "i":
			m.ask("install", "motion file: ")
			return m, textinput.Blink
		}

	case opDoneMsg:
		m.connected = msg.connected
		m.state = msg.state
		if msg.err != nil {
			m.err = msg.err
			m.status = msg.label + " failed"
			m.refreshRows()
			return m, nil
		}
		m.err = nil
		m.status = fmt.Sprintf("%s: %t", msg.label, msg.ok)
		if msg.ok && msg.device != "" {
			m.last[msg.device] = msg.label
		}
		m.refreshRows()
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *appModel) refreshRows() {
	m.rows = make([]table.Row, 0, len(m.names))
	for _, name := range m.names {
		ch, err := m.devices.Channel(name)
		if err != nil {
			continue
		}
		m.rows = append(m.rows, table.Row{
			name, strconv.Itoa(ch), m.last[name], fmt.Sprintf("%04x", m.state[ch]),
		})
	}
	m.table.SetRows(m.rows)
}

func (m appModel) View() string {
	link := lipgloss.NewStyle().Faint(true).Render("○ offline")
	if m.connected {
		link = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render("● connected")
	}
	title := lipgloss.NewStyle().Bold(true).Render("plenctl  PLEN servo board") + "  " + link
	help := "c:connect  x:disconnect  a:apply  d:diff  n:min  m:max  h:home  p:play  s:stop  i:install  q:quit"
	var b strings.Builder
	b.WriteString(title + "\n")
	b.WriteString(m.table.View() + "\n")
	if m.entering {
		b.WriteString("\n" + m.prompt + m.input.View() + "\n")
	}
	if m.err != nil {
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Render("error: "+m.err.Error()) + "\n")
	}
	b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status) + "\n")
	b.WriteString(help)
	return b.String()
}

func (m appModel) selectedDevice() string {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.rows) {
		return ""
	}
	return m.rows[i][0]
}

func defaultTableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).Bold(true)
	s.Selected = lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Bold(true)
	return s
}
