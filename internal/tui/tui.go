package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mwhesse/OpenPorts/internal/docker"
	"github.com/mwhesse/OpenPorts/internal/launchd"
	"github.com/mwhesse/OpenPorts/internal/output"
	"github.com/mwhesse/OpenPorts/internal/process"
	"github.com/mwhesse/OpenPorts/internal/reconcile"
	"github.com/mwhesse/OpenPorts/internal/runner"
	"github.com/mwhesse/OpenPorts/internal/scan"
	"github.com/mwhesse/OpenPorts/internal/settings"
	"github.com/mwhesse/OpenPorts/internal/source"
	"github.com/mwhesse/OpenPorts/pkg/model"
)

var baseStyle = lipgloss.NewStyle().
	BorderStyle(lipgloss.NormalBorder()).
	BorderForeground(lipgloss.Color("240"))

type tickMsg time.Time

type modelState int

const (
	statePorts modelState = iota
	stateHidden
	stateDocker
)

type scanUpdatedMsg struct{}
type dockerUpdatedMsg struct{}

type actionMsg struct {
	text  string
	isErr bool
}

type detailsMsg struct {
	rec       model.PortRecord
	cmdline   string
	ancestry  []process.AncestryEntry
	origin    source.Origin
	hasOrigin bool
	service   launchd.Service
	managed   bool
}

// pendingAction is a confirmable destructive step: the prompt shown and the
// command to run on "y".
type pendingAction struct {
	prompt string
	run    tea.Cmd
}

type tuiModel struct {
	state       modelState
	table       table.Model
	filterInput textinput.Model
	filtering   bool

	store   *settings.Store
	scanner *scan.Scanner
	engine  *docker.Engine
	control *process.Control
	run     runner.Runner

	portsSnap  scan.Snapshot
	dockerSnap docker.Snapshot

	visible    []model.PortRecord
	hidden     []model.PortRecord
	containers []model.ContainerRecord

	// cmdlines caches full command lines fetched for the details view;
	// the free-text filter also matches against it.
	cmdlines map[int32]string

	pending     *pendingAction
	details     *detailsMsg
	message     string
	messageTime time.Time
	messageErr  bool

	width  int
	height int
}

func initialModel(st *settings.Store, sc *scan.Scanner, eng *docker.Engine, ctl *process.Control, r runner.Runner) tuiModel {
	ti := textinput.New()
	ti.Placeholder = "Filter..."
	ti.CharLimit = 50
	ti.Width = 30

	m := tuiModel{
		state:       statePorts,
		filterInput: ti,
		store:       st,
		scanner:     sc,
		engine:      eng,
		control:     ctl,
		run:         r,
		cmdlines:    make(map[int32]string),
	}
	m.initTable()
	return m
}

func (m *tuiModel) initTable() {
	var columns []table.Column
	switch m.state {
	case statePorts, stateHidden:
		columns = []table.Column{
			{Title: "Port", Width: 7},
			{Title: "Process", Width: 24},
			{Title: "PID", Width: 8},
			{Title: "User", Width: 12},
			{Title: "Address", Width: 20},
			{Title: "Family", Width: 6},
		}
	case stateDocker:
		columns = []table.Column{
			{Title: "Name", Width: 20},
			{Title: "Image", Width: 24},
			{Title: "Ports", Width: 30},
			{Title: "Status", Width: 22},
		}
	}

	height := m.height - 15
	if height < 3 {
		height = 3
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(height),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(true)
	t.SetStyles(s)

	m.table = t
}

func (m tuiModel) Init() tea.Cmd {
	return tea.Batch(
		m.triggerScan(),
		m.triggerDockerRefresh(),
		m.waitScan(),
		m.waitDocker(),
		tick(),
	)
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// waitScan parks on the scanner's notify channel; re-issued after every
// receipt so the pump never stops.
func (m tuiModel) waitScan() tea.Cmd {
	return func() tea.Msg {
		<-m.scanner.Updates()
		return scanUpdatedMsg{}
	}
}

func (m tuiModel) waitDocker() tea.Cmd {
	return func() tea.Msg {
		<-m.engine.Updates()
		return dockerUpdatedMsg{}
	}
}

func (m tuiModel) triggerScan() tea.Cmd {
	return func() tea.Msg {
		m.scanner.Scan()
		return nil
	}
}

func (m tuiModel) triggerDockerRefresh() tea.Cmd {
	return func() tea.Msg {
		if m.store.Get().ShowDockerContainers {
			m.engine.Refresh()
		}
		return nil
	}
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	// Guards intercept keys only; ticks and coordinator notifications must
	// keep flowing below so their pumps stay armed.
	if m.pending != nil {
		if key, ok := msg.(tea.KeyMsg); ok {
			switch key.String() {
			case "y", "Y":
				run := m.pending.run
				m.pending = nil
				return m, run
			case "n", "N", "esc":
				m.pending = nil
			}
			return m, nil
		}
	} else if m.filtering {
		if key, ok := msg.(tea.KeyMsg); ok {
			switch key.String() {
			case "enter", "esc":
				m.filtering = false
				m.filterInput.Blur()
				m.updateRows()
				return m, nil
			}
			m.filterInput, cmd = m.filterInput.Update(key)
			m.updateRows()
			return m, cmd
		}
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "1":
			m.switchTab(statePorts)
			return m, nil
		case "2":
			m.switchTab(stateHidden)
			return m, nil
		case "3":
			m.switchTab(stateDocker)
			return m, nil
		case "up", "down", "j", "k", "pgup", "pgdown", "home", "end":
			m.details = nil
		case "esc":
			if m.details != nil {
				m.details = nil
			} else if m.filterInput.Value() != "" {
				m.filterInput.SetValue("")
				m.updateRows()
			}
			return m, nil
		case "/":
			m.filtering = true
			m.filterInput.Focus()
			return m, nil
		case "R":
			return m, tea.Batch(m.triggerScan(), m.triggerDockerRefresh())
		case "a":
			return m, m.toggleSystemProcesses()
		case "d":
			return m, m.toggleDockerDisplay()
		case "+", "=":
			m.adjustInterval(1)
			return m, nil
		case "-":
			m.adjustInterval(-1)
			return m, nil
		case "h":
			if m.state == statePorts {
				m.hideSelected()
			}
			return m, nil
		case "u":
			if m.state == stateHidden {
				m.unhideSelected()
			}
			return m, nil
		case "x":
			if m.state == stateDocker {
				return m, nil
			}
			return m, m.requestSignal(false)
		case "X":
			if m.state == stateDocker {
				return m, nil
			}
			return m, m.requestSignal(true)
		case "s":
			if m.state == stateDocker {
				return m, m.requestContainerOp("stop")
			}
			return m, nil
		case "K":
			if m.state == stateDocker {
				return m, m.requestContainerOp("kill")
			}
			return m, nil
		case "r":
			if m.state == stateDocker {
				return m, m.requestContainerOp("restart")
			}
			return m, nil
		case "enter":
			return m, m.openDetails()
		}

	case tickMsg:
		return m, tick()

	case scanUpdatedMsg:
		m.portsSnap = m.scanner.Snapshot()
		m.updateRows()
		return m, m.waitScan()

	case dockerUpdatedMsg:
		m.dockerSnap = m.engine.Snapshot()
		m.updateRows()
		return m, m.waitDocker()

	case actionMsg:
		m.message = msg.text
		m.messageErr = msg.isErr
		m.messageTime = time.Now()
		return m, nil

	case detailsMsg:
		d := msg
		m.details = &d
		if d.cmdline != "" {
			m.cmdlines[d.rec.PID] = d.cmdline
			m.updateRows()
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		height := m.height - 15
		if height < 3 {
			height = 3
		}
		m.table.SetHeight(height)
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *tuiModel) switchTab(s modelState) {
	m.state = s
	m.details = nil
	m.initTable()
	m.updateRows()
}

func (m *tuiModel) updateRows() {
	cfg := m.store.Get()
	filter := m.filterInput.Value()

	res := reconcile.Build(m.portsSnap.Ports, m.dockerSnap.Containers, cfg,
		m.dockerSnap.Available, filter, m.cmdlines)
	m.visible = res.Visible
	m.hidden = res.Hidden
	m.containers = reconcile.FilterContainers(m.dockerSnap.Containers, filter)

	var rows []table.Row
	switch m.state {
	case statePorts:
		rows = portRows(m.visible)
	case stateHidden:
		rows = portRows(m.hidden)
	case stateDocker:
		for _, c := range m.containers {
			rows = append(rows, table.Row{
				output.Clean(c.Name),
				output.Clean(c.Image),
				output.FormatMappings(c.Ports),
				output.Clean(c.Status),
			})
		}
	}
	m.table.SetRows(rows)
}

func portRows(records []model.PortRecord) []table.Row {
	rows := make([]table.Row, 0, len(records))
	for _, p := range records {
		rows = append(rows, table.Row{
			strconv.Itoa(int(p.Port)),
			output.Clean(p.ProcessName),
			strconv.Itoa(int(p.PID)),
			output.Clean(p.User),
			output.Clean(p.Address),
			string(p.Family),
		})
	}
	return rows
}

// selectedPort returns the record behind the cursor on a port tab.
func (m *tuiModel) selectedPort() (model.PortRecord, bool) {
	records := m.visible
	if m.state == stateHidden {
		records = m.hidden
	}
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(records) {
		return model.PortRecord{}, false
	}
	return records[idx], true
}

func (m *tuiModel) selectedContainer() (model.ContainerRecord, bool) {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.containers) {
		return model.ContainerRecord{}, false
	}
	return m.containers[idx], true
}

func (m *tuiModel) hideSelected() {
	rec, ok := m.selectedPort()
	if !ok {
		return
	}
	if err := m.store.Update(func(s *settings.Settings) {
		s.HidePort(rec.HiddenKey())
	}); err != nil {
		m.flash("could not save settings: "+err.Error(), true)
	}
	m.updateRows()
}

func (m *tuiModel) unhideSelected() {
	rec, ok := m.selectedPort()
	if !ok {
		return
	}
	if err := m.store.Update(func(s *settings.Settings) {
		s.UnhidePort(rec.HiddenKey())
	}); err != nil {
		m.flash("could not save settings: "+err.Error(), true)
	}
	m.updateRows()
}

func (m *tuiModel) toggleSystemProcesses() tea.Cmd {
	if err := m.store.Update(func(s *settings.Settings) {
		s.ShowSystemProcesses = !s.ShowSystemProcesses
	}); err != nil {
		m.flash("could not save settings: "+err.Error(), true)
	}
	// The system-user filter runs at parse time, so a new scan is needed.
	return m.triggerScan()
}

func (m *tuiModel) toggleDockerDisplay() tea.Cmd {
	var enabled bool
	if err := m.store.Update(func(s *settings.Settings) {
		s.ShowDockerContainers = !s.ShowDockerContainers
		enabled = s.ShowDockerContainers
	}); err != nil {
		m.flash("could not save settings: "+err.Error(), true)
	}
	m.updateRows()
	if enabled {
		return m.triggerDockerRefresh()
	}
	return nil
}

func (m *tuiModel) adjustInterval(delta int) {
	var now int
	if err := m.store.Update(func(s *settings.Settings) {
		s.RefreshIntervalSeconds += delta
		if s.RefreshIntervalSeconds < 0 {
			s.RefreshIntervalSeconds = 0
		}
		now = s.RefreshIntervalSeconds
	}); err != nil {
		m.flash("could not save settings: "+err.Error(), true)
		return
	}
	if now == 0 {
		m.flash("auto-refresh off", false)
	} else {
		m.flash(fmt.Sprintf("refresh every %ds", now), false)
	}
}

func (m *tuiModel) flash(text string, isErr bool) {
	m.message = text
	m.messageErr = isErr
	m.messageTime = time.Now()
}

// requestSignal starts terminate/kill on the selected process, via a
// confirmation prompt when the settings ask for one.
func (m *tuiModel) requestSignal(force bool) tea.Cmd {
	rec, ok := m.selectedPort()
	if !ok {
		return nil
	}

	verb := "terminate"
	if force {
		verb = "kill"
	}
	run := m.signalCmd(rec, force)

	if m.store.Get().ConfirmBeforeKill {
		m.pending = &pendingAction{
			prompt: fmt.Sprintf(" %s %s (pid %d)? [y/n] ", verb, output.Clean(rec.ProcessName), rec.PID),
			run:    run,
		}
		return nil
	}
	return run
}

func (m tuiModel) signalCmd(rec model.PortRecord, force bool) tea.Cmd {
	return func() tea.Msg {
		var err error
		if force {
			err = m.control.Kill(rec.PID)
		} else {
			err = m.control.Terminate(rec.PID)
		}
		if err != nil {
			return actionMsg{text: err.Error(), isErr: true}
		}
		m.scanner.Scan()
		verb := "terminated"
		if force {
			verb = "killed"
		}
		return actionMsg{text: fmt.Sprintf("%s %s (pid %d)", verb, rec.ProcessName, rec.PID)}
	}
}

func (m *tuiModel) requestContainerOp(verb string) tea.Cmd {
	c, ok := m.selectedContainer()
	if !ok {
		return nil
	}

	run := m.containerCmd(verb, c)
	if m.store.Get().ConfirmBeforeDockerStop {
		m.pending = &pendingAction{
			prompt: fmt.Sprintf(" %s container %s? [y/n] ", verb, output.Clean(c.Name)),
			run:    run,
		}
		return nil
	}
	return run
}

func (m tuiModel) containerCmd(verb string, c model.ContainerRecord) tea.Cmd {
	return func() tea.Msg {
		var err error
		switch verb {
		case "stop":
			err = m.engine.Stop(c.ID)
		case "kill":
			err = m.engine.Kill(c.ID)
		case "restart":
			err = m.engine.Restart(c.ID)
		}
		if err != nil {
			return actionMsg{text: err.Error(), isErr: true}
		}
		// The engine re-reads containers itself; ports may have freed too.
		m.scanner.Scan()
		done := map[string]string{"stop": "stopped", "kill": "killed", "restart": "restarted"}[verb]
		return actionMsg{text: fmt.Sprintf("%s %s", done, c.Name)}
	}
}

func (m *tuiModel) openDetails() tea.Cmd {
	if m.state == stateDocker {
		return nil
	}
	rec, ok := m.selectedPort()
	if !ok {
		return nil
	}
	control := m.control
	run := m.run
	return func() tea.Msg {
		d := detailsMsg{rec: rec}
		d.cmdline = control.CommandLine(rec.PID)
		d.ancestry = control.Ancestry(rec.PID)
		d.origin, d.hasOrigin = source.Detect(d.ancestry)
		d.service, d.managed = launchd.ServiceFor(run, rec.PID)
		return d
	}
}

func (m tuiModel) View() string {
	var b strings.Builder

	title := "openports"
	b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("57")).Bold(true).Render(title))
	b.WriteString("  ")
	b.WriteString(m.statusLine())
	b.WriteString("\n\n")

	tabs := []string{
		fmt.Sprintf("[1] Ports (%d)", len(m.visible)),
		fmt.Sprintf("[2] Hidden (%d)", len(m.hidden)),
		m.dockerTabLabel(),
	}
	for i, t := range tabs {
		style := lipgloss.NewStyle().Padding(0, 1)
		if int(m.state) == i {
			style = style.Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57")).Bold(true)
		} else {
			style = style.Foreground(lipgloss.Color("240"))
		}
		b.WriteString(style.Render(t))
		b.WriteString(" ")
	}
	b.WriteString("\n\n")

	if m.filtering {
		b.WriteString(" " + m.filterInput.View() + "\n")
	} else if m.filterInput.Value() != "" {
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Render(" Filter: "+m.filterInput.Value()+"  (esc clears)") + "\n")
	} else {
		b.WriteString("\n")
	}

	b.WriteString(baseStyle.Render(m.table.View()) + "\n")

	if m.message != "" && time.Since(m.messageTime) < 3*time.Second {
		style := lipgloss.NewStyle().
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57")).
			Padding(0, 1)
		if m.messageErr {
			style = style.Background(lipgloss.Color("160")).Bold(true)
		}
		b.WriteString("\n" + style.Render(" "+output.Clean(m.message)+" ") + "\n")
	}

	if m.pending != nil {
		b.WriteString("\n" + lipgloss.NewStyle().
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("160")).
			Bold(true).
			Padding(0, 1).
			Render(m.pending.prompt) + "\n")
	}

	if m.details != nil && m.pending == nil {
		b.WriteString("\n" + m.renderDetails())
	}

	b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Render(m.helpLine()) + "\n")
	return b.String()
}

func (m tuiModel) statusLine() string {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	red := lipgloss.NewStyle().Foreground(lipgloss.Color("160"))

	var parts []string
	if m.portsSnap.Scanning || m.dockerSnap.Refreshing {
		parts = append(parts, "scanning...")
	}
	cfg := m.store.Get()
	if cfg.RefreshIntervalSeconds > 0 {
		parts = append(parts, fmt.Sprintf("every %ds", cfg.RefreshIntervalSeconds))
	} else {
		parts = append(parts, "manual refresh")
	}
	s := dim.Render(strings.Join(parts, " • "))

	if m.portsSnap.Err != "" {
		s += "  " + red.Render(output.Clean(m.portsSnap.Err))
	}
	if m.dockerSnap.Err != "" {
		s += "  " + red.Render("docker: "+output.Clean(m.dockerSnap.Err))
	}
	return s
}

func (m tuiModel) dockerTabLabel() string {
	cfg := m.store.Get()
	switch {
	case !cfg.ShowDockerContainers:
		return "[3] Docker (off)"
	case !m.dockerSnap.Available:
		return "[3] Docker (n/a)"
	default:
		return fmt.Sprintf("[3] Docker (%d)", len(m.containers))
	}
}

func (m tuiModel) renderDetails() string {
	d := m.details
	head := lipgloss.NewStyle().Foreground(lipgloss.Color("57")).Bold(true)

	var b strings.Builder
	b.WriteString(head.Render(fmt.Sprintf(" %s (pid %d) ", output.Clean(d.rec.ProcessName), d.rec.PID)) + "\n")
	b.WriteString(fmt.Sprintf("  port %d on %s (%s), user %s\n",
		d.rec.Port, output.Clean(d.rec.Address), d.rec.Family, output.Clean(d.rec.User)))
	if d.cmdline != "" {
		b.WriteString("  cmd: " + output.Clean(d.cmdline) + "\n")
	}
	if len(d.ancestry) > 0 {
		parts := make([]string, 0, len(d.ancestry))
		for _, a := range d.ancestry {
			parts = append(parts, fmt.Sprintf("%s (%d)", output.Clean(a.Name), a.PID))
		}
		b.WriteString("  launched by: " + strings.Join(parts, " <- ") + "\n")
	}
	if d.hasOrigin {
		b.WriteString(fmt.Sprintf("  origin: %s (%s)\n", output.Clean(d.origin.Name), d.origin.Kind))
	}
	if d.managed {
		b.WriteString(fmt.Sprintf("  service: %s (%s)\n", output.Clean(d.service.Label), d.service.Description()))
	}
	return b.String()
}

func (m tuiModel) helpLine() string {
	common := "\n  q: quit • 1-3: tabs • /: filter • R: refresh • a: system • d: docker • +/-: interval"
	switch m.state {
	case statePorts:
		help := common + " • enter: details • h: hide • x: terminate • X: kill"
		if m.details != nil {
			help += " • esc: close details"
		}
		return help
	case stateHidden:
		return common + " • enter: details • u: unhide • x: terminate • X: kill"
	default:
		return common + " • s: stop • K: kill • r: restart"
	}
}

// Run starts the interactive screen and blocks until quit.
func Run(st *settings.Store, sc *scan.Scanner, eng *docker.Engine, ctl *process.Control, r runner.Runner) error {
	p := tea.NewProgram(initialModel(st, sc, eng, ctl, r), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
