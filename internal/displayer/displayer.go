package displayer

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/amarton5/SwiftOBD2/internal/obd"
	"github.com/amarton5/SwiftOBD2/internal/obd/commands"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// Displayer renders the live session in a small TUI: a dashboard page with
// session info and measurements, and a trouble-code page grouped by ECU.
type Displayer struct {
	app    *tview.Application
	tabs   *tview.Pages
	engine *obd.Engine
	info   *obd.Info
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex

	// UI elements cached for updates
	sessionText *tview.TextView
	rpmText     *tview.TextView
	coolantText *tview.TextView
	speedText   *tview.TextView
	milText     *tview.TextView
	statusText  *tview.TextView
	helpText    *tview.TextView
	dtcTable    *tview.Table
}

func New(engine *obd.Engine, info *obd.Info) *Displayer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Displayer{
		app:    tview.NewApplication(),
		tabs:   tview.NewPages(),
		engine: engine,
		info:   info,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (d *Displayer) Run() error {
	dashboard := d.buildDashboard()
	dtc := d.buildDTC()

	title := tview.NewTextView().SetTextAlign(tview.AlignCenter).SetText("SwiftOBD2 - vehicle diagnostic session")
	d.statusText = tview.NewTextView().SetTextAlign(tview.AlignCenter).SetDynamicColors(true)
	d.helpText = tview.NewTextView().SetTextAlign(tview.AlignCenter).SetText("Keys: 1 Dashboard  2 DTC  q Quit")

	headerFlex := tview.NewFlex().SetDirection(tview.FlexRow)
	headerFlex.AddItem(title, 1, 0, false)
	headerFlex.AddItem(d.statusText, 1, 0, false)
	headerFlex.AddItem(d.helpText, 1, 0, false)

	mainFlex := tview.NewFlex().SetDirection(tview.FlexRow)
	mainFlex.AddItem(headerFlex, 3, 0, false)

	d.dtcTable = dtc
	d.tabs.AddPage("dashboard", dashboard, true, true)
	d.tabs.AddPage("dtc", dtc, true, false)
	mainFlex.AddItem(d.tabs, 0, 1, true)

	d.app.SetRoot(mainFlex, true)
	d.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Rune() {
		case 'q', 'Q':
			d.Shutdown()
			return nil
		case '1':
			d.tabs.SwitchToPage("dashboard")
			return nil
		case '2':
			d.tabs.SwitchToPage("dtc")
			return nil
		}
		return event
	})

	go d.refreshLoop()

	return d.app.Run()
}

func (d *Displayer) Shutdown() {
	d.cancel()
	d.app.Stop()
}

func (d *Displayer) buildDashboard() *tview.Flex {
	d.sessionText = tview.NewTextView().SetDynamicColors(true)
	d.rpmText = tview.NewTextView().SetDynamicColors(true)
	d.coolantText = tview.NewTextView().SetDynamicColors(true)
	d.speedText = tview.NewTextView().SetDynamicColors(true)
	d.milText = tview.NewTextView().SetDynamicColors(true)

	d.sessionText.SetText(fmt.Sprintf("VIN: %s  Protocol: %s  ECUs: %d  Supported PIDs: %d",
		orDash(d.info.VIN), d.info.Protocol, len(d.info.Roles), len(d.info.SupportedCommands)))

	infoFlex := tview.NewFlex().SetDirection(tview.FlexRow)
	infoFlex.AddItem(d.sessionText, 1, 0, false)
	infoFlex.AddItem(d.rpmText, 1, 0, false)
	infoFlex.AddItem(d.coolantText, 1, 0, false)
	infoFlex.AddItem(d.speedText, 1, 0, false)
	infoFlex.AddItem(d.milText, 1, 0, false)

	return infoFlex
}

func (d *Displayer) buildDTC() *tview.Table {
	tbl := tview.NewTable().SetBorders(true)
	tbl.SetCell(0, 0, tview.NewTableCell("ECU").SetSelectable(false).SetAlign(tview.AlignCenter))
	tbl.SetCell(0, 1, tview.NewTableCell("Code").SetSelectable(false).SetAlign(tview.AlignCenter))
	tbl.SetCell(0, 2, tview.NewTableCell("Description").SetSelectable(false).SetAlign(tview.AlignCenter))
	return tbl
}

func (d *Displayer) refreshLoop() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			d.poll()
		}
	}
}

// poll runs the diagnostic reads outside the UI goroutine and queues the
// redraw. The engine serializes commands itself.
func (d *Displayer) poll() {
	d.mu.Lock()
	defer d.mu.Unlock()

	rpm, errRPM := d.engine.Measure(d.ctx, commands.EngineRPM, commands.UnitMetric)
	coolant, errCoolant := d.engine.Measure(d.ctx, commands.CoolantTemp, commands.UnitMetric)
	speed, errSpeed := d.engine.Measure(d.ctx, commands.VehicleSpeed, commands.UnitMetric)
	status, errStatus := d.engine.Status(d.ctx)
	codes, errCodes := d.engine.ScanTroubleCodes(d.ctx)
	state := d.engine.State()

	d.app.QueueUpdateDraw(func() {
		d.rpmText.SetText(measurementLine("RPM", rpm, errRPM))
		d.coolantText.SetText(measurementLine("Coolant", coolant, errCoolant))
		d.speedText.SetText(measurementLine("Speed", speed, errSpeed))

		if errStatus != nil {
			d.milText.SetText("MIL: ?")
		} else if status.MILOn {
			d.milText.SetText(fmt.Sprintf("MIL: [red]ON[white]  Stored codes: %d", status.DTCCount))
		} else {
			d.milText.SetText("MIL: [green]off[white]")
		}

		color := "[red]"
		if state == obd.ConnectedToVehicle {
			color = "[green]"
		}
		d.statusText.SetText(fmt.Sprintf("Status: %s%s[white]", color, state))

		if errCodes == nil {
			d.updateDTCTable(codes)
		}
	})
}

func (d *Displayer) updateDTCTable(codes map[obd.ECURole][]obd.TroubleCode) {
	for r := d.dtcTable.GetRowCount() - 1; r >= 1; r-- {
		d.dtcTable.RemoveRow(r)
	}

	roles := make([]obd.ECURole, 0, len(codes))
	for role := range codes {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })

	row := 1
	for _, role := range roles {
		for _, tc := range codes[role] {
			d.dtcTable.SetCell(row, 0, tview.NewTableCell(role.String()))
			d.dtcTable.SetCell(row, 1, tview.NewTableCell(tc.Code))
			d.dtcTable.SetCell(row, 2, tview.NewTableCell(tc.Description))
			row++
		}
	}
}

func measurementLine(label string, m commands.Measurement, err error) string {
	if err != nil {
		return fmt.Sprintf("%s: ?", label)
	}
	return fmt.Sprintf("%s: %.1f %s", label, m.Value, m.Unit)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
