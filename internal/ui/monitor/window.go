// Package monitor is the main window: the camera view, the status line, the
// stopwatch and the session buttons.
package monitor

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"sessionwatch/internal/core/model"
)

const (
	statusTextSize    = 36
	stopwatchTextSize = 72
)

var (
	defaultSize = fyne.NewSize(1280, 720)
	minimumSize = fyne.NewSize(800, 600)
)

// Actions are invoked on the UI goroutine when buttons are tapped.
type Actions struct {
	ToggleMonitoring func()
	Reset            func()
	SwitchCamera     func()
	ThemeChanged     func(dark bool)
	Close            func()
}

// Window manages the main window.
type Window struct {
	app       fyne.App
	window    fyne.Window
	display   *Display
	status    *canvas.Text
	stopwatch *canvas.Text
	toggle    *widget.Button
	actions   Actions
	dark      bool
}

// New creates the main window. It is not shown until Show is called.
func New(app fyne.App, title string, dark bool, actions Actions) *Window {
	window := app.NewWindow(title)
	if app.Icon() != nil {
		window.SetIcon(app.Icon())
	}

	monitor := &Window{
		app:     app,
		window:  window,
		actions: actions,
		dark:    dark,
	}
	monitor.display = NewDisplay(func() float32 { return window.Canvas().Scale() })

	monitor.status = canvas.NewText(model.StatusDefault, theme.Color(theme.ColorNameForeground))
	monitor.status.Alignment = fyne.TextAlignCenter
	monitor.status.TextSize = statusTextSize

	monitor.stopwatch = canvas.NewText("00:00:00", theme.Color(theme.ColorNameForeground))
	monitor.stopwatch.Alignment = fyne.TextAlignCenter
	monitor.stopwatch.TextSize = stopwatchTextSize

	monitor.toggle = widget.NewButton("Start", func() { call(monitor.actions.ToggleMonitoring) })
	reset := widget.NewButton("Reset Timer", func() { call(monitor.actions.Reset) })
	themeButton := widget.NewButton("Toggle Light/Dark Mode", monitor.ToggleTheme)
	source := widget.NewButton("Switch Video Source", func() { call(monitor.actions.SwitchCamera) })

	buttons := container.NewGridWithColumns(4, monitor.toggle, reset, themeButton, source)
	bottom := container.NewVBox(layout.NewSpacer(), monitor.stopwatch, buttons, layout.NewSpacer())
	rows := container.NewGridWithRows(3,
		monitor.display.Object(),
		container.NewCenter(monitor.status),
		bottom,
	)

	window.SetContent(container.New(&minSizeLayout{min: minimumSize}, rows))
	window.Resize(defaultSize)
	window.SetCloseIntercept(func() {
		call(monitor.actions.Close)
	})
	monitor.applyTheme()

	return monitor
}

func call(fn func()) {
	if fn != nil {
		fn()
	}
}

// Display returns the frame sink.
func (monitor *Window) Display() *Display {
	return monitor.display
}

// Show displays the window.
func (monitor *Window) Show() {
	monitor.window.Show()
	monitor.window.RequestFocus()
}

// SetStatus replaces the status line.
func (monitor *Window) SetStatus(text string) {
	fyne.Do(func() {
		monitor.status.Text = text
		monitor.status.Refresh()
	})
}

// SetStopwatch replaces the stopwatch text.
func (monitor *Window) SetStopwatch(text string) {
	fyne.Do(func() {
		monitor.stopwatch.Text = text
		monitor.stopwatch.Refresh()
	})
}

// SetMonitoring relabels the Start/Stop button.
func (monitor *Window) SetMonitoring(active bool) {
	fyne.Do(func() {
		if active {
			monitor.toggle.SetText("Stop")
			return
		}
		monitor.toggle.SetText("Start")
	})
}

// Dark reports whether the dark theme is active.
func (monitor *Window) Dark() bool {
	return monitor.dark
}

// ToggleTheme flips between the light and dark theme.
func (monitor *Window) ToggleTheme() {
	monitor.dark = !monitor.dark
	monitor.applyTheme()
	if monitor.actions.ThemeChanged != nil {
		monitor.actions.ThemeChanged(monitor.dark)
	}
}

func (monitor *Window) applyTheme() {
	current := newVariantTheme(monitor.dark)
	monitor.app.Settings().SetTheme(current)
	foreground := current.Color(theme.ColorNameForeground, current.variant)
	monitor.status.Color = foreground
	monitor.stopwatch.Color = foreground
	monitor.status.Refresh()
	monitor.stopwatch.Refresh()
}

// minSizeLayout stacks its objects and never reports less than min.
type minSizeLayout struct {
	min fyne.Size
}

func (sizer *minSizeLayout) Layout(objects []fyne.CanvasObject, size fyne.Size) {
	for _, object := range objects {
		object.Move(fyne.NewPos(0, 0))
		object.Resize(size)
	}
}

func (sizer *minSizeLayout) MinSize(objects []fyne.CanvasObject) fyne.Size {
	size := sizer.min
	for _, object := range objects {
		size = size.Max(object.MinSize())
	}
	return size
}
