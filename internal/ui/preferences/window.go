package preferences

import (
	"strconv"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/widget"
)

var logLevels = []string{"debug", "info", "warn", "error"}

// Window handles the preferences UI.
type Window struct {
	window   fyne.Window
	settings Settings
	onSave   func(Settings)
	onCancel func()

	camera0  *widget.Entry
	camera1  *widget.Entry
	width    *widget.Entry
	height   *widget.Entry
	cascade  *widget.Entry
	python   *widget.Entry
	script   *widget.Entry
	soundDir *widget.Entry
	sink     *widget.Entry
	darkMode *widget.Check
	logLevel *widget.Select
}

// New creates a preferences window.
func New(app fyne.App, settings Settings, onSave func(Settings)) *Window {
	window := app.NewWindow("SessionWatch Settings")

	prefs := &Window{
		window:   window,
		onSave:   onSave,
		camera0:  widget.NewEntry(),
		camera1:  widget.NewEntry(),
		width:    widget.NewEntry(),
		height:   widget.NewEntry(),
		cascade:  widget.NewEntry(),
		python:   widget.NewEntry(),
		script:   widget.NewEntry(),
		soundDir: widget.NewEntry(),
		sink:     widget.NewEntry(),
		darkMode: widget.NewCheck("Dark theme", nil),
		logLevel: widget.NewSelect(logLevels, nil),
	}
	prefs.cascade.SetPlaceHolder("search OpenCV data dirs")
	prefs.script.SetPlaceHolder("bundled worker")
	prefs.soundDir.SetPlaceHolder("config dir/sounds")
	prefs.UpdateSettings(settings)

	form := widget.NewForm(
		widget.NewFormItem("Camera 1", prefs.camera0),
		widget.NewFormItem("Camera 2", prefs.camera1),
		widget.NewFormItem("Capture width", prefs.width),
		widget.NewFormItem("Capture height", prefs.height),
		widget.NewFormItem("Face cascade", prefs.cascade),
		widget.NewFormItem("Python", prefs.python),
		widget.NewFormItem("Emotion worker", prefs.script),
		widget.NewFormItem("Sound folder", prefs.soundDir),
		widget.NewFormItem("Audio sink", prefs.sink),
		widget.NewFormItem("Log level", prefs.logLevel),
	)

	content := container.NewVBox(
		widget.NewLabelWithStyle("General", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		form,
		prefs.darkMode,
		widget.NewLabel("Camera, worker and log changes apply after restart."),
	)

	saveButton := widget.NewButton("Save", prefs.handleSave)
	cancelButton := widget.NewButton("Cancel", func() {
		window.Hide()
		if prefs.onCancel != nil {
			prefs.onCancel()
		}
	})
	buttons := container.NewHBox(saveButton, layout.NewSpacer(), cancelButton)

	window.SetContent(container.NewBorder(nil, buttons, nil, nil, content))
	window.Resize(fyne.NewSize(480, 460))
	window.SetCloseIntercept(window.Hide)

	return prefs
}

// Show displays the preferences window.
func (prefs *Window) Show() {
	prefs.window.Show()
	prefs.window.RequestFocus()
}

// SetOnCancel registers a callback for the Cancel button.
func (prefs *Window) SetOnCancel(fn func()) {
	prefs.onCancel = fn
}

// UpdateSettings replaces window values.
func (prefs *Window) UpdateSettings(settings Settings) {
	prefs.settings = settings
	prefs.camera0.SetText(settings.Camera0)
	prefs.camera1.SetText(settings.Camera1)
	prefs.width.SetText(strconv.Itoa(settings.CaptureWidth))
	prefs.height.SetText(strconv.Itoa(settings.CaptureHeight))
	prefs.cascade.SetText(settings.CascadePath)
	prefs.python.SetText(settings.PythonPath)
	prefs.script.SetText(settings.WorkerScript)
	prefs.soundDir.SetText(settings.SoundDir)
	prefs.sink.SetText(settings.AudioSink)
	prefs.darkMode.SetChecked(settings.DarkMode)
	prefs.logLevel.SetSelected(settings.LogLevel)
}

func (prefs *Window) handleSave() {
	settings := prefs.collect()
	prefs.settings = settings
	if prefs.onSave != nil {
		prefs.onSave(settings)
	}
	prefs.window.Hide()
}

func (prefs *Window) collect() Settings {
	settings := prefs.settings

	if device := strings.TrimSpace(prefs.camera0.Text); device != "" {
		settings.Camera0 = device
	}
	if device := strings.TrimSpace(prefs.camera1.Text); device != "" {
		settings.Camera1 = device
	}
	if width, ok := parsePositiveInt(prefs.width.Text); ok {
		settings.CaptureWidth = width
	}
	if height, ok := parsePositiveInt(prefs.height.Text); ok {
		settings.CaptureHeight = height
	}
	settings.CascadePath = strings.TrimSpace(prefs.cascade.Text)
	if python := strings.TrimSpace(prefs.python.Text); python != "" {
		settings.PythonPath = python
	}
	settings.WorkerScript = strings.TrimSpace(prefs.script.Text)
	settings.SoundDir = strings.TrimSpace(prefs.soundDir.Text)
	if sink := strings.TrimSpace(prefs.sink.Text); sink != "" {
		settings.AudioSink = sink
	}
	settings.DarkMode = prefs.darkMode.Checked
	if prefs.logLevel.Selected != "" {
		settings.LogLevel = prefs.logLevel.Selected
	}
	return settings
}

func parsePositiveInt(value string) (int, bool) {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || parsed <= 0 {
		return 0, false
	}
	return parsed, true
}
