package tray

import (
	"fmt"

	"fyne.io/fyne/v2"
)

// MenuHost is satisfied by desktop.App.
type MenuHost interface {
	SetSystemTrayMenu(menu *fyne.Menu)
}

// Callbacks defines tray action handlers.
type Callbacks struct {
	OnShow             func()
	OnToggleMonitoring func()
	OnReset            func()
	OnSwitchCamera     func()
	OnPreferences      func()
	OnQuit             func()
}

// Manager handles system tray state.
type Manager struct {
	app         MenuHost
	statusItem  *fyne.MenuItem
	monitorItem *fyne.MenuItem
	callbacks   Callbacks
	monitoring  bool
	statusLabel string
}

// New creates a tray manager with the provided callbacks.
func New(app MenuHost, callbacks Callbacks) *Manager {
	manager := &Manager{
		app:         app,
		callbacks:   callbacks,
		statusLabel: "idle",
	}

	manager.statusItem = fyne.NewMenuItem("", nil)
	manager.statusItem.Disabled = true
	manager.monitorItem = fyne.NewMenuItem("", invoke(&manager.callbacks.OnToggleMonitoring))

	manager.refreshStatus()
	return manager
}

func invoke(fn *func()) func() {
	return func() {
		if *fn != nil {
			(*fn)()
		}
	}
}

// SetStatus updates the status label.
func (manager *Manager) SetStatus(status string) {
	manager.statusLabel = status
	manager.refreshStatus()
}

// SetMonitoring switches the toggle item between Start and Stop.
func (manager *Manager) SetMonitoring(active bool) {
	manager.monitoring = active
	manager.refreshStatus()
}

func (manager *Manager) refreshStatus() {
	status := manager.statusLabel
	if manager.monitoring {
		status = fmt.Sprintf("%s (monitoring)", status)
		manager.monitorItem.Label = "Stop monitoring"
	} else {
		manager.monitorItem.Label = "Start monitoring"
	}
	manager.statusItem.Label = fmt.Sprintf("Status: %s", status)
	manager.refreshMenu()
}

func (manager *Manager) refreshMenu() {
	if manager.app == nil {
		return
	}
	manager.app.SetSystemTrayMenu(fyne.NewMenu("SessionWatch",
		manager.statusItem,
		fyne.NewMenuItem("Show window", invoke(&manager.callbacks.OnShow)),
		manager.monitorItem,
		fyne.NewMenuItem("Reset session", invoke(&manager.callbacks.OnReset)),
		fyne.NewMenuItem("Switch camera", invoke(&manager.callbacks.OnSwitchCamera)),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Preferences", invoke(&manager.callbacks.OnPreferences)),
		fyne.NewMenuItem("Quit", invoke(&manager.callbacks.OnQuit)),
	))
}
