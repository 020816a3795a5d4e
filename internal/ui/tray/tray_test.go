package tray

import (
	"testing"

	"fyne.io/fyne/v2"
)

type fakeHost struct {
	menu *fyne.Menu
}

func (host *fakeHost) SetSystemTrayMenu(menu *fyne.Menu) {
	host.menu = menu
}

func (host *fakeHost) item(label string) *fyne.MenuItem {
	for _, item := range host.menu.Items {
		if item.Label == label {
			return item
		}
	}
	return nil
}

func TestManagerMonitoringLabels(t *testing.T) {
	host := &fakeHost{}
	toggles := 0
	manager := New(host, Callbacks{OnToggleMonitoring: func() { toggles++ }})

	if host.item("Start monitoring") == nil {
		t.Fatalf("menu missing start item: %+v", host.menu.Items)
	}
	if host.item("Status: idle") == nil {
		t.Fatal("menu missing idle status")
	}

	manager.SetMonitoring(true)
	manager.SetStatus("CHECK EYES!!")
	stop := host.item("Stop monitoring")
	if stop == nil {
		t.Fatalf("menu missing stop item: %+v", host.menu.Items)
	}
	if host.item("Status: CHECK EYES!! (monitoring)") == nil {
		t.Fatal("status item not updated")
	}

	stop.Action()
	if toggles != 1 {
		t.Fatalf("toggle callback ran %d times", toggles)
	}
}

func TestManagerNilCallbacksAreSafe(t *testing.T) {
	host := &fakeHost{}
	New(host, Callbacks{})
	for _, item := range host.menu.Items {
		if item.Action != nil {
			item.Action()
		}
	}
}

func TestManagerCallbacksSetAfterNew(t *testing.T) {
	host := &fakeHost{}
	manager := New(host, Callbacks{})
	quit := false
	manager.callbacks.OnQuit = func() { quit = true }
	host.item("Quit").Action()
	if !quit {
		t.Fatal("quit callback not invoked")
	}
}
