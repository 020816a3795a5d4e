package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pilebones/go-udev/crawler"
	"github.com/pilebones/go-udev/netlink"

	"sessionwatch/internal/logging"
)

const (
	videoDevnamePattern = "video[0-9]+$"
	crawlTimeout        = 5 * time.Second
	sysClassVideo       = "/sys/class/video4linux"
)

func videoMatcher(action string) netlink.Matcher {
	rules := &netlink.RuleDefinitions{}
	rule := netlink.RuleDefinition{
		Env: map[string]string{
			"DEVNAME": videoDevnamePattern,
		},
	}
	if action != "" {
		rule.Action = &action
	}
	rules.AddRule(rule)
	return rules
}

// ListVideoDevices walks sysfs for video4linux nodes, sorted by path.
func ListVideoDevices(ctx context.Context) ([]VideoDevice, error) {
	ctx, cancel := context.WithTimeout(ctx, crawlTimeout)
	defer cancel()

	queue := make(chan crawler.Device)
	errs := make(chan error, 1)
	quit := crawler.ExistingDevices(queue, errs, videoMatcher(""))
	defer func() {
		select {
		case quit <- struct{}{}:
		default:
		}
	}()

	seen := make(map[string]VideoDevice)
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return sortedDevices(seen), nil
			}
			return nil, fmt.Errorf("list video devices: %w", ctx.Err())
		case err := <-errs:
			return nil, fmt.Errorf("list video devices: %w", err)
		case device, ok := <-queue:
			if !ok {
				return sortedDevices(seen), nil
			}
			node := devicePath(device.Env["DEVNAME"], device.KObj)
			if node == "" {
				continue
			}
			seen[node] = VideoDevice{Path: node, Name: deviceName(node), KObj: device.KObj}
		}
	}
}

func sortedDevices(seen map[string]VideoDevice) []VideoDevice {
	devices := make([]VideoDevice, 0, len(seen))
	for _, device := range seen {
		devices = append(devices, device)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].Path < devices[j].Path })
	return devices
}

func deviceName(node string) string {
	data, err := os.ReadFile(filepath.Join(sysClassVideo, filepath.Base(node), "name"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// HotplugMonitor listens for udev events on video4linux nodes.
type HotplugMonitor struct {
	logger  *slog.Logger
	handler func(DeviceEvent)

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

// NewHotplugMonitor returns a monitor that calls handler from its own
// goroutine for every add or remove of a camera node.
func NewHotplugMonitor(logger *slog.Logger, handler func(DeviceEvent)) *HotplugMonitor {
	return &HotplugMonitor{
		logger:  logging.NewComponentLogger(logger, "hotplug"),
		handler: handler,
	}
}

// Start connects to the udev netlink socket. Connection failures are logged
// and not returned; camera switching keeps working without hotplug events.
func (m *HotplugMonitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		logging.WarnWithContext(m.logger, "failed to connect to netlink socket", "netlink_connect_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "ensure the process may open netlink sockets"),
			logging.String(logging.FieldImpact, "camera hotplug events unavailable"),
		)
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true
	go m.monitorLoop(ctx, conn, m.quit)

	m.logger.Info("hotplug monitor started", logging.String(logging.FieldEventType, "hotplug_monitor_started"))
	return nil
}

// Stop closes the netlink connection.
func (m *HotplugMonitor) Stop() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	close(m.quit)
	m.quit = nil
	_ = m.conn.Close()
	m.conn = nil
	m.running = false
	m.logger.Info("hotplug monitor stopped", logging.String(logging.FieldEventType, "hotplug_monitor_stopped"))
}

// Running reports whether the monitor is connected.
func (m *HotplugMonitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *HotplugMonitor) monitorLoop(ctx context.Context, conn *netlink.UEventConn, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	monitorQuit := conn.Monitor(queue, errs, videoMatcher("add|remove"))

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.handleEvent(uevent)
		case err := <-errs:
			m.logger.Warn("netlink monitor error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "netlink_monitor_error"),
			)
		}
	}
}

func (m *HotplugMonitor) handleEvent(uevent netlink.UEvent) {
	device := devicePath(uevent.Env["DEVNAME"], uevent.Env["DEVPATH"])
	if device == "" {
		m.logger.Debug("ignoring event without device name", logging.String("kobj", uevent.KObj))
		return
	}
	event := DeviceEvent{Action: string(uevent.Action), Device: device}
	m.logger.Info("camera device changed",
		logging.String(logging.FieldEventType, "camera_"+event.Action),
		logging.String(logging.FieldDevice, device),
	)
	if m.handler != nil {
		m.handler(event)
	}
}
