//go:build !linux

package platform

import (
	"context"
	"errors"
	"log/slog"
)

// ErrDevicesUnsupported is returned where udev is unavailable.
var ErrDevicesUnsupported = errors.New("video device discovery requires linux")

// ListVideoDevices is unsupported on this platform.
func ListVideoDevices(context.Context) ([]VideoDevice, error) {
	return nil, ErrDevicesUnsupported
}

// HotplugMonitor is inert on this platform.
type HotplugMonitor struct{}

// NewHotplugMonitor returns an inert monitor.
func NewHotplugMonitor(*slog.Logger, func(DeviceEvent)) *HotplugMonitor {
	return &HotplugMonitor{}
}

func (m *HotplugMonitor) Start(context.Context) error { return nil }

func (m *HotplugMonitor) Stop() {}

func (m *HotplugMonitor) Running() bool { return false }
