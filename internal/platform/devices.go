package platform

import (
	"path"
	"strings"
)

// VideoDevice is a V4L2 capture node.
type VideoDevice struct {
	Path string
	Name string
	KObj string
}

// DeviceEvent reports a camera being plugged in or removed.
type DeviceEvent struct {
	Action string
	Device string
}

func devicePath(devname, devpath string) string {
	if devname != "" {
		if strings.HasPrefix(devname, "/dev/") {
			return devname
		}
		return "/dev/" + devname
	}
	if devpath == "" {
		return ""
	}
	return "/dev/" + path.Base(devpath)
}
