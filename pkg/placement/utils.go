package placement

import "strings"

// VisibleDevices renders a device list as the value CUDA_VISIBLE_DEVICES
// expects.
func VisibleDevices(devices []string) string {
	return strings.Join(devices, ",")
}
