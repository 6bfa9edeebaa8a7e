package channel

import (
	"fmt"
	"strconv"
	"strings"
)

// Device identifies compute placement, e.g. "cpu" or "cuda:1".
type Device struct {
	Kind  string
	Index int
}

// CPU is the default host device.
var CPU = Device{Kind: "cpu"}

// ParseDevice parses "kind" or "kind:index".
func ParseDevice(s string) (Device, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return CPU, nil
	}
	kind, idx, found := strings.Cut(s, ":")
	switch kind {
	case "cpu", "cuda":
	default:
		return Device{}, fmt.Errorf("unknown device kind %q", kind)
	}
	d := Device{Kind: kind}
	if found {
		n, err := strconv.Atoi(idx)
		if err != nil || n < 0 {
			return Device{}, fmt.Errorf("invalid device index %q", idx)
		}
		d.Index = n
	}
	return d, nil
}

// String renders the device in ParseDevice form.
func (d Device) String() string {
	if d.Kind == "" {
		return "cpu"
	}
	if d.Index == 0 && d.Kind == "cpu" {
		return "cpu"
	}
	return fmt.Sprintf("%s:%d", d.Kind, d.Index)
}

// IsAccelerator reports whether the device is not host memory.
func (d Device) IsAccelerator() bool {
	return d.Kind != "" && d.Kind != "cpu"
}
