package serialport

import (
	"fmt"
	"sort"

	"go.bug.st/serial/enumerator"
)

// PortInfo describes a port the operator can pick.
type PortInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ListPorts asks the OS for serial ports. USB adapters are described by
// product name, or VID:PID when the product string is missing.
func ListPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("serialport: enumerate: %w", err)
	}
	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		ports = append(ports, PortInfo{Name: d.Name, Description: describe(d)})
	}
	sort.Slice(ports, func(i, j int) bool { return ports[i].Name < ports[j].Name })
	return ports, nil
}

func describe(d *enumerator.PortDetails) string {
	switch {
	case !d.IsUSB:
		return "n/a"
	case d.Product != "":
		return d.Product
	case d.VID != "" || d.PID != "":
		return fmt.Sprintf("USB %s:%s", d.VID, d.PID)
	default:
		return "USB serial"
	}
}
