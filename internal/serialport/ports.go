// Package serialport locates the target serial device and forces its
// release when a stale holder keeps it busy.
package serialport

import (
	"fmt"
	"os"
	"path/filepath"

	"go.bug.st/serial/enumerator"
)

// EnvPortOverride names the environment variable that overrides the
// default port discovery.
const EnvPortOverride = "AVRFLASH_PORT"

// PortInfo holds details about a serial port.
type PortInfo struct {
	Name         string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
}

// knownVIDs are USB vendor IDs of common board USB-serial bridges.
var knownVIDs = map[string]bool{
	"2341": true, // Arduino
	"2A03": true, // Arduino (older clones)
	"1A86": true, // CH340
	"0403": true, // FTDI
	"10C4": true, // CP210x
}

// devicePatterns are the platform device-path globs tried, in order,
// when USB enumeration finds nothing.
var devicePatterns = []string{
	"/dev/ttyACM*",
	"/dev/ttyUSB*",
	"/dev/cu.usbmodem*",
	"/dev/cu.usbserial*",
}

// ListPorts returns available serial ports.
func ListPorts() ([]PortInfo, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}

	var result []PortInfo
	for _, p := range ports {
		result = append(result, PortInfo{
			Name:         p.Name,
			IsUSB:        p.IsUSB,
			VID:          p.VID,
			PID:          p.PID,
			SerialNumber: p.SerialNumber,
		})
	}
	return result, nil
}

// DefaultPort picks the port to flash when none was given. Precedence:
// the environment override, then the first enumerated USB port with a
// known bridge vendor, then the platform device-path patterns.
func DefaultPort() (string, error) {
	if port := os.Getenv(EnvPortOverride); port != "" {
		return port, nil
	}

	if ports, err := ListPorts(); err == nil {
		for _, p := range ports {
			if p.IsUSB && knownVIDs[p.VID] {
				return p.Name, nil
			}
		}
	}

	for _, pattern := range devicePatterns {
		matches, err := filepath.Glob(pattern)
		if err == nil && len(matches) > 0 {
			return matches[0], nil
		}
	}

	return "", fmt.Errorf("no serial port found; set %s or pass one explicitly", EnvPortOverride)
}

// Exists reports whether the port device is present. Device paths are
// checked on the filesystem; enumeration covers names that are not
// paths (e.g. COM ports).
func Exists(port string) bool {
	if _, err := os.Stat(port); err == nil {
		return true
	}
	ports, err := ListPorts()
	if err != nil {
		return false
	}
	for _, p := range ports {
		if p.Name == port {
			return true
		}
	}
	return false
}
