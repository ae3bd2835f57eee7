// Package mmuconfig loads the machine topology the memory translation
// core needs at startup — RAM placement and the MMIO device table — from
// a YAML document, the same way the teacher loads bundle metadata
// (internal/bundle/bundle.go in the reference pack) with
// gopkg.in/yaml.v3.
package mmuconfig

import (
	"fmt"
	"os"

	"github.com/tinyrange/rvmmu/internal/mmu"
)

const DefaultTLBEntries = mmu.DefaultTLBEntries

// Machine describes the RAM region and MMIO device table for one machine,
// as read from a YAML config file.
type Machine struct {
	RAMBase    uint64         `yaml:"ramBase"`
	RAMSize    uint64         `yaml:"ramSize"`
	TLBEntries int            `yaml:"tlbEntries,omitempty"`
	Devices    []DeviceConfig `yaml:"devices,omitempty"`
}

// DeviceConfig describes one MMIO window; Name selects which built-in
// device implementation to instantiate (the config format does not carry
// executable code, only the parameters of a known device type).
type DeviceConfig struct {
	Name      string `yaml:"name"`
	Base      uint64 `yaml:"base"`
	Size      uint64 `yaml:"size"`
	MinOpSize int    `yaml:"minOpSize"`
	MaxOpSize int    `yaml:"maxOpSize"`
}

func (m *Machine) normalize() {
	if m.TLBEntries == 0 {
		m.TLBEntries = DefaultTLBEntries
	}
	for i := range m.Devices {
		d := &m.Devices[i]
		if d.MinOpSize == 0 {
			d.MinOpSize = 1
		}
		if d.MaxOpSize == 0 {
			d.MaxOpSize = 8
		}
	}
}

// Load reads and parses a machine config file.
func Load(path string) (Machine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Machine{}, fmt.Errorf("mmuconfig: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses an in-memory YAML document into a Machine config.
func Parse(data []byte) (Machine, error) {
	var m Machine
	if err := unmarshal(data, &m); err != nil {
		return Machine{}, fmt.Errorf("mmuconfig: parse config: %w", err)
	}
	if m.RAMBase%4096 != 0 {
		return Machine{}, fmt.Errorf("mmuconfig: ramBase 0x%x is not page-aligned", m.RAMBase)
	}
	if m.RAMSize == 0 || m.RAMSize%4096 != 0 {
		return Machine{}, fmt.Errorf("mmuconfig: ramSize 0x%x must be a nonzero multiple of the page size", m.RAMSize)
	}
	for _, d := range m.Devices {
		if d.Base >= m.RAMBase && d.Base < m.RAMBase+m.RAMSize {
			return Machine{}, fmt.Errorf("mmuconfig: device %q at 0x%x overlaps RAM", d.Name, d.Base)
		}
	}
	m.normalize()
	return m, nil
}
