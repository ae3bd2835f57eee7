package mmuconfig

import (
	"fmt"

	"github.com/tinyrange/rvmmu/internal/devices"
	"github.com/tinyrange/rvmmu/internal/mmu"
)

// BuildPAM allocates RAM and installs the MMIO device table described by
// a Machine config. Only a small, fixed set of device kinds is supported;
// the config format names a device type rather than carrying code.
func BuildPAM(cfg Machine) (*mmu.PAM, error) {
	pam, err := mmu.NewPAM(cfg.RAMBase, cfg.RAMSize)
	if err != nil {
		return nil, err
	}
	for _, d := range cfg.Devices {
		dev, err := buildDevice(d)
		if err != nil {
			pam.Close()
			return nil, err
		}
		pam.AddDevice(d.Base, d.Size, dev)
	}
	return pam, nil
}

func buildDevice(d DeviceConfig) (mmu.Device, error) {
	switch d.Name {
	case "", "registers":
		return devices.NewRegisterFile(int(d.Size), d.MinOpSize, d.MaxOpSize), nil
	default:
		return nil, fmt.Errorf("mmuconfig: unknown device kind %q", d.Name)
	}
}
