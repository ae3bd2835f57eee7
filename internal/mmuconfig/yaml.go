package mmuconfig

import "gopkg.in/yaml.v3"

func unmarshal(data []byte, m *Machine) error {
	return yaml.Unmarshal(data, m)
}
