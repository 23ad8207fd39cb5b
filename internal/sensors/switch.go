package sensors

import "multisense/internal/telemetry"

// Switch is a contact input published under a user-assigned alias. An
// empty alias disables the input entirely: NewSwitch returns nil and
// the property never appears in payloads or change detection, matching
// the board behavior where unnamed switch terminals are ignored.
type Switch struct {
	alias string
	read  func() (bool, error)
}

// NewSwitch builds a switch source, or nil when alias is empty.
func NewSwitch(alias string, read func() (bool, error)) *Switch {
	if alias == "" {
		return nil
	}
	return &Switch{alias: alias, read: read}
}

func (s *Switch) Name() string {
	return s.alias
}

func (s *Switch) Read() telemetry.Reading {
	v, err := s.read()
	if err != nil {
		return telemetry.Invalid(telemetry.Bool)
	}
	return telemetry.BoolReading(v)
}
