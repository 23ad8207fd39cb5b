package settings

import "multisense/internal/config"

// Broker keys in [NSBroker]. These are the fields the captive portal
// captures on the hardware boards.
const (
	KeyBroker   = "broker"
	KeyUsername = "username"
	KeyPassword = "password"
	KeyTopic    = "topic"
	KeyDeviceID = "device_id"
)

// SaveBroker persists captured broker settings. Empty values are
// removed rather than stored, so a later merge falls through to
// config-file values or defaults.
func (s *Store) SaveBroker(m config.MQTTConfig) error {
	pairs := map[string]string{
		KeyBroker:   m.Broker,
		KeyUsername: m.Username,
		KeyPassword: m.Password,
		KeyTopic:    m.Topic,
		KeyDeviceID: m.DeviceID,
	}
	for k, v := range pairs {
		if v == "" {
			if err := s.Delete(NSBroker, k); err != nil {
				return err
			}
			continue
		}
		if err := s.Set(NSBroker, k, v); err != nil {
			return err
		}
	}
	return nil
}

// MergeBroker fills empty fields of m from the persisted settings.
// Config-file values win over provisioned ones, matching the portal
// semantics where the file is the operator's explicit override.
func (s *Store) MergeBroker(m *config.MQTTConfig) error {
	stored, err := s.List(NSBroker)
	if err != nil {
		return err
	}

	if m.Broker == "" {
		m.Broker = stored[KeyBroker]
	}
	if m.Username == "" {
		m.Username = stored[KeyUsername]
	}
	if m.Password == "" {
		m.Password = stored[KeyPassword]
	}
	if m.Topic == "" {
		m.Topic = stored[KeyTopic]
	}
	if m.DeviceID == "" {
		m.DeviceID = stored[KeyDeviceID]
	}
	return nil
}
