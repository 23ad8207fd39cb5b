package settings

import (
	"fmt"

	"github.com/google/uuid"
)

// InstanceID returns the node's stable identity, generating and
// persisting a new UUIDv7 on first call. The instance ID survives
// renames of the device_id config field so discovery consumers keep a
// stable device registry entry across reconfigurations.
func (s *Store) InstanceID() (string, error) {
	id, err := s.Get(NSNode, "instance_id")
	if err != nil {
		return "", err
	}
	if id != "" {
		return id, nil
	}

	fresh, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate instance ID: %w", err)
	}

	id = fresh.String()
	if err := s.Set(NSNode, "instance_id", id); err != nil {
		return "", fmt.Errorf("persist instance ID: %w", err)
	}
	return id, nil
}
