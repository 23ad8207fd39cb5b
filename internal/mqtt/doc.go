// Package mqtt owns the node's broker connection. It publishes the
// retained status payload, a retained availability topic, and Home
// Assistant MQTT discovery configs so the node appears as a native HA
// device.
//
// The client uses Eclipse Paho v2's [autopaho] package for connection
// management with automatic reconnection. On every (re-)connect it
// publishes retained discovery config payloads for each property and a
// birth message ("online") to the availability topic. A will message
// ensures the availability topic transitions to "offline" on
// unexpected disconnects.
package mqtt
