// Package usbctl implements the USB event controller of spec §4.F: it
// drains a udev monitor filtered to the block subsystem, verifies each new
// device's hybrid signature (pkg/verify), dispatches it to the mount &
// transfer engine (pkg/transfer), and pushes JSON snapshots of device state
// to WebSocket subscribers.
package usbctl
