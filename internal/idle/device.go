// audiopolicyd - audio stream usage policy engine
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package idle implements the Idle Output Power Policy: disabling a
// device's output channels once no stream of the corresponding kind
// (audible or ultrasonic) is flowing to it, and re-enabling before the
// admin engine would deliver new samples.
package idle

// Device is the narrow collaborator interface Policy drives. Concrete
// devices — the routing graph, physical I/O — are the caller's concern;
// this package never constructs one.
type Device interface {
	ID() string
	EnableAudible()
	DisableAudible()
	EnableUltrasonic()
	DisableUltrasonic()
}

// DeviceRouter is the interface Policy exposes to whatever owns the
// routing graph: it is told when a device joins or leaves, and tracks
// that device's idle state from then on.
type DeviceRouter interface {
	AddDeviceToRoutes(device Device)
	RemoveDeviceFromRoutes(device Device)
}

// channelKind distinguishes the two independently tracked channel sets a
// device exposes.
type channelKind int

const (
	kindAudible channelKind = iota
	kindUltrasonic
)

func (k channelKind) String() string {
	if k == kindUltrasonic {
		return "ultrasonic"
	}
	return "audible"
}
