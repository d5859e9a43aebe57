// audiopolicyd - audio stream usage policy engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package idle

import "time"

// These knobs are compile-time constants per spec.md §4.4: "all
// compile-time constants, no runtime reconfiguration needed." They mirror
// original_source's static constexpr members of the same name.
const (
	// DisableOnIdle is the master switch; when false, devices are enabled
	// on demand but never scheduled for disable.
	DisableOnIdle = true

	// SetInitialIdleCountdownWhenConfigured controls whether a newly
	// routed device that joins while its channel kind is inactive starts
	// an idle countdown immediately, rather than staying enabled
	// indefinitely until the next activity transition.
	SetInitialIdleCountdownWhenConfigured = true

	// OnlyEnableFirstUltrasonicChannel caps the number of simultaneously
	// enabled ultrasonic channels across all routed devices at one.
	OnlyEnableFirstUltrasonicChannel = true

	// IdleCountdownAfterLastStream is the grace period before disabling a
	// device's channel set once its last stream of that kind stops.
	IdleCountdownAfterLastStream = 5 * time.Second

	// InitialIdleCountdownForNewDevice is the longer grace period applied
	// when a device joins the routing graph while already idle.
	InitialIdleCountdownForNewDevice = 2 * time.Minute
)
