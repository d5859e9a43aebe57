// audiopolicyd - audio stream usage policy engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package idle

import (
	"context"
	"fmt"
	"time"

	"github.com/thejerf/suture/v4"
)

// countdown is a suture.Service parked on a time.Timer. It is the
// "dispatcher-scheduled task with a generation counter" Design Notes §9
// calls for: cancellation is never signalled to the goroutine directly,
// the goroutine always runs to completion or to ctx.Done(); Policy
// instead compares the generation captured at schedule time against the
// device's current generation when fire is invoked, so a countdown that
// lost a race against a later enable is a silent no-op.
type countdown struct {
	deviceID string
	kind     channelKind
	after    time.Duration
	fire     func()
}

func newCountdown(deviceID string, kind channelKind, after time.Duration, fire func()) *countdown {
	return &countdown{deviceID: deviceID, kind: kind, after: after, fire: fire}
}

// Serve fires once and then tells the supervisor not to restart it: a
// countdown is a one-shot timer, not a long-lived loop, and a plain nil
// return while ctx is still live would otherwise make p.countdowns
// restart it forever (suture's restart-until-ctx-done contract).
func (c *countdown) Serve(ctx context.Context) error {
	timer := time.NewTimer(c.after)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		c.fire()
		return suture.ErrDoNotRestart
	}
}

func (c *countdown) String() string {
	return fmt.Sprintf("idle.countdown[%s/%s]", c.deviceID, c.kind)
}
