// audiopolicyd - audio stream usage policy engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/audiopolicyd/internal/admin"
	"github.com/tomtom215/audiopolicyd/internal/policy"
	"github.com/tomtom215/audiopolicyd/internal/registry"
	"github.com/tomtom215/audiopolicyd/internal/usage"
)

type noopVolume struct{}

func (noopVolume) SetUsageGainAdjustment(usage.StreamUsage, float64) {}

type noopActions struct{}

func (noopActions) ReportPolicyAction(usage.StreamUsage, usage.Behavior) {}

type noopActivity struct{}

func (noopActivity) OnRenderActivityChanged(usage.ActivityBitmap)  {}
func (noopActivity) OnCaptureActivityChanged(usage.ActivityBitmap) {}

type noopCounts struct{}

func (noopCounts) OnActiveRenderCountChanged(usage.RenderUsage, int)   {}
func (noopCounts) OnActiveCaptureCountChanged(usage.CaptureUsage, int) {}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func TestSubscriberUpdatesGaugesFromEngineEvents(t *testing.T) {
	bus := admin.NewEventBus()
	engine := admin.NewEngine(admin.Config{
		Store:    policy.NewStore(),
		Active:   registry.New(),
		Gain:     usage.DefaultBehaviorGain(),
		Volume:   noopVolume{},
		Actions:  noopActions{},
		Activity: noopActivity{},
		Counts:   noopCounts{},
		Bus:      bus,
	})
	dispatcher := admin.NewDispatcher(engine)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go dispatcher.Serve(ctx)

	sub := NewSubscriber(bus)
	go sub.Serve(ctx)

	dispatcher.UpdateRendererState(usage.RenderMedia, true, 1)

	media := usage.WithRenderUsage(usage.RenderMedia).String()
	waitFor(t, 2*time.Second, func() bool {
		return testutil.ToFloat64(ActiveStreamCount.WithLabelValues(media)) == 1
	})
}
