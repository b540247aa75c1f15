package engine

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/wricardo/grid-explorer/game/engine"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// engineMetrics uses the global OTel meter, a no-op unless the host installs
// a provider.
type engineMetrics struct {
	frames          metric.Int64Counter
	handlerFailures metric.Int64Counter
	zonesTriggered  metric.Int64Counter
}

func newEngineMetrics() (*engineMetrics, error) {
	m := meter()
	em := &engineMetrics{}

	var err error
	em.frames, err = m.Int64Counter(
		"engine.frames",
		metric.WithDescription("Frames stepped by the scheduler"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating frames counter: %w", err)
	}

	em.handlerFailures, err = m.Int64Counter(
		"engine.handler.failures",
		metric.WithDescription("Update or render handlers that returned an error or panicked"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating handler failures counter: %w", err)
	}

	em.zonesTriggered, err = m.Int64Counter(
		"engine.zones.triggered",
		metric.WithDescription("Zones that transitioned to triggered"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating zones triggered counter: %w", err)
	}

	return em, nil
}

func (m *engineMetrics) frame(paused bool) {
	if m == nil {
		return
	}
	m.frames.Add(context.Background(), 1, metric.WithAttributes(attribute.Bool("paused", paused)))
}

func (m *engineMetrics) handlerFailed(phase, name string) {
	if m == nil {
		return
	}
	m.handlerFailures.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("phase", phase), attribute.String("handler", name)))
}

func (m *engineMetrics) zoneTriggered(zoneID string) {
	if m == nil {
		return
	}
	m.zonesTriggered.Add(context.Background(), 1, metric.WithAttributes(attribute.String("zone", zoneID)))
}
