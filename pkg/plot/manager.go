package plot

import (
	"github.com/raykavin/nsechart/pkg/core"
	"github.com/raykavin/nsechart/pkg/indicator"
	"github.com/raykavin/nsechart/pkg/logger"
	logzero "github.com/raykavin/nsechart/pkg/logger/zerolog"
	"github.com/samber/lo"
)

// Inputs is everything a chart instance is built from
type Inputs struct {
	Bars    []core.Bar
	Toggles core.ToggleSet
}

// changed reports whether a rebuild is due: a different bar array, any flag or
// theme flip, or a different comparison overlay
func (in Inputs) changed(prev Inputs) bool {
	return !core.SameBars(in.Bars, prev.Bars) || !in.Toggles.Equal(prev.Toggles)
}

// Sink observes the lifecycle of the instances a Manager owns
type Sink interface {
	Mounted(instance *Instance)
	Resized(instance *Instance)
	Disposed(id uint64)
}

// Option configures a Manager
type Option func(*Manager)

// WithLogger sets the manager logger
func WithLogger(log logger.Logger) Option {
	return func(m *Manager) {
		m.log = log
	}
}

// WithSink adds a lifecycle observer
func WithSink(sink Sink) Option {
	return func(m *Manager) {
		m.sinks = append(m.sinks, sink)
	}
}

// WithEMASeed selects the seed of the EMA overlays. MACD always uses the first close.
func WithEMASeed(seed indicator.Seed) Option {
	return func(m *Manager) {
		m.seed = seed
	}
}

// Manager owns the single live chart instance of one container and keeps it in
// step with the current inputs by rebuilding it from scratch on every change.
// A Manager is not safe for concurrent use; drive it from one goroutine.
type Manager struct {
	container Container
	log       logger.Logger
	sinks     []Sink
	seed      indicator.Seed

	inputs    Inputs
	hasInputs bool
	live      *resizeController
	lastID    uint64
	closed    bool
}

// NewManager creates a manager for a container. Nothing is built until Update.
func NewManager(container Container, options ...Option) *Manager {
	m := &Manager{
		container: container,
		log:       logzero.Discard(),
		seed:      indicator.SeedFirstClose,
	}

	for _, option := range options {
		option(m)
	}

	return m
}

// Update rebuilds the chart when the inputs differ from the previous call
func (m *Manager) Update(in Inputs) {
	if m.closed {
		return
	}

	if m.hasInputs && !in.changed(m.inputs) {
		return
	}

	m.inputs, m.hasInputs = in, true
	m.Rebuild()
}

// Rebuild disposes the live instance and constructs a new one from the current
// inputs. Empty bars leave the container without a chart.
func (m *Manager) Rebuild() {
	if m.closed {
		return
	}

	m.dispose()

	if len(m.inputs.Bars) == 0 {
		m.log.Debug("no bars, chart construction skipped")
		return
	}

	instance := m.construct()
	m.live = attachResize(m.container, instance, m.resized)

	m.log.WithFields(map[string]any{
		"chart_id": instance.ID(),
		"bars":     len(m.inputs.Bars),
		"series":   len(instance.series),
		"toggles":  m.inputs.Toggles.String(),
	}).Debug("chart constructed")

	for _, sink := range m.sinks {
		sink.Mounted(instance)
	}
}

// Instance returns the live instance, or nil when none is mounted
func (m *Manager) Instance() *Instance {
	if m.live == nil {
		return nil
	}
	return m.live.instance
}

// Close unmounts the manager, releasing the live instance. Further updates are ignored.
func (m *Manager) Close() {
	m.dispose()
	m.closed = true
}

func (m *Manager) construct() *Instance {
	bars, toggles := m.inputs.Bars, m.inputs.Toggles

	m.lastID++
	layout := Allocate(toggles, m.container.ViewportWidth())
	instance := newInstance(m.lastID, m.container.Width(), layout, toggles.Theme)

	instance.addSeries(Series{
		ID:    "candles",
		Title: "Price",
		Kind:  KindCandlestick,
		Scale: ScalePrice,
		Bars:  bars,
	})

	in := buildInput{
		bars:    bars,
		toggles: toggles,
		seed:    m.seed,
	}

	enabled := lo.Filter(indicatorSpecs, func(spec indicatorSpec, _ int) bool {
		return spec.enabled(toggles)
	})

	for _, spec := range enabled {
		for _, series := range spec.compute(in) {
			if series.Len() == 0 {
				continue
			}
			series.Scale = spec.scale
			instance.addSeries(series)
		}
	}

	return instance
}

func (m *Manager) dispose() {
	if m.live == nil {
		return
	}

	id := m.live.instance.ID()
	if m.live.Dispose() {
		m.log.WithField("chart_id", id).Debug("chart disposed")
		for _, sink := range m.sinks {
			sink.Disposed(id)
		}
	}
	m.live = nil
}

func (m *Manager) resized(instance *Instance) {
	for _, sink := range m.sinks {
		sink.Resized(instance)
	}
}
