package metrics

// Diagnostics holds the counters exported by a running visualizer. Every
// field counts occurrences only; no key identity is ever attached.
type Diagnostics struct {
	Registry *Registry

	EventsTotal        *Counter
	UnmappedCodesTotal *Counter
	DroppedEventsTotal *Counter
	DeviceErrorsTotal  *Counter

	ChordsTotal       *Counter
	RefreshesTotal    *Counter
	SuppressedTotal   *Counter
	PauseTogglesTotal *Counter
	StuckKeysTotal    *Counter

	ItemsEvictedTotal      *Counter
	ItemsExpiredTotal      *Counter
	InspectorFailuresTotal *Counter
	ConfigReloadsTotal     *Counter
	ConfigErrorsTotal      *Counter

	VisibleItems *Gauge
	OpenDevices  *Gauge
	Paused       *Gauge
	Suppressed   *Gauge

	EventLatency *Histogram
}

// NewDiagnostics registers the visualizer metrics on registry, or on the
// default registry when nil.
func NewDiagnostics(registry *Registry) *Diagnostics {
	if registry == nil {
		registry = Default()
	}

	return &Diagnostics{
		Registry: registry,

		EventsTotal:        registry.RegisterCounter("input_events_total", "Raw key and button transitions read from devices", nil),
		UnmappedCodesTotal: registry.RegisterCounter("input_unmapped_codes_total", "Events whose scancode has no display mapping", nil),
		DroppedEventsTotal: registry.RegisterCounter("input_dropped_events_total", "Events dropped because the event queue was full", nil),
		DeviceErrorsTotal:  registry.RegisterCounter("input_device_errors_total", "Per-device read or open failures", nil),

		ChordsTotal:       registry.RegisterCounter("chords_total", "Chords inserted into the overlay", nil),
		RefreshesTotal:    registry.RegisterCounter("chord_refreshes_total", "Repeats coalesced into an existing item", nil),
		SuppressedTotal:   registry.RegisterCounter("chords_suppressed_total", "Chords discarded while paused or filtered", nil),
		PauseTogglesTotal: registry.RegisterCounter("pause_toggles_total", "Pause hotkey activations", nil),
		StuckKeysTotal:    registry.RegisterCounter("stuck_keys_total", "Held keys released after the device reported them up", nil),

		ItemsEvictedTotal:      registry.RegisterCounter("overlay_items_evicted_total", "Items evicted to honour max_items", nil),
		ItemsExpiredTotal:      registry.RegisterCounter("overlay_items_expired_total", "Items removed after their ttl", nil),
		InspectorFailuresTotal: registry.RegisterCounter("window_inspector_failures_total", "Failed focused-window lookups", nil),
		ConfigReloadsTotal:     registry.RegisterCounter("config_reloads_total", "Settings applied from a config file change", nil),
		ConfigErrorsTotal:      registry.RegisterCounter("config_errors_total", "Config changes rejected by validation", nil),

		VisibleItems: registry.RegisterGauge("overlay_visible_items", "Items currently on screen", nil),
		OpenDevices:  registry.RegisterGauge("input_open_devices", "Input devices currently being read", nil),
		Paused:       registry.RegisterGauge("paused", "1 while the pause hotkey has capture disabled", nil),
		Suppressed:   registry.RegisterGauge("app_suppressed", "1 while the focused application is filtered", nil),

		EventLatency: registry.RegisterHistogram("event_latency_seconds", "Delay between the device timestamp and processing", nil, LatencyBuckets),
	}
}
