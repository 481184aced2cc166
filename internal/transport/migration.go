package transport

import (
	"fmt"
	"net"
	"sync"
	"time"
)

// NetworkPath identifies one local/remote address pairing a QUIC
// connection could run over.
type NetworkPath struct {
	LocalAddress  string
	LocalPort     uint16
	RemoteAddress string
	RemotePort    uint16
	InterfaceName string
	Validated     bool
	RTT           time.Duration
	CreatedAt     time.Time
}

// Equal compares the address 4-tuple, ignoring validation/RTT/timestamps.
func (p NetworkPath) Equal(other NetworkPath) bool {
	return p.LocalAddress == other.LocalAddress && p.LocalPort == other.LocalPort &&
		p.RemoteAddress == other.RemoteAddress && p.RemotePort == other.RemotePort
}

func (p NetworkPath) String() string {
	return fmt.Sprintf("%s:%d -> %s:%d", p.LocalAddress, p.LocalPort, p.RemoteAddress, p.RemotePort)
}

// MigrationState is the migration_state enum.
type MigrationState int

const (
	MigrationIdle MigrationState = iota
	MigrationDetecting
	MigrationProbing
	MigrationValidating
	MigrationMigrating
	MigrationCompleted
	MigrationFailed
)

func (s MigrationState) String() string {
	switch s {
	case MigrationIdle:
		return "idle"
	case MigrationDetecting:
		return "detecting"
	case MigrationProbing:
		return "probing"
	case MigrationValidating:
		return "validating"
	case MigrationMigrating:
		return "migrating"
	case MigrationCompleted:
		return "completed"
	case MigrationFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MigrationEvent is the migration_event enum.
type MigrationEvent int

const (
	EventNetworkChangeDetected MigrationEvent = iota
	EventPathProbeStarted
	EventPathProbeSucceeded
	EventPathProbeFailed
	EventMigrationStarted
	EventMigrationCompleted
	EventMigrationFailed
	EventPathValidated
	EventPathDegraded
	EventFallbackTriggered
)

// MigrationEventData is delivered to the event callback.
type MigrationEventData struct {
	Event        MigrationEvent
	OldPath      *NetworkPath
	NewPath      *NetworkPath
	ErrorMessage string
	Timestamp    time.Time
}

// MigrationResult reports the outcome of a migration attempt.
type MigrationResult struct {
	Success      bool
	OldPath      NetworkPath
	NewPath      NetworkPath
	Duration     time.Duration
	ErrorMessage string
}

// MigrationStatistics accumulates migration counters (see stats.go for the
// Prometheus-facing collector; this struct is the plain snapshot type).
type MigrationStatistics struct {
	TotalMigrations        uint64
	SuccessfulMigrations   uint64
	FailedMigrations       uint64
	PathProbes             uint64
	NetworkChangesDetected uint64
	TotalDowntime          time.Duration
	AvgMigrationTime       time.Duration
}

// MigrationConfig configures automatic migration behavior.
type MigrationConfig struct {
	AutoMigrate            bool
	EnablePathProbing      bool
	ProbeInterval          time.Duration
	ProbeTimeout           time.Duration
	MaxProbeRetries        int
	ValidationTimeout      time.Duration
	EnableFallback         bool
	MinRTTImprovementPct   float64
	DetectionInterval      time.Duration
	KeepPreviousPaths      bool
	MaxPreviousPaths       int
}

// DefaultMigrationConfig matches the reference migration_config defaults.
func DefaultMigrationConfig() MigrationConfig {
	return MigrationConfig{
		AutoMigrate:          true,
		EnablePathProbing:    true,
		ProbeInterval:        time.Second,
		ProbeTimeout:         5 * time.Second,
		MaxProbeRetries:      3,
		ValidationTimeout:    10 * time.Second,
		EnableFallback:       true,
		MinRTTImprovementPct: 20.0,
		DetectionInterval:    500 * time.Millisecond,
		KeepPreviousPaths:    true,
		MaxPreviousPaths:     3,
	}
}

// PathProber dials a candidate path to check reachability. Production
// callers pass a function that opens (and immediately closes) a QUIC probe
// connection; tests substitute a fake.
type PathProber func(path NetworkPath, timeout time.Duration) (rtt time.Duration, err error)

// MigrationManager tracks the active network path for a QUIC connection
// and drives path probing/validation/fallback when the network changes,
// adapted from connection_migration_manager's state machine.
type MigrationManager struct {
	mu    sync.Mutex
	cfg   MigrationConfig
	state MigrationState

	current   *NetworkPath
	previous  []NetworkPath
	prober    PathProber

	eventCb func(MigrationEventData)
	stats   MigrationStatistics
}

// NewMigrationManager builds a manager in the idle state.
func NewMigrationManager(cfg MigrationConfig, prober PathProber) *MigrationManager {
	return &MigrationManager{cfg: cfg, state: MigrationIdle, prober: prober}
}

func (m *MigrationManager) State() MigrationState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *MigrationManager) CurrentPath() (NetworkPath, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return NetworkPath{}, false
	}
	return *m.current, true
}

func (m *MigrationManager) SetCurrentPath(path NetworkPath) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		m.pushPreviousLocked(*m.current)
	}
	path.CreatedAt = time.Now()
	m.current = &path
}

func (m *MigrationManager) pushPreviousLocked(path NetworkPath) {
	if !m.cfg.KeepPreviousPaths {
		return
	}
	m.previous = append([]NetworkPath{path}, m.previous...)
	if len(m.previous) > m.cfg.MaxPreviousPaths {
		m.previous = m.previous[:m.cfg.MaxPreviousPaths]
	}
}

func (m *MigrationManager) PreviousPaths() []NetworkPath {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]NetworkPath, len(m.previous))
	copy(out, m.previous)
	return out
}

func (m *MigrationManager) OnMigrationEvent(cb func(MigrationEventData)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventCb = cb
}

func (m *MigrationManager) emit(data MigrationEventData) {
	data.Timestamp = time.Now()
	if m.eventCb != nil {
		m.eventCb(data)
	}
}

// ProbePath attempts to validate reachability of path within ProbeTimeout,
// retrying up to MaxProbeRetries times, tracking the probe counter.
func (m *MigrationManager) ProbePath(path NetworkPath) (bool, error) {
	m.mu.Lock()
	m.state = MigrationProbing
	m.stats.PathProbes++
	retries := m.cfg.MaxProbeRetries
	timeout := m.cfg.ProbeTimeout
	prober := m.prober
	m.mu.Unlock()

	m.emit(MigrationEventData{Event: EventPathProbeStarted, NewPath: &path})

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if prober == nil {
			lastErr = fmt.Errorf("no path prober configured")
			break
		}
		rtt, err := prober(path, timeout)
		if err == nil {
			path.RTT = rtt
			m.emit(MigrationEventData{Event: EventPathProbeSucceeded, NewPath: &path})
			return true, nil
		}
		lastErr = err
	}

	m.emit(MigrationEventData{Event: EventPathProbeFailed, NewPath: &path, ErrorMessage: lastErr.Error()})
	return false, lastErr
}

// ValidatePath marks path as validated once probing has succeeded.
func (m *MigrationManager) ValidatePath(path NetworkPath) (bool, error) {
	m.mu.Lock()
	m.state = MigrationValidating
	m.mu.Unlock()

	ok, err := m.ProbePath(path)
	if !ok {
		return false, err
	}
	path.Validated = true
	m.emit(MigrationEventData{Event: EventPathValidated, NewPath: &path})
	return true, nil
}

// MigrateToPath probes, validates, and switches the active path to
// newPath, updating statistics and falling back on failure if configured.
func (m *MigrationManager) MigrateToPath(newPath NetworkPath) (MigrationResult, error) {
	start := time.Now()
	m.mu.Lock()
	oldPath := m.current
	m.state = MigrationMigrating
	m.stats.TotalMigrations++
	fallbackEnabled := m.cfg.EnableFallback
	m.mu.Unlock()

	m.emit(MigrationEventData{Event: EventMigrationStarted, OldPath: oldPath, NewPath: &newPath})

	if ok, err := m.ValidatePath(newPath); !ok {
		m.mu.Lock()
		m.state = MigrationFailed
		m.stats.FailedMigrations++
		m.mu.Unlock()
		m.emit(MigrationEventData{Event: EventMigrationFailed, OldPath: oldPath, NewPath: &newPath, ErrorMessage: err.Error()})

		if fallbackEnabled && oldPath != nil {
			m.emit(MigrationEventData{Event: EventFallbackTriggered, OldPath: &newPath, NewPath: oldPath})
		}

		result := MigrationResult{Success: false, ErrorMessage: err.Error()}
		if oldPath != nil {
			result.OldPath = *oldPath
		}
		return result, err
	}

	m.SetCurrentPath(newPath)
	duration := time.Since(start)

	m.mu.Lock()
	m.state = MigrationCompleted
	m.stats.SuccessfulMigrations++
	m.stats.AvgMigrationTime = recalcAverage(m.stats.AvgMigrationTime, m.stats.SuccessfulMigrations, duration)
	m.mu.Unlock()

	result := MigrationResult{Success: true, NewPath: newPath, Duration: duration}
	if oldPath != nil {
		result.OldPath = *oldPath
	}
	m.emit(MigrationEventData{Event: EventMigrationCompleted, OldPath: oldPath, NewPath: &newPath})
	return result, nil
}

func recalcAverage(prevAvg time.Duration, count uint64, sample time.Duration) time.Duration {
	if count == 0 {
		return sample
	}
	total := int64(prevAvg)*int64(count-1) + int64(sample)
	return time.Duration(total / int64(count))
}

// FallbackToPrevious migrates back to the most recently used previous
// path, if any is on record.
func (m *MigrationManager) FallbackToPrevious() (MigrationResult, error) {
	m.mu.Lock()
	if len(m.previous) == 0 {
		m.mu.Unlock()
		return MigrationResult{}, fmt.Errorf("no previous path to fall back to")
	}
	target := m.previous[0]
	m.previous = m.previous[1:]
	m.mu.Unlock()

	return m.MigrateToPath(target)
}

func (m *MigrationManager) GetStatistics() MigrationStatistics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

func (m *MigrationManager) ResetStatistics() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats = MigrationStatistics{}
}

func (m *MigrationManager) IsMigrationAvailable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.AutoMigrate && m.state != MigrationMigrating
}

func (m *MigrationManager) CancelMigration() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == MigrationProbing || m.state == MigrationValidating || m.state == MigrationMigrating {
		m.state = MigrationIdle
	}
}

// LocalInterfaceAddresses lists up/non-loopback local interface addresses,
// the building block detect_network_changes uses to notice a new path
// becoming available (e.g. Wi-Fi to cellular handover).
func LocalInterfaceAddresses() ([]string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, fmt.Errorf("enumerate interface addresses: %w", err)
	}
	var out []string
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		out = append(out, ipNet.IP.String())
	}
	return out, nil
}
