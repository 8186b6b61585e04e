package command

import (
	"sort"
	"sync"
	"time"
)

// Stats collects dispatch statistics.
type Stats struct {
	mu sync.RWMutex

	// Per-command metrics
	commands map[string]*CommandStats

	// Global counters
	totalDispatches uint64
	totalErrors     uint64
	totalPanics     uint64

	// Timing
	totalDuration time.Duration
}

// CommandStats holds statistics for a single command id.
type CommandStats struct {
	ID            string
	DispatchCount uint64
	ErrorCount    uint64
	TotalDuration time.Duration
	MinDuration   time.Duration
	MaxDuration   time.Duration
	LastStatus    Status
	LastDispatch  time.Time
}

// NewStats creates a new statistics collector.
func NewStats() *Stats {
	return &Stats{
		commands: make(map[string]*CommandStats),
	}
}

// RecordDispatch records one dispatched command.
func (s *Stats) RecordDispatch(id string, duration time.Duration, status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalDispatches++
	s.totalDuration += duration

	if status != StatusOK && status != StatusAsync {
		s.totalErrors++
	}

	cs := s.commands[id]
	if cs == nil {
		cs = &CommandStats{
			ID:          id,
			MinDuration: duration,
			MaxDuration: duration,
		}
		s.commands[id] = cs
	}

	cs.DispatchCount++
	cs.TotalDuration += duration
	cs.LastStatus = status
	cs.LastDispatch = time.Now()

	if duration < cs.MinDuration {
		cs.MinDuration = duration
	}
	if duration > cs.MaxDuration {
		cs.MaxDuration = duration
	}

	if status != StatusOK && status != StatusAsync {
		cs.ErrorCount++
	}
}

// RecordPanic records a recovered handler panic.
func (s *Stats) RecordPanic(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalPanics++

	if cs := s.commands[id]; cs != nil {
		cs.ErrorCount++
	}
}

// TotalDispatches returns the total number of dispatches.
func (s *Stats) TotalDispatches() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalDispatches
}

// TotalErrors returns the total number of failed dispatches.
func (s *Stats) TotalErrors() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalErrors
}

// TotalPanics returns the total number of panics recovered.
func (s *Stats) TotalPanics() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalPanics
}

// AverageDuration returns the average dispatch duration.
func (s *Stats) AverageDuration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.totalDispatches == 0 {
		return 0
	}
	return s.totalDuration / time.Duration(s.totalDispatches)
}

// Command returns statistics for a single id, or nil when the id has
// never been dispatched.
func (s *Stats) Command(id string) *CommandStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cs := s.commands[id]
	if cs == nil {
		return nil
	}
	out := *cs
	return &out
}

// TopCommands returns the n most dispatched commands.
func (s *Stats) TopCommands(n int) []*CommandStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*CommandStats, 0, len(s.commands))
	for _, cs := range s.commands {
		out := *cs
		all = append(all, &out)
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].DispatchCount > all[j].DispatchCount
	})

	if n > len(all) {
		n = len(all)
	}
	return all[:n]
}

// SlowestCommands returns the n slowest commands by average duration.
func (s *Stats) SlowestCommands(n int) []*CommandStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*CommandStats, 0, len(s.commands))
	for _, cs := range s.commands {
		if cs.DispatchCount > 0 {
			out := *cs
			all = append(all, &out)
		}
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].AverageDuration() > all[j].AverageDuration()
	})

	if n > len(all) {
		n = len(all)
	}
	return all[:n]
}

// Reset clears all statistics.
func (s *Stats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.commands = make(map[string]*CommandStats)
	s.totalDispatches = 0
	s.totalErrors = 0
	s.totalPanics = 0
	s.totalDuration = 0
}

// StatsSnapshot is a point-in-time view of the global counters.
type StatsSnapshot struct {
	TotalDispatches uint64
	TotalErrors     uint64
	TotalPanics     uint64
	TotalDuration   time.Duration
	AverageDuration time.Duration
	CommandCount    int
	Timestamp       time.Time
}

// Snapshot returns a snapshot of current statistics.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := StatsSnapshot{
		TotalDispatches: s.totalDispatches,
		TotalErrors:     s.totalErrors,
		TotalPanics:     s.totalPanics,
		TotalDuration:   s.totalDuration,
		CommandCount:    len(s.commands),
		Timestamp:       time.Now(),
	}
	if s.totalDispatches > 0 {
		snap.AverageDuration = s.totalDuration / time.Duration(s.totalDispatches)
	}
	return snap
}

// AverageDuration returns the command's average dispatch duration.
func (cs *CommandStats) AverageDuration() time.Duration {
	if cs.DispatchCount == 0 {
		return 0
	}
	return cs.TotalDuration / time.Duration(cs.DispatchCount)
}

// ErrorRate returns the command's error rate as a percentage.
func (cs *CommandStats) ErrorRate() float64 {
	if cs.DispatchCount == 0 {
		return 0
	}
	return float64(cs.ErrorCount) / float64(cs.DispatchCount) * 100
}
