package monitoring

import (
	"sort"
	"sync"
	"time"
)

// statStore accumulates the counters behind Snapshot. One mutex is plenty:
// the hot path is a single increment per pipeline operation and the only
// reader is the staff summary endpoint.
type statStore struct {
	mu sync.Mutex

	ingestAccepted uint64
	ingestRejected uint64

	fanoutDelivered uint64
	fanoutDropped   uint64
	lastDrop        *DropRecord

	milestonesAwarded uint64

	cacheHits   uint64
	cacheMisses uint64

	maintenance map[string]*maintenanceJob
}

// maintenanceJob tracks the run history the staleness probe needs.
type maintenanceJob struct {
	lastStatus           string
	lastError            string
	lastRunAt            time.Time
	lastDuration         time.Duration
	lastSuccessAt        time.Time
	consecutiveFailures  uint64
	consecutiveSuccesses uint64
	totalRuns            uint64
}

func newStatStore() *statStore {
	return &statStore{maintenance: make(map[string]*maintenanceJob)}
}

func (s *statStore) countIngest(accepted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if accepted {
		s.ingestAccepted++
	} else {
		s.ingestRejected++
	}
}

func (s *statStore) countDelivery() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fanoutDelivered++
}

func (s *statStore) countDrop(record DropRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fanoutDropped++
	s.lastDrop = &record
}

func (s *statStore) countAward() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.milestonesAwarded++
}

func (s *statStore) countCacheLookup(hit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if hit {
		s.cacheHits++
	} else {
		s.cacheMisses++
	}
}

func (s *statStore) recordMaintenance(job, result, message string, duration time.Duration) {
	if duration < 0 {
		duration = 0
	}
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.maintenance[job]
	if entry == nil {
		entry = &maintenanceJob{}
		s.maintenance[job] = entry
	}

	entry.lastStatus = result
	entry.lastError = message
	entry.lastRunAt = now
	entry.lastDuration = duration
	entry.totalRuns++

	if result == "success" {
		entry.consecutiveFailures = 0
		entry.consecutiveSuccesses++
		entry.lastSuccessAt = now
	} else {
		entry.consecutiveFailures++
		entry.consecutiveSuccesses = 0
	}
}

func (s *statStore) summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	var hitRate float64
	if total := s.cacheHits + s.cacheMisses; total > 0 {
		hitRate = float64(s.cacheHits) / float64(total)
	}

	var lastDrop *DropRecord
	if s.lastDrop != nil {
		cloned := *s.lastDrop
		lastDrop = &cloned
	}

	jobs := make([]MaintenanceJobSummary, 0, len(s.maintenance))
	for name, job := range s.maintenance {
		jobs = append(jobs, MaintenanceJobSummary{
			Job:                 name,
			LastStatus:          job.lastStatus,
			LastRunAt:           job.lastRunAt,
			LastDuration:        job.lastDuration,
			LastError:           job.lastError,
			ConsecutiveFailures: job.consecutiveFailures,
			ConsecutiveSuccess:  job.consecutiveSuccesses,
			LastSuccessAt:       job.lastSuccessAt,
			TotalRuns:           job.totalRuns,
		})
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Job < jobs[j].Job })

	return Summary{
		GeneratedAt: time.Now(),
		Ingest:      IngestSummary{Accepted: s.ingestAccepted, Rejected: s.ingestRejected},
		Fanout:      FanoutSummary{Delivered: s.fanoutDelivered, Dropped: s.fanoutDropped, LastDrop: lastDrop},
		Milestones:  MilestoneSummary{Awarded: s.milestonesAwarded},
		Cache:       CacheSummary{Hits: s.cacheHits, Misses: s.cacheMisses, HitRate: hitRate},
		Maintenance: MaintenanceSummary{Jobs: jobs},
	}
}
