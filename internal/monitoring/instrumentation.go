package monitoring

import (
	"strings"
	"time"
)

// RecordIngestAccepted counts a successfully appended event.
func RecordIngestAccepted() {
	if module := CurrentModule(); module != nil {
		module.stats.countIngest(true)
	}
}

// RecordIngestRejected counts an append rejected during validation.
func RecordIngestRejected(reason string) {
	module := CurrentModule()
	if module == nil {
		return
	}
	module.metrics.ingestRejections.WithLabelValues(normalizeLabel(reason)).Inc()
	module.stats.countIngest(false)
}

// RecordFanoutDelivery counts a fan-out job that completed successfully.
func RecordFanoutDelivery() {
	if module := CurrentModule(); module != nil {
		module.stats.countDelivery()
	}
}

// RecordFanoutDrop captures a fan-out job abandoned after its final attempt.
func RecordFanoutDrop(eventType, message string) {
	module := CurrentModule()
	if module == nil {
		return
	}
	eventType = normalizeLabel(eventType)
	module.metrics.fanoutDrops.WithLabelValues(eventType).Inc()
	module.stats.countDrop(DropRecord{
		EventType: eventType,
		Message:   strings.TrimSpace(message),
		Occurred:  time.Now(),
	})
}

// RecordMilestoneAward counts a first-time milestone award.
func RecordMilestoneAward() {
	if module := CurrentModule(); module != nil {
		module.stats.countAward()
	}
}

// RecordCacheLookup tracks analytics cache effectiveness.
func RecordCacheLookup(hit bool) {
	if module := CurrentModule(); module != nil {
		module.stats.countCacheLookup(hit)
	}
}

// RecordMaintenanceRun records the completion of a maintenance job.
func RecordMaintenanceRun(job, result, message string, duration time.Duration) {
	module := CurrentModule()
	if module == nil {
		return
	}
	jobID := normalizeLabel(job)
	result = normalizeLabel(result)
	module.metrics.maintenanceRuns.WithLabelValues(jobID, result).Inc()
	observeDuration(module.metrics.maintenanceDuration.WithLabelValues(jobID), duration)
	if result == "success" {
		module.metrics.maintenanceLastRun.WithLabelValues(jobID).Set(float64(time.Now().Unix()))
	}
	module.stats.recordMaintenance(jobID, result, strings.TrimSpace(message), duration)
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "unknown"
	}
	return value
}
