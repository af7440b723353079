package storage

import "escrowOracle/internal/model"

// EventSink receives lifecycle events newly merged by the indexer.
type EventSink interface {
	PutEvents(events []model.LifecycleEvent) error
}

// ReportSink receives resolver cycle reports.
type ReportSink interface {
	PutReport(report model.CycleReport) error
}
