package metrics

// MultiSink fans records out to multiple sinks. Optional recorders are
// forwarded only to the sinks implementing them.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordCommit forwards the record to all sinks, returning the first error encountered.
func (m *MultiSink) RecordCommit(rec CommitRecord) error {
	for _, s := range m.Sinks {
		if err := s.RecordCommit(rec); err != nil {
			return err
		}
	}
	return nil
}

// RecordSearch forwards search records.
func (m *MultiSink) RecordSearch(rec SearchRecord) error {
	for _, s := range m.Sinks {
		if r, ok := s.(SearchRecorder); ok {
			if err := r.RecordSearch(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordEstimation forwards estimation records.
func (m *MultiSink) RecordEstimation(rec EstimationRecord) error {
	for _, s := range m.Sinks {
		if r, ok := s.(EstimationRecorder); ok {
			if err := r.RecordEstimation(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordCatalogSize forwards the catalog size.
func (m *MultiSink) RecordCatalogSize(size int) error {
	for _, s := range m.Sinks {
		if r, ok := s.(CatalogSizeRecorder); ok {
			if err := r.RecordCatalogSize(size); err != nil {
				return err
			}
		}
	}
	return nil
}
