package engine

// Statistics aggregates an engine's current memory usage.
type Statistics struct {
	// SegmentCount is the number of backing segments held by the engine.
	SegmentCount int
	// SegmentBytes is the total size in bytes of those segments.
	SegmentBytes int
	// AllocationCount is the number of live suballocations.
	AllocationCount int
	// AllocationBytes is the total size in bytes of live suballocations.
	AllocationBytes int
}

func (s *Statistics) Clear() {
	s.SegmentCount = 0
	s.SegmentBytes = 0
	s.AllocationCount = 0
	s.AllocationBytes = 0
}

func (s *Statistics) Add(other *Statistics) {
	s.SegmentCount += other.SegmentCount
	s.SegmentBytes += other.SegmentBytes
	s.AllocationCount += other.AllocationCount
	s.AllocationBytes += other.AllocationBytes
}
