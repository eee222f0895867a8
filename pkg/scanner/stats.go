package scanner

// NewScannerStats creates and initializes a new ScannerStats instance
func NewScannerStats() *ScannerStats {
	return &ScannerStats{}
}

func (s *ScannerStats) AddFilesFound(delta int64) int64 {
	return s.filesFound.Add(delta)
}

func (s *ScannerStats) AddFilesSkipped(delta int64) int64 {
	return s.filesSkipped.Add(delta)
}

func (s *ScannerStats) AddDirectoriesScanned(delta int64) int64 {
	return s.directoriesScanned.Add(delta)
}

func (s *ScannerStats) AddBytesFound(delta int64) int64 {
	return s.bytesFound.Add(delta)
}

func (s *ScannerStats) SetCurrentDepth(depth int32) int32 {
	return s.currentDepth.Swap(depth)
}

func (s *ScannerStats) GetFilesFound() int64 {
	return s.filesFound.Load()
}

func (s *ScannerStats) GetFilesSkipped() int64 {
	return s.filesSkipped.Load()
}

func (s *ScannerStats) GetDirectoriesScanned() int64 {
	return s.directoriesScanned.Load()
}

func (s *ScannerStats) GetBytesFound() int64 {
	return s.bytesFound.Load()
}

func (s *ScannerStats) GetCurrentDepth() int32 {
	return s.currentDepth.Load()
}

// reset zeroes every counter before a new collection
func (s *ScannerStats) reset() {
	s.filesFound.Store(0)
	s.filesSkipped.Store(0)
	s.directoriesScanned.Store(0)
	s.bytesFound.Store(0)
	s.currentDepth.Store(0)
}
