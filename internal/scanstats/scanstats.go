// Package scanstats holds the mutable counters a scan accumulates and the immutable
// progress snapshots published mid-scan.
package scanstats

import (
	"sync"
	"time"

	"lms/internal/models"
	"lms/internal/scanerrors"
)

// MaxStoredErrorCount caps the number of *scanerrors.Error retained verbatim;
// ErrorsCount keeps incrementing past this point so observability doesn't silently
// stop at the cap.
const MaxStoredErrorCount = 5000

// DuplicateReason tags why a track was flagged as a duplicate.
type DuplicateReason int

const (
	SameHash DuplicateReason = iota
	SameTrackMBID
)

func (r DuplicateReason) String() string {
	if r == SameTrackMBID {
		return "SameTrackMBID"
	}
	return "SameHash"
}

// Duplicate records one non-first member of a duplicate group.
type Duplicate struct {
	TrackID models.TrackID
	Reason  DuplicateReason
}

// Step enumerates the pipeline steps. The declaration order is not the execution
// order: the pipelines assembled in cmd/lmsd decide that.
type Step int

const (
	AssociateArtistImages Step = iota
	AssociateExternalLyrics
	AssociatePlayListTracks
	AssociateReleaseImages
	AssociateTrackImages
	CheckForDuplicatedFiles
	CheckForRemovedFiles
	ComputeClusterStats
	Compact
	FetchTrackFeatures
	Optimize
	ReconciliateArtists
	ReloadSimilarityEngine
	RemoveOrphanedDbEntries
	ScanFiles
	UpdateLibraryFields
	RecreateViews
)

func (s Step) String() string {
	switch s {
	case AssociateArtistImages:
		return "AssociateArtistImages"
	case AssociateExternalLyrics:
		return "AssociateExternalLyrics"
	case AssociatePlayListTracks:
		return "AssociatePlayListTracks"
	case AssociateReleaseImages:
		return "AssociateReleaseImages"
	case AssociateTrackImages:
		return "AssociateTrackImages"
	case CheckForDuplicatedFiles:
		return "CheckForDuplicatedFiles"
	case CheckForRemovedFiles:
		return "CheckForRemovedFiles"
	case ComputeClusterStats:
		return "ComputeClusterStats"
	case Compact:
		return "Compact"
	case FetchTrackFeatures:
		return "FetchTrackFeatures"
	case Optimize:
		return "Optimize"
	case ReconciliateArtists:
		return "ReconciliateArtists"
	case ReloadSimilarityEngine:
		return "ReloadSimilarityEngine"
	case RemoveOrphanedDbEntries:
		return "RemoveOrphanedDbEntries"
	case ScanFiles:
		return "ScanFiles"
	case UpdateLibraryFields:
		return "UpdateLibraryFields"
	case RecreateViews:
		return "RecreateViews"
	default:
		return "UnknownStep"
	}
}

// StepStats is an immutable snapshot of one step's progress, published at least
// every ProgressStride processed elements.
type StepStats struct {
	StartTime      time.Time
	StepCount      int
	StepIndex      int
	CurrentStep    Step
	TotalElems     int
	ProcessedElems int
}

// Progress returns processedElems/totalElems as a percentage, clamped only from
// below at 0; it may legitimately exceed 100 when totalElems was an early estimate.
func (s StepStats) Progress() int {
	total := s.TotalElems
	if total == 0 {
		total = 1
	}
	return int((float64(s.ProcessedElems) / float64(total)) * 100)
}

// ScanStats is the mutable aggregate counter set for one scan run. Errors and
// Duplicates are only appended through AddError/AddDuplicate, so AddError respects
// MaxStoredErrorCount uniformly; the plain counters are incremented directly by the
// steps. The zero value is ready to use.
type ScanStats struct {
	mu sync.Mutex

	StartTime time.Time
	StopTime  time.Time

	TotalFileCount int

	Skips   int
	Scans   int // always additions+updates+failures; bumped once per processed file
	Additions int
	Deletions int
	Updates   int
	Failures  int

	FeaturesFetched int

	Errors      []*scanerrors.Error
	ErrorsCount int
	Duplicates  []Duplicate
}

// NewScanStats returns a ScanStats with StartTime set to the given time (callers
// supply it rather than stamping time.Now() here, keeping stat construction
// deterministic for tests).
func NewScanStats(startTime time.Time) *ScanStats {
	return &ScanStats{StartTime: startTime}
}

// AddError records a per-file scan failure, incrementing ErrorsCount unconditionally
// and appending to Errors only while under MaxStoredErrorCount.
func (s *ScanStats) AddError(err *scanerrors.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ErrorsCount++
	if len(s.Errors) < MaxStoredErrorCount {
		s.Errors = append(s.Errors, err)
	}
}

// AddDuplicate records one non-first member of a duplicate group.
func (s *ScanStats) AddDuplicate(d Duplicate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Duplicates = append(s.Duplicates, d)
}

// GetTotalFileCount mirrors ScannerStats.cpp's getTotalFileCount: skips + additions +
// updates + failures.
func (s *ScanStats) GetTotalFileCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Skips + s.Additions + s.Updates + s.Failures
}

// GetChangesCount mirrors getChangesCount: additions + deletions + updates. A scan
// with GetChangesCount() == 0 does not invalidate the artwork cache or reload the
// recommendation engine.
func (s *ScanStats) GetChangesCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Additions + s.Deletions + s.Updates
}

// Changed reports whether this scan materially altered the catalog, the signal
// scanComplete(stats, changed) and the artwork-cache-flush / engine-reload triggers
// key off.
func (s *ScanStats) Changed() bool {
	return s.GetChangesCount() > 0
}
