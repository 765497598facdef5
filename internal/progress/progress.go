package progress

import (
	"fmt"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// Tracker tracks progress for a single MRF file as it streams through
// fetch, parse, and batch-flush stages.
type Tracker interface {
	SetStage(stage string)
	SetProgress(current, total int64)
	SetCounter(name string, value int64)
	LogWarning(msg string)
	Done()
}

// Manager creates trackers for individual files and rolls up run-wide
// stats across every payer a run processes.
type Manager interface {
	NewTracker(index, total int, filename string) Tracker
	Wait()
	SetOverallStats(filesSucceeded, filesFailed int, recordsExtracted int64)
	StartDiskMonitor(outputDir string)
	StopDiskMonitor()
}

// MPBManager implements Manager using the mpb multi-progress-bar library.
type MPBManager struct {
	container   *mpb.Progress
	mu          sync.Mutex
	overallBar  *mpb.Bar
	overallText atomic.Value
	diskStop    chan struct{}
}

// NewMPBManager creates a new mpb-based progress manager.
func NewMPBManager() *MPBManager {
	p := mpb.New(mpb.WithWidth(60))
	return &MPBManager{container: p}
}

// NewTracker creates a new progress tracker for a file.
func (m *MPBManager) NewTracker(index, total int, filename string) Tracker {
	stageVal := &atomic.Value{}
	stageVal.Store("")
	detailVal := &atomic.Value{}
	detailVal.Store("")
	bar := m.container.AddBar(100,
		mpb.PrependDecorators(
			decor.Name(fmt.Sprintf("[%d/%d] %s ", index+1, total, filename), decor.WCSyncSpaceR),
		),
		mpb.AppendDecorators(
			decor.Any(func(s decor.Statistics) string {
				stage := stageVal.Load().(string)
				detail := detailVal.Load().(string)
				if detail != "" {
					return stage + "  " + detail
				}
				return stage
			}),
		),
	)

	return &mpbTracker{
		bar:       bar,
		index:     index,
		total:     total,
		name:      filename,
		stagePtr:  stageVal,
		detailPtr: detailVal,
		mgr:       m,
	}
}

// Wait waits for all progress bars to finish.
func (m *MPBManager) Wait() {
	m.container.Wait()
}

// SetOverallStats renders a one-line run summary on its own bar, added after
// the per-file bars that exist at the first call; a later call replaces the
// summary text.
func (m *MPBManager) SetOverallStats(filesSucceeded, filesFailed int, recordsExtracted int64) {
	text := fmt.Sprintf("run totals: %d files succeeded, %d failed, %s records extracted",
		filesSucceeded, filesFailed, humanCount(recordsExtracted))
	m.overallText.Store(text)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.overallBar == nil {
		m.overallBar = m.container.AddBar(0,
			mpb.PrependDecorators(
				decor.Any(func(s decor.Statistics) string {
					t, _ := m.overallText.Load().(string)
					return t
				}),
			),
		)
	}
}

// StartDiskMonitor adds a status line showing real-time disk usage for the
// Parquet batch output directory, the one place this pipeline writes
// meaningful volumes of local data (MRF bodies are streamed, never staged).
func (m *MPBManager) StartDiskMonitor(outputDir string) {
	diskVal := &atomic.Value{}
	diskVal.Store("")

	m.mu.Lock()
	bar := m.container.AddBar(0,
		mpb.PrependDecorators(
			decor.Any(func(s decor.Statistics) string {
				return diskVal.Load().(string)
			}),
		),
	)
	m.mu.Unlock()

	m.diskStop = make(chan struct{})
	startTime := time.Now()
	// Snapshot initial usage to track delta from our process
	var baselineUsed uint64
	var stat0 syscall.Statfs_t
	if syscall.Statfs(outputDir, &stat0) == nil {
		baselineUsed = (stat0.Blocks - stat0.Bavail) * uint64(stat0.Bsize)
	}
	var peakDelta uint64
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			elapsed := time.Since(startTime).Truncate(time.Second)
			var stat syscall.Statfs_t
			if err := syscall.Statfs(outputDir, &stat); err == nil {
				avail := stat.Bavail * uint64(stat.Bsize)
				used := (stat.Blocks - stat.Bavail) * uint64(stat.Bsize)
				delta := uint64(0)
				if used > baselineUsed {
					delta = used - baselineUsed
				}
				if delta > peakDelta {
					peakDelta = delta
				}
				diskVal.Store(fmt.Sprintf("Elapsed: %s  |  Parquet output: %s written (peak %s), %s free",
					elapsed, humanBytesUint(delta), humanBytesUint(peakDelta), humanBytesUint(avail)))
			} else {
				diskVal.Store(fmt.Sprintf("Elapsed: %s", elapsed))
			}
			select {
			case <-ticker.C:
			case <-m.diskStop:
				bar.Abort(false)
				return
			}
		}
	}()
}

// StopDiskMonitor stops the disk usage monitor.
func (m *MPBManager) StopDiskMonitor() {
	if m.diskStop != nil {
		close(m.diskStop)
	}
}

type mpbTracker struct {
	bar         *mpb.Bar
	index       int
	total       int
	name        string
	stagePtr    *atomic.Value
	detailPtr   *atomic.Value // formatted download progress or counter detail
	mgr         *MPBManager
	// download speed tracking
	dlStart     time.Time // when first progress byte was seen
	dlPrevBytes int64     // bytes at last speed sample
	dlPrevTime  time.Time // time of last speed sample
	dlSpeed     float64   // smoothed MB/s
}

func (t *mpbTracker) SetStage(stage string) {
	t.stagePtr.Store(stage)
	t.detailPtr.Store("")
	t.bar.SetCurrent(0) // reset progress for new stage
	// Reset download speed tracking for new stage
	t.dlStart = time.Time{}
	t.dlPrevBytes = 0
	t.dlPrevTime = time.Time{}
	t.dlSpeed = 0
}

func (t *mpbTracker) SetProgress(current, total int64) {
	now := time.Now()

	// Initialize on first call
	if t.dlStart.IsZero() {
		t.dlStart = now
		t.dlPrevTime = now
		t.dlPrevBytes = current
	}

	// Compute speed from recent window (sample every 500ms to smooth jitter)
	speedStr := ""
	if elapsed := now.Sub(t.dlPrevTime).Seconds(); elapsed >= 0.5 {
		instantMBps := float64(current-t.dlPrevBytes) / elapsed / (1024 * 1024)
		// Exponential moving average (alpha=0.3) for smooth display
		if t.dlSpeed == 0 {
			t.dlSpeed = instantMBps
		} else {
			t.dlSpeed = 0.3*instantMBps + 0.7*t.dlSpeed
		}
		t.dlPrevBytes = current
		t.dlPrevTime = now
	}
	if t.dlSpeed > 0 {
		speedStr = fmt.Sprintf("  %.1f MB/s", t.dlSpeed)
	}

	if total > 0 {
		pct := int64(float64(current) / float64(total) * 100)
		t.bar.SetTotal(100, false)
		t.bar.SetCurrent(pct)
		t.detailPtr.Store(fmt.Sprintf("%s / %s%s", humanBytes(current), humanBytes(total), speedStr))
	} else if current > 0 {
		// Unknown total (Content-Length missing)
		t.detailPtr.Store(fmt.Sprintf("%s%s", humanBytes(current), speedStr))
	}
}

func (t *mpbTracker) SetCounter(name string, value int64) {
	t.detailPtr.Store(fmt.Sprintf("%s: %s", name, humanCount(value)))
}

func (t *mpbTracker) LogWarning(msg string) {
	// Write a persistent log line above the progress bars.
	// mpb.AddBar with a completed bar acts as a static log line.
	t.mgr.mu.Lock()
	defer t.mgr.mu.Unlock()
	logBar := t.mgr.container.AddBar(0,
		mpb.PrependDecorators(
			decor.Name(fmt.Sprintf("  [%s] %s", t.name, msg)),
		),
	)
	logBar.Abort(false)
}

func (t *mpbTracker) Done() {
	t.bar.SetTotal(100, false)
	t.bar.SetCurrent(100)
	t.bar.Abort(false) // complete without removing
}

// NoopManager is a progress manager for non-interactive use (tests, and any
// run where progress bars aren't wanted). It draws no bars; its trackers
// print only each stage change and each warning as a plain line on stdout,
// and SetOverallStats records the run totals in its exported fields.
type NoopManager struct {
	FilesSucceeded   int32
	FilesFailed      int32
	RecordsExtracted int64
}

func (m *NoopManager) NewTracker(index, total int, filename string) Tracker {
	return &noopTracker{mgr: m, name: filename}
}

func (m *NoopManager) Wait()                          {}
func (m *NoopManager) StartDiskMonitor(outputDir string) {}
func (m *NoopManager) StopDiskMonitor()                {}

func (m *NoopManager) SetOverallStats(filesSucceeded, filesFailed int, recordsExtracted int64) {
	atomic.StoreInt32(&m.FilesSucceeded, int32(filesSucceeded))
	atomic.StoreInt32(&m.FilesFailed, int32(filesFailed))
	atomic.StoreInt64(&m.RecordsExtracted, recordsExtracted)
}

type noopTracker struct {
	mgr  *NoopManager
	name string
}

func (t *noopTracker) SetStage(stage string) {
	fmt.Printf("  [%s] %s\n", t.name, stage)
}

func (t *noopTracker) SetProgress(current, total int64) {}
func (t *noopTracker) SetCounter(name string, value int64) {}
func (t *noopTracker) LogWarning(msg string) {
	fmt.Printf("  [%s] WARN: %s\n", t.name, msg)
}
func (t *noopTracker) Done() {}

// humanBytes formats a byte count as a human-readable string (e.g. "1.5 GB").
func humanBytes(b int64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(mb))
	case b >= kb:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(kb))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

func humanBytesUint(b uint64) string {
	const (
		kb uint64 = 1024
		mb        = 1024 * kb
		gb        = 1024 * mb
		tb        = 1024 * gb
	)
	switch {
	case b >= tb:
		return fmt.Sprintf("%.1f TB", float64(b)/float64(tb))
	case b >= gb:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(mb))
	case b >= kb:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(kb))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// humanCount formats a number with comma separators (e.g. "1,234,567").
func humanCount(n int64) string {
	if n < 0 {
		return "-" + humanCount(-n)
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	return humanCount(n/1000) + fmt.Sprintf(",%03d", n%1000)
}
