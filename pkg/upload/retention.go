package upload

import (
	"expvar"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/formmailer/formmailer/pkg/metric"
	"github.com/rs/zerolog/log"
)

var (
	scanCompleted   = time.Now()
	scanCompletedMu sync.RWMutex

	expRetentionPeriod = new(expvar.Int)
	expRetainedCurrent = new(expvar.Int)
	retentionDeletes   *metric.Counter
)

func init() {
	rm := expvar.NewMap("uploadRetention")
	rm.Set("SecondsSinceScanCompleted", expvar.Func(secondsSinceScanCompleted))
	rm.Set("Period", expRetentionPeriod)
	rm.Set("RetainedCurrent", expRetainedCurrent)
	retentionDeletes = metric.NewCounter(rm, "Deletes")
}

// RetentionScanner removes staged uploads abandoned for longer than the retention period.
type RetentionScanner struct {
	retentionShutdown chan bool // Closed after the scanner has shut down.
	dir               string
	retentionPeriod   time.Duration
	retentionSleep    time.Duration
}

// NewRetentionScanner configures a new RetentionScanner.
func NewRetentionScanner(dir string, period, sleep time.Duration) *RetentionScanner {
	rs := &RetentionScanner{
		retentionShutdown: make(chan bool),
		dir:               dir,
		retentionPeriod:   period,
		retentionSleep:    sleep,
	}
	expRetentionPeriod.Set(int64(period / time.Second))
	return rs
}

// Start up the retention scanner if retention period > 0.
func (rs *RetentionScanner) Start(shutdown <-chan bool) {
	slog := log.With().Str("module", "upload").Logger()
	if rs.retentionPeriod <= 0 {
		slog.Info().Str("phase", "startup").Msg("Upload retention scanner disabled")
		close(rs.retentionShutdown)
		return
	}
	slog.Info().Str("phase", "startup").Msgf("Upload retention configured for %v", rs.retentionPeriod)
	go rs.run(shutdown)
}

// run loops to kick off the scanner on the correct schedule.
func (rs *RetentionScanner) run(shutdown <-chan bool) {
	slog := log.With().Str("module", "upload").Logger()
	start := time.Now()
retentionLoop:
	for {
		// Prevent scanner from starting more than once a minute.
		since := time.Since(start)
		if since < time.Minute {
			dur := time.Minute - since
			slog.Debug().Msgf("Retention scanner sleeping for %v", dur)
			select {
			case <-shutdown:
				break retentionLoop
			case <-time.After(dur):
			}
		}
		start = time.Now()
		if err := rs.DoScan(shutdown); err != nil {
			slog.Error().Err(err).Msg("Error during retention scan")
		}
		select {
		case <-shutdown:
			break retentionLoop
		default:
		}
	}
	slog.Debug().Str("phase", "shutdown").Msg("Retention scanner shut down")
	close(rs.retentionShutdown)
}

// DoScan does a single pass over the staging directory, removing expired files.
func (rs *RetentionScanner) DoScan(shutdown <-chan bool) error {
	slog := log.With().Str("module", "upload").Logger()
	slog.Debug().Msg("Starting retention scan")
	cutoff := time.Now().Add(-1 * rs.retentionPeriod)
	entries, err := os.ReadDir(rs.dir)
	if err != nil {
		return err
	}
	retained := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Removed concurrently by a finishing flow.
			continue
		}
		if !info.ModTime().Before(cutoff) {
			retained++
			continue
		}
		path := filepath.Join(rs.dir, entry.Name())
		slog.Debug().Str("path", path).Msg("Purging expired upload")
		if err := os.Remove(path); err != nil {
			slog.Error().Str("path", path).Err(err).Msg("Failed to purge upload")
		} else {
			retentionDeletes.Add(1)
		}
		select {
		case <-shutdown:
			slog.Debug().Str("phase", "shutdown").Msg("Retention scan aborted due to shutdown")
			return nil
		case <-time.After(rs.retentionSleep):
		}
	}
	setScanCompleted(time.Now())
	expRetainedCurrent.Set(int64(retained))
	return nil
}

// Join does not return until the retention scanner has shut down.
func (rs *RetentionScanner) Join() {
	if rs.retentionShutdown != nil {
		<-rs.retentionShutdown
	}
}

func setScanCompleted(t time.Time) {
	scanCompletedMu.Lock()
	defer scanCompletedMu.Unlock()
	scanCompleted = t
}

func getScanCompleted() time.Time {
	scanCompletedMu.RLock()
	defer scanCompletedMu.RUnlock()
	return scanCompleted
}

func secondsSinceScanCompleted() any {
	return time.Since(getScanCompleted()) / time.Second
}
