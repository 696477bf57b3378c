package flow

import (
	"fmt"
	"time"
)

// Size and rate units, carried over from gravwell's ingest/rates.go
// almost verbatim (same constant ladder, same per-step formatting),
// renamed here to describe PID throughput rather than ingest
// throughput (domain-stack note).
const (
	KB uint64 = 1024
	MB uint64 = 1024 * KB
	GB uint64 = 1024 * MB
	TB uint64 = 1024 * GB
	PB uint64 = 1024 * TB

	nsPerSec float64 = 1e9
)

// HumanSize renders a byte count with the appropriate binary-unit
// suffix, used by diagnostic summaries (cmd/fcsim) to report
// cumulative throughput.
func HumanSize(b uint64) string {
	switch {
	case b < KB:
		return fmt.Sprintf("%d B", b)
	case b <= MB:
		return fmt.Sprintf("%.02f KB", float64(b)/float64(KB))
	case b <= GB:
		return fmt.Sprintf("%.02f MB", float64(b)/float64(MB))
	case b <= TB:
		return fmt.Sprintf("%.02f GB", float64(b)/float64(GB))
	case b <= PB:
		return fmt.Sprintf("%.02f TB", float64(b)/float64(TB))
	default:
		return fmt.Sprintf("%.02f PB", float64(b)/float64(PB))
	}
}

// HumanRate renders a byte count delivered over dur as a human
// bytes-per-second rate, mirroring ingest/rates.go's HumanRate.
func HumanRate(b uint64, dur time.Duration) string {
	secs := float64(dur.Nanoseconds()) / nsPerSec
	if secs <= 0 {
		secs = 1
	}
	v := float64(b) / secs
	switch {
	case uint64(v) < uint64(KB):
		return fmt.Sprintf("%.02f B/s", v)
	case uint64(v) <= uint64(MB):
		return fmt.Sprintf("%.02f KB/s", v/float64(KB))
	case uint64(v) <= uint64(GB):
		return fmt.Sprintf("%.02f MB/s", v/float64(MB))
	default:
		return fmt.Sprintf("%.02f GB/s", v/float64(GB))
	}
}

// HumanEntryRate renders a packet count over dur as packets/sec,
// mirroring ingest/rates.go's HumanEntryRate for PID packet throughput.
func HumanEntryRate(n uint64, dur time.Duration) string {
	secs := float64(dur.Nanoseconds()) / nsPerSec
	if secs <= 0 {
		secs = 1
	}
	return fmt.Sprintf("%.02f pkts/s", float64(n)/secs)
}
