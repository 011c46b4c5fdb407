package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyTask       = "task"
	KeyGroup      = "group"
	KeyMode       = "mode"
	KeyPath       = "path"
	KeyDest       = "dest"
	KeyEntry      = "entry"
	KeyFiles      = "files"
	KeyBytes      = "bytes"
	KeyReload     = "reload"
	KeyURL        = "url"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr     { return slog.String(KeyBuildID, id) }
func Task(name string) slog.Attr      { return slog.String(KeyTask, name) }
func Group(name string) slog.Attr     { return slog.String(KeyGroup, name) }
func Mode(m string) slog.Attr         { return slog.String(KeyMode, m) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Dest(p string) slog.Attr         { return slog.String(KeyDest, p) }
func Entry(p string) slog.Attr        { return slog.String(KeyEntry, p) }
func Files(n int) slog.Attr           { return slog.Int(KeyFiles, n) }
func Bytes(n int) slog.Attr           { return slog.Int(KeyBytes, n) }
func Reload(kind string) slog.Attr    { return slog.String(KeyReload, kind) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }

// Duration converts d to a millisecond attribute.
func Duration(d time.Duration) slog.Attr {
	return DurationMS(float64(d.Microseconds()) / 1000)
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
