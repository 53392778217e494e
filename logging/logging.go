// Package logging wires up the subsystem loggers shared by the rest of the
// module: a decred/slog backend writing to stdout and, once InitLogRotator
// is called, to a size-rotated file on disk.
package logging

import (
	"os"

	"github.com/decred/slog"
	"github.com/jrick/logrotate/rotator"
)

// Backend is the process-wide slog backend every subsystem logger is
// created from. It starts stdout-only; InitLogRotator adds the rotating
// file writer once a data directory is known.
var Backend = slog.NewBackend(os.Stdout)

var logRotator *rotator.Rotator

// Subsystem logger handles, following the short all-caps tag convention
// used throughout this module's logs.
var (
	ChainLog = Backend.Logger("CHN")
	StoreLog = Backend.Logger("STR")
	P2PLog   = Backend.Logger("P2P")
	MinerLog = Backend.Logger("MIN")
	WalletLog = Backend.Logger("WLT")
	CfgLog   = Backend.Logger("CFG")
)

func init() {
	ChainLog.SetLevel(slog.LevelInfo)
	StoreLog.SetLevel(slog.LevelInfo)
	P2PLog.SetLevel(slog.LevelInfo)
	MinerLog.SetLevel(slog.LevelInfo)
	WalletLog.SetLevel(slog.LevelInfo)
	CfgLog.SetLevel(slog.LevelInfo)
}

// InitLogRotator creates a rotating log file under logDir/ubxnode.log,
// 10 MiB per file, keeping the last 8 files, and tees every subsystem
// logger's output to it in addition to stdout.
func InitLogRotator(logDir string) error {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return err
	}
	r, err := rotator.New(logDir+"/ubxnode.log", 10*1024, false, 8)
	if err != nil {
		return err
	}
	logRotator = r
	Backend = slog.NewBackend(&teeWriter{stdout: os.Stdout, rotator: r})

	ChainLog = Backend.Logger("CHN")
	StoreLog = Backend.Logger("STR")
	P2PLog = Backend.Logger("P2P")
	MinerLog = Backend.Logger("MIN")
	WalletLog = Backend.Logger("WLT")
	CfgLog = Backend.Logger("CFG")
	return nil
}

// SetLevel sets every subsystem logger to the given level at once, driven
// by a single config knob (nodeconfig.Config.LogLevel).
func SetLevel(level slog.Level) {
	for _, l := range []slog.Logger{ChainLog, StoreLog, P2PLog, MinerLog, WalletLog, CfgLog} {
		l.SetLevel(level)
	}
}

type teeWriter struct {
	stdout *os.File
	rotator *rotator.Rotator
}

func (w *teeWriter) Write(p []byte) (int, error) {
	n, err := w.stdout.Write(p)
	if err != nil {
		return n, err
	}
	_, _ = w.rotator.Write(p)
	return n, nil
}
