// Package applog sends the standard logger to stdout and app.log, and
// error lines additionally to error.log.
package applog

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
)

var errLog = log.New(os.Stderr, "[ERROR] ", log.LstdFlags|log.Lmsgprefix)

// Init opens the log files under dir. The returned writer is meant for the
// HTTP access logger; closeFn releases both files.
func Init(dir string) (access io.Writer, closeFn func(), err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("log dir: %w", err)
	}
	appFile, err := openAppend(filepath.Join(dir, "app.log"))
	if err != nil {
		return nil, nil, err
	}
	errFile, err := openAppend(filepath.Join(dir, "error.log"))
	if err != nil {
		appFile.Close()
		return nil, nil, err
	}

	access = io.MultiWriter(os.Stdout, appFile)
	log.SetOutput(access)
	errLog = log.New(io.MultiWriter(os.Stderr, appFile, errFile), "[ERROR] ", log.LstdFlags|log.Lmsgprefix)

	return access, func() {
		appFile.Close()
		errFile.Close()
	}, nil
}

func openAppend(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}

func Infof(format string, args ...any) {
	log.Printf("[INFO] "+format, args...)
}

func Warnf(format string, args ...any) {
	log.Printf("[WARNING] "+format, args...)
}

// Errorf writes to error.log as well as app.log.
func Errorf(format string, args ...any) {
	errLog.Printf(format, args...)
}
