// -----------------------------------------------------------------------
// Crash Protection - fatal panic capture with post-mortem crash files
// -----------------------------------------------------------------------

package common

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// CrashLogDir is where crash reports land. Set once at startup via
// InstallCrashHandler.
var CrashLogDir = "./logs"

// InstallCrashHandler prepares the crash report directory. Call at the top
// of main, paired with a deferred RecoverWithCrashFile.
func InstallCrashHandler(logDir string) {
	if logDir != "" {
		CrashLogDir = logDir
	}
	if err := os.MkdirAll(CrashLogDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "crash handler: cannot create %s: %v\n", CrashLogDir, err)
	}
}

// RecoverWithCrashFile is the deferred recovery for main. A panic that
// reaches it is fatal: the report is written and the process exits non-zero.
func RecoverWithCrashFile() {
	if r := recover(); r != nil {
		WriteCrashFile(r, GetStackTrace())
		os.Exit(1)
	}
}

// WriteCrashFile writes a post-mortem report and returns its path, or ""
// when even the file write failed (the report then went to stderr).
func WriteCrashFile(panicVal interface{}, stackTrace string) string {
	report := buildCrashReport(panicVal, stackTrace)

	name := fmt.Sprintf("assero-crash-%s.log", time.Now().Format("2006-01-02T15-04-05"))
	path := filepath.Join(CrashLogDir, name)

	// Unbuffered single write; crash paths cannot rely on anything fancier.
	if err := os.WriteFile(path, report, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "crash handler: cannot write %s: %v\n", path, err)
		os.Stderr.Write(report)
		return ""
	}

	fmt.Fprintf(os.Stderr, "\n!!! FATAL CRASH - report saved to %s !!!\nPanic: %v\n", path, panicVal)
	return path
}

func buildCrashReport(panicVal interface{}, stackTrace string) []byte {
	var buf bytes.Buffer

	section := func(title string) {
		fmt.Fprintf(&buf, "=== %s ===\n", title)
	}

	section("ASSERO CRASH REPORT")
	fmt.Fprintf(&buf, "Time: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(&buf, "Version: %s\n\n", GetFullVersion())

	section("PANIC")
	fmt.Fprintf(&buf, "%v\n\n", panicVal)

	section("STACK")
	buf.WriteString(stackTrace)
	buf.WriteString("\n")

	section("ALL GOROUTINES")
	buf.WriteString(GetAllGoroutineStacks())
	buf.WriteString("\n")

	section("RUNTIME")
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	fmt.Fprintf(&buf, "NumGoroutine: %d\n", runtime.NumGoroutine())
	fmt.Fprintf(&buf, "NumCPU: %d\n", runtime.NumCPU())
	fmt.Fprintf(&buf, "GOOS/GOARCH: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(&buf, "Alloc: %d MB\n", mem.Alloc/1024/1024)
	fmt.Fprintf(&buf, "Sys: %d MB\n", mem.Sys/1024/1024)
	fmt.Fprintf(&buf, "NumGC: %d\n", mem.NumGC)

	return buf.Bytes()
}

// GetStackTrace returns the current goroutine's stack trace
func GetStackTrace() string {
	buf := make([]byte, 8192)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// GetAllGoroutineStacks dumps every goroutine, growing the buffer until the
// dump fits (capped at 32 MB).
func GetAllGoroutineStacks() string {
	for size := 128 * 1024; ; size *= 2 {
		buf := make([]byte, size)
		n := runtime.Stack(buf, true)
		if n < size || size >= 32*1024*1024 {
			return string(buf[:n])
		}
	}
}
