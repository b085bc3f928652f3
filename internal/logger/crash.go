package logger

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	// CrashLogDir is the directory for crash logs relative to the base path
	CrashLogDir = "crash_logs"

	// MaxCrashLogs is the maximum number of crash logs to keep
	MaxCrashLogs = 10
)

var (
	mu       sync.RWMutex
	basePath = ".dayplan"
	version  = "dev"
	command  string
)

// SetBasePath sets the directory crash logs are written under.
func SetBasePath(path string) {
	mu.Lock()
	defer mu.Unlock()
	basePath = path
}

// SetVersion sets the application version recorded in crash logs.
func SetVersion(v string) {
	mu.Lock()
	defer mu.Unlock()
	version = v
}

// SetCommand sets the command being executed.
func SetCommand(cmd string) {
	mu.Lock()
	defer mu.Unlock()
	command = cmd
}

// CrashLog represents a crash log entry.
type CrashLog struct {
	Timestamp  time.Time
	Version    string
	Command    string
	PanicValue string
	StackTrace string
	GoVersion  string
	OS         string
	Arch       string
}

func newCrashLog(panicValue any) CrashLog {
	mu.RLock()
	defer mu.RUnlock()
	return CrashLog{
		Timestamp:  time.Now(),
		Version:    version,
		Command:    command,
		PanicValue: fmt.Sprintf("%v", panicValue),
		StackTrace: string(debug.Stack()),
		GoVersion:  runtime.Version(),
		OS:         runtime.GOOS,
		Arch:       runtime.GOARCH,
	}
}

// HandlePanic recovers a panic in the CLI, writes a crash log and exits.
// Usage: defer logger.HandlePanic()
func HandlePanic() {
	r := recover()
	if r == nil {
		return
	}
	entry := newCrashLog(r)
	path, err := writeCrashLog(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[CRASH] Failed to write crash log: %v\n", err)
		fmt.Fprintf(os.Stderr, "[CRASH] Panic: %v\n%s\n", r, entry.StackTrace)
	} else {
		fmt.Fprintf(os.Stderr, "\ndayplan crashed unexpectedly. A crash log has been saved to:\n  %s\n", path)
	}
	os.Exit(1)
}

// Recover turns a panic in an HTTP handler into a 500 response and an error log.
// The process keeps serving.
func Recover(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				entry := newCrashLog(v)
				log.Error("handler panic",
					"method", r.Method, "path", r.URL.Path,
					"panic", entry.PanicValue, "stack", entry.StackTrace)
				http.Error(w, `{"error":"operation failed","code":"internal"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func crashLogDir() string {
	mu.RLock()
	defer mu.RUnlock()
	return filepath.Join(basePath, CrashLogDir)
}

// writeCrashLog writes entry to disk and returns its path.
func writeCrashLog(entry CrashLog) (string, error) {
	dir := crashLogDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create crash log dir: %w", err)
	}
	if err := cleanOldCrashLogs(dir); err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] Failed to clean old crash logs: %v\n", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("crash_%s.log", entry.Timestamp.Format("20060102_150405")))
	if err := os.WriteFile(path, []byte(formatCrashLog(entry)), 0644); err != nil {
		return "", fmt.Errorf("write crash log: %w", err)
	}
	return path, nil
}

func formatCrashLog(entry CrashLog) string {
	var sb strings.Builder
	rule := strings.Repeat("=", 80)
	sb.WriteString(rule + "\nDAYPLAN CRASH LOG\n" + rule + "\n\n")
	fmt.Fprintf(&sb, "Timestamp: %s\n", entry.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(&sb, "Version:   %s\n", entry.Version)
	fmt.Fprintf(&sb, "Command:   %s\n", entry.Command)
	fmt.Fprintf(&sb, "Go:        %s\n", entry.GoVersion)
	fmt.Fprintf(&sb, "OS/Arch:   %s/%s\n", entry.OS, entry.Arch)
	sb.WriteString("\nPANIC VALUE\n" + entry.PanicValue + "\n")
	sb.WriteString("\nSTACK TRACE\n" + entry.StackTrace)
	return sb.String()
}

// cleanOldCrashLogs keeps only the newest MaxCrashLogs-1 files so the new
// one fits under the limit.
func cleanOldCrashLogs(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "crash_") && strings.HasSuffix(e.Name(), ".log") {
			names = append(names, e.Name())
		}
	}
	if len(names) < MaxCrashLogs {
		return nil
	}

	// Timestamped names sort chronologically.
	sort.Strings(names)
	for _, name := range names[:len(names)-MaxCrashLogs+1] {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return err
		}
	}
	return nil
}
