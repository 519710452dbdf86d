package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths contains all the working directories of a run
type Paths struct {
	ExecutableDir string
	DataDir       string
	DownloadsDir  string
	ReportsDir    string
	LogsDir       string
}

// GetPaths resolves the working directories for dataDir. A relative dataDir
// is resolved against the executable's directory, never the current working
// directory, so the job behaves the same whichever directory cron starts it
// from.
//
// Directory structure:
//
//	<data>/
//	  ├── downloads/   (feed archives and extracted XML)
//	  ├── reports/     (tabular output)
//	  └── logs/
func GetPaths(dataDir string) (*Paths, error) {
	exeDir, err := executableDir()
	if err != nil {
		return nil, err
	}

	if dataDir == "" {
		dataDir = "data"
	}
	if !filepath.IsAbs(dataDir) {
		dataDir = filepath.Join(exeDir, dataDir)
	}

	return &Paths{
		ExecutableDir: exeDir,
		DataDir:       dataDir,
		DownloadsDir:  filepath.Join(dataDir, DownloadsDirName),
		ReportsDir:    filepath.Join(dataDir, ReportsDirName),
		LogsDir:       filepath.Join(dataDir, LogsDirName),
	}, nil
}

func executableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %w", err)
	}

	// Resolve symlinks to get the actual executable location
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return "", fmt.Errorf("failed to resolve executable symlinks: %w", err)
	}
	return filepath.Dir(exe), nil
}

// EnsureDirectories creates all required directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.DataDir, p.DownloadsDir, p.ReportsDir, p.LogsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// GetDownloadPath returns the path for a downloaded file
func (p *Paths) GetDownloadPath(filename string) string {
	return filepath.Join(p.DownloadsDir, filename)
}

// GetReportPath returns the path for a report file
func (p *Paths) GetReportPath(filename string) string {
	return filepath.Join(p.ReportsDir, filename)
}

// GetLogPath returns the path for a log file
func (p *Paths) GetLogPath(filename string) string {
	return filepath.Join(p.LogsDir, filename)
}

// LogAttrs summarises the resolved directories for a startup log line
func (p *Paths) LogAttrs() slog.Attr {
	return slog.Group("paths",
		slog.String("executable", p.ExecutableDir),
		slog.String("data", p.DataDir),
		slog.String("downloads", p.DownloadsDir),
		slog.String("reports", p.ReportsDir),
		slog.String("logs", p.LogsDir),
	)
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
