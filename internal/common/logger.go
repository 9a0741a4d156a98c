package common

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"
)

var (
	globalLogger arbor.ILogger
	loggerMutex  sync.RWMutex
)

// GetLogger returns the global logger, lazily creating a console-only one
// for code paths that run before InitLogger (config loading, tests).
func GetLogger() arbor.ILogger {
	loggerMutex.RLock()
	if globalLogger != nil {
		defer loggerMutex.RUnlock()
		return globalLogger
	}
	loggerMutex.RUnlock()

	loggerMutex.Lock()
	defer loggerMutex.Unlock()
	if globalLogger == nil {
		globalLogger = arbor.NewLogger().WithConsoleWriter(consoleWriterConfig(""))
	}
	return globalLogger
}

// InitLogger builds the arbor logger from the logging config: console and/or
// rolling file writers per `output`, text or JSON per `format`, level from
// `level`. The result becomes the global logger.
func InitLogger(config *Config) arbor.ILogger {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()

	logger := arbor.NewLogger()

	for _, output := range config.Logging.Output {
		switch output {
		case "file":
			path, err := logFilePath()
			if err != nil {
				fmt.Fprintf(os.Stderr, "logging: file output disabled: %v\n", err)
				continue
			}
			logger = logger.WithFileWriter(fileWriterConfig(path, &config.Logging))
		case "stdout", "console":
			logger = logger.WithConsoleWriter(consoleWriterConfig(config.Logging.TimeFormat))
		}
	}

	logger = logger.WithLevelFromString(config.Logging.Level)
	globalLogger = logger
	return logger
}

// logFilePath resolves logs/assero.log beside the executable, creating the
// directory on first use.
func logFilePath() (string, error) {
	exePath, err := os.Executable()
	if err != nil {
		return "", err
	}
	logsDir := filepath.Join(filepath.Dir(exePath), "logs")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return "", err
	}
	return filepath.Join(logsDir, "assero.log"), nil
}

func consoleWriterConfig(timeFormat string) models.WriterConfiguration {
	if timeFormat == "" {
		timeFormat = "15:04:05.000"
	}
	return models.WriterConfiguration{
		Type:       models.LogWriterTypeConsole,
		TimeFormat: timeFormat,
		TextOutput: true,
	}
}

func fileWriterConfig(path string, cfg *LoggingConfig) models.WriterConfiguration {
	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = "15:04:05.000"
	}
	return models.WriterConfiguration{
		Type:       models.LogWriterTypeFile,
		FileName:   path,
		TimeFormat: timeFormat,
		MaxSize:    100 * 1024 * 1024,
		MaxBackups: 3,
		TextOutput: cfg.Format != "json",
	}
}
