package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
	FATAL
)

var levelNames = map[Level]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
	FATAL: "FATAL",
}

func (lv Level) String() string {
	if name, ok := levelNames[lv]; ok {
		return name
	}
	return "INFO"
}

// ParseLevel maps a LOG_LEVEL value to a Level.
func ParseLevel(s string) (Level, bool) {
	for lv, name := range levelNames {
		if strings.EqualFold(s, name) {
			return lv, true
		}
	}
	return INFO, false
}

type style struct {
	level    *color.Color
	category *color.Color
}

var styles = map[Level]style{
	DEBUG: {color.New(color.FgCyan), color.New(color.FgCyan, color.Bold)},
	INFO:  {color.New(color.FgGreen), color.New(color.FgGreen, color.Bold)},
	WARN:  {color.New(color.FgYellow), color.New(color.FgYellow, color.Bold)},
	ERROR: {color.New(color.FgRed, color.Bold), color.New(color.FgRed, color.Bold)},
	FATAL: {color.New(color.FgRed, color.Bold), color.New(color.FgRed, color.Bold)},
}

var (
	timeColor   = color.New(color.FgBlue)
	sourceColor = color.New(color.FgMagenta)
)

// LogEntry is one line of the JSON log file.
type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Category  string `json:"category"`
	Message   string `json:"message"`
	File      string `json:"file,omitempty"`
	Line      int    `json:"line,omitempty"`
}

type Logger struct {
	mu       sync.Mutex
	out      io.Writer
	colored  bool
	minLevel Level

	dir     string
	day     string
	logFile *os.File
}

// NewLogger writes coloured lines to stdout and JSON lines to
// logs/careplus-<date>.log. Without a writable logs directory it logs to
// stdout only.
func NewLogger() *Logger {
	l, err := NewLoggerInDir("logs", os.Stdout)
	if err != nil {
		l = NewWriterLogger(os.Stdout)
		l.colored = true
		l.Warn("LOGGER", fmt.Sprintf("File logging disabled: %v", err))
	}
	return l
}

func NewLoggerInDir(dir string, out io.Writer) (*Logger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create log directory %s: %w", dir, err)
	}

	l := &Logger{out: out, colored: true, minLevel: DEBUG, dir: dir}
	if err := l.openFile(time.Now()); err != nil {
		return nil, err
	}

	l.Info("LOGGER", fmt.Sprintf("Log file: %s", l.logFile.Name()))
	return l, nil
}

// NewWriterLogger logs plain lines to out only. Used by tests and tools that
// must not create log files.
func NewWriterLogger(out io.Writer) *Logger {
	return &Logger{out: out, minLevel: DEBUG}
}

func Discard() *Logger {
	return NewWriterLogger(io.Discard)
}

// SetLevel drops entries below level. Unknown names keep the current level.
func (l *Logger) SetLevel(level string) {
	lv, ok := ParseLevel(level)
	if !ok {
		return
	}
	l.mu.Lock()
	l.minLevel = lv
	l.mu.Unlock()
}

// openFile switches to the file for now's date. Callers hold mu or own l
// exclusively.
func (l *Logger) openFile(now time.Time) error {
	day := now.Format("2006-01-02")
	name := filepath.Join(l.dir, fmt.Sprintf("careplus-%s.log", day))

	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open log file %s: %w", name, err)
	}
	if l.logFile != nil {
		l.logFile.Close()
	}
	l.logFile, l.day = f, day
	return nil
}

func (l *Logger) log(level Level, category, message string) {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.minLevel {
		return
	}

	entry := LogEntry{
		Timestamp: now.UTC().Format("2006-01-02T15:04:05.000Z"),
		Level:     level.String(),
		Category:  strings.ToUpper(category),
		Message:   message,
	}
	if _, file, line, ok := runtime.Caller(2); ok {
		entry.File, entry.Line = filepath.Base(file), line
	}

	fmt.Fprint(l.out, l.terminalLine(level, entry))

	if l.logFile == nil {
		return
	}
	if day := now.Format("2006-01-02"); day != l.day {
		if err := l.openFile(now); err != nil {
			fmt.Fprintf(l.out, "log rotation failed: %v\n", err)
		}
	}
	if line, err := json.Marshal(entry); err == nil {
		l.logFile.Write(append(line, '\n'))
	}
}

func (l *Logger) terminalLine(level Level, entry LogEntry) string {
	clock := entry.Timestamp[11:19]
	if !l.colored {
		return fmt.Sprintf("%s %-5s [%-10s] %s\n", clock, entry.Level, entry.Category, entry.Message)
	}

	st, ok := styles[level]
	if !ok {
		st = styles[INFO]
	}
	line := fmt.Sprintf("%s %s %s %s",
		timeColor.Sprint(clock),
		st.level.Sprintf("%-5s", entry.Level),
		st.category.Sprintf("[%-10s]", entry.Category),
		entry.Message)
	if entry.File != "" {
		line += sourceColor.Sprintf(" (%s:%d)", entry.File, entry.Line)
	}
	return line + "\n"
}

func (l *Logger) Debug(category, message string) { l.log(DEBUG, category, message) }

func (l *Logger) Info(category, message string) { l.log(INFO, category, message) }

func (l *Logger) Warn(category, message string) { l.log(WARN, category, message) }

func (l *Logger) Error(category, message string) { l.log(ERROR, category, message) }

// Fatal logs and exits the process.
func (l *Logger) Fatal(category, message string) {
	l.log(FATAL, category, message)
	l.Close()
	os.Exit(1)
}

func (l *Logger) LogTicket(action, sessionID, message string) {
	l.Info("OPD", fmt.Sprintf("[%s] %s - %s", action, sessionID, message))
}

func (l *Logger) LogChannel(action, channelID, message string) {
	l.Info("CHANNEL", fmt.Sprintf("[%s] %s - %s", action, channelID, message))
}

func (l *Logger) LogAPI(method, path, status, duration string) {
	l.Info("API", fmt.Sprintf("%s %s - %s (%s)", method, path, status, duration))
}

func (l *Logger) LogKafka(action, topic, message string) {
	l.Info("KAFKA", fmt.Sprintf("[%s] %s - %s", action, topic, message))
}

func (l *Logger) LogDatabase(operation, table, message string) {
	l.Info("DATABASE", fmt.Sprintf("[%s] %s - %s", operation, table, message))
}

func (l *Logger) LogSecurity(event, message string) {
	l.Warn("SECURITY", fmt.Sprintf("[%s] %s", event, message))
}

func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.logFile != nil {
		l.logFile.Close()
		l.logFile = nil
	}
}
