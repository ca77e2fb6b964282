package logger

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
)

// LogLevel define la severidad de un mensaje de log
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

// Códigos de color para la consola
const (
	reset  = "\033[0m"
	red    = "\033[31m"
	green  = "\033[32m"
	yellow = "\033[33m"
	blue   = "\033[34m"
	purple = "\033[35m"
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

// Logger es el logger de consola del sistema
type Logger struct {
	mu     sync.Mutex
	level  LogLevel
	output io.Writer
	exit   func(int)
}

// New crea una nueva instancia de Logger
func New(level LogLevel) *Logger {
	return &Logger{
		level:  level,
		output: os.Stdout,
		exit:   os.Exit,
	}
}

// NewWithOutput crea un Logger que escribe en el writer indicado (para tests)
func NewWithOutput(level LogLevel, w io.Writer) *Logger {
	return &Logger{
		level:  level,
		output: w,
		exit:   func(int) {},
	}
}

// getCallerInfo obtiene archivo y línea del llamador
func getCallerInfo(skip int) (string, int) {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "???", 0
	}

	parts := strings.Split(file, "/")
	if len(parts) > 3 {
		file = strings.Join(parts[len(parts)-3:], "/")
	}

	return file, line
}

// colorForLevel devuelve el color según el nivel de log
func colorForLevel(level LogLevel) string {
	switch level {
	case DEBUG:
		return blue
	case INFO:
		return green
	case WARN:
		return yellow
	case ERROR:
		return red
	case FATAL:
		return purple
	default:
		return reset
	}
}

// logw escribe una entrada con pares clave-valor
func (l *Logger) logw(level LogLevel, msg string, keysAndValues ...interface{}) {
	if level < l.level {
		return
	}

	// Saltar los frames internos para llegar al llamador real
	file, line := getCallerInfo(3)

	var sb strings.Builder
	sb.WriteString(msg)
	for i := 0; i < len(keysAndValues); i += 2 {
		key := fmt.Sprintf("%v", keysAndValues[i])
		var val interface{} = "MISSING"
		if i+1 < len(keysAndValues) {
			val = keysAndValues[i+1]
		}
		sb.WriteString(fmt.Sprintf(" %s=%v", key, val))
	}

	logEntry := fmt.Sprintf("%s[%s]%s %s %s:%d - %s\n",
		colorForLevel(level),
		levelNames[level],
		reset,
		time.Now().Format("2006-01-02 15:04:05"),
		file,
		line,
		sb.String(),
	)

	l.mu.Lock()
	defer l.mu.Unlock()

	fmt.Fprint(l.output, logEntry)

	if level == FATAL {
		l.exit(1)
	}
}

// Debugw registra un mensaje de depuración
func (l *Logger) Debugw(msg string, keysAndValues ...interface{}) {
	l.logw(DEBUG, msg, keysAndValues...)
}

// Infow registra un mensaje informativo
func (l *Logger) Infow(msg string, keysAndValues ...interface{}) {
	l.logw(INFO, msg, keysAndValues...)
}

// Warnw registra una advertencia
func (l *Logger) Warnw(msg string, keysAndValues ...interface{}) {
	l.logw(WARN, msg, keysAndValues...)
}

// Errorw registra un error
func (l *Logger) Errorw(msg string, keysAndValues ...interface{}) {
	l.logw(ERROR, msg, keysAndValues...)
}

// Fatalw registra un error fatal y termina el proceso
func (l *Logger) Fatalw(msg string, keysAndValues ...interface{}) {
	l.logw(FATAL, msg, keysAndValues...)
}
