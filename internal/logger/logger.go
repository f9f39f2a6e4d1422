package logger

import (
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu     sync.Mutex
	logger = zap.NewNop()

	// Log is the shared sugared logger. It is a no-op until Init is called.
	Log = logger.Sugar()
)

var (
	AppName = "hogscan"
	Env     = "production"
)

// Options controls the logger built by Init.
type Options struct {
	Level   zapcore.Level
	LogPath string // optional rotated JSON log file
	Fields  bool   // attach app/env fields (worker mode)
}

// Init (re)builds the shared logger. Console output goes to stderr so that
// rendered reports on stdout stay clean.
func Init(opts Options) error {
	mu.Lock()
	defer mu.Unlock()

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.CallerKey = "caller"
	encoderCfg.LevelKey = "level"
	encoderCfg.MessageKey = "message"

	consoleCfg := encoderCfg
	consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.AddSync(os.Stderr), opts.Level),
	}

	if opts.LogPath != "" {
		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.LogPath,
			MaxSize:    50,
			MaxBackups: 7,
			MaxAge:     30,
			Compress:   true,
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), fileWriter, opts.Level))
	}

	zopts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)}
	if opts.Fields {
		zopts = append(zopts, zap.Fields(
			zap.String("app", AppName),
			zap.String("env", Env),
		))
	}

	logger = zap.New(zapcore.NewTee(cores...), zopts...)
	Log = logger.Sugar()
	return nil
}

// LevelFromVerbosity maps -v counts to a level: none is error, -v warn,
// -vv info, -vvv and above debug.
func LevelFromVerbosity(v int) zapcore.Level {
	switch {
	case v <= 0:
		return zapcore.ErrorLevel
	case v == 1:
		return zapcore.WarnLevel
	case v == 2:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

func GetLogger() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	return logger
}

func Sync() {
	_ = GetLogger().Sync()
}

func Trace(fn string, start time.Time) {
	elapsed := time.Since(start)
	Log.Debugf("%s executed in %d ms", fn, elapsed.Milliseconds())
}

func TraceAuto() func() {
	start := time.Now()
	pc, _, _, ok := runtime.Caller(1)
	funcName := "unknown"
	if ok {
		funcName = trimPackagePath(runtime.FuncForPC(pc).Name())
	}
	Log.Debugw("function start", "function", funcName)
	return func() {
		Log.Debugw("function end", "function", funcName, "duration", time.Since(start).String())
	}
}

func trimPackagePath(fullName string) string {
	if idx := strings.LastIndex(fullName, "/"); idx != -1 {
		fullName = fullName[idx+1:]
	}
	if idx := strings.Index(fullName, "."); idx != -1 {
		return fullName[idx+1:]
	}
	return fullName
}
