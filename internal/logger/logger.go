package logger

import (
  "fmt"
  "os"

  "go.uber.org/zap"
  "go.uber.org/zap/zapcore"
  "gopkg.in/natefinch/lumberjack.v2"
)

type Logger struct {
  sugar *zap.SugaredLogger
}

// FileSink configures an optional rotating log file next to stdout.
type FileSink struct {
  Path        string
  MaxSizeMB   int
  MaxBackups  int
  MaxAgeDays  int
}

func New(mode string) (*Logger, error) {
  return NewWithFile(mode, nil)
}

func NewWithFile(mode string, sink *FileSink) (*Logger, error) {
  var encCfg zapcore.EncoderConfig
  var encoder zapcore.Encoder
  var level zapcore.Level
  switch mode {
  case "development", "dev", "":
    encCfg = zap.NewDevelopmentEncoderConfig()
    encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
    encoder = zapcore.NewConsoleEncoder(encCfg)
    level = zapcore.DebugLevel
  case "production", "prod":
    encCfg = zap.NewProductionEncoderConfig()
    encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
    encoder = zapcore.NewJSONEncoder(encCfg)
    level = zapcore.InfoLevel
  default:
    return nil, fmt.Errorf("unknown log mode %q (expected development or production)", mode)
  }

  cores := []zapcore.Core{
    zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level),
  }
  if sink != nil && sink.Path != "" {
    fileEncCfg := zap.NewProductionEncoderConfig()
    fileEncCfg.EncodeTime = zapcore.ISO8601TimeEncoder
    rotator := &lumberjack.Logger{
      Filename:   sink.Path,
      MaxSize:    sink.MaxSizeMB,
      MaxBackups: sink.MaxBackups,
      MaxAge:     sink.MaxAgeDays,
      Compress:   true,
    }
    cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileEncCfg), zapcore.AddSync(rotator), level))
  }

  base := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))
  return &Logger{sugar: base.Sugar()}, nil
}

// NewNop returns a logger that discards everything. Used by tests.
func NewNop() *Logger {
  return &Logger{sugar: zap.NewNop().Sugar()}
}

func (l *Logger) With(keysAndValues ...interface{}) *Logger {
  return &Logger{sugar: l.sugar.With(keysAndValues...)}
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
  l.sugar.Debugw(msg, keysAndValues...)
}

func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
  l.sugar.Infow(msg, keysAndValues...)
}

func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
  l.sugar.Warnw(msg, keysAndValues...)
}

func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
  l.sugar.Errorw(msg, keysAndValues...)
}

func (l *Logger) Sync() error {
  return l.sugar.Sync()
}
