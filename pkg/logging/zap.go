package logging

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger implements Logger on top of uber-go/zap.
type ZapLogger struct {
	logger *zap.Logger
	fields []Field
}

// ZapOption configures the zap-backed logger.
type ZapOption func(*zapOptions)

type zapOptions struct {
	development bool
	level       *zapcore.Level
	outputPaths []string
}

// WithDevelopmentMode enables zap's development config.
func WithDevelopmentMode() ZapOption {
	return func(o *zapOptions) { o.development = true }
}

// WithLogLevel sets the minimum emitted level.
func WithLogLevel(level Level) ZapOption {
	return func(o *zapOptions) {
		var zl zapcore.Level
		switch level {
		case DEBUG:
			zl = zapcore.DebugLevel
		case WARN:
			zl = zapcore.WarnLevel
		case ERROR:
			zl = zapcore.ErrorLevel
		default:
			zl = zapcore.InfoLevel
		}
		o.level = &zl
	}
}

// WithOutputPaths sets zap output paths (file paths or "stdout"/"stderr").
func WithOutputPaths(paths ...string) ZapOption {
	return func(o *zapOptions) { o.outputPaths = paths }
}

// NewZapLogger creates a Logger backed by zap. Falls back to the plain JSON
// logger if zap cannot be built with the requested configuration.
func NewZapLogger(options ...ZapOption) Logger {
	opts := &zapOptions{outputPaths: []string{"stdout"}}
	for _, opt := range options {
		opt(opts)
	}

	config := zap.NewProductionConfig()
	if opts.development {
		config = zap.NewDevelopmentConfig()
	}
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.OutputPaths = opts.outputPaths
	if opts.level != nil {
		config.Level = zap.NewAtomicLevelAt(*opts.level)
	}

	zl, err := config.Build(
		zap.AddCaller(),
		zap.AddCallerSkip(1),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		return NewLogger()
	}
	return &ZapLogger{logger: zl}
}

func (l *ZapLogger) Debug(msg string, fields ...Field) {
	if ce := l.logger.Check(zapcore.DebugLevel, msg); ce != nil {
		ce.Write(l.convert(fields...)...)
	}
}

func (l *ZapLogger) Info(msg string, fields ...Field) {
	if ce := l.logger.Check(zapcore.InfoLevel, msg); ce != nil {
		ce.Write(l.convert(fields...)...)
	}
}

func (l *ZapLogger) Warn(msg string, fields ...Field) {
	if ce := l.logger.Check(zapcore.WarnLevel, msg); ce != nil {
		ce.Write(l.convert(fields...)...)
	}
}

func (l *ZapLogger) Error(msg string, fields ...Field) {
	if ce := l.logger.Check(zapcore.ErrorLevel, msg); ce != nil {
		ce.Write(l.convert(fields...)...)
	}
}

func (l *ZapLogger) WithFields(fields ...Field) Logger {
	child := *l
	child.fields = make([]Field, 0, len(l.fields)+len(fields))
	child.fields = append(child.fields, l.fields...)
	child.fields = append(child.fields, fields...)
	return &child
}

// SetLevel is not supported after construction; zap levels are atomic and
// fixed by the config. Use WithLogLevel at construction time.
func (l *ZapLogger) SetLevel(level Level) {
	l.logger.Debug("SetLevel ignored on zap logger; set level at construction")
}

// SetOutput replaces the core with one writing JSON to w, keeping the level.
func (l *ZapLogger) SetOutput(w io.Writer) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	atom := zap.NewAtomicLevel()
	atom.SetLevel(l.logger.Level())

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(w),
		atom,
	)
	l.logger = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
}

// Sync flushes buffered entries.
func (l *ZapLogger) Sync() error {
	return l.logger.Sync()
}

func (l *ZapLogger) convert(fields ...Field) []zap.Field {
	out := make([]zap.Field, 0, len(l.fields)+len(fields))
	for _, f := range l.fields {
		out = append(out, zap.Any(f.Key, f.Value))
	}
	for _, f := range fields {
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}
