package logging

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"
)

type ZerologLogger struct {
	l zerolog.Logger
}

// NewZerologLogger writes JSON lines to w at the given level.
func NewZerologLogger(w io.Writer, level string) (*ZerologLogger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	l := zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	return &ZerologLogger{l: l}, nil
}

func (z *ZerologLogger) Debug(ctx context.Context, msg string, args ...any) {
	z.event(z.l.Debug(), args).Msg(msg)
}

func (z *ZerologLogger) Info(ctx context.Context, msg string, args ...any) {
	z.event(z.l.Info(), args).Msg(msg)
}

func (z *ZerologLogger) Warn(ctx context.Context, msg string, args ...any) {
	z.event(z.l.Warn(), args).Msg(msg)
}

func (z *ZerologLogger) Error(ctx context.Context, msg string, args ...any) {
	z.event(z.l.Error(), args).Msg(msg)
}

func (z *ZerologLogger) With(args ...any) Logger {
	return &ZerologLogger{l: z.l.With().Fields(pairs(args)).Logger()}
}

func (z *ZerologLogger) event(e *zerolog.Event, args []any) *zerolog.Event {
	return e.Fields(pairs(args))
}

// pairs turns slog-style key–value args into a zerolog field map.
// A trailing key without value is stored under "!BADKEY".
func pairs(args []any) map[string]any {
	m := make(map[string]any, len(args)/2+1)
	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			m["!BADKEY"] = args[i]
			break
		}
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		m[key] = args[i+1]
	}
	return m
}
