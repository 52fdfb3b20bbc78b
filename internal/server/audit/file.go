package audit

import (
	"context"
	"os"

	"github.com/dmitrijs2005/medreport/internal/filex"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// FileRecorder appends one JSON object per entry to a file.
type FileRecorder struct {
	file   *os.File
	logger *zap.Logger
}

// NewFileRecorder opens path for appending, creating it and its directory
// when needed.
func NewFileRecorder(path string) (*FileRecorder, error) {
	if _, err := filex.EnsureParentDir(path); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = ""
	encCfg.LevelKey = ""
	encCfg.CallerKey = ""
	encCfg.MessageKey = "event"

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.Lock(zapcore.AddSync(f)), zapcore.InfoLevel)
	return &FileRecorder{file: f, logger: zap.New(core)}, nil
}

func (r *FileRecorder) Record(ctx context.Context, e Entry) error {
	if addr := RemoteAddr(ctx); e.RemoteAddr == "" && addr != "" {
		e.RemoteAddr = addr
	}
	e = fill(e)

	r.logger.Info("audit",
		zap.String("id", e.ID),
		zap.Time("at", e.At),
		zap.String("actorId", e.ActorID),
		zap.String("action", e.Action),
		zap.String("targetType", e.TargetType),
		zap.String("targetId", e.TargetID),
		zap.String("outcome", e.Outcome),
		zap.String("remoteAddr", e.RemoteAddr),
	)
	return r.logger.Sync()
}

func (r *FileRecorder) Close() error {
	_ = r.logger.Sync()
	return r.file.Close()
}
