package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Uuq114/JanusRelay/internal/config"
)

// New builds the process logger for a profile. Production logs JSON, the
// other profiles log in the console encoding.
func New(profile config.Profile, level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidLevel, level)
	}

	var zc zap.Config
	if profile == config.ProfileProduction {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)

	return zc.Build(zap.Fields(zap.String("profile", string(profile))))
}
