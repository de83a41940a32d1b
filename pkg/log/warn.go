package log

import (
	"os"

	"github.com/rs/zerolog"

	xgberrors "github.com/weixiaohua/xgboost/pkg/errors"
)

// UseZerologWarnings routes library warnings (for example the stale
// prediction-cache diagnostic) through a zerolog console writer instead of
// the default stderr handler. Warning types implementing
// zerolog.LogObjectMarshaler are emitted with their structured fields.
func UseZerologWarnings() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	xgberrors.SetZerologWarnFunc(func(warning error) {
		ev := logger.Warn()
		if m, ok := warning.(zerolog.LogObjectMarshaler); ok {
			ev = ev.EmbedObject(m)
		}
		ev.Msg(warning.Error())
	})
}
