package log

import (
	"io"
	"os"

	"github.com/rs/zerolog"

	dcerrors "github.com/demandcast/demandcast/pkg/errors"
)

// InstallWarningSink routes pkg/errors warnings through a zerolog logger so
// that excluded folds, undefined metrics and similar non-fatal conditions are
// emitted as structured events rather than plain text.
func InstallWarningSink() {
	InstallWarningSinkTo(os.Stderr)
}

// InstallWarningSinkTo is InstallWarningSink with a caller-supplied writer,
// used by tests to capture the warning stream.
func InstallWarningSinkTo(w io.Writer) {
	logger := zerolog.New(w).With().Timestamp().Str(ComponentKey, "warnings").Logger()
	dcerrors.SetZerologWarnFunc(func(warning error) {
		ev := logger.Warn()
		if obj, ok := warning.(zerolog.LogObjectMarshaler); ok {
			ev = ev.Object("warning", obj)
		}
		ev.Msg(warning.Error())
	})
}
