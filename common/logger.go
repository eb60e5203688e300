package common

import (
	"github.com/consensys/gnark/logger"
	"github.com/rs/zerolog"
)

// Logger returns the gnark logger tagged with a component name. Disable it
// globally with logger.Disable().
func Logger(component string) *zerolog.Logger {
	l := logger.Logger().With().Str("component", component).Logger()
	return &l
}
