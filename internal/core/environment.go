package core

import (
	"fmt"

	"github.com/rs/zerolog"
)

type Environment string

const (
	DevelopmentEnv Environment = "development"
	ProductionEnv  Environment = "production"
)

func ParseEnvironment(s string) (Environment, error) {
	switch env := Environment(s); env {
	case DevelopmentEnv, ProductionEnv:
		return env, nil
	default:
		return "", fmt.Errorf("unknown environment %q, want 'development' or 'production'", s)
	}
}

func (e Environment) IsProduction() bool {
	return e == ProductionEnv
}

func (e Environment) IsDevelopment() bool {
	return e == DevelopmentEnv
}

// LogLevel is the global zerolog level used by every binary
func (e Environment) LogLevel() zerolog.Level {
	if e.IsDevelopment() {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}
