package types

import (
	"fmt"
	"strings"
)

// Strategy decide qué hacer cuando el nombre de un realm del bundle ya existe.
type Strategy string

const (
	// StrategyFail reporta el choque como conflicto (valor cero).
	StrategyFail Strategy = ""
	// StrategyIgnoreExisting deja el realm existente intacto y saltea el bundle.
	StrategyIgnoreExisting Strategy = "IGNORE_EXISTING"
	// StrategyOverwriteExisting borra el realm existente y luego importa.
	StrategyOverwriteExisting Strategy = "OVERWRITE_EXISTING"
)

// ParseStrategy acepta los nombres canónicos sin distinguir mayúsculas.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "FAIL":
		return StrategyFail, nil
	case string(StrategyIgnoreExisting):
		return StrategyIgnoreExisting, nil
	case string(StrategyOverwriteExisting):
		return StrategyOverwriteExisting, nil
	}
	return StrategyFail, fmt.Errorf("unknown import strategy %q", s)
}

func (s Strategy) String() string {
	if s == StrategyFail {
		return "FAIL"
	}
	return string(s)
}
