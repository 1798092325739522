package password

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Policy es la política de passwords de un realm. Los contadores en cero no
// se verifican.
type Policy struct {
	MinLength    int
	MaxLength    int
	MinUpper     int
	MinLower     int
	MinDigits    int
	MinSpecial   int
	NotUsername  bool
	NotEmail     bool
	HashAlgoHint string
}

// ParsePolicy interpreta la notación de realm:
//
//	length(8) and upperCase(1) and digits(2) and notUsername
//
// Un nombre sin paréntesis usa su valor por defecto (1, o 8 para length).
// Reglas desconocidas son error.
func ParsePolicy(s string) (Policy, error) {
	var p Policy
	s = strings.TrimSpace(s)
	if s == "" {
		return p, nil
	}
	for _, raw := range strings.Split(s, " and ") {
		name, arg, err := splitRule(strings.TrimSpace(raw))
		if err != nil {
			return Policy{}, err
		}
		n := func(def int) (int, error) {
			if arg == "" {
				return def, nil
			}
			v, err := strconv.Atoi(arg)
			if err != nil || v < 0 {
				return 0, fmt.Errorf("password policy: invalid value %q for %s", arg, name)
			}
			return v, nil
		}
		switch name {
		case "length":
			p.MinLength, err = n(8)
		case "maxLength":
			p.MaxLength, err = n(64)
		case "upperCase":
			p.MinUpper, err = n(1)
		case "lowerCase":
			p.MinLower, err = n(1)
		case "digits":
			p.MinDigits, err = n(1)
		case "specialChars":
			p.MinSpecial, err = n(1)
		case "notUsername":
			p.NotUsername = true
		case "notEmail":
			p.NotEmail = true
		case "hashAlgorithm":
			p.HashAlgoHint = arg
		case "hashIterations", "passwordHistory", "forceExpiredPasswordChange":
			// sin efecto en la validación del valor
		default:
			return Policy{}, fmt.Errorf("password policy: unknown rule %q", name)
		}
		if err != nil {
			return Policy{}, err
		}
	}
	return p, nil
}

func splitRule(r string) (name, arg string, err error) {
	open := strings.IndexByte(r, '(')
	if open < 0 {
		return r, "", nil
	}
	if !strings.HasSuffix(r, ")") {
		return "", "", fmt.Errorf("password policy: unbalanced rule %q", r)
	}
	return r[:open], strings.TrimSpace(r[open+1 : len(r)-1]), nil
}

// Subject son los datos del titular que algunas reglas comparan.
type Subject struct {
	Username string
	Email    string
}

// Validate retorna ok=false y las razones cuando s no cumple la política.
func (p Policy) Validate(s string, who Subject) (ok bool, reasons []string) {
	length := len([]rune(s))
	if p.MinLength > 0 && length < p.MinLength {
		reasons = append(reasons, fmt.Sprintf("too_short(min %d)", p.MinLength))
	}
	if p.MaxLength > 0 && length > p.MaxLength {
		reasons = append(reasons, fmt.Sprintf("too_long(max %d)", p.MaxLength))
	}
	var upper, lower, digits, special int
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper++
		case unicode.IsLower(r):
			lower++
		case unicode.IsDigit(r):
			digits++
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special++
		}
	}
	if upper < p.MinUpper {
		reasons = append(reasons, "missing_upper")
	}
	if lower < p.MinLower {
		reasons = append(reasons, "missing_lower")
	}
	if digits < p.MinDigits {
		reasons = append(reasons, "missing_digit")
	}
	if special < p.MinSpecial {
		reasons = append(reasons, "missing_symbol")
	}
	if p.NotUsername && who.Username != "" && strings.EqualFold(s, who.Username) {
		reasons = append(reasons, "equals_username")
	}
	if p.NotEmail && who.Email != "" && strings.EqualFold(s, who.Email) {
		reasons = append(reasons, "equals_email")
	}
	return len(reasons) == 0, reasons
}
