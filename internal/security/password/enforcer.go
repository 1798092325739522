package password

import "sync"

// Enforcer combina la política de cada realm con la blacklist global y
// cachea las políticas ya parseadas.
type Enforcer struct {
	Blacklist *Blacklist
	Params    Params

	mu     sync.Mutex
	parsed map[string]Policy
}

func NewEnforcer(bl *Blacklist, params Params) *Enforcer {
	return &Enforcer{Blacklist: bl, Params: params, parsed: map[string]Policy{}}
}

// Check valida plain contra la política textual del realm.
func (e *Enforcer) Check(policy, plain string, who Subject) (ok bool, reasons []string, err error) {
	p, err := e.policy(policy)
	if err != nil {
		return false, nil, err
	}
	ok, reasons = p.Validate(plain, who)
	if e.Blacklist.Contains(plain) {
		reasons = append(reasons, "blacklisted")
		ok = false
	}
	return ok, reasons, nil
}

// Hash aplica los parámetros argon2id configurados.
func (e *Enforcer) Hash(plain string) (Hashed, error) {
	return Hash(e.Params, plain)
}

func (e *Enforcer) policy(s string) (Policy, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p, ok := e.parsed[s]; ok {
		return p, nil
	}
	p, err := ParsePolicy(s)
	if err != nil {
		return Policy{}, err
	}
	e.parsed[s] = p
	return p, nil
}
