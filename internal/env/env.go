package env

import (
	"os"
	"strings"
)

type Var map[string]string

// Env resolves ${VAR} references in configuration values. Variables set on
// the Env win over the process environment.
type Env struct {
	Var Var // explicit variables (K->V)
	env Var // cached base from OS environment
}

func New() *Env {
	return &Env{
		Var: make(Var),
	}
}

// FromOS caches the current process environment as the base.
func (e *Env) FromOS() {
	base := make(Var)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i > 0 {
			base[kv[:i]] = kv[i+1:]
		}
	}
	e.env = base
}

// WithSet returns a copy of e with K=V set.
func (e *Env) WithSet(k, v string) *Env {
	n := &Env{Var: make(Var, len(e.Var)+1), env: e.env}
	for key, val := range e.Var {
		n.Var[key] = val
	}
	if k != "" {
		n.Var[k] = v
	}
	return n
}

// Lookup returns the value of k from the explicit variables, then the OS.
func (e *Env) Lookup(k string) (string, bool) {
	if v, ok := e.Var[k]; ok {
		return v, true
	}
	if e.env == nil {
		e.FromOS()
	}
	v, ok := e.env[k]
	return v, ok
}

// Expand replaces every ${VAR} in s. Unknown variables and unterminated
// references are left as written; replaced text is not expanded again.
func (e *Env) Expand(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	var b strings.Builder
	for {
		i := strings.Index(s, "${")
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		j := strings.IndexByte(s[i+2:], '}')
		if j < 0 {
			b.WriteString(s)
			return b.String()
		}
		name := s[i+2 : i+2+j]
		b.WriteString(s[:i])
		if v, ok := e.Lookup(name); ok && name != "" {
			b.WriteString(v)
		} else {
			b.WriteString(s[i : i+3+j])
		}
		s = s[i+3+j:]
	}
}

// ExpandAll expands each pointed-to string in place.
func (e *Env) ExpandAll(fields ...*string) {
	for _, f := range fields {
		*f = e.Expand(*f)
	}
}
