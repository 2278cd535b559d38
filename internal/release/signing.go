package release

// MustSign reports whether artifacts must be signed: always for releases, and
// for snapshots only when signing is forced.
func MustSign(forceSign bool, state State) bool {
	return forceSign || state == Release
}

// SigningGate evaluates MustSign lazily. The suppliers are called each time
// ShouldSign runs so that configuration applied after the gate was created,
// such as a late version change, is taken into account.
type SigningGate struct {
	forceSign func() bool
	state     func() State
}

// NewSigningGate creates a gate from the force-sign and release state suppliers.
func NewSigningGate(forceSign func() bool, state func() State) *SigningGate {
	return &SigningGate{forceSign: forceSign, state: state}
}

// ShouldSign reports whether the sign task should run now.
func (g *SigningGate) ShouldSign() bool {
	force := g.forceSign != nil && g.forceSign()
	state := Snapshot
	if g.state != nil {
		state = g.state()
	}
	return MustSign(force, state)
}
