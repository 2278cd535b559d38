// Package publish decides which declared remote repositories the current
// build may publish to.
package publish

import (
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/relicta-tech/indra/internal/release"
)

// RemoteRepository is a Maven repository declared by the build.
type RemoteRepository struct {
	// Name identifies the repository and prefixes its credential properties.
	Name string `json:"name" yaml:"name"`
	// URL is the repository location.
	URL string `json:"url" yaml:"url"`
	// Releases is true if the repository accepts release versions.
	Releases bool `json:"releases" yaml:"releases"`
	// Snapshots is true if the repository accepts snapshot versions.
	Snapshots bool `json:"snapshots" yaml:"snapshots"`
}

// UsernameProperty returns the property naming this repository's username.
func (r RemoteRepository) UsernameProperty() string {
	return r.Name + "Username"
}

// PasswordProperty returns the property naming this repository's password.
func (r RemoteRepository) PasswordProperty() string {
	return r.Name + "Password"
}

// Credentials records which credential properties are present for a repository.
type Credentials struct {
	Username bool
	Password bool
}

// Complete reports whether both username and password are present.
func (c Credentials) Complete() bool {
	return c.Username && c.Password
}

// Decision is the outcome of an eligibility check.
type Decision struct {
	Repository string `json:"repository"`
	Eligible   bool   `json:"eligible"`
	Reason     string `json:"reason"`
}

// Eligible decides whether the build may publish to repo. Missing credentials
// are a hard gate checked first; after that the repository must accept the
// current release state.
func Eligible(repo RemoteRepository, state release.State, creds Credentials) Decision {
	d := Decision{Repository: repo.Name}
	switch {
	case !creds.Complete():
		d.Reason = "username or password was not set"
	case state == release.Release && repo.Releases:
		d.Eligible = true
		d.Reason = "it accepts releases and this project is in a release state"
	case state == release.Snapshot && repo.Snapshots:
		d.Eligible = true
		d.Reason = "it accepts snapshots and this project is in a snapshot state"
	default:
		d.Reason = "release/snapshot constraint not met"
	}
	return d
}

// Log writes the decision at info level.
func (d Decision) Log(logger *log.Logger) {
	if logger == nil {
		return
	}
	verb := "skipping"
	if d.Eligible {
		verb = "adding"
	}
	logger.Info(fmt.Sprintf("indra-publishing: %s repository %s because %s", verb, d.Repository, d.Reason),
		"repository", d.Repository, "eligible", d.Eligible)
}

func discardLogger() *log.Logger {
	return log.New(io.Discard)
}
