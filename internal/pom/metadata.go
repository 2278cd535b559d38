// Package pom assembles the publication metadata of a Maven artifact and
// renders it as a POM document.
package pom

import (
	"fmt"
	"strings"

	ierrors "github.com/relicta-tech/indra/internal/errors"
)

// CI describes a continuous integration system.
type CI struct {
	System string `json:"system,omitempty"`
	URL    string `json:"url,omitempty"`
}

// Issues describes an issue tracker.
type Issues struct {
	System string `json:"system,omitempty"`
	URL    string `json:"url,omitempty"`
}

// License names the project license.
type License struct {
	Name string `json:"name,omitempty"`
	URL  string `json:"url,omitempty"`
}

// SCM describes where the sources live.
type SCM struct {
	Connection          string `json:"connection,omitempty"`
	DeveloperConnection string `json:"developer_connection,omitempty"`
	URL                 string `json:"url,omitempty"`
}

// Common licenses.
var (
	MITLicense     = License{Name: "MIT License", URL: "https://opensource.org/licenses/MIT"}
	Apache2License = License{Name: "Apache License, Version 2.0", URL: "https://opensource.org/licenses/Apache-2.0"}
	GPL3License    = License{Name: "GNU General Public License version 3", URL: "https://opensource.org/licenses/GPL-3.0"}
	LGPL3License   = License{Name: "GNU Lesser General Public License version 3", URL: "https://opensource.org/licenses/LGPL-3.0"}
)

var licensesByID = map[string]License{
	"mit":        MITLicense,
	"apache-2.0": Apache2License,
	"gpl-3.0":    GPL3License,
	"lgpl-3.0":   LGPL3License,
}

// LicenseByID returns a well-known license by its SPDX identifier.
func LicenseByID(id string) (License, bool) {
	l, ok := licensesByID[strings.ToLower(id)]
	return l, ok
}

// Metadata is the declarative project metadata published with each artifact.
// Nil sections are omitted from the POM.
type Metadata struct {
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	CI          *CI      `json:"ci,omitempty"`
	Issues      *Issues  `json:"issues,omitempty"`
	License     *License `json:"license,omitempty"`
	SCM         *SCM     `json:"scm,omitempty"`
}

// URL is the project URL. It follows the SCM URL.
func (m Metadata) URL() string {
	if m.SCM == nil {
		return ""
	}
	return m.SCM.URL
}

// Coordinates identify an artifact.
type Coordinates struct {
	GroupID    string `json:"group_id"`
	ArtifactID string `json:"artifact_id"`
	Version    string `json:"version"`
}

// String renders group:artifact:version.
func (c Coordinates) String() string {
	return fmt.Sprintf("%s:%s:%s", c.GroupID, c.ArtifactID, c.Version)
}

// Validate reports missing coordinate parts.
func (c Coordinates) Validate() error {
	const op = "pom.Coordinates.Validate"

	var missing []string
	if c.GroupID == "" {
		missing = append(missing, "group")
	}
	if c.ArtifactID == "" {
		missing = append(missing, "artifact")
	}
	if c.Version == "" {
		missing = append(missing, "version")
	}
	if len(missing) > 0 {
		return ierrors.Validation(op, "missing coordinates: "+strings.Join(missing, ", "))
	}
	return nil
}

// GitHub fills SCM and issue metadata for a GitHub-hosted project. When
// actions is true GitHub Actions is recorded as the CI system.
func (m *Metadata) GitHub(user, repo string, actions bool) {
	base := fmt.Sprintf("https://github.com/%s/%s", user, repo)
	m.SCM = &SCM{
		Connection:          "scm:git:" + base + ".git",
		DeveloperConnection: fmt.Sprintf("scm:git:ssh://git@github.com/%s/%s.git", user, repo),
		URL:                 base,
	}
	m.Issues = &Issues{System: "GitHub", URL: base + "/issues"}
	if actions {
		m.CI = &CI{System: "GitHub Actions", URL: base + "/actions"}
	}
}

// GitLab fills SCM and issue metadata for a GitLab-hosted project. When ci
// is true GitLab CI is recorded as the CI system.
func (m *Metadata) GitLab(user, repo string, ci bool) {
	base := fmt.Sprintf("https://gitlab.com/%s/%s", user, repo)
	m.SCM = &SCM{
		Connection:          "scm:git:" + base + ".git",
		DeveloperConnection: fmt.Sprintf("scm:git:ssh://git@gitlab.com/%s/%s.git", user, repo),
		URL:                 base,
	}
	m.Issues = &Issues{System: "GitLab", URL: base + "/-/issues"}
	if ci {
		m.CI = &CI{System: "GitLab CI", URL: base + "/-/pipelines"}
	}
}
