package pom

import (
	"bytes"
	"encoding/xml"
	"io"

	ierrors "github.com/relicta-tech/indra/internal/errors"
)

const (
	modelVersion = "4.0.0"
	pomNamespace = "http://maven.apache.org/POM/4.0.0"
)

// projectXML is the root element of a POM.
type projectXML struct {
	XMLName      xml.Name       `xml:"project"`
	Namespace    string         `xml:"xmlns,attr"`
	ModelVersion string         `xml:"modelVersion"`
	GroupID      string         `xml:"groupId"`
	ArtifactID   string         `xml:"artifactId"`
	VersionID    string         `xml:"version"`
	Name         string         `xml:"name,omitempty"`
	Description  string         `xml:"description,omitempty"`
	URL          string         `xml:"url,omitempty"`
	Licenses     *licensesXML   `xml:"licenses,omitempty"`
	SCM          *scmXML        `xml:"scm,omitempty"`
	Issues       *managementXML `xml:"issueManagement,omitempty"`
	CI           *managementXML `xml:"ciManagement,omitempty"`
}

type licensesXML struct {
	License []licenseXML `xml:"license"`
}

type licenseXML struct {
	Name string `xml:"name,omitempty"`
	URL  string `xml:"url,omitempty"`
}

type scmXML struct {
	Connection          string `xml:"connection,omitempty"`
	DeveloperConnection string `xml:"developerConnection,omitempty"`
	URL                 string `xml:"url,omitempty"`
}

type managementXML struct {
	System string `xml:"system,omitempty"`
	URL    string `xml:"url,omitempty"`
}

func newProjectXML(c Coordinates, m Metadata) projectXML {
	p := projectXML{
		Namespace:    pomNamespace,
		ModelVersion: modelVersion,
		GroupID:      c.GroupID,
		ArtifactID:   c.ArtifactID,
		VersionID:    c.Version,
		Name:         m.Name,
		Description:  m.Description,
		URL:          m.URL(),
	}
	if m.License != nil {
		p.Licenses = &licensesXML{License: []licenseXML{{Name: m.License.Name, URL: m.License.URL}}}
	}
	if m.SCM != nil {
		p.SCM = &scmXML{
			Connection:          m.SCM.Connection,
			DeveloperConnection: m.SCM.DeveloperConnection,
			URL:                 m.SCM.URL,
		}
	}
	if m.Issues != nil {
		p.Issues = &managementXML{System: m.Issues.System, URL: m.Issues.URL}
	}
	if m.CI != nil {
		p.CI = &managementXML{System: m.CI.System, URL: m.CI.URL}
	}
	return p
}

// Write encodes the POM for c and m to w.
func Write(w io.Writer, c Coordinates, m Metadata) error {
	const op = "pom.Write"

	if err := c.Validate(); err != nil {
		return err
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return ierrors.IOWrap(err, op, "failed to write xml header")
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(newProjectXML(c, m)); err != nil {
		return ierrors.IOWrap(err, op, "failed to encode pom")
	}
	if err := enc.Close(); err != nil {
		return ierrors.IOWrap(err, op, "failed to flush pom")
	}
	_, err := io.WriteString(w, "\n")
	if err != nil {
		return ierrors.IOWrap(err, op, "failed to write pom")
	}
	return nil
}

// Render returns the POM for c and m.
func Render(c Coordinates, m Metadata) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, c, m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
