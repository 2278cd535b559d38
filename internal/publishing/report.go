package publishing

import (
	"context"

	"github.com/relicta-tech/indra/internal/pom"
	"github.com/relicta-tech/indra/internal/publish"
	"github.com/relicta-tech/indra/internal/release"
	"github.com/relicta-tech/indra/internal/toolchain"
)

// GitInfo is the git metadata of a project. Absent values are empty.
type GitInfo struct {
	Present   bool   `json:"present"`
	Commit    string `json:"commit,omitempty"`
	Branch    string `json:"branch,omitempty"`
	TagAtHead string `json:"tag_at_head,omitempty"`
	Describe  string `json:"describe,omitempty"`
	Tags      int    `json:"tags"`
}

// Report summarizes the resolved settings of a build.
type Report struct {
	Invocation  string             `json:"invocation"`
	Project     pom.Coordinates    `json:"project"`
	State       release.State      `json:"state"`
	MustSign    bool               `json:"must_sign"`
	Toolchain   toolchain.Summary  `json:"toolchain"`
	Decisions   []publish.Decision `json:"decisions"`
	Git         GitInfo            `json:"git"`
	RequireTag  bool               `json:"require_tag_for_release"`
	PublishWith []string           `json:"publish_tasks"`
}

// GitInfo queries the project's git metadata.
func (b *Build) GitInfo() GitInfo {
	p := b.git
	info := GitInfo{Present: p.Present()}
	if !info.Present {
		return info
	}
	if hash, ok := p.Commit(); ok {
		info.Commit = hash.String()
	}
	if branch, ok := p.BranchName(); ok {
		info.Branch = branch
	}
	if tag, ok := p.TagAtHead(); ok {
		info.TagAtHead = tag.Name().Short()
	}
	if describe, ok := p.Describe(); ok {
		info.Describe = describe
	}
	info.Tags = len(p.Tags())
	return info
}

// Report resolves the toolchain against the runtime reported by probe.
func (b *Build) Report(ctx context.Context, probe toolchain.RuntimeProbe) (Report, error) {
	runtime, err := probe(ctx)
	if err != nil {
		return Report{}, err
	}

	var publishTasks []string
	for _, repo := range b.Targets() {
		publishTasks = append(publishTasks, PublishTaskName(repo.Name))
	}

	return Report{
		Invocation:  b.invocation,
		Project:     b.project.Coordinates(),
		State:       b.State(),
		MustSign:    b.ShouldSign(),
		Toolchain:   b.versions.Summarize(runtime),
		Decisions:   b.Decisions(),
		Git:         b.GitInfo(),
		RequireTag:  b.requireTag,
		PublishWith: publishTasks,
	}, nil
}
