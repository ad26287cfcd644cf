package release

import (
	"fmt"
	"strings"

	"jfx/internal/platform"
)

// Kind is one of the JavaFX modules that together form a release
type Kind string

const (
	Base     Kind = "base"
	Graphics Kind = "graphics"
	Controls Kind = "controls"
	Media    Kind = "media"
)

// Kinds is the fixed set of modules required for a complete release
var Kinds = []Kind{Base, Graphics, Controls, Media}

const (
	artifactPrefix = "javafx-"
	jarExt         = ".jar"
)

// ParseKind returns the kind named by s ("base" or "javafx-base")
func ParseKind(s string) (Kind, bool) {
	s = strings.TrimPrefix(s, artifactPrefix)
	for _, k := range Kinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// ArtifactID returns the Maven artifact id, e.g. "javafx-base"
func (k Kind) ArtifactID() string { return artifactPrefix + string(k) }

// Artifact identifies one downloadable file: a kind of a release built for a classifier
type Artifact struct {
	Release    ID
	Kind       Kind
	Classifier platform.Classifier
}

// FileName is the name used both remotely and in the local store:
// javafx-<kind>-<release>-<classifier>.jar
func (a Artifact) FileName() string {
	return fmt.Sprintf("%s-%s-%s%s", a.Kind.ArtifactID(), a.Release, a.Classifier, jarExt)
}

func (a Artifact) String() string {
	return strings.TrimSuffix(a.FileName(), jarExt)
}

// ArtifactsFor lists every artifact of a release for one classifier
func ArtifactsFor(id ID, classifier platform.Classifier) []Artifact {
	artifacts := make([]Artifact, 0, len(Kinds))
	for _, k := range Kinds {
		artifacts = append(artifacts, Artifact{Release: id, Kind: k, Classifier: classifier})
	}
	return artifacts
}

// ParseFileName reverses FileName for the given classifier. It fails for
// files of another classifier, unknown kinds, or unparseable releases.
func ParseFileName(name string, classifier platform.Classifier) (Artifact, bool) {
	tail := "-" + string(classifier) + jarExt
	if classifier == platform.Unsupported || !strings.HasPrefix(name, artifactPrefix) || !strings.HasSuffix(name, tail) {
		return Artifact{}, false
	}

	middle := strings.TrimSuffix(strings.TrimPrefix(name, artifactPrefix), tail)
	kindName, version, ok := strings.Cut(middle, "-")
	if !ok {
		return Artifact{}, false
	}
	kind, ok := ParseKind(kindName)
	if !ok {
		return Artifact{}, false
	}
	id, err := Parse(version)
	if err != nil {
		return Artifact{}, false
	}
	return Artifact{Release: id, Kind: kind, Classifier: classifier}, true
}
