package domain

import (
	"regexp"
	"strings"

	"go.trai.ch/zerr"
)

const (
	// ScratchImage is the reserved reference for an empty base filesystem.
	ScratchImage = "scratch"

	// DefaultImageTag is used when a reference carries no tag.
	DefaultImageTag = "latest"
)

var (
	imageNamePattern = regexp.MustCompile(`^[a-z0-9]+(?:[._-][a-z0-9]+)*(?:/[a-z0-9]+(?:[._-][a-z0-9]+)*)*$`)
	imageTagPattern  = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.-]{0,127}$`)
)

// ImageRef is a parsed base image reference of the form name[:tag].
type ImageRef struct {
	Name string
	Tag  string
}

// ParseImageRef parses ref, applying DefaultImageTag when no tag is given.
func ParseImageRef(ref string) (ImageRef, error) {
	name, tag := ref, DefaultImageTag
	if i := strings.LastIndex(ref, ":"); i > strings.LastIndex(ref, "/") {
		name, tag = ref[:i], ref[i+1:]
	}
	if !imageNamePattern.MatchString(name) || !imageTagPattern.MatchString(tag) {
		return ImageRef{}, zerr.With(ErrInvalidImageReference, "ref", ref)
	}
	return ImageRef{Name: name, Tag: tag}, nil
}

// IsScratch reports whether the reference names the empty image.
func (r ImageRef) IsScratch() bool {
	return r.Name == ScratchImage
}

// String returns the canonical name:tag form.
func (r ImageRef) String() string {
	return r.Name + ":" + r.Tag
}
