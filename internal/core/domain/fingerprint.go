package domain

import (
	"encoding/binary"
	"hash"

	"github.com/opencontainers/go-digest"
)

// ComputeFingerprint derives the fingerprint of the snapshot produced by applying step on
// top of the snapshot identified by parent.
//
// The fingerprint covers the parent fingerprint, the step kind, every payload field, the
// step-scoped working directory and environment overrides, and sourceHash, which callers
// set to the hash of the copied tree for copy steps and leave empty otherwise.
// The step index and timeout do not participate.
func ComputeFingerprint(parent digest.Digest, step Step, sourceHash string) digest.Digest {
	d := digest.Canonical.Digester()
	h := d.Hash()

	writeField(h, string(parent))
	writeField(h, string(step.Kind))

	p := step.Payload
	writeField(h, p.Text)
	writeField(h, p.Manifest)
	writeField(h, p.Key)
	writeField(h, p.Value)
	writeField(h, p.Source)
	writeField(h, p.Destination)
	writeCount(h, len(p.Exclude))
	for _, ex := range p.Exclude {
		writeField(h, ex)
	}

	writeField(h, step.Workdir)
	writeCount(h, len(step.Env))
	for _, v := range step.Env {
		writeField(h, v.Key)
		writeField(h, v.Value)
	}

	writeField(h, sourceHash)

	return d.Digest()
}

// writeField writes s with a length prefix, so no byte sequence inside a field can
// shift the boundary to the next one.
func writeField(h hash.Hash, s string) {
	writeCount(h, len(s))
	_, _ = h.Write([]byte(s))
}

func writeCount(h hash.Hash, n int) {
	_ = binary.Write(h, binary.LittleEndian, uint64(n)) //nolint:gosec // Lengths are never negative
}
