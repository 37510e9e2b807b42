package chunkfmt

import "golang.org/x/crypto/blake2b"

// ComputeBuildHash derives the content-addressing hash for c: a BLAKE2b-256
// digest of c's canonical encoding with the build_hash TLV itself excluded,
// so the hash never depends on a previously stored hash value. Callers use
// it both to stamp a freshly authored chunk's BuildHash and to verify a
// loaded chunk's BuildHash still matches its bytes.
func ComputeBuildHash(c *Chunk) []byte {
	stripped := *c
	stripped.BuildHash = nil
	sum := blake2b.Sum256(Encode(Canonicalize(&stripped)))
	return sum[:]
}
