package indexdb

import (
	_ "crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/hupe1980/indexdb/internal/errs"
	"github.com/opencontainers/go-digest"
	"lukechampine.com/blake3"
)

// contentHash returns the "<algorithm>:<hex>" digest of data.
func contentHash(alg HashAlgorithm, data []byte) (string, error) {
	switch alg {
	case HashSHA256, "":
		return digest.SHA256.FromBytes(data).String(), nil
	case HashBLAKE3:
		sum := blake3.Sum256(data)
		return string(HashBLAKE3) + ":" + hex.EncodeToString(sum[:]), nil
	default:
		return "", errs.Contractf("unknown hash algorithm %q", alg)
	}
}

// streamHash digests everything read from r.
func streamHash(alg HashAlgorithm, r io.Reader) (string, int64, error) {
	switch alg {
	case HashSHA256, "":
		digester := digest.SHA256.Digester()
		n, err := io.Copy(digester.Hash(), r)
		if err != nil {
			return "", n, err
		}
		return digester.Digest().String(), n, nil
	case HashBLAKE3:
		h := blake3.New(32, nil)
		n, err := io.Copy(h, r)
		if err != nil {
			return "", n, err
		}
		return string(HashBLAKE3) + ":" + hex.EncodeToString(h.Sum(nil)), n, nil
	default:
		return "", 0, errs.Contractf("unknown hash algorithm %q", alg)
	}
}

// verifyHash checks data against a digest produced by contentHash.
func verifyHash(want string, data []byte) error {
	alg, _, ok := strings.Cut(want, ":")
	if !ok {
		return errs.Corruptf("malformed content hash %q", want)
	}
	switch HashAlgorithm(alg) {
	case HashSHA256:
		d, err := digest.Parse(want)
		if err != nil {
			return errs.Corruptf("malformed content hash %q: %v", want, err)
		}
		v := d.Verifier()
		_, _ = v.Write(data)
		if !v.Verified() {
			return errs.Corruptf("content hash mismatch: want %s", want)
		}
		return nil
	case HashBLAKE3:
		got, _ := contentHash(HashBLAKE3, data)
		if got != want {
			return errs.Corruptf("content hash mismatch: want %s, got %s", want, got)
		}
		return nil
	default:
		return fmt.Errorf("%w: unsupported content hash algorithm %q", ErrCorruptData, alg)
	}
}
