// Package cachekey derives deterministic cache keys from document content.
package cachekey

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"

	"golang.org/x/crypto/sha3"

	"github.com/hyperjump/tameru/internal/models"
)

// Algorithm is the hash algorithm tag for keys produced by Derive.
const Algorithm = "shake256"

// LegacyAlgorithm is the hash algorithm tag for keys produced by DeriveLegacy.
const LegacyAlgorithm = "md5"

// keyBytes is the digest length drawn from SHAKE256; keys are 2*keyBytes hex chars.
const keyBytes = 16

// Derive returns the cache key for the file at path: SHAKE256 over the full
// byte content followed by the decimal byte size, truncated to a fixed hex
// length. The key is stable across renames and moves but changes with any
// content change. Same file content always yields the same key.
func Derive(path string) (string, error) {
	content, err := readSource(path)
	if err != nil {
		return "", err
	}
	return FromBytes(content), nil
}

// FromBytes returns the cache key for already-read content.
func FromBytes(content []byte) string {
	h := sha3.NewShake256()
	h.Write(content)
	h.Write([]byte(strconv.Itoa(len(content))))
	sum := make([]byte, keyBytes)
	h.Read(sum)
	return hex.EncodeToString(sum)
}

// DeriveLegacy returns the key under the previous scheme (MD5 over content
// only). Used solely to locate caches written before the SHAKE256 scheme.
func DeriveLegacy(path string) (string, error) {
	content, err := readSource(path)
	if err != nil {
		return "", err
	}
	return LegacyFromBytes(content), nil
}

// LegacyFromBytes returns the legacy key for already-read content.
func LegacyFromBytes(content []byte) string {
	sum := md5.Sum(content)
	return hex.EncodeToString(sum[:])
}

// readSource reads the file, mapping failures onto the error taxonomy:
// a missing file is SourceNotFound, anything else is SourceUnreadable.
func readSource(path string) ([]byte, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", models.ErrSourceNotFound, path)
		}
		return nil, fmt.Errorf("%w: %s: %v", models.ErrSourceUnreadable, path, err)
	}
	return content, nil
}
