// utils/merkle.go
package utils

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// AnswerLeaf deterministically encodes a (questionId, answerIndex) pair and
// hashes it into a tree leaf. The encoding is the question id, a ':'
// separator, and the answer index in decimal ASCII, double-sha256'd.
func AnswerLeaf(questionID string, answerIndex int) []byte {
	return hashSum([]byte(fmt.Sprintf("%s:%d", questionID, answerIndex)))
}

// HashPair combines two sibling digests into their parent. The pair is
// normalized smaller-first so the same leaf set always yields the same root
// regardless of insertion order.
func HashPair(a, b []byte) []byte {
	if bytes.Compare(a, b) > 0 {
		a, b = b, a
	}
	joined := make([]byte, 0, len(a)+len(b))
	joined = append(joined, a...)
	joined = append(joined, b...)
	return hashSum(joined)
}

// VerifyProof folds a membership proof over a leaf and reports whether the
// result equals the expected root. An empty proof proves membership only of
// a single-leaf tree whose root is the leaf itself.
func VerifyProof(proof [][]byte, root, leaf []byte) bool {
	computed := leaf
	for _, sibling := range proof {
		computed = HashPair(computed, sibling)
	}
	return bytes.Equal(computed, root)
}

// DecodeRoot parses a 64-char hex digest into its 32 raw bytes.
func DecodeRoot(s string) ([]byte, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("merkle root is not valid hex: %w", err)
	}
	if len(raw) != sha256.Size {
		return nil, fmt.Errorf("merkle root must be %d bytes, got %d", sha256.Size, len(raw))
	}
	return raw, nil
}

// DecodeProof parses a hex-encoded proof path.
func DecodeProof(nodes []string) ([][]byte, error) {
	proof := make([][]byte, 0, len(nodes))
	for i, n := range nodes {
		raw, err := hex.DecodeString(n)
		if err != nil {
			return nil, fmt.Errorf("proof node %d is not valid hex: %w", i, err)
		}
		if len(raw) != sha256.Size {
			return nil, fmt.Errorf("proof node %d must be %d bytes, got %d", i, sha256.Size, len(raw))
		}
		proof = append(proof, raw)
	}
	return proof, nil
}

// hashSum is double sha256, matching the hashing used for tree construction
// by the offline answer-tree tool.
func hashSum(data []byte) []byte {
	first := sha256.Sum256(data)
	second := sha256.Sum256(first[:])
	return second[:]
}
