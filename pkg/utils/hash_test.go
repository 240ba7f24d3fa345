package utils

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSumSHA256(t *testing.T) {
	whole := SumSHA256([]byte("owner-idfile-bytes"))
	chunked := SumSHA256([]byte("owner-id"), []byte("file-bytes"))
	require.Equal(t, whole, chunked, "chunked input hashes like its concatenation")

	require.Equal(t, sha256.Sum256([]byte("abc")), SumSHA256([]byte("abc")))
	require.NotEqual(t, SumSHA256([]byte("a"), []byte("bc")), SumSHA256([]byte("ab"), []byte("c"), []byte("x")))
}
