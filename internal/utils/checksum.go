package utils

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"
)

// FileDigest is the size and MD5 digest of an archive, as advertised to
// devices so they can verify downloads
type FileDigest struct {
	MD5  string
	Size int64
}

// DigestFile streams the file at path through MD5
func DigestFile(path string) (*FileDigest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	h := md5.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return nil, err
	}

	return &FileDigest{
		MD5:  hex.EncodeToString(h.Sum(nil)),
		Size: size,
	}, nil
}

// MD5Hex returns the lowercase hex MD5 digest of data
func MD5Hex(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}
