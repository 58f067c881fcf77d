package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectName(t *testing.T) {
	hash := "0123456789abcdef0123456789abcdef"
	assert.Equal(t, "0123456789abcdef_statement.pdf", ObjectName(hash, "statement.pdf"))
	assert.Equal(t, "0123456789abcdef_My_Statement_2025_.pdf", ObjectName(hash, "../../My Statement (2025).pdf"))
	assert.Equal(t, "abc_upload", ObjectName("abc", ""))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "passwd", SanitizeFilename("/etc/passwd"))
	assert.Equal(t, "shot.png", SanitizeFilename(`C:\Users\me\shot.png`))
	assert.Equal(t, "upload", SanitizeFilename(".."))
}

func TestLocalSaveAndOpen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	store := NewLocal(dir)

	ref, err := store.Save(context.Background(), "abcd_receipt.png", []byte("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "abcd_receipt.png", ref)

	onDisk, err := os.ReadFile(filepath.Join(dir, ref))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(onDisk))

	data, err := store.Open(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
}

func TestLocalOpenMissing(t *testing.T) {
	store := NewLocal(t.TempDir())
	_, err := store.Open(context.Background(), "nope.pdf")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Open(context.Background(), "../secret")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestParseGCSURI(t *testing.T) {
	bucket, object, err := ParseGCSURI("gs://statements/2025/01/abc_statement.pdf")
	require.NoError(t, err)
	assert.Equal(t, "statements", bucket)
	assert.Equal(t, "2025/01/abc_statement.pdf", object)

	_, _, err = ParseGCSURI("s3://bucket/key")
	assert.Error(t, err)
	_, _, err = ParseGCSURI("gs://bucket")
	assert.Error(t, err)
}
