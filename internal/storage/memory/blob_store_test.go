package memory

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte("<html>hull</html>")
	uri, err := store.PutObject(context.Background(), "pages/ab/abcd.html", "text/html", bytes.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, "memory://pages/ab/abcd.html", uri)

	payload[1] = 'X'
	got, ok := store.Object("pages/ab/abcd.html")
	require.True(t, ok)
	require.Equal(t, "<html>hull</html>", string(got))

	_, ok = store.Object("missing")
	require.False(t, ok)
}
