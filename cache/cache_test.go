package cache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type testJobInfo struct {
	VideoID int64
}

func TestStoreAndRetrieve(t *testing.T) {
	c := New[testJobInfo]()
	c.Store("video-42", testJobInfo{VideoID: 42})
	require.Equal(t, int64(42), c.Get("video-42").VideoID)
}

func TestStoreAndRemove(t *testing.T) {
	c := New[testJobInfo]()
	c.Store("video-42", testJobInfo{VideoID: 42})
	c.Remove("video-42")
	require.Zero(t, c.Get("video-42").VideoID)
	require.Empty(t, c.GetKeys())
}

func TestStoreIfAbsent(t *testing.T) {
	c := New[testJobInfo]()
	require.True(t, c.StoreIfAbsent("video-42", testJobInfo{VideoID: 42}))
	require.False(t, c.StoreIfAbsent("video-42", testJobInfo{VideoID: 42}))
	c.Remove("video-42")
	require.True(t, c.StoreIfAbsent("video-42", testJobInfo{VideoID: 42}))
}
