package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStoreOpenLazy(t *testing.T) {
	assert := assert.New(t)
	s := NewStore()

	_, ok := s.Get("dynamic-v1")
	assert.False(ok)

	b := s.Open("dynamic-v1")
	assert.Equal("dynamic-v1", b.Name())

	again := s.Open("dynamic-v1")
	assert.Same(b, again)
}

func TestStoreSweep(t *testing.T) {
	assert := assert.New(t)
	s := NewStore()
	for _, name := range []string{"static-v1", "dynamic-v1", "static-v2", "dynamic-v2"} {
		s.Open(name)
	}

	keep := []string{"static-v2", "dynamic-v2"}
	s.Sweep(keep)

	names := s.Names()
	assert.ElementsMatch(keep, names)
	for _, name := range keep {
		_, ok := s.Get(name)
		assert.True(ok)
	}
	_, ok := s.Get("static-v1")
	assert.False(ok)
	_, ok = s.Get("dynamic-v1")
	assert.False(ok)
}

func TestStoreAdoptReplaces(t *testing.T) {
	assert := assert.New(t)
	s := NewStore()

	old := s.Open("static-v1")
	old.Put("/", StoredResponse{Status: 200, Body: []byte("old shell")})

	staged := NewBucket("static-v1")
	staged.Put("/", StoredResponse{Status: 200, Body: []byte("new shell")})
	s.Adopt(staged)

	b, ok := s.Get("static-v1")
	assert.True(ok)
	got, err := b.Match("/")
	assert.NoError(err)
	assert.Equal([]byte("new shell"), got.Body)
}
