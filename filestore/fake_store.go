package filestore

import (
	"io"
	"io/ioutil"
	"sync"
)

// FakeFileStore keeps uploads in memory for tests.
type FakeFileStore struct {
	mu      sync.Mutex
	objects map[string][]byte

	UploadErr error
}

func NewFakeFileStore() *FakeFileStore {
	return &FakeFileStore{objects: make(map[string][]byte)}
}

func (f *FakeFileStore) Upload(path string, body io.Reader, contentType string) (string, error) {
	if f.UploadErr != nil {
		return "", f.UploadErr
	}
	data, err := ioutil.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[path] = data
	return path, nil
}

func (f *FakeFileStore) GetUrlFromKey(key string) string {
	return "https://fake.plateful.test/" + key
}

func (f *FakeFileStore) Object(key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	return data, ok
}
