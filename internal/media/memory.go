package media

import (
	"bytes"
	"context"
	"io"
	"sync"
)

// Memory keeps uploads in process and serves them under BaseURL.
type Memory struct {
	BaseURL string

	mu      sync.Mutex
	objects map[string]Object
}

// Object is one stored upload.
type Object struct {
	ContentType string
	Data        []byte
}

// NewMemory returns an uploader whose URLs start with baseURL.
func NewMemory(baseURL string) *Memory {
	if baseURL == "" {
		baseURL = "memory://media"
	}
	return &Memory{BaseURL: baseURL, objects: make(map[string]Object)}
}

func (m *Memory) Upload(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	if err := CheckImage(contentType); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key := ObjectKey(name, contentType)

	m.mu.Lock()
	m.objects[key] = Object{ContentType: contentType, Data: buf.Bytes()}
	m.mu.Unlock()

	return m.BaseURL + "/" + key, nil
}

func (m *Memory) PublicBase() string { return m.BaseURL }

// Len reports how many objects have been uploaded.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
