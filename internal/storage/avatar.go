package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// MaxAvatarSize caps uploaded avatars at 2 MiB.
const MaxAvatarSize = 2 << 20

var (
	ErrAvatarTooLarge      = errors.New("avatar exceeds size limit")
	ErrAvatarEmpty         = errors.New("avatar is empty")
	ErrAvatarUnsupported   = errors.New("avatar must be a png, jpeg or gif image")
	allowedAvatarMIMETypes = map[string]bool{
		"image/png":  true,
		"image/jpeg": true,
		"image/gif":  true,
	}
)

// Avatars stores profile pictures under content-addressed keys.
type Avatars struct {
	backend ObjectStorage
}

func NewAvatars(backend ObjectStorage) *Avatars {
	return &Avatars{backend: backend}
}

// AvatarKey is the object key for an avatar: avatars/<accountID>/<sha256>.
func AvatarKey(accountID string, data []byte) string {
	sum := sha256.Sum256(data)
	return fmt.Sprintf("avatars/%s/%s", accountID, hex.EncodeToString(sum[:]))
}

// Save validates data and stores it. It returns the new key.
func (a *Avatars) Save(ctx context.Context, accountID string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrAvatarEmpty
	}
	if len(data) > MaxAvatarSize {
		return "", ErrAvatarTooLarge
	}
	contentType := http.DetectContentType(data)
	if !allowedAvatarMIMETypes[contentType] {
		return "", ErrAvatarUnsupported
	}

	key := AvatarKey(accountID, data)
	if err := a.backend.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return "", fmt.Errorf("put avatar: %w", err)
	}
	return key, nil
}

// Load reads the avatar stored under key and sniffs its content type.
func (a *Avatars) Load(ctx context.Context, key string) ([]byte, string, error) {
	rc, err := a.backend.Get(ctx, key)
	if err != nil {
		return nil, "", err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, MaxAvatarSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("read avatar: %w", err)
	}
	return data, http.DetectContentType(data), nil
}

// Delete removes a previous avatar. An empty key is a no-op.
func (a *Avatars) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	return a.backend.Delete(ctx, key)
}
