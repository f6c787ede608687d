package model

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// MaxQuota is the storage ceiling per client directory, 50 MB.
const MaxQuota = 50 * 1024 * 1024

var (
	ErrQuotaDepassee  = fmt.Errorf("quota de stockage dépassé")
	ErrLienExpire     = fmt.Errorf("lien de téléchargement expiré ou invalide")
	ErrCheminInvalide = fmt.Errorf("chemin invalide")
)

// BlobStore is a file-blob store addressed by slash-separated paths,
// rooted on disk under <basedir>/documents. Downloads go through
// time-limited signed URLs so documents are never served from a guessable
// location.
type BlobStore struct {
	root   string
	secret []byte
}

func NewBlobStore(basedir string, secret []byte) *BlobStore {
	return &BlobStore{
		root:   filepath.Join(basedir, "documents"),
		secret: secret,
	}
}

// safeJoin makes sure path stays inside the store root (no path traversal).
func (b *BlobStore) safeJoin(name string) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(name))
	rel := strings.TrimPrefix(clean, string(os.PathSeparator))
	full := filepath.Join(b.root, rel)
	rootAbs, _ := filepath.Abs(b.root)
	fullAbs, _ := filepath.Abs(full)
	if !strings.HasPrefix(fullAbs, rootAbs+string(os.PathSeparator)) && fullAbs != rootAbs {
		return "", ErrCheminInvalide
	}
	return full, nil
}

// Upload writes one blob. The quota is enforced per top-level directory
// (one directory per client).
func (b *BlobStore) Upload(path string, r io.Reader, size int64) error {
	full, err := b.safeJoin(path)
	if err != nil {
		return err
	}
	clientDir := strings.SplitN(strings.TrimPrefix(filepath.ToSlash(path), "/"), "/", 2)[0]
	used, err := b.dirSize(filepath.Join(b.root, clientDir))
	if err != nil {
		return err
	}
	if used+size > MaxQuota {
		return ErrQuotaDepassee
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return err
	}
	dst, err := os.OpenFile(full, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, r); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

// Open returns a reader for the blob at path.
func (b *BlobStore) Open(path string) (*os.File, error) {
	full, err := b.safeJoin(path)
	if err != nil {
		return nil, err
	}
	return os.Open(full)
}

// Delete removes the blob at path. Missing blobs are not an error.
func (b *BlobStore) Delete(path string) error {
	full, err := b.safeJoin(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// SignedURL returns a relative download URL for the blob that expires after
// ttl. The signature binds the path and expiry together.
func (b *BlobStore) SignedURL(path string, ttl time.Duration) string {
	exp := time.Now().Add(ttl).Unix()
	sig := b.sign(path, exp)
	return fmt.Sprintf("/documents/blob/%s?exp=%d&sig=%s",
		url.PathEscape(filepath.ToSlash(path)), exp, sig)
}

// VerifySignedPath checks the signature and expiry produced by SignedURL.
func (b *BlobStore) VerifySignedPath(path string, expStr, sig string) error {
	exp, err := strconv.ParseInt(expStr, 10, 64)
	if err != nil {
		return ErrLienExpire
	}
	if time.Now().Unix() > exp {
		return ErrLienExpire
	}
	want := b.sign(path, exp)
	if !hmac.Equal([]byte(want), []byte(sig)) {
		return ErrLienExpire
	}
	return nil
}

func (b *BlobStore) sign(path string, exp int64) string {
	mac := hmac.New(sha256.New, b.secret)
	fmt.Fprintf(mac, "%s|%d", filepath.ToSlash(path), exp)
	return hex.EncodeToString(mac.Sum(nil))
}

// UsedBytes reports how much of the quota one client currently uses.
func (b *BlobStore) UsedBytes(clientID uint) (int64, error) {
	return b.dirSize(filepath.Join(b.root, fmt.Sprintf("%d", clientID)))
}

func (b *BlobStore) dirSize(dir string) (int64, error) {
	var size int64
	err := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			size += info.Size()
		}
		return nil
	})
	if os.IsNotExist(err) {
		return 0, nil
	}
	return size, err
}
