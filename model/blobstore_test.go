package model

import (
	"errors"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestBlobStore(t *testing.T) *BlobStore {
	t.Helper()
	return NewBlobStore(t.TempDir(), []byte("blob-test-secret"))
}

func TestBlobStoreUploadOpenDelete(t *testing.T) {
	b := newTestBlobStore(t)
	content := "bulletin de paie mars 2026"
	if err := b.Upload("7/bulletin/2026/03_x.pdf", strings.NewReader(content), int64(len(content))); err != nil {
		t.Fatalf("upload: %v", err)
	}

	f, err := b.Open("7/bulletin/2026/03_x.pdf")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	got, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != content {
		t.Errorf("content round trip failed: %q", got)
	}

	used, err := b.UsedBytes(7)
	if err != nil {
		t.Fatalf("used bytes: %v", err)
	}
	if used != int64(len(content)) {
		t.Errorf("used = %d, want %d", used, len(content))
	}

	if err := b.Delete("7/bulletin/2026/03_x.pdf"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := b.Open("7/bulletin/2026/03_x.pdf"); err == nil {
		t.Error("open after delete should fail")
	}
	// A second delete is not an error.
	if err := b.Delete("7/bulletin/2026/03_x.pdf"); err != nil {
		t.Errorf("delete missing blob: %v", err)
	}
}

func TestBlobStoreContainsTraversal(t *testing.T) {
	basedir := t.TempDir()
	b := NewBlobStore(basedir, []byte("blob-test-secret"))

	// Leading .. segments are stripped, the blob always lands under the
	// store root instead of escaping it.
	if err := b.Upload("../../escape.txt", strings.NewReader("x"), 1); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if _, err := os.Stat(filepath.Join(basedir, "escape.txt")); !os.IsNotExist(err) {
		t.Errorf("blob escaped the store root (stat err %v)", err)
	}
	if _, err := os.Stat(filepath.Join(basedir, "documents", "escape.txt")); err != nil {
		t.Errorf("sanitized blob missing: %v", err)
	}
}

func TestBlobStoreQuota(t *testing.T) {
	b := newTestBlobStore(t)
	err := b.Upload("7/contrat/gros.pdf", strings.NewReader("x"), MaxQuota+1)
	if !errors.Is(err, ErrQuotaDepassee) {
		t.Errorf("over quota: got %v, want ErrQuotaDepassee", err)
	}
	// The quota is per client directory, another client is unaffected.
	if err := b.Upload("8/contrat/ok.pdf", strings.NewReader("ok"), 2); err != nil {
		t.Errorf("other client upload: %v", err)
	}
}

func TestSignedURLRoundTrip(t *testing.T) {
	b := newTestBlobStore(t)
	path := "7/bulletin/2026/03_x.pdf"

	u, err := url.Parse(b.SignedURL(path, time.Hour))
	if err != nil {
		t.Fatalf("parse signed url: %v", err)
	}
	if !strings.HasPrefix(u.Path, "/documents/blob/") {
		t.Fatalf("unexpected url path %q", u.Path)
	}
	exp := u.Query().Get("exp")
	sig := u.Query().Get("sig")

	if err := b.VerifySignedPath(path, exp, sig); err != nil {
		t.Errorf("valid signature rejected: %v", err)
	}
	if err := b.VerifySignedPath("7/contrat/autre.pdf", exp, sig); !errors.Is(err, ErrLienExpire) {
		t.Errorf("signature for another path accepted: %v", err)
	}
	tampered := sig[:len(sig)-1] + "0"
	if strings.HasSuffix(sig, "0") {
		tampered = sig[:len(sig)-1] + "1"
	}
	if err := b.VerifySignedPath(path, exp, tampered); !errors.Is(err, ErrLienExpire) {
		t.Errorf("tampered signature accepted: %v", err)
	}
	if err := b.VerifySignedPath(path, "not-a-number", sig); !errors.Is(err, ErrLienExpire) {
		t.Errorf("garbage expiry accepted: %v", err)
	}
}

func TestSignedURLExpiry(t *testing.T) {
	b := newTestBlobStore(t)
	path := "7/bulletin/2026/03_x.pdf"

	u, err := url.Parse(b.SignedURL(path, -time.Minute))
	if err != nil {
		t.Fatalf("parse signed url: %v", err)
	}
	err = b.VerifySignedPath(path, u.Query().Get("exp"), u.Query().Get("sig"))
	if !errors.Is(err, ErrLienExpire) {
		t.Errorf("expired link accepted: %v", err)
	}
}
