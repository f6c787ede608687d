package model

import (
	"fmt"
	"io"
	"path"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Document is the metadata row of one file stored for a client (bulletins,
// contrats, attestations...). The bytes themselves live in the blob store
// under CheminStorage.
type Document struct {
	gorm.Model
	ClientID      uint `gorm:"not null;index"`
	Client        Client
	NomFichier    string
	NomOriginal   string
	CheminStorage string `gorm:"uniqueIndex"`
	TailleOctets  int64
	TypeMime      string
	Extension     string
	TypeDocument  string // ex: bulletin, contrat, attestation, autre
	Annee         int
	Mois          int
	Description   string
	UploadedBy    string
}

// CheminDocument builds the storage path for a new upload:
// client_id/type[/annee]/nom. The object name carries a random component so
// two uploads of the same file never collide.
func CheminDocument(clientID uint, typeDocument string, annee, mois int, ext string) (chemin, nom string) {
	suffix := uuid.NewString()[:8]
	switch {
	case mois > 0 && annee > 0:
		nom = fmt.Sprintf("%02d_%s_%d_%s%s", mois, typeDocument, annee, suffix, ext)
	case annee > 0:
		nom = fmt.Sprintf("%s_%d_%s%s", typeDocument, annee, suffix, ext)
	default:
		nom = fmt.Sprintf("%s_%s%s", typeDocument, suffix, ext)
	}
	chemin = fmt.Sprintf("%d/%s", clientID, typeDocument)
	if annee > 0 {
		chemin = path.Join(chemin, fmt.Sprintf("%d", annee))
	}
	return path.Join(chemin, nom), nom
}

// StoreDocument uploads the blob and records the metadata row. When the
// database insert fails after a successful upload the blob is removed again
// (best effort) so no orphan bytes are left behind.
func (store *Store) StoreDocument(doc *Document, r io.Reader) error {
	if err := store.Blobs.Upload(doc.CheminStorage, r, doc.TailleOctets); err != nil {
		return err
	}
	if err := store.db.Create(doc).Error; err != nil {
		_ = store.Blobs.Delete(doc.CheminStorage)
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// LoadDocument loads one document row.
func (store *Store) LoadDocument(id any) (*Document, error) {
	doc := &Document{}
	result := store.db.First(doc, id)
	if result.Error != nil {
		return nil, fmt.Errorf("load document %v: %w", id, result.Error)
	}
	return doc, nil
}

// LoadDocumentsForClient returns the documents of one client, newest first.
func (store *Store) LoadDocumentsForClient(clientID uint) ([]*Document, error) {
	var docs []*Document
	result := store.db.Where("client_id = ?", clientID).
		Order("created_at DESC").Find(&docs)
	return docs, result.Error
}

// DeleteDocument removes the metadata row, then the blob.
func (store *Store) DeleteDocument(doc *Document) error {
	if err := store.db.Unscoped().Delete(doc).Error; err != nil {
		return err
	}
	return store.Blobs.Delete(doc.CheminStorage)
}

// DocumentURL returns a signed download URL for the document, valid one
// hour.
func (store *Store) DocumentURL(doc *Document) string {
	return store.Blobs.SignedURL(doc.CheminStorage, time.Hour)
}
