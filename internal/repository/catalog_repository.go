package repository

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/noah-isme/fourset-checker/internal/models"
)

// CatalogRepository loads the catalog document from YAML.
type CatalogRepository struct {
	path string
}

// NewCatalogRepository returns a repository reading from path.
func NewCatalogRepository(path string) *CatalogRepository {
	return &CatalogRepository{path: path}
}

// Path reports the file the repository reads.
func (r *CatalogRepository) Path() string { return r.path }

// Load reads and decodes the catalog file.
func (r *CatalogRepository) Load() (*models.CatalogDocument, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", r.path, err)
	}
	doc, err := DecodeCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", r.path, err)
	}
	return doc, nil
}

// DecodeCatalog decodes a catalog document, rejecting unknown keys.
func DecodeCatalog(data []byte) (*models.CatalogDocument, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var doc models.CatalogDocument
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return &doc, nil
}
