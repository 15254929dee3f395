package manifest

import (
	"context"
	"errors"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/genup/genup/util"
)

// Load parses the document stored at path. The format follows the file extension.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}

	doc, err := codecFor(path).decode(data)
	if err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}

	return doc, nil
}

// Read returns the entry of productName stored in the document at path
func Read(path, productName string) (Entry, error) {
	doc, err := Load(path)
	if err != nil {
		return Entry{}, err
	}

	entry, ok := doc.Lookup(productName)
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q in %s", ErrEntryNotFound, productName, path)
	}

	return entry, nil
}

// Write records version and downloadURL as the latest release of productName in the document at path.
// Other entries are preserved and an existing entry of productName is replaced. A missing document is created.
// A document that cannot be parsed is left untouched.
func Write(ctx context.Context, path, productName, version, downloadURL string) error {
	if productName == "" {
		return fmt.Errorf("%w: empty product name", ErrMalformed)
	}

	doc, err := Load(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		doc = NewDocument()
	case err != nil:
		return err
	}

	entry := Entry{ProductName: productName, LatestVersion: version, DownloadURL: downloadURL}
	if !doc.Upsert(entry) {
		log.Debugf("manifest %s already lists %s %s", path, productName, version)
	}

	data, err := codecFor(path).encode(doc)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	if err := util.WriteBytes(ctx, path, data); err != nil {
		return fmt.Errorf("write manifest %s: %w", path, err)
	}

	log.Infof("published %s %s to %s", productName, version, path)
	return nil
}

// Encode serializes doc in the format selected by the extension of path
func Encode(doc *Document, path string) ([]byte, error) {
	return codecFor(path).encode(doc)
}
