package manifest

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultExt is the extension of manifest documents when none is given
const DefaultExt = ".xml"

type codec interface {
	encode(doc *Document) ([]byte, error)
	decode(data []byte) (*Document, error)
}

// codecFor selects the document format from the file extension; unknown extensions are read as XML
func codecFor(path string) codec {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return jsonCodec{}
	case ".yaml", ".yml":
		return yamlCodec{}
	default:
		return xmlCodec{}
	}
}

// IsSupportedExt reports whether ext names one of the manifest formats
func IsSupportedExt(ext string) bool {
	switch strings.ToLower(ext) {
	case ".xml", ".json", ".yaml", ".yml":
		return true
	default:
		return false
	}
}

type xmlDocument struct {
	XMLName  xml.Name     `xml:"manifest"`
	Products []xmlProduct `xml:"product"`
}

type xmlProduct struct {
	Name     string `xml:"name,attr"`
	Version  string `xml:"version"`
	Download string `xml:"download"`
}

type xmlCodec struct{}

func (xmlCodec) encode(doc *Document) ([]byte, error) {
	wire := xmlDocument{}
	for _, e := range doc.Entries() {
		wire.Products = append(wire.Products, xmlProduct{Name: e.ProductName, Version: e.LatestVersion, Download: e.DownloadURL})
	}

	bs, err := xml.MarshalIndent(wire, "", "  ")
	if err != nil {
		return nil, err
	}

	return append([]byte(xml.Header), append(bs, '\n')...), nil
}

func (xmlCodec) decode(data []byte) (*Document, error) {
	doc := NewDocument()
	if len(bytes.TrimSpace(data)) == 0 {
		return doc, nil
	}

	dec := xml.NewDecoder(bytes.NewReader(data))
	var wire xmlDocument
	if err := dec.Decode(&wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := expectXMLEnd(dec); err != nil {
		return nil, err
	}

	for _, p := range wire.Products {
		if err := doc.add(Entry{ProductName: p.Name, LatestVersion: p.Version, DownloadURL: p.Download}); err != nil {
			return nil, err
		}
	}

	return doc, nil
}

// expectXMLEnd accepts only whitespace, comments and processing instructions after the root element
func expectXMLEnd(dec *xml.Decoder) error {
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}

		switch t := tok.(type) {
		case xml.Comment, xml.ProcInst:
		case xml.CharData:
			if len(bytes.TrimSpace(t)) != 0 {
				return fmt.Errorf("%w: trailing data after the manifest element", ErrMalformed)
			}
		default:
			return fmt.Errorf("%w: trailing %T after the manifest element", ErrMalformed, tok)
		}
	}
}

type wireDocument struct {
	Products []wireProduct `json:"products" yaml:"products"`
}

type wireProduct struct {
	Name     string `json:"name" yaml:"name"`
	Version  string `json:"version" yaml:"version"`
	Download string `json:"download" yaml:"download"`
}

func toWire(doc *Document) wireDocument {
	wire := wireDocument{Products: []wireProduct{}}
	for _, e := range doc.Entries() {
		wire.Products = append(wire.Products, wireProduct{Name: e.ProductName, Version: e.LatestVersion, Download: e.DownloadURL})
	}
	return wire
}

func fromWire(wire wireDocument) (*Document, error) {
	doc := NewDocument()
	for _, p := range wire.Products {
		if err := doc.add(Entry{ProductName: p.Name, LatestVersion: p.Version, DownloadURL: p.Download}); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

type jsonCodec struct{}

func (jsonCodec) encode(doc *Document) ([]byte, error) {
	bs, err := json.MarshalIndent(toWire(doc), "", "    ")
	if err != nil {
		return nil, err
	}
	return append(bs, '\n'), nil
}

func (jsonCodec) decode(data []byte) (*Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return NewDocument(), nil
	}

	var wire wireDocument
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return fromWire(wire)
}

type yamlCodec struct{}

func (yamlCodec) encode(doc *Document) ([]byte, error) {
	return yaml.Marshal(toWire(doc))
}

func (yamlCodec) decode(data []byte) (*Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return NewDocument(), nil
	}

	var wire wireDocument
	if err := yaml.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return fromWire(wire)
}
