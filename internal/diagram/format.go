package diagram

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
)

// Format is the content format collaborator. Parse turns raw file bytes into
// diagram content, Serialize turns content back into file bytes. Errors from
// either are surfaced to callers as *domain.ParseError.
type Format interface {
	Parse(raw []byte) ([]byte, error)
	Serialize(content []byte) ([]byte, error)
}

// RawFormat treats file bytes as content without interpretation.
type RawFormat struct{}

func (RawFormat) Parse(raw []byte) ([]byte, error)         { return bytes.Clone(raw), nil }
func (RawFormat) Serialize(content []byte) ([]byte, error) { return bytes.Clone(content), nil }

// XMLFormat accepts well-formed XML documents with a single root element,
// which is what BPMN files are. Content is kept byte-for-byte.
type XMLFormat struct{}

func (XMLFormat) Parse(raw []byte) ([]byte, error) {
	if err := checkXML(raw); err != nil {
		return nil, err
	}
	return bytes.Clone(raw), nil
}

func (XMLFormat) Serialize(content []byte) ([]byte, error) {
	if err := checkXML(content); err != nil {
		return nil, err
	}
	return bytes.Clone(content), nil
}

func checkXML(data []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(data))
	depth, roots := 0, 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				roots++
			}
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			if depth == 0 && len(bytes.TrimSpace(t)) > 0 {
				return errors.New("text outside of root element")
			}
		}
	}
	switch {
	case roots == 0:
		return errors.New("no root element")
	case roots > 1:
		return fmt.Errorf("%d root elements", roots)
	}
	return nil
}
