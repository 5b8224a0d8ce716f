package pdfverify

import (
	fitz "github.com/gen2brain/go-fitz"
)

// fitzOpener implements Opener using github.com/gen2brain/go-fitz.
type fitzOpener struct{}

func (fitzOpener) Open(path string) (Doc, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, err
	}
	return fitzDoc{doc}, nil
}

// Ensure default opener is set to fitz-based implementation.
func init() {
	setDefaultOpener(fitzOpener{})
}

type fitzDoc struct{ *fitz.Document }

func (d fitzDoc) PageSize(i int) (float64, float64, error) {
	b, err := d.Document.Bound(i)
	if err != nil {
		return 0, 0, err
	}
	return float64(b.Dx()), float64(b.Dy()), nil
}
