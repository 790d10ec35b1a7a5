package linedoc

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// ErrMalformedDocument is returned, wrapped in a *DocumentError, when a
// document lacks a value that has no default or holds an unparsable one.
var ErrMalformedDocument = errors.New("malformed document")

var errMissing = errors.New("missing")

// DocumentError locates a malformed value inside a document.
type DocumentError struct {
	Path  string
	Field string
	Err   error
}

func (e *DocumentError) Error() string {
	loc := e.Path
	if e.Field != "" {
		loc += "@" + e.Field
	}
	if loc == "" {
		return fmt.Sprintf("%s: %v", ErrMalformedDocument, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", ErrMalformedDocument, loc, e.Err)
}

func (e *DocumentError) Unwrap() error {
	return e.Err
}

func (e *DocumentError) Is(target error) bool {
	return target == ErrMalformedDocument
}

// Bag is a key to string lookup over one document node. Empty values count
// as absent.
type Bag interface {
	Lookup(key string) (string, bool)
}

// attrBag looks keys up among an element's attributes.
type attrBag struct {
	el *etree.Element
}

func (b attrBag) Lookup(key string) (string, bool) {
	if b.el == nil {
		return "", false
	}
	attr := b.el.SelectAttr(key)
	if attr == nil || attr.Value == "" {
		return "", false
	}
	return attr.Value, true
}

// textBag looks slash-separated keys up as descendant element paths and
// returns the element's text.
type textBag struct {
	el *etree.Element
}

func (b textBag) Lookup(key string) (string, bool) {
	if b.el == nil {
		return "", false
	}
	child := b.el.FindElement("./" + key)
	if child == nil {
		return "", false
	}
	v := strings.TrimSpace(child.Text())
	if v == "" {
		return "", false
	}
	return v, true
}

// fields reads typed values out of a Bag and keeps the first failure, so a
// record can be filled in one pass and checked once.
type fields struct {
	bag  Bag
	path string
	err  error
}

func newFields(bag Bag, path string) *fields {
	return &fields{bag: bag, path: path}
}

func (f *fields) fail(key string, err error) {
	if f.err == nil {
		f.err = &DocumentError{Path: f.path, Field: key, Err: err}
	}
}

func (f *fields) str(key, def string) string {
	if v, ok := f.bag.Lookup(key); ok {
		return v
	}
	return def
}

func (f *fields) integer(key string, def int) int {
	v, ok := f.bag.Lookup(key)
	if !ok {
		return def
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		f.fail(key, err)
		return def
	}
	return i
}

func (f *fields) float(key string, def float64) float64 {
	v, ok := f.bag.Lookup(key)
	if !ok {
		return def
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		f.fail(key, err)
		return def
	}
	return x
}

func (f *fields) requiredInt(key string) int {
	if _, ok := f.bag.Lookup(key); !ok {
		f.fail(key, errMissing)
		return 0
	}
	return f.integer(key, 0)
}

func (f *fields) requiredFloat(key string) float64 {
	if _, ok := f.bag.Lookup(key); !ok {
		f.fail(key, errMissing)
		return 0
	}
	return f.float(key, 0)
}
