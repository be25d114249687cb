// Package meitest provides MEI fixtures for tests of packages working with
// document snapshots.
package meitest

import (
	_ "embed"
	"strconv"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"neon/mei"
)

// PageMEI is a three staff page: sy3 and sy4 are a valid linked pair across
// s1/s2, nc6 is an unterminated oblique, nc7 and dl1 are out of page bounds,
// n7 is an empty neume and sy7 is an empty syllable.
//
//go:embed testdata/page.mei
var PageMEI string

// Logger returns test logger in the form used by all package tests.
func Logger(t testing.TB) *zap.Logger {
	return zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))
}

// Page returns parsed sample page.
func Page(t testing.TB) *mei.Document {
	t.Helper()
	return Parse(t, PageMEI)
}

// Parse parses MEI text failing the test on error.
func Parse(t testing.TB, text string) *mei.Document {
	t.Helper()
	doc, err := mei.ParseString(text, Logger(t))
	if err != nil {
		t.Fatalf("parse MEI: %v", err)
	}
	return doc
}

// Elements resolves ids against document failing the test on error.
func Elements(t testing.TB, doc *mei.Document, ids ...string) []*mei.Element {
	t.Helper()
	els, err := doc.Resolve(ids)
	if err != nil {
		t.Fatalf("resolve %v: %v", ids, err)
	}
	return els
}

// Staves wraps syllable markup into a minimal MEI page, one staff per
// argument, staff ids are "s1", "s2", ...
func Staves(staves ...string) string {
	out := `<mei xmlns="http://www.music-encoding.org/ns/mei"><music><body><mdiv><score><section>`
	for i, content := range staves {
		out += `<staff xml:id="s` + strconv.Itoa(i+1) + `"><layer>` + content + `</layer></staff>`
	}
	return out + `</section></score></mdiv></body></music></mei>`
}

