// Package batch implements page wide commands working on MEI files outside
// of interactive editing: checking pages for problems and fixing them with
// bulk corrections.
package batch

import (
	"errors"
	"fmt"
	"slices"

	"go.uber.org/multierr"

	"neon/action"
)

// ErrFindings is returned by strict check when any page has problems.
var ErrFindings = errors.New("problems found")

// Finding describes single problem detected on a page.
type Finding struct {
	Page string `json:"page"`
	// Check is either "invalidLinkedSyllables" or name of the bulk
	// correction which would fix the problem.
	Check string   `json:"check"`
	IDs   []string `json:"ids"`
}

const checkInvalidLinked = "invalidLinkedSyllables"

// Intents converts configured correction names to page wide intents keeping
// configuration order. All bad names are reported together.
func Intents(names []string) ([]action.Intent, error) {
	var (
		res []action.Intent
		err error
	)
	for _, name := range names {
		intent, er := action.ParseIntent(name)
		if er != nil {
			err = multierr.Append(err, er)
			continue
		}
		if !intent.PageWide() {
			err = multierr.Append(err, fmt.Errorf("%s is not a page wide correction", name))
			continue
		}
		if !slices.Contains(res, intent) {
			res = append(res, intent)
		}
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// targets lists distinct element ids touched by action in order.
func targets(a action.Action) []string {
	var ids []string
	for _, item := range action.Flatten(a) {
		var id string
		switch v := item.(type) {
		case action.Remove:
			id = v.ElementID
		case action.Set:
			id = v.ElementID
		case action.SetText:
			id = v.ElementID
		default:
			continue
		}
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	return ids
}
