package ledger

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/toxnroot/trans-invoice-v3/models"
	"github.com/toxnroot/trans-invoice-v3/store"
)

// SuggestionStore persists the named suggestion sets.
type SuggestionStore interface {
	Members(ctx context.Context, list models.SuggestionList) ([]string, error)
	Add(ctx context.Context, list models.SuggestionList, value string) error
	Remove(ctx context.Context, list models.SuggestionList, value string) error
}

// DocumentSuggestions keeps each list as one document whose "fields" array
// holds the set.
type DocumentSuggestions struct {
	store store.Store
}

func NewDocumentSuggestions(s store.Store) *DocumentSuggestions {
	return &DocumentSuggestions{store: s}
}

func listKey(list models.SuggestionList) store.Key {
	return store.Key{Collection: collDropdown, ID: string(list)}
}

type suggestionDoc struct {
	Fields []string `json:"fields"`
}

func (d *DocumentSuggestions) Members(ctx context.Context, list models.SuggestionList) ([]string, error) {
	snap, err := d.store.Read(ctx, listKey(list))
	if err != nil {
		return nil, err
	}
	if !snap.Exists() {
		return []string{}, nil
	}
	var doc suggestionDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, err
	}
	return doc.Fields, nil
}

func (d *DocumentSuggestions) Add(ctx context.Context, list models.SuggestionList, value string) error {
	return d.modify(ctx, list, func(set []string) []string {
		for _, v := range set {
			if v == value {
				return set
			}
		}
		return append(set, value)
	})
}

func (d *DocumentSuggestions) Remove(ctx context.Context, list models.SuggestionList, value string) error {
	return d.modify(ctx, list, func(set []string) []string {
		out := make([]string, 0, len(set))
		for _, v := range set {
			if v != value {
				out = append(out, v)
			}
		}
		return out
	})
}

func (d *DocumentSuggestions) modify(ctx context.Context, list models.SuggestionList, fn func([]string) []string) error {
	key := listKey(list)
	return store.RunTransaction(ctx, d.store, func(tx *store.Tx) error {
		snap, err := tx.Get(key)
		if err != nil {
			return err
		}
		var doc suggestionDoc
		if snap.Exists() {
			if err := snap.DataTo(&doc); err != nil {
				return err
			}
		}
		tx.Set(key, store.Fields{"fields": fn(doc.Fields)})
		return nil
	})
}

func checkList(list models.SuggestionList) error {
	if !list.Valid() {
		return invalid("list", "must be nametextile or colors")
	}
	return nil
}

// GetSuggestions returns the list sorted lexicographically.
func (s *Service) GetSuggestions(ctx context.Context, list models.SuggestionList) ([]string, error) {
	if err := checkList(list); err != nil {
		return nil, err
	}
	values, err := s.suggestions.Members(ctx, list)
	if err != nil {
		return nil, errors.Wrapf(err, "ledger: read %s suggestions", list)
	}
	out := append([]string{}, values...)
	sort.Strings(out)
	return out, nil
}

// AddSuggestion adds the trimmed value to the set. Adding a present value
// changes nothing.
func (s *Service) AddSuggestion(ctx context.Context, list models.SuggestionList, value string) error {
	if err := checkList(list); err != nil {
		return err
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return invalid("value", "is required")
	}
	if err := s.suggestions.Add(ctx, list, value); err != nil {
		return storeErr(err, ErrConflict, listKey(list))
	}
	return nil
}

// DeleteSuggestion removes value from the set; a missing value is a no-op.
func (s *Service) DeleteSuggestion(ctx context.Context, list models.SuggestionList, value string) error {
	if err := checkList(list); err != nil {
		return err
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return invalid("value", "is required")
	}
	if err := s.suggestions.Remove(ctx, list, value); err != nil {
		return storeErr(err, ErrConflict, listKey(list))
	}
	return nil
}
