package models

// SuggestionList names one of the auto-complete lists.
type SuggestionList string

const (
	ListTextileNames SuggestionList = "nametextile"
	ListColors       SuggestionList = "colors"
)

func (l SuggestionList) Valid() bool {
	return l == ListTextileNames || l == ListColors
}
