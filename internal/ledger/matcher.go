// Package ledger picks a chart-of-accounts code for a classified document.
package ledger

import (
	"strings"
	"unicode/utf8"

	"github.com/Veraticus/sift/internal/model"
)

// minTokenRunes is the length a token must exceed to be scored.
const minTokenRunes = 3

// Match is the outcome of a ledger lookup. Account is nil and Code is
// model.AccountNotFound when nothing scored.
type Match struct {
	Account *model.Account
	Code    string
	Score   int
}

// Found reports whether an account was selected.
func (m Match) Found() bool {
	return m.Account != nil
}

// Matcher selects the account that best fits a line-item description.
type Matcher interface {
	Match(description string, accounts []model.Account) Match
}

// TokenContainment scores accounts by counting words that appear in both
// texts. It is a deliberately simple keyword heuristic: lower-case only, no
// stemming, no synonyms.
type TokenContainment struct{}

var _ Matcher = TokenContainment{}

// Match returns the account with the strictly highest positive score. Ties
// keep the earlier account.
func (TokenContainment) Match(description string, accounts []model.Account) Match {
	desc := strings.ToLower(description)
	descTokens := tokenize(desc)

	best := Match{Code: model.AccountNotFound}
	for i := range accounts {
		account := &accounts[i]
		score := containmentScore(desc, descTokens, strings.ToLower(account.Description))
		if score > best.Score {
			best = Match{
				Account: account,
				Code:    account.Code,
				Score:   score,
			}
		}
	}
	return best
}

// containmentScore counts account tokens found inside the description plus
// description tokens found inside the account text.
func containmentScore(desc string, descTokens []string, accountText string) int {
	if desc == "" || accountText == "" {
		return 0
	}

	score := 0
	for _, token := range tokenize(accountText) {
		if strings.Contains(desc, token) {
			score++
		}
	}
	for _, token := range descTokens {
		if strings.Contains(accountText, token) {
			score++
		}
	}
	return score
}

// tokenize splits on whitespace and keeps tokens longer than minTokenRunes.
func tokenize(s string) []string {
	fields := strings.Fields(s)
	tokens := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) > minTokenRunes {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
