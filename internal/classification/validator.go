// Package classification cross-checks model decisions against what the user
// told us about the document's owner.
package classification

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/Veraticus/sift/internal/model"
)

// Correction describes what SelfCorrect did to a result.
type Correction struct {
	From    model.InvoiceType
	To      model.InvoiceType
	Note    string
	Applied bool
}

// SelfCorrect checks an emitted/received decision against the declared owner
// name and flips it when the extracted parties say otherwise:
//
//	owner is issuer only,    detected received -> emitted
//	owner is recipient only, detected emitted  -> received
//	owner is neither                           -> received
//	anything else                              -> unchanged
//
// Names match when either contains the other after normalization, so legal
// suffixes like "S.L." and "SL" compare equal. Other invoice types are left
// alone. The result is updated in place.
func SelfCorrect(declared string, r *model.ClassificationResult) Correction {
	if r == nil || !r.InvoiceType.IsAccountable() {
		return Correction{}
	}

	owner := normalizeName(declared)
	isIssuer := namesMatch(owner, normalizeName(r.IssuerName))
	isRecipient := namesMatch(owner, normalizeName(r.RecipientName))

	var target model.InvoiceType
	var reason string
	switch {
	case isIssuer && !isRecipient && r.InvoiceType == model.InvoiceTypeReceived:
		target = model.InvoiceTypeEmitted
		reason = fmt.Sprintf("%q matches the issuer %q", declared, r.IssuerName)
	case !isIssuer && isRecipient && r.InvoiceType == model.InvoiceTypeEmitted:
		target = model.InvoiceTypeReceived
		reason = fmt.Sprintf("%q matches the recipient %q", declared, r.RecipientName)
	case !isIssuer && !isRecipient:
		target = model.InvoiceTypeReceived
		reason = fmt.Sprintf("%q matches neither the issuer %q nor the recipient %q", declared, r.IssuerName, r.RecipientName)
	default:
		return Correction{}
	}

	if target == r.InvoiceType {
		return Correction{}
	}

	c := Correction{
		Applied: true,
		From:    r.InvoiceType,
		To:      target,
		Note:    fmt.Sprintf("Self-correction: changed %s to %s because %s.", r.InvoiceType, target, reason),
	}

	r.InvoiceType = target
	r.CorrectionNote = c.Note
	if r.Reasoning == "" {
		r.Reasoning = c.Note
	} else {
		r.Reasoning = r.Reasoning + "\n" + c.Note
	}

	return c
}

// namesMatch is substring containment in either direction. An empty name
// never matches anything.
func namesMatch(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// normalizeName lower-cases, drops punctuation and collapses whitespace.
func normalizeName(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return unicode.ToLower(r)
		case unicode.IsSpace(r):
			return ' '
		default:
			return -1
		}
	}, s)
	return strings.Join(strings.Fields(s), " ")
}
