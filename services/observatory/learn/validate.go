// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package learn

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/spyglass/services/observatory/intent"
)

// ErrInvalidProposal marks a rejected domain submission. Handlers map
// it to 422.
var ErrInvalidProposal = errors.New("invalid domain proposal")

// ProposedDomain is one domain in a submission from the external
// synthesizer.
type ProposedDomain struct {
	// Name must begin with "@", be lowercase, and contain no
	// whitespace.
	Name string `json:"name" validate:"required,domain_name"`

	// Terms are 3-7 match strings, each at least 3 characters.
	Terms []string `json:"terms" validate:"required,min=3,max=7,dive,min=3"`
}

// toDomain converts the flat proposal into a library domain.
func (p ProposedDomain) toDomain() intent.Domain {
	return intent.Domain{
		Name:        p.Name,
		Terms:       map[string][]string{"": append([]string(nil), p.Terms...)},
		LastTouched: time.Now().Unix(),
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Struct tags cover shape; the name format needs a custom rule.
	_ = v.RegisterValidation("domain_name", func(fl validator.FieldLevel) bool {
		name := fl.Field().String()
		if len(name) < 2 || !strings.HasPrefix(name, "@") {
			return false
		}
		if name != strings.ToLower(name) {
			return false
		}
		return !strings.ContainsAny(name, " \t\n\r")
	})
	return v
}

// ValidateProposal checks a whole submission against the structural
// rules and global term uniqueness. Any failure rejects the whole
// submission.
func ValidateProposal(proposed []ProposedDomain, lib *intent.Library) error {
	if len(proposed) == 0 {
		return fmt.Errorf("%w: empty submission", ErrInvalidProposal)
	}

	seenNames := make(map[string]struct{}, len(proposed))
	seenTerms := make(map[string]string)

	for _, p := range proposed {
		if err := validate.Struct(p); err != nil {
			return fmt.Errorf("%w: domain %q: %v", ErrInvalidProposal, p.Name, err)
		}
		if lib.HasDomain(p.Name) {
			return fmt.Errorf("%w: domain %q already exists", ErrInvalidProposal, p.Name)
		}
		if _, dup := seenNames[p.Name]; dup {
			return fmt.Errorf("%w: domain %q submitted twice", ErrInvalidProposal, p.Name)
		}
		seenNames[p.Name] = struct{}{}

		for _, term := range p.Terms {
			lowered := strings.ToLower(term)
			if owner, ok := lib.DomainFor(lowered); ok {
				return fmt.Errorf("%w: term %q already owned by %s", ErrInvalidProposal, term, owner)
			}
			if owner, ok := seenTerms[lowered]; ok {
				return fmt.Errorf("%w: term %q duplicated across %s and %s", ErrInvalidProposal, term, owner, p.Name)
			}
			seenTerms[lowered] = p.Name
		}
	}
	return nil
}
