package validation

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmynk/groupsplit/internal/models"
)

const (
	// MaxTextLength bounds names and descriptions.
	MaxTextLength = 255
	// MaxAmountDigits bounds the total number of digits in an amount.
	MaxAmountDigits = 10
	// AmountPlaces is the number of decimal places an amount may carry.
	AmountPlaces = 2
)

// Rule checks one aspect of an input and returns nil when it holds.
type Rule func() *Error

// First runs rules in order and returns the first failure.
func First(rules ...Rule) error {
	for _, rule := range rules {
		if err := rule(); err != nil {
			return err
		}
	}
	return nil
}

// Required fails when value is blank.
func Required(field, value string) Rule {
	return func() *Error {
		if strings.TrimSpace(value) == "" {
			return New(field, "This field may not be blank.")
		}
		return nil
	}
}

// MaxLength fails when value is longer than limit characters.
func MaxLength(field, value string, limit int) Rule {
	return func() *Error {
		if len([]rune(value)) > limit {
			return Newf(field, "Ensure this field has no more than %d characters.", limit)
		}
		return nil
	}
}

// NotEmpty fails when a list field has no entries.
func NotEmpty(field string, n int) Rule {
	return func() *Error {
		if n == 0 {
			return New(field, "This list may not be empty.")
		}
		return nil
	}
}

// AmountFormat fails when amount has more digits or decimal places than the
// ledger stores. It only inspects the coefficient and exponent, so an input
// like 1e999999999 is rejected without expanding it.
func AmountFormat(field string, amount decimal.Decimal) Rule {
	return func() *Error {
		digits, exp := significantDigits(amount)
		if digits == 0 {
			return nil
		}
		if -exp > AmountPlaces {
			return Newf(field, "Ensure that there are no more than %d decimal places.", AmountPlaces)
		}
		if digits+exp > MaxAmountDigits-AmountPlaces {
			return Newf(field, "Ensure that there are no more than %d digits before the decimal point.", MaxAmountDigits-AmountPlaces)
		}
		return nil
	}
}

// significantDigits returns the digit count of amount's coefficient without
// trailing zeros, and the exponent that goes with the shortened coefficient.
// Zero yields (0, 0).
func significantDigits(amount decimal.Decimal) (int, int) {
	coef := amount.Coefficient()
	if coef.Sign() == 0 {
		return 0, 0
	}
	s := strings.TrimPrefix(coef.String(), "-")
	trimmed := strings.TrimRight(s, "0")
	return len(trimmed), int(amount.Exponent()) + len(s) - len(trimmed)
}

// PositiveAmount fails when amount is zero or negative.
func PositiveAmount(field string, amount decimal.Decimal) Rule {
	return func() *Error {
		if !amount.IsPositive() {
			return New(field, "Amount must be greater than zero.")
		}
		return nil
	}
}

// MemberOf fails when user is not in group's current member set.
func MemberOf(field string, user models.UserRef, group *models.Group) Rule {
	return func() *Error {
		if !group.HasMember(user.ID) {
			return Newf(field, "%s is not a member of the selected group.", user.Username)
		}
		return nil
	}
}

// AllMembersOf fails on the first user not in group's current member set,
// naming that user.
func AllMembersOf(field string, users []models.UserRef, group *models.Group) Rule {
	return func() *Error {
		for _, u := range users {
			if err := MemberOf(field, u, group)(); err != nil {
				return err
			}
		}
		return nil
	}
}
