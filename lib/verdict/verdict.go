// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package verdict classifies the outcome of a privileged action as
// allowed, denied, or an empty result, and provides the assertions
// used to verify that a permission change took effect for a set of
// users.
//
// A failure counts as a denial only when a fault.Denial appears
// somewhere in its error tree, however deeply it is wrapped. Any other
// failure is an unexpected error rather than a verdict.
package verdict

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/bureau-foundation/aclsync/lib/fault"
)

// Verdict is the classification of one action's outcome.
type Verdict int

const (
	// None is returned alongside an unexpected-failure error.
	None Verdict = iota
	Allowed
	Denied
	EmptyResult
)

func (v Verdict) String() string {
	switch v {
	case Allowed:
		return "allowed"
	case Denied:
		return "denied"
	case EmptyResult:
		return "empty result"
	}
	return "none"
}

// EmptyMode says what a successful empty collection means.
type EmptyMode int

const (
	// EmptyIsResult classifies an empty collection as EmptyResult.
	EmptyIsResult EmptyMode = iota

	// EmptyMeansDenied classifies an empty collection as Denied, for
	// actions that filter out what the caller may not see instead of
	// failing.
	EmptyMeansDenied
)

// NullMode says what a successful nil result means.
type NullMode int

const (
	// NullAllowed classifies nil as Allowed.
	NullAllowed NullMode = iota

	// NullIsEmpty classifies nil like an empty collection.
	NullIsEmpty
)

// Options selects the interpretation of empty and nil results.
type Options struct {
	Empty EmptyMode
	Null  NullMode
}

// UnexpectedError is a failure that carried no denial.
type UnexpectedError struct {
	Err error
}

func (e *UnexpectedError) Error() string {
	return fmt.Sprintf("unexpected failure: %v", e.Err)
}

func (e *UnexpectedError) Unwrap() error { return e.Err }

// Classify maps an action's result and error to a verdict. It is a
// pure function of its arguments.
func Classify(result any, err error, opts Options) (Verdict, error) {
	if err != nil {
		if fault.IsDenial(err) {
			return Denied, nil
		}
		return None, &UnexpectedError{Err: err}
	}

	if isNull(result) {
		if opts.Null == NullIsEmpty {
			return emptyVerdict(opts), nil
		}
		return Allowed, nil
	}
	if length, ok := collectionLen(result); ok && length == 0 {
		return emptyVerdict(opts), nil
	}
	return Allowed, nil
}

func emptyVerdict(opts Options) Verdict {
	if opts.Empty == EmptyMeansDenied {
		return Denied
	}
	return EmptyResult
}

// isNull reports whether value is nil or a nil pointer-like value.
// Nil slices and maps are empty collections, not null.
func isNull(value any) bool {
	if value == nil {
		return true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// collectionLen returns the length of slices, arrays, maps, and
// values with a Len method.
func collectionLen(value any) (int, bool) {
	if sized, ok := value.(interface{ Len() int }); ok {
		return sized.Len(), true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len(), true
	}
	return 0, false
}

// Action runs a privileged operation as user.
type Action func(ctx context.Context, user string) (any, error)

// MismatchError reports a user whose outcome was not the expected one.
type MismatchError struct {
	User     string
	Expected string
	Got      Verdict
	Detail   string
}

func (e *MismatchError) Error() string {
	message := fmt.Sprintf("user %q: expected %s, got %s", e.User, e.Expected, e.Got)
	if e.Detail != "" {
		message += ": " + e.Detail
	}
	return message
}

// VerifyAllowed runs action as each user and requires it to be
// allowed. An empty collection fails the check.
func VerifyAllowed(ctx context.Context, action Action, users ...string) error {
	return verifyEach(ctx, action, users, func(user string, result any, err error) error {
		got, classifyErr := Classify(result, err, Options{Empty: EmptyMeansDenied})
		if classifyErr != nil {
			return fmt.Errorf("user %q: %w", user, classifyErr)
		}
		if got != Allowed {
			return &MismatchError{User: user, Expected: "allowed", Got: got}
		}
		return nil
	})
}

// VerifyAllowedCount runs action as each user and requires it to be
// allowed and to return a collection of exactly count elements.
func VerifyAllowedCount(ctx context.Context, action Action, count int, users ...string) error {
	return verifyEach(ctx, action, users, func(user string, result any, err error) error {
		got, classifyErr := Classify(result, err, Options{})
		if classifyErr != nil {
			return fmt.Errorf("user %q: %w", user, classifyErr)
		}
		length, ok := collectionLen(result)
		if got == Denied || !ok || isNull(result) {
			return &MismatchError{User: user, Expected: fmt.Sprintf("%d results", count), Got: got, Detail: "no collection returned"}
		}
		if length != count {
			return &MismatchError{User: user, Expected: fmt.Sprintf("%d results", count), Got: got, Detail: fmt.Sprintf("got %d", length)}
		}
		return nil
	})
}

// VerifyDenied runs action as each user and requires it to fail with
// a denial. A successful call fails the check whatever it returned.
func VerifyDenied(ctx context.Context, action Action, users ...string) error {
	return verifyEach(ctx, action, users, func(user string, result any, err error) error {
		if err == nil {
			got, _ := Classify(result, nil, Options{})
			return &MismatchError{User: user, Expected: "denied", Got: got, Detail: "call succeeded"}
		}
		if _, classifyErr := Classify(nil, err, Options{}); classifyErr != nil {
			return fmt.Errorf("user %q: %w", user, classifyErr)
		}
		return nil
	})
}

// VerifyIfEmptyList runs action as each user and requires it to
// succeed with an empty collection.
func VerifyIfEmptyList(ctx context.Context, action Action, users ...string) error {
	return verifyEach(ctx, action, users, func(user string, result any, err error) error {
		got, classifyErr := Classify(result, err, Options{Empty: EmptyIsResult})
		if classifyErr != nil {
			return fmt.Errorf("user %q: %w", user, classifyErr)
		}
		if _, ok := collectionLen(result); !ok || got != EmptyResult {
			return &MismatchError{User: user, Expected: "empty result", Got: got}
		}
		return nil
	})
}

// VerifyIfNull runs action as each user and requires it to succeed
// with a nil result.
func VerifyIfNull(ctx context.Context, action Action, users ...string) error {
	return verifyEach(ctx, action, users, func(user string, result any, err error) error {
		got, classifyErr := Classify(result, err, Options{})
		if classifyErr != nil {
			return fmt.Errorf("user %q: %w", user, classifyErr)
		}
		if got == Denied || !isNull(result) {
			return &MismatchError{User: user, Expected: "nil result", Got: got}
		}
		return nil
	})
}

// verifyEach checks every user and joins the failures, so one call
// reports every user whose outcome was wrong.
func verifyEach(ctx context.Context, action Action, users []string, check func(user string, result any, err error) error) error {
	if len(users) == 0 {
		return errors.New("no users to verify")
	}
	var errs []error
	for _, user := range users {
		result, err := action(ctx, user)
		if checkErr := check(user, result, err); checkErr != nil {
			errs = append(errs, checkErr)
		}
	}
	return errors.Join(errs...)
}
