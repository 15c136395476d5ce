// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package errutil_test

import (
	"errors"
	"testing"

	"github.com/samber/oops"

	"github.com/authgate/authgate/pkg/errutil"
)

func TestAssertErrorCode_MatchingCode(t *testing.T) {
	err := oops.Code("MY_CODE").Errorf("test error")
	errutil.AssertErrorCode(t, err, "MY_CODE")
}

func TestAssertErrorContext_MatchingKeyValue(t *testing.T) {
	err := oops.With("user_id", "123").Errorf("test error")
	errutil.AssertErrorContext(t, err, "user_id", "123")
}

func TestAssertErrorCode_WrappedSentinel(t *testing.T) {
	sentinel := errors.New("not found")
	err := oops.Code("USER_NOT_FOUND").With("id", "01J").Wrap(sentinel)
	errutil.AssertErrorCode(t, err, "USER_NOT_FOUND")
	errutil.AssertErrorContext(t, err, "id", "01J")
}
