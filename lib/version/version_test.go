// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	original := GitCommit
	t.Cleanup(func() { GitCommit = original })
	GitCommit = "abc1234"

	info := Info()
	if !strings.HasPrefix(info, Version+" (abc1234, ") {
		t.Errorf("Info() = %q", info)
	}
}
