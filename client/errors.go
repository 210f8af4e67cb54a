// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package client

import "errors"

// ErrInvalidParams is wrapped by errors for writes rejected before
// anything is published.
var ErrInvalidParams = errors.New("invalid parameters")
