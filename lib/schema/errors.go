// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import "errors"

// ErrMalformedEvent is wrapped by parse errors for events that cannot
// be interpreted as the requested type. Test with errors.Is.
var ErrMalformedEvent = errors.New("malformed event")
