// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"encoding/hex"
	"strconv"

	"github.com/zeebo/blake3"
)

// TaskIDPrefix starts every generated task identifier.
const TaskIDPrefix = "wl"

// taskIDDomainKey separates task id hashes from any other BLAKE3 use
// of the same inputs. ASCII, zero-padded to 32 bytes.
var taskIDDomainKey = [32]byte{
	'w', 'a', 's', 't', 'e', 'l', 'a', 'n', 'd', '.', 't', 'a', 's', 'k', '.', 'i',
	'd', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// NewTaskID derives a task identifier from the author, creation time,
// and title. The id is the shortest hex prefix (at least four
// characters) of the keyed hash that exists does not report as taken.
// Pass nil for exists when collisions need not be checked.
func NewTaskID(author string, createdAt int64, title string, exists func(string) bool) string {
	hasher, err := blake3.NewKeyed(taskIDDomainKey[:])
	if err != nil {
		panic("schema: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write([]byte(author + "\n" + strconv.FormatInt(createdAt, 10) + "\n" + title))
	digest := hex.EncodeToString(hasher.Sum(nil))

	for length := 4; length <= len(digest); length++ {
		candidate := TaskIDPrefix + "-" + digest[:length]
		if exists == nil || !exists(candidate) {
			return candidate
		}
	}
	return TaskIDPrefix + "-" + digest
}
