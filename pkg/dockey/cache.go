// Copyright 2024 The Docdb Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

package dockey

// CachedEncoder memoizes the encoding of a single DocKey value, avoiding
// repeated re-encoding when the same DocKey is looked up many times in a
// row (the common case for the bloom filter hot path: a request resolves
// one DocKey and then issues several SubDocKey point lookups under it).
// Not safe for concurrent use; callers that share a CachedEncoder across
// goroutines must provide their own synchronization.
type CachedEncoder struct {
	key     DocKey
	primed  bool
	encoded []byte
}

// Encode returns the cached encoding of k, recomputing it only if k differs
// from the previously cached key.
func (c *CachedEncoder) Encode(k DocKey) []byte {
	if c.primed && c.key.Equal(k) {
		return c.encoded
	}
	c.key = k
	c.encoded = k.Encode(c.encoded[:0])
	c.primed = true
	return c.encoded
}

// Reset clears the cache, releasing its backing buffer.
func (c *CachedEncoder) Reset() {
	c.primed = false
	c.encoded = nil
}
