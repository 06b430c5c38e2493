// Package id generates and recognizes record identifiers.
//
// NewULID returns a 26-character Crockford base32 ULID: 48 bits of millisecond
// timestamp followed by 80 random bits. ULIDs sort lexicographically by creation time,
// which keeps freshly inserted rows clustered in B-tree indexes.
//
//	recID := id.NewULID() // "01HZX3M9Q4K7V2B8N5C6D0E1F2"
//
// The predicates recognize identifier syntax without touching storage:
//
//	id.IsULID("01HZX3M9Q4K7V2B8N5C6D0E1F2")           // true
//	id.IsUUID("6ba7b810-9dad-11d1-80b4-00c04fd430c8") // true
//	id.IsNative("a-thousand-plateaus")                // false
//
// Stores use IsNative to tell a lookup key that is a record ID from one that is a slug,
// and the permalink engine suffixes any slug candidate that IsNative accepts.
package id
