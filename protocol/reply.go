package protocol

import (
	"encoding/binary"

	"github.com/zeebo/xxh3"
)

// Entry is one key/value line of a text reply.
type Entry struct {
	Key   string
	Value string
}

// Reply is the result of one request/reply cycle.
// Only the fields of the variant selected by Kind are meaningful.
type Reply struct {
	// Command is the name of the command this reply answers
	Command string

	Kind Kind

	// Entries holds the lines of a text reply in wire order. Keys may repeat,
	// see MapList.
	Entries []Entry

	// Category, Code and Reason describe an error reply.
	// Code is the raw wire value of the "error" key.
	Category ErrorCategory
	Code     string
	Reason   string

	// Header is the 4-byte header of a binary reply and Data its payload.
	// len(Data) always equals the big-endian length in Header.
	Header [BinaryHeaderSize]byte
	Data   []byte
}

func (r Reply) IsBinary() bool { return r.Kind == KindBinary }
func (r Reply) IsText() bool   { return r.Kind == KindText }
func (r Reply) IsError() bool  { return r.Kind == KindError }
func (r Reply) IsValid() bool  { return r.Kind != KindInvalid }

// Size returns the payload length declared by the binary header.
func (r Reply) Size() uint32 {
	if r.Kind != KindBinary {
		return 0
	}
	return binary.BigEndian.Uint32(r.Header[:])
}

// Digest returns the xxh3 hash of the binary payload, 0 for other kinds.
func (r Reply) Digest() uint64 {
	if r.Kind != KindBinary {
		return 0
	}
	return xxh3.Hash(r.Data)
}

// Map collapses the entries into a map, the last value of a repeated key wins.
func (r Reply) Map() map[string]string {
	m := make(map[string]string, len(r.Entries))
	for _, e := range r.Entries {
		m[e.Key] = e.Value
	}
	return m
}

// MapList splits the entries into records. A new record starts every time a
// key already present in the current record shows up again, so a flat reply
// yields a single map and k repeated key sets yield k maps.
//
// Example:
//
//	id:0
//	name:foo
//	id:1
//	name:bar
//
// yields [{id:0 name:foo} {id:1 name:bar}].
func (r Reply) MapList() []map[string]string {
	if len(r.Entries) == 0 {
		return []map[string]string{}
	}

	list := []map[string]string{{}}
	current := list[0]
	for _, e := range r.Entries {
		if _, exists := current[e.Key]; exists {
			current = map[string]string{}
			list = append(list, current)
		}
		current[e.Key] = e.Value
	}
	return list
}

// Err returns the reply as a *ReplyError when it is an error reply.
func (r Reply) Err() error {
	if r.Kind != KindError {
		return nil
	}
	return &ReplyError{
		Command:  r.Command,
		Category: r.Category,
		Code:     r.Code,
		Reason:   r.Reason,
	}
}

// Reset returns the reply to KindInvalid and releases the payload.
func (r *Reply) Reset() {
	*r = Reply{}
}
