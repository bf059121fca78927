package indexdb

import (
	"bytes"
	"encoding/binary"
	"iter"
	"math"
	"sort"

	"github.com/hupe1980/indexdb/internal/errs"
	"github.com/hupe1980/indexdb/storageio"
)

// Dictionary is a deduplicating set of byte sequences, each identified by an ID.
//
// A dictionary starts out building: Insert assigns IDs in insertion order and
// collapses duplicates. Freeze sorts the entries, packs them into one buffer
// and renumbers them so that ID n is the n-th smallest entry (starting at 1).
// Freezing is one-way; IDs handed out while building are invalid afterwards
// and must be translated through the slice Freeze returns.
//
// A Dictionary is not safe for concurrent mutation.
type Dictionary struct {
	name   string
	frozen bool
	owner  *Index // nil for table row storage

	// Building state. entries[i] holds the sequence with ID i+1.
	ids     map[string]ID
	entries []string

	// Frozen state, see writeFrozen for the layout.
	count   int
	offsets []byte
	data    []byte
}

func newDictionary(name string) *Dictionary {
	return &Dictionary{
		name: name,
		ids:  make(map[string]ID),
	}
}

// Name returns the dictionary name.
func (d *Dictionary) Name() string { return d.name }

// Frozen reports whether the dictionary has been frozen.
func (d *Dictionary) Frozen() bool { return d.frozen }

// Len returns the number of distinct entries.
func (d *Dictionary) Len() int {
	if d.frozen {
		return d.count
	}
	return len(d.entries)
}

// SizeBytes estimates the memory held by the dictionary.
func (d *Dictionary) SizeBytes() int64 {
	if d.frozen {
		return int64(len(d.offsets) + len(d.data))
	}
	var n int64
	for _, e := range d.entries {
		// string header + map entry + bytes
		n += int64(len(e)) + 48
	}
	return n
}

// Insert adds b and returns its ID. If b is already present, the existing ID is
// returned. Insert fails with ErrContractViolation once the dictionary is frozen.
func (d *Dictionary) Insert(b []byte) (ID, error) {
	if d.frozen {
		return NoID, errs.Contractf("insert into frozen dictionary %q", d.name)
	}
	if id, ok := d.ids[string(b)]; ok {
		return id, nil
	}
	if uint64(len(d.entries)) >= math.MaxUint32 {
		return NoID, errs.Contractf("dictionary %q is full", d.name)
	}
	s := string(b)
	d.entries = append(d.entries, s)
	id := ID(len(d.entries))
	d.ids[s] = id
	return id, nil
}

// InsertString is Insert for a string.
func (d *Dictionary) InsertString(s string) (ID, error) {
	return d.Insert([]byte(s))
}

// Find returns the ID of b. It works in both phases: while building it returns
// the provisional ID, once frozen the final one.
func (d *Dictionary) Find(b []byte) (ID, bool) {
	if !d.frozen {
		id, ok := d.ids[string(b)]
		return id, ok
	}
	i := d.search(b)
	if i < d.count && bytes.Equal(d.at(i), b) {
		return ID(i + 1), true
	}
	return NoID, false
}

// Lookup returns the bytes stored under id. For a frozen dictionary that was
// loaded from a mapped file the slice aliases the mapping and is valid until
// the owning Index is closed.
func (d *Dictionary) Lookup(id ID) ([]byte, bool) {
	if id == NoID || int(id) > d.Len() {
		return nil, false
	}
	if !d.frozen {
		return []byte(d.entries[id-1]), true
	}
	return d.at(int(id) - 1), true
}

// Begin returns a cursor at the smallest entry.
func (d *Dictionary) Begin() (Cursor, error) {
	if !d.frozen {
		return Cursor{}, errs.Contractf("iterate unfrozen dictionary %q", d.name)
	}
	return Cursor{d: d}, nil
}

// LowerBound returns a cursor at the first entry that is >= b.
// The cursor is invalid if every entry is smaller than b.
func (d *Dictionary) LowerBound(b []byte) (Cursor, error) {
	if !d.frozen {
		return Cursor{}, errs.Contractf("search unfrozen dictionary %q", d.name)
	}
	return Cursor{d: d, pos: d.search(b)}, nil
}

// Match returns the IDs of all entries matched by p, in ascending order.
func (d *Dictionary) Match(p *Pattern) ([]ID, error) {
	c, err := d.Begin()
	if err != nil {
		return nil, err
	}
	var ids []ID
	for id, b := range c.All() {
		if p.Match(b) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Freeze sorts and packs the dictionary. The returned slice maps every
// building-phase ID (its index) to the final ID; index 0 maps NoID to NoID.
//
// A dictionary that a table of its index binds cannot be frozen on its own,
// because the rows already added hold building IDs. Index.Finalize freezes
// such dictionaries and translates the rows together.
func (d *Dictionary) Freeze() ([]ID, error) {
	if d.frozen {
		return nil, errs.Contractf("dictionary %q is already frozen", d.name)
	}
	if d.owner != nil {
		if t, ok := d.owner.bindingTable(d.name); ok {
			return nil, errs.Contractf("dictionary %q is bound by table %q; freeze it with Index.Finalize", d.name, t)
		}
	}
	return d.freeze()
}

func (d *Dictionary) freeze() ([]ID, error) {
	p, remap, err := d.pack()
	if err != nil {
		return nil, err
	}
	d.install(p)
	return remap, nil
}

// packed is the frozen form of a dictionary that has not been installed yet.
type packed struct {
	count   int
	offsets []byte
	data    []byte
}

// pack computes the frozen buffer and the ID remap without modifying d.
func (d *Dictionary) pack() (packed, []ID, error) {
	order := make([]int, len(d.entries))
	var total int
	for i := range order {
		order[i] = i
		total += len(d.entries[i]) + 1
	}
	if uint64(total) > math.MaxUint32 {
		return packed{}, nil, errs.Contractf("dictionary %q exceeds 4 GiB", d.name)
	}
	sort.Slice(order, func(a, b int) bool {
		return d.entries[order[a]] < d.entries[order[b]]
	})

	remap := make([]ID, len(d.entries)+1)
	offsets := make([]byte, 0, 4*len(order))
	data := make([]byte, 0, total)
	for rank, old := range order {
		remap[old+1] = ID(rank + 1)
		offsets = binary.LittleEndian.AppendUint32(offsets, uint32(len(data)))
		data = append(data, d.entries[old]...)
		data = append(data, 0)
	}
	return packed{count: len(order), offsets: offsets, data: data}, remap, nil
}

func (d *Dictionary) install(p packed) {
	d.count = p.count
	d.offsets = p.offsets
	d.data = p.data
	d.frozen = true
	d.ids = nil
	d.entries = nil
}

// thaw turns a frozen dictionary back into a building one. Every entry keeps
// its ID, which becomes provisional again. The entries are copied, so the
// dictionary no longer references mapped memory afterwards.
func (d *Dictionary) thaw() {
	if !d.frozen {
		return
	}
	d.entries = make([]string, d.count)
	d.ids = make(map[string]ID, d.count)
	for i := 0; i < d.count; i++ {
		s := string(d.at(i))
		d.entries[i] = s
		d.ids[s] = ID(i + 1)
	}
	d.count = 0
	d.offsets = nil
	d.data = nil
	d.frozen = false
}

// at returns the i-th (0-based) frozen entry without its terminator.
func (d *Dictionary) at(i int) []byte {
	start := int(binary.LittleEndian.Uint32(d.offsets[4*i:]))
	end := len(d.data) - 1
	if i+1 < d.count {
		end = int(binary.LittleEndian.Uint32(d.offsets[4*(i+1):])) - 1
	}
	return d.data[start:end:end]
}

// search returns the position of the first frozen entry >= b.
func (d *Dictionary) search(b []byte) int {
	return sort.Search(d.count, func(i int) bool {
		return bytes.Compare(d.at(i), b) >= 0
	})
}

// writeFrozen serializes the frozen buffer:
//
//	count:u32 | dataLen:u32 | offsets:count*u32 | data (sorted, NUL-terminated)
func (d *Dictionary) writeFrozen(w *storageio.Writer) {
	w.WriteUint32(uint32(d.count))
	w.WriteUint32(uint32(len(d.data)))
	w.WriteBytes(d.offsets)
	w.WriteBytes(d.data)
}

// readFrozenDictionary reads and validates a frozen buffer. The returned
// dictionary aliases whatever memory r hands out.
func readFrozenDictionary(name string, r storageio.Reader) (*Dictionary, error) {
	count, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	dataLen, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	if uint64(count) > uint64(dataLen) {
		return nil, errs.Corruptf("dictionary %q: %d entries in %d bytes", name, count, dataLen)
	}
	offsets, err := r.ReadBytes(int(count) * 4)
	if err != nil {
		return nil, err
	}
	data, err := r.ReadBytes(int(dataLen))
	if err != nil {
		return nil, err
	}

	d := &Dictionary{
		name:    name,
		frozen:  true,
		count:   int(count),
		offsets: offsets,
		data:    data,
	}
	if err := d.validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// validate checks that offsets are increasing, every entry is NUL-terminated
// and entries are strictly ascending.
func (d *Dictionary) validate() error {
	if d.count == 0 {
		if len(d.data) != 0 {
			return errs.Corruptf("dictionary %q: data without entries", d.name)
		}
		return nil
	}
	if binary.LittleEndian.Uint32(d.offsets) != 0 {
		return errs.Corruptf("dictionary %q: first offset is not zero", d.name)
	}
	if d.data[len(d.data)-1] != 0 {
		return errs.Corruptf("dictionary %q: missing terminator", d.name)
	}
	prev := uint32(0)
	for i := 1; i < d.count; i++ {
		off := binary.LittleEndian.Uint32(d.offsets[4*i:])
		if off <= prev || int(off) >= len(d.data) || d.data[off-1] != 0 {
			return errs.Corruptf("dictionary %q: bad offset %d for entry %d", d.name, off, i)
		}
		prev = off
	}
	for i := 1; i < d.count; i++ {
		if bytes.Compare(d.at(i-1), d.at(i)) >= 0 {
			return errs.Corruptf("dictionary %q: entries %d and %d out of order", d.name, i-1, i)
		}
	}
	return nil
}

// Cursor is a position in a frozen dictionary.
type Cursor struct {
	d   *Dictionary
	pos int
}

// Valid reports whether the cursor points at an entry.
func (c *Cursor) Valid() bool {
	return c.d != nil && c.pos >= 0 && c.pos < c.d.count
}

// Next advances to the following entry.
func (c *Cursor) Next() { c.pos++ }

// Prev moves to the preceding entry and reports whether one exists.
func (c *Cursor) Prev() bool {
	if c.d == nil || c.pos == 0 {
		return false
	}
	c.pos--
	return true
}

// ID returns the ID of the current entry.
func (c *Cursor) ID() ID { return ID(c.pos + 1) }

// Bytes returns the current entry.
func (c *Cursor) Bytes() []byte { return c.d.at(c.pos) }

// All yields the entries from the current position to the end without moving
// the cursor.
func (c *Cursor) All() iter.Seq2[ID, []byte] {
	return func(yield func(ID, []byte) bool) {
		if c.d == nil {
			return
		}
		for i := max(c.pos, 0); i < c.d.count; i++ {
			if !yield(ID(i+1), c.d.at(i)) {
				return
			}
		}
	}
}

// Strings returns every entry of a frozen dictionary, in ID order.
func (d *Dictionary) Strings() ([]string, error) {
	c, err := d.Begin()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, d.count)
	for _, b := range c.All() {
		out = append(out, string(b))
	}
	return out, nil
}
