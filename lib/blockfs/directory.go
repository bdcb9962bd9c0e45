// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package blockfs

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/bureau-foundation/blockfs/lib/bitindex"
)

// selfName is the name of the entry every directory holds for itself.
const selfName = "."

// Entry maps a name to an inode within one directory.
type Entry struct {
	// Name is the stored name, at most MaxNameLength bytes.
	Name string

	// Inode is the inode the name refers to.
	Inode InodeIndex

	// Slot is the entry's position in its directory, 1-based. Slot 1
	// is always the self entry.
	Slot int
}

// Directory is the entry table of one directory block.
//
// The first entrySize bytes hold the occupancy vector in place of an
// entry: bit j reports whether slot j+1 is in use. Bit 0 belongs to
// the self entry; members take bits 1 through EntriesPerDirectory-1.
type Directory struct {
	block     []byte
	occupancy bitindex.Vector
}

func openDirectory(block []byte) *Directory {
	return &Directory{
		block:     block,
		occupancy: bitindex.Vector(block[:entrySize]),
	}
}

// slot returns the bytes of the slot reported by occupancy bit.
func (d *Directory) slot(bit int) []byte {
	start := (bit + 1) * entrySize
	return d.block[start : start+entrySize]
}

func (d *Directory) entryAt(bit int) Entry {
	slot := d.slot(bit)
	name := slot[:entryNameSize]
	if end := bytes.IndexByte(name, 0); end >= 0 {
		name = name[:end]
	}
	return Entry{
		Name:  string(name),
		Inode: InodeIndex(int32(binary.LittleEndian.Uint32(slot[entryNameSize:]))),
		Slot:  bit + 1,
	}
}

func (d *Directory) writeEntry(bit int, name string, inode InodeIndex) {
	slot := d.slot(bit)
	clear(slot[:entryNameSize])
	copy(slot[:MaxNameLength], truncateName(name))
	binary.LittleEndian.PutUint32(slot[entryNameSize:], uint32(inode))
}

// lookup finds the occupied entry whose stored name equals component
// after truncation to MaxNameLength.
func (d *Directory) lookup(component string) (Entry, bool) {
	if component == "" {
		return Entry{}, false
	}
	component = truncateName(component)
	for bit := 0; bit < EntriesPerDirectory; bit++ {
		if !d.occupancy.Get(bit) {
			continue
		}
		if entry := d.entryAt(bit); entry.Name == component {
			return entry, true
		}
	}
	return Entry{}, false
}

func (d *Directory) hasFreeSlot() bool {
	_, ok := d.occupancy.FirstClear(1, EntriesPerDirectory)
	return ok
}

// insert stores name → inode in the first free member slot. A full
// directory fails with ErrCapacityExceeded and is left unchanged.
func (d *Directory) insert(name string, inode InodeIndex) (int, error) {
	bit, ok := d.occupancy.FirstClear(1, EntriesPerDirectory)
	if !ok {
		return 0, fmt.Errorf("inserting %q: %w (directory holds %d entries)",
			name, ErrCapacityExceeded, EntriesPerDirectory)
	}
	d.occupancy.Set(bit, true)
	d.writeEntry(bit, name, inode)
	return bit + 1, nil
}

// remove frees the entry named name and returns the inode it held.
func (d *Directory) remove(name string) (InodeIndex, error) {
	entry, ok := d.lookup(name)
	if !ok {
		return 0, fmt.Errorf("removing %q: %w", name, ErrNotFound)
	}
	d.occupancy.Set(entry.Slot-1, false)
	return entry.Inode, nil
}

// rename rewrites the name of the entry in slot without moving it.
func (d *Directory) rename(slot int, name string) {
	entry := d.entryAt(slot - 1)
	d.writeEntry(slot-1, name, entry.Inode)
}

// release frees slot without reading it.
func (d *Directory) release(slot int) {
	d.occupancy.Set(slot-1, false)
}

// installSelf writes the "." entry for a newly created directory.
func (d *Directory) installSelf(inode InodeIndex) {
	d.occupancy.Set(0, true)
	d.writeEntry(0, selfName, inode)
}

// Entries returns the occupied entries in slot order, the self entry
// first.
func (d *Directory) Entries() []Entry {
	var entries []Entry
	for bit := 0; bit < EntriesPerDirectory; bit++ {
		if d.occupancy.Get(bit) {
			entries = append(entries, d.entryAt(bit))
		}
	}
	return entries
}

// Len returns the number of occupied slots, the self entry included.
func (d *Directory) Len() int {
	return d.occupancy.Count(EntriesPerDirectory)
}

// truncateName cuts name to MaxNameLength bytes, the width stored on
// disk.
func truncateName(name string) string {
	if len(name) > MaxNameLength {
		return name[:MaxNameLength]
	}
	return name
}
