// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package template implements component templates: a declarative,
// versioned description of an account's supported types and initial
// storage layout, resolved against caller-supplied placeholders into a
// concrete *account.Account ready for new-account validation.
package template

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/luxfi/txkernel/account"
	"github.com/luxfi/txkernel/felt"
	"github.com/luxfi/txkernel/kernelmem"
)

var (
	ErrUnsupportedAccountType = errors.New("template: seed's account type is not in the template's supported list")
	ErrUnresolvedPlaceholder  = errors.New("template: storage slot references a placeholder with no supplied value")
	ErrSlotIndexOutOfRange    = errors.New("template: storage slot index exceeds MaxStorageSlots")
)

// SlotSpec is one declared storage slot, either a literal value/map root
// or a named placeholder the caller fills in at Instantiate time.
type SlotSpec struct {
	Index       uint64             `yaml:"index"`
	Type        kernelmem.SlotType `yaml:"type"`
	Arity       uint8              `yaml:"arity"`
	Placeholder string             `yaml:"placeholder,omitempty"`
	Value       *[4]uint64         `yaml:"value,omitempty"`
}

// Template is a parsed component template: identity metadata, the
// account types it may be instantiated as, and its storage layout.
type Template struct {
	Name           string         `yaml:"name"`
	Description    string         `yaml:"description"`
	Version        string         `yaml:"version"`
	SupportedTypes []account.Type `yaml:"supported_types"`
	Slots          []SlotSpec     `yaml:"slots"`
	Procedures     []string       `yaml:"procedures"` // hex-encoded MAST roots, resolved by the loader
}

// Load parses a template from a YAML file.
func Load(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("template: reading %s: %w", path, err)
	}
	var t Template
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("template: parsing %s: %w", path, err)
	}
	return &t, nil
}

// supportsType reports whether typ is in the template's supported list.
func (t *Template) supportsType(typ account.Type) bool {
	for _, s := range t.SupportedTypes {
		if s == typ {
			return true
		}
	}
	return false
}

// Instantiate resolves placeholders against the supplied values
// and builds the account's initial storage/code layout, ready for
// seal-as-new-account validation in the prologue (account.ValidateAsNew,
// kernel.RunPrologue's new-account branch). id must already satisfy
// account.Id.ValidateStructure and carry a type the template supports;
// the seed itself is validated by the kernel prologue, not here, since
// proof-of-work depends on the account's final code/storage roots, which
// this function produces.
func (t *Template) Instantiate(id account.Id, placeholders map[string]felt.Word, procedureRoots []felt.Digest) (*account.Account, error) {
	if !t.supportsType(id.AccountType()) {
		return nil, ErrUnsupportedAccountType
	}

	acct := account.New(id)
	for i, root := range procedureRoots {
		acct.AddProcedure(uint64(i), root)
	}

	for _, slot := range t.Slots {
		if slot.Index >= kernelmem.MaxStorageSlots {
			return nil, ErrSlotIndexOutOfRange
		}
		acct.Slots[slot.Index] = kernelmem.SlotDescriptor{Type: slot.Type, Arity: uint32(slot.Arity)}

		var word felt.Word
		switch {
		case slot.Placeholder != "":
			w, ok := placeholders[slot.Placeholder]
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrUnresolvedPlaceholder, slot.Placeholder)
			}
			word = w
		case slot.Value != nil:
			word = felt.WordFromUint64s(slot.Value[0], slot.Value[1], slot.Value[2], slot.Value[3])
		default:
			word = felt.EmptyWord
		}

		switch slot.Type {
		case kernelmem.SlotTypeValue:
			if err := acct.SetSlot(slot.Index, word); err != nil {
				return nil, err
			}
		case kernelmem.SlotTypeMap:
			if err := acct.SetMapRoot(slot.Index, felt.Digest(word)); err != nil {
				return nil, err
			}
		default:
			// Array-kind slots store their commitment word directly in the
			// storage tree; account.Account only exposes typed setters for
			// Value and Map, so write it into the storage tree directly.
			acct.Storage.Set(slot.Index, word)
		}
	}

	return acct, nil
}
