package core

import "errors"

// OIDType tags the kind of object stored under an oid. Lookups must name
// the same type the object was allocated with.
type OIDType string

var (
	ErrOIDRange        = errors.New("oid out of range")
	ErrOIDInUse        = errors.New("oid already assigned")
	ErrOIDType         = errors.New("oid has a different type")
	ErrConfigFinalized = errors.New("config already finalized")
)

// OIDError records which oid an allocation or lookup failed on.
type OIDError struct {
	OID uint8
	Err error

	alloc bool
}

func (e *OIDError) Error() string {
	return "oid " + itoa(int(e.OID)) + ": " + e.Err.Error()
}

func (e *OIDError) Unwrap() error { return e.Err }

type oidSlot struct {
	typ OIDType
	obj interface{}
}

// OIDTable is the object table the host configures by small integer ids.
// Its size is fixed by allocate_oids and it stops accepting new objects
// once finalize_config has run.
type OIDTable struct {
	slots     []oidSlot
	finalized bool
}

var oids = &OIDTable{}

// GetOIDTable returns the firmware's object table.
func GetOIDTable() *OIDTable {
	return oids
}

// Allocate sizes the table. A table that already has slots is left alone,
// as the host may resend allocate_oids after a reconnect.
func (t *OIDTable) Allocate(count uint8) {
	if t.slots != nil {
		return
	}
	t.slots = make([]oidSlot, count)
}

// Alloc stores obj under oid. It never replaces an existing object.
func (t *OIDTable) Alloc(oid uint8, typ OIDType, obj interface{}) error {
	if t.finalized {
		return &OIDError{OID: oid, Err: ErrConfigFinalized, alloc: true}
	}
	if int(oid) >= len(t.slots) {
		return &OIDError{OID: oid, Err: ErrOIDRange, alloc: true}
	}
	if t.slots[oid].typ != "" {
		return &OIDError{OID: oid, Err: ErrOIDInUse, alloc: true}
	}
	t.slots[oid] = oidSlot{typ: typ, obj: obj}
	return nil
}

// Lookup returns the object stored under oid if it has type typ.
func (t *OIDTable) Lookup(oid uint8, typ OIDType) (interface{}, error) {
	if int(oid) >= len(t.slots) {
		return nil, &OIDError{OID: oid, Err: ErrOIDRange}
	}
	s := t.slots[oid]
	if s.typ != typ {
		return nil, &OIDError{OID: oid, Err: ErrOIDType}
	}
	return s.obj, nil
}

// Foreach visits every object of type typ in oid order.
func (t *OIDTable) Foreach(typ OIDType, fn func(oid uint8, obj interface{})) {
	for i, s := range t.slots {
		if s.typ == typ {
			fn(uint8(i), s.obj)
		}
	}
}

// Finalize closes the table to further allocations.
func (t *OIDTable) Finalize() {
	t.finalized = true
}

// Reset drops every object and the table size.
func (t *OIDTable) Reset() {
	t.slots = nil
	t.finalized = false
}
