package rtti

import (
	"reflect"

	"github.com/BareMetalEngine/bm-core-sub001/internal/opcode"
)

// WriteClassBinary is the generic compound-write algorithm spec section
// 4.D/6 describes: open a compound, write each non-default,
// non-transient, non-scripted property in declaration order wrapped in
// a skip block, close the compound. A concrete Class's WriteBinary is
// typically nothing more than a call to this helper — it is provided
// here, rather than duplicated by every Class implementation, because
// it depends only on the Class/Property/Type contracts this package
// already owns.
func WriteClassBinary(w BinaryWriter, class Class, value, defaultValue reflect.Value) error {
	w.BeginCompound(class)
	for _, prop := range class.Properties() {
		if prop.Transient() || prop.Scripted() {
			continue
		}
		pv := prop.Get(value)
		var dv reflect.Value
		if defaultValue.IsValid() {
			dv = prop.Get(defaultValue)
		} else {
			dv = prop.Type().ZeroValue()
		}
		if prop.Type().Equal(pv, dv) {
			continue
		}
		tok := w.BeginSkipBlock()
		w.WriteProperty(prop)
		if err := prop.Type().WriteBinary(w, pv, dv); err != nil {
			w.EndSkipBlock(tok)
			return err
		}
		w.EndSkipBlock(tok)
	}
	w.EndCompound()
	return nil
}

// ReadClassBinary is the read-side counterpart. It loops Property
// opcodes until the compound ends, reading each property NextProperty
// resolved against the current class and skipping each one it could
// not resolve. It does not call owner's OnPropertyMissing or
// OnPropertyTypeChanged; owner is unused.
func ReadClassBinary(r BinaryReader, class Class, value reflect.Value, owner Object) error {
	if _, err := r.BeginCompound(); err != nil {
		return err
	}
	for {
		prop, present, err := r.NextProperty()
		if err != nil {
			return err
		}
		if !present {
			break
		}
		tok := r.BeginSkipBlock()
		if prop == nil {
			// Name/type resolution failed upstream; NextProperty already
			// reported it. Nothing more to do than skip.
			if err := r.EndSkipBlock(tok); err != nil {
				return err
			}
			continue
		}
		pv := prop.Get(value)
		if err := prop.Type().ReadBinary(r, pv); err != nil {
			r.EndSkipBlock(tok)
			return err
		}
		prop.Set(value, pv)
		if err := r.EndSkipBlock(tok); err != nil {
			return err
		}
	}
	return r.EndCompound()
}

// WriteClassTextFields writes class's non-default, non-transient,
// non-scripted properties as named fields into whatever struct element
// is currently open on w, without opening one itself. A TextWriter's
// WriteObjectValue calls this after it has opened the object's node
// element; WriteClassText uses it for the
// ordinary case of a Class value with no identity of its own.
func WriteClassTextFields(w TextWriter, class Class, value, defaultValue reflect.Value) error {
	for _, prop := range class.Properties() {
		if prop.Transient() || prop.Scripted() {
			continue
		}
		pv := prop.Get(value)
		var dv reflect.Value
		if defaultValue.IsValid() {
			dv = prop.Get(defaultValue)
		} else {
			dv = prop.Type().ZeroValue()
		}
		if prop.Type().Equal(pv, dv) {
			continue
		}
		w.WriteField(prop.Name())
		if err := prop.Type().WriteText(w, pv, dv); err != nil {
			return err
		}
	}
	return nil
}

// WriteClassText is the Type.WriteText a plain (non-identity) compound
// Class uses: open a struct, write fields, close it. A Class reached
// through a StrongHandle/WeakHandle instead goes through
// WriteObjectValue + WriteClassTextFields, since the node element and
// its id/refId attribute are owned by the handle, not the class.
func WriteClassText(w TextWriter, class Class, value, defaultValue reflect.Value) error {
	w.BeginStruct(class.Name())
	if err := WriteClassTextFields(w, class, value, defaultValue); err != nil {
		w.EndStruct()
		return err
	}
	w.EndStruct()
	return nil
}

// ReadClassTextFields is ReadClassText's counterpart to
// WriteClassTextFields: reads fields from whatever struct element is
// currently open without expecting to open or close it itself.
func ReadClassTextFields(r TextReader, class Class, value reflect.Value, owner Object) error {
	for {
		name, ok := r.NextField()
		if !ok {
			return nil
		}
		prop := findProperty(class, name)
		if prop == nil {
			info := PropertyMissingInfo{Name: name}
			if owner == nil || !owner.OnPropertyMissing(info, nil) {
				r.Reporter().ReportMissingProperty(class.Name(), name)
			}
			// Consume the unknown field's element so the loop moves on.
			r.ReadText()
			continue
		}
		pv := prop.Get(value)
		if err := prop.Type().ReadText(r, pv); err != nil {
			return err
		}
		prop.Set(value, pv)
	}
}

func findProperty(class Class, name string) Property {
	for _, p := range class.Properties() {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// ReadClassText mirrors WriteClassText.
func ReadClassText(r TextReader, class Class, value reflect.Value, owner Object) error {
	if _, ok := r.BeginStruct(); !ok {
		return nil
	}
	if err := ReadClassTextFields(r, class, value, owner); err != nil {
		r.EndStruct()
		return err
	}
	r.EndStruct()
	return nil
}

// WriteResourceRefBinary implements the ResourceRef wire grammar from
// spec section 6: a byte mask followed by the external or inlined form.
func WriteResourceRefBinary(w BinaryWriter, key ResourceKey, inline Object) {
	var mask opcode.ResourceRefMask
	if inline != nil {
		mask |= opcode.ResourceRefInlined
	} else if key.Class != nil {
		mask |= opcode.ResourceRefExternal
	}
	w.WriteResourceRefMask(mask, ResourceKey{Class: key.Class, ID: key.ID, External: mask&opcode.ResourceRefExternal != 0, Path: key.Path})
	if inline != nil {
		w.WritePointer(inline, true)
	}
}
