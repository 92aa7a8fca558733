package abi

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// FunctionRecord holds the derived description of a contract function.
type FunctionRecord struct {
	Name        string
	Signature   string
	Hash        common.Hash
	Selector    string
	ParamNames  []string
	ParamTypes  []string
	OutputNames []string
	OutputTypes []string
	Mutability  string

	// Canonical encodings of structured parameters, keyed by parameter name.
	InputTupleEncodings  map[string]string
	OutputTupleEncodings map[string]string
}

// IsGetter reports whether the function is read-only.
func (r *FunctionRecord) IsGetter() bool {
	return r.Mutability == MutabilityView
}

// EventRecord holds the derived description of a contract event. Indexed and
// non-indexed inputs are kept apart since they are transported differently.
type EventRecord struct {
	Name           string
	Signature      string
	Hash           common.Hash
	Selector       string
	ParamNames     []string
	ParamTypes     []string
	IndexedNames   []string
	IndexedTypes   []string
	UnindexedNames []string
	UnindexedTypes []string
}

// ConstructorRecord holds constructor inputs. No hash is derived for it.
type ConstructorRecord struct {
	InputNames []string
	InputTypes []string
}

// SelectorCollisionError is returned when two distinct canonical signatures
// share a selector.
type SelectorCollisionError struct {
	Selector  string
	Existing  string
	Colliding string
}

func (e *SelectorCollisionError) Error() string {
	return fmt.Sprintf("selector %s of %s collides with %s", e.Selector, e.Colliding, e.Existing)
}

// Registry indexes the functions, events and constructor of one contract
// interface. It is read-only once built and safe for concurrent readers.
type Registry struct {
	entries []Entry

	functions         map[common.Hash]*FunctionRecord
	functionNames     map[string]common.Hash
	functionSelectors map[string]common.Hash
	events            map[common.Hash]*EventRecord
	eventNames        map[string]common.Hash
	constructor       *ConstructorRecord
	overloads         map[string][]common.Hash
	eventOverloads    map[string][]common.Hash
}

// New builds a registry from an interface description.
func New(entries []Entry) (*Registry, error) {
	return build(entries)
}

// Load recomputes every index from the current interface description. On
// error the previous indices are kept.
func (r *Registry) Load() error {
	next, err := build(r.entries)
	if err != nil {
		return err
	}
	*r = *next
	return nil
}

// Reload replaces the interface description and rebuilds the indices. On
// error the registry keeps its previous description and indices.
func (r *Registry) Reload(entries []Entry) error {
	next, err := build(entries)
	if err != nil {
		return err
	}
	*r = *next
	return nil
}

func build(entries []Entry) (*Registry, error) {
	r := &Registry{
		entries:           entries,
		functions:         make(map[common.Hash]*FunctionRecord),
		functionNames:     make(map[string]common.Hash),
		functionSelectors: make(map[string]common.Hash),
		events:            make(map[common.Hash]*EventRecord),
		eventNames:        make(map[string]common.Hash),
		overloads:         make(map[string][]common.Hash),
		eventOverloads:    make(map[string][]common.Hash),
	}

	var functions, events, constructors []Entry
	for _, e := range entries {
		switch e.Type {
		case KindFunction:
			functions = append(functions, e)
		case KindEvent:
			events = append(events, e)
		case KindConstructor:
			constructors = append(constructors, e)
		}
	}

	r.mapEvents(events)
	if err := r.mapFunctions(functions); err != nil {
		return nil, err
	}
	r.mapConstructor(constructors)
	return r, nil
}

// Entries returns the interface description the registry was built from.
func (r *Registry) Entries() []Entry {
	return r.entries
}

// mapEvents indexes events by full hash. Event topics carry the whole hash,
// so there is no selector to collide on. Overloaded names are last-wins and
// reported by EventOverloads.
func (r *Registry) mapEvents(events []Entry) {
	for _, event := range events {
		types, _ := canonicalTypes(event.Inputs)
		signature := CanonicalSignature(event.Name, types)
		hash := SignatureHash(signature)

		rec := &EventRecord{
			Name:       event.Name,
			Signature:  signature,
			Hash:       hash,
			Selector:   Selector(hash),
			ParamNames: fieldNames(event.Inputs),
			ParamTypes: types,
		}
		for i, in := range event.Inputs {
			if in.Indexed {
				rec.IndexedNames = append(rec.IndexedNames, in.Name)
				rec.IndexedTypes = append(rec.IndexedTypes, types[i])
			} else {
				rec.UnindexedNames = append(rec.UnindexedNames, in.Name)
				rec.UnindexedTypes = append(rec.UnindexedTypes, types[i])
			}
		}

		if prev, ok := r.eventNames[event.Name]; ok && prev != hash {
			if len(r.eventOverloads[event.Name]) == 0 {
				r.eventOverloads[event.Name] = []common.Hash{prev}
			}
			r.eventOverloads[event.Name] = append(r.eventOverloads[event.Name], hash)
		}

		r.events[hash] = rec
		r.eventNames[event.Name] = hash
	}
}

func (r *Registry) mapFunctions(functions []Entry) error {
	for _, fn := range functions {
		inTypes, inTuples := canonicalTypes(fn.Inputs)
		outTypes, outTuples := canonicalTypes(fn.Outputs)
		signature := CanonicalSignature(fn.Name, inTypes)
		hash := SignatureHash(signature)
		selector := Selector(hash)

		if existing, ok := r.functionSelectors[selector]; ok && existing != hash {
			return &SelectorCollisionError{
				Selector:  selector,
				Existing:  r.functions[existing].Signature,
				Colliding: signature,
			}
		}

		if prev, ok := r.functionNames[fn.Name]; ok && prev != hash {
			if len(r.overloads[fn.Name]) == 0 {
				r.overloads[fn.Name] = []common.Hash{prev}
			}
			r.overloads[fn.Name] = append(r.overloads[fn.Name], hash)
		}

		r.functions[hash] = &FunctionRecord{
			Name:                 fn.Name,
			Signature:            signature,
			Hash:                 hash,
			Selector:             selector,
			ParamNames:           fieldNames(fn.Inputs),
			ParamTypes:           inTypes,
			OutputNames:          fieldNames(fn.Outputs),
			OutputTypes:          outTypes,
			Mutability:           fn.StateMutability,
			InputTupleEncodings:  inTuples,
			OutputTupleEncodings: outTuples,
		}
		r.functionNames[fn.Name] = hash
		r.functionSelectors[selector] = hash
	}
	return nil
}

func (r *Registry) mapConstructor(constructors []Entry) {
	for _, c := range constructors {
		types, _ := canonicalTypes(c.Inputs)
		r.constructor = &ConstructorRecord{
			InputNames: fieldNames(c.Inputs),
			InputTypes: types,
		}
	}
}

// Function looks a function up by name.
func (r *Registry) Function(name string) (*FunctionRecord, bool) {
	hash, ok := r.functionNames[name]
	if !ok {
		return nil, false
	}
	return r.FunctionByHash(hash)
}

// FunctionByHash looks a function up by its signature hash.
func (r *Registry) FunctionByHash(hash common.Hash) (*FunctionRecord, bool) {
	rec, ok := r.functions[hash]
	return rec, ok
}

// FunctionBySelector looks a function up by its 8 hex character selector.
func (r *Registry) FunctionBySelector(selector string) (*FunctionRecord, bool) {
	hash, ok := r.functionSelectors[selector]
	if !ok {
		return nil, false
	}
	return r.FunctionByHash(hash)
}

// Event looks an event up by name.
func (r *Registry) Event(name string) (*EventRecord, bool) {
	hash, ok := r.eventNames[name]
	if !ok {
		return nil, false
	}
	return r.EventByHash(hash)
}

// EventByHash looks an event up by its signature hash.
func (r *Registry) EventByHash(hash common.Hash) (*EventRecord, bool) {
	rec, ok := r.events[hash]
	return rec, ok
}

// Constructor returns the constructor record, or nil when the interface
// declares none.
func (r *Registry) Constructor() *ConstructorRecord {
	return r.constructor
}

// Overloads returns the function names declared more than once with distinct
// signatures. The name index only resolves to the last of them.
func (r *Registry) Overloads() map[string][]common.Hash {
	return copyOverloads(r.overloads)
}

// EventOverloads is Overloads for events.
func (r *Registry) EventOverloads() map[string][]common.Hash {
	return copyOverloads(r.eventOverloads)
}

func copyOverloads(in map[string][]common.Hash) map[string][]common.Hash {
	out := make(map[string][]common.Hash, len(in))
	for name, hashes := range in {
		out[name] = append([]common.Hash(nil), hashes...)
	}
	return out
}

// Getters returns the read-only functions keyed by hash.
func (r *Registry) Getters() map[common.Hash]*FunctionRecord {
	return r.partition(true)
}

// Writers returns the state-changing functions keyed by hash.
func (r *Registry) Writers() map[common.Hash]*FunctionRecord {
	return r.partition(false)
}

// GettersByName returns the read-only functions the name index resolves to.
func (r *Registry) GettersByName() map[string]*FunctionRecord {
	return r.byName(r.partition(true))
}

// WritersByName returns the state-changing functions the name index resolves to.
func (r *Registry) WritersByName() map[string]*FunctionRecord {
	return r.byName(r.partition(false))
}

func (r *Registry) partition(getters bool) map[common.Hash]*FunctionRecord {
	out := make(map[common.Hash]*FunctionRecord)
	for hash, rec := range r.functions {
		if rec.IsGetter() == getters {
			out[hash] = rec
		}
	}
	return out
}

// byName keys records by name, keeping only the record the name index
// resolves to so overloads are reported consistently.
func (r *Registry) byName(records map[common.Hash]*FunctionRecord) map[string]*FunctionRecord {
	out := make(map[string]*FunctionRecord, len(records))
	for hash, rec := range records {
		if r.functionNames[rec.Name] == hash {
			out[rec.Name] = rec
		}
	}
	return out
}
