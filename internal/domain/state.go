// Package domain contains the pure domain model of the tabulation engine:
// mention scales, ballots, tallies, results, the typed errors and the
// immutable State passed between stages.
package domain

import (
	"fmt"
	"maps"
	"reflect"
	"time"
)

// Key represents a type-safe generic key for accessing values in State.
// The type parameter T ensures compile-time type safety when getting and
// setting values, eliminating the need for runtime type assertions.
type Key[T any] struct{ name string }

// NewKey creates a new Key with the specified name and type.
// This function is provided for creating keys outside of the domain package.
func NewKey[T any](name string) Key[T] {
	return Key[T]{name: name}
}

// Predefined state keys used by the tabulation stages. Each key is
// strongly typed to ensure type safety at compile time.
var (
	// KeyRows stores the raw table: header row followed by ballot rows.
	KeyRows = Key[[][]string]{"rows"}

	// KeyDeclaredScale stores the scale size announced by the caller,
	// 0 when the scale should be inferred.
	KeyDeclaredScale = Key[int]{"declared_scale"}

	// KeyScale stores the mention scale inferred from the ballots.
	KeyScale = Key[*MentionScale]{"scale"}

	// KeyChoices stores the ordered choice names.
	KeyChoices = Key[[]string]{"choices"}

	// KeyBallots stores the validated ballots.
	KeyBallots = Key[[]Ballot]{"ballots"}

	// KeyTallies stores one tally per choice, aligned with KeyChoices.
	KeyTallies = Key[[]Tally]{"tallies"}

	// KeyResult stores the composed result.
	KeyResult = Key[*ScrutinResult]{"result"}

	// KeyToken stores the encoded result token.
	KeyToken = Key[string]{"token"}

	// Execution context keys for tracking metadata across a run.

	// KeyExecutionID stores a unique identifier for this tabulation,
	// useful for tracing and log correlation.
	KeyExecutionID = Key[string]{"execution.execution_id"}

	// KeySource stores where the ballots came from (cli, api, ...).
	KeySource = Key[string]{"execution.source"}
)

// deepCopyValue creates a deep copy of a value to ensure true immutability.
// It handles slices, maps, and other reference types that would otherwise
// allow external modification of State data.
func deepCopyValue(value any) any {
	if value == nil {
		return nil
	}

	// time.Time and scales are immutable and can be returned directly.
	switch val := value.(type) {
	case time.Time:
		return val
	case *MentionScale:
		return val
	}

	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Slice:
		newSlice := reflect.MakeSlice(v.Type(), v.Len(), v.Cap())
		for i := 0; i < v.Len(); i++ {
			newSlice.Index(i).Set(reflect.ValueOf(deepCopyValue(v.Index(i).Interface())))
		}
		return newSlice.Interface()

	case reflect.Map:
		newMap := reflect.MakeMap(v.Type())
		for _, key := range v.MapKeys() {
			copiedKey := deepCopyValue(key.Interface())
			copiedValue := deepCopyValue(v.MapIndex(key).Interface())
			newMap.SetMapIndex(reflect.ValueOf(copiedKey), reflect.ValueOf(copiedValue))
		}
		return newMap.Interface()

	case reflect.Ptr:
		if v.IsNil() {
			return v.Interface()
		}
		newPtr := reflect.New(v.Elem().Type())
		newPtr.Elem().Set(reflect.ValueOf(deepCopyValue(v.Elem().Interface())))
		return newPtr.Interface()

	case reflect.Struct:
		// This performs a shallow copy for unexported fields but deep copies
		// exported fields.
		newStruct := reflect.New(v.Type()).Elem()
		for i := 0; i < v.NumField(); i++ {
			if newStruct.Field(i).CanSet() {
				newStruct.Field(i).Set(reflect.ValueOf(deepCopyValue(v.Field(i).Interface())))
			}
		}
		return newStruct.Interface()

	default:
		// Primitive types are returned as-is since they are copied by value.
		return value
	}
}

// State represents an immutable collection of tabulation data that flows
// through the pipeline. It uses copy-on-write semantics to ensure
// thread-safety and prevent unintended mutations. State is the primary
// data structure for passing information between stages.
type State struct {
	// data holds the key-value pairs that make up the state.
	// It is unexported to maintain immutability guarantees.
	data map[string]any
}

// NewState creates a new empty State.
// The returned State is ready to use and can be safely shared across
// goroutines.
func NewState() State {
	return State{
		data: make(map[string]any),
	}
}

// Get retrieves a value from the State with compile-time type safety.
// It returns the value and a boolean indicating whether the key exists
// and contains a value of the correct type. The returned value is a deep
// copy to maintain immutability.
//
// Example:
//
//	tallies, ok := Get(state, KeyTallies)
//	if !ok {
//	    // handle missing value
//	}
//	// tallies is typed as []Tally, no type assertion needed
func Get[T any](s State, key Key[T]) (T, bool) {
	var zero T
	value, exists := s.data[key.name]
	if !exists {
		return zero, false
	}

	copied := deepCopyValue(value)
	val, ok := copied.(T)
	return val, ok
}

// GetRaw is a method version of Get that uses a string key.
// For type safety, use the generic Get function instead.
func (s State) GetRaw(keyName string) (any, bool) {
	value, exists := s.data[keyName]
	if !exists {
		return nil, false
	}
	return deepCopyValue(value), true
}

// With creates a new State with the specified key-value pair added or
// updated. It implements copy-on-write semantics, returning a new State
// instance while leaving the original unchanged. This function is the
// primary way to add or update data in a State.
//
// Example:
//
//	newState := With(state, KeyToken, token)
func With[T any](s State, key Key[T], value T) State {
	newData := maps.Clone(s.data)
	newData[key.name] = deepCopyValue(value)
	return State{data: newData}
}

// WithRaw is a method version of With that uses a string key and allows
// chaining. For type safety, use the generic With function instead.
func (s State) WithRaw(keyName string, value any) State {
	newData := maps.Clone(s.data)
	newData[keyName] = deepCopyValue(value)
	return State{data: newData}
}

// WithMultiple creates a new State with multiple key-value pairs added
// or updated. It is more efficient than chaining multiple With calls as
// it performs a single clone operation. The updates map uses string keys
// for flexibility when updating multiple values at once.
//
// Example:
//
//	updates := map[string]any{
//	    KeyChoices.name: []string{"A", "B"},
//	    KeyDeclaredScale.name: 6,
//	}
//	newState := state.WithMultiple(updates)
func (s State) WithMultiple(updates map[string]any) State {
	newData := maps.Clone(s.data)
	for k, v := range updates {
		newData[k] = deepCopyValue(v)
	}
	return State{data: newData}
}

// Keys returns all keys present in the State.
// The returned slice can be used to iterate over all stored values and
// is safe to modify without affecting the original State.
func (s State) Keys() []string {
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys
}

// String returns a string representation of the State for debugging purposes.
func (s State) String() string {
	return fmt.Sprintf("State%v", s.data)
}

// Name returns the string form of the key.
func (k Key[T]) Name() string { return k.name }

// ExecutionContext contains metadata about the current tabulation that
// flows through the State. It gives middleware and logging consistent
// access to run metadata.
type ExecutionContext struct {
	// ExecutionID is a unique identifier for this run, useful for tracing
	// and correlation.
	ExecutionID string

	// Source describes where the ballots came from.
	Source string
}

// WithExecutionContext creates a new State with execution context metadata
// included. It should be called before the first stage runs.
func (s State) WithExecutionContext(ctx ExecutionContext) State {
	updates := map[string]any{
		KeyExecutionID.name: ctx.ExecutionID,
		KeySource.name:      ctx.Source,
	}
	return s.WithMultiple(updates)
}

// GetExecutionContext extracts execution context metadata from the State.
// It reports false when the execution id is missing.
func (s State) GetExecutionContext() (ExecutionContext, bool) {
	executionID, ok := Get(s, KeyExecutionID)
	if !ok || executionID == "" {
		return ExecutionContext{}, false
	}
	source, _ := Get(s, KeySource)

	return ExecutionContext{
		ExecutionID: executionID,
		Source:      source,
	}, true
}
