package feedme

import (
	"fmt"
	"reflect"
)

// DeltaOperation identifies one of the fourteen mutation operations a feed
// delta can carry.
type DeltaOperation string

const (
	OpSet          DeltaOperation = "Set"
	OpDelete       DeltaOperation = "Delete"
	OpDeleteValue  DeltaOperation = "DeleteValue"
	OpPrepend      DeltaOperation = "Prepend"
	OpAppend       DeltaOperation = "Append"
	OpIncrement    DeltaOperation = "Increment"
	OpDecrement    DeltaOperation = "Decrement"
	OpToggle       DeltaOperation = "Toggle"
	OpInsertFirst  DeltaOperation = "InsertFirst"
	OpInsertLast   DeltaOperation = "InsertLast"
	OpInsertBefore DeltaOperation = "InsertBefore"
	OpInsertAfter  DeltaOperation = "InsertAfter"
	OpDeleteFirst  DeltaOperation = "DeleteFirst"
	OpDeleteLast   DeltaOperation = "DeleteLast"
)

// operations that carry a Value argument; the rest (Delete, Toggle,
// DeleteFirst, DeleteLast) must not.
var valueOperations = map[DeltaOperation]bool{
	OpSet:          true,
	OpDeleteValue:  true,
	OpPrepend:      true,
	OpAppend:       true,
	OpIncrement:    true,
	OpDecrement:    true,
	OpInsertFirst:  true,
	OpInsertLast:   true,
	OpInsertBefore: true,
	OpInsertAfter:  true,
}

func (op DeltaOperation) takesValue() bool { return valueOperations[op] }

func (op DeltaOperation) valid() bool {
	switch op {
	case OpSet, OpDelete, OpDeleteValue, OpPrepend, OpAppend, OpIncrement, OpDecrement, OpToggle,
		OpInsertFirst, OpInsertLast, OpInsertBefore, OpInsertAfter, OpDeleteFirst, OpDeleteLast:
		return true
	}
	return false
}

// Path navigates a feed data tree from its root. An empty Path addresses
// the root itself. Each element is either a string (object key) or an int
// (array index).
type Path []any

func (p Path) String() string {
	return fmt.Sprint([]any(p))
}

// Delta is one typed mutation to apply to a feed data tree.
type Delta struct {
	Operation DeltaOperation
	Path      Path
	Value     any // nil for operations that don't take one
}

// DeltaError reports why a delta failed to apply against the tree it was
// given — a missing key, the wrong structural type at Path, an
// out-of-range index, and so on. It is distinct from a schema failure
// (InvalidMessageError), which is caught earlier by the message codec.
type DeltaError struct {
	Path   Path
	Reason string
}

func (e *DeltaError) Error() string {
	return fmt.Sprintf("feedme: delta error at path %s: %s", e.Path, e.Reason)
}

// Apply applies a single delta to tree and returns the resulting tree.
// tree is never mutated: every container on the path from the root to the
// mutation point is shallow-copied, and untouched siblings are shared with
// the input. This lets a caller applying a sequence of deltas simply
// discard the in-progress result on error — the original tree (and every
// earlier successful step) was never touched.
func Apply(tree any, d Delta) (any, error) {
	switch d.Operation {
	case OpSet:
		return putAt(tree, d.Path, d.Value)
	case OpDelete:
		return deleteKeyOp(tree, d.Path)
	case OpDeleteValue:
		return deleteValueOp(tree, d.Path, d.Value)
	case OpPrepend:
		return stringOp(tree, d.Path, d.Value, true)
	case OpAppend:
		return stringOp(tree, d.Path, d.Value, false)
	case OpIncrement:
		return numberOp(tree, d.Path, d.Value, true)
	case OpDecrement:
		return numberOp(tree, d.Path, d.Value, false)
	case OpToggle:
		return toggleOp(tree, d.Path)
	case OpInsertFirst:
		return insertEndOp(tree, d.Path, d.Value, true)
	case OpInsertLast:
		return insertEndOp(tree, d.Path, d.Value, false)
	case OpInsertBefore:
		return insertAtOp(tree, d.Path, d.Value, true)
	case OpInsertAfter:
		return insertAtOp(tree, d.Path, d.Value, false)
	case OpDeleteFirst:
		return deleteEndOp(tree, d.Path, true)
	case OpDeleteLast:
		return deleteEndOp(tree, d.Path, false)
	default:
		return nil, &DeltaError{Path: d.Path, Reason: fmt.Sprintf("unknown operation %q", d.Operation)}
	}
}

// ApplyAll applies deltas in order, short-circuiting on the first failure.
// On success the returned tree reflects every delta; on failure the
// original tree is untouched and unreturned.
func ApplyAll(tree any, deltas []Delta) (any, error) {
	cur := tree
	for i, d := range deltas {
		next, err := Apply(cur, d)
		if err != nil {
			return nil, fmt.Errorf("delta %d: %w", i, err)
		}
		cur = next
	}
	return cur, nil
}

func getAt(tree any, path Path) (any, error) {
	node := tree
	for i, seg := range path {
		switch k := seg.(type) {
		case string:
			obj, ok := node.(map[string]any)
			if !ok {
				return nil, &DeltaError{Path: path[:i+1], Reason: "expected an object"}
			}
			v, exists := obj[k]
			if !exists {
				return nil, &DeltaError{Path: path[:i+1], Reason: fmt.Sprintf("missing key %q", k)}
			}
			node = v
		case int:
			arr, ok := node.([]any)
			if !ok {
				return nil, &DeltaError{Path: path[:i+1], Reason: "expected an array"}
			}
			if k < 0 || k >= len(arr) {
				return nil, &DeltaError{Path: path[:i+1], Reason: "index out of range"}
			}
			node = arr[k]
		default:
			return nil, &DeltaError{Path: path[:i+1], Reason: "invalid path segment"}
		}
	}
	return node, nil
}

// putAt returns a copy of tree with the subtree at path replaced by value.
// Every container between the root and path is shallow-copied; everything
// else is shared with tree.
func putAt(tree any, path Path, value any) (any, error) {
	if len(path) == 0 {
		return value, nil
	}
	return putAtRec(tree, path, value)
}

func putAtRec(node any, path Path, value any) (any, error) {
	seg := path[0]
	rest := path[1:]

	switch k := seg.(type) {
	case string:
		obj, ok := node.(map[string]any)
		if !ok {
			return nil, &DeltaError{Path: path, Reason: "expected an object"}
		}
		if len(rest) == 0 {
			newObj := cloneMap(obj)
			newObj[k] = value
			return newObj, nil
		}
		child, exists := obj[k]
		if !exists {
			return nil, &DeltaError{Path: path, Reason: fmt.Sprintf("missing key %q", k)}
		}
		newChild, err := putAtRec(child, rest, value)
		if err != nil {
			return nil, err
		}
		newObj := cloneMap(obj)
		newObj[k] = newChild
		return newObj, nil
	case int:
		arr, ok := node.([]any)
		if !ok {
			return nil, &DeltaError{Path: path, Reason: "expected an array"}
		}
		if k < 0 || k >= len(arr) {
			return nil, &DeltaError{Path: path, Reason: "index out of range"}
		}
		if len(rest) == 0 {
			newArr := cloneSlice(arr)
			newArr[k] = value
			return newArr, nil
		}
		newChild, err := putAtRec(arr[k], rest, value)
		if err != nil {
			return nil, err
		}
		newArr := cloneSlice(arr)
		newArr[k] = newChild
		return newArr, nil
	default:
		return nil, &DeltaError{Path: path, Reason: "invalid path segment"}
	}
}

func deleteKeyOp(tree any, path Path) (any, error) {
	if len(path) == 0 {
		return nil, &DeltaError{Path: path, Reason: "Delete requires a non-empty path"}
	}
	parentPath := path[:len(path)-1]
	lastKey, ok := path[len(path)-1].(string)
	if !ok {
		return nil, &DeltaError{Path: path, Reason: "Delete path must end in an object key"}
	}

	parent, err := getAt(tree, parentPath)
	if err != nil {
		return nil, err
	}
	obj, ok := parent.(map[string]any)
	if !ok {
		return nil, &DeltaError{Path: path, Reason: "parent is not an object"}
	}

	newObj := cloneMap(obj)
	delete(newObj, lastKey)
	return putAt(tree, parentPath, newObj)
}

func deleteValueOp(tree any, path Path, value any) (any, error) {
	cur, err := getAt(tree, path)
	if err != nil {
		return nil, err
	}
	arr, ok := cur.([]any)
	if !ok {
		return nil, &DeltaError{Path: path, Reason: "expected an array"}
	}

	filtered := make([]any, 0, len(arr))
	for _, el := range arr {
		if !reflect.DeepEqual(el, value) {
			filtered = append(filtered, el)
		}
	}
	return putAt(tree, path, filtered)
}

func stringOp(tree any, path Path, value any, prepend bool) (any, error) {
	cur, err := getAt(tree, path)
	if err != nil {
		return nil, err
	}
	s, ok := cur.(string)
	if !ok {
		return nil, &DeltaError{Path: path, Reason: "expected a string"}
	}
	v, ok := value.(string)
	if !ok {
		return nil, &DeltaError{Path: path, Reason: "Value must be a string"}
	}

	var next string
	if prepend {
		next = v + s
	} else {
		next = s + v
	}
	return putAt(tree, path, next)
}

func numberOp(tree any, path Path, value any, add bool) (any, error) {
	cur, err := getAt(tree, path)
	if err != nil {
		return nil, err
	}
	n, ok := cur.(float64)
	if !ok {
		return nil, &DeltaError{Path: path, Reason: "expected a number"}
	}
	v, ok := value.(float64)
	if !ok {
		return nil, &DeltaError{Path: path, Reason: "Value must be a number"}
	}

	var next float64
	if add {
		next = n + v
	} else {
		next = n - v
	}
	return putAt(tree, path, next)
}

func toggleOp(tree any, path Path) (any, error) {
	cur, err := getAt(tree, path)
	if err != nil {
		return nil, err
	}
	b, ok := cur.(bool)
	if !ok {
		return nil, &DeltaError{Path: path, Reason: "expected a boolean"}
	}
	return putAt(tree, path, !b)
}

func insertEndOp(tree any, path Path, value any, first bool) (any, error) {
	cur, err := getAt(tree, path)
	if err != nil {
		return nil, err
	}
	arr, ok := cur.([]any)
	if !ok {
		return nil, &DeltaError{Path: path, Reason: "expected an array"}
	}

	newArr := make([]any, 0, len(arr)+1)
	if first {
		newArr = append(newArr, value)
		newArr = append(newArr, arr...)
	} else {
		newArr = append(newArr, arr...)
		newArr = append(newArr, value)
	}
	return putAt(tree, path, newArr)
}

func insertAtOp(tree any, path Path, value any, before bool) (any, error) {
	if len(path) == 0 {
		return nil, &DeltaError{Path: path, Reason: "path must end in an array index"}
	}
	idx, ok := path[len(path)-1].(int)
	if !ok {
		return nil, &DeltaError{Path: path, Reason: "path must end in an array index"}
	}
	arrPath := path[:len(path)-1]

	cur, err := getAt(tree, arrPath)
	if err != nil {
		return nil, err
	}
	arr, ok := cur.([]any)
	if !ok {
		return nil, &DeltaError{Path: path, Reason: "expected an array"}
	}
	if idx < 0 || idx >= len(arr) {
		return nil, &DeltaError{Path: path, Reason: "index out of range"}
	}

	pos := idx
	if !before {
		pos = idx + 1
	}
	newArr := make([]any, 0, len(arr)+1)
	newArr = append(newArr, arr[:pos]...)
	newArr = append(newArr, value)
	newArr = append(newArr, arr[pos:]...)
	return putAt(tree, arrPath, newArr)
}

func deleteEndOp(tree any, path Path, first bool) (any, error) {
	cur, err := getAt(tree, path)
	if err != nil {
		return nil, err
	}
	arr, ok := cur.([]any)
	if !ok {
		return nil, &DeltaError{Path: path, Reason: "expected an array"}
	}
	if len(arr) == 0 {
		return nil, &DeltaError{Path: path, Reason: "array is empty"}
	}

	var newArr []any
	if first {
		newArr = append([]any{}, arr[1:]...)
	} else {
		newArr = append([]any{}, arr[:len(arr)-1]...)
	}
	return putAt(tree, path, newArr)
}

func cloneMap(m map[string]any) map[string]any {
	newM := make(map[string]any, len(m))
	for k, v := range m {
		newM[k] = v
	}
	return newM
}

func cloneSlice(s []any) []any {
	newS := make([]any, len(s))
	copy(newS, s)
	return newS
}
