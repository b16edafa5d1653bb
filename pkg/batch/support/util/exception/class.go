package exception

import (
	"errors"
	"fmt"
	"reflect"
)

// RootErrorClass is the implicit ancestor of every error class.
const RootErrorClass = "error"

// classParents maps an error class name to its parent class name. Guarded by registryMutex.
var classParents = make(map[string]string)

// Classified is implemented by errors that declare their own error class.
type Classified interface {
	ErrorClass() string
}

// RegisterErrorClass declares name as an error class whose parent is parent.
// An empty parent makes the class a direct child of RootErrorClass.
func RegisterErrorClass(name, parent string) {
	if name == "" || name == RootErrorClass {
		panic(fmt.Sprintf("invalid error class name: %q", name))
	}
	if parent == "" {
		parent = RootErrorClass
	}

	registryMutex.Lock()
	defer registryMutex.Unlock()

	for p := parent; p != RootErrorClass && p != ""; p = classParents[p] {
		if p == name {
			panic(fmt.Sprintf("error class %q cannot extend its own descendant %q", name, parent))
		}
	}
	classParents[name] = parent
}

// ClassedError is an error that carries an explicit error class.
type ClassedError struct {
	Class   string
	Message string
	Err     error
}

// NewClassedError creates an error of the given class.
func NewClassedError(class, message string, err error) *ClassedError {
	return &ClassedError{Class: class, Message: message, Err: err}
}

func (e *ClassedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Class, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Class, e.Message)
}

func (e *ClassedError) Unwrap() error { return e.Err }

func (e *ClassedError) ErrorClass() string { return e.Class }

// ClassOf returns the class name of err itself, without looking at wrapped errors.
// Declared classes win, then registered sentinel names, then the Go type name.
func ClassOf(err error) string {
	if err == nil {
		return ""
	}
	if c, ok := err.(Classified); ok {
		if class := c.ErrorClass(); class != "" {
			return class
		}
	}

	errType := reflect.TypeOf(err)
	if errType.Comparable() {
		registryMutex.RLock()
		for name, proto := range errorRegistry {
			if proto == err {
				registryMutex.RUnlock()
				return name
			}
		}
		registryMutex.RUnlock()
	}

	return errType.String()
}

// ClassLineage returns the classes of err ordered from most to least specific.
// It walks the unwrap chain; for each error its class is followed by the registered
// ancestors of that class. RootErrorClass is always last.
func ClassLineage(err error) []string {
	var lineage []string
	seen := make(map[string]bool)
	add := func(class string) {
		if class == "" || class == RootErrorClass || seen[class] {
			return
		}
		seen[class] = true
		lineage = append(lineage, class)
	}

	for current := err; current != nil; current = errors.Unwrap(current) {
		class := ClassOf(current)
		registryMutex.RLock()
		for c := class; c != "" && c != RootErrorClass; c = classParents[c] {
			add(c)
		}
		registryMutex.RUnlock()
	}
	if err != nil {
		lineage = append(lineage, RootErrorClass)
	}
	return lineage
}
