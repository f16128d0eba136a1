package entcache

import (
	"fmt"
	"reflect"
	"strings"
)

// Key layout:
//
//	<ns>:id:<id>          - one entity by identity
//	<ns>:<property>:<v>   - one entity by a normalized secondary value
//	<ns>:all              - the whole collection
const (
	selectorID  = "id"
	selectorAll = "all"
)

// Property is one secondary lookup dimension of an entity, e.g. {"name", "Online"}.
type Property struct {
	Name  string
	Value string
}

// NormalizeValue is the default normalization for property values:
// surrounding whitespace trimmed, lower-cased.
func NormalizeValue(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

func idKey(ns, id string) string { return ns + ":" + selectorID + ":" + id }

func propertyKey(ns, name, normalized string) string { return ns + ":" + name + ":" + normalized }

func listKey(ns string) string { return ns + ":" + selectorAll }

func checkSegment(kind, s string) error {
	if s == "" {
		return fmt.Errorf("entcache: %s must not be empty", kind)
	}
	if strings.Contains(s, ":") {
		return fmt.Errorf("entcache: %s %q must not contain ':'", kind, s)
	}
	return nil
}

func checkPropertyName(name string) error {
	if err := checkSegment("property name", name); err != nil {
		return err
	}
	if name == selectorID || name == selectorAll {
		return fmt.Errorf("entcache: property name %q is reserved", name)
	}
	return nil
}

// defaultNamespace is the lower-cased type name of E (pointers dereferenced).
func defaultNamespace[E any]() string {
	t := reflect.TypeOf((*E)(nil)).Elem()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return strings.ToLower(t.Name())
}
