package mrflow

// Namespace resolves logical stage names to absolute locations under an
// intermediate root using the active profile's join rules.
type Namespace struct {
	Root string
	Join func(root string, elem ...string) string
}

// Resolve joins name under the root unless noPrefix is set, in which case the
// literal name is an external location and is returned unchanged. Resolution
// is deterministic; the same name always yields the same location.
func (n Namespace) Resolve(name string, noPrefix bool) string {
	if noPrefix {
		return name
	}
	return n.Join(n.Root, name)
}
