// Package stores is the branch catalog: every physical store and the zone it
// belongs to. Conversations and agents are scoped by these ids.
package stores

// Store is one physical branch.
type Store struct {
	ID     string
	Name   string
	ZoneID string
}

var catalog = []Store{
	{ID: "centro", Name: "Sucursal Centro", ZoneID: "capital"},
	{ID: "caballito", Name: "Sucursal Caballito", ZoneID: "capital"},
	{ID: "norte", Name: "Sucursal Norte", ZoneID: "gba_norte"},
	{ID: "oeste", Name: "Sucursal Oeste", ZoneID: "gba_oeste"},
}

// All returns every branch, in catalog order.
func All() []Store {
	out := make([]Store, len(catalog))
	copy(out, catalog)
	return out
}

// ZoneFor returns the zone a store belongs to, or "" for an unknown store.
func ZoneFor(storeID string) string {
	for _, s := range catalog {
		if s.ID == storeID {
			return s.ZoneID
		}
	}
	return ""
}
