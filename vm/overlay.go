package vm

// overlay is a shadow write layer over a base view. Writes never reach the
// base; the overlay is function-local to a single sandbox call and simply
// goes out of scope when the call returns, so "no persistence" is structural
// rather than a cleanup step. There is intentionally no commit method.
type overlay struct {
	base   DataStore
	writes map[string][]byte
}

func newOverlay(base DataStore) *overlay {
	return &overlay{base: base, writes: make(map[string][]byte)}
}

func (o *overlay) Get(key string) ([]byte, error) {
	if value, ok := o.writes[key]; ok {
		return value, nil
	}
	return o.base.Get(key)
}

func (o *overlay) Set(key string, value []byte) error {
	o.writes[key] = append([]byte(nil), value...)
	return nil
}
