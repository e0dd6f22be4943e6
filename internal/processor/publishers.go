package processor

import "errors"

// Publishers fans one event out to several publishers. Every publisher is
// tried; their errors are joined.
type Publishers []Publisher

func (ps Publishers) Publish(subject string, data any) error {
	var errs []error
	for _, p := range ps {
		if err := p.Publish(subject, data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Connected reports whether any member tracks a live connection.
func (ps Publishers) Connected() bool {
	for _, p := range ps {
		if c, ok := p.(interface{ Connected() bool }); ok && c.Connected() {
			return true
		}
	}
	return false
}
