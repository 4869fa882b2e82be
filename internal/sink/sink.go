// Package sink defines the consumers at the end of the frame filter chain.
package sink

import (
	"errors"

	"firestige.xyz/airsniff/internal/filter"
)

type Sink interface {
	Send(ex *filter.Exchange) error
	Close() error
}

// Multi fans one exchange out to several sinks.
type Multi []Sink

func (m Multi) Send(ex *filter.Exchange) error {
	var errs []error
	for _, s := range m {
		if err := s.Send(ex); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
