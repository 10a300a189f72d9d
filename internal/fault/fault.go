// Package fault classifies the failures voxtalk reports to the user.
//
// Every error produced by a device, file, provider or input check carries one
// of the kind sentinels below, so callers can branch with errors.Is without
// caring which package produced it.
package fault

import (
	"errors"
	"strings"
)

var (
	ErrDevice       = errors.New("audio device error")
	ErrFileIO       = errors.New("audio file error")
	ErrProvider     = errors.New("provider error")
	ErrInvalidInput = errors.New("invalid input")
)

type Error struct {
	Kind error
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
	}
	if e.Path != "" {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(e.Path)
	}
	if e.Err != nil {
		if b.Len() > 0 {
			b.WriteString(": ")
		}
		b.WriteString(e.Err.Error())
	}
	if b.Len() == 0 && e.Kind != nil {
		return e.Kind.Error()
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func Device(op string, err error) error {
	return &Error{Kind: ErrDevice, Op: op, Err: err}
}

func FileIO(op, path string, err error) error {
	return &Error{Kind: ErrFileIO, Op: op, Path: path, Err: err}
}

func Provider(op string, err error) error {
	return &Error{Kind: ErrProvider, Op: op, Err: err}
}

func InvalidInput(message string) error {
	return &Error{Kind: ErrInvalidInput, Op: message}
}

// KindOf returns the kind sentinel carried by err, or nil.
func KindOf(err error) error {
	for _, kind := range []error{ErrInvalidInput, ErrDevice, ErrFileIO, ErrProvider} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
