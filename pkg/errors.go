package vx2740

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedRecord   = errors.New("malformed record")
	ErrFitDidNotConverge = errors.New("fit did not converge")
	ErrUnrecognizedBank  = errors.New("unrecognized bank")
)

// MalformedRecordError represents a record that cannot be decoded.
type MalformedRecordError struct {
	FrontendID int
	BoardID    int
	Reason     string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record from board %03d/%02d: %s", e.FrontendID, e.BoardID, e.Reason)
}

func (e *MalformedRecordError) Is(target error) bool {
	return target == ErrMalformedRecord
}

// FitError represents a least squares fit that did not converge.
type FitError struct {
	Model      string
	Iterations int
	Reason     string
}

func (e *FitError) Error() string {
	return fmt.Sprintf("%s fit did not converge after %d iterations: %s", e.Model, e.Iterations, e.Reason)
}

func (e *FitError) Is(target error) bool {
	return target == ErrFitDidNotConverge
}

// UnrecognizedBankError represents a data bank whose name does not carry a board id.
type UnrecognizedBankError struct {
	Name string
	Err  error
}

func (e *UnrecognizedBankError) Error() string {
	return fmt.Sprintf("unrecognized bank %q: %v", e.Name, e.Err)
}

func (e *UnrecognizedBankError) Is(target error) bool {
	return target == ErrUnrecognizedBank
}

func (e *UnrecognizedBankError) Unwrap() error {
	return e.Err
}

// ErrOpenFile represents an error when opening a file.
type ErrOpenFile struct {
	Filename string
	Err      error
}

func (e *ErrOpenFile) Error() string {
	return fmt.Sprintf("error opening file %q: %v", e.Filename, e.Err)
}

func (e *ErrOpenFile) Unwrap() error {
	return e.Err
}
