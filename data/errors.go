package data

import (
	"fmt"
	"github.com/pkg/errors"
)

// ErrClosed is returned by Loader.Next after Close has been called.
var ErrClosed = errors.New("loader closed")

// MissingLabelError is returned when an image file has no entry in the attribute list.
type MissingLabelError struct {
	File string
}

func (e *MissingLabelError) Error() string {
	return fmt.Sprintf("no label found for image %s", e.File)
}

// MissingRecordFileError is returned when the record file cannot be opened.
type MissingRecordFileError struct {
	Path string
	Err  error
}

func (e *MissingRecordFileError) Error() string {
	return fmt.Sprintf("record file %s: %s", e.Path, e.Err)
}

func (e *MissingRecordFileError) Unwrap() error { return e.Err }

// LabelShapeError is returned when a decoded label vector has the wrong length.
type LabelShapeError struct {
	Got, Want int
}

func (e *LabelShapeError) Error() string {
	return fmt.Sprintf("label vector has %d values, expected %d", e.Got, e.Want)
}
