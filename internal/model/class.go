package model

import (
	"errors"
	"fmt"
	"strings"
)

// Class is the political leaning assigned to an article
type Class string

const (
	ClassNone   Class = ""       // Unlabeled text
	ClassLeft   Class = "left"   // Left-leaning
	ClassCenter Class = "center" // Center
	ClassRight  Class = "right"  // Right-leaning
)

// NumClasses is the size of the closed class set
const NumClasses = 3

// Classes lists every class in tie-break order (left before center before right)
var Classes = [NumClasses]Class{ClassLeft, ClassCenter, ClassRight}

// ErrInvalidLabel is returned when a label is outside the fixed class set
var ErrInvalidLabel = errors.New("invalid bias label")

// InvalidLabelError names the document and label that failed validation
type InvalidLabelError struct {
	DocID string
	Label string
}

func (e *InvalidLabelError) Error() string {
	if e.DocID == "" {
		return fmt.Sprintf("invalid bias label %q", e.Label)
	}
	return fmt.Sprintf("document %s: invalid bias label %q", e.DocID, e.Label)
}

// Is reports ErrInvalidLabel as a match so callers can use errors.Is
func (e *InvalidLabelError) Is(target error) bool {
	return target == ErrInvalidLabel
}

// Valid reports whether c is one of the three fixed classes
func (c Class) Valid() bool {
	switch c {
	case ClassLeft, ClassCenter, ClassRight:
		return true
	}
	return false
}

// Index returns the position of c in Classes, or -1 when c is not a class
func (c Class) Index() int {
	switch c {
	case ClassLeft:
		return 0
	case ClassCenter:
		return 1
	case ClassRight:
		return 2
	}
	return -1
}

func (c Class) String() string {
	if c == ClassNone {
		return "none"
	}
	return string(c)
}

// ParseClass parses a class name. "" and "none" parse to ClassNone.
func ParseClass(s string) (Class, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "left":
		return ClassLeft, nil
	case "center", "centre":
		return ClassCenter, nil
	case "right":
		return ClassRight, nil
	case "", "none":
		return ClassNone, nil
	}
	return ClassNone, &InvalidLabelError{Label: s}
}

// ClassFromCode maps the numeric bias codes of the Article-Bias-Prediction
// dataset (0 left, 1 center, 2 right) to a class
func ClassFromCode(code int) (Class, error) {
	if code < 0 || code >= NumClasses {
		return ClassNone, &InvalidLabelError{Label: fmt.Sprint(code)}
	}
	return Classes[code], nil
}
