// Package failure defines the closed set of error kinds produced while
// validating input, loading artifacts and scoring records.
//
// Callers branch on Kind rather than on message text. Every error carries
// enough context to render an actionable message, and wrapped causes remain
// reachable through errors.Unwrap.
package failure

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error.
type Kind int

const (
	// Unknown is returned by KindOf for errors that were not produced by this package.
	Unknown Kind = iota
	// MissingField means one or more required categorical fields were absent or empty.
	MissingField
	// InvalidScore means a numeric score was missing, non-numeric or outside [0,100].
	InvalidScore
	// ArtifactNotFound means no candidate path held the requested artifact.
	ArtifactNotFound
	// ArtifactEmpty means the resolved artifact file had zero length.
	ArtifactEmpty
	// ArtifactCorrupt means the artifact file existed but could not be decoded.
	ArtifactCorrupt
	// PredictionFailure wraps any failure raised while resolving, transforming or predicting.
	PredictionFailure
)

var kindNames = map[Kind]string{
	Unknown:           "unknown",
	MissingField:      "missing_field",
	InvalidScore:      "invalid_score",
	ArtifactNotFound:  "artifact_not_found",
	ArtifactEmpty:     "artifact_empty",
	ArtifactCorrupt:   "artifact_corrupt",
	PredictionFailure: "prediction_failure",
}

// String returns the snake_case name used in logs and API responses.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IsValidation reports whether k is a caller-input problem.
func (k Kind) IsValidation() bool {
	return k == MissingField || k == InvalidScore
}

// IsArtifact reports whether k is an artifact-loading problem.
func (k Kind) IsArtifact() bool {
	return k == ArtifactNotFound || k == ArtifactEmpty || k == ArtifactCorrupt
}

// Error is the single error shape returned by the resolver and the pipeline.
type Error struct {
	Kind Kind

	// Fields lists absent categorical fields (MissingField).
	Fields []string

	// Field and Value identify the offending score (InvalidScore).
	Field string
	Value string

	// Name is the logical artifact name; Path the resolved file, if any.
	Name  string
	Path  string
	Tried []string

	Msg   string
	Cause error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	switch e.Kind {
	case MissingField:
		fmt.Fprintf(&b, ": missing required fields: %s", strings.Join(e.Fields, ", "))
	case InvalidScore:
		fmt.Fprintf(&b, ": %s=%q", e.Field, e.Value)
	case ArtifactNotFound:
		fmt.Fprintf(&b, ": artifact %q not found (tried %s)", e.Name, strings.Join(e.Tried, ", "))
	case ArtifactEmpty:
		fmt.Fprintf(&b, ": artifact %q is empty: %s", e.Name, e.Path)
	case ArtifactCorrupt:
		fmt.Fprintf(&b, ": artifact %q at %s could not be decoded", e.Name, e.Path)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches another *Error of the same kind, so errors.Is(err, &Error{Kind: k})
// works as a kind test.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Cause == nil && t.Msg == "" && len(t.Fields) == 0 && t.Field == "" && t.Name == ""
}

// Missing reports the absent categorical fields.
func Missing(fields ...string) *Error {
	return &Error{Kind: MissingField, Fields: fields}
}

// BadScore reports an invalid score field. msg describes the rule that failed.
func BadScore(field, value, msg string) *Error {
	return &Error{Kind: InvalidScore, Field: field, Value: value, Msg: msg}
}

// NotFound reports an artifact that exists at none of the tried paths.
func NotFound(name string, tried []string) *Error {
	return &Error{Kind: ArtifactNotFound, Name: name, Tried: tried}
}

// Empty reports a zero-length artifact file.
func Empty(name, path string) *Error {
	return &Error{Kind: ArtifactEmpty, Name: name, Path: path}
}

// Corrupt reports an artifact whose decoding failed.
func Corrupt(name, path string, cause error) *Error {
	return &Error{Kind: ArtifactCorrupt, Name: name, Path: path, Cause: cause}
}

// Wrap turns any failure raised while scoring into a PredictionFailure
// carrying the original cause.
func Wrap(cause error, format string, args ...any) *Error {
	return &Error{Kind: PredictionFailure, Msg: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf returns the kind of the outermost *Error in err's chain, or Unknown.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Unknown
}

// Has reports whether any error in err's chain has kind k.
func Has(err error, k Kind) bool {
	for err != nil {
		if fe, ok := err.(*Error); ok && fe.Kind == k {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// Root returns the innermost classified kind in err's chain. A PredictionFailure
// caused by a missing artifact reports ArtifactNotFound.
func Root(err error) Kind {
	k := Unknown
	for err != nil {
		if fe, ok := err.(*Error); ok {
			k = fe.Kind
		}
		err = errors.Unwrap(err)
	}
	return k
}
