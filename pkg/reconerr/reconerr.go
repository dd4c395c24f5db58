// Package reconerr defines the typed error kinds surfaced by every pipeline.
package reconerr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a pipeline failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindFileNotFound
	KindEncoding
	KindMissingColumn
	KindValueParse
	KindMappingMiss
	KindFileLocked
	KindInternalInvariant
)

// String returns the kind name used in logs and warning sheets.
func (k Kind) String() string {
	switch k {
	case KindFileNotFound:
		return "FileNotFound"
	case KindEncoding:
		return "Encoding"
	case KindMissingColumn:
		return "MissingColumn"
	case KindValueParse:
		return "ValueParse"
	case KindMappingMiss:
		return "MappingMiss"
	case KindFileLocked:
		return "FileLocked"
	case KindInternalInvariant:
		return "InternalInvariant"
	}
	return "Unknown"
}

// Error carries the kind plus whatever identifies the offending input.
type Error struct {
	Kind     Kind
	File     string
	Role     string
	Columns  []string
	Value    string
	Location string
	Date     string
	JENumber string
	Err      error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.String())
	switch e.Kind {
	case KindFileNotFound:
		fmt.Fprintf(&sb, ": no input file for role %s", e.Role)
	case KindEncoding:
		fmt.Fprintf(&sb, ": %s could not be decoded as UTF-8, Latin-1 or Windows-1252", e.File)
	case KindMissingColumn:
		fmt.Fprintf(&sb, ": %s is missing column(s) %s", e.File, strings.Join(e.Columns, ", "))
	case KindValueParse:
		fmt.Fprintf(&sb, ": %s: cannot parse %q", e.File, e.Value)
	case KindMappingMiss:
		fmt.Fprintf(&sb, ": no mapping for %q", e.Value)
	case KindFileLocked:
		fmt.Fprintf(&sb, ": %s is open in another program", e.File)
	case KindInternalInvariant:
		fmt.Fprintf(&sb, ": location=%s date=%s je=%s", e.Location, e.Date, e.JENumber)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error { return e.Err }

// FileNotFound reports that no input matched a required role.
func FileNotFound(role string) *Error {
	return &Error{Kind: KindFileNotFound, Role: role}
}

// Encoding reports that every decoder rejected the file.
func Encoding(file string) *Error {
	return &Error{Kind: KindEncoding, File: file}
}

// MissingColumn lists every required column absent from file.
func MissingColumn(file string, columns ...string) *Error {
	return &Error{Kind: KindMissingColumn, File: file, Columns: columns}
}

// ValueParse wraps a money or date coercion failure.
func ValueParse(file, value string, err error) *Error {
	return &Error{Kind: KindValueParse, File: file, Value: value, Err: err}
}

// MappingMiss reports a raw identifier the registry does not know.
func MappingMiss(value string) *Error {
	return &Error{Kind: KindMappingMiss, Value: value}
}

// FileLocked reports a write refused because another process holds the file.
func FileLocked(file string, err error) *Error {
	return &Error{Kind: KindFileLocked, File: file, Err: err}
}

// Invariant reports a failed postcondition with the identifiers needed to find it.
func Invariant(location, date, jeNumber string, err error) *Error {
	return &Error{Kind: KindInternalInvariant, Location: location, Date: date, JENumber: jeNumber, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindUnknown
}

// IsFatal reports whether a kind halts the pipeline.
// ValueParse and MappingMiss are accumulated as warnings instead.
func IsFatal(k Kind) bool {
	switch k {
	case KindValueParse, KindMappingMiss:
		return false
	}
	return true
}

// Remediation is the human-written hint shown next to an error.
func Remediation(err error) string {
	var re *Error
	if !errors.As(err, &re) {
		return "Check the input files and try again."
	}
	switch re.Kind {
	case KindFileNotFound:
		return fmt.Sprintf("Add a file for %s to the input folder (check the filename prefix).", re.Role)
	case KindEncoding:
		return "Open the file in a spreadsheet program and re-save it as UTF-8 CSV."
	case KindMissingColumn:
		return fmt.Sprintf("The export must contain these columns: %s. Re-export the report with the default layout.", strings.Join(re.Columns, ", "))
	case KindValueParse:
		return "Fix the highlighted value in the source export; the row was skipped."
	case KindMappingMiss:
		return "Add the name to the mapping registry or correct the spelling in the source system."
	case KindFileLocked:
		return "Close the file in Excel (or any other program) and run again."
	case KindInternalInvariant:
		return "The generated entries did not balance. Send the detail panel to the finance systems team."
	}
	return "Check the input files and try again."
}
