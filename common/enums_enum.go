package common

import (
	"fmt"
	"strings"
)

const (
	// PageSizeLetter is a PageSize of type Letter.
	PageSizeLetter PageSize = iota
	// PageSizeA4 is a PageSize of type A4.
	PageSizeA4
	// PageSizeLegal is a PageSize of type Legal.
	PageSizeLegal
)

var ErrInvalidPageSize = fmt.Errorf("not a valid PageSize, try [%s]", strings.Join(_PageSizeNames, ", "))

var _PageSizeNames = []string{"letter", "a4", "legal"}

// PageSizeNames returns a list of possible string values of PageSize.
func PageSizeNames() []string {
	tmp := make([]string, len(_PageSizeNames))
	copy(tmp, _PageSizeNames)
	return tmp
}

// String implements the Stringer interface.
func (x PageSize) String() string {
	if x.IsValid() {
		return _PageSizeNames[x]
	}
	return fmt.Sprintf("PageSize(%d)", x)
}

// IsValid provides a quick way to determine if the typed value is
// part of the allowed enumerated values
func (x PageSize) IsValid() bool {
	return x >= PageSizeLetter && x <= PageSizeLegal
}

// ParsePageSize attempts to convert a string to a PageSize.
func ParsePageSize(name string) (PageSize, error) {
	for i, n := range _PageSizeNames {
		if strings.EqualFold(n, name) {
			return PageSize(i), nil
		}
	}
	return PageSize(0), fmt.Errorf("%s is %w", name, ErrInvalidPageSize)
}

// MarshalText implements the text marshaller method.
func (x PageSize) MarshalText() ([]byte, error) {
	return []byte(x.String()), nil
}

// UnmarshalText implements the text unmarshaller method.
func (x *PageSize) UnmarshalText(text []byte) error {
	tmp, err := ParsePageSize(string(text))
	if err != nil {
		return err
	}
	*x = tmp
	return nil
}

const (
	// JobStatusPending is a JobStatus of type Pending.
	JobStatusPending JobStatus = iota
	// JobStatusProcessing is a JobStatus of type Processing.
	JobStatusProcessing
	// JobStatusCompleted is a JobStatus of type Completed.
	JobStatusCompleted
	// JobStatusError is a JobStatus of type Error.
	JobStatusError
)

var ErrInvalidJobStatus = fmt.Errorf("not a valid JobStatus, try [%s]", strings.Join(_JobStatusNames, ", "))

var _JobStatusNames = []string{"pending", "processing", "completed", "error"}

// JobStatusNames returns a list of possible string values of JobStatus.
func JobStatusNames() []string {
	tmp := make([]string, len(_JobStatusNames))
	copy(tmp, _JobStatusNames)
	return tmp
}

// String implements the Stringer interface.
func (x JobStatus) String() string {
	if x.IsValid() {
		return _JobStatusNames[x]
	}
	return fmt.Sprintf("JobStatus(%d)", x)
}

// IsValid provides a quick way to determine if the typed value is
// part of the allowed enumerated values
func (x JobStatus) IsValid() bool {
	return x >= JobStatusPending && x <= JobStatusError
}

// ParseJobStatus attempts to convert a string to a JobStatus.
func ParseJobStatus(name string) (JobStatus, error) {
	for i, n := range _JobStatusNames {
		if strings.EqualFold(n, name) {
			return JobStatus(i), nil
		}
	}
	return JobStatus(0), fmt.Errorf("%s is %w", name, ErrInvalidJobStatus)
}

// MarshalText implements the text marshaller method.
func (x JobStatus) MarshalText() ([]byte, error) {
	return []byte(x.String()), nil
}

// UnmarshalText implements the text unmarshaller method.
func (x *JobStatus) UnmarshalText(text []byte) error {
	tmp, err := ParseJobStatus(string(text))
	if err != nil {
		return err
	}
	*x = tmp
	return nil
}
