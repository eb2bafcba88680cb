package domain

import (
	"bytes"
	"errors"
	"time"
)

var ErrSizeNameConflict = errors.New("size name is already taken")

// SizeDefinition is a named hardware template referenced by work records.
//
// Definitions are edited by admins and referenced by many records. A
// referenced definition is never deleted, only deactivated; approvals
// snapshot the definition as of decision time, so edits never reach
// already-approved records.
type SizeDefinition struct {
	Id          string
	Name        string
	DisplayName string
	Description string

	CPUCores int
	MemoryMB int
	DiskGB   int

	// Requested (reserved) amounts, when lower than the limits above.
	// Zero means "same as the limit" = no overcommit.
	CPURequest      int
	MemoryRequestMB int

	// Pinned placement. Requires request == limit; structurally
	// incompatible with overcommit.
	DedicatedCPU bool

	RequiresGPU   bool
	GPUDevice     string
	RequiresSRIOV bool
	HugepageSize  string

	// Long-tail fields the platform stores but does not interpret.
	Extras []byte

	SortOrder int
	Enabled   bool

	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (s *SizeDefinition) Equal(o *SizeDefinition) bool {
	if (s == nil) || (o == nil) {
		return (s == nil) && (o == nil)
	}
	return s.Id == o.Id &&
		s.Name == o.Name &&
		s.DisplayName == o.DisplayName &&
		s.Description == o.Description &&
		s.CPUCores == o.CPUCores &&
		s.MemoryMB == o.MemoryMB &&
		s.DiskGB == o.DiskGB &&
		s.CPURequest == o.CPURequest &&
		s.MemoryRequestMB == o.MemoryRequestMB &&
		s.DedicatedCPU == o.DedicatedCPU &&
		s.RequiresGPU == o.RequiresGPU &&
		s.GPUDevice == o.GPUDevice &&
		s.RequiresSRIOV == o.RequiresSRIOV &&
		s.HugepageSize == o.HugepageSize &&
		bytes.Equal(s.Extras, o.Extras) &&
		s.SortOrder == o.SortOrder &&
		s.Enabled == o.Enabled
}

// Overcommitted reports whether this size reserves less than it advertises.
func (s *SizeDefinition) Overcommitted() bool {
	return (s.CPURequest != 0 && s.CPURequest != s.CPUCores) ||
		(s.MemoryRequestMB != 0 && s.MemoryRequestMB != s.MemoryMB)
}
