package sizes

import (
	"bytes"
	"encoding/json"

	"github.com/cloudpasture/shepherd/pkg/domain"
	"github.com/cloudpasture/shepherd/pkg/utils/rfctime"
)

// SizeSpec is a request body to register or replace a size definition.
type SizeSpec struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	Description string `json:"description,omitempty"`

	CPUCores int `json:"cpuCores"`
	MemoryMB int `json:"memoryMB"`
	DiskGB   int `json:"diskGB,omitempty"`

	CPURequest      int `json:"cpuRequest,omitempty"`
	MemoryRequestMB int `json:"memoryRequestMB,omitempty"`

	DedicatedCPU  bool   `json:"dedicatedCPU,omitempty"`
	RequiresGPU   bool   `json:"requiresGPU,omitempty"`
	GPUDevice     string `json:"gpuDevice,omitempty"`
	RequiresSRIOV bool   `json:"requiresSRIOV,omitempty"`
	HugepageSize  string `json:"hugepageSize,omitempty"`

	Extras json.RawMessage `json:"extras,omitempty"`

	SortOrder int `json:"sortOrder,omitempty"`
}

// ToDefinition maps the spec into the domain shape. Id, Enabled and
// timestamps are owned by the store, not the caller.
func (s SizeSpec) ToDefinition(createdBy string) domain.SizeDefinition {
	return domain.SizeDefinition{
		Name:            s.Name,
		DisplayName:     s.DisplayName,
		Description:     s.Description,
		CPUCores:        s.CPUCores,
		MemoryMB:        s.MemoryMB,
		DiskGB:          s.DiskGB,
		CPURequest:      s.CPURequest,
		MemoryRequestMB: s.MemoryRequestMB,
		DedicatedCPU:    s.DedicatedCPU,
		RequiresGPU:     s.RequiresGPU,
		GPUDevice:       s.GPUDevice,
		RequiresSRIOV:   s.RequiresSRIOV,
		HugepageSize:    s.HugepageSize,
		Extras:          []byte(s.Extras),
		SortOrder:       s.SortOrder,
		CreatedBy:       createdBy,
	}
}

type Detail struct {
	SizeSpec
	Id        string          `json:"id"`
	Enabled   bool            `json:"enabled"`
	CreatedBy string          `json:"createdBy"`
	CreatedAt rfctime.RFC3339 `json:"createdAt"`
	UpdatedAt rfctime.RFC3339 `json:"updatedAt"`
}

func (d Detail) Equal(o Detail) bool {
	return d.Id == o.Id &&
		d.Name == o.Name &&
		d.DisplayName == o.DisplayName &&
		d.Description == o.Description &&
		d.CPUCores == o.CPUCores &&
		d.MemoryMB == o.MemoryMB &&
		d.DiskGB == o.DiskGB &&
		d.CPURequest == o.CPURequest &&
		d.MemoryRequestMB == o.MemoryRequestMB &&
		d.DedicatedCPU == o.DedicatedCPU &&
		d.RequiresGPU == o.RequiresGPU &&
		d.GPUDevice == o.GPUDevice &&
		d.RequiresSRIOV == o.RequiresSRIOV &&
		d.HugepageSize == o.HugepageSize &&
		bytes.Equal(d.Extras, o.Extras) &&
		d.SortOrder == o.SortOrder &&
		d.Enabled == o.Enabled &&
		d.CreatedBy == o.CreatedBy
}

func ComposeDetail(s domain.SizeDefinition) Detail {
	return Detail{
		SizeSpec: SizeSpec{
			Name:            s.Name,
			DisplayName:     s.DisplayName,
			Description:     s.Description,
			CPUCores:        s.CPUCores,
			MemoryMB:        s.MemoryMB,
			DiskGB:          s.DiskGB,
			CPURequest:      s.CPURequest,
			MemoryRequestMB: s.MemoryRequestMB,
			DedicatedCPU:    s.DedicatedCPU,
			RequiresGPU:     s.RequiresGPU,
			GPUDevice:       s.GPUDevice,
			RequiresSRIOV:   s.RequiresSRIOV,
			HugepageSize:    s.HugepageSize,
			Extras:          json.RawMessage(s.Extras),
			SortOrder:       s.SortOrder,
		},
		Id:        s.Id,
		Enabled:   s.Enabled,
		CreatedBy: s.CreatedBy,
		CreatedAt: rfctime.RFC3339(s.CreatedAt),
		UpdatedAt: rfctime.RFC3339(s.UpdatedAt),
	}
}
