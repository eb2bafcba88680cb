package records

import (
	"bytes"
	"encoding/json"

	"github.com/cloudpasture/shepherd/pkg/domain"
	"github.com/cloudpasture/shepherd/pkg/utils/cmp"
	"github.com/cloudpasture/shepherd/pkg/utils/rfctime"
)

// RecordSpec is a request body to submit a new work record.
type RecordSpec struct {
	Type string `json:"type"`

	// requested VM configuration, passed through as-is
	Payload json.RawMessage `json:"payload"`

	// Id of the target VM. Required for operations on an existing VM.
	VMId string `json:"vmId,omitempty"`
}

// Decision is a request body for the decision endpoint.
type Decision struct {
	// one of "approve", "reject", "cancel"
	Action string `json:"action"`

	// full replacement for the payload. Optional, approve only.
	ModifiedConfig json.RawMessage `json:"modifiedConfig,omitempty"`

	ClusterId    string `json:"clusterId,omitempty"`
	StorageClass string `json:"storageClass,omitempty"`
	SizeName     string `json:"sizeName,omitempty"`
	Note         string `json:"note,omitempty"`
}

type Summary struct {
	RecordId    string          `json:"recordId"`
	Type        string          `json:"type"`
	VMId        string          `json:"vmId,omitempty"`
	Status      string          `json:"status"`
	RequestedBy string          `json:"requestedBy"`
	CreatedAt   rfctime.RFC3339 `json:"createdAt"`
}

func (s Summary) Equal(o Summary) bool {
	return s.RecordId == o.RecordId &&
		s.Type == o.Type &&
		s.VMId == o.VMId &&
		s.Status == o.Status &&
		s.RequestedBy == o.RequestedBy &&
		s.CreatedAt.Equal(&o.CreatedAt)
}

type Detail struct {
	Summary
	Payload     json.RawMessage `json:"payload"`
	ErrorDetail string          `json:"errorDetail,omitempty"`
	Approval    *Approval       `json:"approval,omitempty"`
}

func (d Detail) Equal(o Detail) bool {
	approvalEq := (d.Approval == nil && o.Approval == nil) ||
		(d.Approval != nil && o.Approval != nil && d.Approval.Equal(*o.Approval))

	return d.Summary.Equal(o.Summary) &&
		bytes.Equal(d.Payload, o.Payload) &&
		d.ErrorDetail == o.ErrorDetail &&
		approvalEq
}

// Approval is the admin-owned overlay of a record.
type Approval struct {
	Status         string           `json:"status"`
	ModifiedConfig json.RawMessage  `json:"modifiedConfig,omitempty"`
	ClusterId      string           `json:"clusterId,omitempty"`
	StorageClass   string           `json:"storageClass,omitempty"`
	SizeSnapshot   json.RawMessage  `json:"sizeSnapshot,omitempty"`
	Warnings       []string         `json:"warnings,omitempty"`
	DecidedBy      string           `json:"decidedBy,omitempty"`
	DecisionNote   string           `json:"decisionNote,omitempty"`
	DecidedAt      *rfctime.RFC3339 `json:"decidedAt,omitempty"`
	UpdatedAt      rfctime.RFC3339  `json:"updatedAt"`
}

func (a Approval) Equal(o Approval) bool {
	return a.Status == o.Status &&
		bytes.Equal(a.ModifiedConfig, o.ModifiedConfig) &&
		a.ClusterId == o.ClusterId &&
		a.StorageClass == o.StorageClass &&
		bytes.Equal(a.SizeSnapshot, o.SizeSnapshot) &&
		cmp.SliceContentEq(a.Warnings, o.Warnings) &&
		a.DecidedBy == o.DecidedBy &&
		a.DecisionNote == o.DecisionNote &&
		a.DecidedAt.Equal(o.DecidedAt) &&
		a.UpdatedAt.Equal(&o.UpdatedAt)
}

// Candidate is one cluster an approver can send a record to.
type Candidate struct {
	ClusterId       string   `json:"clusterId"`
	Environment     string   `json:"environment"`
	PlatformVersion string   `json:"platformVersion,omitempty"`
	StorageClasses  []string `json:"storageClasses,omitempty"`
}

func (c Candidate) Equal(o Candidate) bool {
	return c.ClusterId == o.ClusterId &&
		c.Environment == o.Environment &&
		c.PlatformVersion == o.PlatformVersion &&
		cmp.SliceContentEq(c.StorageClasses, o.StorageClasses)
}

func ComposeSummary(r domain.WorkRecord) Summary {
	return Summary{
		RecordId:    r.Id,
		Type:        r.Type.String(),
		VMId:        r.VMId,
		Status:      r.Status.String(),
		RequestedBy: r.RequestedBy,
		CreatedAt:   rfctime.RFC3339(r.CreatedAt),
	}
}

func ComposeDetail(r domain.WorkRecord, a *domain.Approval) Detail {
	d := Detail{
		Summary:     ComposeSummary(r),
		Payload:     json.RawMessage(r.Payload),
		ErrorDetail: r.ErrorDetail,
	}
	if a != nil {
		approval := ComposeApproval(*a)
		d.Approval = &approval
	}
	return d
}

func ComposeApproval(a domain.Approval) Approval {
	ret := Approval{
		Status:         a.Status.String(),
		ModifiedConfig: json.RawMessage(a.ModifiedConfig),
		ClusterId:      a.ClusterId,
		StorageClass:   a.StorageClass,
		SizeSnapshot:   json.RawMessage(a.SizeSnapshot),
		Warnings:       a.Warnings,
		DecidedBy:      a.DecidedBy,
		DecisionNote:   a.DecisionNote,
		UpdatedAt:      rfctime.RFC3339(a.UpdatedAt),
	}
	if a.DecidedAt != nil {
		decidedAt := rfctime.RFC3339(*a.DecidedAt)
		ret.DecidedAt = &decidedAt
	}
	return ret
}

func ComposeCandidate(snapshot domain.CapabilitySnapshot) Candidate {
	return Candidate{
		ClusterId:       snapshot.ClusterId,
		Environment:     snapshot.Environment.String(),
		PlatformVersion: snapshot.PlatformVersion,
		StorageClasses:  snapshot.StorageClasses,
	}
}
