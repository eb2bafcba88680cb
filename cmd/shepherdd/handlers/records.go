package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	apierr "github.com/cloudpasture/shepherd/pkg/api/types/errors"
	apirecords "github.com/cloudpasture/shepherd/pkg/api/types/records"
	"github.com/cloudpasture/shepherd/pkg/auth"
	"github.com/cloudpasture/shepherd/pkg/domain"
	approvaldb "github.com/cloudpasture/shepherd/pkg/domain/approval/db"
	clusterdb "github.com/cloudpasture/shepherd/pkg/domain/cluster/db"
	recorddb "github.com/cloudpasture/shepherd/pkg/domain/record/db"
	sizedb "github.com/cloudpasture/shepherd/pkg/domain/size/db"
	"github.com/cloudpasture/shepherd/pkg/domain/validation"
	"github.com/cloudpasture/shepherd/pkg/utils/rfctime"
	kstrings "github.com/cloudpasture/shepherd/pkg/utils/strings"
)

// RequesterHeader carries who submits a record. Set by the authenticating
// proxy in front of shepherdd.
const RequesterHeader = "X-Shepherd-Requester"

func SubmitRecordHandler(
	approvals approvaldb.Interface,
	sizes sizedb.Interface,
	clusters clusterdb.Interface,
	schemas SchemaGetter,
) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Add("Content-Type", "application/json")
		ctx := c.Request().Context()

		requester := c.Request().Header.Get(RequesterHeader)
		if requester == "" {
			return apierr.BadRequest(`"`+RequesterHeader+`" header is required`, nil)
		}

		spec := apirecords.RecordSpec{}
		if err := c.Bind(&spec); err != nil {
			return apierr.BadRequest("request body should be a record spec", err)
		}
		recordType, err := domain.AsRecordType(spec.Type)
		if err != nil {
			return apierr.BadRequest(
				`"type" should be one of vm.create, vm.modify, vm.delete, vm.start, vm.stop or vm.restart`,
				err,
			)
		}
		if len(spec.Payload) == 0 {
			return apierr.BadRequest(`"payload" is required`, nil)
		}

		requirements, err := validation.ExtractRequirements(spec.Payload)
		if err != nil {
			return apierr.BadRequest("payload is not parsable", err)
		}

		s, err := schemaFor(ctx, clusters, schemas, requirements.Environment)
		if err != nil {
			return apierr.InternalServerError(err)
		}
		violations, err := validation.Validate(spec.Payload, s)
		if err != nil {
			return apierr.BadRequest("payload should be a JSON object", err)
		}
		if 0 < len(violations) {
			return apierr.UnprocessableEntity(
				"payload does not conform to the schema",
				apierr.WithAdvice(violationAdvice(violations)),
			)
		}

		// a size that can never run is refused at the door, not at approval
		if sizeName := sizeNameOf(spec.Payload); sizeName != "" {
			size, err := sizes.GetByName(ctx, sizeName)
			if err != nil {
				if errors.Is(err, domain.ErrMissing) {
					return apierr.BadRequest(`"size" names no known size definition`, err)
				}
				return apierr.InternalServerError(err)
			}
			if _, fatal := validation.CheckConflicts(size, requirements.Environment); fatal != nil {
				return apierr.UnprocessableEntity(
					"requested size cannot run", apierr.WithError(fatal),
				)
			}
		}

		record, approval, err := approvals.Submit(ctx, recorddb.NewWorkRecord{
			Type:        recordType,
			VMId:        spec.VMId,
			Payload:     []byte(spec.Payload),
			RequestedBy: requester,
		})
		if err != nil {
			return apierr.InternalServerError(err)
		}

		return c.JSON(http.StatusCreated, apirecords.ComposeDetail(record, &approval))
	}
}

func FindRecordHandler(
	records recorddb.Interface, approvals approvaldb.Interface,
) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Add("Content-Type", "application/json")
		ctx := c.Request().Context()

		query := domain.RecordFindQuery{
			RequestedBy: c.QueryParam("requestedBy"),
			VMId:        c.QueryParam("vmId"),
		}
		for _, p := range kstrings.SplitIfNotEmpty(c.QueryParam("type"), ",") {
			recordType, err := domain.AsRecordType(p)
			if err != nil {
				return apierr.BadRequest(`"type" holds an unknown record type`, err)
			}
			query.Type = append(query.Type, recordType)
		}
		for _, p := range kstrings.SplitIfNotEmpty(c.QueryParam("status"), ",") {
			status, err := domain.AsRecordStatus(p)
			if err != nil {
				return apierr.BadRequest(
					`"status" should be one of pending, processing, completed, failed or cancelled`,
					err,
				)
			}
			query.Status = append(query.Status, status)
		}
		if since := c.QueryParam("since"); since != "" {
			t, err := rfctime.ParseRFC3339DateTime(since)
			if err != nil {
				return apierr.BadRequest(`"since" should be a RFC3339 date-time format`, err)
			}
			_t := t.Time()
			query.CreatedSince = &_t
		}
		if duration := c.QueryParam("duration"); duration != "" {
			if query.CreatedSince == nil {
				return apierr.BadRequest(`"duration" makes sense only with "since"`, nil)
			}
			d, err := time.ParseDuration(duration)
			if err != nil {
				return apierr.BadRequest(`"duration" should be a Go duration format`, err)
			}
			_t := query.CreatedSince.Add(d)
			query.CreatedUntil = &_t
		}

		recordIds, err := records.Find(ctx, query)
		if err != nil {
			return apierr.InternalServerError(err)
		}
		found, err := records.Get(ctx, recordIds)
		if err != nil {
			return apierr.InternalServerError(err)
		}
		overlays, err := approvals.Get(ctx, recordIds)
		if err != nil {
			return apierr.InternalServerError(err)
		}

		resp := make([]apirecords.Detail, 0, len(found))
		for _, recordId := range recordIds {
			record, ok := found[recordId]
			if !ok {
				continue
			}
			var approval *domain.Approval
			if a, ok := overlays[recordId]; ok {
				approval = &a
			}
			resp = append(resp, apirecords.ComposeDetail(record, approval))
		}
		return c.JSON(http.StatusOK, resp)
	}
}

func GetRecordHandler(
	records recorddb.Interface, approvals approvaldb.Interface,
) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Add("Content-Type", "application/json")
		ctx := c.Request().Context()
		recordId := c.Param("recordId")

		found, err := records.Get(ctx, []string{recordId})
		if err != nil {
			return apierr.InternalServerError(err)
		}
		record, ok := found[recordId]
		if !ok {
			return apierr.NotFound()
		}

		overlays, err := approvals.Get(ctx, []string{recordId})
		if err != nil {
			return apierr.InternalServerError(err)
		}
		var approval *domain.Approval
		if a, ok := overlays[recordId]; ok {
			approval = &a
		}

		return c.JSON(http.StatusOK, apirecords.ComposeDetail(record, approval))
	}
}

// CandidatesHandler lists clusters able to take a record, for the approver.
func CandidatesHandler(
	records recorddb.Interface,
	approvals approvaldb.Interface,
	clusters clusterdb.Interface,
) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Add("Content-Type", "application/json")
		ctx := c.Request().Context()
		recordId := c.Param("recordId")

		found, err := records.Get(ctx, []string{recordId})
		if err != nil {
			return apierr.InternalServerError(err)
		}
		record, ok := found[recordId]
		if !ok {
			return apierr.NotFound()
		}
		overlays, err := approvals.Get(ctx, []string{recordId})
		if err != nil {
			return apierr.InternalServerError(err)
		}

		var approval *domain.Approval
		if a, ok := overlays[recordId]; ok {
			approval = &a
		}
		effective := approval.EffectiveConfig(&record)

		requirements, err := validation.ExtractRequirements(effective)
		if err != nil {
			return apierr.InternalServerError(err)
		}
		snapshots, err := clusters.List(ctx)
		if err != nil {
			return apierr.InternalServerError(err)
		}

		candidates := validation.MatchClusters(requirements, snapshots)
		resp := make([]apirecords.Candidate, 0, len(candidates))
		for _, candidate := range candidates {
			resp = append(resp, apirecords.ComposeCandidate(candidate.Snapshot))
		}
		return c.JSON(http.StatusOK, resp)
	}
}

// DecisionHandler settles a pending record: approve, reject or cancel.
//
// Approve re-validates the effective configuration. What was fine at
// submission can be stale by decision time: schemas move, sizes get edited,
// clusters come and go.
func DecisionHandler(
	records recorddb.Interface,
	approvals approvaldb.Interface,
	sizes sizedb.Interface,
	clusters clusterdb.Interface,
	schemas SchemaGetter,
) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Add("Content-Type", "application/json")
		ctx := c.Request().Context()
		recordId := c.Param("recordId")
		decidedBy := auth.AdminFrom(c)

		body := apirecords.Decision{}
		if err := c.Bind(&body); err != nil {
			return apierr.BadRequest("request body should be a decision", err)
		}

		switch body.Action {
		case "reject":
			err := approvals.Reject(ctx, recordId, approvaldb.Decision{
				DecidedBy: decidedBy, Note: body.Note,
			})
			return respondDecision(c, approvals, recordId, err)

		case "cancel":
			err := approvals.Cancel(ctx, recordId, approvaldb.Decision{
				DecidedBy: decidedBy, Note: body.Note,
			})
			return respondDecision(c, approvals, recordId, err)

		case "approve":
			// fall through below

		default:
			return apierr.BadRequest(`"action" should be one of approve, reject or cancel`, nil)
		}

		found, err := records.Get(ctx, []string{recordId})
		if err != nil {
			return apierr.InternalServerError(err)
		}
		record, ok := found[recordId]
		if !ok {
			return apierr.NotFound()
		}

		effective := validation.EffectiveConfig(record.Payload, body.ModifiedConfig)
		requirements, err := validation.ExtractRequirements(effective)
		if err != nil {
			return apierr.BadRequest("effective configuration is not parsable", err)
		}

		if body.ClusterId == "" {
			return apierr.BadRequest(`"clusterId" is required to approve`, nil)
		}
		snapshot, err := clusters.Get(ctx, body.ClusterId)
		if err != nil {
			if errors.Is(err, domain.ErrMissing) {
				return apierr.BadRequest(`"clusterId" names no known cluster`, err)
			}
			return apierr.InternalServerError(err)
		}

		s, _, err := schemas.Get(ctx, snapshot.PlatformVersion)
		if err != nil {
			return apierr.ServiceUnavailable("no schema for the target cluster; try again later", err)
		}
		violations, err := validation.Validate(effective, s)
		if err != nil {
			return apierr.BadRequest("effective configuration should be a JSON object", err)
		}
		if 0 < len(violations) {
			return apierr.UnprocessableEntity(
				"effective configuration does not conform to the schema",
				apierr.WithAdvice(violationAdvice(violations)),
			)
		}

		if candidates := validation.MatchClusters(
			requirements, []domain.CapabilitySnapshot{snapshot},
		); len(candidates) == 0 {
			return apierr.Conflict(
				"chosen cluster cannot satisfy the configuration's requirements",
			)
		}

		sizeName := body.SizeName
		if sizeName == "" {
			sizeName = sizeNameOf(effective)
		}
		warnings := []string{}
		if sizeName != "" {
			size, err := sizes.GetByName(ctx, sizeName)
			if err != nil {
				if errors.Is(err, domain.ErrMissing) {
					return apierr.BadRequest(`"sizeName" names no known size definition`, err)
				}
				return apierr.InternalServerError(err)
			}
			w, fatal := validation.CheckConflicts(size, snapshot.Environment)
			if fatal != nil {
				return apierr.UnprocessableEntity(
					"requested size cannot run", apierr.WithError(fatal),
				)
			}
			warnings = w
		}

		approval, err := approvals.Approve(ctx, recordId, approvaldb.Decision{
			DecidedBy:      decidedBy,
			Note:           body.Note,
			ModifiedConfig: []byte(body.ModifiedConfig),
			ClusterId:      body.ClusterId,
			StorageClass:   body.StorageClass,
			SizeName:       sizeName,
			Warnings:       warnings,
		})
		if err != nil {
			return decisionError(err)
		}

		return c.JSON(http.StatusOK, apirecords.ComposeApproval(approval))
	}
}

func respondDecision(
	c echo.Context, approvals approvaldb.Interface, recordId string, err error,
) error {
	if err != nil {
		return decisionError(err)
	}
	overlays, err := approvals.Get(c.Request().Context(), []string{recordId})
	if err != nil {
		return apierr.InternalServerError(err)
	}
	approval, ok := overlays[recordId]
	if !ok {
		return apierr.NotFound()
	}
	return c.JSON(http.StatusOK, apirecords.ComposeApproval(approval))
}

func decisionError(err error) error {
	switch {
	case errors.Is(err, domain.ErrMissing):
		return apierr.NotFound()
	case errors.Is(err, domain.ErrInvalidApprovalStateChanging),
		errors.Is(err, domain.ErrJobAlreadyExists):
		return apierr.Conflict("record is not open for this decision", apierr.WithError(err))
	default:
		return apierr.InternalServerError(err)
	}
}
