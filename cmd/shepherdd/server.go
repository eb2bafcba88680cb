package main

import (
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/cloudpasture/shepherd/cmd/shepherdd/handlers"
	"github.com/cloudpasture/shepherd/pkg/auth"
	approvaldb "github.com/cloudpasture/shepherd/pkg/domain/approval/db"
	clusterdb "github.com/cloudpasture/shepherd/pkg/domain/cluster/db"
	recorddb "github.com/cloudpasture/shepherd/pkg/domain/record/db"
	sizedb "github.com/cloudpasture/shepherd/pkg/domain/size/db"
	"github.com/cloudpasture/shepherd/pkg/utils/echoutil"
)

var API_ROOT = "/api"

func api(subpath string) string {
	if !strings.HasSuffix(subpath, "/") {
		subpath += "/"
	}
	return fmt.Sprintf("%s/%s", API_ROOT, subpath)
}

type stores struct {
	records   recorddb.Interface
	approvals approvaldb.Interface
	sizes     sizedb.Interface
	clusters  clusterdb.Interface
}

func BuildServer(
	s stores, schemas handlers.SchemaGetter, adminTokenKey []byte, loglevel string,
) *echo.Echo {

	e := echo.New()
	e.Pre(middleware.AddTrailingSlash())

	echoutil.SetLevel(e, loglevel)
	e.HTTPErrorHandler = func(err error, ctx echo.Context) {
		e.DefaultHTTPErrorHandler(err, ctx)
		e.Logger.Error(err)
	}
	e.Use(echoutil.LogHandlerFunc)

	adminOnly := auth.AdminOnly(adminTokenKey)

	{
		e.POST(api("records"), handlers.SubmitRecordHandler(
			s.approvals, s.sizes, s.clusters, schemas,
		))
		e.GET(api("records"), handlers.FindRecordHandler(s.records, s.approvals))
		e.GET(api("records/:recordId"), handlers.GetRecordHandler(s.records, s.approvals))

		e.GET(
			api("records/:recordId/candidates"),
			handlers.CandidatesHandler(s.records, s.approvals, s.clusters),
			adminOnly,
		)
		e.PUT(
			api("records/:recordId/decision"),
			handlers.DecisionHandler(s.records, s.approvals, s.sizes, s.clusters, schemas),
			adminOnly,
		)
	}

	{
		e.GET(api("sizes"), handlers.ListSizeHandler(s.sizes))
		e.POST(api("sizes"), handlers.CreateSizeHandler(s.sizes), adminOnly)
		e.PUT(api("sizes/:name"), handlers.UpdateSizeHandler(s.sizes), adminOnly)
		e.DELETE(api("sizes/:name"), handlers.DeactivateSizeHandler(s.sizes), adminOnly)
	}

	{
		e.GET(api("clusters"), handlers.ListClusterHandler(s.clusters))
		e.GET(api("clusters/:clusterId"), handlers.GetClusterHandler(s.clusters))
	}

	return e
}
