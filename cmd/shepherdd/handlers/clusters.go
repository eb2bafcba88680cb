package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	apiclusters "github.com/cloudpasture/shepherd/pkg/api/types/clusters"
	apierr "github.com/cloudpasture/shepherd/pkg/api/types/errors"
	"github.com/cloudpasture/shepherd/pkg/domain"
	clusterdb "github.com/cloudpasture/shepherd/pkg/domain/cluster/db"
)

func ListClusterHandler(clusters clusterdb.Interface) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Add("Content-Type", "application/json")
		ctx := c.Request().Context()

		snapshots, err := clusters.List(ctx)
		if err != nil {
			return apierr.InternalServerError(err)
		}

		resp := make([]apiclusters.Detail, len(snapshots))
		for i, snapshot := range snapshots {
			resp[i] = apiclusters.ComposeDetail(snapshot)
		}
		return c.JSON(http.StatusOK, resp)
	}
}

func GetClusterHandler(clusters clusterdb.Interface) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Add("Content-Type", "application/json")
		ctx := c.Request().Context()

		snapshot, err := clusters.Get(ctx, c.Param("clusterId"))
		if err != nil {
			if errors.Is(err, domain.ErrMissing) {
				return apierr.NotFound()
			}
			return apierr.InternalServerError(err)
		}
		return c.JSON(http.StatusOK, apiclusters.ComposeDetail(snapshot))
	}
}
