package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	apierr "github.com/cloudpasture/shepherd/pkg/api/types/errors"
	apisizes "github.com/cloudpasture/shepherd/pkg/api/types/sizes"
	"github.com/cloudpasture/shepherd/pkg/auth"
	"github.com/cloudpasture/shepherd/pkg/domain"
	sizedb "github.com/cloudpasture/shepherd/pkg/domain/size/db"
)

func ListSizeHandler(sizes sizedb.Interface) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Add("Content-Type", "application/json")
		ctx := c.Request().Context()

		enabledOnly := true
		if all := c.QueryParam("all"); all != "" {
			parsed, err := strconv.ParseBool(all)
			if err != nil {
				return apierr.BadRequest(`"all" should be a boolean`, err)
			}
			enabledOnly = !parsed
		}

		definitions, err := sizes.List(ctx, enabledOnly)
		if err != nil {
			return apierr.InternalServerError(err)
		}

		resp := make([]apisizes.Detail, len(definitions))
		for i, definition := range definitions {
			resp[i] = apisizes.ComposeDetail(definition)
		}
		return c.JSON(http.StatusOK, resp)
	}
}

func CreateSizeHandler(sizes sizedb.Interface) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Add("Content-Type", "application/json")
		ctx := c.Request().Context()

		spec := apisizes.SizeSpec{}
		if err := c.Bind(&spec); err != nil {
			return apierr.BadRequest("request body should be a size spec", err)
		}
		if advice := adviseSizeSpec(spec); advice != "" {
			return apierr.BadRequest(advice, nil)
		}

		created, err := sizes.Create(ctx, spec.ToDefinition(auth.AdminFrom(c)))
		if err != nil {
			if errors.Is(err, domain.ErrSizeNameConflict) {
				return apierr.Conflict(
					"size name is already taken", apierr.WithError(err),
				)
			}
			return apierr.InternalServerError(err)
		}

		return c.JSON(http.StatusCreated, apisizes.ComposeDetail(created))
	}
}

func UpdateSizeHandler(sizes sizedb.Interface) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Add("Content-Type", "application/json")
		ctx := c.Request().Context()
		name := c.Param("name")

		spec := apisizes.SizeSpec{}
		if err := c.Bind(&spec); err != nil {
			return apierr.BadRequest("request body should be a size spec", err)
		}
		if spec.Name != "" && spec.Name != name {
			return apierr.BadRequest(`"name" cannot be changed by update`, nil)
		}
		spec.Name = name
		if advice := adviseSizeSpec(spec); advice != "" {
			return apierr.BadRequest(advice, nil)
		}

		updated, err := sizes.Update(ctx, name, spec.ToDefinition(auth.AdminFrom(c)))
		if err != nil {
			if errors.Is(err, domain.ErrMissing) {
				return apierr.NotFound()
			}
			return apierr.InternalServerError(err)
		}

		return c.JSON(http.StatusOK, apisizes.ComposeDetail(updated))
	}
}

func DeactivateSizeHandler(sizes sizedb.Interface) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Add("Content-Type", "application/json")
		ctx := c.Request().Context()
		name := c.Param("name")

		if err := sizes.Deactivate(ctx, name); err != nil {
			if errors.Is(err, domain.ErrMissing) {
				return apierr.NotFound()
			}
			return apierr.InternalServerError(err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func adviseSizeSpec(spec apisizes.SizeSpec) string {
	switch {
	case spec.Name == "":
		return `"name" is required`
	case spec.CPUCores <= 0:
		return `"cpuCores" should be positive`
	case spec.MemoryMB <= 0:
		return `"memoryMB" should be positive`
	case spec.CPURequest < 0 || spec.CPUCores < spec.CPURequest:
		return `"cpuRequest" should be between 0 and "cpuCores"`
	case spec.MemoryRequestMB < 0 || spec.MemoryMB < spec.MemoryRequestMB:
		return `"memoryRequestMB" should be between 0 and "memoryMB"`
	default:
		return ""
	}
}
