package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/cloudpasture/shepherd/cmd/shepherdd/handlers"
	httptestutil "github.com/cloudpasture/shepherd/internal/testutils/http"
	apisizes "github.com/cloudpasture/shepherd/pkg/api/types/sizes"
	"github.com/cloudpasture/shepherd/pkg/domain"
	sizemock "github.com/cloudpasture/shepherd/pkg/domain/size/db/mock"
	"github.com/cloudpasture/shepherd/pkg/utils/cmp"
)

func dummySize(name string) domain.SizeDefinition {
	return domain.SizeDefinition{
		Id:        "size-id-" + name,
		Name:      name,
		CPUCores:  2,
		MemoryMB:  4096,
		DiskGB:    20,
		SortOrder: 10,
		Enabled:   true,
		CreatedBy: "carol",
		CreatedAt: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestListSizeHandler(t *testing.T) {

	t.Run("it lists enabled sizes by default", func(t *testing.T) {
		mockSize := sizemock.NewSizeInterface()
		mockSize.Impl.List = func(ctx context.Context, enabledOnly bool) ([]domain.SizeDefinition, error) {
			if !enabledOnly {
				t.Error("List should be called with enabledOnly")
			}
			return []domain.SizeDefinition{dummySize("small"), dummySize("large")}, nil
		}

		e := echo.New()
		c, respRec := httptestutil.Get(e, "/api/sizes")

		testee := handlers.ListSizeHandler(mockSize)
		if err := testee(c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		actual := []apisizes.Detail{}
		if err := json.Unmarshal(respRec.Body.Bytes(), &actual); err != nil {
			t.Fatalf("response is not json: %v", err)
		}
		expected := []apisizes.Detail{
			apisizes.ComposeDetail(dummySize("small")),
			apisizes.ComposeDetail(dummySize("large")),
		}
		if !cmp.SliceEqWith(actual, expected, apisizes.Detail.Equal) {
			t.Errorf("unmatch sizes:\n- actual:\n%+v\n- expected:\n%+v", actual, expected)
		}
	})

	t.Run("?all=true includes deactivated sizes", func(t *testing.T) {
		mockSize := sizemock.NewSizeInterface()
		mockSize.Impl.List = func(ctx context.Context, enabledOnly bool) ([]domain.SizeDefinition, error) {
			if enabledOnly {
				t.Error("List should be called without enabledOnly")
			}
			return []domain.SizeDefinition{}, nil
		}

		e := echo.New()
		c, _ := httptestutil.Get(e, "/api/sizes?all=true")

		testee := handlers.ListSizeHandler(mockSize)
		if err := testee(c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestCreateSizeHandler(t *testing.T) {

	t.Run("it registers a size and returns Created", func(t *testing.T) {
		mockSize := sizemock.NewSizeInterface()
		mockSize.Impl.Create = func(ctx context.Context, spec domain.SizeDefinition) (domain.SizeDefinition, error) {
			created := spec
			created.Id = "size-id-1"
			created.Enabled = true
			return created, nil
		}

		e := echo.New()
		c, respRec := httptestutil.Post(
			e, "/api/sizes",
			strings.NewReader(`{"name":"gpu-large","cpuCores":8,"memoryMB":32768,"requiresGPU":true,"gpuDevice":"nvidia.com/gpu"}`),
			httptestutil.ContentType("application/json"),
		)
		c.Set("shepherd.admin", "carol")

		testee := handlers.CreateSizeHandler(mockSize)
		if err := testee(c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if respRec.Result().StatusCode != http.StatusCreated {
			t.Errorf("status code %d != %d", respRec.Result().StatusCode, http.StatusCreated)
		}
		if len(mockSize.Calls.Create) != 1 {
			t.Fatalf("Create should be called once, but %d times", len(mockSize.Calls.Create))
		}
		spec := mockSize.Calls.Create[0]
		if spec.Name != "gpu-large" || spec.CreatedBy != "carol" || !spec.RequiresGPU {
			t.Errorf("unexpected spec: %+v", spec)
		}
	})

	t.Run("it returns error responses", func(t *testing.T) {
		type when struct {
			body        string
			createError error
		}
		type then struct {
			statusCode int
		}

		for name, testcase := range map[string]struct {
			when
			then
		}{
			"(Bad Request) when name is missing": {
				when{body: `{"cpuCores":2,"memoryMB":2048}`},
				then{statusCode: http.StatusBadRequest},
			},
			"(Bad Request) when cpuCores is zero": {
				when{body: `{"name":"small","memoryMB":2048}`},
				then{statusCode: http.StatusBadRequest},
			},
			"(Bad Request) when request exceeds limit": {
				when{body: `{"name":"small","cpuCores":2,"memoryMB":2048,"memoryRequestMB":4096}`},
				then{statusCode: http.StatusBadRequest},
			},
			"(Conflict) when the name is taken": {
				when{
					body:        `{"name":"small","cpuCores":2,"memoryMB":2048}`,
					createError: domain.ErrSizeNameConflict,
				},
				then{statusCode: http.StatusConflict},
			},
		} {
			t.Run(name, func(t *testing.T) {
				mockSize := sizemock.NewSizeInterface()
				mockSize.Impl.Create = func(ctx context.Context, spec domain.SizeDefinition) (domain.SizeDefinition, error) {
					return domain.SizeDefinition{}, testcase.when.createError
				}

				e := echo.New()
				c, _ := httptestutil.Post(
					e, "/api/sizes", strings.NewReader(testcase.when.body),
					httptestutil.ContentType("application/json"),
				)
				c.Set("shepherd.admin", "carol")

				testee := handlers.CreateSizeHandler(mockSize)
				err := testee(c)
				if err == nil {
					t.Fatal("no error occured, but it should")
				}
				var echoErr *echo.HTTPError
				if !errors.As(err, &echoErr) {
					t.Fatalf("error is not echo.HTTPError. actual = %#v", err)
				}
				if echoErr.Code != testcase.then.statusCode {
					t.Errorf("unmatch error code:%d, expected:%d", echoErr.Code, testcase.then.statusCode)
				}
			})
		}
	})
}

func TestUpdateSizeHandler(t *testing.T) {

	t.Run("it replaces the definition keeping the name", func(t *testing.T) {
		mockSize := sizemock.NewSizeInterface()
		mockSize.Impl.Update = func(ctx context.Context, name string, spec domain.SizeDefinition) (domain.SizeDefinition, error) {
			updated := spec
			updated.Id = "size-id-1"
			updated.Enabled = true
			return updated, nil
		}

		e := echo.New()
		c, respRec := httptestutil.Put(
			e, "/api/sizes/small",
			strings.NewReader(`{"cpuCores":4,"memoryMB":8192}`),
			httptestutil.ContentType("application/json"),
		)
		c.SetPath("/sizes/:name")
		c.SetParamNames("name")
		c.SetParamValues("small")
		c.Set("shepherd.admin", "carol")

		testee := handlers.UpdateSizeHandler(mockSize)
		if err := testee(c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if respRec.Result().StatusCode != http.StatusOK {
			t.Errorf("status code %d != %d", respRec.Result().StatusCode, http.StatusOK)
		}

		if len(mockSize.Calls.Update) != 1 {
			t.Fatalf("Update should be called once, but %d times", len(mockSize.Calls.Update))
		}
		call := mockSize.Calls.Update[0]
		if call.Name != "small" || call.Spec.CPUCores != 4 {
			t.Errorf("unexpected update: %+v", call)
		}
	})

	t.Run("(Bad Request) when the body tries to rename", func(t *testing.T) {
		mockSize := sizemock.NewSizeInterface()

		e := echo.New()
		c, _ := httptestutil.Put(
			e, "/api/sizes/small",
			strings.NewReader(`{"name":"renamed","cpuCores":4,"memoryMB":8192}`),
			httptestutil.ContentType("application/json"),
		)
		c.SetPath("/sizes/:name")
		c.SetParamNames("name")
		c.SetParamValues("small")

		testee := handlers.UpdateSizeHandler(mockSize)
		err := testee(c)
		if err == nil {
			t.Fatal("no error occured, but it should")
		}
		var echoErr *echo.HTTPError
		if !errors.As(err, &echoErr) || echoErr.Code != http.StatusBadRequest {
			t.Errorf("unexpected error: %v", err)
		}
		if len(mockSize.Calls.Update) != 0 {
			t.Error("Update should not be called")
		}
	})

	t.Run("(Not Found) when no size has the name", func(t *testing.T) {
		mockSize := sizemock.NewSizeInterface()
		mockSize.Impl.Update = func(ctx context.Context, name string, spec domain.SizeDefinition) (domain.SizeDefinition, error) {
			return domain.SizeDefinition{}, domain.ErrMissing
		}

		e := echo.New()
		c, _ := httptestutil.Put(
			e, "/api/sizes/ghost",
			strings.NewReader(`{"cpuCores":4,"memoryMB":8192}`),
			httptestutil.ContentType("application/json"),
		)
		c.SetPath("/sizes/:name")
		c.SetParamNames("name")
		c.SetParamValues("ghost")

		testee := handlers.UpdateSizeHandler(mockSize)
		err := testee(c)
		if err == nil {
			t.Fatal("no error occured, but it should")
		}
		var echoErr *echo.HTTPError
		if !errors.As(err, &echoErr) || echoErr.Code != http.StatusNotFound {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestDeactivateSizeHandler(t *testing.T) {

	t.Run("it deactivates and returns No Content", func(t *testing.T) {
		mockSize := sizemock.NewSizeInterface()
		mockSize.Impl.Deactivate = func(ctx context.Context, name string) error {
			return nil
		}

		e := echo.New()
		c, respRec := httptestutil.Delete(e, "/api/sizes/small")
		c.SetPath("/sizes/:name")
		c.SetParamNames("name")
		c.SetParamValues("small")

		testee := handlers.DeactivateSizeHandler(mockSize)
		if err := testee(c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if respRec.Result().StatusCode != http.StatusNoContent {
			t.Errorf("status code %d != %d", respRec.Result().StatusCode, http.StatusNoContent)
		}
		if !cmp.SliceEq(mockSize.Calls.Deactivate, []string{"small"}) {
			t.Errorf("unexpected calls: %+v", mockSize.Calls.Deactivate)
		}
	})

	t.Run("(Not Found) when no size has the name", func(t *testing.T) {
		mockSize := sizemock.NewSizeInterface()
		mockSize.Impl.Deactivate = func(ctx context.Context, name string) error {
			return domain.ErrMissing
		}

		e := echo.New()
		c, _ := httptestutil.Delete(e, "/api/sizes/ghost")
		c.SetPath("/sizes/:name")
		c.SetParamNames("name")
		c.SetParamValues("ghost")

		testee := handlers.DeactivateSizeHandler(mockSize)
		err := testee(c)
		if err == nil {
			t.Fatal("no error occured, but it should")
		}
		var echoErr *echo.HTTPError
		if !errors.As(err, &echoErr) || echoErr.Code != http.StatusNotFound {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
