package http

import (
	"net/http"
	"strconv"

	"github.com/jmehdipour/linkdb/internal/apperr"
	"github.com/jmehdipour/linkdb/internal/model"
	"github.com/jmehdipour/linkdb/internal/service/records"
	"github.com/jmehdipour/linkdb/internal/util"
	"github.com/labstack/echo/v4"
)

func decodeRecord(c echo.Context) (model.Record, error) {
	var rec model.Record
	if err := decodeJSON(c, &rec); err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, apperr.New(apperr.EInvalidSchema, "request body must be a JSON object")
	}
	return rec, nil
}

func insertDataHandler(svc *records.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		ns, err := namespace(c)
		if err != nil {
			return err
		}
		rec, err := decodeRecord(c)
		if err != nil {
			return err
		}
		id, err := svc.Insert(c.Request().Context(), ns, c.Param("table"), rec)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, map[string]any{"message": "Data inserted successfully", "id": id})
	}
}

func queryDataHandler(svc *records.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		ns, err := namespace(c)
		if err != nil {
			return err
		}
		var page records.Page
		if page.Limit, err = uintParam(c, "limit"); err != nil {
			return err
		}
		if page.Offset, err = uintParam(c, "offset"); err != nil {
			return err
		}

		rows, err := svc.QueryAll(c.Request().Context(), ns, c.Param("table"), page)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, map[string]any{"data": rows})
	}
}

func uintParam(c echo.Context, name string) (uint64, error) {
	v := c.QueryParam(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(v, 10, 63)
	if err != nil {
		return 0, apperr.New(apperr.EInvalidSchema, "%s must be a non-negative integer", name)
	}
	return n, nil
}

func updateDataHandler(svc *records.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		ns, err := namespace(c)
		if err != nil {
			return err
		}
		rec, err := decodeRecord(c)
		if err != nil {
			return err
		}
		if err := svc.Update(c.Request().Context(), ns, c.Param("table"), rec); err != nil {
			return err
		}
		return c.JSON(http.StatusOK, map[string]string{"message": "Data updated successfully"})
	}
}

func deleteDataHandler(svc *records.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		ns, err := namespace(c)
		if err != nil {
			return err
		}
		rec, err := decodeRecord(c)
		if err != nil {
			return err
		}
		id, ok := rec[model.IDField]
		if !ok {
			return apperr.New(apperr.EInvalidSchema, "id is required")
		}
		if err := svc.Delete(c.Request().Context(), ns, c.Param("table"), id); err != nil {
			return err
		}
		return c.JSON(http.StatusOK, map[string]string{"message": "Data deleted successfully"})
	}
}

func dataCountHandler(svc *records.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		ns, err := namespace(c)
		if err != nil {
			return err
		}
		n, err := svc.Count(c.Request().Context(), ns, c.Param("table"))
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, map[string]any{
			"table_name": util.NormalizeIdentifier(c.Param("table")),
			"count":      n,
		})
	}
}

func dataSumHandler(svc *records.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		ns, err := namespace(c)
		if err != nil {
			return err
		}
		sum, err := svc.Sum(c.Request().Context(), ns, c.Param("table"), c.Param("column"))
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, map[string]any{
			"table_name": util.NormalizeIdentifier(c.Param("table")),
			"column":     util.NormalizeIdentifier(c.Param("column")),
			"sum":        sum,
		})
	}
}
