package http

import (
	"encoding/json"
	"net/http"

	"github.com/jmehdipour/linkdb/internal/apperr"
	"github.com/jmehdipour/linkdb/internal/http/middleware"
	"github.com/jmehdipour/linkdb/internal/model"
	"github.com/jmehdipour/linkdb/internal/service/schema"
	"github.com/jmehdipour/linkdb/internal/util"
	"github.com/labstack/echo/v4"
)

// decodeJSON reads a JSON request body, keeping numbers as json.Number so
// integers survive without float rounding.
func decodeJSON(c echo.Context, v any) error {
	dec := json.NewDecoder(c.Request().Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return apperr.Wrap(err, apperr.EInvalidSchema, "", "request body must be a JSON object")
	}
	return nil
}

func namespace(c echo.Context) (string, error) {
	ns, ok := middleware.NamespaceFromCtx(c)
	if !ok {
		return "", apperr.New(apperr.EUnauthorized, "API key is missing")
	}
	return ns, nil
}

func createTableHandler(svc *schema.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		ns, err := namespace(c)
		if err != nil {
			return err
		}
		var def model.TableDefinition
		if err := decodeJSON(c, &def); err != nil {
			return err
		}
		if err := svc.CreateTable(c.Request().Context(), ns, def); err != nil {
			return err
		}
		return c.JSON(http.StatusOK, map[string]string{
			"message": "Table " + util.NormalizeIdentifier(def.Name) + " created successfully",
		})
	}
}

func listTablesHandler(svc *schema.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		ns, err := namespace(c)
		if err != nil {
			return err
		}
		tables, err := svc.ListTables(c.Request().Context(), ns)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, map[string]any{"tables": tables})
	}
}

func tableSchemaHandler(svc *schema.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		ns, err := namespace(c)
		if err != nil {
			return err
		}
		def, err := svc.DescribeTable(c.Request().Context(), ns, c.Param("table"))
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, def)
	}
}
