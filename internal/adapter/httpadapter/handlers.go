package httpadapter

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/KaramelBytes/vetviz-cli/internal/geo"
	"github.com/KaramelBytes/vetviz-cli/internal/lifestage"
	"github.com/KaramelBytes/vetviz-cli/internal/resolve"
	"github.com/KaramelBytes/vetviz-cli/internal/table"
	"github.com/KaramelBytes/vetviz-cli/internal/views"
)

// Error codes returned in APIError.Code.
const (
	ErrorCodeValidation     = "VALIDATION_ERROR"
	ErrorCodeColumnNotFound = "COLUMN_NOT_FOUND"
	ErrorCodeTooLarge       = "TOO_MANY_ROWS"
	ErrorCodeCanceled       = "REQUEST_CANCELED"
)

// APIError is the error body of every failed request.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// TablePayload is a table posted as a header and rows of JSON scalars.
type TablePayload struct {
	Name    string          `json:"name"`
	Columns []string        `json:"columns" binding:"required,min=1"`
	Rows    [][]table.Value `json:"rows"`
}

// ViewsRequest is the body of POST /v1/views.
type ViewsRequest struct {
	TablePayload
	Options *views.Options `json:"options"`
	Lookup  *TablePayload  `json:"lookup"`
}

func respondWithError(c *gin.Context, status int, code, message string, details any) {
	c.AbortWithStatusJSON(status, APIError{Code: code, Message: message, Details: details})
}

func (s *Server) handleViews(c *gin.Context) {
	var req ViewsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, http.StatusBadRequest, ErrorCodeValidation, "Invalid request payload", gin.H{"reason": err.Error()})
		return
	}
	format, err := views.ParseFormat(c.DefaultQuery("format", "json"))
	if err != nil {
		respondWithError(c, http.StatusBadRequest, ErrorCodeValidation, err.Error(), nil)
		return
	}

	opt := mergeOptions(s.deps.Defaults, req.Options)
	if opt.Species, err = lifestage.ParseTarget(string(opt.Species)); err != nil {
		respondWithError(c, http.StatusBadRequest, ErrorCodeValidation, err.Error(), nil)
		return
	}
	t, err := s.buildTable(req.TablePayload, "records")
	if err != nil {
		s.respondTableError(c, err)
		return
	}
	table.ParseDateColumns(t, s.deps.Table, false)

	in := views.Inputs{
		Options:  opt,
		Geocoder: s.deps.Geocoder,
		Dates:    s.deps.Table,
		Logger:   s.logger,
		Metrics:  s.deps.Metrics,
	}
	if req.Lookup != nil {
		lt, err := s.buildTable(*req.Lookup, "lookup")
		if err != nil {
			s.respondTableError(c, err)
			return
		}
		role := opt.LocationRole
		if role == "" {
			role = views.DefaultOptions().LocationRole
		}
		if in.Lookup, err = geo.LookupFromTable(lt, role); err != nil {
			s.respondTableError(c, err)
			return
		}
	}

	v, err := views.Build(c.Request.Context(), t, in)
	if err != nil {
		respondWithError(c, http.StatusServiceUnavailable, ErrorCodeCanceled, "Request canceled before the views were built", nil)
		return
	}

	switch format {
	case views.FormatMarkdown:
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(v.Markdown()))
	case views.FormatYAML:
		c.YAML(http.StatusOK, v)
	default:
		c.JSON(http.StatusOK, v)
	}
}

var errTooManyRows = errors.New("too many rows")

func (s *Server) buildTable(p TablePayload, fallbackName string) (*table.Table, error) {
	if s.deps.MaxRows > 0 && len(p.Rows) > s.deps.MaxRows {
		return nil, fmt.Errorf("%w: %d rows posted, limit %d", errTooManyRows, len(p.Rows), s.deps.MaxRows)
	}
	name := p.Name
	if name == "" {
		name = fallbackName
	}
	t := table.New(name, p.Columns)
	for i, row := range p.Rows {
		if err := t.Append(row); err != nil {
			return nil, fmt.Errorf("%s row %d: %w", name, i, err)
		}
	}
	return t, nil
}

func (s *Server) respondTableError(c *gin.Context, err error) {
	var cnf *resolve.ColumnNotFoundError
	switch {
	case errors.As(err, &cnf):
		respondWithError(c, http.StatusUnprocessableEntity, ErrorCodeColumnNotFound, err.Error(), gin.H{"role": cnf.Role, "columns": cnf.Columns})
	case errors.Is(err, errTooManyRows):
		respondWithError(c, http.StatusRequestEntityTooLarge, ErrorCodeTooLarge, err.Error(), nil)
	default:
		respondWithError(c, http.StatusBadRequest, ErrorCodeValidation, err.Error(), nil)
	}
}

// mergeOptions overlays the non-empty request options on the server defaults.
func mergeOptions(def views.Options, req *views.Options) views.Options {
	if req == nil {
		return def
	}
	o := def
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	if req.Species != "" {
		o.Species = req.Species
	}
	set(&o.XData, req.XData)
	set(&o.Categories, req.Categories)
	set(&o.State, req.State)
	set(&o.DateRole, req.DateRole)
	set(&o.AgeRole, req.AgeRole)
	set(&o.SpeciesRole, req.SpeciesRole)
	set(&o.LocationRole, req.LocationRole)
	if req.InlineCoordinates {
		o.InlineCoordinates = true
	}
	return o
}
