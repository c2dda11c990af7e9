package httpapi

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"mime"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/i474232898/meteo-station-dashboard/internal/detection"
	"github.com/i474232898/meteo-station-dashboard/internal/geo"
	"github.com/i474232898/meteo-station-dashboard/internal/stations"
	"github.com/i474232898/meteo-station-dashboard/internal/store"
	"github.com/i474232898/meteo-station-dashboard/internal/weather"
)

var validate = validator.New()

// Deps are the collaborators the handlers use.
type Deps struct {
	Service  *weather.Service
	Stations *stations.Index
	Sessions *store.MemoryStore
	Detector *detection.Detector
	Logger   *slog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	h := &handlers{Deps: deps}

	app.Get("/health", h.health)

	v1 := app.Group("/api/v1")
	v1.Get("/municipalities", h.searchMunicipalities)
	v1.Get("/stations/nearest", h.nearestStations)
	v1.Get("/stations/resolve", h.resolveStation)
	v1.Get("/sessions/:id", h.getSession)

	v1.Get("/observations/:station/current", h.currentConditions)
	v1.Get("/observations/:station/past", h.pastHour)
	v1.Get("/observations/:station/daily", h.dailyHistory)

	v1.Get("/detection/status", h.detectionStatus)
	v1.Post("/detection/predict", h.predict)

	v1.Delete("/cache", h.flushCache)
	v1.Delete("/cache/archives", h.flushArchives)
}

type handlers struct {
	Deps
}

func (h *handlers) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"stations":  h.Stations.Len(),
		"detection": h.Detector.Status(),
	})
}

type municipalityQuery struct {
	Q string `query:"q" validate:"max=200"`
}

func (h *handlers) searchMunicipalities(c *fiber.Ctx) error {
	var q municipalityQuery
	if err := bindQuery(c, &q); err != nil {
		return err
	}
	matches := h.Service.SearchMunicipality(c.UserContext(), q.Q)
	if matches == nil {
		matches = []geo.MunicipalityMatch{}
	}
	return c.JSON(fiber.Map{"query": q.Q, "matches": matches})
}

type nearestQuery struct {
	Lat *float64 `query:"lat" validate:"required,gte=-90,lte=90"`
	Lon *float64 `query:"lon" validate:"required,gte=-180,lte=180"`
	K   int      `query:"k" validate:"gte=0,lte=50"`
}

func (h *handlers) nearestStations(c *fiber.Ctx) error {
	var q nearestQuery
	if err := bindQuery(c, &q); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"latitude":  *q.Lat,
		"longitude": *q.Lon,
		"stations":  h.Stations.Nearest(*q.Lat, *q.Lon, q.K),
	})
}

type resolveQuery struct {
	Lat     *float64 `query:"lat" validate:"required,gte=-90,lte=90"`
	Lon     *float64 `query:"lon" validate:"required,gte=-180,lte=180"`
	Label   string `query:"label" validate:"required,max=200"`
	Context string `query:"context" validate:"max=200"`
	Session string `query:"session" validate:"omitempty,uuid"`
}

func (h *handlers) resolveStation(c *fiber.Ctx) error {
	var q resolveQuery
	if err := bindQuery(c, &q); err != nil {
		return err
	}

	sess, err := h.sessionOrNew(q.Session)
	if err != nil {
		return err
	}
	match := geo.MunicipalityMatch{
		Label:       q.Label,
		Context:     q.Context,
		Coordinates: geo.Coordinates{Latitude: *q.Lat, Longitude: *q.Lon},
	}

	report, sess, err := h.Service.ResolveStation(c.UserContext(), sess, match)
	if err != nil {
		return err
	}
	h.Sessions.Save(sess)

	return c.JSON(fiber.Map{"session": sess, "report": report})
}

func (h *handlers) getSession(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid session id")
	}
	sess, err := h.Sessions.Get(id)
	if err != nil {
		return err
	}
	return c.JSON(sess)
}

type sessionQuery struct {
	Session string `query:"session" validate:"omitempty,uuid"`
}

func (h *handlers) currentConditions(c *fiber.Ctx) error {
	var q sessionQuery
	if err := bindQuery(c, &q); err != nil {
		return err
	}

	report, err := h.Service.CurrentConditions(c.UserContext(), c.Params("station"))
	if err != nil {
		return err
	}

	resp := fiber.Map{"report": report}
	if q.Session != "" {
		sess, err := h.session(q.Session)
		if err != nil {
			return err
		}
		if v := report.Current.ValidityTime; v != nil {
			sess = sess.WithReferenceTime(*v)
			h.Sessions.Save(sess)
		}
		resp["session"] = sess
	}
	return c.JSON(resp)
}

type pastQuery struct {
	Years   int    `query:"years" validate:"required,gte=1,lte=50"`
	Session string `query:"session" validate:"omitempty,uuid"`
}

func (h *handlers) pastHour(c *fiber.Ctx) error {
	var q pastQuery
	if err := bindQuery(c, &q); err != nil {
		return err
	}

	var ref time.Time
	if q.Session != "" {
		sess, err := h.session(q.Session)
		if err != nil {
			return err
		}
		ref = sess.ReferenceTime
	}

	report, err := h.Service.PastHour(c.UserContext(), c.Params("station"), ref, q.Years)
	if err != nil {
		return err
	}
	return c.JSON(report)
}

// dailyQuery holds query parameters for the daily climatology endpoint.
type dailyQuery struct {
	From time.Time `validate:"required"`
	To   time.Time `validate:"required,gtefield=From"`
}

func (d *dailyQuery) bind(c *fiber.Ctx) error {
	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	d.From = from
	d.To = to
	return nil
}

func (h *handlers) dailyHistory(c *fiber.Ctx) error {
	var q dailyQuery
	if err := q.bind(c); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	table, err := h.Service.DailyHistory(c.UserContext(), c.Params("station"), q.From, q.To)
	if err != nil {
		return err
	}
	return c.JSON(table)
}

func (h *handlers) detectionStatus(c *fiber.Ctx) error {
	return c.JSON(h.Detector.Status())
}

// predict accepts a CSV batch either as the raw body or as the "file" field
// of a multipart form.
func (h *handlers) predict(c *fiber.Ctx) error {
	if !h.Detector.Available() {
		return h.Detector.Err()
	}

	body, err := uploadedCSV(c)
	if err != nil {
		return err
	}

	batch, err := detection.ParseBatch(body)
	if err != nil {
		if errors.Is(err, detection.ErrEmptyBatch) {
			return err
		}
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	}

	result, err := h.Detector.Predict(batch)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

func (h *handlers) flushCache(c *fiber.Ctx) error {
	h.Service.FlushCache()
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handlers) flushArchives(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"removed": h.Service.FlushArchives()})
}

func (h *handlers) session(raw string) (weather.Session, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return weather.Session{}, fiber.NewError(fiber.StatusBadRequest, "invalid session id")
	}
	return h.Sessions.Get(id)
}

func (h *handlers) sessionOrNew(raw string) (weather.Session, error) {
	if raw == "" {
		return weather.NewSession(h.Now()), nil
	}
	return h.session(raw)
}

// bindQuery parses query parameters into dst and validates it.
func bindQuery(c *fiber.Ctx, dst any) error {
	if err := c.QueryParser(dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

func uploadedCSV(c *fiber.Ctx) (io.Reader, error) {
	mediaType, _, _ := mime.ParseMediaType(c.Get(fiber.HeaderContentType))
	if mediaType != fiber.MIMEMultipartForm {
		if len(c.Body()) == 0 {
			return nil, fiber.NewError(fiber.StatusBadRequest, "empty request body")
		}
		return bytes.NewReader(c.Body()), nil
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "missing form file \"file\"")
	}
	if !strings.HasSuffix(strings.ToLower(fh.Filename), ".csv") {
		return nil, fiber.NewError(fiber.StatusBadRequest, "uploaded file must be a .csv")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	defer func(f io.Closer) {
		_ = f.Close()
	}(f)

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

// parseTime accepts RFC3339, a bare date or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if ts, err := time.Parse(time.DateOnly, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339, YYYY-MM-DD or unix seconds")
}
