package http

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"mission-control/internal/docstore/domain/model"
	"mission-control/internal/docstore/usecase"
	apperrors "mission-control/internal/shared/errors"
	"mission-control/internal/shared/logger"
	"mission-control/internal/shared/utils"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes the collection router and the query executor over REST.
type Handler struct {
	Router   usecase.CollectionRouter
	Executor usecase.QueryExecutor
	Log      logger.Logger
}

// NewHandler creates the REST handler.
func NewHandler(router usecase.CollectionRouter, executor usecase.QueryExecutor, log logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Handler{Router: router, Executor: executor, Log: log.WithComponent("http")}
}

// RegisterRoutes mounts the collection routes under router, normally the /api/v1 group.
func (h *Handler) RegisterRoutes(router fiber.Router) {
	collections := router.Group("/collections")
	collections.Get("/", h.ListCollections)
	collections.Get("/:name", h.GetCollection)
	collections.Post("/:name/query", h.RunQuery)
	collections.Post("/:name", h.CreateDocument)
	collections.Get("/:name/:id", h.GetDocument)
	collections.Patch("/:name/:id", h.UpdateDocument)
	collections.Delete("/:name/:id", h.DeleteDocument)
}

// WhereClause is one filter of a query request.
type WhereClause struct {
	Field string      `json:"field"`
	Op    string      `json:"op"`
	Value interface{} `json:"value"`
}

// OrderClause is one ordering of a query request.
type OrderClause struct {
	Field     string `json:"field"`
	Direction string `json:"direction"`
}

// QueryRequest is the body of POST /collections/:name/query.
type QueryRequest struct {
	Where   []WhereClause `json:"where"`
	OrderBy []OrderClause `json:"orderBy"`
	Limit   *int          `json:"limit,omitempty"`
}

// Constraints converts the request into query constraints in request order: filters,
// then orderings, then the limit.
func (r QueryRequest) Constraints() []model.Constraint {
	out := make([]model.Constraint, 0, len(r.Where)+len(r.OrderBy)+1)
	for _, w := range r.Where {
		op := w.Op
		if op == "" {
			op = model.OperatorEqual
		}
		out = append(out, model.NewWhere(w.Field, op, coerceValue(w.Value)))
	}
	for _, o := range r.OrderBy {
		out = append(out, model.NewOrderBy(o.Field, o.Direction))
	}
	if r.Limit != nil {
		out = append(out, model.NewLimit(*r.Limit))
	}
	return out
}

// ListCollections returns the registered collection names.
func (h *Handler) ListCollections(c *fiber.Ctx) error {
	names := h.Router.Collections()
	return c.JSON(fiber.Map{
		"collections": names,
		"count":       len(names),
	})
}

// GetCollection lists a collection. Query-string parameters are passed to
// QueryCollection as filters.
func (h *Handler) GetCollection(c *fiber.Ctx) error {
	name := c.Params("name")
	params := c.Queries()

	var (
		res *model.QueryResult
		err error
	)
	if len(params) > 0 {
		filters := make(map[string]interface{}, len(params))
		for k, v := range params {
			filters[k] = coerceValue(v)
		}
		res, err = h.Router.QueryCollection(h.requestContext(c, name, "queryCollection"), name, filters)
	} else {
		res, err = h.Router.GetCollection(h.requestContext(c, name, "getCollection"), name)
	}
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(res)
}

// RunQuery executes a structured query through the translator.
func (h *Handler) RunQuery(c *fiber.Ctx) error {
	name := c.Params("name")

	var req QueryRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			h.Log.Debugf("invalid query body for %s: %v", name, err)
			return h.writeError(c, apperrors.NewValidationError("failed to parse request body").WithCause(apperrors.ErrInvalidInput))
		}
	}

	res, err := h.Executor.GetDocs(h.requestContext(c, name, "getDocs"), model.Query(model.Collection(name), req.Constraints()...))
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(res)
}

// GetDocument returns one document, or 404 when it does not exist.
func (h *Handler) GetDocument(c *fiber.Ctx) error {
	name, id := c.Params("name"), c.Params("id")

	snap, err := h.Router.GetDocument(h.requestContext(c, name, "getDocument"), name, id)
	if err != nil {
		return h.writeError(c, err)
	}
	if !snap.Exists() {
		return h.writeError(c, apperrors.NewNotFoundError("document").WithDetail("collection", name).WithDetail("id", id))
	}
	return c.JSON(snap)
}

// CreateDocument inserts the body and answers with the stored row.
func (h *Handler) CreateDocument(c *fiber.Ctx) error {
	name := c.Params("name")

	data, err := h.parseRecord(c)
	if err != nil {
		return h.writeError(c, err)
	}

	snap, err := h.Router.CreateDocument(h.requestContext(c, name, "createDocument"), name, data)
	if err != nil {
		return h.writeError(c, err)
	}
	h.Log.Infof("created %s/%v", name, snap.ID)
	return c.Status(fiber.StatusCreated).JSON(snap)
}

// UpdateDocument applies a partial update and answers with the row as stored. A missing
// id answers with a snapshot whose exists flag is false.
func (h *Handler) UpdateDocument(c *fiber.Ctx) error {
	name, id := c.Params("name"), c.Params("id")

	data, err := h.parseRecord(c)
	if err != nil {
		return h.writeError(c, err)
	}

	snap, err := h.Router.UpdateDocument(h.requestContext(c, name, "updateDocument"), name, id, data)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(snap)
}

// DeleteDocument removes a document and reports how many rows went.
func (h *Handler) DeleteDocument(c *fiber.Ctx) error {
	name, id := c.Params("name"), c.Params("id")

	n, err := h.Router.DeleteDocument(h.requestContext(c, name, "deleteDocument"), name, id)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(fiber.Map{"deleted": n})
}

func (h *Handler) parseRecord(c *fiber.Ctx) (model.Record, error) {
	var data model.Record
	if err := c.BodyParser(&data); err != nil {
		return nil, apperrors.NewValidationError("failed to parse request body").WithCause(apperrors.ErrInvalidInput)
	}
	for k, v := range data {
		data[k] = coerceValue(v)
	}
	return data, nil
}

// requestContext carries the request id and the collection being served into the
// usecase layer so its log lines can be correlated.
func (h *Handler) requestContext(c *fiber.Ctx, collection, operation string) context.Context {
	ctx := c.UserContext()
	if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
		ctx = utils.WithRequestID(ctx, rid)
	}
	if uid, ok := c.Locals("userID").(string); ok && uid != "" {
		ctx = utils.WithUserID(ctx, uid)
	}
	ctx = utils.WithCollection(ctx, collection)
	return utils.WithOperation(ctx, operation)
}

func (h *Handler) writeError(c *fiber.Ctx, err error) error {
	status := apperrors.HTTPStatus(err)
	body := fiber.Map{"message": err.Error()}

	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		body["error"] = string(appErr.Type)
		if appErr.Code != "" {
			body["code"] = appErr.Code
		}
		if len(appErr.Details) > 0 {
			body["details"] = appErr.Details
		}
	case apperrors.IsStorage(err):
		body["error"] = string(apperrors.ErrorTypeStorage)
	default:
		body["error"] = string(apperrors.ErrorTypeInternal)
	}

	log := h.Log.WithFields(map[string]interface{}{"method": c.Method(), "path": c.Path(), "status": status})
	switch {
	case status >= fiber.StatusInternalServerError:
		log.Errorf("request failed: %v", err)
	case apperrors.IsUnknownCollection(err):
		log.Warnf("write to unknown collection: %v", err)
	case apperrors.IsValidation(err), apperrors.IsNotFound(err):
		log.Debugf("request rejected: %v", err)
	}
	return c.Status(status).JSON(body)
}

// coerceValue turns integral numbers and numeric strings from JSON or the query string
// into int64 so they compare exactly against integer columns.
func coerceValue(v interface{}) interface{} {
	switch val := v.(type) {
	case float64:
		if val == float64(int64(val)) {
			return int64(val)
		}
		return val
	case string:
		s := strings.TrimSpace(val)
		if s == "" || (len(s) > 1 && s[0] == '0') {
			return val
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
		return val
	default:
		return val
	}
}
