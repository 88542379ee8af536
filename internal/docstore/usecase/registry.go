package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"mission-control/internal/docstore/config"
	"mission-control/internal/docstore/domain/model"
	"mission-control/internal/docstore/domain/repository"
	apperrors "mission-control/internal/shared/errors"
	"mission-control/internal/shared/eventbus"
	"mission-control/internal/shared/logger"
)

// Collection enumerates the logical collections the registry knows.
type Collection string

const (
	Satellites     Collection = "satellites"
	GroundStations Collection = "ground_stations"
	Commands       Collection = "commands"
	Anomalies      Collection = "anomalies"
	Missions       Collection = "missions"
	Users          Collection = "users"
	Telemetry      Collection = "telemetry"
)

// FilterLookup is one specialised filtered fetch. It applies when the filters passed to
// QueryCollection contain Field; when Match is set the value must also equal Match
// (case-insensitively), and the stored value Match is what gets bound.
type FilterLookup struct {
	Name  string
	Field string
	Match string
}

func (l FilterLookup) applies(filters map[string]interface{}) (interface{}, bool) {
	v, ok := filters[l.Field]
	if !ok {
		return nil, false
	}
	if l.Match == "" {
		return v, true
	}
	if s, ok := v.(string); ok && strings.EqualFold(s, l.Match) {
		return l.Match, true
	}
	return nil, false
}

// Entity binds a collection to its table, its default order, its declared column set
// and its filter lookups in priority order.
type Entity struct {
	Collection   Collection
	Table        string
	DefaultOrder OrderSpec
	Columns      []string
	Lookups      []FilterLookup

	columnSet map[string]struct{}
}

// HasColumn reports whether column belongs to the entity's declared column set.
func (e *Entity) HasColumn(column string) bool {
	_, ok := e.columnSet[column]
	return ok
}

// DefaultEntities is the registry's built-in table map.
func DefaultEntities() []Entity {
	return []Entity{
		{
			Collection:   Satellites,
			Table:        "satellites",
			DefaultOrder: OrderSpec{Field: "name", Direction: model.Ascending},
			Columns: []string{"id", "name", "norad_id", "status", "orbit_type", "altitude_km",
				"inclination_deg", "mission_id", "launch_date", "created_at", "updated_at"},
			Lookups: []FilterLookup{
				{Name: "by_status", Field: "status"},
				{Name: "by_mission", Field: "mission_id"},
			},
		},
		{
			Collection:   GroundStations,
			Table:        "ground_stations",
			DefaultOrder: OrderSpec{Field: "name", Direction: model.Ascending},
			Columns:      []string{"id", "name", "location", "latitude", "longitude", "status", "created_at", "updated_at"},
			Lookups: []FilterLookup{
				{Name: "by_status", Field: "status"},
			},
		},
		{
			Collection:   Commands,
			Table:        "commands",
			DefaultOrder: OrderSpec{Field: "created_at", Direction: model.Descending},
			Columns: []string{"id", "satellite_id", "user_id", "command_type", "parameters", "status",
				"executed_at", "created_at", "updated_at"},
			Lookups: []FilterLookup{
				{Name: "by_satellite", Field: "satellite_id"},
				{Name: "by_user", Field: "user_id"},
				{Name: "pending", Field: "status", Match: "Pending"},
			},
		},
		{
			Collection:   Anomalies,
			Table:        "anomalies",
			DefaultOrder: OrderSpec{Field: "timestamp", Direction: model.Descending},
			Columns: []string{"id", "satellite_id", "severity", "description", "status", "timestamp",
				"resolved_at", "created_at", "updated_at"},
			Lookups: []FilterLookup{
				{Name: "by_satellite", Field: "satellite_id"},
				{Name: "by_severity", Field: "severity"},
				{Name: "open", Field: "status", Match: "Open"},
			},
		},
		{
			Collection:   Missions,
			Table:        "missions",
			DefaultOrder: OrderSpec{Field: "start_date", Direction: model.Descending},
			Columns:      []string{"id", "name", "description", "status", "start_date", "end_date", "created_at", "updated_at"},
			Lookups: []FilterLookup{
				{Name: "by_status", Field: "status"},
			},
		},
		{
			Collection:   Users,
			Table:        "users",
			DefaultOrder: OrderSpec{Field: "created_at", Direction: model.Descending},
			Columns:      []string{"id", "email", "password_hash", "name", "role", "created_at", "updated_at"},
			Lookups: []FilterLookup{
				{Name: "by_email", Field: "email"},
			},
		},
		{
			Collection:   Telemetry,
			Table:        "telemetry",
			DefaultOrder: OrderSpec{Field: "timestamp", Direction: model.Descending},
			Columns:      []string{"id", "satellite_id", "parameter", "value", "unit", "timestamp", "created_at"},
			Lookups: []FilterLookup{
				{Name: "by_satellite", Field: "satellite_id"},
			},
		},
	}
}

// Registry maps collection names to tables and runs the per-entity lookups. It is built
// once at startup and is safe for concurrent use; it holds no mutable state.
type Registry struct {
	storage  repository.Storage
	entities map[Collection]*Entity
	names    []string
	policy   config.UnknownCollectionPolicy
	notifier changeNotifier
	log      logger.Logger
}

// NewRegistry builds a registry over the default entities.
func NewRegistry(storage repository.Storage, policy config.UnknownCollectionPolicy, publisher eventbus.Publisher, log logger.Logger) *Registry {
	r, err := NewRegistryWithEntities(storage, DefaultEntities(), policy, publisher, log)
	if err != nil {
		// DefaultEntities is static; an error here is a programming mistake.
		panic(err)
	}
	return r
}

// NewRegistryWithEntities builds a registry over an explicit entity list, checking that
// names are unique and every identifier is usable in SQL.
func NewRegistryWithEntities(storage repository.Storage, entities []Entity, policy config.UnknownCollectionPolicy, publisher eventbus.Publisher, log logger.Logger) (*Registry, error) {
	if storage == nil {
		return nil, fmt.Errorf("registry requires a storage handle")
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	if policy == "" {
		policy = config.PolicyLenientReads
	}

	log = log.WithComponent("registry")
	r := &Registry{
		storage:  storage,
		entities: make(map[Collection]*Entity, len(entities)),
		policy:   policy,
		notifier: changeNotifier{publisher: publisher, log: log},
		log:      log,
	}

	for i := range entities {
		e := entities[i]
		if _, dup := r.entities[e.Collection]; dup {
			return nil, fmt.Errorf("collection %q registered twice", e.Collection)
		}
		if err := validateEntity(&e); err != nil {
			return nil, err
		}
		r.entities[e.Collection] = &e
		r.names = append(r.names, string(e.Collection))
	}
	sort.Strings(r.names)
	return r, nil
}

func validateEntity(e *Entity) error {
	idents := append([]string{e.Table, e.DefaultOrder.Field}, e.Columns...)
	for _, id := range idents {
		if _, err := quoteIdent(id); err != nil {
			return fmt.Errorf("collection %q: %w", e.Collection, err)
		}
	}

	e.columnSet = make(map[string]struct{}, len(e.Columns))
	for _, c := range e.Columns {
		e.columnSet[c] = struct{}{}
	}
	if !e.HasColumn("id") {
		return fmt.Errorf("collection %q: column set must include id", e.Collection)
	}
	if !e.HasColumn(e.DefaultOrder.Field) {
		return fmt.Errorf("collection %q: default order field %q is not a declared column", e.Collection, e.DefaultOrder.Field)
	}
	for _, l := range e.Lookups {
		if !e.HasColumn(l.Field) {
			return fmt.Errorf("collection %q: lookup %q filters on undeclared column %q", e.Collection, l.Name, l.Field)
		}
	}
	e.DefaultOrder.Direction = model.NormalizeDirection(e.DefaultOrder.Direction)
	return nil
}

// Collections lists the registered collection names, sorted.
func (r *Registry) Collections() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Policy reports how unknown collections are handled on reads.
func (r *Registry) Policy() config.UnknownCollectionPolicy {
	return r.policy
}

// Lookup returns the entity registered under name.
func (r *Registry) Lookup(name string) (*Entity, bool) {
	e, ok := r.entities[Collection(name)]
	return e, ok
}

// resolveRead applies the unknown-collection policy for reads. Under the lenient policy
// an unknown name yields (nil, nil) after a warning.
func (r *Registry) resolveRead(ctx context.Context, name, operation string) (*Entity, error) {
	if e, ok := r.Lookup(name); ok {
		return e, nil
	}
	if r.policy == config.PolicyStrict {
		return nil, apperrors.NewUnknownCollectionError(name).WithComponent("registry")
	}
	r.log.WithContext(ctx).WithFields(map[string]interface{}{
		"collection": name,
		"operation":  operation,
	}).Warnf("unknown collection %q, returning empty result", name)
	return nil, nil
}

// resolveWrite fails hard on unknown names regardless of policy.
func (r *Registry) resolveWrite(name string) (*Entity, error) {
	if e, ok := r.Lookup(name); ok {
		return e, nil
	}
	return nil, apperrors.NewUnknownCollectionError(name).WithComponent("registry")
}

// GetCollection returns every row of the collection in the entity's default order.
func (r *Registry) GetCollection(ctx context.Context, name string) (*model.QueryResult, error) {
	e, err := r.resolveRead(ctx, name, "getCollection")
	if err != nil {
		return nil, err
	}
	if e == nil {
		return emptyResult(), nil
	}
	rows, err := r.FetchOrdered(ctx, e, e.DefaultOrder)
	if err != nil {
		return nil, err
	}
	return model.NewQueryResult(rows), nil
}

// GetDocument fetches one row by id. A missing row is a snapshot that does not exist.
func (r *Registry) GetDocument(ctx context.Context, name string, id interface{}) (*model.Snapshot, error) {
	e, err := r.resolveRead(ctx, name, "getDocument")
	if err != nil {
		return nil, err
	}
	if e == nil {
		return model.MissingSnapshot(id), nil
	}
	return r.fetchByID(ctx, e, normalizeID(id))
}

// QueryCollection honours exactly one filter dimension: the highest-priority lookup of
// the entity whose field appears in filters. Other keys are ignored. With no matching
// lookup the whole collection is returned.
func (r *Registry) QueryCollection(ctx context.Context, name string, filters map[string]interface{}) (*model.QueryResult, error) {
	e, err := r.resolveRead(ctx, name, "queryCollection")
	if err != nil {
		return nil, err
	}
	if e == nil {
		return emptyResult(), nil
	}

	for _, lookup := range e.Lookups {
		value, ok := lookup.applies(filters)
		if !ok {
			continue
		}
		r.log.WithContext(ctx).Debugf("queryCollection %s: using lookup %s", name, lookup.Name)
		rows, err := r.FetchFiltered(ctx, e, []FilterTerm{{Field: lookup.Field, Value: value}}, e.DefaultOrder)
		if err != nil {
			return nil, err
		}
		return model.NewQueryResult(rows), nil
	}

	rows, err := r.FetchOrdered(ctx, e, e.DefaultOrder)
	if err != nil {
		return nil, err
	}
	return model.NewQueryResult(rows), nil
}

// CreateDocument inserts data after checking it against the column set and returns the
// stored row, server-populated columns included.
func (r *Registry) CreateDocument(ctx context.Context, name string, data model.Record) (*model.Snapshot, error) {
	e, err := r.resolveWrite(name)
	if err != nil {
		return nil, err
	}
	if err := r.checkColumns(e, data); err != nil {
		return nil, err
	}

	stmt, params, err := buildInsert(e.Table, data)
	if err != nil {
		return nil, err
	}
	res, err := r.storage.Execute(ctx, stmt, params...)
	if err != nil {
		return nil, err
	}

	id := interface{}(res.InsertID)
	if v, ok := data["id"]; ok && res.InsertID == 0 {
		id = normalizeID(v)
	}
	snap, err := r.fetchByID(ctx, e, id)
	if err != nil {
		return nil, err
	}
	if !snap.Exists() && res.AffectedRows > 0 {
		// Stores that acknowledge inserts without keeping them (canned) have no row to
		// read back; answer with what was written.
		stored := data.Copy()
		stored["id"] = id
		snap = model.NewSnapshot(id, stored)
	}
	r.notifier.notify(ctx, model.ChangeAdded, name, id, snap.Data(), res.AffectedRows)
	return snap, nil
}

// UpdateDocument applies partial data to the row with the given id and returns the row
// as stored afterwards. Updating a missing id succeeds and returns a missing snapshot.
func (r *Registry) UpdateDocument(ctx context.Context, name string, id interface{}, data model.Record) (*model.Snapshot, error) {
	e, err := r.resolveWrite(name)
	if err != nil {
		return nil, err
	}
	if err := r.checkColumns(e, data); err != nil {
		return nil, err
	}

	id = normalizeID(id)
	stmt, params, err := buildUpdate(e.Table, id, data)
	if err != nil {
		return nil, err
	}
	res, err := r.storage.Execute(ctx, stmt, params...)
	if err != nil {
		return nil, err
	}

	snap, err := r.fetchByID(ctx, e, id)
	if err != nil {
		return nil, err
	}
	r.notifier.notify(ctx, model.ChangeModified, name, id, data, res.AffectedRows)
	return snap, nil
}

// DeleteDocument removes the row with the given id and reports how many rows went.
func (r *Registry) DeleteDocument(ctx context.Context, name string, id interface{}) (int64, error) {
	e, err := r.resolveWrite(name)
	if err != nil {
		return 0, err
	}

	id = normalizeID(id)
	stmt, params, err := buildDelete(e.Table, id)
	if err != nil {
		return 0, err
	}
	res, err := r.storage.Execute(ctx, stmt, params...)
	if err != nil {
		return 0, err
	}
	r.notifier.notify(ctx, model.ChangeRemoved, name, id, nil, res.AffectedRows)
	return res.AffectedRows, nil
}

// FetchOrdered returns every row of the entity's table in the given order.
func (r *Registry) FetchOrdered(ctx context.Context, e *Entity, order OrderSpec) ([]model.Record, error) {
	return r.FetchFiltered(ctx, e, nil, order)
}

// FetchFiltered returns the rows matching every filter term, in the given order. Filter
// and order fields must be declared columns.
func (r *Registry) FetchFiltered(ctx context.Context, e *Entity, filters []FilterTerm, order OrderSpec) ([]model.Record, error) {
	verrs := apperrors.NewValidationErrors()
	for _, f := range filters {
		if !e.HasColumn(f.Field) {
			verrs.Add(f.Field, fmt.Sprintf("%s has no column %q", e.Collection, f.Field), f.Value)
		}
	}
	if !e.HasColumn(order.Field) {
		verrs.Add(order.Field, fmt.Sprintf("%s has no column %q to order by", e.Collection, order.Field), order.Direction)
	}
	if verrs.HasErrors() {
		return nil, verrs.ToAppError(apperrors.ErrUnknownColumn).WithComponent("registry")
	}

	stmt, params, err := buildSelect(e.Table, filters, order)
	if err != nil {
		return nil, err
	}
	res, err := r.storage.Execute(ctx, stmt, params...)
	if err != nil {
		return nil, err
	}
	return res.Rows, nil
}

func (r *Registry) fetchByID(ctx context.Context, e *Entity, id interface{}) (*model.Snapshot, error) {
	stmt, params, err := buildSelectByID(e.Table, id)
	if err != nil {
		return nil, err
	}
	res, err := r.storage.Execute(ctx, stmt, params...)
	if err != nil {
		return nil, err
	}
	if len(res.Rows) == 0 {
		return model.MissingSnapshot(id), nil
	}
	return model.SnapshotFromRow(res.Rows[0]), nil
}

func (r *Registry) checkColumns(e *Entity, data model.Record) error {
	verrs := apperrors.NewValidationErrors()
	for _, k := range sortedKeys(data) {
		if !e.HasColumn(k) {
			verrs.Add(k, fmt.Sprintf("%s has no column %q", e.Collection, k), data[k])
		}
	}
	if verrs.HasErrors() {
		return verrs.ToAppError(apperrors.ErrUnknownColumn).WithComponent("registry")
	}
	return nil
}

func emptyResult() *model.QueryResult {
	return &model.QueryResult{Docs: []*model.Snapshot{}}
}
