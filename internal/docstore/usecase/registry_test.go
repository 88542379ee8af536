package usecase

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"mission-control/internal/docstore/adapter/persistence/canned"
	"mission-control/internal/docstore/config"
	"mission-control/internal/docstore/domain/model"
	"mission-control/internal/docstore/testutil"
	apperrors "mission-control/internal/shared/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Collections(t *testing.T) {
	f := newFixture(t, config.PolicyLenientReads)

	assert.Equal(t, []string{"anomalies", "commands", "ground_stations", "missions", "satellites", "telemetry", "users"}, f.registry.Collections())
	assert.Equal(t, config.PolicyLenientReads, f.registry.Policy())

	e, ok := f.registry.Lookup("ground_stations")
	require.True(t, ok)
	assert.Equal(t, "ground_stations", e.Table)
	assert.True(t, e.HasColumn("latitude"))
	assert.False(t, e.HasColumn("norad_id"))
}

func TestRegistry_GetCollectionUsesEntityDefaultOrder(t *testing.T) {
	f := newFixture(t, config.PolicyLenientReads)
	testutil.SeedSatellites(t, f.db)

	res, err := f.registry.GetCollection(context.Background(), "satellites")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"Aqua", "Landsat-9", "Sentinel-2B"}, field(res, "name"))
	assert.Equal(t, "SELECT * FROM `satellites` ORDER BY `name` ASC", f.storage.last().Statement)
}

func TestRegistry_GetCollectionMatchesOrderedTableScan(t *testing.T) {
	required := map[string]model.Record{
		"satellites":      {"name": "sat"},
		"ground_stations": {"name": "station"},
		"commands":        {"satellite_id": 1, "user_id": 1, "command_type": "PING"},
		"anomalies":       {"satellite_id": 1, "severity": "Low", "timestamp": "2025-01-01 00:00:00"},
		"missions":        {"name": "mission"},
		"users":           {"password_hash": "x"},
		"telemetry":       {"satellite_id": 1, "parameter": "temp", "value": 1.5, "timestamp": "2025-01-01 00:00:00"},
	}
	// inserted out of order for both directions
	orderValues := []string{"2025-02-02 00:00:00", "2025-03-03 00:00:00", "2025-01-01 00:00:00"}

	for _, e := range DefaultEntities() {
		e := e
		t.Run(string(e.Collection), func(t *testing.T) {
			f := newFixture(t, config.PolicyLenientReads)
			base, ok := required[e.Table]
			require.True(t, ok, "no seed row for %s", e.Table)

			for i, v := range orderValues {
				row := base.Copy()
				row[e.DefaultOrder.Field] = v
				if e.Table == "users" {
					row["email"] = fmt.Sprintf("op%d@example.com", i)
				}
				testutil.Insert(t, f.db, e.Table, row)
			}

			res, err := f.registry.GetCollection(context.Background(), string(e.Collection))
			require.NoError(t, err)

			rows, err := f.db.Query(fmt.Sprintf("SELECT id FROM %s ORDER BY %s %s", e.Table, e.DefaultOrder.Field, e.DefaultOrder.Direction))
			require.NoError(t, err)
			defer rows.Close()
			var want []string
			for rows.Next() {
				var id int64
				require.NoError(t, rows.Scan(&id))
				want = append(want, fmt.Sprint(id))
			}
			require.NoError(t, rows.Err())

			var got []string
			for _, id := range docIDs(res) {
				got = append(got, fmt.Sprint(id))
			}
			assert.Len(t, got, len(orderValues))
			assert.Equal(t, want, got)
		})
	}
}

func TestRegistry_QueryCollectionOpenAnomalies(t *testing.T) {
	f := newFixture(t, config.PolicyLenientReads)
	testutil.SeedAnomalies(t, f.db)

	res, err := f.registry.QueryCollection(context.Background(), "anomalies", map[string]interface{}{"status": "open"})
	require.NoError(t, err)
	require.Equal(t, 2, res.Size())

	for _, doc := range res.Docs {
		assert.Equal(t, "Open", doc.Data()["status"])
	}
	timestamps := field(res, "timestamp")
	assert.Contains(t, timestamps[0], "2025-03-08")
	assert.Contains(t, timestamps[1], "2025-03-03")

	last := f.storage.last()
	assert.Equal(t, "SELECT * FROM `anomalies` WHERE `status` = ? ORDER BY `timestamp` DESC", last.Statement)
	assert.Equal(t, []interface{}{"Open"}, last.Params)
}

func TestRegistry_QueryCollectionLookupPriority(t *testing.T) {
	f := newFixture(t, config.PolicyLenientReads)
	testutil.SeedAnomalies(t, f.db)
	ctx := context.Background()

	res, err := f.registry.QueryCollection(ctx, "anomalies", map[string]interface{}{"satellite_id": int64(3)})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{int64(9), int64(6), int64(3)}, docIDs(res))

	// satellite_id outranks status; the status filter is ignored
	res, err = f.registry.QueryCollection(ctx, "anomalies", map[string]interface{}{"satellite_id": int64(3), "status": "Open"})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{int64(9), int64(6), int64(3)}, docIDs(res))
	assert.Equal(t, []interface{}{int64(3)}, f.storage.last().Params)
}

func TestRegistry_QueryCollectionFallsBackToFullList(t *testing.T) {
	f := newFixture(t, config.PolicyLenientReads)
	testutil.SeedAnomalies(t, f.db)
	ctx := context.Background()

	tests := []struct {
		name    string
		filters map[string]interface{}
	}{
		{"no filters", nil},
		{"undeclared key", map[string]interface{}{"colour": "red"}},
		{"status other than Open", map[string]interface{}{"status": "Resolved"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.registry.QueryCollection(ctx, "anomalies", tt.filters)
			require.NoError(t, err)
			assert.Equal(t, 10, res.Size())
			assert.Equal(t, "SELECT * FROM `anomalies` ORDER BY `timestamp` DESC", f.storage.last().Statement)
		})
	}
}

func TestRegistry_UnknownCollectionLenient(t *testing.T) {
	f := newFixture(t, config.PolicyLenientReads)
	ctx := context.Background()

	res, err := f.registry.GetCollection(ctx, "widgets")
	require.NoError(t, err)
	assert.True(t, res.Empty())
	assert.NotNil(t, res.Docs)

	res, err = f.registry.QueryCollection(ctx, "widgets", map[string]interface{}{"status": "Open"})
	require.NoError(t, err)
	assert.True(t, res.Empty())

	snap, err := f.registry.GetDocument(ctx, "widgets", "1")
	require.NoError(t, err)
	assert.False(t, snap.Exists())

	warnings := f.warnings()
	require.Len(t, warnings, 3)
	assert.Equal(t, "widgets", warnings[0].Data["collection"])
	assert.Equal(t, "getCollection", warnings[0].Data["operation"])
	assert.Equal(t, "queryCollection", warnings[1].Data["operation"])
	assert.Equal(t, "getDocument", warnings[2].Data["operation"])

	_, err = f.registry.CreateDocument(ctx, "widgets", model.Record{"name": "x"})
	require.Error(t, err)
	assert.True(t, apperrors.IsUnknownCollection(err))
	assert.Equal(t, http.StatusNotFound, apperrors.HTTPStatus(err))

	_, err = f.registry.UpdateDocument(ctx, "widgets", 1, model.Record{"name": "x"})
	assert.True(t, apperrors.IsUnknownCollection(err))

	_, err = f.registry.DeleteDocument(ctx, "widgets", 1)
	assert.True(t, apperrors.IsUnknownCollection(err))

	assert.Equal(t, 0, f.storage.count())
	assert.Empty(t, f.publisher.all())
}

func TestRegistry_UnknownCollectionStrict(t *testing.T) {
	f := newFixture(t, config.PolicyStrict)
	ctx := context.Background()

	_, err := f.registry.GetCollection(ctx, "widgets")
	assert.True(t, apperrors.IsUnknownCollection(err))

	_, err = f.registry.QueryCollection(ctx, "widgets", nil)
	assert.True(t, apperrors.IsUnknownCollection(err))

	_, err = f.registry.GetDocument(ctx, "widgets", 1)
	assert.True(t, apperrors.IsUnknownCollection(err))

	assert.Empty(t, f.warnings())
}

func TestRegistry_CreateDocumentReturnsStoredRow(t *testing.T) {
	f := newFixture(t, config.PolicyLenientReads)
	testutil.SeedSatellites(t, f.db)

	snap, err := f.registry.CreateDocument(context.Background(), "satellites", model.Record{"name": "Terra", "status": "Active"})
	require.NoError(t, err)
	require.True(t, snap.Exists())
	assert.Equal(t, int64(4), snap.ID)
	assert.Equal(t, "Terra", snap.Data()["name"])
	assert.NotNil(t, snap.Data()["created_at"])

	changes := f.publisher.all()
	require.Len(t, changes, 1)
	assert.Equal(t, model.ChangeAdded, changes[0].Type)
	assert.Equal(t, "satellites", changes[0].Collection)
	assert.Equal(t, "4", changes[0].DocID)
	assert.Equal(t, int64(1), changes[0].AffectedRows)
	assert.NotEmpty(t, changes[0].EventID)
}

func TestRegistry_CreateDocumentOnCannedStore(t *testing.T) {
	store, err := canned.New(nil)
	require.NoError(t, err)
	publisher := &recordingPublisher{}
	registry := NewRegistry(store, config.PolicyLenientReads, publisher, nil)

	snap, err := registry.CreateDocument(context.Background(), "users", model.Record{
		"email": "capcom@example.com", "name": "Capcom", "role": "operator", "password_hash": "x",
	})
	require.NoError(t, err)
	require.True(t, snap.Exists())
	assert.Equal(t, int64(4), snap.ID)
	assert.Equal(t, "capcom@example.com", snap.Data()["email"])
	assert.Equal(t, int64(4), snap.Data()["id"])

	var user model.User
	require.NoError(t, snap.DataTo(&user))
	assert.Equal(t, "Capcom", user.Name)

	changes := publisher.all()
	require.Len(t, changes, 1)
	assert.Equal(t, model.ChangeAdded, changes[0].Type)
	assert.Equal(t, "capcom@example.com", changes[0].Data["email"])
}

func TestRegistry_CreateDocumentRejectsUndeclaredColumns(t *testing.T) {
	f := newFixture(t, config.PolicyLenientReads)

	_, err := f.registry.CreateDocument(context.Background(), "satellites", model.Record{"name": "Terra", "colour": "white"})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.ErrorIs(t, err, apperrors.ErrUnknownColumn)
	assert.Equal(t, 0, f.storage.count())

	_, err = f.registry.CreateDocument(context.Background(), "satellites", model.Record{})
	assert.ErrorIs(t, err, apperrors.ErrEmptyPayload)
}

func TestRegistry_UpdateDocument(t *testing.T) {
	f := newFixture(t, config.PolicyLenientReads)
	testutil.SeedSatellites(t, f.db)
	ctx := context.Background()

	snap, err := f.registry.UpdateDocument(ctx, "satellites", "2", model.Record{"status": "Retired"})
	require.NoError(t, err)
	require.True(t, snap.Exists())
	assert.Equal(t, "Retired", snap.Data()["status"])
	assert.Equal(t, "Aqua", snap.Data()["name"])

	snap, err = f.registry.UpdateDocument(ctx, "satellites", "99", model.Record{"status": "Retired"})
	require.NoError(t, err)
	assert.False(t, snap.Exists())

	changes := f.publisher.all()
	require.Len(t, changes, 1)
	assert.Equal(t, model.ChangeModified, changes[0].Type)
	assert.Equal(t, int64(1), changes[0].AffectedRows)
	assert.Equal(t, model.Record{"status": "Retired"}, changes[0].Data)

	_, err = f.registry.UpdateDocument(ctx, "satellites", 1, model.Record{"apogee": 1})
	assert.ErrorIs(t, err, apperrors.ErrUnknownColumn)
}

func TestRegistry_DeleteDocument(t *testing.T) {
	f := newFixture(t, config.PolicyLenientReads)
	testutil.SeedSatellites(t, f.db)
	ctx := context.Background()

	n, err := f.registry.DeleteDocument(ctx, "satellites", "3")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	snap, err := f.registry.GetDocument(ctx, "satellites", 3)
	require.NoError(t, err)
	assert.False(t, snap.Exists())

	n, err = f.registry.DeleteDocument(ctx, "satellites", "3")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	changes := f.publisher.all()
	require.Len(t, changes, 1)
	assert.Equal(t, model.ChangeRemoved, changes[0].Type)
	assert.Equal(t, "3", changes[0].DocID)
	assert.Nil(t, changes[0].Data)
}

func TestRegistry_PublishFailureDoesNotFailWrite(t *testing.T) {
	f := newFixture(t, config.PolicyLenientReads)
	f.publisher.err = errPublish

	snap, err := f.registry.CreateDocument(context.Background(), "missions", model.Record{"name": "Ocean Watch", "status": "Planned"})
	require.NoError(t, err)
	assert.True(t, snap.Exists())

	warnings := f.warnings()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "bus unavailable")
}

func TestRegistry_StorageFailurePropagates(t *testing.T) {
	f := newFixture(t, config.PolicyLenientReads)
	_, err := f.db.Exec("DROP TABLE `telemetry`")
	require.NoError(t, err)

	_, err = f.registry.GetCollection(context.Background(), "telemetry")
	require.Error(t, err)
	assert.True(t, apperrors.IsStorage(err))
	assert.Contains(t, err.Error(), "no such table")
	assert.Equal(t, http.StatusBadGateway, apperrors.HTTPStatus(err))
}

func TestRegistry_FetchFilteredValidatesColumns(t *testing.T) {
	f := newFixture(t, config.PolicyLenientReads)
	e, _ := f.registry.Lookup("users")

	_, err := f.registry.FetchFiltered(context.Background(), e, []FilterTerm{{Field: "nickname", Value: "x"}}, OrderSpec{Field: "karma", Direction: "ASC"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnknownColumn)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Len(t, appErr.Details["validation_errors"], 2)
	assert.Equal(t, 0, f.storage.count())
}

func TestRegistry_ConcurrentReads(t *testing.T) {
	f := newFixture(t, config.PolicyLenientReads)
	testutil.SeedSatellites(t, f.db)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.registry.GetCollection(context.Background(), "satellites")
			if err == nil && res.Size() != 3 {
				err = assert.AnError
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestNewRegistryWithEntities_Validation(t *testing.T) {
	f := newFixture(t, config.PolicyLenientReads)
	valid := Entity{Collection: "probes", Table: "probes", DefaultOrder: DefaultOrder, Columns: []string{"id", "created_at"}}

	tests := []struct {
		name     string
		entities []Entity
		message  string
	}{
		{"duplicate collection", []Entity{valid, valid}, "registered twice"},
		{"bad table name", []Entity{{Collection: "x", Table: "x-y", DefaultOrder: DefaultOrder, Columns: []string{"id", "created_at"}}}, "invalid identifier"},
		{"missing id", []Entity{{Collection: "x", Table: "x", DefaultOrder: DefaultOrder, Columns: []string{"created_at"}}}, "must include id"},
		{"default order undeclared", []Entity{{Collection: "x", Table: "x", DefaultOrder: OrderSpec{Field: "name"}, Columns: []string{"id"}}}, "default order field"},
		{"lookup undeclared", []Entity{{Collection: "x", Table: "x", DefaultOrder: OrderSpec{Field: "id"}, Columns: []string{"id"}, Lookups: []FilterLookup{{Name: "by_status", Field: "status"}}}}, "undeclared column"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistryWithEntities(f.storage, tt.entities, config.PolicyStrict, nil, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}

	_, err := NewRegistryWithEntities(nil, []Entity{valid}, config.PolicyStrict, nil, nil)
	assert.Error(t, err)

	r, err := NewRegistryWithEntities(f.storage, []Entity{valid}, "", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, config.PolicyLenientReads, r.Policy())
	assert.Equal(t, []string{"probes"}, r.Collections())
}
