package usecase

import (
	"context"
	"testing"

	"mission-control/internal/docstore/config"
	"mission-control/internal/docstore/domain/model"
	"mission-control/internal/docstore/testutil"
	apperrors "mission-control/internal/shared/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name        string
		constraints []model.Constraint
		filters     []FilterTerm
		order       OrderSpec
		limit       *model.Limit
	}{
		{
			name:  "no constraints uses the default order",
			order: OrderSpec{Field: "created_at", Direction: model.Descending},
		},
		{
			name: "where and order",
			constraints: []model.Constraint{
				model.NewWhere("status", "==", "Open"),
				model.NewOrderBy("timestamp", "desc"),
			},
			filters: []FilterTerm{{Field: "status", Value: "Open"}},
			order:   OrderSpec{Field: "timestamp", Direction: model.Descending},
		},
		{
			name: "repeated field keeps first position and last value",
			constraints: []model.Constraint{
				model.NewWhere("status", "==", "Resolved"),
				model.NewWhere("satellite_id", "==", 2),
				model.NewWhere("status", "==", "Open"),
			},
			filters: []FilterTerm{{Field: "status", Value: "Open"}, {Field: "satellite_id", Value: 2}},
			order:   DefaultOrder,
		},
		{
			name: "first order wins",
			constraints: []model.Constraint{
				model.NewOrderBy("name"),
				model.NewOrderBy("created_at", "desc"),
			},
			order: OrderSpec{Field: "name", Direction: model.Ascending},
		},
		{
			name:        "limit is carried",
			constraints: []model.Constraint{model.NewLimit(5), model.NewLimit(2)},
			order:       DefaultOrder,
			limit:       &model.Limit{N: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := translate(model.Query(model.Collection("anomalies"), tt.constraints...))
			require.NoError(t, err)
			assert.Equal(t, tt.filters, tr.filters)
			assert.Equal(t, tt.order, tr.order)
			assert.Equal(t, tt.limit, tr.limit)
		})
	}
}

func TestTranslate_RejectsOtherOperators(t *testing.T) {
	for _, op := range []string{">", ">=", "<", "!=", "in", "array-contains", "="} {
		_, err := translate(model.Query(model.Collection("anomalies"), model.NewWhere("severity", op, "Low")))
		require.Error(t, err, op)
		assert.True(t, apperrors.IsValidation(err), op)
		assert.ErrorIs(t, err, apperrors.ErrInvalidQuery, op)
	}
}

func TestTranslator_GetDocsScenarios(t *testing.T) {
	f := newFixture(t, config.PolicyLenientReads)
	testutil.SeedSatellites(t, f.db)
	testutil.SeedAnomalies(t, f.db)
	ctx := context.Background()

	t.Run("satellites ordered by name", func(t *testing.T) {
		res, err := f.translator.GetDocs(ctx, model.Query(model.Collection("satellites"), model.NewOrderBy("name", "asc")))
		require.NoError(t, err)
		assert.Equal(t, []interface{}{"Aqua", "Landsat-9", "Sentinel-2B"}, field(res, "name"))
		assert.False(t, res.Empty())
		assert.Equal(t, 3, res.Size())
	})

	t.Run("open anomalies by timestamp", func(t *testing.T) {
		res, err := f.translator.GetDocs(ctx, model.Query(model.Collection("anomalies"),
			model.NewWhere("status", "==", "Open"),
			model.NewOrderBy("timestamp", "desc"),
		))
		require.NoError(t, err)
		assert.Equal(t, []interface{}{int64(8), int64(3)}, docIDs(res))
	})

	t.Run("every where constraint is applied", func(t *testing.T) {
		res, err := f.translator.GetDocs(ctx, model.Query(model.Collection("anomalies"),
			model.NewWhere("satellite_id", "==", 3),
			model.NewWhere("status", "==", "Open"),
		))
		require.NoError(t, err)
		assert.Equal(t, []interface{}{int64(3)}, docIDs(res))

		last := f.storage.last()
		assert.Equal(t, "SELECT * FROM `anomalies` WHERE `satellite_id` = ? AND `status` = ? ORDER BY `created_at` DESC", last.Statement)
		assert.Equal(t, []interface{}{3, "Open"}, last.Params)
	})

	t.Run("unknown collection is empty", func(t *testing.T) {
		before := f.storage.count()
		res, err := f.translator.GetDocs(ctx, model.Query(model.Collection("widgets"), model.NewWhere("x", "==", 1)))
		require.NoError(t, err)
		assert.True(t, res.Empty())
		assert.Equal(t, before, f.storage.count())
	})
}

func TestTranslator_DefaultOrderIsNewestFirst(t *testing.T) {
	f := newFixture(t, config.PolicyLenientReads)
	for i, ts := range []string{"2025-01-02 10:00:00", "2025-01-03 10:00:00", "2025-01-01 10:00:00"} {
		testutil.Insert(t, f.db, "missions", model.Record{"name": []string{"A", "B", "C"}[i], "created_at": ts})
	}

	res, err := f.translator.GetDocs(context.Background(), model.Query(model.Collection("missions")))
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"B", "A", "C"}, field(res, "name"))
	assert.Equal(t, "SELECT * FROM `missions` ORDER BY `created_at` DESC", f.storage.last().Statement)
}

func TestTranslator_LimitIsNotApplied(t *testing.T) {
	f := newFixture(t, config.PolicyLenientReads)
	testutil.SeedAnomalies(t, f.db)

	res, err := f.translator.GetDocs(context.Background(), model.Query(model.Collection("anomalies"), model.NewLimit(3)))
	require.NoError(t, err)
	assert.Equal(t, 10, res.Size())
	assert.NotContains(t, f.storage.last().Statement, "LIMIT")
}

func TestTranslator_GetDocsErrors(t *testing.T) {
	f := newFixture(t, config.PolicyStrict)
	ctx := context.Background()

	_, err := f.translator.GetDocs(ctx, model.Query(model.Collection("widgets")))
	assert.True(t, apperrors.IsUnknownCollection(err))

	_, err = f.translator.GetDocs(ctx, model.Query(model.Collection("anomalies"), model.NewWhere("severity", ">", "Low")))
	assert.ErrorIs(t, err, apperrors.ErrInvalidQuery)

	_, err = f.translator.GetDocs(ctx, model.Query(model.Collection("anomalies"), model.NewWhere("colour", "==", "red")))
	assert.ErrorIs(t, err, apperrors.ErrUnknownColumn)

	_, err = f.translator.GetDocs(ctx, model.Query(model.Collection("anomalies"), model.NewOrderBy("name`; --")))
	assert.True(t, apperrors.IsValidation(err))

	assert.Equal(t, 0, f.storage.count())
}

func TestTranslator_DelegatesSingleDocumentOperations(t *testing.T) {
	f := newFixture(t, config.PolicyLenientReads)
	ctx := context.Background()

	added, err := f.translator.AddDoc(ctx, model.Collection("commands"), model.Record{
		"satellite_id": 1, "user_id": 2, "command_type": "SAFE_MODE",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), added.ID)

	snap, err := f.translator.GetDoc(ctx, model.Doc("commands", added.ID))
	require.NoError(t, err)
	require.True(t, snap.Exists())
	assert.Equal(t, "Pending", snap.Data()["status"])

	require.NoError(t, f.translator.UpdateDoc(ctx, model.Doc("commands", "1"), model.Record{"status": "Completed"}))
	snap, err = f.translator.GetDoc(ctx, model.Doc("commands", 1))
	require.NoError(t, err)
	assert.Equal(t, "Completed", snap.Data()["status"])

	require.NoError(t, f.translator.DeleteDoc(ctx, model.Doc("commands", 1)))
	snap, err = f.translator.GetDoc(ctx, model.Doc("commands", 1))
	require.NoError(t, err)
	assert.False(t, snap.Exists())
}
