package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/chatflow/chatflow/model"
	"github.com/chatflow/chatflow/persistence"
	"github.com/chatflow/chatflow/util"
)

var _ persistence.FlowRunStore = new(sqliteRunStore)

type sqliteRunStore struct {
	db             *sql.DB
	encoderDecoder util.EncoderDecoder[model.FlowContext]
}

func NewSqliteRunStore(db *sql.DB) *sqliteRunStore {
	return &sqliteRunStore{
		db:             db,
		encoderDecoder: util.NewJsonEncoderDecoder[model.FlowContext](),
	}
}

func (rs *sqliteRunStore) Save(ctx context.Context, run *model.FlowRun) error {
	var contextBlob []byte
	if run.Context != nil {
		data, err := rs.encoderDecoder.Encode(*run.Context)
		if err != nil {
			return err
		}
		contextBlob = data
	}
	_, err := rs.db.ExecContext(ctx, `
		INSERT INTO flow_runs (id, flow_id, session_id, phone_number, current_state, context, status, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			current_state = excluded.current_state,
			context = excluded.context,
			status = excluded.status,
			error = excluded.error,
			updated_at = excluded.updated_at`,
		run.Id, run.FlowId, run.SessionId, run.PhoneNumber, run.CurrentState,
		contextBlob, string(run.Status), run.Error, run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (rs *sqliteRunStore) Get(ctx context.Context, id string) (*model.FlowRun, error) {
	row := rs.db.QueryRowContext(ctx, `
		SELECT id, flow_id, session_id, phone_number, current_state, context, status, error, created_at, updated_at
		FROM flow_runs WHERE id = ?`, id)
	return rs.scanRun(row)
}

func (rs *sqliteRunStore) ListBySession(ctx context.Context, sessionId string) ([]*model.FlowRun, error) {
	rows, err := rs.db.QueryContext(ctx, `
		SELECT id, flow_id, session_id, phone_number, current_state, context, status, error, created_at, updated_at
		FROM flow_runs WHERE session_id = ? ORDER BY created_at`, sessionId)
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	defer rows.Close()
	var runs []*model.FlowRun
	for rows.Next() {
		run, err := rs.scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (rs *sqliteRunStore) Delete(ctx context.Context, id string) error {
	if _, err := rs.db.ExecContext(ctx, `DELETE FROM flow_runs WHERE id = ?`, id); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (rs *sqliteRunStore) scanRun(row rowScanner) (*model.FlowRun, error) {
	var run model.FlowRun
	var contextBlob []byte
	var status string
	err := row.Scan(&run.Id, &run.FlowId, &run.SessionId, &run.PhoneNumber, &run.CurrentState,
		&contextBlob, &status, &run.Error, &run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrRunNotFound
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	run.Status = model.RunStatus(status)
	if len(contextBlob) > 0 {
		fctx, err := rs.encoderDecoder.Decode(contextBlob)
		if err != nil {
			return nil, err
		}
		run.Context = fctx
	}
	return &run, nil
}
