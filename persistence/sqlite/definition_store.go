package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/chatflow/chatflow/model"
	"github.com/chatflow/chatflow/persistence"
	"github.com/chatflow/chatflow/util"
)

var _ persistence.DefinitionStore = new(sqliteDefinitionStore)

type sqliteDefinitionStore struct {
	db             *sql.DB
	encoderDecoder util.EncoderDecoder[model.FlowDefinition]
}

func NewSqliteDefinitionStore(db *sql.DB) *sqliteDefinitionStore {
	return &sqliteDefinitionStore{
		db:             db,
		encoderDecoder: util.NewJsonEncoderDecoder[model.FlowDefinition](),
	}
}

func (ds *sqliteDefinitionStore) Save(ctx context.Context, def *model.FlowDefinition) error {
	data, err := ds.encoderDecoder.Encode(*def)
	if err != nil {
		return err
	}
	_, err = ds.db.ExecContext(ctx, `
		INSERT INTO flow_definitions (id, definition) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET definition = excluded.definition`,
		def.Id, data,
	)
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (ds *sqliteDefinitionStore) Get(ctx context.Context, id string) (*model.FlowDefinition, error) {
	var data []byte
	err := ds.db.QueryRowContext(ctx, `SELECT definition FROM flow_definitions WHERE id = ?`, id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrFlowNotFound
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return ds.encoderDecoder.Decode(data)
}

func (ds *sqliteDefinitionStore) List(ctx context.Context) ([]*model.FlowDefinition, error) {
	rows, err := ds.db.QueryContext(ctx, `SELECT definition FROM flow_definitions ORDER BY id`)
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	defer rows.Close()
	var defs []*model.FlowDefinition
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, persistence.StorageLayerError{Message: err.Error()}
		}
		def, err := ds.encoderDecoder.Decode(data)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

func (ds *sqliteDefinitionStore) Delete(ctx context.Context, id string) error {
	if _, err := ds.db.ExecContext(ctx, `DELETE FROM flow_definitions WHERE id = ?`, id); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}
